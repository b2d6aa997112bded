package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/j-veylop/cockpit-tui/internal/logger"
)

// ErrPortInUse is returned when the callback port is held by another process.
var ErrPortInUse = errors.New("callback port already in use")

// Callback is what the authorization server sent to the redirect URI.
type Callback struct {
	Code  string
	State string
	Error string
}

const successPage = `<!doctype html><html><body style="font-family:sans-serif">
<h3>Login complete</h3><p>You can close this window and return to the terminal.</p></body></html>`

// CallbackServer is a loopback HTTP server receiving a single OAuth redirect.
type CallbackServer struct {
	srv      *http.Server
	listener net.Listener
	result   chan Callback
	path     string
	once     sync.Once
}

// Listen starts a callback server on 127.0.0.1:port (0 picks a free port)
// serving path. GET /cancel aborts the wait.
func Listen(port int, path string) (*CallbackServer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %d", ErrPortInUse, port)
		}
		return nil, fmt.Errorf("failed to listen for oauth callback: %w", err)
	}

	cs := &CallbackServer{
		listener: ln,
		result:   make(chan Callback, 1),
		path:     path,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(path, cs.handleCallback)
	r.Get("/cancel", cs.handleCancel)

	cs.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := cs.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("oauth callback server stopped", "error", err)
		}
	}()

	return cs, nil
}

// Port returns the bound port.
func (cs *CallbackServer) Port() int {
	return cs.listener.Addr().(*net.TCPAddr).Port
}

// RedirectURL returns the redirect URI to register with the authorization request.
func (cs *CallbackServer) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%d%s", cs.Port(), cs.path)
}

func (cs *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := Callback{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	}
	if cb.Error == "" && cb.Code == "" {
		cb.Error = "missing authorization code"
	}
	cs.deliver(cb)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if cb.Error != "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, "<html><body><h3>Login failed</h3><p>%s</p></body></html>", html.EscapeString(cb.Error))
		return
	}
	_, _ = w.Write([]byte(successPage))
}

func (cs *CallbackServer) handleCancel(w http.ResponseWriter, _ *http.Request) {
	cs.deliver(Callback{Error: "cancelled"})
	w.WriteHeader(http.StatusNoContent)
}

func (cs *CallbackServer) deliver(cb Callback) {
	select {
	case cs.result <- cb:
	default:
	}
}

// Wait blocks for the redirect, checking the state parameter.
func (cs *CallbackServer) Wait(ctx context.Context, wantState string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case cb := <-cs.result:
		if cb.Error == "cancelled" {
			return "", ErrCancelled
		}
		if cb.Error != "" {
			return "", fmt.Errorf("authorization failed: %s", cb.Error)
		}
		if wantState != "" && cb.State != wantState {
			return "", errors.New("authorization failed: state mismatch")
		}
		return cb.Code, nil
	}
}

// Close shuts the server down. It is safe to call more than once.
func (cs *CallbackServer) Close() {
	cs.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cs.srv.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down oauth callback server", "error", err)
		}
	})
}

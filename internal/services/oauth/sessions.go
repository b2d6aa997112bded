// Package oauth holds the pieces shared by every platform login: pending
// session bookkeeping, the loopback callback server and PKCE helpers.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUnknownLogin is returned for a login id that was never started,
	// already completed or cancelled.
	ErrUnknownLogin = errors.New("unknown or finished login")
	// ErrAlreadyCompleting is returned when Complete is called twice for one login.
	ErrAlreadyCompleting = errors.New("login is already being completed")
	// ErrCancelled is returned by a pending completion when the login is cancelled.
	ErrCancelled = errors.New("login cancelled")
)

// WaitFunc blocks until the user finishes authorizing and returns the result.
type WaitFunc[T any] func(ctx context.Context) (T, error)

type session[T any] struct {
	wait       WaitFunc[T]
	ctx        context.Context
	cancel     context.CancelFunc
	cleanup    func()
	completing bool
}

// Sessions tracks pending logins of one platform.
type Sessions[T any] struct {
	pending map[string]*session[T]
	mu      sync.Mutex
}

// NewSessions returns an empty registry.
func NewSessions[T any]() *Sessions[T] {
	return &Sessions[T]{pending: make(map[string]*session[T])}
}

// Start registers a pending login and returns its id. cleanup, when not nil,
// runs once when the login completes or is cancelled.
func (s *Sessions[T]) Start(wait WaitFunc[T], cleanup func()) string {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	s.mu.Lock()
	s.pending[id] = &session[T]{wait: wait, ctx: ctx, cancel: cancel, cleanup: cleanup}
	s.mu.Unlock()
	return id
}

// Complete waits for the login to finish. A login can be completed once;
// Cancel from another goroutine makes it return ErrCancelled.
func (s *Sessions[T]) Complete(ctx context.Context, id string) (T, error) {
	var zero T

	s.mu.Lock()
	sess, ok := s.pending[id]
	if ok && sess.completing {
		s.mu.Unlock()
		return zero, ErrAlreadyCompleting
	}
	if ok {
		sess.completing = true
	}
	s.mu.Unlock()
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownLogin, id)
	}
	defer s.remove(id, sess)

	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-sess.ctx.Done():
			stop()
		case <-waitCtx.Done():
		}
	}()

	result, err := sess.wait(waitCtx)
	if sess.ctx.Err() != nil {
		return zero, ErrCancelled
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}

// Cancel aborts a login, including one being completed. Unknown ids are ignored.
func (s *Sessions[T]) Cancel(id string) {
	s.mu.Lock()
	sess, ok := s.pending[id]
	s.mu.Unlock()
	if ok {
		s.remove(id, sess)
	}
}

// Pending returns the number of logins not yet finished.
func (s *Sessions[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every pending login.
func (s *Sessions[T]) Close() {
	s.mu.Lock()
	all := s.pending
	s.pending = make(map[string]*session[T])
	s.mu.Unlock()

	for _, sess := range all {
		s.finish(sess)
	}
}

func (s *Sessions[T]) remove(id string, sess *session[T]) {
	s.mu.Lock()
	if s.pending[id] == sess {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	s.finish(sess)
}

func (s *Sessions[T]) finish(sess *session[T]) {
	sess.cancel()
	s.mu.Lock()
	cleanup := sess.cleanup
	sess.cleanup = nil
	s.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
}

package pagestate

import (
	"context"
	"regexp"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/logger"
)

// AutoCloseDelay is how long a successful add stays visible before the add
// modal closes itself.
const AutoCloseDelay = 1200 * time.Millisecond

// AddTab is a tab of the add-account modal.
type AddTab string

const (
	TabOAuth  AddTab = "oauth"
	TabToken  AddTab = "token"
	TabImport AddTab = "import"
)

// OAuthState is a step of the login flow.
type OAuthState int

const (
	OAuthIdle OAuthState = iota
	OAuthPreparing
	OAuthPolling
	OAuthSuccess
	OAuthError
	OAuthTimedOut
	// OAuthPrepareFailed means StartLogin itself failed; only a retry leaves it.
	OAuthPrepareFailed
)

func (s OAuthState) String() string {
	switch s {
	case OAuthIdle:
		return "idle"
	case OAuthPreparing:
		return "preparing"
	case OAuthPolling:
		return "polling"
	case OAuthSuccess:
		return "success"
	case OAuthError:
		return "error"
	case OAuthTimedOut:
		return "timed_out"
	case OAuthPrepareFailed:
		return "prepare_failed"
	default:
		return "unknown"
	}
}

// OAuthFlow is the login session of the add modal.
type OAuthFlow struct {
	LoginID         string
	URL             string
	UserCode        string
	PrepareError    string
	CompleteError   string
	ExpiresIn       int
	IntervalSeconds int
	State           OAuthState
	// session changes whenever the flow is reset, so late results of an
	// abandoned login are dropped.
	session    uint64
	completing bool
}

// TimedOut reports whether the flow ended on an expiry and offers a retry.
func (f OAuthFlow) TimedOut() bool {
	return f.State == OAuthTimedOut
}

// Phase is the progress of an add or import action.
type Phase string

const (
	PhaseIdle    Phase = ""
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
	PhasePartial Phase = "partial"
)

// AddStatus reports the last add-modal action. CloseAt is set on success: the
// modal closes at that time unless the user closed it already.
type AddStatus struct {
	CloseAt time.Time
	Err     error
	Phase   Phase
	Message string
	OK      int
	Failed  int
}

type addModal struct {
	status AddStatus
	tab    AddTab
	open   bool
}

var timeoutPattern = regexp.MustCompile(`(?i)timeout|timed out|expired|deadline exceeded|超时|过期`)

// isTimeout guesses from an error text whether a login expired.
func isTimeout(msg string) bool {
	return timeoutPattern.MatchString(msg)
}

// AddOpen reports whether the add modal is shown.
func (p *Page) AddOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.add.open
}

// AddTab returns the active add-modal tab.
func (p *Page) AddTab() AddTab {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.add.tab
}

// AddStatus returns the last add-modal action outcome.
func (p *Page) AddStatus() AddStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.add.status
}

// OAuth returns the login flow state.
func (p *Page) OAuth() OAuthFlow {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.oauth
}

// NeedsOAuthPrepare reports whether the modal sits on the OAuth tab with no
// login started, which is when the view should call PrepareOAuth.
func (p *Page) NeedsOAuthPrepare() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.add.open && p.add.tab == TabOAuth && p.oauth.State == OAuthIdle
}

// OpenAdd shows the add modal on a tab.
func (p *Page) OpenAdd(tab AddTab) {
	p.mu.Lock()
	p.add = addModal{open: true, tab: tab}
	p.mu.Unlock()
}

// SetAddTab switches tabs. Leaving the OAuth tab abandons a held login.
func (p *Page) SetAddTab(ctx context.Context, tab AddTab) {
	p.mu.Lock()
	if p.add.tab == tab {
		p.mu.Unlock()
		return
	}
	var held string
	if p.add.tab == TabOAuth {
		held = p.resetOAuthLocked()
	}
	p.add.tab = tab
	p.add.status = AddStatus{}
	p.mu.Unlock()
	p.cancelLogin(ctx, held)
}

// CloseAdd hides the add modal and abandons a held login.
func (p *Page) CloseAdd(ctx context.Context) {
	p.mu.Lock()
	held := p.resetOAuthLocked()
	p.add = addModal{}
	p.mu.Unlock()
	p.cancelLogin(ctx, held)
}

// AutoClose closes the modal once a success has been shown for
// AutoCloseDelay. It reports whether the modal was closed.
func (p *Page) AutoClose(ctx context.Context) bool {
	p.mu.RLock()
	due := p.add.open && p.add.status.Phase == PhaseSuccess && !p.cfg.Now().Before(p.add.status.CloseAt)
	p.mu.RUnlock()
	if !due {
		return false
	}
	p.CloseAdd(ctx)
	return true
}

// resetOAuthLocked clears the flow and returns the login id that still
// needs cancelling, if any.
func (p *Page) resetOAuthLocked() string {
	var held string
	switch p.oauth.State {
	case OAuthPreparing, OAuthPolling:
		held = p.oauth.LoginID
	}
	p.oauth = OAuthFlow{session: p.oauth.session + 1}
	return held
}

func (p *Page) cancelLogin(ctx context.Context, loginID string) {
	if loginID == "" {
		return
	}
	if err := p.cfg.Service.CancelLogin(ctx, loginID); err != nil {
		logger.Warn("failed to cancel login", "platform", p.cfg.Platform, "login_id", loginID, "error", err)
	}
}

// PrepareOAuth starts a login when the modal is on the OAuth tab and no login
// is under way. It reports whether a login was started; the caller then runs
// CompleteOAuth to wait for it.
func (p *Page) PrepareOAuth(ctx context.Context) bool {
	p.mu.Lock()
	if !p.add.open || p.add.tab != TabOAuth || p.oauth.State != OAuthIdle {
		p.mu.Unlock()
		return false
	}
	p.oauth.State = OAuthPreparing
	session := p.oauth.session
	p.mu.Unlock()

	start, err := p.cfg.Service.StartLogin(ctx)

	p.mu.Lock()
	if p.oauth.session != session {
		p.mu.Unlock()
		// The modal moved on while the login was starting.
		if err == nil {
			p.cancelLogin(ctx, start.LoginID)
		}
		return false
	}
	if err != nil {
		p.oauth.State = OAuthPrepareFailed
		p.oauth.PrepareError = err.Error()
		p.mu.Unlock()
		logger.Error("failed to start login", "platform", p.cfg.Platform, "error", err)
		return false
	}
	p.oauth.LoginID = start.LoginID
	p.oauth.URL = start.URL
	p.oauth.UserCode = start.UserCode
	p.oauth.ExpiresIn = start.ExpiresIn
	p.oauth.IntervalSeconds = start.IntervalSeconds
	p.oauth.State = OAuthPolling
	p.mu.Unlock()
	return true
}

// CompleteOAuth waits for the started login to finish. At most one call per
// login reaches the backend; others return false immediately.
func (p *Page) CompleteOAuth(ctx context.Context) bool {
	p.mu.Lock()
	if p.oauth.State != OAuthPolling || p.oauth.completing {
		p.mu.Unlock()
		return false
	}
	p.oauth.completing = true
	session, loginID := p.oauth.session, p.oauth.LoginID
	p.mu.Unlock()

	acc, err := p.cfg.Service.CompleteLogin(ctx, loginID)

	p.mu.Lock()
	if p.oauth.session != session {
		p.mu.Unlock()
		return false
	}
	p.oauth.completing = false
	if err != nil {
		msg := err.Error()
		p.oauth.CompleteError = msg
		p.oauth.State = OAuthError
		if isTimeout(msg) {
			p.oauth.State = OAuthTimedOut
		}
		p.mu.Unlock()
		logger.Error("login failed", "platform", p.cfg.Platform, "login_id", loginID, "error", err)
		return true
	}
	p.oauth.State = OAuthSuccess
	p.mu.Unlock()

	_ = p.Load(ctx)
	text := p.t("oauth.success", "Account added", nil)
	p.succeed(text, 1)
	if acc != nil {
		logger.Info("account added", "platform", p.cfg.Platform, "account", acc.Label())
	}
	return true
}

// RetryOAuth drops the current flow and starts a new login.
func (p *Page) RetryOAuth(ctx context.Context) bool {
	p.mu.Lock()
	held := p.resetOAuthLocked()
	p.mu.Unlock()
	p.cancelLogin(ctx, held)
	return p.PrepareOAuth(ctx)
}

// succeed records a successful add and schedules the modal to close.
func (p *Page) succeed(text string, count int) {
	p.mu.Lock()
	p.add.status = AddStatus{
		Phase:   PhaseSuccess,
		Message: text,
		OK:      count,
		CloseAt: p.cfg.Now().Add(AutoCloseDelay),
	}
	p.message = Message{Text: text, Tone: ToneSuccess}
	p.mu.Unlock()
}

func (p *Page) fail(err error, text string) {
	p.mu.Lock()
	p.add.status = AddStatus{Phase: PhaseError, Message: text, Err: err}
	p.mu.Unlock()
}

// OAuthMessage is the localized status line of the login flow.
func (p *Page) OAuthMessage() string {
	f := p.OAuth()
	switch f.State {
	case OAuthPreparing:
		return p.t("oauth.preparing", "Preparing authorization...", nil)
	case OAuthPolling:
		return p.t("oauth.waiting", "Waiting for authorization in the browser", nil)
	case OAuthSuccess:
		return p.t("oauth.success", "Account added", nil)
	case OAuthTimedOut:
		return p.t("oauth.timeout", "Authorization timed out, retry to get a new code", nil)
	case OAuthError:
		return p.t("oauth.failed", "Authorization failed: {{error}}", i18n.Params{"error": f.CompleteError})
	case OAuthPrepareFailed:
		return p.t("oauth.prepareFailed", "Could not start authorization: {{error}}", i18n.Params{"error": f.PrepareError})
	default:
		return ""
	}
}

package models

// CodexTokens are the OpenAI OAuth tokens of a Codex account.
type CodexTokens struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	AccountID    string `json:"account_id,omitempty"`
}

// CodexWindow is one rate-limit window. RemainingPercent is 0..100.
type CodexWindow struct {
	ResetAt          int64   `json:"reset_at,omitempty"`
	RemainingPercent float64 `json:"remaining_percent"`
	WindowMinutes    int     `json:"window_minutes,omitempty"`
}

// CodexQuota holds the primary (short) and secondary (weekly) windows.
type CodexQuota struct {
	Primary     *CodexWindow   `json:"primary,omitempty"`
	Secondary   *CodexWindow   `json:"secondary,omitempty"`
	Credits     map[string]any `json:"credits,omitempty"`
	LastUpdated int64          `json:"last_updated"`
}

// CodexAccount is a ChatGPT account used by the Codex CLI.
type CodexAccount struct {
	Quota      *CodexQuota `json:"quota,omitempty"`
	QuotaError *QuotaError `json:"quota_error,omitempty"`
	Base
	Email     string      `json:"email"`
	UserID    string      `json:"user_id,omitempty"`
	PlanType  string      `json:"plan_type,omitempty"`
	AccountID string      `json:"account_id,omitempty"`
	Tokens    CodexTokens `json:"tokens"`
}

func (a *CodexAccount) Platform() Platform { return PlatformCodex }
func (a *CodexAccount) Label() string      { return a.Email }

package models

// KiroAccount is an AWS Builder ID or social login used by Kiro. Usage data
// comes from the imported Kiro profile and is kept raw.
type KiroAccount struct {
	KiroUsageRaw  map[string]any `json:"kiro_usage_raw,omitempty"`
	KiroStatusRaw map[string]any `json:"kiro_status_raw,omitempty"`
	QuotaError    *QuotaError    `json:"quota_error,omitempty"`
	Base
	Email         string `json:"email"`
	UserID        string `json:"user_id,omitempty"`
	LoginProvider string `json:"login_provider,omitempty"`
	PlanName      string `json:"plan_name,omitempty"`
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	ClientSecret  string `json:"client_secret,omitempty"`
	Region        string `json:"region,omitempty"`
	Status        string `json:"status,omitempty"`
	StatusReason  string `json:"status_reason,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
}

func (a *KiroAccount) Platform() Platform { return PlatformKiro }

func (a *KiroAccount) Label() string {
	if a.Email != "" {
		return a.Email
	}
	return a.UserID
}

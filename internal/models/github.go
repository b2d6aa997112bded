package models

// GitHubIdentity is the GitHub OAuth identity shared by Copilot and Windsurf accounts.
type GitHubIdentity struct {
	GitHubLogin       string `json:"github_login"`
	GitHubName        string `json:"github_name,omitempty"`
	GitHubEmail       string `json:"github_email,omitempty"`
	GitHubAccessToken string `json:"github_access_token"`
	GitHubTokenType   string `json:"github_token_type,omitempty"`
	GitHubScope       string `json:"github_scope,omitempty"`
	GitHubID          int64  `json:"github_id,omitempty"`
}

// Name returns the best human label of the identity.
func (g *GitHubIdentity) Name() string {
	switch {
	case g.GitHubEmail != "":
		return g.GitHubEmail
	case g.GitHubLogin != "":
		return g.GitHubLogin
	default:
		return g.GitHubName
	}
}

// CopilotAccount is a GitHub account with a Copilot subscription. The quota
// fields mirror the copilot_internal/user payload, which changes shape often.
type CopilotAccount struct {
	CopilotQuotaSnapshots       map[string]any `json:"copilot_quota_snapshots,omitempty"`
	CopilotLimitedUserQuotas    map[string]any `json:"copilot_limited_user_quotas,omitempty"`
	CopilotMonthlyQuotas        map[string]any `json:"copilot_monthly_quotas,omitempty"`
	CopilotLimitedUserResetDate *int64         `json:"copilot_limited_user_reset_date,omitempty"`
	QuotaError                  *QuotaError    `json:"quota_error,omitempty"`
	Base
	GitHubIdentity
	CopilotPlan           string `json:"copilot_plan,omitempty"`
	CopilotQuotaResetDate string `json:"copilot_quota_reset_date,omitempty"`
}

func (a *CopilotAccount) Platform() Platform { return PlatformCopilot }
func (a *CopilotAccount) Label() string      { return a.GitHubIdentity.Name() }

// WindsurfAccount is signed in through the same GitHub device flow as Copilot
// and carries the Windsurf user/plan status payloads as raw JSON.
type WindsurfAccount struct {
	WindsurfUserStatus map[string]any `json:"windsurf_user_status,omitempty"`
	WindsurfPlanStatus map[string]any `json:"windsurf_plan_status,omitempty"`
	QuotaError         *QuotaError    `json:"quota_error,omitempty"`
	Base
	GitHubIdentity
	WindsurfAPIKey   string `json:"windsurf_api_key,omitempty"`
	WindsurfPlanName string `json:"windsurf_plan_name,omitempty"`
}

func (a *WindsurfAccount) Platform() Platform { return PlatformWindsurf }
func (a *WindsurfAccount) Label() string      { return a.GitHubIdentity.Name() }

package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// ErrUnauthorized is returned when GitHub rejects the token.
var ErrUnauthorized = errors.New("github: bad credentials")

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) getJSON(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.APIBase, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "cockpit-tui")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("request %s failed (status %d): %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

type userResponse struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
	ID    int64  `json:"id"`
}

type emailResponse struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchIdentity resolves the GitHub user behind a token. The primary email is
// looked up when the profile hides it.
func (c *Client) FetchIdentity(ctx context.Context, token, tokenType, scope string) (models.GitHubIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.GitHubIdentity{}, errors.New("github token is empty")
	}

	var user userResponse
	if err := c.getJSON(ctx, token, "/user", &user); err != nil {
		return models.GitHubIdentity{}, err
	}

	email := user.Email
	if email == "" {
		var emails []emailResponse
		if err := c.getJSON(ctx, token, "/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		} else {
			logger.Debug("failed to list github emails", "login", user.Login, "error", err)
		}
	}

	return models.GitHubIdentity{
		GitHubLogin:       user.Login,
		GitHubName:        user.Name,
		GitHubEmail:       email,
		GitHubAccessToken: token,
		GitHubTokenType:   tokenType,
		GitHubScope:       scope,
		GitHubID:          user.ID,
	}, nil
}

// CopilotStatus is the copilot_internal/user payload. Quota fields stay loose
// because GitHub changes them between plans.
type CopilotStatus struct {
	QuotaSnapshots       map[string]any `json:"quota_snapshots"`
	LimitedUserQuotas    map[string]any `json:"limited_user_quotas"`
	MonthlyQuotas        map[string]any `json:"monthly_quotas"`
	LimitedUserResetDate *int64         `json:"limited_user_reset_date"`
	CopilotPlan          string         `json:"copilot_plan"`
	QuotaResetDate       string         `json:"quota_reset_date"`
	QuotaResetDateUTC    string         `json:"quota_reset_date_utc"`
}

// FetchCopilot reads the Copilot entitlement of the token's user.
func (c *Client) FetchCopilot(ctx context.Context, token string) (*CopilotStatus, error) {
	var status CopilotStatus
	if err := c.getJSON(ctx, token, "/copilot_internal/user", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Apply copies the status onto an account.
func (s *CopilotStatus) Apply(acc *models.CopilotAccount) {
	acc.CopilotPlan = s.CopilotPlan
	acc.CopilotQuotaSnapshots = s.QuotaSnapshots
	acc.CopilotLimitedUserQuotas = s.LimitedUserQuotas
	acc.CopilotMonthlyQuotas = s.MonthlyQuotas
	acc.CopilotLimitedUserResetDate = s.LimitedUserResetDate
	acc.CopilotQuotaResetDate = s.QuotaResetDateUTC
	if acc.CopilotQuotaResetDate == "" {
		acc.CopilotQuotaResetDate = s.QuotaResetDate
	}
}

package codex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// UsageURL is the ChatGPT backend endpoint reporting Codex rate limits.
const UsageURL = "https://chatgpt.com/backend-api/wham/usage"

// ErrUnauthorized is returned when the access token is rejected.
var ErrUnauthorized = errors.New("codex usage: unauthorized")

type usagePayload struct {
	RateLimit *usageLimitDetails `json:"rate_limit,omitempty"`
	Credits   map[string]any     `json:"credits,omitempty"`
	PlanType  string             `json:"plan_type,omitempty"`
	Email     string             `json:"email,omitempty"`
}

type usageLimitDetails struct {
	PrimaryWindow   *usageWindowInfo `json:"primary_window,omitempty"`
	SecondaryWindow *usageWindowInfo `json:"secondary_window,omitempty"`
}

type usageWindowInfo struct {
	UsedPercent        float64 `json:"used_percent"`
	LimitWindowSeconds int     `json:"limit_window_seconds"`
	ResetAfterSeconds  int64   `json:"reset_after_seconds"`
	ResetAt            int64   `json:"reset_at"`
}

// Usage is the parsed usage response.
type Usage struct {
	Quota    *models.CodexQuota
	PlanType string
}

// FetchUsage reads the rate-limit windows of an account.
func FetchUsage(ctx context.Context, client *http.Client, url string, tokens models.CodexTokens) (*Usage, error) {
	if tokens.AccessToken == "" {
		return nil, errors.New("access token is empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if url == "" {
		url = UsageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "codex-cli")
	accountID := tokens.AccountID
	if accountID == "" {
		accountID = AccountIDFromAccessToken(tokens.AccessToken)
	}
	if accountID != "" {
		req.Header.Set("ChatGPT-Account-Id", accountID)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usage request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("usage request failed (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var payload usagePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse usage response: %w", err)
	}

	now := time.Now()
	quota := &models.CodexQuota{Credits: payload.Credits, LastUpdated: now.Unix()}
	if payload.RateLimit != nil {
		quota.Primary = toWindow(payload.RateLimit.PrimaryWindow, now)
		quota.Secondary = toWindow(payload.RateLimit.SecondaryWindow, now)
	}
	return &Usage{Quota: quota, PlanType: payload.PlanType}, nil
}

func toWindow(w *usageWindowInfo, now time.Time) *models.CodexWindow {
	if w == nil {
		return nil
	}
	out := &models.CodexWindow{
		RemainingPercent: math.Max(0, math.Min(100, 100-w.UsedPercent)),
		WindowMinutes:    w.LimitWindowSeconds / 60,
		ResetAt:          w.ResetAt,
	}
	if out.ResetAt == 0 && w.ResetAfterSeconds > 0 {
		out.ResetAt = now.Unix() + w.ResetAfterSeconds
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

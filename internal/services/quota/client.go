// Package quota talks to Google for Antigravity accounts: token refresh,
// model quota and the Google sign-in used to add accounts.
package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// ErrUnauthorized is returned when Google rejects the access token.
var ErrUnauthorized = errors.New("unauthorized: access token may be expired")

// Endpoints are the Google URLs the client talks to.
type Endpoints struct {
	// CloudCode bases are tried in order for quota requests.
	CloudCode []string
	UserInfo  string
	OAuth     oauth2.Endpoint
}

// DefaultEndpoints are the production Google endpoints.
func DefaultEndpoints() Endpoints {
	ep := endpoints.Google
	ep.AuthStyle = oauth2.AuthStyleInParams
	return Endpoints{
		CloudCode: []string{
			"https://cloudcode-pa.googleapis.com",
			"https://daily-cloudcode-pa.sandbox.googleapis.com",
		},
		UserInfo: "https://www.googleapis.com/oauth2/v2/userinfo",
		OAuth:    ep,
	}
}

// Sent on every Cloud Code request so quota matches what the IDE sees.
var cloudCodeHeaders = map[string]string{
	"User-Agent":        "antigravity/1.11.5 windows/amd64",
	"X-Goog-Api-Client": "google-cloud-sdk vscode_cloudshelleditor/0.1",
	"Client-Metadata":   `{"ideType":"IDE_UNSPECIFIED","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`,
}

// statusError is a non-2xx answer that is not handled specially.
type statusError struct {
	op     string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.op, e.status, e.body)
}

// client issues the Google API calls of one Service.
type client struct {
	http *http.Client
	ep   Endpoints
}

// do sends req and decodes a 200 JSON answer into out.
func (c *client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return &statusError{op: op, status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	return nil
}

func (c *client) cloudCodeRequest(ctx context.Context, base, method, accessToken string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1internal:"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cloudCodeHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// oauthConfig is the Google client used both for sign-in and refresh.
func (c *client) oauthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       googleScopes,
		Endpoint:     c.ep.OAuth,
	}
}

func (c *client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// refresh trades a refresh token for a new access token. Google may or may
// not rotate the refresh token; the returned token always carries one.
func (c *client) refresh(ctx context.Context, conf *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is empty")
	}
	tok, err := conf.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return tok, nil
}

type modelsResponse struct {
	Models map[string]struct {
		QuotaInfo *struct {
			ResetTime         string   `json:"resetTime"`
			RemainingFraction *float64 `json:"remainingFraction"`
		} `json:"quotaInfo"`
	} `json:"models"`
}

// fetchQuota reads per-model quota, trying each Cloud Code base in turn. A
// 403 is not an error: it yields a quota flagged as forbidden.
func (c *client) fetchQuota(ctx context.Context, accessToken, projectID string) (*models.AntigravityQuota, error) {
	if accessToken == "" {
		return nil, errors.New("access token is empty")
	}
	payload := map[string]string{}
	if projectID != "" {
		payload["project"] = projectID
	}

	errs := make([]error, 0, len(c.ep.CloudCode))
	for _, base := range c.ep.CloudCode {
		q, err := c.fetchQuotaFrom(ctx, base, accessToken, payload)
		if err == nil {
			return q, nil
		}
		if errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
			return nil, err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no quota endpoint configured")
	}
	return nil, errors.Join(errs...)
}

func (c *client) fetchQuotaFrom(ctx context.Context, base, accessToken string, payload any) (*models.AntigravityQuota, error) {
	req, err := c.cloudCodeRequest(ctx, base, "fetchAvailableModels", accessToken, payload)
	if err != nil {
		return nil, err
	}

	var resp modelsResponse
	err = c.do(req, "quota", &resp)
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusForbidden {
		return &models.AntigravityQuota{IsForbidden: true, LastUpdated: time.Now().Unix()}, nil
	}
	if err != nil {
		return nil, err
	}

	q := &models.AntigravityQuota{LastUpdated: time.Now().Unix()}
	for name, m := range resp.Models {
		if m.QuotaInfo == nil {
			continue
		}
		mq := models.ModelQuota{Name: name, ResetTime: m.QuotaInfo.ResetTime}
		if f := m.QuotaInfo.RemainingFraction; f != nil {
			mq.Percentage = *f * 100
		}
		q.Models = append(q.Models, mq)
	}
	slices.SortFunc(q.Models, func(a, b models.ModelQuota) int { return strings.Compare(a.Name, b.Name) })
	q.SubscriptionTier = string(TierFromQuota(q))
	return q, nil
}

// UserInfo is the Google profile of a token's owner.
type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
}

func (c *client) fetchUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	if accessToken == "" {
		return nil, errors.New("access token is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ep.UserInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	var info UserInfo
	if err := c.do(req, "userinfo", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// fetchProjectID asks loadCodeAssist for the account's Cloud Code project,
// which comes back either as a plain id or as an object with one.
func (c *client) fetchProjectID(ctx context.Context, accessToken string) (string, error) {
	if len(c.ep.CloudCode) == 0 {
		return "", errors.New("no cloud code endpoint configured")
	}
	payload := map[string]any{"metadata": map[string]string{
		"ideType":    "IDE_UNSPECIFIED",
		"platform":   "PLATFORM_UNSPECIFIED",
		"pluginType": "GEMINI",
	}}
	req, err := c.cloudCodeRequest(ctx, c.ep.CloudCode[0], "loadCodeAssist", accessToken, payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Project json.RawMessage `json:"cloudaicompanionProject"`
	}
	if err := c.do(req, "loadCodeAssist", &resp); err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(resp.Project, &id); err != nil {
		var obj struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(resp.Project, &obj) == nil {
			id = obj.ID
		}
	}
	if id = strings.TrimSpace(id); id == "" {
		return "", errors.New("no cloudaicompanionProject in response")
	}
	return id, nil
}

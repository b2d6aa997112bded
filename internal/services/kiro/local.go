package kiro

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// SocialRefreshURL refreshes tokens of Google and GitHub Kiro logins.
const SocialRefreshURL = "https://prod.us-east-1.auth.desktop.kiro.dev/refreshToken"

// cachedToken is kiro-auth-token.json written by the Kiro IDE.
type cachedToken struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
	AuthMethod   string `json:"authMethod"`
	Provider     string `json:"provider"`
	Region       string `json:"region"`
	ClientIDHash string `json:"clientIdHash"`
	ProfileArn   string `json:"profileArn"`
}

// cachedClient is the client registration stored next to an IdC token.
type cachedClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// DefaultCacheDir returns ~/.aws/sso/cache.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aws", "sso", "cache")
}

// ReadLocal loads the account the Kiro IDE is signed in with from cacheDir.
func ReadLocal(cacheDir string) (*models.KiroAccount, error) {
	path := filepath.Join(cacheDir, "kiro-auth-token.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kiro token cache not found: %w", err)
	}

	var tok cachedToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("kiro token cache has no access token")
	}

	acc := &models.KiroAccount{
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		LoginProvider: tok.Provider,
		Region:        tok.Region,
		UserID:        tok.ProfileArn,
		Status:        "ok",
	}
	if t, err := time.Parse(time.RFC3339, tok.ExpiresAt); err == nil {
		acc.ExpiresAt = t.Unix()
	}

	if tok.ClientIDHash != "" {
		clientPath := filepath.Join(cacheDir, tok.ClientIDHash+".json")
		if raw, err := os.ReadFile(clientPath); err == nil {
			var cl cachedClient
			if err := json.Unmarshal(raw, &cl); err == nil {
				acc.ClientID, acc.ClientSecret = cl.ClientID, cl.ClientSecret
			}
		} else {
			logger.Debug("kiro client registration missing", "path", clientPath, "error", err)
		}
	}
	return acc, nil
}

func (c *Client) refreshSocial(ctx context.Context, acc *models.KiroAccount) error {
	url := SocialRefreshURL
	if c.Endpoint != "" {
		url = strings.TrimRight(c.Endpoint, "/") + "/refreshToken"
	}

	body, _ := json.Marshal(map[string]string{"refreshToken": acc.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("kiro refresh request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read kiro refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			acc.Status = "error"
			acc.StatusReason = strings.TrimSpace(string(data))
		}
		return fmt.Errorf("kiro refresh failed (status %d)", resp.StatusCode)
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ProfileArn   string `json:"profileArn"`
		ExpiresIn    int64  `json:"expiresIn"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to parse kiro refresh response: %w", err)
	}
	if out.AccessToken == "" {
		return errors.New("kiro refresh returned no access token")
	}

	acc.AccessToken = out.AccessToken
	if out.RefreshToken != "" {
		acc.RefreshToken = out.RefreshToken
	}
	if out.ProfileArn != "" && acc.UserID == "" {
		acc.UserID = out.ProfileArn
	}
	acc.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second).Unix()
	acc.Status, acc.StatusReason = "ok", ""
	return nil
}

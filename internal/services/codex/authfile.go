package codex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/fsutil"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// AuthFile is the structure of ~/.codex/auth.json.
type AuthFile struct {
	OpenAIAPIKey *string     `json:"OPENAI_API_KEY"`
	Tokens       *authTokens `json:"tokens,omitempty"`
	LastRefresh  string      `json:"last_refresh,omitempty"`
}

type authTokens struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	AccountID    string `json:"account_id,omitempty"`
}

// DefaultHome returns CODEX_HOME or ~/.codex.
func DefaultHome() string {
	if h := strings.TrimSpace(os.Getenv("CODEX_HOME")); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codex")
}

// AuthFilePath returns the auth.json inside a Codex home.
func AuthFilePath(codexHome string) string {
	return filepath.Join(codexHome, "auth.json")
}

// ReadAuthFile loads the tokens the Codex CLI is currently signed in with.
func ReadAuthFile(path string) (models.CodexTokens, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.CodexTokens{}, err
	}

	var f AuthFile
	if err := json.Unmarshal(data, &f); err != nil {
		return models.CodexTokens{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if f.Tokens == nil || f.Tokens.AccessToken == "" || f.Tokens.IDToken == "" {
		return models.CodexTokens{}, errors.New("codex auth file has no chatgpt tokens")
	}

	return models.CodexTokens{
		IDToken:      f.Tokens.IDToken,
		AccessToken:  f.Tokens.AccessToken,
		RefreshToken: f.Tokens.RefreshToken,
		AccountID:    f.Tokens.AccountID,
	}, nil
}

// WriteAuthFile makes the Codex CLI use the given tokens.
func WriteAuthFile(path string, tokens models.CodexTokens, now time.Time) error {
	f := AuthFile{
		Tokens: &authTokens{
			IDToken:      tokens.IDToken,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			AccountID:    tokens.AccountID,
		},
		LastRefresh: now.UTC().Format(time.RFC3339Nano),
	}
	return fsutil.WriteJSON(path, f, 0o600)
}

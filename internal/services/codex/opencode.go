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

// ErrTokenExpired is returned when an expired access token would be synced.
var ErrTokenExpired = errors.New("codex access token has expired")

// OpenCodeAuthPath returns $XDG_DATA_HOME/opencode/auth.json, defaulting to
// ~/.local/share/opencode/auth.json.
func OpenCodeAuthPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "opencode", "auth.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "opencode", "auth.json"), nil
}

func openAIEntry(acc *models.CodexAccount) map[string]any {
	entry := map[string]any{
		"type":   "oauth",
		"access": acc.Tokens.AccessToken,
	}
	if acc.Tokens.RefreshToken != "" {
		entry["refresh"] = acc.Tokens.RefreshToken
	}
	if exp, ok := TokenExpiry(acc.Tokens.AccessToken); ok {
		entry["expires"] = exp.Unix() * 1000
	}
	accountID := acc.AccountID
	if accountID == "" {
		accountID = AccountIDFromAccessToken(acc.Tokens.AccessToken)
	}
	if accountID != "" {
		entry["accountId"] = accountID
	}
	return entry
}

// ReplaceOpenCodeEntry writes the account as the "openai" provider of an
// OpenCode auth file, keeping every other provider.
func ReplaceOpenCodeEntry(path string, acc *models.CodexAccount, now time.Time) error {
	if TokenExpired(acc.Tokens.AccessToken, now) {
		return ErrTokenExpired
	}

	auth := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed any
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if m, ok := parsed.(map[string]any); ok {
			auth = m
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	auth["openai"] = openAIEntry(acc)
	return fsutil.WriteJSON(path, auth, 0o600)
}

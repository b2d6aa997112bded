package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// LocalToken is a GitHub token cached by a Copilot editor plugin.
type LocalToken struct {
	User  string `json:"user"`
	Token string `json:"oauth_token"`
	AppID string `json:"githubAppId,omitempty"`
}

// DefaultCopilotConfigDir returns the github-copilot config directory.
func DefaultCopilotConfigDir() string {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "github-copilot")
		}
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "github-copilot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "github-copilot")
}

// ReadLocalTokens collects the github.com tokens from apps.json and the older
// hosts.json. Duplicate tokens are dropped.
func ReadLocalTokens(dir string) ([]LocalToken, error) {
	var tokens []LocalToken
	var found bool
	for _, name := range []string{"apps.json", "hosts.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		found = true

		var entries map[string]LocalToken
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			e := entries[k]
			if !strings.HasPrefix(k, "github.com") || e.Token == "" {
				continue
			}
			if slices.ContainsFunc(tokens, func(t LocalToken) bool { return t.Token == e.Token }) {
				continue
			}
			tokens = append(tokens, e)
		}
	}
	if !found {
		return nil, errors.New("no github copilot sign-in found")
	}
	if len(tokens) == 0 {
		return nil, errors.New("github copilot config has no github.com tokens")
	}
	return tokens, nil
}

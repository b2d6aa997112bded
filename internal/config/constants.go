package config

import (
	"os"
	"path/filepath"
	"regexp"
)

// pluginClientRe matches the Google OAuth client the opencode Antigravity
// plugin declares, e.g. ANTIGRAVITY_CLIENT_ID = "...".
var pluginClientRe = regexp.MustCompile(`ANTIGRAVITY_CLIENT_(ID|SECRET)\s*=\s*"([^"]+)"`)

// oauthClient is a Google OAuth client id and secret pair.
type oauthClient struct {
	ID     string
	Secret string
}

func pluginConstantsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "opencode", "node_modules",
		"opencode-antigravity-auth", "dist", "src", "constants.d.ts")
}

// pluginOAuthClient reads the installed plugin's client credentials. ok is
// false when the plugin is missing or declares only half of the pair.
func pluginOAuthClient() (oauthClient, bool) {
	path := pluginConstantsPath()
	if path == "" {
		return oauthClient{}, false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return oauthClient{}, false
	}
	return parseOAuthClient(string(content))
}

func parseOAuthClient(content string) (oauthClient, bool) {
	var c oauthClient
	for _, m := range pluginClientRe.FindAllStringSubmatch(content, -1) {
		switch m[1] {
		case "ID":
			c.ID = m[2]
		case "SECRET":
			c.Secret = m[2]
		}
	}
	return c, c.ID != "" && c.Secret != ""
}

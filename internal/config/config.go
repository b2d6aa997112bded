// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	DataDir      string
	DatabasePath string
	LogPath      string
	LogLevel     string
	DownloadsDir string

	// AntigravityAccountsPath is the opencode plugin accounts file offered
	// as the local import source for Antigravity.
	AntigravityAccountsPath string
	GoogleClientID          string
	GoogleClientSecret      string
	GitHubClientID          string

	QuotaRefreshInterval time.Duration
	Locale               string
	PrivacyDefault       bool
}

// Default values
const (
	defaultQuotaRefreshInterval = 5 * time.Minute
	// defaultGitHubClientID is the public client id of the GitHub Copilot editor plugin.
	defaultGitHubClientID = "Iv1.b507a08c87ecfe98"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	googleClient, _ := pluginOAuthClient()

	dataDir := getEnvString("COCKPIT_DATA_DIR", getDefaultDataDir())

	cfg := &Config{
		DataDir:                 dataDir,
		DatabasePath:            getEnvString("DATABASE_PATH", filepath.Join(dataDir, "cockpit.db")),
		LogPath:                 getEnvString("LOG_PATH", filepath.Join(dataDir, "cockpit.log")),
		LogLevel:                getEnvString("LOG_LEVEL", "info"),
		DownloadsDir:            getEnvString("DOWNLOADS_DIR", DefaultDownloadsDir()),
		AntigravityAccountsPath: getEnvString("ANTIGRAVITY_ACCOUNTS_PATH", getDefaultAntigravityAccountsPath()),
		GoogleClientID:          getEnvString("GOOGLE_CLIENT_ID", googleClient.ID),
		GoogleClientSecret:      getEnvString("GOOGLE_CLIENT_SECRET", googleClient.Secret),
		GitHubClientID:          getEnvString("GITHUB_CLIENT_ID", defaultGitHubClientID),
		QuotaRefreshInterval:    getEnvDuration("QUOTA_REFRESH_INTERVAL", defaultQuotaRefreshInterval),
		Locale:                  getEnvString("COCKPIT_LOCALE", getSystemLocale()),
		PrivacyDefault:          getEnvBool("COCKPIT_PRIVACY_MODE", false),
	}

	if err := ensureDir(cfg.DataDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AccountsPath returns the account index file of one platform.
func (c *Config) AccountsPath(platform string) string {
	return filepath.Join(c.DataDir, platform+"_accounts.json")
}

// GroupSettingsPath returns the display group settings file.
func (c *Config) GroupSettingsPath() string {
	return filepath.Join(c.DataDir, "group_settings.json")
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "cockpit", ".env"),
			filepath.Join(home, ".cockpit", ".env"),
		)
	}

	return paths
}

// getDefaultDataDir returns the directory holding account indexes and the database.
func getDefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cockpit"
	}
	return filepath.Join(home, ".config", "cockpit")
}

// getDefaultAntigravityAccountsPath returns the opencode plugin accounts file.
func getDefaultAntigravityAccountsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "antigravity-accounts.json"
	}
	return filepath.Join(home, ".config", "opencode", "antigravity-accounts.json")
}

// DefaultDownloadsDir resolves the user's downloads directory. Windows keeps
// it under USERPROFILE; elsewhere XDG_DOWNLOAD_DIR wins over ~/Downloads.
func DefaultDownloadsDir() string {
	if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return filepath.Join(profile, "Downloads")
		}
	}
	if xdg := os.Getenv("XDG_DOWNLOAD_DIR"); xdg != "" {
		return xdg
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// getSystemLocale derives a BCP 47 tag from LANG/LC_ALL, e.g. zh_CN.UTF-8 -> zh-CN.
func getSystemLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return "en"
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}

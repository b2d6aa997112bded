package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("TEST_ENV_STRING", "test_value")

	if got := getEnvString("TEST_ENV_STRING", "default"); got != "test_value" {
		t.Errorf("getEnvString() = %q, want %q", got, "test_value")
	}
	if got := getEnvString("NON_EXISTENT_COCKPIT_KEY", "default"); got != "default" {
		t.Errorf("getEnvString() = %q, want %q", got, "default")
	}
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_ENV_DURATION"

	tests := []struct {
		name       string
		envVal     string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"ValidDuration", "1m", time.Second, time.Minute},
		{"ValidSeconds", "60", time.Second, 60 * time.Second},
		{"Invalid", "invalid", time.Second, time.Second},
		{"Empty", "", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.envVal)
			if got := getEnvDuration(key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		envVal string
		def    bool
		want   bool
	}{
		{"true", false, true},
		{"0", true, false},
		{"nope", true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Setenv("TEST_ENV_BOOL", tt.envVal)
		if got := getEnvBool("TEST_ENV_BOOL", tt.def); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.envVal, tt.def, got, tt.want)
		}
	}
}

func TestGetSystemLocale(t *testing.T) {
	tests := []struct {
		name string
		lang string
		want string
	}{
		{"ChineseUTF8", "zh_CN.UTF-8", "zh-CN"},
		{"Modifier", "de_DE@euro", "de-DE"},
		{"POSIX", "C", "en"},
		{"Unset", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LC_ALL", "")
			t.Setenv("LC_MESSAGES", "")
			t.Setenv("LANG", tt.lang)
			if got := getSystemLocale(); got != tt.want {
				t.Errorf("getSystemLocale() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir")

	if err := ensureDir(path); err != nil {
		t.Fatalf("ensureDir() failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("directory was not created")
	}
	if err := ensureDir(""); err != nil {
		t.Error("ensureDir(\"\") should not error")
	}
}

func TestGetEnvPaths(t *testing.T) {
	paths := getEnvPaths()
	if len(paths) == 0 {
		t.Fatal("getEnvPaths() returned empty list")
	}

	cwd, _ := os.Getwd()
	if paths[0] != filepath.Join(cwd, ".env") {
		t.Errorf("first env path = %q, want current directory .env", paths[0])
	}
}

func TestDefaultDownloadsDir_XDG(t *testing.T) {
	t.Setenv("XDG_DOWNLOAD_DIR", "/data/dl")
	if got := DefaultDownloadsDir(); got != "/data/dl" && os.Getenv("USERPROFILE") == "" {
		t.Errorf("DefaultDownloadsDir() = %q, want /data/dl", got)
	}
}

func TestParseOAuthClient(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    oauthClient
		wantOK  bool
	}{
		{
			name: "both declared",
			content: `
export declare const ANTIGRAVITY_CLIENT_SECRET = "client-secret-456";
export declare const ANTIGRAVITY_CLIENT_ID = "client-id-123";
`,
			want:   oauthClient{ID: "client-id-123", Secret: "client-secret-456"},
			wantOK: true,
		},
		{name: "empty"},
		{
			name:    "missing id",
			content: `export declare const ANTIGRAVITY_CLIENT_SECRET = "secret";`,
			want:    oauthClient{Secret: "secret"},
		},
		{
			name:    "missing secret",
			content: `export declare const ANTIGRAVITY_CLIENT_ID = "id";`,
			want:    oauthClient{ID: "id"},
		},
		{name: "garbage", content: "some random text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseOAuthClient(tt.content)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseOAuthClient() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("COCKPIT_DATA_DIR", filepath.Join(tmpDir, "data"))
	t.Setenv("DATABASE_PATH", filepath.Join(tmpDir, "db", "cockpit.db"))
	t.Setenv("GOOGLE_CLIENT_ID", "test-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "test-secret")
	t.Setenv("QUOTA_REFRESH_INTERVAL", "90s")
	t.Setenv("COCKPIT_LOCALE", "zh-CN")
	t.Setenv("COCKPIT_PRIVACY_MODE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.GoogleClientID != "test-id" {
		t.Errorf("GoogleClientID = %q, want test-id", cfg.GoogleClientID)
	}
	if cfg.QuotaRefreshInterval != 90*time.Second {
		t.Errorf("QuotaRefreshInterval = %v, want 90s", cfg.QuotaRefreshInterval)
	}
	if cfg.Locale != "zh-CN" {
		t.Errorf("Locale = %q, want zh-CN", cfg.Locale)
	}
	if !cfg.PrivacyDefault {
		t.Error("PrivacyDefault should be true")
	}
	if cfg.GitHubClientID != defaultGitHubClientID {
		t.Errorf("GitHubClientID = %q, want default", cfg.GitHubClientID)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "db")); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
	if got := cfg.AccountsPath("codex"); got != filepath.Join(tmpDir, "data", "codex_accounts.json") {
		t.Errorf("AccountsPath() = %q", got)
	}
}

func TestLoad_WithEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	content := "GOOGLE_CLIENT_ID=env-id\nGOOGLE_CLIENT_SECRET=env-secret\nCOCKPIT_DATA_DIR=" + filepath.Join(tmpDir, "data")
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Chdir(tmpDir)
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("COCKPIT_DATA_DIR", "")
	os.Unsetenv("GOOGLE_CLIENT_ID")
	os.Unsetenv("COCKPIT_DATA_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.GoogleClientID != "env-id" {
		t.Errorf("GoogleClientID = %q, want env-id", cfg.GoogleClientID)
	}
}

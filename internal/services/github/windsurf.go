package github

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	// Import modernc.org/sqlite to read the editor state database
	_ "modernc.org/sqlite"

	"github.com/j-veylop/cockpit-tui/internal/logger"
)

// WindsurfStatusURL is the Codeium seat service method returning plan and credits.
const WindsurfStatusURL = "https://server.codeium.com/exa.seat_management_pb.SeatManagementService/GetUserStatus"

// WindsurfStatus holds the raw user and plan payloads.
type WindsurfStatus struct {
	UserStatus map[string]any
	PlanStatus map[string]any
	PlanName   string
}

// FetchWindsurfStatus asks the seat service for the status of an API key.
func (c *Client) FetchWindsurfStatus(ctx context.Context, url, apiKey string) (*WindsurfStatus, error) {
	if apiKey == "" {
		return nil, errors.New("windsurf api key is empty")
	}
	if url == "" {
		url = WindsurfStatusURL
	}

	body, _ := json.Marshal(map[string]any{
		"metadata": map[string]string{
			"apiKey":           apiKey,
			"ideName":          "windsurf",
			"ideVersion":       "1.0.0",
			"extensionName":    "windsurf",
			"extensionVersion": "1.0.0",
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create windsurf status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Connect-Protocol-Version", "1")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("windsurf status request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read windsurf status: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("windsurf status failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload struct {
		UserStatus map[string]any `json:"userStatus"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse windsurf status: %w", err)
	}
	return statusFrom(payload.UserStatus), nil
}

func statusFrom(user map[string]any) *WindsurfStatus {
	s := &WindsurfStatus{UserStatus: user}
	if plan, ok := user["planStatus"].(map[string]any); ok {
		s.PlanStatus = plan
		if info, ok := plan["planInfo"].(map[string]any); ok {
			s.PlanName, _ = info["planName"].(string)
		}
	}
	return s
}

// WindsurfLocal is the signed-in session found in a Windsurf installation.
type WindsurfLocal struct {
	Status *WindsurfStatus
	APIKey string
	Name   string
	Email  string
}

// DefaultWindsurfStateDB returns the state.vscdb path of a default Windsurf install.
func DefaultWindsurfStateDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Windsurf", "User", "globalStorage", "state.vscdb")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Windsurf", "User", "globalStorage", "state.vscdb")
	default:
		return filepath.Join(home, ".config", "Windsurf", "User", "globalStorage", "state.vscdb")
	}
}

// ReadWindsurfState reads the windsurfAuthStatus entry of the editor's
// key/value store. The database is opened read-only.
func ReadWindsurfState(ctx context.Context, path string) (*WindsurfLocal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("windsurf state not found: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open windsurf state: %w", err)
	}
	defer func() { _ = db.Close() }()

	var raw string
	err = db.QueryRowContext(ctx, "SELECT value FROM ItemTable WHERE key = ?", "windsurfAuthStatus").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("windsurf is not signed in")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read windsurf auth status: %w", err)
	}

	var auth map[string]any
	if err := json.Unmarshal([]byte(raw), &auth); err != nil {
		return nil, fmt.Errorf("failed to parse windsurf auth status: %w", err)
	}

	local := &WindsurfLocal{}
	local.APIKey, _ = auth["apiKey"].(string)
	local.Name, _ = auth["name"].(string)
	local.Email, _ = auth["email"].(string)
	if user, ok := auth["userStatus"].(map[string]any); ok {
		local.Status = statusFrom(user)
		if local.Email == "" {
			local.Email, _ = user["email"].(string)
		}
		if local.Name == "" {
			local.Name, _ = user["name"].(string)
		}
	}
	if local.APIKey == "" {
		return nil, errors.New("windsurf auth status has no api key")
	}
	return local, nil
}

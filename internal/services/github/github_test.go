package github

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/j-veylop/cockpit-tui/internal/models"
)

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token gho_ok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"login":"octo","name":"Octo Cat","id":42}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"email":"alt@x.com","primary":false,"verified":true},{"email":"octo@x.com","primary":true,"verified":true}]`))
	})
	mux.HandleFunc("/copilot_internal/user", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"copilot_plan":"individual",
			"quota_reset_date_utc":"2030-01-01T00:00:00Z",
			"quota_snapshots":{
				"chat":{"unlimited":true},
				"completions":{"unlimited":true},
				"premium_interactions":{"entitlement":300,"remaining":120,"percent_remaining":40,"unlimited":false}
			}
		}`))
	})
	return httptest.NewServer(mux)
}

func testClient(srv *httptest.Server) *Client {
	c := NewClient(srv.Client(), "")
	c.APIBase = srv.URL
	return c
}

func TestFetchIdentity(t *testing.T) {
	srv := apiServer(t)
	defer srv.Close()
	c := testClient(srv)

	id, err := c.FetchIdentity(context.Background(), " gho_ok ", "bearer", "read:user")
	if err != nil {
		t.Fatalf("FetchIdentity() error = %v", err)
	}
	if id.GitHubLogin != "octo" || id.GitHubEmail != "octo@x.com" || id.GitHubID != 42 || id.GitHubAccessToken != "gho_ok" {
		t.Errorf("FetchIdentity() = %+v", id)
	}

	if _, err := c.FetchIdentity(context.Background(), "gho_bad", "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("FetchIdentity(bad) error = %v, want ErrUnauthorized", err)
	}
	if _, err := c.FetchIdentity(context.Background(), "  ", "", ""); err == nil {
		t.Error("FetchIdentity(empty) should fail")
	}
}

func TestFetchCopilot(t *testing.T) {
	srv := apiServer(t)
	defer srv.Close()

	status, err := testClient(srv).FetchCopilot(context.Background(), "gho_ok")
	if err != nil {
		t.Fatalf("FetchCopilot() error = %v", err)
	}

	acc := &models.CopilotAccount{}
	status.Apply(acc)
	if acc.CopilotPlan != "individual" || acc.CopilotQuotaResetDate != "2030-01-01T00:00:00Z" {
		t.Errorf("Apply() plan/reset = %q/%q", acc.CopilotPlan, acc.CopilotQuotaResetDate)
	}
	premium, _ := acc.CopilotQuotaSnapshots["premium_interactions"].(map[string]any)
	if premium["entitlement"] != float64(300) {
		t.Errorf("premium snapshot = %v", premium)
	}
}

func TestDeviceFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/device", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "dev-1",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://github.com/login/device",
			"expires_in":       900,
			"interval":         1,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("device_code") != "dev-1" {
			t.Errorf("device_code = %q", r.PostForm.Get("device_code"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_ok","token_type":"bearer","scope":"read:user"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.Client(), "client-1")
	c.Endpoint = oauth2.Endpoint{DeviceAuthURL: srv.URL + "/device", TokenURL: srv.URL + "/token"}

	da, err := c.StartDevice(context.Background())
	if err != nil {
		t.Fatalf("StartDevice() error = %v", err)
	}
	if da.UserCode != "ABCD-1234" || da.VerificationURI == "" {
		t.Errorf("StartDevice() = %+v", da)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tok, err := c.PollDevice(ctx, da)
	if err != nil {
		t.Fatalf("PollDevice() error = %v", err)
	}
	if tok.AccessToken != "gho_ok" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
}

func TestFetchWindsurfStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["metadata"]["apiKey"] != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"userStatus":{"email":"w@x.com","planStatus":{"planInfo":{"planName":"Pro"},"availablePromptCredits":50000,"usedPromptCredits":1000}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "")
	status, err := c.FetchWindsurfStatus(context.Background(), srv.URL, "key-1")
	if err != nil {
		t.Fatalf("FetchWindsurfStatus() error = %v", err)
	}
	if status.PlanName != "Pro" || status.PlanStatus["usedPromptCredits"] != float64(1000) {
		t.Errorf("FetchWindsurfStatus() = %+v", status)
	}

	if _, err := c.FetchWindsurfStatus(context.Background(), srv.URL, "wrong"); err == nil {
		t.Error("FetchWindsurfStatus(wrong key) should fail")
	}
	if _, err := c.FetchWindsurfStatus(context.Background(), srv.URL, ""); err == nil {
		t.Error("FetchWindsurfStatus(empty key) should fail")
	}
}

func TestReadWindsurfState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.vscdb")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB)`); err != nil {
		t.Fatal(err)
	}
	auth := `{"apiKey":"key-1","name":"Wind","userStatus":{"email":"w@x.com","planStatus":{"planInfo":{"planName":"Teams"}}}}`
	if _, err := db.Exec(`INSERT INTO ItemTable (key, value) VALUES ('windsurfAuthStatus', ?)`, auth); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	local, err := ReadWindsurfState(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadWindsurfState() error = %v", err)
	}
	if local.APIKey != "key-1" || local.Email != "w@x.com" || local.Name != "Wind" || local.Status.PlanName != "Teams" {
		t.Errorf("ReadWindsurfState() = %+v", local)
	}

	if _, err := ReadWindsurfState(context.Background(), filepath.Join(t.TempDir(), "missing.vscdb")); err == nil {
		t.Error("ReadWindsurfState(missing) should fail")
	}
}

func TestReadLocalTokens(t *testing.T) {
	dir := t.TempDir()
	apps := `{
		"github.com:Iv1.b507a08c87ecfe98": {"user":"octo","oauth_token":"gho_1","githubAppId":"Iv1.b507a08c87ecfe98"},
		"ghe.example.com:Iv1.x": {"user":"corp","oauth_token":"gho_corp"}
	}`
	hosts := `{"github.com": {"user":"octo","oauth_token":"gho_1"}}`
	if err := os.WriteFile(filepath.Join(dir, "apps.json"), []byte(apps), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "hosts.json"), []byte(hosts), 0o600); err != nil {
		t.Fatal(err)
	}

	tokens, err := ReadLocalTokens(dir)
	if err != nil {
		t.Fatalf("ReadLocalTokens() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].Token != "gho_1" || tokens[0].User != "octo" {
		t.Errorf("ReadLocalTokens() = %+v, want one github.com token", tokens)
	}

	if _, err := ReadLocalTokens(t.TempDir()); err == nil {
		t.Error("ReadLocalTokens(empty dir) should fail")
	}
}

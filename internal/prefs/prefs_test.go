package prefs

import (
	"path/filepath"
	"testing"

	"github.com/j-veylop/cockpit-tui/internal/db"
)

func TestKeys(t *testing.T) {
	if got := CurrentAccountKey("codex"); got != "codex.current_account_id" {
		t.Errorf("CurrentAccountKey() = %q", got)
	}
	if got := FlowNoticeKey("kiro"); got != "kiro.flow_notice_collapsed" {
		t.Errorf("FlowNoticeKey() = %q", got)
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": NewSQLite(database),
	}
}

func TestStores(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok := s.Get("missing"); ok {
				t.Error("Get(missing) reported present")
			}
			if err := s.Set("k", "v1"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set("k", "v2"); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			if v, ok := s.Get("k"); !ok || v != "v2" {
				t.Errorf("Get() = %q, %v; want v2", v, ok)
			}
			if err := s.Remove("k"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if _, ok := s.Get("k"); ok {
				t.Error("Get() after Remove reported present")
			}
		})
	}
}

func TestBoolHelpers(t *testing.T) {
	s := NewMemory()

	if !GetBool(s, KeyPrivacyMode, true) {
		t.Error("GetBool() should return fallback when unset")
	}
	if err := SetBool(s, KeyPrivacyMode, false); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if GetBool(s, KeyPrivacyMode, true) {
		t.Error("GetBool() = true after SetBool(false)")
	}
	_ = s.Set(KeyPrivacyMode, "garbage")
	if GetBool(s, KeyPrivacyMode, false) {
		t.Error("GetBool() should fall back on unparsable value")
	}
}

package services

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/config"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services/store"
)

type recordedNote struct{ title, body string }

type fakeNotifier struct {
	notes []recordedNote
	mu    sync.Mutex
}

func (f *fakeNotifier) notify(title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, recordedNote{title, body})
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

func newTestManager(t *testing.T) (*Manager, *fakeNotifier) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))

	cfg := &config.Config{
		DataDir:      tmpDir,
		DatabasePath: filepath.Join(tmpDir, "test.db"),
	}
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	n := &fakeNotifier{}
	mgr.notify = n.notify
	return mgr, n
}

// nextEvent skips the load events the stores emit on startup.
func nextEvent(t *testing.T, ch <-chan ServiceEvent) ServiceEvent {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if changed, ok := ev.(AccountsChangedEvent); ok && changed.Type == store.EventLoaded {
				continue
			}
			return ev
		case <-time.After(time.Second):
			t.Fatal("no event delivered")
			return nil
		}
	}
}

func TestNewManager(t *testing.T) {
	mgr, _ := newTestManager(t)

	services := mgr.Services()
	if len(services) != len(models.AllPlatforms) {
		t.Fatalf("Services() = %d, want %d", len(services), len(models.AllPlatforms))
	}
	for i, svc := range services {
		if svc.Platform() != models.AllPlatforms[i] {
			t.Errorf("Services()[%d] = %s, want %s", i, svc.Platform(), models.AllPlatforms[i])
		}
	}
	if mgr.Service(models.PlatformCodex) == nil {
		t.Error("Service(codex) is nil")
	}
	if mgr.Database() == nil || mgr.Prefs() == nil || mgr.Groups() == nil {
		t.Error("database, prefs and groups should be initialized")
	}

	if err := mgr.Prefs().Set("privacy_mode", "true"); err != nil {
		t.Fatal(err)
	}
	if v, ok := mgr.Prefs().Get("privacy_mode"); !ok || v != "true" {
		t.Errorf("Prefs().Get() = %q, %v", v, ok)
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr, _ := newTestManager(t)

	ch, cmd := mgr.Subscribe()
	if cmd == nil {
		t.Fatal("Subscribe() returned nil cmd")
	}

	mgr.broadcast(ErrorEvent{Service: "test", Error: errors.New("boom")})
	if ev, ok := nextEvent(t, ch).(ErrorEvent); !ok || ev.Service != "test" {
		t.Errorf("received %#v", ev)
	}

	mgr.Unsubscribe(ch)
	for range ch {
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan ServiceEvent, 1)
	ch <- QuotaPolledEvent{Platform: models.PlatformKiro, Refreshed: 2}

	msg := WaitForEvent(ch)()
	if ev, ok := msg.(QuotaPolledEvent); !ok || ev.Refreshed != 2 {
		t.Errorf("WaitForEvent() = %#v", msg)
	}

	close(ch)
	if msg := WaitForEvent(ch)(); msg != nil {
		t.Errorf("WaitForEvent(closed) = %#v, want nil", msg)
	}
}

func TestManager_HandleStoreEvent(t *testing.T) {
	mgr, notes := newTestManager(t)
	ch, _ := mgr.Subscribe()

	mgr.handleStoreEvent(models.PlatformCodex, store.Event{Type: store.EventAdded, IDs: []string{"a"}})
	mgr.handleStoreEvent(models.PlatformCodex, store.Event{Type: store.EventError, Error: errors.New("bad file")})

	first := nextEvent(t, ch)
	if ev, ok := first.(AccountsChangedEvent); !ok || ev.Platform != models.PlatformCodex || ev.IDs[0] != "a" {
		t.Errorf("first event = %#v", first)
	}
	second := nextEvent(t, ch)
	if ev, ok := second.(ErrorEvent); !ok || ev.Service != "codex" {
		t.Errorf("second event = %#v", second)
	}
	if notes.count() != 1 {
		t.Errorf("notifications = %d, want 1 for the added account", notes.count())
	}
}

func copilotAt(percent float64) *models.CopilotAccount {
	return &models.CopilotAccount{
		Base:           models.Base{ID: "c1"},
		GitHubIdentity: models.GitHubIdentity{GitHubLogin: "octo"},
		CopilotQuotaSnapshots: map[string]any{
			"premium_interactions": map[string]any{"percent_remaining": percent},
		},
	}
}

func TestManager_CheckNotifications(t *testing.T) {
	tests := []struct {
		name     string
		percents []float64
		want     int
	}{
		{"first sighting is silent", []float64{3}, 0},
		{"crossing critical", []float64{40, 3}, 1},
		{"staying critical", []float64{3, 2}, 0},
		{"reset jump", []float64{10, 90}, 1},
		{"small rise", []float64{10, 25}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, notes := newTestManager(t)
			for _, p := range tt.percents {
				mgr.checkNotifications(copilotAt(p))
			}
			if notes.count() != tt.want {
				t.Errorf("notifications = %d, want %d", notes.count(), tt.want)
			}
		})
	}
}

func TestManager_Close(t *testing.T) {
	mgr, _ := newTestManager(t)
	ch, _ := mgr.Subscribe()

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for range ch {
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

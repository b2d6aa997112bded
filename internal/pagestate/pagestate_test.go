package pagestate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/prefs"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend records calls and serves an in-memory account list.
type fakeBackend struct {
	startErr    error
	completeErr error
	switchErr   error
	deleteErr   error
	tagErr      map[string]error
	tokenErr    map[string]error
	// gate, when set, holds CompleteLogin until closed or cancelled.
	gate      chan struct{}
	calls     map[string]int
	accounts  []models.Account
	cancelled []string
	active    string
	mu        sync.Mutex
	logins    int
}

func newFakeBackend(accounts ...models.Account) *fakeBackend {
	return &fakeBackend{accounts: accounts, calls: map[string]int{}}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) find(id string) models.Account {
	for _, acc := range f.accounts {
		if acc.Meta().ID == id {
			return acc
		}
	}
	return nil
}

func (f *fakeBackend) Platform() models.Platform { return models.PlatformCopilot }

func (f *fakeBackend) ListAccounts(context.Context) ([]models.Account, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.accounts), nil
}

func (f *fakeBackend) ActiveAccount() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeBackend) Switch(_ context.Context, id string) error {
	f.record("switch")
	if f.switchErr != nil {
		return f.switchErr
	}
	f.mu.Lock()
	f.active = id
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) remove(ids ...string) {
	f.accounts = slices.DeleteFunc(f.accounts, func(a models.Account) bool {
		return slices.Contains(ids, a.Meta().ID)
	})
}

func (f *fakeBackend) DeleteAccount(_ context.Context, id string) error {
	f.record("delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	f.remove(id)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) DeleteAccounts(_ context.Context, ids []string) error {
	f.record("deleteMany")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	f.remove(ids...)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) RefreshAccount(_ context.Context, id string) (models.Account, error) {
	f.record("refresh")
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc := f.find(id); acc != nil {
		return acc, nil
	}
	return nil, errors.New("account not found")
}

func (f *fakeBackend) RefreshAll(context.Context) (int, error) {
	f.record("refreshAll")
	return len(f.accounts), nil
}

func (f *fakeBackend) UpdateTags(_ context.Context, id string, tags []string) (models.Account, error) {
	f.record("tags")
	if err := f.tagErr[id]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.find(id)
	if acc == nil {
		return nil, errors.New("account not found")
	}
	acc.Meta().Tags = models.NormalizeTags(tags)
	return acc, nil
}

func (f *fakeBackend) ImportJSON(_ context.Context, content string) ([]models.Account, error) {
	f.record("importJSON")
	if !strings.HasPrefix(strings.TrimSpace(content), "[") {
		return nil, errors.New("invalid JSON")
	}
	acc := copilot("imported", 10, "pro")
	f.mu.Lock()
	f.accounts = append(f.accounts, acc)
	f.mu.Unlock()
	return []models.Account{acc}, nil
}

func (f *fakeBackend) ImportLocal(context.Context) ([]models.Account, error) {
	f.record("importLocal")
	return nil, errors.New("no local installation found")
}

func (f *fakeBackend) AddWithToken(_ context.Context, token string) (models.Account, error) {
	f.record("token")
	if err := f.tokenErr[token]; err != nil {
		return nil, err
	}
	acc := copilot("tok-"+token, 10, "pro")
	f.mu.Lock()
	f.accounts = append(f.accounts, acc)
	f.mu.Unlock()
	return acc, nil
}

func (f *fakeBackend) ExportJSON(_ context.Context, ids []string) (string, error) {
	f.record("export")
	return fmt.Sprintf(`[{"ids":%q}]`, strings.Join(ids, ",")), nil
}

func (f *fakeBackend) StartLogin(context.Context) (models.LoginStart, error) {
	f.record("start")
	if f.startErr != nil {
		return models.LoginStart{}, f.startErr
	}
	f.mu.Lock()
	f.logins++
	n := f.logins
	f.mu.Unlock()
	return models.LoginStart{
		LoginID:         fmt.Sprintf("login-%d", n),
		URL:             "https://github.com/login/device",
		UserCode:        "ABCD-1234",
		ExpiresIn:       900,
		IntervalSeconds: 5,
	}, nil
}

func (f *fakeBackend) CompleteLogin(ctx context.Context, loginID string) (models.Account, error) {
	f.record("complete")
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	acc := copilot("oauth-"+loginID, 20, "pro")
	f.mu.Lock()
	f.accounts = append(f.accounts, acc)
	f.mu.Unlock()
	return acc, nil
}

func (f *fakeBackend) CancelLogin(_ context.Context, loginID string) error {
	f.record("cancel")
	f.mu.Lock()
	f.cancelled = append(f.cancelled, loginID)
	f.mu.Unlock()
	return nil
}

func copilot(id string, created int64, plan string, tags ...string) *models.CopilotAccount {
	return &models.CopilotAccount{
		Base:           models.Base{ID: id, CreatedAt: created, Tags: tags},
		GitHubIdentity: models.GitHubIdentity{GitHubLogin: id},
		CopilotPlan:    plan,
	}
}

func newTestPage(t *testing.T, backend *fakeBackend, mutate ...func(*Config)) (*Page, *prefs.Memory) {
	t.Helper()
	store := prefs.NewMemory()
	cfg := Config{
		Platform: models.PlatformCopilot,
		Service:  backend,
		Prefs:    store,
		Now:      func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	p := New(cfg)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return p, store
}

func visibleIDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.Account.Meta().ID
	}
	return ids
}

func TestVisible_SortCreated(t *testing.T) {
	p, _ := newTestPage(t, newFakeBackend(
		copilot("A", 1, "pro"),
		copilot("B", 3, "pro"),
		copilot("C", 2, "pro"),
	))

	if got := visibleIDs(p.Visible()); !slices.Equal(got, []string{"B", "C", "A"}) {
		t.Errorf("desc order = %v, want [B C A]", got)
	}
	p.ToggleSortDirection()
	if got := visibleIDs(p.Visible()); !slices.Equal(got, []string{"A", "C", "B"}) {
		t.Errorf("asc order = %v, want [A C B]", got)
	}
}

func TestVisible_NilValuesSortLast(t *testing.T) {
	x := copilot("x", 1, "pro")
	x.CopilotQuotaResetDate = "2026-04-10T00:00:00Z"
	y := copilot("y", 2, "pro")
	z := copilot("z", 3, "pro")
	z.CopilotQuotaResetDate = "2026-04-05T00:00:00Z"
	p, _ := newTestPage(t, newFakeBackend(x, y, z))
	p.SetSortKey(SortPlanEnd)

	if got := visibleIDs(p.Visible()); !slices.Equal(got, []string{"x", "z", "y"}) {
		t.Errorf("desc order = %v, want [x z y]", got)
	}
	p.ToggleSortDirection()
	if got := visibleIDs(p.Visible()); !slices.Equal(got, []string{"z", "x", "y"}) {
		t.Errorf("asc order = %v, want [z x y]", got)
	}
}

func TestVisible_SortQuota(t *testing.T) {
	values := map[string]float64{"a": 40, "c": 90}
	p, _ := newTestPage(t, newFakeBackend(
		copilot("a", 1, "pro"),
		copilot("b", 2, "pro"),
		copilot("c", 3, "pro"),
	), func(c *Config) {
		c.QuotaValue = func(acc models.Account, _ presentation.AccountPresentation) *float64 {
			if v, ok := values[acc.Meta().ID]; ok {
				return &v
			}
			return nil
		}
	})
	p.SetSortKey(SortQuota)
	if got := visibleIDs(p.Visible()); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("quota order = %v, want [c a b]", got)
	}
}

func TestVisible_Filters(t *testing.T) {
	backend := newFakeBackend(
		copilot("Alice", 1, "business", "work"),
		copilot("bob", 2, "individual", "home", "work"),
		copilot("carol", 3, "free", "home"),
		copilot("dave", 4, "free"),
	)
	p, _ := newTestPage(t, backend, func(c *Config) {
		c.SearchFields = func(acc models.Account) []string {
			return []string{"uid-" + acc.Meta().ID}
		}
	})

	tests := []struct {
		name   string
		search string
		class  string
		tags   []string
		want   []string
	}{
		{name: "all", want: []string{"dave", "carol", "bob", "Alice"}},
		{name: "case insensitive", search: "ALI", want: []string{"Alice"}},
		{name: "extra fields", search: "uid-car", want: []string{"carol"}},
		{name: "plan class", class: "Free", want: []string{"dave", "carol"}},
		{name: "tag or", tags: []string{"HOME", "work"}, want: []string{"carol", "bob", "Alice"}},
		{name: "combined", class: "free", tags: []string{"home"}, want: []string{"carol"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.SetSearch(tt.search)
			p.SetTypeFilter(tt.class)
			p.ClearTagFilter()
			for _, tag := range tt.tags {
				p.ToggleTagFilter(tag)
			}
			if got := visibleIDs(p.Visible()); !slices.Equal(got, tt.want) {
				t.Errorf("Visible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupByTag(t *testing.T) {
	p, _ := newTestPage(t, newFakeBackend(
		copilot("both", 3, "pro", "y", "x"),
		copilot("plain", 2, "pro"),
		copilot("only-x", 1, "pro", "X"),
	))

	groups := p.GroupByTag()
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	if groups[0].Tag != "x" || groups[1].Tag != "y" || groups[2].Tag != "" {
		t.Errorf("bucket order = %q %q %q, want x y untagged", groups[0].Tag, groups[1].Tag, groups[2].Tag)
	}
	if got := visibleIDs(groups[0].Items); !slices.Equal(got, []string{"both", "only-x"}) {
		t.Errorf("x bucket = %v", got)
	}
	if got := visibleIDs(groups[1].Items); !slices.Equal(got, []string{"both"}) {
		t.Errorf("y bucket = %v", got)
	}
	if groups[2].Label != "Untagged" || len(groups[2].Items) != 1 {
		t.Errorf("untagged bucket = %+v", groups[2])
	}

	p.ToggleTagFilter("y")
	groups = p.GroupByTag()
	if len(groups) != 1 || groups[0].Tag != "y" {
		t.Errorf("filtered groups = %+v, want only y", groups)
	}
}

func TestAllTags(t *testing.T) {
	p, _ := newTestPage(t, newFakeBackend(
		copilot("a", 1, "pro", "Work", "home"),
		copilot("b", 2, "pro", " work "),
	))
	if got := p.AllTags(); !slices.Equal(got, []string{"home", "work"}) {
		t.Errorf("AllTags() = %v", got)
	}
}

func TestDeleteTag(t *testing.T) {
	backend := newFakeBackend(
		copilot("a", 1, "pro", "old", "keep"),
		copilot("b", 2, "pro", "old"),
		copilot("c", 3, "pro", "keep"),
	)
	backend.tagErr = map[string]error{"b": errors.New("disk full")}
	p, _ := newTestPage(t, backend)
	p.ToggleTagFilter("old")
	p.ToggleTagFilter("keep")

	results := p.DeleteTag(context.Background(), "OLD")

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ID != "a" || results[0].Err != nil {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].ID != "b" || results[1].Err == nil {
		t.Errorf("results[1] = %+v, want error", results[1])
	}
	if got := backend.count("tags"); got != 2 {
		t.Errorf("UpdateTags calls = %d, want 2", got)
	}
	if got := p.Filters().Tags; !slices.Equal(got, []string{"keep"}) {
		t.Errorf("tag filter = %v, want [keep]", got)
	}
	if got := p.AllTags(); !slices.Equal(got, []string{"keep", "old"}) {
		t.Errorf("AllTags() = %v, b keeps its tag after the failed update", got)
	}
	if p.Message().Tone != ToneError {
		t.Errorf("message tone = %q, want error", p.Message().Tone)
	}
}

func TestConfirmDelete(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		backend := newFakeBackend(copilot("a", 1, "pro"), copilot("b", 2, "pro"))
		p, _ := newTestPage(t, backend)
		p.ToggleSelect("a")

		if got := p.ConfirmDelete(context.Background()); got != nil {
			t.Errorf("ConfirmDelete() without request = %v, want nil", got)
		}
		p.RequestDelete([]string{"a"})
		if got := p.DeleteConfirm(); !slices.Equal(got, []string{"a"}) {
			t.Fatalf("DeleteConfirm() = %v", got)
		}
		results := p.ConfirmDelete(context.Background())
		if len(results) != 1 || results[0].Err != nil {
			t.Fatalf("results = %+v", results)
		}
		if backend.count("delete") != 1 || backend.count("deleteMany") != 0 {
			t.Errorf("delete calls = %v", backend.calls)
		}
		if p.DeleteConfirm() != nil || p.IsSelected("a") {
			t.Error("confirmation and selection should be cleared")
		}
		if len(p.Accounts()) != 1 {
			t.Errorf("len(Accounts()) = %d, want 1", len(p.Accounts()))
		}
	})

	t.Run("batch failure still prunes selection", func(t *testing.T) {
		backend := newFakeBackend(copilot("a", 1, "pro"), copilot("b", 2, "pro"), copilot("c", 3, "pro"))
		backend.deleteErr = errors.New("locked")
		p, _ := newTestPage(t, backend)
		p.SelectAll([]string{"a", "b", "c"})
		p.RequestDelete([]string{"a", "b"})

		results := p.ConfirmDelete(context.Background())
		if len(results) != 2 || results[0].Err == nil || results[1].Err == nil {
			t.Fatalf("results = %+v, want two failures", results)
		}
		if backend.count("deleteMany") != 1 {
			t.Errorf("DeleteAccounts calls = %d, want 1", backend.count("deleteMany"))
		}
		if got := p.Selected(); !slices.Equal(got, []string{"c"}) {
			t.Errorf("Selected() = %v, want [c]", got)
		}
		if p.Message().Tone != ToneError {
			t.Errorf("message tone = %q, want error", p.Message().Tone)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		backend := newFakeBackend(copilot("a", 1, "pro"))
		p, _ := newTestPage(t, backend)
		p.RequestDelete([]string{"a"})
		p.CancelDelete()
		p.ConfirmDelete(context.Background())
		if backend.count("delete") != 0 {
			t.Error("cancelled delete reached the backend")
		}
	})
}

func TestSelectAll(t *testing.T) {
	p, _ := newTestPage(t, newFakeBackend(copilot("a", 1, "pro"), copilot("b", 2, "pro")))
	p.ToggleSelect("a")
	p.SelectAll([]string{"a", "b"})
	if got := p.Selected(); len(got) != 2 {
		t.Errorf("Selected() = %v, want both", got)
	}
	p.SelectAll([]string{"a", "b"})
	if got := p.Selected(); len(got) != 0 {
		t.Errorf("Selected() = %v, want none after second SelectAll", got)
	}
}

func TestCurrentAccount(t *testing.T) {
	backend := newFakeBackend(copilot("a", 1, "pro"), copilot("b", 2, "pro"))
	p, store := newTestPage(t, backend)
	ctx := context.Background()

	p.SetCurrent(ctx, "b")
	if p.CurrentID() != "b" {
		t.Errorf("CurrentID() = %q, want b", p.CurrentID())
	}
	key := prefs.CurrentAccountKey(string(models.PlatformCopilot))
	if v, ok := store.Get(key); !ok || v != "b" {
		t.Errorf("prefs[%s] = %q, %v", key, v, ok)
	}

	backend.mu.Lock()
	backend.remove("b")
	backend.active = ""
	backend.mu.Unlock()
	if err := p.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if p.CurrentID() != "" {
		t.Errorf("CurrentID() = %q after account vanished", p.CurrentID())
	}
	if _, ok := store.Get(key); ok {
		t.Error("stale current account preference was not removed")
	}

	backend.switchErr = errors.New("auth file locked")
	p.SetCurrent(ctx, "a")
	if p.CurrentID() != "" || p.Message().Tone != ToneError {
		t.Errorf("failed switch: current = %q, message = %+v", p.CurrentID(), p.Message())
	}
}

func TestCurrentAccount_RefusesBanned(t *testing.T) {
	banned := &models.KiroAccount{Base: models.Base{ID: "k1", CreatedAt: 1}, Email: "a@b.c", Status: "banned"}
	failing := &models.KiroAccount{Base: models.Base{ID: "k2", CreatedAt: 2}, Email: "d@e.f", Status: "error"}
	backend := newFakeBackend(banned, failing)
	p, store := newTestPage(t, backend)
	ctx := context.Background()

	p.SetCurrent(ctx, "k1")
	if backend.count("switch") != 0 {
		t.Errorf("switch calls = %d, want 0", backend.count("switch"))
	}
	if p.CurrentID() != "" {
		t.Errorf("CurrentID() = %q, want empty", p.CurrentID())
	}
	if msg := p.Message(); msg.Tone != ToneError || !strings.Contains(msg.Text, "banned") {
		t.Errorf("Message() = %+v, want a banned error", msg)
	}
	if _, ok := store.Get(prefs.CurrentAccountKey(string(models.PlatformCopilot))); ok {
		t.Error("banned account was persisted as current")
	}

	p.SetCurrent(ctx, "k2")
	if p.CurrentID() != "k2" || backend.count("switch") != 1 {
		t.Errorf("failing account should still switch: current %q, calls %d", p.CurrentID(), backend.count("switch"))
	}
}

func TestCurrentAccount_RestoredFromPrefs(t *testing.T) {
	store := prefs.NewMemory()
	key := prefs.CurrentAccountKey(string(models.PlatformCopilot))
	_ = store.Set(key, "a")
	p := New(Config{Platform: models.PlatformCopilot, Service: newFakeBackend(copilot("a", 1, "pro")), Prefs: store})
	if p.CurrentID() != "a" {
		t.Errorf("CurrentID() = %q, want a", p.CurrentID())
	}
}

func TestRefresh(t *testing.T) {
	backend := newFakeBackend(copilot("a", 1, "pro"))
	p, _ := newTestPage(t, backend)
	ctx := context.Background()

	p.Refresh(ctx, "a")
	if p.IsRefreshing("a") {
		t.Error("IsRefreshing should be false after Refresh returns")
	}
	if p.Message().Tone != ToneSuccess {
		t.Errorf("message = %+v", p.Message())
	}

	p.Refresh(ctx, "missing")
	if p.Message().Tone != ToneError {
		t.Errorf("message = %+v, want error", p.Message())
	}

	p.RefreshAll(ctx)
	if p.RefreshingAll() || backend.count("refreshAll") != 1 {
		t.Errorf("RefreshAll: refreshing = %v, calls = %d", p.RefreshingAll(), backend.count("refreshAll"))
	}
}

func TestOAuth_OpenTriggersOneStartAndOneComplete(t *testing.T) {
	backend := newFakeBackend()
	clock := testNow
	p, _ := newTestPage(t, backend, func(c *Config) {
		c.Now = func() time.Time { return clock }
	})
	ctx := context.Background()

	if p.PrepareOAuth(ctx) {
		t.Fatal("PrepareOAuth() with the modal closed should do nothing")
	}
	p.OpenAdd(TabOAuth)
	if !p.NeedsOAuthPrepare() {
		t.Fatal("NeedsOAuthPrepare() = false on a fresh OAuth tab")
	}
	if !p.PrepareOAuth(ctx) {
		t.Fatal("PrepareOAuth() = false")
	}
	if p.PrepareOAuth(ctx) {
		t.Error("second PrepareOAuth() should be a no-op")
	}

	flow := p.OAuth()
	if flow.State != OAuthPolling || flow.LoginID != "login-1" || flow.UserCode != "ABCD-1234" || flow.IntervalSeconds != 5 {
		t.Fatalf("flow = %+v", flow)
	}

	if !p.CompleteOAuth(ctx) {
		t.Fatal("CompleteOAuth() = false")
	}
	if p.CompleteOAuth(ctx) {
		t.Error("second CompleteOAuth() should be a no-op")
	}
	if backend.count("start") != 1 || backend.count("complete") != 1 {
		t.Errorf("calls = %v, want one start and one complete", backend.calls)
	}
	if backend.count("cancel") != 0 {
		t.Error("a finished login should not be cancelled")
	}

	status := p.AddStatus()
	if p.OAuth().State != OAuthSuccess || status.Phase != PhaseSuccess {
		t.Fatalf("state = %v, status = %+v", p.OAuth().State, status)
	}
	if !status.CloseAt.Equal(testNow.Add(AutoCloseDelay)) {
		t.Errorf("CloseAt = %v, want now+%v", status.CloseAt, AutoCloseDelay)
	}
	if len(p.Accounts()) != 1 {
		t.Errorf("accounts were not re-fetched after login")
	}

	if p.AutoClose(ctx) {
		t.Error("AutoClose() fired before the delay")
	}
	clock = clock.Add(AutoCloseDelay)
	if !p.AutoClose(ctx) || p.AddOpen() {
		t.Error("AutoClose() did not close the modal after the delay")
	}
	if backend.count("cancel") != 0 {
		t.Error("auto close should not cancel a finished login")
	}
}

func TestOAuth_CloseBeforeCompleteCancelsOnce(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	p, _ := newTestPage(t, backend)
	ctx := context.Background()

	p.OpenAdd(TabOAuth)
	p.PrepareOAuth(ctx)

	done := make(chan bool)
	go func() { done <- p.CompleteOAuth(ctx) }()
	waitFor(t, func() bool { return backend.count("complete") == 1 })

	p.CloseAdd(ctx)
	p.CloseAdd(ctx)
	close(backend.gate)

	if <-done {
		t.Error("CompleteOAuth() of an abandoned login reported a result")
	}
	if backend.count("cancel") != 1 {
		t.Fatalf("cancel calls = %d, want 1", backend.count("cancel"))
	}
	if backend.cancelled[0] != "login-1" {
		t.Errorf("cancelled = %v, want login-1", backend.cancelled)
	}
	if p.OAuth().State != OAuthIdle || p.AddOpen() {
		t.Errorf("flow = %+v, open = %v", p.OAuth(), p.AddOpen())
	}
}

func TestOAuth_LeavingTabCancels(t *testing.T) {
	backend := newFakeBackend()
	p, _ := newTestPage(t, backend)
	ctx := context.Background()

	p.OpenAdd(TabOAuth)
	p.PrepareOAuth(ctx)
	p.SetAddTab(ctx, TabToken)
	if backend.count("cancel") != 1 {
		t.Errorf("cancel calls = %d, want 1", backend.count("cancel"))
	}
	if p.CompleteOAuth(ctx) {
		t.Error("CompleteOAuth() after leaving the tab should do nothing")
	}

	p.SetAddTab(ctx, TabOAuth)
	if !p.NeedsOAuthPrepare() {
		t.Error("returning to the OAuth tab should allow a fresh login")
	}
}

func TestOAuth_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("prepare error", func(t *testing.T) {
		backend := newFakeBackend()
		backend.startErr = errors.New("network down")
		p, _ := newTestPage(t, backend)
		p.OpenAdd(TabOAuth)

		if p.PrepareOAuth(ctx) {
			t.Error("PrepareOAuth() = true on error")
		}
		flow := p.OAuth()
		if flow.State != OAuthPrepareFailed || flow.PrepareError != "network down" {
			t.Errorf("flow = %+v", flow)
		}
		if p.CompleteOAuth(ctx) || backend.count("complete") != 0 {
			t.Error("a failed prepare must never reach CompleteLogin")
		}
		if p.PrepareOAuth(ctx) {
			t.Error("PrepareOAuth() should wait for a retry after a failure")
		}

		backend.startErr = nil
		if !p.RetryOAuth(ctx) || p.OAuth().State != OAuthPolling {
			t.Errorf("RetryOAuth() did not restart: %+v", p.OAuth())
		}
		if backend.count("start") != 2 {
			t.Errorf("start calls = %d, want 2", backend.count("start"))
		}
	})

	tests := []struct {
		err  error
		want OAuthState
	}{
		{errors.New("device code expired"), OAuthTimedOut},
		{errors.New("login timed out"), OAuthTimedOut},
		{errors.New("授权超时"), OAuthTimedOut},
		{fmt.Errorf("poll device token: %w", context.DeadlineExceeded), OAuthTimedOut},
		{errors.New("access denied"), OAuthError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			backend := newFakeBackend()
			backend.completeErr = tt.err
			p, _ := newTestPage(t, backend)
			p.OpenAdd(TabOAuth)
			p.PrepareOAuth(ctx)
			p.CompleteOAuth(ctx)

			flow := p.OAuth()
			if flow.State != tt.want {
				t.Errorf("State = %v, want %v", flow.State, tt.want)
			}
			if flow.CompleteError != tt.err.Error() {
				t.Errorf("CompleteError = %q", flow.CompleteError)
			}
			if p.OAuthMessage() == "" {
				t.Error("OAuthMessage() is empty")
			}
			if p.AddStatus().Phase == PhaseSuccess {
				t.Error("failed login reported success")
			}
		})
	}
}

func TestAddWithToken(t *testing.T) {
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		backend := newFakeBackend()
		p, _ := newTestPage(t, backend)
		p.OpenAdd(TabToken)

		p.AddWithToken(ctx, "   ")
		if got := p.AddStatus(); got.Phase != PhaseError || !errors.Is(got.Err, ErrEmptyInput) {
			t.Errorf("status = %+v, want empty input error", got)
		}
		p.AddWithToken(ctx, " , ; ")
		if got := p.AddStatus(); !errors.Is(got.Err, ErrNoTokens) {
			t.Errorf("status = %+v, want no tokens error", got)
		}
		if backend.count("token") != 0 {
			t.Error("validation failures reached the backend")
		}
	})

	t.Run("partial", func(t *testing.T) {
		backend := newFakeBackend()
		backend.tokenErr = map[string]error{"bad": errors.New("401 unauthorized")}
		p, _ := newTestPage(t, backend)
		p.OpenAdd(TabToken)

		p.AddWithToken(ctx, "good1\nbad\ngood2\ngood1")
		got := p.AddStatus()
		if got.Phase != PhasePartial || got.OK != 2 || got.Failed != 1 {
			t.Errorf("status = %+v, want partial 2/1", got)
		}
		if backend.count("token") != 3 {
			t.Errorf("AddWithToken calls = %d, want 3", backend.count("token"))
		}
		if len(p.Accounts()) != 2 {
			t.Errorf("len(Accounts()) = %d, want 2", len(p.Accounts()))
		}
	})

	t.Run("all failed", func(t *testing.T) {
		backend := newFakeBackend()
		backend.tokenErr = map[string]error{"x": errors.New("bad token")}
		p, _ := newTestPage(t, backend)
		p.AddWithToken(ctx, "x")
		if got := p.AddStatus(); got.Phase != PhaseError || got.Failed != 1 {
			t.Errorf("status = %+v", got)
		}
	})
}

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "lines", input: "a\n b \n\na", want: []string{"a", "b"}},
		{name: "separators", input: `"a", 'b'; c`, want: []string{"a", "b", "c"}},
		{name: "json object", input: `{"refresh_token":"r1"}`, want: []string{"r1"}},
		{name: "json array", input: `[{"refreshToken":"r1"},"r2",{"other":1}]`, want: []string{"r1", "r2"}},
		{name: "json wrapper", input: `{"accounts":[{"token":"t1"},{"api_key":"k1"}]}`, want: []string{"t1", "k1"}},
		{name: "empty", input: "  ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTokens(tt.input); !slices.Equal(got, tt.want) {
				t.Errorf("ExtractTokens(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	p, _ := newTestPage(t, backend)
	p.OpenAdd(TabImport)

	p.ImportJSON(ctx, "")
	if got := p.AddStatus(); !errors.Is(got.Err, ErrEmptyInput) || backend.count("importJSON") != 0 {
		t.Errorf("empty import status = %+v", got)
	}

	p.ImportJSON(ctx, "not json")
	if got := p.AddStatus(); got.Phase != PhaseError || got.Message == "" {
		t.Errorf("bad import status = %+v", got)
	}
	if !p.AddOpen() {
		t.Error("a failed import should keep the modal open")
	}

	p.ImportJSON(ctx, `[{"id":"x"}]`)
	if got := p.AddStatus(); got.Phase != PhaseSuccess || got.OK != 1 || got.CloseAt.IsZero() {
		t.Errorf("import status = %+v", got)
	}

	p.ImportLocal(ctx)
	if got := p.AddStatus(); got.Phase != PhaseError {
		t.Errorf("local import status = %+v, want error", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Codex Accounts", "Codex_Accounts"},
		{`my:file/name*?`, "myfilename"},
		{"  a   b__c ", "a_b_c"},
		{"tab\tname", "tabname"},
		{`<>:"|`, DefaultExportBase},
		{"", DefaultExportBase},
		{"__x__", "x"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.input); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDefaultExportFileName(t *testing.T) {
	p := New(Config{Platform: models.PlatformKiro, Service: newFakeBackend(), ExportPrefix: "Kiro Accounts"})
	if got := p.DefaultExportFileName(testNow); got != "Kiro_Accounts_2026-03-01.json" {
		t.Errorf("DefaultExportFileName() = %q", got)
	}
	p = New(Config{Platform: models.PlatformKiro, Service: newFakeBackend()})
	if got := p.DefaultExportFileName(testNow); got != "kiro_accounts_2026-03-01.json" {
		t.Errorf("DefaultExportFileName() without prefix = %q", got)
	}
}

func TestCanOpenExportDir(t *testing.T) {
	dir := filepath.Join(string(filepath.Separator), "home", "u", "Downloads")
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "a.json"), true},
		{filepath.Join(dir, "sub", "a.json"), true},
		{filepath.Join(dir, "..", "a.json"), false},
		{filepath.Join(dir+"-evil", "a.json"), false},
		{dir, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := CanOpenExportDir(tt.path, dir); got != tt.want {
			t.Errorf("CanOpenExportDir(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestExportFlow(t *testing.T) {
	ctx := context.Background()
	downloads := t.TempDir()
	p, _ := newTestPage(t, newFakeBackend(copilot("a", 1, "pro")), func(c *Config) {
		c.DownloadsDir = downloads
		c.ExportPrefix = "copilot"
	})

	if err := p.StartExport(ctx, nil); !errors.Is(err, ErrNoIDs) {
		t.Fatalf("StartExport(nil) error = %v, want ErrNoIDs", err)
	}
	if p.Export() != nil {
		t.Fatal("export modal opened without ids")
	}

	if err := p.StartExport(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	job := p.Export()
	if job == nil || !job.Hidden || job.FileName != "copilot_2026-03-01.json" {
		t.Fatalf("job = %+v", job)
	}
	p.ToggleExportHidden()
	if p.Export().Hidden {
		t.Error("ToggleExportHidden() did not reveal the JSON")
	}
	if p.CanOpenExportDir() {
		t.Error("CanOpenExportDir() before saving")
	}

	p.SaveExport("")
	saved := filepath.Join(downloads, "copilot_2026-03-01.json")
	info, err := os.Stat(saved)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
	if !p.CanOpenExportDir() {
		t.Error("CanOpenExportDir() = false for a file in downloads")
	}

	p.SaveExport(filepath.Join(t.TempDir(), "elsewhere.json"))
	if p.CanOpenExportDir() {
		t.Error("CanOpenExportDir() = true outside downloads")
	}

	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })
	p.CopyExport()
	if copied != job.JSON || p.Message().Tone != ToneSuccess {
		t.Errorf("clipboard = %q, message = %+v", copied, p.Message())
	}

	p.CloseExport()
	if p.Export() != nil {
		t.Error("CloseExport() kept the job")
	}
}

func TestMaskAccountText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"alice@example.com", "al***@example.com"},
		{"a@b.com", "a***@b.com"},
		{"abc", "***"},
		{"abcdefg", "ab***"},
		{"user-1234567890", "use***90"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MaskAccountText(tt.input); got != tt.want {
			t.Errorf("MaskAccountText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	p, _ := newTestPage(t, newFakeBackend())
	if got := p.Mask("alice@example.com"); got != "alice@example.com" {
		t.Errorf("Mask() with privacy off = %q", got)
	}
	p.TogglePrivacy()
	if got := p.Mask("alice@example.com"); got != "al***@example.com" {
		t.Errorf("Mask() with privacy on = %q", got)
	}
}

func TestPrivacyDefault(t *testing.T) {
	store := prefs.NewMemory()
	p := New(Config{Platform: models.PlatformCodex, Service: newFakeBackend(), Prefs: store, PrivacyDefault: true})
	if !p.Privacy() {
		t.Error("Privacy() should follow the default when unset")
	}
	_ = prefs.SetBool(store, prefs.KeyPrivacyMode, false)
	p = New(Config{Platform: models.PlatformCodex, Service: newFakeBackend(), Prefs: store, PrivacyDefault: true})
	if p.Privacy() {
		t.Error("stored privacy preference should win over the default")
	}
}

func TestToggleFlowNotice(t *testing.T) {
	p, store := newTestPage(t, newFakeBackend())
	p.ToggleFlowNotice()
	if !p.NoticeCollapsed() {
		t.Error("NoticeCollapsed() = false after toggle")
	}
	if !prefs.GetBool(store, prefs.FlowNoticeKey(string(models.PlatformCopilot)), false) {
		t.Error("collapsed state was not persisted")
	}
}

func TestSetViewMode(t *testing.T) {
	p := New(Config{Service: newFakeBackend()})
	p.SetViewMode(ViewGrid)
	p.SetViewMode("bogus")
	if p.ViewMode() != ViewGrid {
		t.Errorf("ViewMode() = %q, want grid", p.ViewMode())
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(0); got != "-" {
		t.Errorf("FormatDate(0) = %q", got)
	}
	ts := time.Date(2026, 1, 2, 3, 4, 0, 0, time.Local).Unix()
	if got := FormatDate(ts); got != "2026-01-02 03:04" {
		t.Errorf("FormatDate() = %q", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

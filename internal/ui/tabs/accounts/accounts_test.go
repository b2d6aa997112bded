package accounts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cockpit-tui/internal/app"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/pagestate"
	"github.com/j-veylop/cockpit-tui/internal/prefs"
	"github.com/j-veylop/cockpit-tui/internal/services"
)

// fakeBackend serves an in-memory Codex account list.
type fakeBackend struct {
	mu       sync.Mutex
	accounts []models.Account
	active   string
	calls    map[string]int
}

func newFakeBackend(accounts ...models.Account) *fakeBackend {
	return &fakeBackend{accounts: accounts, calls: map[string]int{}}
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) find(id string) models.Account {
	for _, acc := range f.accounts {
		if acc.Meta().ID == id {
			return acc
		}
	}
	return nil
}

func (f *fakeBackend) Platform() models.Platform { return models.PlatformCodex }

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
	f.mu.Lock()
	f.active = id
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) DeleteAccount(ctx context.Context, id string) error {
	return f.DeleteAccounts(ctx, []string{id})
}

func (f *fakeBackend) DeleteAccounts(_ context.Context, ids []string) error {
	f.record("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = slices.DeleteFunc(f.accounts, func(a models.Account) bool {
		return slices.Contains(ids, a.Meta().ID)
	})
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
	acc := codex("imported@example.com", 50, 40)
	f.mu.Lock()
	f.accounts = append(f.accounts, acc)
	f.mu.Unlock()
	return []models.Account{acc}, nil
}

func (f *fakeBackend) ImportLocal(context.Context) ([]models.Account, error) {
	f.record("importLocal")
	return nil, errors.New("no local installation found")
}

func (f *fakeBackend) AddWithToken(context.Context, string) (models.Account, error) {
	f.record("token")
	return nil, errors.New("token rejected")
}

func (f *fakeBackend) ExportJSON(_ context.Context, ids []string) (string, error) {
	f.record("export")
	return fmt.Sprintf("[\n%q\n]", strings.Join(ids, ",")), nil
}

func (f *fakeBackend) StartLogin(context.Context) (models.LoginStart, error) {
	f.record("start")
	return models.LoginStart{
		LoginID:  "login-1",
		URL:      "https://auth.example.com/device",
		UserCode: "WXYZ-0000",
	}, nil
}

func (f *fakeBackend) CompleteLogin(ctx context.Context, _ string) (models.Account, error) {
	f.record("complete")
	if _, ok := ctx.Deadline(); ok {
		f.record("deadline")
	}
	acc := codex("oauth@example.com", 60, 90)
	f.mu.Lock()
	f.accounts = append(f.accounts, acc)
	f.mu.Unlock()
	return acc, nil
}

func (f *fakeBackend) CancelLogin(context.Context, string) error {
	f.record("cancel")
	return nil
}

func codex(email string, created int64, remaining float64) *models.CodexAccount {
	return &models.CodexAccount{
		Base:     models.Base{ID: email, CreatedAt: created},
		Email:    email,
		PlanType: "plus",
		Quota: &models.CodexQuota{
			Primary: &models.CodexWindow{RemainingPercent: remaining, WindowMinutes: 300},
		},
	}
}

// historyRecorder is a HistoryFunc that remembers its calls.
type historyRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (h *historyRecorder) load(_ context.Context, accountID, metricKey string, since time.Time) ([]models.QuotaSnapshot, error) {
	h.mu.Lock()
	h.calls = append(h.calls, accountID+"|"+metricKey)
	h.mu.Unlock()
	return []models.QuotaSnapshot{
		{AccountID: accountID, MetricKey: metricKey, Percentage: 80, Timestamp: since.Add(time.Hour)},
		{AccountID: accountID, MetricKey: metricKey, Percentage: 60, Timestamp: since.Add(2 * time.Hour)},
	}, nil
}

func (h *historyRecorder) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func newTestModel(t *testing.T, backend *fakeBackend, history HistoryFunc) (*Model, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	page := pagestate.New(pagestate.Config{
		Platform:     models.PlatformCodex,
		Service:      backend,
		Prefs:        prefs.NewMemory(),
		Now:          func() time.Time { return now },
		DownloadsDir: t.TempDir(),
	})
	m := New(page, history)
	m.SetSize(120, 40)
	drain(t, m, m.Init())
	if !page.Loaded() {
		t.Fatal("page should be loaded after Init")
	}
	return m, &now
}

// drain runs cmd and feeds every resulting message back into the model.
// Commands that do not finish quickly, such as ticks and cursor blinks, are
// dropped.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0 && steps < 50; steps++ {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg, ok := runQuick(next)
		if !ok || msg == nil {
			continue
		}
		if batch, isBatch := msg.(tea.BatchMsg); isBatch {
			queue = append(queue, batch...)
			continue
		}
		_, follow := m.Update(msg)
		queue = append(queue, follow)
	}
}

func runQuick(cmd tea.Cmd) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(200 * time.Millisecond):
		return nil, false
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m *Model, msg tea.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(msg)
	drain(t, m, cmd)
}

func TestModel_LoadAndRender(t *testing.T) {
	backend := newFakeBackend(codex("a@example.com", 1, 80), codex("b@example.com", 2, 10))
	m, _ := newTestModel(t, backend, nil)

	view := m.View()
	for _, want := range []string{"Codex Accounts", "a@example.com", "b@example.com", "2 accounts"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
	if m.Capturing() {
		t.Error("list view should not capture keys")
	}
}

func TestModel_IgnoresOtherPlatforms(t *testing.T) {
	m, _ := newTestModel(t, newFakeBackend(codex("a@example.com", 1, 80)), nil)

	if _, cmd := m.Update(pageUpdatedMsg{platform: models.PlatformKiro}); cmd != nil {
		t.Error("pageUpdatedMsg of another platform should be ignored")
	}
	if _, cmd := m.Update(app.ServiceEventMsg{Event: services.AccountsChangedEvent{Platform: models.PlatformKiro}}); cmd != nil {
		t.Error("AccountsChangedEvent of another platform should be ignored")
	}
	if _, cmd := m.Update(app.ServiceEventMsg{Event: services.AccountsChangedEvent{Platform: models.PlatformCodex}}); cmd == nil {
		t.Error("AccountsChangedEvent of this platform should reload")
	}
}

func TestModel_SetCurrent(t *testing.T) {
	backend := newFakeBackend(codex("a@example.com", 1, 80), codex("b@example.com", 2, 10))
	m, _ := newTestModel(t, backend, nil)

	// Newest first: b, then a.
	press(t, m, runes("j"))
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if got := m.page.CurrentID(); got != "a@example.com" {
		t.Errorf("CurrentID() = %q, want a@example.com", got)
	}
	if backend.count("switch") != 1 {
		t.Errorf("switch calls = %d, want 1", backend.count("switch"))
	}

	press(t, m, runes("j"))
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want it clamped to 1", m.cursor)
	}
}

func TestModel_BannedAccount(t *testing.T) {
	banned := &models.KiroAccount{
		Base:         models.Base{ID: "k1", CreatedAt: 3},
		Email:        "banned@example.com",
		Status:       "banned",
		StatusReason: "terms violation",
	}
	failing := &models.KiroAccount{Base: models.Base{ID: "k2", CreatedAt: 2}, Email: "failing@example.com", Status: "error"}
	backend := newFakeBackend(banned, failing, codex("a@example.com", 1, 80))
	m, _ := newTestModel(t, backend, nil)

	view := m.View()
	for _, want := range []string{"⚠ Banned: terms violation", "⚠ Error"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if backend.count("switch") != 0 || m.page.CurrentID() != "" {
		t.Errorf("banned account was switched to: calls %d, current %q", backend.count("switch"), m.page.CurrentID())
	}
	if !strings.Contains(m.View(), "cannot be switched to") {
		t.Error("view should explain the refused switch")
	}

	press(t, m, runes("v"))
	if !strings.Contains(m.View(), "⚠ Banned") {
		t.Error("grid cards should show the status badge")
	}
}

func TestModel_Search(t *testing.T) {
	backend := newFakeBackend(codex("alice@example.com", 1, 80), codex("bob@example.com", 2, 10))
	m, _ := newTestModel(t, backend, nil)

	press(t, m, runes("/"))
	if !m.Capturing() {
		t.Fatal("search input should capture keys")
	}
	for _, r := range "ali" {
		press(t, m, runes(string(r)))
	}
	if got := len(m.page.Visible()); got != 1 {
		t.Errorf("visible = %d, want 1", got)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.Capturing() {
		t.Error("esc should leave the search input")
	}
	if got := m.page.Filters().Search; got != "" {
		t.Errorf("search = %q, want cleared", got)
	}
	if got := len(m.page.Visible()); got != 2 {
		t.Errorf("visible = %d, want 2", got)
	}
}

func TestModel_DeleteFlow(t *testing.T) {
	backend := newFakeBackend(codex("a@example.com", 1, 80), codex("b@example.com", 2, 10))
	m, _ := newTestModel(t, backend, nil)

	press(t, m, runes("d"))
	if got := m.page.DeleteConfirm(); len(got) != 1 || got[0] != "b@example.com" {
		t.Fatalf("DeleteConfirm() = %v, want [b@example.com]", got)
	}
	if !m.Capturing() {
		t.Error("delete confirmation should capture keys")
	}
	if !strings.Contains(m.View(), "Delete Account?") {
		t.Error("view should show the confirmation")
	}

	press(t, m, runes("n"))
	if len(m.page.DeleteConfirm()) != 0 || backend.count("delete") != 0 {
		t.Fatal("n should cancel without deleting")
	}

	press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	press(t, m, runes("j"))
	press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	press(t, m, runes("d"))
	if got := len(m.page.DeleteConfirm()); got != 2 {
		t.Fatalf("selection delete should confirm 2 ids, got %d", got)
	}
	press(t, m, runes("y"))

	if backend.count("delete") != 1 {
		t.Errorf("delete calls = %d, want 1", backend.count("delete"))
	}
	if got := len(m.page.Accounts()); got != 0 {
		t.Errorf("accounts = %d, want 0", got)
	}
	if !strings.Contains(m.View(), "No Accounts Yet") {
		t.Error("view should show the empty state")
	}
}

func TestModel_OAuthAddAndAutoClose(t *testing.T) {
	backend := newFakeBackend(codex("a@example.com", 1, 80))
	m, now := newTestModel(t, backend, nil)

	press(t, m, runes("n"))

	if backend.count("start") != 1 || backend.count("complete") != 1 {
		t.Fatalf("start=%d complete=%d, want 1 and 1", backend.count("start"), backend.count("complete"))
	}
	if backend.count("deadline") != 0 {
		t.Error("login wait should not carry a deadline")
	}
	if got := m.page.OAuth().State; got != pagestate.OAuthSuccess {
		t.Fatalf("OAuth state = %v, want success", got)
	}
	if got := len(m.page.Accounts()); got != 2 {
		t.Errorf("accounts = %d, want 2", got)
	}
	if !m.page.AddOpen() {
		t.Fatal("modal should stay open until the auto close fires")
	}

	*now = now.Add(pagestate.AutoCloseDelay)
	_, cmd := m.Update(autoCloseMsg{platform: models.PlatformCodex})
	drain(t, m, cmd)
	if m.page.AddOpen() {
		t.Error("auto close should close the modal")
	}
}

func TestModel_AddModalKeys(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestModel(t, backend, nil)
	m.page.OpenAdd(pagestate.TabOAuth)
	if !m.page.PrepareOAuth(context.Background()) {
		t.Fatal("PrepareOAuth should start a login")
	}

	_, cmd := m.Update(runes("c"))
	if cmd == nil {
		t.Fatal("c should copy once a code exists")
	}
	if msg, ok := cmd().(app.CopyToClipboardMsg); !ok || msg.Text != "WXYZ-0000" {
		t.Errorf("copy message = %#v", msg)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if got := m.page.AddTab(); got != pagestate.TabToken {
		t.Fatalf("AddTab() = %q, want token", got)
	}
	if backend.count("cancel") != 1 {
		t.Errorf("leaving the sign-in tab should cancel the login, cancel calls = %d", backend.count("cancel"))
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if got := m.page.AddTab(); got != pagestate.TabImport {
		t.Fatalf("AddTab() = %q, want import", got)
	}
	m.addInput.SetValue(`[{"email":"x"}]`)
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if backend.count("importJSON") != 1 {
		t.Errorf("importJSON calls = %d, want 1", backend.count("importJSON"))
	}
	if got := m.page.AddStatus().Phase; got != pagestate.PhaseSuccess {
		t.Errorf("phase = %q, want success", got)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.page.AddOpen() {
		t.Error("esc should close the modal")
	}
}

func TestModel_Export(t *testing.T) {
	backend := newFakeBackend(codex("a@example.com", 1, 80), codex("b@example.com", 2, 10))
	m, _ := newTestModel(t, backend, nil)

	press(t, m, runes("e"))
	job := m.page.Export()
	if job == nil {
		t.Fatal("e should open the export modal")
	}
	if len(job.IDs) != 2 {
		t.Errorf("export ids = %v, want all visible", job.IDs)
	}
	if strings.Contains(m.View(), "a@example.com,") {
		t.Error("hidden export should not show the JSON")
	}

	press(t, m, runes("h"))
	if m.page.Export().Hidden {
		t.Error("h should reveal the JSON")
	}

	press(t, m, runes("s"))
	if m.page.Export().SavedPath == "" {
		t.Error("s should save the export")
	}
	_, cmd := m.Update(runes("o"))
	if cmd == nil {
		t.Fatal("o should open the downloads directory")
	}
	if _, ok := cmd().(app.OpenURLMsg); !ok {
		t.Error("o should emit OpenURLMsg")
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.page.Export() != nil {
		t.Error("esc should close the export modal")
	}
}

func TestModel_Tags(t *testing.T) {
	backend := newFakeBackend(codex("a@example.com", 1, 80), codex("b@example.com", 2, 10))
	m, _ := newTestModel(t, backend, nil)

	press(t, m, runes("t"))
	if !m.Capturing() {
		t.Fatal("tag editor should capture keys")
	}
	for _, r := range "work, Team" {
		press(t, m, runes(string(r)))
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if backend.count("tags") != 1 {
		t.Fatalf("tags calls = %d, want 1", backend.count("tags"))
	}
	if got := m.page.AllTags(); !slices.Equal(got, []string{"team", "work"}) {
		t.Errorf("AllTags() = %v", got)
	}

	press(t, m, runes("#"))
	press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if got := m.page.Filters().Tags; !slices.Equal(got, []string{"team"}) {
		t.Errorf("tag filter = %v, want [team]", got)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if got := len(m.page.Visible()); got != 1 {
		t.Errorf("visible = %d, want 1", got)
	}

	press(t, m, runes("g"))
	if !strings.Contains(m.View(), "team (1)") {
		t.Error("grouped view should show the tag header")
	}
}

func TestModel_History(t *testing.T) {
	rec := &historyRecorder{}
	backend := newFakeBackend(codex("a@example.com", 1, 80), codex("b@example.com", 2, 10))
	m, _ := newTestModel(t, backend, rec.load)

	if rec.count() != 1 {
		t.Fatalf("history calls = %d, want 1 after load", rec.count())
	}
	if len(m.series) != 2 {
		t.Fatalf("series = %v, want 2 points", m.series)
	}
	if !strings.Contains(m.View(), "Burn 20.0%/h") {
		t.Error("detail should show the burn rate of the charted metric")
	}

	press(t, m, runes("j"))
	if rec.count() != 2 || rec.calls[1] != "a@example.com|primary" {
		t.Errorf("history calls = %v", rec.calls)
	}

	press(t, m, runes("h"))
	if m.timeRange != models.TimeRange7Days {
		t.Errorf("timeRange = %v, want 7d", m.timeRange)
	}
	if rec.count() != 3 {
		t.Errorf("range change should reload, calls = %d", rec.count())
	}

	// Stale results are dropped.
	m.Update(historyLoadedMsg{platform: models.PlatformCodex, key: "other"})
	if len(m.series) != 2 {
		t.Error("stale history should not replace the series")
	}
}

func TestModel_ListControls(t *testing.T) {
	m, _ := newTestModel(t, newFakeBackend(codex("a@example.com", 1, 80)), nil)

	press(t, m, runes("s"))
	if got := m.page.Filters().SortKey; got != pagestate.SortPlanEnd {
		t.Errorf("SortKey = %q, want plan_end", got)
	}
	press(t, m, runes("o"))
	if m.page.Filters().SortDesc {
		t.Error("o should flip the sort direction")
	}
	press(t, m, runes("f"))
	if got := m.page.Filters().TypeFilter; got != "plus" {
		t.Errorf("TypeFilter = %q, want plus", got)
	}
	press(t, m, runes("f"))
	if got := m.page.Filters().TypeFilter; got != "" {
		t.Errorf("TypeFilter = %q, want cleared", got)
	}
	press(t, m, runes("v"))
	if got := m.page.ViewMode(); got != pagestate.ViewGrid {
		t.Errorf("ViewMode = %q, want grid", got)
	}
	press(t, m, runes("p"))
	if !m.page.Privacy() {
		t.Error("p should enable privacy")
	}
	if strings.Contains(m.View(), "a@example.com") {
		t.Error("privacy should mask the email")
	}
}

func TestHelpers(t *testing.T) {
	if got := splitTags(" a, ,b ,"); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("splitTags = %v", got)
	}
	if got := cycle(sortKeys, pagestate.SortQuota); got != pagestate.SortCreated {
		t.Errorf("cycle wrap = %q", got)
	}
	if got := cycle([]string{"", "free"}, "gone"); got != "" {
		t.Errorf("cycle unknown = %q, want first", got)
	}
}

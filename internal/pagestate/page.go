// Package pagestate holds the state shared by every provider accounts page:
// filtering, sorting, tag grouping, selection, confirmed deletes, refresh
// tracking, imports, exports, the current account and the OAuth login flow.
//
// A Page is safe for concurrent use. Blocking operations are meant to run in
// tea.Cmd goroutines; none of them return backend errors, every outcome lands
// in a state field the view reads back.
package pagestate

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/cockpit-tui/internal/groups"
	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/prefs"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
)

var (
	// ErrNoIDs is reported when an operation needs at least one account.
	ErrNoIDs = errors.New("no accounts selected")
	// ErrEmptyInput is reported when an import or token form is blank.
	ErrEmptyInput = errors.New("input is empty")
	// ErrNoTokens is reported when no token could be extracted from input.
	ErrNoTokens = errors.New("no tokens found in input")
)

// Backend is the part of a platform service a page drives.
// platform.Service satisfies it.
type Backend interface {
	Platform() models.Platform
	ListAccounts(ctx context.Context) ([]models.Account, error)
	ActiveAccount() string
	Switch(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) error
	DeleteAccounts(ctx context.Context, ids []string) error
	RefreshAccount(ctx context.Context, id string) (models.Account, error)
	RefreshAll(ctx context.Context) (int, error)
	UpdateTags(ctx context.Context, id string, tags []string) (models.Account, error)
	ImportJSON(ctx context.Context, content string) ([]models.Account, error)
	ImportLocal(ctx context.Context) ([]models.Account, error)
	AddWithToken(ctx context.Context, token string) (models.Account, error)
	ExportJSON(ctx context.Context, ids []string) (string, error)
	StartLogin(ctx context.Context) (models.LoginStart, error)
	CompleteLogin(ctx context.Context, loginID string) (models.Account, error)
	CancelLogin(ctx context.Context, loginID string) error
}

// ViewMode is how the account list is laid out.
type ViewMode string

const (
	ViewList    ViewMode = "list"
	ViewGrid    ViewMode = "grid"
	ViewCompact ViewMode = "compact"
)

// SortKey selects the value accounts are ordered by.
type SortKey string

const (
	SortCreated SortKey = "created"
	SortPlanEnd SortKey = "plan_end"
	SortQuota   SortKey = "quota"
)

// Tone flags how a message should be coloured.
type Tone string

const (
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

// Message is the page's status line.
type Message struct {
	Text string
	Tone Tone
}

// ItemResult is the outcome of one account in a batch mutation.
type ItemResult struct {
	Err error
	ID  string
}

// Item is one account with its presentation.
type Item struct {
	Account      models.Account
	Presentation presentation.AccountPresentation
}

// TagGroup is one bucket of the tag-grouped view. Tag is empty for the
// untagged bucket.
type TagGroup struct {
	Tag   string
	Label string
	Items []Item
}

// Config parameterises a page for one platform.
type Config struct {
	Service    Backend
	Prefs      prefs.Store
	Translator presentation.Translator
	// Groups supplies Antigravity display groups; nil elsewhere.
	Groups func() []groups.DisplayGroup
	// SearchFields returns extra strings matched by the search box.
	SearchFields func(models.Account) []string
	// QuotaValue is the magnitude sorted by SortQuota. Defaults to the lowest
	// known metric percentage.
	QuotaValue   func(models.Account, presentation.AccountPresentation) *float64
	Now          func() time.Time
	Platform     models.Platform
	CurrentKey   string
	NoticeKey    string
	ExportPrefix string
	DownloadsDir string
	// PrivacyDefault applies when no privacy preference is stored.
	PrivacyDefault bool
}

// Page is the state of one provider accounts page.
type Page struct {
	cfg Config

	mu            sync.RWMutex
	accounts      []models.Account
	presentations map[string]presentation.AccountPresentation
	loaded        bool

	privacy    bool
	view       ViewMode
	search     string
	typeFilter string
	tagFilter  []string
	sortKey    SortKey
	sortDesc   bool
	groupByTag bool
	selected   map[string]bool

	currentID       string
	noticeCollapsed bool
	deleteConfirm   []string
	refreshing      map[string]bool
	refreshingAll   bool
	message         Message

	add    addModal
	oauth  OAuthFlow
	export *ExportJob
}

// New builds a page and restores its persisted preferences.
func New(cfg Config) *Page {
	if cfg.CurrentKey == "" {
		cfg.CurrentKey = prefs.CurrentAccountKey(string(cfg.Platform))
	}
	if cfg.NoticeKey == "" {
		cfg.NoticeKey = prefs.FlowNoticeKey(string(cfg.Platform))
	}
	if cfg.ExportPrefix == "" {
		cfg.ExportPrefix = string(cfg.Platform) + "_accounts"
	}
	if cfg.Prefs == nil {
		cfg.Prefs = prefs.NewMemory()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.QuotaValue == nil {
		cfg.QuotaValue = LowestQuota
	}

	p := &Page{
		cfg:           cfg,
		presentations: map[string]presentation.AccountPresentation{},
		view:          ViewList,
		sortKey:       SortCreated,
		sortDesc:      true,
		selected:      map[string]bool{},
		refreshing:    map[string]bool{},
	}
	p.privacy = prefs.GetBool(cfg.Prefs, prefs.KeyPrivacyMode, cfg.PrivacyDefault)
	p.noticeCollapsed = prefs.GetBool(cfg.Prefs, cfg.NoticeKey, false)
	if id, ok := cfg.Prefs.Get(cfg.CurrentKey); ok {
		p.currentID = id
	}
	return p
}

// Platform returns the platform this page serves.
func (p *Page) Platform() models.Platform {
	return p.cfg.Platform
}

func (p *Page) t(key, fallback string, params i18n.Params) string {
	if p.cfg.Translator == nil {
		return (*i18n.Translator)(nil).T(key, fallback, params)
	}
	return p.cfg.Translator.T(key, fallback, params)
}

func (p *Page) setMessage(tone Tone, text string) {
	p.mu.Lock()
	p.message = Message{Text: text, Tone: tone}
	p.mu.Unlock()
}

// Message returns the current status line.
func (p *Page) Message() Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.message
}

// ClearMessage dismisses the status line.
func (p *Page) ClearMessage() {
	p.setMessage(ToneInfo, "")
}

// Load re-fetches the account list and rebuilds presentations. The current
// account is dropped, along with its stored preference, once it disappears.
func (p *Page) Load(ctx context.Context) error {
	accounts, err := p.cfg.Service.ListAccounts(ctx)
	if err != nil {
		logger.Error("failed to load accounts", "platform", p.cfg.Platform, "error", err)
		p.setMessage(ToneError, p.t("accounts.loadFailed", "Failed to load accounts: {{error}}", i18n.Params{"error": err.Error()}))
		return err
	}

	opts := presentation.Options{Now: p.cfg.Now(), Translator: p.cfg.Translator}
	if p.cfg.Groups != nil {
		opts.Groups = p.cfg.Groups()
	}
	pres := make(map[string]presentation.AccountPresentation, len(accounts))
	for _, acc := range accounts {
		pres[acc.Meta().ID] = presentation.Build(acc, opts)
	}

	p.mu.Lock()
	p.accounts = accounts
	p.presentations = pres
	p.loaded = true
	ids := lo.SliceToMap(accounts, func(a models.Account) (string, bool) { return a.Meta().ID, true })
	for id := range p.selected {
		if !ids[id] {
			delete(p.selected, id)
		}
	}
	if p.currentID == "" {
		if active := p.cfg.Service.ActiveAccount(); ids[active] {
			p.currentID = active
		}
	}
	stale := p.currentID != "" && !ids[p.currentID]
	if stale {
		p.currentID = ""
	}
	p.mu.Unlock()

	if stale {
		if err := p.cfg.Prefs.Remove(p.cfg.CurrentKey); err != nil {
			logger.Warn("failed to clear current account", "platform", p.cfg.Platform, "error", err)
		}
	}
	return nil
}

// Loaded reports whether accounts were fetched at least once.
func (p *Page) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Accounts returns every account in backend order.
func (p *Page) Accounts() []models.Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.accounts)
}

// Presentation returns the presentation of one account.
func (p *Page) Presentation(id string) (presentation.AccountPresentation, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pres, ok := p.presentations[id]
	return pres, ok
}

// Privacy reports whether masking is on.
func (p *Page) Privacy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.privacy
}

// TogglePrivacy flips masking for this page.
func (p *Page) TogglePrivacy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.privacy = !p.privacy
	return p.privacy
}

// Mask applies MaskAccountText when privacy is on.
func (p *Page) Mask(text string) string {
	if !p.Privacy() {
		return text
	}
	return MaskAccountText(text)
}

// MaskAccountText hides most of an identifying string. Emails keep the first
// two characters of the local part and the domain.
func MaskAccountText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if local, domain, ok := strings.Cut(s, "@"); ok && local != "" && domain != "" {
		return keepPrefix(local, 2) + "***@" + domain
	}
	runes := []rune(s)
	if len(runes) <= 4 {
		return "***"
	}
	if len(runes) <= 8 {
		return string(runes[:2]) + "***"
	}
	return string(runes[:3]) + "***" + string(runes[len(runes)-2:])
}

func keepPrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return string(runes[:1])
	}
	return string(runes[:n])
}

// ViewMode returns the list layout.
func (p *Page) ViewMode() ViewMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

// SetViewMode changes the list layout. Unknown modes are ignored.
func (p *Page) SetViewMode(mode ViewMode) {
	switch mode {
	case ViewList, ViewGrid, ViewCompact:
	default:
		return
	}
	p.mu.Lock()
	p.view = mode
	p.mu.Unlock()
}

// NoticeCollapsed reports whether the flow notice is folded away.
func (p *Page) NoticeCollapsed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.noticeCollapsed
}

// ToggleFlowNotice folds or unfolds the flow notice and persists the choice.
func (p *Page) ToggleFlowNotice() {
	p.mu.Lock()
	p.noticeCollapsed = !p.noticeCollapsed
	collapsed := p.noticeCollapsed
	p.mu.Unlock()
	if err := prefs.SetBool(p.cfg.Prefs, p.cfg.NoticeKey, collapsed); err != nil {
		logger.Warn("failed to persist flow notice state", "platform", p.cfg.Platform, "error", err)
	}
}

// FormatDate renders a unix timestamp in local time, "-" for zero.
func FormatDate(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}

// ToggleSelect adds or removes one account from the selection.
func (p *Page) ToggleSelect(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selected[id] {
		delete(p.selected, id)
	} else {
		p.selected[id] = true
	}
}

// SelectAll selects every given account, or clears them when all of them
// are already selected.
func (p *Page) SelectAll(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := len(ids) > 0 && lo.EveryBy(ids, func(id string) bool { return p.selected[id] })
	for _, id := range ids {
		if all {
			delete(p.selected, id)
		} else {
			p.selected[id] = true
		}
	}
}

// ClearSelection empties the selection.
func (p *Page) ClearSelection() {
	p.mu.Lock()
	p.selected = map[string]bool{}
	p.mu.Unlock()
}

// IsSelected reports whether an account is selected.
func (p *Page) IsSelected(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected[id]
}

// Selected returns the selected ids in backend order.
func (p *Page) Selected() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ids []string
	for _, acc := range p.accounts {
		if id := acc.Meta().ID; p.selected[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// RequestDelete asks for confirmation before deleting ids.
func (p *Page) RequestDelete(ids []string) {
	if len(ids) == 0 {
		return
	}
	p.mu.Lock()
	p.deleteConfirm = slices.Clone(ids)
	p.mu.Unlock()
}

// DeleteConfirm returns the ids awaiting confirmation, nil when none.
func (p *Page) DeleteConfirm() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.deleteConfirm)
}

// CancelDelete drops a pending confirmation.
func (p *Page) CancelDelete() {
	p.mu.Lock()
	p.deleteConfirm = nil
	p.mu.Unlock()
}

// ConfirmDelete deletes the pending ids. The deleted ids leave the selection
// whatever the backend reports.
func (p *Page) ConfirmDelete(ctx context.Context) []ItemResult {
	p.mu.Lock()
	ids := p.deleteConfirm
	p.deleteConfirm = nil
	p.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	results := make([]ItemResult, 0, len(ids))
	if len(ids) == 1 {
		results = append(results, ItemResult{ID: ids[0], Err: p.cfg.Service.DeleteAccount(ctx, ids[0])})
	} else {
		err := p.cfg.Service.DeleteAccounts(ctx, ids)
		for _, id := range ids {
			results = append(results, ItemResult{ID: id, Err: err})
		}
	}

	p.mu.Lock()
	for _, id := range ids {
		delete(p.selected, id)
	}
	p.mu.Unlock()

	ok := lo.CountBy(results, func(r ItemResult) bool { return r.Err == nil })
	if ok == len(results) {
		p.setMessage(ToneSuccess, p.t("accounts.deleted", "Deleted {{count}} account(s)", i18n.Params{"count": ok}))
	} else {
		for _, r := range results {
			if r.Err != nil {
				logger.Error("failed to delete account", "platform", p.cfg.Platform, "id", r.ID, "error", r.Err)
			}
		}
		p.setMessage(ToneError, p.t("accounts.deletePartial", "Deleted {{ok}} of {{total}} account(s)", i18n.Params{"ok": ok, "total": len(results)}))
	}
	_ = p.Load(ctx)
	return results
}

// IsRefreshing reports whether an account is being refreshed, alone or as
// part of a refresh of every account.
func (p *Page) IsRefreshing(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.refreshing[id] || p.refreshingAll
}

// RefreshingAll reports whether a refresh of every account is in flight.
func (p *Page) RefreshingAll() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.refreshingAll
}

// Refresh refreshes one account. A second call for the same id while the
// first is in flight does nothing.
func (p *Page) Refresh(ctx context.Context, id string) {
	p.mu.Lock()
	if p.refreshing[id] {
		p.mu.Unlock()
		return
	}
	p.refreshing[id] = true
	p.mu.Unlock()

	acc, err := p.cfg.Service.RefreshAccount(ctx, id)

	p.mu.Lock()
	delete(p.refreshing, id)
	p.mu.Unlock()

	if err != nil {
		logger.Error("failed to refresh account", "platform", p.cfg.Platform, "id", id, "error", err)
		p.setMessage(ToneError, p.t("accounts.refreshFailed", "Refresh failed: {{error}}", i18n.Params{"error": err.Error()}))
	} else {
		p.setMessage(ToneSuccess, p.t("accounts.refreshed", "Refreshed {{name}}", i18n.Params{"name": p.Mask(acc.Label())}))
	}
	_ = p.Load(ctx)
}

// RefreshAll refreshes every account.
func (p *Page) RefreshAll(ctx context.Context) {
	p.mu.Lock()
	if p.refreshingAll {
		p.mu.Unlock()
		return
	}
	p.refreshingAll = true
	p.mu.Unlock()

	_, err := p.cfg.Service.RefreshAll(ctx)

	p.mu.Lock()
	p.refreshingAll = false
	p.mu.Unlock()

	if err != nil {
		logger.Error("failed to refresh accounts", "platform", p.cfg.Platform, "error", err)
		p.setMessage(ToneError, p.t("accounts.refreshFailed", "Refresh failed: {{error}}", i18n.Params{"error": err.Error()}))
	} else {
		p.setMessage(ToneSuccess, p.t("accounts.refreshedAll", "Refreshed all accounts", nil))
	}
	_ = p.Load(ctx)
}

// CurrentID returns the current account id, empty when none.
func (p *Page) CurrentID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentID
}

// SetCurrent switches the backend to an account and remembers it. Banned
// accounts are refused without calling the backend.
func (p *Page) SetCurrent(ctx context.Context, id string) {
	if pres, ok := p.Presentation(id); ok && pres.Status.IsBanned() {
		p.setMessage(ToneError, p.t("accounts.switchBanned", "{{name}} is banned and cannot be switched to",
			i18n.Params{"name": p.Mask(pres.DisplayName)}))
		return
	}
	if err := p.cfg.Service.Switch(ctx, id); err != nil {
		logger.Error("failed to switch account", "platform", p.cfg.Platform, "id", id, "error", err)
		p.setMessage(ToneError, p.t("accounts.switchFailed", "Switch failed: {{error}}", i18n.Params{"error": err.Error()}))
		return
	}

	p.mu.Lock()
	p.currentID = id
	name := id
	if acc, ok := lo.Find(p.accounts, func(a models.Account) bool { return a.Meta().ID == id }); ok {
		name = acc.Label()
	}
	p.mu.Unlock()

	if err := p.cfg.Prefs.Set(p.cfg.CurrentKey, id); err != nil {
		logger.Warn("failed to persist current account", "platform", p.cfg.Platform, "error", err)
	}
	p.setMessage(ToneSuccess, p.t("accounts.switched", "Switched to {{name}}", i18n.Params{"name": p.Mask(name)}))
}

// LowestQuota is the default quota sort value: the lowest known remaining
// percentage of the account's metrics.
func LowestQuota(_ models.Account, pres presentation.AccountPresentation) *float64 {
	var lowest *float64
	for _, m := range pres.QuotaItems {
		if m.QuotaClass == presentation.QuotaUnknown {
			continue
		}
		v := float64(m.Percentage)
		if lowest == nil || v < *lowest {
			lowest = &v
		}
	}
	return lowest
}

// compareNilLast orders present values by dir and puts nil values last
// whatever the direction.
func compareNilLast[T cmp.Ordered](a, b *T, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if desc {
		return cmp.Compare(*b, *a)
	}
	return cmp.Compare(*a, *b)
}

// Package accounts provides the accounts page of one platform: the account
// list with its filters, the add, export and delete dialogs and the quota
// history of the selected account.
package accounts

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/j-veylop/cockpit-tui/internal/app"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/pagestate"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/services"
	"github.com/j-veylop/cockpit-tui/internal/ui/components"
)

// HistoryFunc loads the recorded remaining percentages of one account metric.
type HistoryFunc func(ctx context.Context, accountID, metricKey string, since time.Time) ([]models.QuotaSnapshot, error)

// input is the inline editor owning the keyboard, if any.
type input int

const (
	inputNone input = iota
	inputSearch
	inputTags
	inputTagPicker
)

var (
	sortKeys  = []pagestate.SortKey{pagestate.SortCreated, pagestate.SortPlanEnd, pagestate.SortQuota}
	viewModes = []pagestate.ViewMode{pagestate.ViewList, pagestate.ViewGrid, pagestate.ViewCompact}
	addTabs   = []pagestate.AddTab{pagestate.TabOAuth, pagestate.TabToken, pagestate.TabImport}
)

// Model is the accounts page of one platform.
type Model struct {
	page    *pagestate.Page
	history HistoryFunc
	keys    keyMap
	spinner components.LoadingSpinner

	search    textinput.Model
	tagInput  textinput.Model
	addInput  textarea.Model
	exportVP  viewport.Model
	input     input
	tagEditID string
	tagCursor int
	// autoCloseAt is the add status close time already scheduled.
	autoCloseAt time.Time

	loadErr error
	cursor  int
	offset  int
	frame   int
	width   int
	height  int

	timeRange   models.TimeRange
	historyKey  string
	series      []float64
	snapshots   []models.QuotaSnapshot
	historyErr  error
	historyBusy bool
}

// New creates the page model. history may be nil, which hides the chart.
func New(page *pagestate.Page, history HistoryFunc) *Model {
	search := textinput.New()
	search.Placeholder = "search"
	search.Prompt = "/ "
	search.CharLimit = 120

	tags := textinput.New()
	tags.Placeholder = "tag1, tag2"
	tags.Prompt = "tags: "
	tags.CharLimit = 200

	area := textarea.New()
	area.ShowLineNumbers = false
	area.SetHeight(6)

	return &Model{
		page:     page,
		history:  history,
		keys:     defaultKeyMap(),
		spinner:  components.NewPlatformSpinner(page.Platform(), "Loading "+page.Platform().Title()+" accounts..."),
		search:   search,
		tagInput: tags,
		addInput: area,
		exportVP: viewport.New(0, 0),
	}
}

// Platform returns the platform the page manages.
func (m *Model) Platform() models.Platform {
	return m.page.Platform()
}

// Init loads the account list.
func (m *Model) Init() tea.Cmd {
	return loadCmd(m.page)
}

// Capturing reports whether a dialog or text input owns the keyboard.
func (m *Model) Capturing() bool {
	return m.input != inputNone ||
		m.page.AddOpen() ||
		m.page.Export() != nil ||
		len(m.page.DeleteConfirm()) > 0
}

// Update handles messages for the page.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		m.frame++

	case app.AccountsLoadedMsg:
		if msg.Platform != m.Platform() {
			return m, nil
		}
		m.loadErr = msg.Err
		m.clampCursor()
		return m, m.syncHistory(false)

	case app.ServiceEventMsg:
		return m, m.handleServiceEvent(msg.Event)

	case pageUpdatedMsg:
		if msg.platform != m.Platform() {
			return m, nil
		}
		return m, m.afterAction()

	case oauthPreparedMsg:
		if msg.platform != m.Platform() {
			return m, nil
		}
		if msg.started {
			return m, completeOAuthCmd(m.page)
		}
		return m, nil

	case autoCloseMsg:
		if msg.platform != m.Platform() {
			return m, nil
		}
		return m, actionCmd(m.page, func(ctx context.Context) { m.page.AutoClose(ctx) })

	case historyLoadedMsg:
		if msg.platform != m.Platform() || msg.key != m.historyKey {
			return m, nil
		}
		m.historyBusy = false
		m.historyErr = msg.err
		m.snapshots = msg.snapshots
		m.series = components.HistorySeries(msg.snapshots)
	}
	return m, nil
}

func (m *Model) handleServiceEvent(ev services.ServiceEvent) tea.Cmd {
	switch ev := ev.(type) {
	case services.AccountsChangedEvent:
		if ev.Platform == m.Platform() {
			return loadCmd(m.page)
		}
	case services.QuotaPolledEvent:
		if ev.Platform == m.Platform() && ev.Error == nil {
			return tea.Batch(loadCmd(m.page), m.syncHistory(true))
		}
	}
	return nil
}

// afterAction follows up a finished background action: it schedules the
// add modal's auto close and keeps the cursor and chart in range.
func (m *Model) afterAction() tea.Cmd {
	m.clampCursor()
	var cmds []tea.Cmd
	if st := m.page.AddStatus(); m.page.AddOpen() && st.Phase == pagestate.PhaseSuccess && !st.CloseAt.Equal(m.autoCloseAt) {
		m.autoCloseAt = st.CloseAt
		cmds = append(cmds, autoCloseCmd(m.Platform(), st.CloseAt))
	}
	if m.page.NeedsOAuthPrepare() {
		cmds = append(cmds, prepareOAuthCmd(m.page, false))
	}
	if job := m.page.Export(); job != nil {
		m.exportVP.SetContent(m.exportContent(job))
	}
	cmds = append(cmds, m.syncHistory(false))
	return tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case len(m.page.DeleteConfirm()) > 0:
		return m.updateDeleteConfirm(msg)
	case m.page.Export() != nil:
		return m.updateExport(msg)
	case m.page.AddOpen():
		return m.updateAdd(msg)
	case m.input == inputSearch:
		return m.updateSearch(msg)
	case m.input == inputTags:
		return m.updateTagEdit(msg)
	case m.input == inputTagPicker:
		return m.updateTagPicker(msg)
	}
	return m.updateList(msg)
}

func (m *Model) updateList(msg tea.KeyMsg) tea.Cmd {
	rows := m.rows()
	current := m.cursorItem(rows)

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m.syncHistory(false)

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
		return m.syncHistory(false)

	case key.Matches(msg, m.keys.Enter):
		if current == nil {
			return nil
		}
		id := current.Account.Meta().ID
		return actionCmd(m.page, func(ctx context.Context) { m.page.SetCurrent(ctx, id) })

	case key.Matches(msg, m.keys.Refresh):
		if current == nil {
			return nil
		}
		id := current.Account.Meta().ID
		return actionCmd(m.page, func(ctx context.Context) { m.page.Refresh(ctx, id) })

	case key.Matches(msg, m.keys.RefreshAll):
		return actionCmd(m.page, m.page.RefreshAll)

	case key.Matches(msg, m.keys.Select):
		if current != nil {
			m.page.ToggleSelect(current.Account.Meta().ID)
		}

	case key.Matches(msg, m.keys.SelectAll):
		ids := itemIDs(rows)
		if len(ids) > 0 && len(m.page.Selected()) == len(ids) {
			m.page.ClearSelection()
		} else {
			m.page.SelectAll(ids)
		}

	case key.Matches(msg, m.keys.Delete):
		ids := m.targetIDs(current)
		if len(ids) > 0 {
			m.page.RequestDelete(ids)
		}

	case key.Matches(msg, m.keys.Add):
		m.page.OpenAdd(pagestate.TabOAuth)
		return prepareOAuthCmd(m.page, false)

	case key.Matches(msg, m.keys.Export):
		ids := m.page.Selected()
		if len(ids) == 0 {
			ids = itemIDs(rows)
		}
		return actionCmd(m.page, func(ctx context.Context) { _ = m.page.StartExport(ctx, ids) })

	case key.Matches(msg, m.keys.Search):
		m.input = inputSearch
		m.search.SetValue(m.page.Filters().Search)
		m.search.CursorEnd()
		return m.search.Focus()

	case key.Matches(msg, m.keys.Sort):
		m.page.SetSortKey(cycle(sortKeys, m.page.Filters().SortKey))

	case key.Matches(msg, m.keys.SortDir):
		m.page.ToggleSortDirection()

	case key.Matches(msg, m.keys.Filter):
		m.page.SetTypeFilter(cycle(m.planClasses(), m.page.Filters().TypeFilter))
		m.cursor = 0
		return m.syncHistory(false)

	case key.Matches(msg, m.keys.TagFilter):
		m.input = inputTagPicker
		m.tagCursor = 0

	case key.Matches(msg, m.keys.EditTags):
		if current == nil {
			return nil
		}
		m.input = inputTags
		m.tagEditID = current.Account.Meta().ID
		m.tagInput.SetValue(strings.Join(current.Account.Meta().Tags, ", "))
		m.tagInput.CursorEnd()
		return m.tagInput.Focus()

	case key.Matches(msg, m.keys.Group):
		m.page.SetGroupByTag(!m.page.Filters().GroupByTag)
		m.clampCursor()

	case key.Matches(msg, m.keys.Privacy):
		m.page.TogglePrivacy()

	case key.Matches(msg, m.keys.View):
		m.page.SetViewMode(cycle(viewModes, m.page.ViewMode()))

	case key.Matches(msg, m.keys.Notice):
		m.page.ToggleFlowNotice()

	case key.Matches(msg, m.keys.Range):
		m.timeRange = m.timeRange.Next()
		return m.syncHistory(true)

	case key.Matches(msg, m.keys.Escape):
		m.page.ClearSelection()
		m.page.ClearMessage()
	}
	return nil
}

func (m *Model) updateDeleteConfirm(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keyConfirm):
		return actionCmd(m.page, func(ctx context.Context) { m.page.ConfirmDelete(ctx) })
	case key.Matches(msg, keyCancel):
		m.page.CancelDelete()
	}
	return nil
}

func (m *Model) updateExport(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keyClose):
		m.page.CloseExport()
		return nil
	case key.Matches(msg, keyHide):
		m.page.ToggleExportHidden()
		if job := m.page.Export(); job != nil {
			m.exportVP.SetContent(m.exportContent(job))
		}
		return nil
	case key.Matches(msg, keySave):
		return actionCmd(m.page, func(context.Context) { m.page.SaveExport("") })
	case key.Matches(msg, keyCopy):
		return actionCmd(m.page, func(context.Context) { m.page.CopyExport() })
	case key.Matches(msg, keyOpen):
		if !m.page.CanOpenExportDir() {
			return nil
		}
		dir := m.page.DefaultExportDir()
		return func() tea.Msg { return app.OpenURLMsg{URL: dir} }
	}
	var cmd tea.Cmd
	m.exportVP, cmd = m.exportVP.Update(msg)
	return cmd
}

func (m *Model) updateAdd(msg tea.KeyMsg) tea.Cmd {
	tab := m.page.AddTab()

	switch {
	case key.Matches(msg, keyClose):
		m.addInput.Blur()
		m.addInput.Reset()
		return actionCmd(m.page, m.page.CloseAdd)

	case key.Matches(msg, keyNextAddTab):
		next := cycle(addTabs, tab)
		m.addInput.Reset()
		var cmds []tea.Cmd
		if next == pagestate.TabOAuth {
			m.addInput.Blur()
		} else {
			cmds = append(cmds, m.addInput.Focus())
		}
		cmds = append(cmds, actionCmd(m.page, func(ctx context.Context) { m.page.SetAddTab(ctx, next) }))
		return tea.Batch(cmds...)
	}

	if tab == pagestate.TabOAuth {
		return m.updateOAuth(msg)
	}

	switch {
	case key.Matches(msg, keySubmit):
		value := m.addInput.Value()
		if tab == pagestate.TabToken {
			return actionCmd(m.page, func(ctx context.Context) { m.page.AddWithToken(ctx, value) })
		}
		return actionCmd(m.page, func(ctx context.Context) { m.page.ImportJSON(ctx, value) })
	case tab == pagestate.TabImport && key.Matches(msg, keyLocal):
		return actionCmd(m.page, m.page.ImportLocal)
	}

	if !m.addInput.Focused() {
		m.addInput.Focus()
	}
	var cmd tea.Cmd
	m.addInput, cmd = m.addInput.Update(msg)
	return cmd
}

func (m *Model) updateOAuth(msg tea.KeyMsg) tea.Cmd {
	flow := m.page.OAuth()
	switch {
	case key.Matches(msg, keyRetry):
		switch flow.State {
		case pagestate.OAuthError, pagestate.OAuthTimedOut, pagestate.OAuthPrepareFailed:
			return prepareOAuthCmd(m.page, true)
		}
	case key.Matches(msg, keyCopy):
		text := flow.UserCode
		if text == "" {
			text = flow.URL
		}
		if text == "" {
			return nil
		}
		return func() tea.Msg { return app.CopyToClipboardMsg{Text: text, Label: "Copied " + text} }
	case key.Matches(msg, keyOpen), key.Matches(msg, keyAccept):
		return m.openVerificationURL()
	}
	return nil
}

func (m *Model) openVerificationURL() tea.Cmd {
	url := m.page.OAuth().URL
	if url == "" {
		return nil
	}
	return func() tea.Msg { return app.OpenURLMsg{URL: url} }
}

func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.search.SetValue("")
		m.page.SetSearch("")
		fallthrough
	case "enter":
		m.input = inputNone
		m.search.Blur()
		m.clampCursor()
		return m.syncHistory(false)
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.page.SetSearch(m.search.Value())
	m.cursor = 0
	return cmd
}

func (m *Model) updateTagEdit(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.input = inputNone
		m.tagInput.Blur()
		return nil
	case "enter":
		m.input = inputNone
		m.tagInput.Blur()
		id, tags := m.tagEditID, splitTags(m.tagInput.Value())
		return actionCmd(m.page, func(ctx context.Context) { m.page.SaveTags(ctx, id, tags) })
	}
	var cmd tea.Cmd
	m.tagInput, cmd = m.tagInput.Update(msg)
	return cmd
}

func (m *Model) updateTagPicker(msg tea.KeyMsg) tea.Cmd {
	tags := m.page.AllTags()
	switch {
	case key.Matches(msg, keyClose), key.Matches(msg, keyAccept):
		m.input = inputNone
		m.clampCursor()
		return m.syncHistory(false)
	case key.Matches(msg, m.keys.Up):
		if m.tagCursor > 0 {
			m.tagCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.tagCursor < len(tags)-1 {
			m.tagCursor++
		}
	case key.Matches(msg, keyToggleTag):
		if m.tagCursor < len(tags) {
			m.page.ToggleTagFilter(tags[m.tagCursor])
		}
	case key.Matches(msg, keyClearTags):
		m.page.ClearTagFilter()
	case key.Matches(msg, keyDeleteTag):
		if m.tagCursor < len(tags) {
			tag := tags[m.tagCursor]
			if m.tagCursor > 0 && m.tagCursor == len(tags)-1 {
				m.tagCursor--
			}
			return actionCmd(m.page, func(ctx context.Context) { m.page.DeleteTag(ctx, tag) })
		}
	}
	return nil
}

// rows returns the visible items in display order.
func (m *Model) rows() []pagestate.Item {
	if !m.page.Filters().GroupByTag {
		return m.page.Visible()
	}
	var out []pagestate.Item
	for _, g := range m.page.GroupByTag() {
		out = append(out, g.Items...)
	}
	return out
}

func (m *Model) cursorItem(rows []pagestate.Item) *pagestate.Item {
	if m.cursor < 0 || m.cursor >= len(rows) {
		return nil
	}
	return &rows[m.cursor]
}

func (m *Model) clampCursor() {
	n := len(m.rows())
	m.cursor = min(m.cursor, n-1)
	m.cursor = max(m.cursor, 0)
}

// targetIDs is the selection, or the account under the cursor.
func (m *Model) targetIDs(current *pagestate.Item) []string {
	if ids := m.page.Selected(); len(ids) > 0 {
		return ids
	}
	if current == nil {
		return nil
	}
	return []string{current.Account.Meta().ID}
}

// planClasses lists the filter cycle: all plans, then every class present.
func (m *Model) planClasses() []string {
	classes := lo.Uniq(lo.FilterMap(m.page.Accounts(), func(acc models.Account, _ int) (string, bool) {
		p, ok := m.page.Presentation(acc.Meta().ID)
		return strings.ToLower(p.PlanClass), ok && p.PlanClass != ""
	}))
	slices.Sort(classes)
	return append([]string{""}, classes...)
}

// syncHistory loads the chart for the account under the cursor when it is
// not shown already. force reloads it regardless.
func (m *Model) syncHistory(force bool) tea.Cmd {
	if m.history == nil {
		return nil
	}
	current := m.cursorItem(m.rows())
	if current == nil {
		m.historyKey, m.series, m.snapshots, m.historyErr = "", nil, nil, nil
		return nil
	}
	metric, ok := chartMetric(current.Presentation)
	if !ok {
		m.historyKey, m.series, m.snapshots, m.historyErr = "", nil, nil, nil
		return nil
	}
	id := current.Account.Meta().ID
	k := id + "|" + metric.Key + "|" + m.timeRange.String()
	if k == m.historyKey && !force {
		return nil
	}
	if k != m.historyKey {
		m.series, m.snapshots = nil, nil
	}
	m.historyKey = k
	m.historyBusy = true
	since := time.Now().Add(-m.timeRange.Duration())
	return historyCmd(m.history, m.Platform(), k, id, metric.Key, since)
}

// chartMetric is the first metric with known data.
func chartMetric(p presentation.AccountPresentation) (presentation.QuotaMetric, bool) {
	return lo.Find(p.QuotaItems, func(q presentation.QuotaMetric) bool {
		return q.QuotaClass != presentation.QuotaUnknown
	})
}

func itemIDs(items []pagestate.Item) []string {
	return lo.Uniq(lo.Map(items, func(it pagestate.Item, _ int) string { return it.Account.Meta().ID }))
}

func splitTags(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(t string, _ int) string {
		return strings.TrimSpace(t)
	}))
}

// cycle returns the element after cur, wrapping around. Unknown values
// restart at the first element.
func cycle[T comparable](all []T, cur T) T {
	i := slices.Index(all, cur)
	return all[(i+1)%len(all)]
}

// SetSize sets the available size for the page.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.addInput.SetWidth(max(modalWidth(width)-6, 20))
	m.exportVP.Width = max(modalWidth(width)-6, 20)
	m.exportVP.Height = max(height-14, 4)
	m.search.Width = max(width-10, 10)
	m.tagInput.Width = max(width-16, 10)
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	switch {
	case len(m.page.DeleteConfirm()) > 0:
		return []key.Binding{keyConfirm, keyCancel}
	case m.page.Export() != nil:
		return []key.Binding{keySave, keyCopy, keyHide, keyOpen, keyClose}
	case m.page.AddOpen():
		if m.page.AddTab() == pagestate.TabOAuth {
			return []key.Binding{keyNextAddTab, keyOpen, keyCopy, keyRetry, keyClose}
		}
		if m.page.AddTab() == pagestate.TabImport {
			return []key.Binding{keyNextAddTab, keySubmit, keyLocal, keyClose}
		}
		return []key.Binding{keyNextAddTab, keySubmit, keyClose}
	case m.input == inputTagPicker:
		return []key.Binding{keyToggleTag, keyClearTags, keyDeleteTag, keyClose}
	case m.input != inputNone:
		return []key.Binding{keyAccept, keyClose}
	}
	return []key.Binding{m.keys.Enter, m.keys.Refresh, m.keys.Add, m.keys.Delete, m.keys.Search}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down, m.keys.Enter, m.keys.Refresh, m.keys.RefreshAll},
		{m.keys.Select, m.keys.SelectAll, m.keys.Delete, m.keys.Add, m.keys.Export},
		{m.keys.Search, m.keys.Sort, m.keys.SortDir, m.keys.Filter, m.keys.TagFilter},
		{m.keys.EditTags, m.keys.Group, m.keys.Privacy, m.keys.View, m.keys.Notice, m.keys.Range},
	}
}

package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/pagestate"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/services/projection"
	"github.com/j-veylop/cockpit-tui/internal/ui/components"
	"github.com/j-veylop/cockpit-tui/internal/ui/styles"
)

const (
	gridCardWidth = 36
	chartHeight   = 6
)

// flowNotices explains how each platform adds accounts.
var flowNotices = map[models.Platform]string{
	models.PlatformAntigravity: "Sign in with Google in the browser. Local import reads the accounts file of an installed Antigravity.",
	models.PlatformCodex:       "Sign in with your OpenAI account in the browser, or import an auth.json from a local Codex install.",
	models.PlatformCopilot:     "Enter the device code on github.com, or paste a GitHub token with Copilot access.",
	models.PlatformWindsurf:    "Authorize through GitHub, or paste a Windsurf API key or GitHub token.",
	models.PlatformKiro:        "Sign in with an AWS Builder ID device code, or import the Kiro token cache from this machine.",
}

// View renders the accounts page.
func (m *Model) View() string {
	if !m.page.Loaded() && m.loadErr == nil {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	var sections []string
	sections = append(sections, m.renderTitle())
	if notice := m.renderNotice(); notice != "" {
		sections = append(sections, notice)
	}
	if line := m.renderControls(); line != "" {
		sections = append(sections, line)
	}
	if msg := m.page.Message(); msg.Text != "" {
		sections = append(sections, styles.ToneStyle(msg.Tone).Render(msg.Text))
	}
	if m.loadErr != nil {
		sections = append(sections, styles.ErrorTextStyle.Render("Failed to load accounts: "+m.loadErr.Error()))
	}

	switch {
	case len(m.page.DeleteConfirm()) > 0:
		sections = append(sections, m.renderDeleteConfirm())
	case m.page.Export() != nil:
		sections = append(sections, m.renderExport())
	case m.page.AddOpen():
		sections = append(sections, m.renderAdd())
	case m.input == inputTagPicker:
		sections = append(sections, m.renderTagPicker())
	default:
		used := lipgloss.Height(lipgloss.JoinVertical(lipgloss.Left, sections...))
		detail := m.renderDetail()
		avail := m.height - used - lipgloss.Height(detail) - 4
		sections = append(sections, m.renderList(max(avail, 3)))
		if detail != "" {
			sections = append(sections, detail)
		}
	}

	sections = append(sections, m.renderFooter())
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return styles.DocStyle.Width(m.width).MaxHeight(m.height).Render(content)
}

func (m *Model) renderTitle() string {
	p := m.Platform()
	title := styles.TitleStyle.Foreground(styles.PlatformColor(p)).Render(p.Title() + " Accounts")

	total := len(m.page.Accounts())
	shown := len(m.page.Visible())
	info := fmt.Sprintf("%d accounts", total)
	if shown != total {
		info = fmt.Sprintf("%d of %d accounts", shown, total)
	}
	if n := len(m.page.Selected()); n > 0 {
		info += fmt.Sprintf(" · %d selected", n)
	}
	if m.page.RefreshingAll() {
		info += " · refreshing " + m.spinner.View()
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", styles.HelpStyle.Render(info))
}

func (m *Model) renderNotice() string {
	text, ok := flowNotices[m.Platform()]
	if !ok {
		return ""
	}
	if m.page.NoticeCollapsed() {
		return styles.HelpStyle.Render("ⓘ login notes hidden (N to show)")
	}
	return styles.NoticeStyle.Width(max(m.width-6, 20)).Render("ⓘ " + text)
}

// renderControls summarises sort, filters and layout.
func (m *Model) renderControls() string {
	f := m.page.Filters()
	dir := "↓"
	if !f.SortDesc {
		dir = "↑"
	}
	parts := []string{
		"sort " + string(f.SortKey) + " " + dir,
		"view " + string(m.page.ViewMode()),
	}
	if f.TypeFilter != "" {
		parts = append(parts, "plan "+f.TypeFilter)
	}
	if len(f.Tags) > 0 {
		parts = append(parts, "tags "+strings.Join(f.Tags, ","))
	}
	if f.GroupByTag {
		parts = append(parts, "grouped")
	}
	if m.page.Privacy() {
		parts = append(parts, "private")
	}
	line := styles.HelpStyle.Render(strings.Join(parts, " · "))

	switch {
	case m.input == inputSearch:
		line = lipgloss.JoinVertical(lipgloss.Left, line, m.search.View())
	case f.Search != "":
		line = lipgloss.JoinVertical(lipgloss.Left, line, styles.InfoTextStyle.Render("/ "+f.Search))
	}
	if m.input == inputTags {
		line = lipgloss.JoinVertical(lipgloss.Left, line, m.tagInput.View())
	}
	return line
}

// block is one rendered account plus an optional group header.
type block struct {
	text  string
	lines int
}

func (m *Model) renderList(avail int) string {
	if len(m.page.Accounts()) == 0 {
		return m.renderEmptyState()
	}
	blocks := m.blocks()
	if len(blocks) == 0 {
		return styles.HelpStyle.Render("No accounts match the current filters.")
	}
	m.cursor = min(m.cursor, len(blocks)-1)

	if m.page.ViewMode() == pagestate.ViewGrid {
		return m.renderGrid(avail)
	}

	start, end := m.window(blocks, avail)
	out := make([]string, 0, end-start)
	for _, b := range blocks[start:end] {
		out = append(out, b.text)
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

// window picks the blocks shown around the cursor.
func (m *Model) window(blocks []block, avail int) (start, end int) {
	m.offset = min(m.offset, m.cursor)
	used := 0
	for i := m.offset; i <= m.cursor && i < len(blocks); i++ {
		used += blocks[i].lines
	}
	for used > avail && m.offset < m.cursor {
		used -= blocks[m.offset].lines
		m.offset++
	}
	end = m.cursor + 1
	for end < len(blocks) && used+blocks[end].lines <= avail {
		used += blocks[end].lines
		end++
	}
	return m.offset, min(end, len(blocks))
}

// blocks renders every visible row in display order.
func (m *Model) blocks() []block {
	compact := m.page.ViewMode() == pagestate.ViewCompact
	render := func(i int, it pagestate.Item) string {
		if compact {
			return m.renderCompactRow(i, it)
		}
		return m.renderRow(i, it)
	}

	var out []block
	if !m.page.Filters().GroupByTag {
		for i, it := range m.page.Visible() {
			text := render(i, it)
			out = append(out, block{text: text, lines: lipgloss.Height(text)})
		}
		return out
	}

	i := 0
	for _, g := range m.page.GroupByTag() {
		header := styles.GroupHeaderStyle.Render(fmt.Sprintf("%s (%d)", g.Label, len(g.Items)))
		for j, it := range g.Items {
			text := render(i, it)
			if j == 0 {
				text = lipgloss.JoinVertical(lipgloss.Left, header, text)
			}
			out = append(out, block{text: text, lines: lipgloss.Height(text)})
			i++
		}
	}
	return out
}

// rowHeader renders cursor, selection, current marker, name, plan and tags.
func (m *Model) rowHeader(i int, it pagestate.Item) string {
	id := it.Account.Meta().ID
	pres := it.Presentation

	cursor := "  "
	if i == m.cursor {
		cursor = styles.FocusedStyle.Render("▸ ")
	}
	check := "[ ]"
	if m.page.IsSelected(id) {
		check = styles.SuccessTextStyle.Render("[x]")
	}
	current := " "
	if m.page.CurrentID() == id {
		current = styles.CurrentMarkerStyle.Render("●")
	}

	name := m.page.Mask(pres.DisplayName)
	nameStyle := styles.ListItemStyle
	if i == m.cursor {
		nameStyle = styles.SelectedListItemStyle
	}

	parts := []string{cursor + check + " " + current, nameStyle.Render(name)}
	if pres.PlanLabel != "" && pres.StatusText != pres.PlanLabel {
		parts = append(parts, styles.PlanStyle(pres.PlanClass).Render(pres.PlanLabel))
	}
	if badge := statusBadge(pres); badge != "" {
		parts = append(parts, badge)
	}
	for _, tag := range it.Account.Meta().Tags {
		parts = append(parts, styles.TagStyle.Render("#"+tag))
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderRow(i int, it pagestate.Item) string {
	lines := []string{m.rowHeader(i, it)}
	barWidth := min(max(m.width-12, 30), 90)
	indent := "      "

	if m.page.IsRefreshing(it.Account.Meta().ID) {
		lines = append(lines, indent+components.QuotaBarLoading(styles.PlatformColor(m.Platform()), barWidth, m.frame))
	} else if len(it.Presentation.QuotaItems) == 0 {
		lines = append(lines, indent+components.ViewUnknown("No quota data", barWidth))
	} else {
		for _, q := range it.Presentation.QuotaItems {
			line := components.SimpleQuotaBar(q, barWidth)
			if q.ResetText != "" {
				line += " " + styles.HelpStyle.Render(q.ResetText)
			}
			lines = append(lines, indent+line)
		}
	}

	if meta := m.rowMeta(it); meta != "" {
		lines = append(lines, indent+styles.HelpStyle.Render(meta))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) rowMeta(it pagestate.Item) string {
	var parts []string
	if it.Presentation.CycleText != "" {
		parts = append(parts, it.Presentation.CycleText)
	}
	if created := it.Account.Meta().CreatedAt; created > 0 {
		parts = append(parts, "added "+pagestate.FormatDate(created))
	}
	return strings.Join(parts, " · ")
}

// statusBadge marks an account whose status carries an error.
func statusBadge(pres presentation.AccountPresentation) string {
	if !pres.Status.HasStatusError() {
		return ""
	}
	text := "⚠ " + pres.StatusText
	if pres.Status.Reason != "" {
		text = ansi.Truncate(text+": "+pres.Status.Reason, 48, "…")
	}
	style := styles.WarningTextStyle
	if pres.Status.IsBanned() {
		style = styles.ErrorTextStyle
	}
	return style.Render(text)
}

func (m *Model) renderCompactRow(i int, it pagestate.Item) string {
	header := m.rowHeader(i, it)
	if m.page.IsRefreshing(it.Account.Meta().ID) {
		return header + "  " + m.spinner.View()
	}
	preview := presentation.BuildQuotaPreviewLines(it.Presentation.QuotaItems, 3)
	if len(preview) == 0 {
		return header
	}
	return header + "  " + styles.HelpStyle.Render(strings.Join(preview, " | "))
}

func (m *Model) renderGrid(avail int) string {
	items := m.rows()
	perRow := max((m.width-4)/(gridCardWidth+2), 1)

	var rows []string
	for start := 0; start < len(items); start += perRow {
		end := min(start+perRow, len(items))
		cards := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			cards = append(cards, m.renderCard(i, items[i]))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}

	// Keep the cursor's row on screen.
	cursorRow := m.cursor / perRow
	first := 0
	used := 0
	for r := cursorRow; r >= 0; r-- {
		h := lipgloss.Height(rows[r])
		if used+h > avail && r != cursorRow {
			break
		}
		used += h
		first = r
	}
	last := cursorRow + 1
	for last < len(rows) && used+lipgloss.Height(rows[last]) <= avail {
		used += lipgloss.Height(rows[last])
		last++
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows[first:last]...)
}

func (m *Model) renderCard(i int, it pagestate.Item) string {
	id := it.Account.Meta().ID
	pres := it.Presentation
	inner := gridCardWidth - 4

	title := m.page.Mask(pres.DisplayName)
	if m.page.CurrentID() == id {
		title = styles.CurrentMarkerStyle.Render("● ") + title
	}
	if m.page.IsSelected(id) {
		title = styles.SuccessTextStyle.Render("✓ ") + title
	}

	lines := []string{styles.CardTitleStyle.Render(title)}
	if pres.PlanLabel != "" && pres.StatusText != pres.PlanLabel {
		lines = append(lines, styles.PlanStyle(pres.PlanClass).Render(pres.PlanLabel))
	}
	if badge := statusBadge(pres); badge != "" {
		lines = append(lines, badge)
	}
	switch {
	case m.page.IsRefreshing(id):
		lines = append(lines, components.QuotaBarLoading(styles.PlatformColor(m.Platform()), inner, m.frame))
	case len(pres.QuotaItems) == 0:
		lines = append(lines, components.ViewUnknown("No quota data", inner))
	default:
		for _, q := range pres.QuotaItems {
			lines = append(lines, components.SimpleQuotaBar(q, inner))
		}
	}
	if pres.CycleText != "" {
		lines = append(lines, styles.HelpStyle.Render(pres.CycleText))
	}

	card := styles.CardStyle.Width(gridCardWidth)
	if i == m.cursor {
		card = card.BorderForeground(styles.PlatformColor(m.Platform()))
	}
	return card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderEmptyState() string {
	cardWidth := max(m.width-6, 40)
	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		styles.SubTitleStyle.Render("No Accounts Yet"),
		"",
		styles.HelpStyle.Render("Add an account to start tracking its quota."),
		"",
		styles.InfoTextStyle.Render("Press 'n' to add an account"),
		"",
	)
	return styles.CardStyle.Width(cardWidth).Render(content)
}

// renderDetail renders the quota history of the account under the cursor.
func (m *Model) renderDetail() string {
	if m.history == nil || m.page.ViewMode() == pagestate.ViewCompact {
		return ""
	}
	current := m.cursorItem(m.rows())
	if current == nil {
		return ""
	}
	metric, ok := chartMetric(current.Presentation)
	if !ok {
		return ""
	}

	caption := fmt.Sprintf("%s · last %s (h to change)", metric.Label, m.timeRange)
	var body string
	switch {
	case m.historyErr != nil:
		body = styles.ErrorTextStyle.Render("History unavailable: " + m.historyErr.Error())
	case m.historyBusy && len(m.series) == 0:
		body = m.spinner.View() + " loading history"
	case len(m.series) < 2:
		body = styles.HelpStyle.Render("Not enough history yet for " + metric.Label + " (" + m.timeRange.String() + ")")
	default:
		body = components.RenderLineChart(m.series, max(m.width-16, 20), chartHeight, caption) +
			"  " + components.RenderSparkline(m.series, 20)
		if line := renderProjection(m.snapshots, metric); line != "" {
			body = lipgloss.JoinVertical(lipgloss.Left, body, line)
		}
	}
	return styles.CardStyle.Width(max(m.width-6, 40)).Render(body)
}

func modalWidth(width int) int {
	return min(max(width-10, 50), 90)
}

func (m *Model) renderDeleteConfirm() string {
	ids := m.page.DeleteConfirm()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		label := id
		if p, ok := m.page.Presentation(id); ok && p.DisplayName != "" {
			label = p.DisplayName
		}
		names = append(names, styles.ErrorTextStyle.Render(m.page.Mask(label)))
	}
	if len(names) > 8 {
		names = append(names[:8], fmt.Sprintf("and %d more", len(ids)-8))
	}

	title := "Delete Account?"
	if len(ids) > 1 {
		title = fmt.Sprintf("Delete %d Accounts?", len(ids))
	}
	rows := []string{
		"",
		styles.WarningTextStyle.Bold(true).Render(title),
		"",
	}
	rows = append(rows, names...)
	rows = append(rows,
		"",
		"This action cannot be undone.",
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			styles.ButtonActiveStyle.Render(" (Y)es "),
			"  ",
			styles.ButtonInactiveStyle.Render(" (N)o "),
		),
		"",
	)
	content := lipgloss.JoinVertical(lipgloss.Center, rows...)
	return styles.CenterHorizontal(styles.ModalContentStyle.Width(56).Render(content), m.width)
}

func (m *Model) renderAdd() string {
	width := modalWidth(m.width)
	tab := m.page.AddTab()

	tabs := make([]string, 0, len(addTabs))
	for _, t := range addTabs {
		label := " " + addTabTitle(t) + " "
		if t == tab {
			tabs = append(tabs, styles.ButtonActiveStyle.Render(label))
		} else {
			tabs = append(tabs, styles.ButtonInactiveStyle.Render(label))
		}
	}

	rows := []string{
		styles.CardTitleStyle.Render("Add " + m.Platform().Title() + " Account"),
		lipgloss.JoinHorizontal(lipgloss.Center, tabs...),
		"",
	}

	switch tab {
	case pagestate.TabOAuth:
		rows = append(rows, m.renderOAuth()...)
	case pagestate.TabToken:
		rows = append(rows,
			styles.HelpStyle.Render("Paste one or more tokens, separated by lines or commas, or a JSON document holding them."),
			m.addInput.View(),
		)
	case pagestate.TabImport:
		rows = append(rows,
			styles.HelpStyle.Render("Paste exported account JSON, or press ctrl+l to import from this machine."),
			m.addInput.View(),
		)
	}

	if st := m.page.AddStatus(); st.Phase != pagestate.PhaseIdle {
		rows = append(rows, "", m.renderAddStatus(st))
	}

	rows = append(rows, "", styles.HelpStyle.Render(helpLine(m.ShortHelp())))
	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return styles.CenterHorizontal(styles.ModalContentStyle.Width(width).Render(content), m.width)
}

func addTabTitle(t pagestate.AddTab) string {
	switch t {
	case pagestate.TabOAuth:
		return "Sign in"
	case pagestate.TabToken:
		return "Token"
	default:
		return "Import"
	}
}

func (m *Model) renderOAuth() []string {
	flow := m.page.OAuth()
	status := m.page.OAuthMessage()

	var rows []string
	switch flow.State {
	case pagestate.OAuthPreparing, pagestate.OAuthIdle:
		rows = append(rows, m.spinner.View()+" "+status)
	case pagestate.OAuthPolling:
		if flow.UserCode != "" {
			rows = append(rows,
				"Enter this code:",
				styles.TitleStyle.Render(flow.UserCode),
			)
		}
		if flow.URL != "" {
			rows = append(rows, "Open: "+styles.InfoTextStyle.Render(flow.URL))
		}
		if flow.ExpiresIn > 0 {
			rows = append(rows, styles.HelpStyle.Render(fmt.Sprintf("The code expires in %s.", presentation.FormatDuration(secondsDuration(flow.ExpiresIn)))))
		}
		rows = append(rows, "", m.spinner.View()+" "+status)
	case pagestate.OAuthSuccess:
		rows = append(rows, styles.SuccessTextStyle.Render("✓ "+status))
	case pagestate.OAuthTimedOut:
		rows = append(rows, styles.WarningTextStyle.Render(status), styles.HelpStyle.Render("Press r to start a new login."))
	default:
		rows = append(rows, styles.ErrorTextStyle.Render(status), styles.HelpStyle.Render("Press r to retry."))
	}
	return rows
}

func (m *Model) renderAddStatus(st pagestate.AddStatus) string {
	switch st.Phase {
	case pagestate.PhaseLoading:
		return m.spinner.View() + " " + st.Message
	case pagestate.PhaseSuccess:
		return styles.SuccessTextStyle.Render("✓ " + st.Message)
	case pagestate.PhasePartial:
		return styles.WarningTextStyle.Render(st.Message)
	default:
		return styles.ErrorTextStyle.Render(st.Message)
	}
}

func (m *Model) renderExport() string {
	job := m.page.Export()
	if job == nil {
		return ""
	}
	width := modalWidth(m.width)

	rows := []string{
		styles.CardTitleStyle.Render(fmt.Sprintf("Export %d account(s)", len(job.IDs))),
		styles.HelpStyle.Render("File: " + job.FileName),
		"",
		m.exportVP.View(),
	}
	if job.SavedPath != "" {
		rows = append(rows, "", styles.SuccessTextStyle.Render("Saved to "+job.SavedPath))
	}
	rows = append(rows, "", styles.HelpStyle.Render(helpLine(m.ShortHelp())))
	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return styles.CenterHorizontal(styles.ModalContentStyle.Width(width).Render(content), m.width)
}

// exportContent is the JSON shown in the export modal; hidden exports show
// a placeholder of the same shape.
func (m *Model) exportContent(job *pagestate.ExportJob) string {
	if !job.Hidden {
		return job.JSON
	}
	lines := strings.Count(job.JSON, "\n") + 1
	return styles.HelpStyle.Render(fmt.Sprintf("%d lines of credentials hidden. Press h to show.", lines))
}

func (m *Model) renderTagPicker() string {
	tags := m.page.AllTags()
	active := m.page.Filters().Tags

	rows := []string{styles.CardTitleStyle.Render("Filter by tag"), ""}
	if len(tags) == 0 {
		rows = append(rows, styles.HelpStyle.Render("No tags yet. Press t on an account to add some."))
	}
	for i, tag := range tags {
		mark := "[ ]"
		for _, a := range active {
			if a == tag {
				mark = styles.SuccessTextStyle.Render("[x]")
			}
		}
		line := mark + " " + tag
		if i == m.tagCursor {
			line = styles.FocusedStyle.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		rows = append(rows, line)
	}
	rows = append(rows, "", styles.HelpStyle.Render(helpLine(m.ShortHelp())))
	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return styles.CenterHorizontal(styles.ModalContentStyle.Width(48).Render(content), m.width)
}

// renderFooter renders the footer with keyboard shortcuts.
func (m *Model) renderFooter() string {
	return lipgloss.NewStyle().
		MarginTop(1).
		Foreground(styles.TextMuted).
		Render(helpLine(m.ShortHelp()))
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+h.Desc)
	}
	return strings.Join(parts, styles.HelpSeparatorStyle.Render(" | "))
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// renderProjection summarises the burn rate of the charted metric.
func renderProjection(snapshots []models.QuotaSnapshot, metric presentation.QuotaMetric) string {
	var resetAt time.Time
	if metric.ResetAt != nil {
		resetAt = time.Unix(*metric.ResetAt, 0)
	}
	proj := projection.Calculate(snapshots, float64(metric.Percentage), resetAt, time.Now())
	if proj.Rate <= 0 {
		return styles.HelpStyle.Render("No consumption this session")
	}

	text := fmt.Sprintf("Burn %.1f%%/h · empty in %s", proj.Rate,
		presentation.FormatDuration(time.Duration(proj.HoursLeft*float64(time.Hour))))
	if proj.Confidence == projection.ConfidenceLow {
		text += " (low confidence)"
	}

	switch proj.Status {
	case projection.StatusCritical:
		return styles.ProjectionCriticalStyle.Render("▲ CRITICAL ") + styles.ErrorTextStyle.Render(text)
	case projection.StatusWarning:
		return styles.ProjectionWarningStyle.Render("▲ WARNING ") + styles.WarningTextStyle.Render(text)
	case projection.StatusSafe:
		return styles.ProjectionSafeStyle.Render("● SAFE ") + styles.HelpStyle.Render(text)
	default:
		return styles.HelpStyle.Render(text)
	}
}

package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/j-veylop/cockpit-tui/internal/pagestate"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/ui/components"
	"github.com/j-veylop/cockpit-tui/internal/ui/styles"
)

const indentSpace = "    "

// View renders the overview.
func (m *Model) View() string {
	if len(m.pages) > 0 && !lo.SomeBy(m.pages, (*pagestate.Page).Loaded) {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	var sections []string
	sections = append(sections, m.renderTitle())
	sections = append(sections, m.renderPlatformList())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the overview title with the account totals.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Cockpit")

	total := lo.SumBy(m.pages, func(p *pagestate.Page) int { return len(p.Accounts()) })
	text := fmt.Sprintf("%d accounts across %d platforms", total, len(m.pages))
	if m.state != nil {
		if t := m.state.GetLastPolled(); !t.IsZero() {
			text += " · last poll " + t.Format(time.TimeOnly)
		}
	}
	subtitle := styles.HelpStyle.Render(text)

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

// renderPlatformList renders one block per platform inside a single card.
func (m *Model) renderPlatformList() string {
	cardWidth := max(m.width-6, 40)

	var rows []string

	titleIcon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	rows = append(rows, fmt.Sprintf("%s %s", titleIcon, styles.CardTitleStyle.Render("Platforms")))

	if len(m.pages) == 0 {
		rows = append(rows, "")
		emptyIcon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")
		rows = append(rows, fmt.Sprintf("  %s %s", emptyIcon, styles.HelpStyle.Render("No platforms configured")))
		return styles.CardStyle.Width(cardWidth).Render(
			lipgloss.JoinVertical(lipgloss.Left, rows...),
		)
	}

	dividerWidth := max(cardWidth-8, 20)
	divider := lipgloss.NewStyle().Foreground(styles.Subtle).Render(
		"  ├" + strings.Repeat("─", dividerWidth) + "┤",
	)

	rows = append(rows, "")
	for i, page := range m.pages {
		rows = append(rows, m.renderPlatform(page, i == m.selectedIndex, cardWidth-4))
		if i < len(m.pages)-1 {
			rows = append(rows, "", divider, "")
		}
	}
	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) renderPlatform(page *pagestate.Page, selected bool, width int) string {
	s := summarize(page)
	contentWidth := max(width-4, 20)

	lines := []string{m.renderPlatformHeader(s, selected)}

	switch {
	case !s.loaded:
		lines = append(lines, indentSpace+styles.HelpStyle.Render(m.spinner.ViewWithLabel()))
	case s.item == nil:
		lines = append(lines, indentSpace+styles.HelpStyle.Render("No accounts yet"))
	default:
		lines = append(lines, m.renderAccountLine(page, s))
		lines = append(lines, m.renderQuotas(s, contentWidth)...)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderPlatformHeader(s summary, selected bool) string {
	selectionPrefix := "  "
	if selected {
		selectionPrefix = styles.FocusedStyle.Render("▸ ")
	}

	color := styles.PlatformColor(s.platform)
	icon := lipgloss.NewStyle().Foreground(color).Render("◆")
	name := lipgloss.NewStyle().Foreground(color).Bold(true).Render(s.platform.Title())

	noun := "accounts"
	if s.count == 1 {
		noun = "account"
	}
	count := styles.HelpStyle.Render(fmt.Sprintf("%d %s", s.count, noun))

	return fmt.Sprintf("%s%s %s  %s", selectionPrefix, icon, name, count)
}

func (m *Model) renderAccountLine(page *pagestate.Page, s summary) string {
	pres := s.item.Presentation

	indicator := styles.SuccessTextStyle.Render("● ")
	note := ""
	if s.fallback {
		indicator = lipgloss.NewStyle().Foreground(styles.Subtle).Render("○ ")
		note = " " + styles.HelpStyle.Render("(lowest quota)")
	}

	name := page.Mask(pres.DisplayName)
	if len(name) > 35 {
		name = name[:32] + "..."
	}

	line := indentSpace + indicator + lipgloss.NewStyle().Bold(true).Render(name)
	if pres.PlanLabel != "" && !pres.Status.IsBanned() {
		line += " " + styles.PlanStyle(pres.PlanClass).Render(pres.PlanLabel)
	}
	switch {
	case pres.Status.IsBanned():
		line += " " + styles.ErrorTextStyle.Render("⚠ "+pres.StatusText)
	case pres.Status.HasStatusError():
		line += " " + styles.WarningTextStyle.Render("⚠ "+pres.StatusText)
	}
	return line + note
}

func (m *Model) renderQuotas(s summary, width int) []string {
	metrics := bars(s.item.Presentation)
	if len(metrics) == 0 {
		return []string{indentSpace + styles.HelpStyle.Render("No quota data")}
	}

	lines := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		if s.refreshing {
			label := styles.ProgressLabelStyle.Width(12).Render(metric.Label)
			lines = append(lines, indentSpace+label+components.QuotaBarLoading(styles.PlatformColor(s.platform), width-16, m.animationFrame))
			continue
		}
		lines = append(lines, m.renderQuotaBar(s, metric, width))
	}
	return lines
}

func (m *Model) renderQuotaBar(s summary, metric presentation.QuotaMetric, width int) string {
	const (
		labelWidth   = 12
		percentWidth = 6
		resetWidth   = 16
	)

	label := styles.ProgressLabelStyle.Width(labelWidth).Render(metric.Label)
	barWidth := max(width-len(indentSpace)-labelWidth-percentWidth-resetWidth-4, 10)

	if metric.QuotaClass == presentation.QuotaUnknown {
		bar := styles.QuotaUnknownStyle.Render(strings.Repeat("░", barWidth))
		percentStr := styles.QuotaUnknownStyle.Width(percentWidth).Align(lipgloss.Right).Render("--")
		return lipgloss.JoinHorizontal(lipgloss.Left, indentSpace, label, bar, " ", percentStr)
	}

	percent := m.animatedPercent(s.platform, metric)
	percentStr := styles.QuotaClassStyle(metric.QuotaClass).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))

	resetStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(resetWidth).
		Align(lipgloss.Right).
		Render(metric.ResetText)

	return lipgloss.JoinHorizontal(lipgloss.Left,
		indentSpace,
		label,
		components.RenderGradientBar(percent, barWidth),
		" ",
		percentStr,
		" ",
		resetStr,
	)
}

package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/cockpit-tui/internal/ui/styles"
)

const toastTop = 2

var (
	navBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(styles.Subtle)
	navActiveStyle   = lipgloss.NewStyle().Bold(true).Foreground(styles.Secondary).Padding(0, 2)
	navInactiveStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Padding(0, 2)
	contentStyle     = lipgloss.NewStyle().Padding(1, 2)

	toastStyles = map[NotificationType]struct {
		style  lipgloss.Style
		prefix string
	}{
		NotificationSuccess: {styles.SuccessTextStyle, "[OK]"},
		NotificationError:   {styles.ErrorTextStyle.Bold(true), "[ERR]"},
		NotificationWarning: {styles.WarningTextStyle, "[WARN]"},
		NotificationInfo:    {styles.InfoTextStyle, "[INFO]"},
	}
)

func (m *Model) View() string {
	var b strings.Builder
	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteByte('\n')
	}
	if !m.ready {
		b.WriteString(contentStyle.Render(m.spinner.View() + " Loading..."))
		return b.String()
	}

	if tab := m.activeTabModel(); tab != nil {
		b.WriteString(tab.View())
	} else {
		b.WriteString(contentStyle.Render(styles.HelpStyle.Render(m.activeTab.String() + " is not available.")))
	}

	view := b.String()
	if m.showHelp {
		panel := m.renderHelp()
		x := max((m.width-lipgloss.Width(panel))/2, 0)
		y := max((m.height-lipgloss.Height(panel))/2, 0)
		view = overlay(view, panel, x, y, m.height)
	}
	if toasts := m.renderToasts(); toasts != "" {
		x := max(m.width-lipgloss.Width(toasts)-2, 0)
		view = overlay(view, toasts, x, toastTop, m.height)
	}
	return view
}

// overlay draws top over base with its top-left corner at column x, line y.
// base grows to at most maxLines lines to make room.
func overlay(base, top string, x, y, maxLines int) string {
	lines := strings.Split(base, "\n")
	topLines := strings.Split(top, "\n")
	width := lipgloss.Width(top)

	for len(lines) < y+len(topLines) && len(lines) < maxLines {
		lines = append(lines, "")
	}
	for i, tl := range topLines {
		row := y + i
		if row >= len(lines) {
			break
		}
		left := ansi.Truncate(lines[row], x, "")
		if pad := x - lipgloss.Width(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		lines[row] = left + tl + ansi.TruncateLeft(lines[row], x+width, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderNavbar() string {
	items := make([]string, len(m.tabs))
	for i := range m.tabs {
		id := TabID(i)
		if id != m.activeTab {
			items[i] = navInactiveStyle.Render(fmt.Sprintf(" %d  %s", i+1, id))
			continue
		}
		style := navActiveStyle
		if p, ok := id.Platform(); ok {
			style = style.Foreground(styles.PlatformColor(p))
		}
		items[i] = style.Render(fmt.Sprintf("[%d] %s", i+1, id))
	}
	return navBarStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, items...))
}

func (m *Model) renderToasts() string {
	var toasts []string
	if busy := m.state.Busy(); busy != "" {
		toasts = append(toasts, styles.ToastStyle.Render(styles.InfoTextStyle.Render(m.spinner.View()+" "+busy)))
	}
	for _, n := range m.state.GetNotifications() {
		ts, ok := toastStyles[n.Type]
		if !ok {
			ts = toastStyles[NotificationInfo]
		}
		toasts = append(toasts, styles.ToastStyle.Render(ts.style.Render(ts.prefix+" "+n.Message)))
	}
	if len(toasts) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Right, toasts...)
}

func (m *Model) renderHelp() string {
	sections := []string{
		styles.TitleStyle.Render("Keyboard Shortcuts"),
		styles.SubTitleStyle.Render("Global"),
		m.help.FullHelpView(m.keymap.FullHelp()),
	}
	if tab := m.activeTabModel(); tab != nil {
		if groups := tab.FullHelp(); len(groups) > 0 {
			sections = append(sections, "", styles.SubTitleStyle.Render(m.activeTab.String()), m.help.FullHelpView(groups))
		}
	}
	sections = append(sections, "", styles.HelpStyle.Render("Press ? or Esc to close"))
	return styles.HelpPanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

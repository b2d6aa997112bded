package info

import (
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/ui/styles"
	"github.com/j-veylop/cockpit-tui/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	var sections []string

	sections = append(sections, m.renderTitle())
	sections = append(sections, m.renderConfigCard())
	sections = append(sections, m.renderAccountsCard())
	sections = append(sections, m.renderAboutCard())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the info tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Storage, settings and build information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 100)
}

// renderConfigCard renders the configuration paths card.
func (m *Model) renderConfigCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Configuration"))
	rows = append(rows, "")

	if m.config == nil {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	} else {
		for i, row := range m.paths() {
			marker := "  "
			if i == m.selected {
				marker = styles.FocusedStyle.Render("▸ ")
			}
			rows = append(rows, marker+m.renderConfigRow(row.label, row.path))
		}
		rows = append(rows, "")
		rows = append(rows, m.renderConfigRow("Quota Refresh", m.config.QuotaRefreshInterval.String()))
		rows = append(rows, m.renderConfigRow("Locale", m.config.Locale))
		rows = append(rows, m.renderConfigRow("Privacy Default", onOff(m.config.PrivacyDefault)))
		rows = append(rows, m.renderConfigRow("Log Level", m.config.LogLevel))
	}

	rows = append(rows, "")
	rows = append(rows, styles.HelpStyle.Render("Press 'c' to copy the selected path, 'o' to open its folder"))

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderConfigRow renders a configuration key-value row.
func (m *Model) renderConfigRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(20).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// renderAccountsCard renders the per-platform account counts.
func (m *Model) renderAccountsCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Accounts"))
	rows = append(rows, "")

	total := 0
	for _, p := range models.AllPlatforms {
		value := "-"
		if n, ok := m.counts[p]; ok {
			value = fmt.Sprintf("%d", n)
			total += n
		}
		name := lipgloss.NewStyle().Width(20).Foreground(styles.PlatformColor(p)).Render(p.Title() + ":")
		rows = append(rows, name+" "+styles.InfoTextStyle.Render(value))
	}
	rows = append(rows, "")
	rows = append(rows, m.renderConfigRow("Total", fmt.Sprintf("%d", total)))

	polled := "never"
	if m.state != nil {
		if t := m.state.GetLastPolled(); !t.IsZero() {
			polled = t.Format(time.DateTime)
		}
	}
	rows = append(rows, m.renderConfigRow("Last Poll", polled))
	if m.countErr != nil {
		rows = append(rows, styles.ErrorTextStyle.Render("Count failed: "+m.countErr.Error()))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderAboutCard renders the about/version information card.
func (m *Model) renderAboutCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("About Cockpit"))
	rows = append(rows, "")

	rows = append(rows, m.renderConfigRow("Version", version.GetVersion()))
	rows = append(rows, m.renderConfigRow("Build Date", version.GetDate()))
	rows = append(rows, m.renderConfigRow("Git Commit", version.GetCommit()))
	rows = append(rows, m.renderConfigRow("Go Version", runtime.Version()))
	rows = append(rows, m.renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)))

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

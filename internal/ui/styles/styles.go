// Package styles holds the lipgloss palette and shared styles of the UI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/pagestate"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
)

// Palette, as 256-color codes.
var (
	Primary       = lipgloss.Color("205")
	Secondary     = lipgloss.Color("63")
	Subtle        = lipgloss.Color("240")
	BgDark        = lipgloss.Color("235")
	BgLight       = lipgloss.Color("237")
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")

	good = lipgloss.Color("42")
	bad  = lipgloss.Color("196")
	warn = lipgloss.Color("220")
	note = lipgloss.Color("39")
)

// Platform accents.
var (
	Antigravity = lipgloss.Color("39")
	Codex       = lipgloss.Color("42")
	Copilot     = lipgloss.Color("141")
	Windsurf    = lipgloss.Color("44")
	Kiro        = lipgloss.Color("208")
)

// Layout and headings.
var (
	DocStyle      = lipgloss.NewStyle().Margin(1, 2).Padding(0, 1)
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)
	SubTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Secondary).MarginBottom(1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(1, 2).
			MarginBottom(1)
	CardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)

	GroupHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Secondary).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(Subtle)

	// NoticeStyle frames the collapsible notice of a platform flow.
	NoticeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(note).
			Foreground(TextSecondary).
			Padding(0, 1)

	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1).
			MarginBottom(1)
)

// Lists, inputs and modals.
var (
	ListItemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	SelectedListItemStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(Primary).Bold(true).SetString("> ")
	FocusedStyle          = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	ProgressLabelStyle    = lipgloss.NewStyle().Foreground(TextSecondary).Width(20)
	CurrentMarkerStyle    = lipgloss.NewStyle().Foreground(good).Bold(true)
	TagStyle              = lipgloss.NewStyle().Foreground(note)

	ModalContentStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(Primary).
				Padding(1, 2).
				Background(BgDark)

	button              = lipgloss.NewStyle().Padding(0, 2).MarginRight(1)
	ButtonActiveStyle   = button.Background(Primary).Foreground(lipgloss.Color("229")).Bold(true)
	ButtonInactiveStyle = button.Background(BgLight).Foreground(TextSecondary)
)

// Help bar and overlay.
var (
	HelpStyle          = lipgloss.NewStyle().Foreground(TextMuted)
	HelpKeyStyle       = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	HelpDescStyle      = lipgloss.NewStyle().Foreground(TextSecondary)
	HelpSeparatorStyle = lipgloss.NewStyle().Foreground(Subtle)
	HelpPanelStyle     = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(Primary).
				Padding(1, 3).
				Background(BgDark)
)

// Status text.
var (
	ErrorTextStyle   = lipgloss.NewStyle().Foreground(bad)
	SuccessTextStyle = lipgloss.NewStyle().Foreground(good)
	WarningTextStyle = lipgloss.NewStyle().Foreground(warn)
	InfoTextStyle    = lipgloss.NewStyle().Foreground(note)

	ProjectionSafeStyle     = lipgloss.NewStyle().Foreground(good)
	ProjectionWarningStyle  = lipgloss.NewStyle().Foreground(warn).Bold(true)
	ProjectionCriticalStyle = lipgloss.NewStyle().Foreground(bad).Bold(true)
)

// Quota classes. Thresholds live in presentation.ClassFor.
var (
	QuotaHighStyle        = lipgloss.NewStyle().Foreground(good)
	QuotaMediumStyle      = lipgloss.NewStyle().Foreground(warn)
	QuotaLowStyle         = lipgloss.NewStyle().Foreground(bad)
	QuotaUnknownStyle     = lipgloss.NewStyle().Foreground(Subtle)
	quotaRateLimitedStyle = lipgloss.NewStyle().Foreground(bad).Bold(true).Italic(true)
)

// Plan badges.
var (
	planBadge        = lipgloss.NewStyle().Padding(0, 1).Bold(true)
	planPaidStyle    = planBadge.Foreground(lipgloss.Color("229")).Background(Secondary)
	planFreeStyle    = planBadge.Foreground(BgDark).Background(warn)
	planUnknownStyle = planBadge.Foreground(TextSecondary).Background(BgLight)
)

// GetQuotaStyle styles a raw percentage, overriding the class while the
// account is rate limited.
func GetQuotaStyle(percent float64, isRateLimited bool) lipgloss.Style {
	if isRateLimited {
		return quotaRateLimitedStyle
	}
	return QuotaClassStyle(presentation.ClassFor(int(percent)))
}

// QuotaClassStyle returns the style of a metric's quota class.
func QuotaClassStyle(class presentation.QuotaClass) lipgloss.Style {
	switch class {
	case presentation.QuotaHigh:
		return QuotaHighStyle
	case presentation.QuotaMedium:
		return QuotaMediumStyle
	case presentation.QuotaLow:
		return QuotaLowStyle
	default:
		return QuotaUnknownStyle
	}
}

// PlanStyle returns the badge style of a normalized plan class.
func PlanStyle(class string) lipgloss.Style {
	switch class {
	case "", "unknown":
		return planUnknownStyle
	case "free", "trial":
		return planFreeStyle
	default:
		return planPaidStyle
	}
}

// PlatformColor returns the accent color of a platform.
func PlatformColor(p models.Platform) lipgloss.Color {
	switch p {
	case models.PlatformAntigravity:
		return Antigravity
	case models.PlatformCodex:
		return Codex
	case models.PlatformCopilot:
		return Copilot
	case models.PlatformWindsurf:
		return Windsurf
	case models.PlatformKiro:
		return Kiro
	default:
		return Primary
	}
}

// ToneStyle returns the text style of a status line tone.
func ToneStyle(tone pagestate.Tone) lipgloss.Style {
	switch tone {
	case pagestate.ToneSuccess:
		return SuccessTextStyle
	case pagestate.ToneError:
		return ErrorTextStyle
	default:
		return InfoTextStyle
	}
}

// CenterHorizontal centers content horizontally within a given width.
func CenterHorizontal(content string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(content)
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}

package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/ui/styles"
)

// LoadingSpinner is a bubbles spinner followed by a muted caption.
type LoadingSpinner struct {
	spinner spinner.Model
	caption string
}

// NewSpinner returns a dot spinner in the primary color.
func NewSpinner(caption string) LoadingSpinner {
	return newSpinner(spinner.Dot, styles.Primary, caption)
}

// NewPlatformSpinner returns a spinner tinted with the platform accent.
func NewPlatformSpinner(p models.Platform, caption string) LoadingSpinner {
	return newSpinner(spinner.MiniDot, styles.PlatformColor(p), caption)
}

func newSpinner(kind spinner.Spinner, accent lipgloss.Color, caption string) LoadingSpinner {
	return LoadingSpinner{
		spinner: spinner.New(
			spinner.WithSpinner(kind),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(accent)),
		),
		caption: caption,
	}
}

func (l LoadingSpinner) Init() tea.Cmd {
	return l.spinner.Tick
}

func (l LoadingSpinner) Update(msg tea.Msg) (LoadingSpinner, tea.Cmd) {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return l, cmd
}

// View renders only the glyph, for inline use next to other text.
func (l LoadingSpinner) View() string {
	return l.spinner.View()
}

func (l LoadingSpinner) ViewWithLabel() string {
	return l.spinner.View() + " " + styles.HelpDescStyle.Render(l.caption)
}

// RenderSpinnerCentered places the captioned spinner in the middle of a
// width x height area.
func RenderSpinnerCentered(s LoadingSpinner, width, height int) string {
	return styles.CenterBoth(s.ViewWithLabel(), width, height)
}

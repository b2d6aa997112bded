// Package components holds small render helpers shared by the tabs.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/ui/styles"
)

const percentWidth = 6

// Bar fill runs from red at the empty end to green at the full end.
var (
	lowColor, _  = colorful.Hex("#ff6b6b")
	highColor, _ = colorful.Hex("#51cf66")
)

var (
	emptyCell   = lipgloss.NewStyle().Foreground(styles.Subtle).Render("░")
	shimmerDots = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

// RenderGradientBar renders width cells, percent of them filled.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}
	filled := min(max(int(float64(width)*percent/100), 0), width)

	var b strings.Builder
	for i := range width {
		if i >= filled {
			b.WriteString(emptyCell)
			continue
		}
		t := float64(i) / float64(max(1, width-1))
		c := lowColor.BlendLab(highColor, t).Clamped().Hex()
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render("█"))
	}
	return b.String()
}

func percentCell(style lipgloss.Style, text string) string {
	return style.Width(percentWidth).Align(lipgloss.Right).Render(text)
}

// SimpleQuotaBar renders "label [bar] NN%" in width columns. Metrics
// without data get an empty bar and "--".
func SimpleQuotaBar(m presentation.QuotaMetric, width int) string {
	barWidth := max(width-lipgloss.Width(m.Label)-percentWidth-5, 5)
	label := styles.HelpDescStyle.Render(m.Label)

	if m.QuotaClass == presentation.QuotaUnknown {
		bar := styles.QuotaUnknownStyle.Render(strings.Repeat("░", barWidth))
		return fmt.Sprintf("%s [%s] %s", label, bar, percentCell(styles.QuotaUnknownStyle, "--"))
	}
	bar := RenderGradientBar(float64(m.Percentage), barWidth)
	pct := percentCell(styles.QuotaClassStyle(m.QuotaClass), fmt.Sprintf("%d%%", m.Percentage))
	return fmt.Sprintf("%s [%s] %s", label, bar, pct)
}

// ViewUnknown renders a placeholder row with a fixed label column.
func ViewUnknown(label string, width int) string {
	barWidth := max(width-30, 10)
	return lipgloss.JoinHorizontal(lipgloss.Center,
		styles.ProgressLabelStyle.Width(20).Render(truncate(label, 19)),
		styles.QuotaUnknownStyle.Render(strings.Repeat("░", barWidth)),
		" ",
		percentCell(styles.QuotaUnknownStyle, "--"),
	)
}

// QuotaBarLoading renders a highlight sweeping back and forth across an
// empty bar while an account refreshes. frame advances once per tick.
func QuotaBarLoading(accent lipgloss.Color, width, frame int) string {
	const period = 120
	barWidth := max(width-percentWidth-4, 10)

	// Triangle wave over the period, smoothed with smoothstep.
	p := float64(frame%period) / period * 2
	if p > 1 {
		p = 2 - p
	}
	pos := int(p * p * (3 - 2*p) * float64(barWidth))

	hot := lipgloss.NewStyle().Foreground(accent)
	warm := lipgloss.NewStyle().Foreground(styles.TextSecondary)
	cold := lipgloss.NewStyle().Foreground(styles.BgLight)

	var b strings.Builder
	for i := range barWidth {
		switch d := abs(pos - i); {
		case d < 3:
			b.WriteString(hot.Render("▓"))
		case d < 5:
			b.WriteString(warm.Render("▒"))
		default:
			b.WriteString(cold.Render("░"))
		}
	}
	return "[" + b.String() + "] " + percentCell(hot, shimmerDots[(frame/2)%len(shimmerDots)])
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:min(len(r), n-1)]) + "…"
}

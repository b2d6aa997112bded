package components

import (
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/ui/styles"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderLineChart plots remaining percentages on a fixed 0-100 axis.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// Ensure minimum dimensions
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
		asciigraph.Precision(0),
		asciigraph.Caption(caption),
	)
}

// HistorySeries returns the percentages of snapshots in recorded order.
func HistorySeries(snapshots []models.QuotaSnapshot) []float64 {
	out := make([]float64, len(snapshots))
	for i, s := range snapshots {
		out[i] = s.Percentage
	}
	return out
}

// RenderSparkline creates a compact inline chart of remaining percentages,
// coloured by quota class.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width < 1 {
		return ""
	}

	step := float64(len(values)) / float64(width)
	if step < 1 {
		step = 1
	}

	var result strings.Builder
	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		idx := int(val / 100 * float64(len(sparkChars)-1))
		idx = min(max(idx, 0), len(sparkChars)-1)
		style := styles.QuotaClassStyle(presentation.ClassFor(int(val)))
		result.WriteString(style.Render(string(sparkChars[idx])))
	}
	return result.String()
}

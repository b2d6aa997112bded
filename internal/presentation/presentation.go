// Package presentation turns platform accounts into one display shape:
// a name, a plan badge and an ordered list of quota metrics.
//
// Builders are pure. The clock and the display groups are passed in through
// Options so the same account always renders the same metrics.
package presentation

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/extract"
	"github.com/j-veylop/cockpit-tui/internal/groups"
	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// Translator resolves user-facing copy.
type Translator interface {
	T(key, fallback string, params i18n.Params) string
}

// QuotaClass buckets a remaining percentage for colouring.
type QuotaClass string

const (
	QuotaHigh    QuotaClass = "high"
	QuotaMedium  QuotaClass = "medium"
	QuotaLow     QuotaClass = "low"
	QuotaUnknown QuotaClass = "unknown"
)

// Class thresholds on remaining percentage.
const (
	highThreshold   = 50
	mediumThreshold = 20
)

// ClassFor maps a remaining percentage to its class.
func ClassFor(percentage int) QuotaClass {
	switch {
	case percentage >= highThreshold:
		return QuotaHigh
	case percentage >= mediumThreshold:
		return QuotaMedium
	default:
		return QuotaLow
	}
}

// QuotaMetric is one percentage indicator. Percentage is the remaining share,
// always an integer in [0,100].
type QuotaMetric struct {
	ResetAt    *int64
	Used       *float64
	Total      *float64
	Left       *float64
	Key        string
	Label      string
	QuotaClass QuotaClass
	ValueText  string
	ResetText  string
	Percentage int
}

// AccountPresentation is the derived view model of one account.
type AccountPresentation struct {
	CycleEndsAt *int64
	ID          string
	DisplayName string
	PlanLabel   string
	PlanClass   string
	CycleText   string
	// StatusText labels a Status with an error, empty otherwise.
	StatusText string
	QuotaItems []QuotaMetric
	// Status is zero for platforms that report no account health.
	Status Status
}

// Options carries everything a builder reads besides the account.
type Options struct {
	Now        time.Time
	Translator Translator
	// Groups applies to Antigravity only.
	Groups []groups.DisplayGroup
}

func (o Options) t(key, fallback string, params i18n.Params) string {
	if o.Translator == nil {
		return (*i18n.Translator)(nil).T(key, fallback, params)
	}
	return o.Translator.T(key, fallback, params)
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Build dispatches on the account's platform.
func Build(acc models.Account, opts Options) AccountPresentation {
	switch a := acc.(type) {
	case *models.AntigravityAccount:
		return BuildAntigravity(a, opts)
	case *models.CodexAccount:
		return BuildCodex(a, opts)
	case *models.CopilotAccount:
		return BuildCopilot(a, opts)
	case *models.WindsurfAccount:
		return BuildWindsurf(a, opts)
	case *models.KiroAccount:
		return BuildKiro(a, opts)
	default:
		label, class := ResolvePlan("", "", opts)
		return AccountPresentation{
			ID:          acc.Meta().ID,
			DisplayName: acc.Label(),
			PlanLabel:   label,
			PlanClass:   class,
		}
	}
}

// newMetric builds a metric from a remaining percentage. A nil percentage
// renders as "-" with the unknown class.
func newMetric(key, label string, remaining *float64, resetAt *int64, opts Options) QuotaMetric {
	m := QuotaMetric{Key: key, Label: label, ResetAt: resetAt}
	if pct := extract.ClampPercent(remaining); pct != nil {
		m.Percentage = *pct
		m.QuotaClass = ClassFor(*pct)
		m.ValueText = strconv.Itoa(*pct) + "%"
	} else {
		m.QuotaClass = QuotaUnknown
		m.ValueText = opts.t("common.none", "-", nil)
	}
	if resetAt != nil {
		m.ResetText = ResetText(*resetAt, opts)
	}
	return m
}

// ResetText renders the time left until resetAt.
func ResetText(resetAt int64, opts Options) string {
	d := time.Unix(resetAt, 0).Sub(opts.now())
	if d <= 0 {
		return opts.t("common.shared.resetNow", "Resetting", nil)
	}
	return opts.t("common.shared.resetIn", "Resets in {{time}}", i18n.Params{"time": FormatDuration(d)})
}

// FormatDuration renders a duration compactly: "< 1m", "45m", "3h20m", "2d4h".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "Now"
	}
	if d < time.Minute {
		return "< 1m"
	}
	if d < time.Hour {
		return strconv.Itoa(int(d.Minutes())) + "m"
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		if minutes == 0 {
			return strconv.Itoa(hours) + "h"
		}
		return strconv.Itoa(hours) + "h" + strconv.Itoa(minutes) + "m"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours == 0 {
		return strconv.Itoa(days) + "d"
	}
	return strconv.Itoa(days) + "d" + strconv.Itoa(hours) + "h"
}

// cycleText renders the plan cycle end as a local date.
func cycleText(endsAt *int64, opts Options) string {
	if endsAt == nil {
		return ""
	}
	date := time.Unix(*endsAt, 0).In(opts.now().Location()).Format("2006-01-02")
	return opts.t("common.shared.cycle", "Cycle ends {{date}}", i18n.Params{"date": date})
}

// formatAmount prints a credit amount with at most two decimals.
func formatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// BuildQuotaPreviewLines formats the first limit metrics as "{label} {value}",
// in builder order.
func BuildQuotaPreviewLines(items []QuotaMetric, limit int) []string {
	n := min(max(limit, 0), len(items))
	lines := make([]string, 0, n)
	for _, item := range items[:n] {
		lines = append(lines, strings.TrimSpace(item.Label+" "+item.ValueText))
	}
	return lines
}

package presentation

import (
	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

const (
	fiveHourWindowMinutes = 300
	weekWindowMinutes     = 7 * 24 * 60
)

// BuildCodex emits one metric per reported rate-limit window.
func BuildCodex(acc *models.CodexAccount, opts Options) AccountPresentation {
	label, class := ResolvePlan(acc.PlanType, "", opts)
	p := AccountPresentation{
		ID:          acc.ID,
		DisplayName: acc.Label(),
		PlanLabel:   label,
		PlanClass:   class,
	}
	if acc.Quota == nil {
		return p
	}

	for _, w := range []struct {
		key    string
		window *models.CodexWindow
	}{
		{"primary", acc.Quota.Primary},
		{"secondary", acc.Quota.Secondary},
	} {
		if w.window == nil {
			continue
		}
		pct := w.window.RemainingPercent
		var resetAt *int64
		if w.window.ResetAt > 0 {
			r := w.window.ResetAt
			resetAt = &r
		}
		p.QuotaItems = append(p.QuotaItems, newMetric(w.key, windowLabel(w.key, w.window.WindowMinutes, opts), &pct, resetAt, opts))
	}
	return p
}

// windowLabel names a window by its length, falling back to its slot.
func windowLabel(key string, minutes int, opts Options) string {
	switch {
	case minutes == fiveHourWindowMinutes:
		return opts.t("codex.window.primary", "5h", nil)
	case minutes == weekWindowMinutes:
		return opts.t("codex.window.secondary", "Weekly", nil)
	case minutes >= 24*60:
		return opts.t("codex.window.days", "{{count}}d", i18n.Params{"count": minutes / (24 * 60)})
	case minutes > 0:
		return opts.t("codex.window.hours", "{{count}}h", i18n.Params{"count": max(1, minutes/60)})
	case key == "secondary":
		return opts.t("codex.window.secondary", "Weekly", nil)
	default:
		return opts.t("codex.window.primary", "5h", nil)
	}
}

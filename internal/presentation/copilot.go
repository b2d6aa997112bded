package presentation

import (
	"github.com/j-veylop/cockpit-tui/internal/extract"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// copilotMetrics are the three fixed Copilot metrics in display order.
var copilotMetrics = []struct {
	key      string
	snapshot string
	i18nKey  string
	fallback string
}{
	{"completions", "completions", "githubCopilot.metric.completions", "Inline"},
	{"chat", "chat", "githubCopilot.metric.chat", "Chat"},
	{"premium", "premium_interactions", "githubCopilot.metric.premium", "Premium"},
}

// BuildCopilot always emits inline, chat and premium metrics. Unlimited
// metrics show the included token at 100%.
func BuildCopilot(acc *models.CopilotAccount, opts Options) AccountPresentation {
	label, class := ResolvePlan(acc.CopilotPlan, "", opts)
	resetAt := copilotResetAt(acc)

	p := AccountPresentation{
		ID:          acc.ID,
		DisplayName: acc.Label(),
		PlanLabel:   label,
		PlanClass:   class,
		CycleEndsAt: resetAt,
		CycleText:   cycleText(resetAt, opts),
	}

	for _, def := range copilotMetrics {
		name := opts.t(def.i18nKey, def.fallback, nil)
		snapshot := extract.GetPathValue(acc.CopilotQuotaSnapshots, def.snapshot)

		if unlimited, _ := extract.GetPathValue(snapshot, "unlimited").(bool); unlimited {
			full := 100.0
			m := newMetric(def.key, name, &full, resetAt, opts)
			m.ValueText = opts.t("common.shared.included", "Included", nil)
			p.QuotaItems = append(p.QuotaItems, m)
			continue
		}

		used, total := copilotUsage(acc, snapshot, def.snapshot)
		remaining := copilotRemainingPercent(snapshot, used, total)
		m := newMetric(def.key, name, remaining, resetAt, opts)
		m.Used, m.Total = used, total
		m.Left = extract.SafeLeft(total, used)
		p.QuotaItems = append(p.QuotaItems, m)
	}
	return p
}

// copilotRemainingPercent prefers the reported remaining percentage and falls
// back to used/total.
func copilotRemainingPercent(snapshot any, used, total *float64) *float64 {
	if pct := extract.FirstNumber(snapshot, []string{"percent_remaining"}); pct != nil {
		return pct
	}
	if total == nil || *total <= 0 || used == nil {
		return nil
	}
	remaining := 100 - *used / *total * 100
	return &remaining
}

// copilotUsage reads used/total from the snapshot, or from the limited-user
// quotas that free plans report as remaining counts against monthly totals.
func copilotUsage(acc *models.CopilotAccount, snapshot any, key string) (used, total *float64) {
	if total = extract.FirstNumber(snapshot, []string{"entitlement"}); total != nil {
		remaining := extract.FirstNumber(snapshot, []string{"remaining"})
		if remaining != nil {
			u := max(0, *total-*remaining)
			used = &u
		}
		return used, total
	}

	total = extract.FirstNumber(acc.CopilotMonthlyQuotas, []string{key})
	remaining := extract.FirstNumber(acc.CopilotLimitedUserQuotas, []string{key})
	if total != nil && remaining != nil {
		u := max(0, *total-*remaining)
		used = &u
	}
	return used, total
}

func copilotResetAt(acc *models.CopilotAccount) *int64 {
	if ts := extract.NormalizeTimestamp(acc.CopilotQuotaResetDate); ts != nil {
		return ts
	}
	if acc.CopilotLimitedUserResetDate != nil {
		return extract.NormalizeTimestamp(*acc.CopilotLimitedUserResetDate)
	}
	return nil
}

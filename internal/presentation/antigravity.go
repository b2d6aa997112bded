package presentation

import (
	"github.com/j-veylop/cockpit-tui/internal/extract"
	"github.com/j-veylop/cockpit-tui/internal/groups"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// BuildAntigravity emits one metric per display group when groups are
// configured, otherwise one per model in quota order.
func BuildAntigravity(acc *models.AntigravityAccount, opts Options) AccountPresentation {
	var tier string
	if acc.Quota != nil {
		tier = acc.Quota.SubscriptionTier
	}
	label, class := ResolvePlan(tier, "", opts)
	if acc.Quota != nil && acc.Quota.IsForbidden {
		label = opts.t("antigravity.forbidden", "Forbidden", nil)
	}

	p := AccountPresentation{
		ID:          acc.ID,
		DisplayName: acc.Label(),
		PlanLabel:   label,
		PlanClass:   class,
	}
	if acc.Quota == nil {
		return p
	}

	if len(opts.Groups) > 0 {
		for _, g := range opts.Groups {
			pct := groups.CalculateGroupQuota(g.Models, acc.Quota)
			p.QuotaItems = append(p.QuotaItems, newMetric(g.ID, g.Name, pct, earliestReset(g.Models, acc.Quota), opts))
		}
		return p
	}

	for _, m := range acc.Quota.Models {
		pct := m.Percentage
		p.QuotaItems = append(p.QuotaItems, newMetric(m.Name, m.Name, &pct, extract.NormalizeTimestamp(m.ResetTime), opts))
	}
	return p
}

// earliestReset returns the soonest reset among the group's models present in quota.
func earliestReset(modelIDs []string, quota *models.AntigravityQuota) *int64 {
	var earliest *int64
	for _, id := range modelIDs {
		m, ok := quota.Model(id)
		if !ok {
			continue
		}
		ts := extract.NormalizeTimestamp(m.ResetTime)
		if ts != nil && (earliest == nil || *ts < *earliest) {
			earliest = ts
		}
	}
	return earliest
}

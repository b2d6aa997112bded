package presentation

import (
	"github.com/j-veylop/cockpit-tui/internal/extract"
	"github.com/j-veylop/cockpit-tui/internal/i18n"
)

// CreditMetrics is a used/total/left triple with the derived used share.
type CreditMetrics struct {
	Used        *float64
	Total       *float64
	Left        *float64
	UsedPercent int
}

// BuildCreditMetrics derives the used percentage from used/total, else from
// left/total, else zero. Left is filled from total-used when not reported.
func BuildCreditMetrics(used, total, left *float64) CreditMetrics {
	c := CreditMetrics{Used: used, Total: total, Left: left}
	if c.Left == nil {
		c.Left = extract.SafeLeft(total, used)
	}

	var share *float64
	switch {
	case total != nil && *total > 0 && used != nil:
		share = extract.Float(*used / *total * 100)
	case total != nil && *total > 0 && left != nil:
		share = extract.Float((*total - *left) / *total * 100)
	}
	c.UsedPercent = extract.Value(extract.ClampPercent(share), 0)
	return c
}

// hasData reports whether any of the three values was reported.
func (c CreditMetrics) hasData() bool {
	return c.Used != nil || c.Total != nil || c.Left != nil
}

// creditMetric renders credits as a remaining-share metric with "left / total" text.
func creditMetric(key, label string, c CreditMetrics, resetAt *int64, opts Options) QuotaMetric {
	var remaining *float64
	if c.hasData() {
		r := float64(100 - c.UsedPercent)
		remaining = &r
	}
	m := newMetric(key, label, remaining, resetAt, opts)
	m.Used, m.Total, m.Left = c.Used, c.Total, c.Left
	if c.Total != nil {
		m.ValueText = opts.t("common.shared.credits", "{{left}} / {{total}} left", i18n.Params{
			"left":  formatAmount(extract.Value(c.Left, 0)),
			"total": formatAmount(*c.Total),
		})
	}
	return m
}

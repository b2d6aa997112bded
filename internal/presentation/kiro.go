package presentation

import (
	"math"
	"strings"

	"github.com/j-veylop/cockpit-tui/internal/extract"
	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

var (
	kiroPlanPaths = [][]string{
		{"subscriptionInfo", "subscriptionTitle"},
		{"subscriptionInfo", "type"},
		{"planName"},
	}
	kiroPromptUsedPaths = [][]string{
		{"usageBreakdownList", "0", "currentUsage"},
		{"usageBreakdown", "currentUsage"},
		{"credits", "used"},
	}
	kiroPromptTotalPaths = [][]string{
		{"usageBreakdownList", "0", "usageLimit"},
		{"usageBreakdown", "usageLimit"},
		{"credits", "total"},
	}
	kiroPromptLeftPaths = [][]string{
		{"credits", "left"},
	}
	kiroAddOnUsedPaths = [][]string{
		{"usageBreakdownList", "0", "freeTrialInfo", "currentUsage"},
		{"bonus", "used"},
	}
	kiroAddOnTotalPaths = [][]string{
		{"usageBreakdownList", "0", "freeTrialInfo", "usageLimit"},
		{"bonus", "total"},
	}
	kiroAddOnLeftPaths = [][]string{
		{"bonus", "left"},
	}
	kiroBonusExpireDaysPaths = [][]string{
		{"bonus", "expireDays"},
		{"bonusExpireDays"},
	}
	kiroBonusExpiryPaths = [][]string{
		{"usageBreakdownList", "0", "freeTrialInfo", "freeTrialExpiry"},
		{"bonus", "expiresAt"},
	}
	kiroResetPaths = [][]string{
		{"nextDateReset"},
		{"usageBreakdownList", "0", "nextDateReset"},
		{"resetAt"},
	}
	kiroStatusReasonPaths = [][]string{
		{"reason"},
		{"message"},
		{"error", "message"},
	}
)

// StatusKind is the health of a Kiro account.
type StatusKind string

const (
	StatusOK     StatusKind = "ok"
	StatusBanned StatusKind = "banned"
	StatusError  StatusKind = "error"
)

// Status is a StatusKind with an optional reason.
type Status struct {
	Kind   StatusKind
	Reason string
}

// IsBanned reports a suspended account; switching to it is disabled.
func (s Status) IsBanned() bool { return s.Kind == StatusBanned }

// HasStatusError reports a banned or failing account.
func (s Status) HasStatusError() bool { return s.Kind == StatusBanned || s.Kind == StatusError }

// KiroStatus derives the account status from the stored and raw status fields.
func KiroStatus(acc *models.KiroAccount) Status {
	raw := strings.ToLower(strings.TrimSpace(acc.Status))
	if raw == "" {
		raw = strings.ToLower(extract.Value(extract.FirstString(acc.KiroStatusRaw, []string{"status"}), ""))
	}
	reason := acc.StatusReason
	if reason == "" {
		reason = extract.Value(extract.FirstString(acc.KiroStatusRaw, kiroStatusReasonPaths...), "")
	}
	banned, _ := extract.GetPathValue(acc.KiroStatusRaw, "banned").(bool)

	switch {
	case banned || raw == "banned" || raw == "suspended" || raw == "disabled":
		return Status{Kind: StatusBanned, Reason: reason}
	case raw == "error" || raw == "invalid":
		return Status{Kind: StatusError, Reason: reason}
	case acc.QuotaError != nil:
		if reason == "" {
			reason = acc.QuotaError.Message
		}
		return Status{Kind: StatusError, Reason: reason}
	default:
		return Status{Kind: StatusOK}
	}
}

// BuildKiro emits prompt credits and, when there is add-on activity or an
// unexpired bonus, add-on credits.
func BuildKiro(acc *models.KiroAccount, opts Options) AccountPresentation {
	usage := acc.KiroUsageRaw

	raw := acc.PlanName
	if raw == "" {
		raw = extract.Value(extract.FirstString(usage, kiroPlanPaths...), "")
	}
	label, class := ResolvePlan(raw, "", opts)
	st := KiroStatus(acc)
	if st.IsBanned() {
		label = opts.t("kiro.status.banned", "Banned", nil)
	}

	resetAt := extract.FirstTimestamp(usage, kiroResetPaths...)
	p := AccountPresentation{
		ID:          acc.ID,
		DisplayName: acc.Label(),
		PlanLabel:   label,
		PlanClass:   class,
		CycleEndsAt: resetAt,
		CycleText:   cycleText(resetAt, opts),
		Status:      st,
	}
	switch st.Kind {
	case StatusBanned:
		p.StatusText = label
	case StatusError:
		p.StatusText = opts.t("kiro.status.error", "Error", nil)
	}

	prompt := BuildCreditMetrics(
		extract.FirstNumber(usage, kiroPromptUsedPaths...),
		extract.FirstNumber(usage, kiroPromptTotalPaths...),
		extract.FirstNumber(usage, kiroPromptLeftPaths...),
	)
	p.QuotaItems = append(p.QuotaItems,
		creditMetric("prompt", opts.t("credits.prompt", "Prompt credits", nil), prompt, resetAt, opts))

	addOn := BuildCreditMetrics(
		extract.FirstNumber(usage, kiroAddOnUsedPaths...),
		extract.FirstNumber(usage, kiroAddOnTotalPaths...),
		extract.FirstNumber(usage, kiroAddOnLeftPaths...),
	)
	bonusDays := kiroBonusExpireDays(usage, opts)
	if !ShowKiroAddOn(addOn, bonusDays) {
		return p
	}

	m := creditMetric("add_on", opts.t("credits.addOn", "Add-on credits", nil), addOn, nil, opts)
	if bonusDays != nil && *bonusDays > 0 {
		m.ResetText = opts.t("credits.bonusExpire", "Bonus expires in {{days}}d", i18n.Params{"days": *bonusDays})
	}
	p.QuotaItems = append(p.QuotaItems, m)
	return p
}

// ShowKiroAddOn hides the add-on metric when nothing was granted or used and
// no bonus is pending expiry. Unknown values count as zero.
func ShowKiroAddOn(c CreditMetrics, bonusExpireDays *float64) bool {
	left := extract.Value(c.Left, 0)
	used := extract.Value(c.Used, 0)
	total := extract.Value(c.Total, 0)
	if left <= 0 && used <= 0 && total <= 0 {
		return bonusExpireDays != nil && *bonusExpireDays > 0
	}
	return true
}

// kiroBonusExpireDays reads an explicit day count, else derives whole days
// until the bonus expiry timestamp.
func kiroBonusExpireDays(usage map[string]any, opts Options) *float64 {
	if days := extract.FirstNumber(usage, kiroBonusExpireDaysPaths...); days != nil {
		return days
	}
	expiry := extract.FirstTimestamp(usage, kiroBonusExpiryPaths...)
	if expiry == nil {
		return nil
	}
	days := math.Ceil(float64(*expiry-opts.now().Unix()) / 86400)
	return &days
}

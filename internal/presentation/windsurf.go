package presentation

import (
	"github.com/j-veylop/cockpit-tui/internal/extract"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// Candidate paths inside the Windsurf user and plan status payloads. Older
// clients nest everything under planStatus; newer ones flatten it.
var (
	windsurfPlanNamePaths = [][]string{
		{"planInfo", "planName"},
		{"planStatus", "planInfo", "planName"},
		{"planName"},
	}
	windsurfPromptUsedPaths = [][]string{
		{"usedPromptCredits"},
		{"planStatus", "usedPromptCredits"},
	}
	windsurfPromptTotalPaths = [][]string{
		{"availablePromptCredits"},
		{"planStatus", "availablePromptCredits"},
		{"planInfo", "monthlyPromptCredits"},
	}
	windsurfAddOnUsedPaths = [][]string{
		{"usedFlexCredits"},
		{"planStatus", "usedFlexCredits"},
	}
	windsurfAddOnTotalPaths = [][]string{
		{"availableFlexCredits"},
		{"planStatus", "availableFlexCredits"},
	}
	windsurfPlanEndPaths = [][]string{
		{"planEnd"},
		{"planStatus", "planEnd"},
	}
)

// BuildWindsurf emits prompt credits then add-on credits.
func BuildWindsurf(acc *models.WindsurfAccount, opts Options) AccountPresentation {
	sources := []any{acc.WindsurfPlanStatus, acc.WindsurfUserStatus}

	raw := acc.WindsurfPlanName
	if raw == "" {
		raw = extract.Value(firstStringIn(sources, windsurfPlanNamePaths), "")
	}
	label, class := ResolvePlan(raw, "", opts)
	planEnd := firstTimestampIn(sources, windsurfPlanEndPaths)

	prompt := BuildCreditMetrics(
		firstNumberIn(sources, windsurfPromptUsedPaths),
		firstNumberIn(sources, windsurfPromptTotalPaths),
		nil,
	)
	addOn := BuildCreditMetrics(
		firstNumberIn(sources, windsurfAddOnUsedPaths),
		firstNumberIn(sources, windsurfAddOnTotalPaths),
		nil,
	)

	return AccountPresentation{
		ID:          acc.ID,
		DisplayName: acc.Label(),
		PlanLabel:   label,
		PlanClass:   class,
		CycleEndsAt: planEnd,
		CycleText:   cycleText(planEnd, opts),
		QuotaItems: []QuotaMetric{
			creditMetric("prompt", opts.t("credits.prompt", "Prompt credits", nil), prompt, planEnd, opts),
			creditMetric("add_on", opts.t("credits.addOn", "Add-on credits", nil), addOn, nil, opts),
		},
	}
}

func firstNumberIn(sources []any, paths [][]string) *float64 {
	for _, src := range sources {
		if n := extract.FirstNumber(src, paths...); n != nil {
			return n
		}
	}
	return nil
}

func firstStringIn(sources []any, paths [][]string) *string {
	for _, src := range sources {
		if s := extract.FirstString(src, paths...); s != nil {
			return s
		}
	}
	return nil
}

func firstTimestampIn(sources []any, paths [][]string) *int64 {
	for _, src := range sources {
		if ts := extract.FirstTimestamp(src, paths...); ts != nil {
			return ts
		}
	}
	return nil
}

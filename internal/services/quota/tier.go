package quota

import (
	"time"

	"github.com/j-veylop/cockpit-tui/internal/models"
)

// SubscriptionTier is the Antigravity plan guessed from quota windows.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "FREE"
	TierPro     SubscriptionTier = "PRO"
	TierUnknown SubscriptionTier = "UNKNOWN"
)

// Paid plans reset within a few hours; free plans reset daily.
const (
	TierThreshold = 6 * time.Hour
	// recentReset is how long ago a reset may lie and still count as an
	// hourly window.
	recentReset = time.Hour
)

func detectSubscriptionTier(resetTime, now time.Time) SubscriptionTier {
	if resetTime.IsZero() {
		return TierUnknown
	}
	switch until := resetTime.Sub(now); {
	case until < -recentReset:
		return TierUnknown
	case until <= TierThreshold:
		return TierPro
	default:
		return TierFree
	}
}

// TierFromQuota derives the account tier from its models. One hourly
// model is enough to call the account PRO.
func TierFromQuota(q *models.AntigravityQuota) SubscriptionTier {
	if q == nil {
		return TierUnknown
	}
	now := time.Now()
	tier := TierUnknown
	for _, m := range q.Models {
		reset, err := time.Parse(time.RFC3339, m.ResetTime)
		if err != nil {
			continue
		}
		switch detectSubscriptionTier(reset, now) {
		case TierPro:
			return TierPro
		case TierFree:
			tier = TierFree
		}
	}
	return tier
}

package quota

import (
	"testing"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/models"
)

func TestDetectSubscriptionTier(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		resetTime time.Time
		want      SubscriptionTier
	}{
		{"ZeroTime", time.Time{}, TierUnknown},
		{"PastWithinHour", now.Add(-30 * time.Minute), TierPro},
		{"PastLongAgo", now.Add(-2 * time.Hour), TierUnknown},
		{"FutureHourly", now.Add(1 * time.Hour), TierPro},
		{"FutureDaily", now.Add(7 * time.Hour), TierFree},
		{"FutureThreshold", now.Add(6 * time.Hour), TierPro},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectSubscriptionTier(tt.resetTime, now); got != tt.want {
				t.Errorf("detectSubscriptionTier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTierFromQuota(t *testing.T) {
	at := func(d time.Duration) string { return time.Now().Add(d).UTC().Format(time.RFC3339) }

	tests := []struct {
		name  string
		quota *models.AntigravityQuota
		want  SubscriptionTier
	}{
		{"Nil", nil, TierUnknown},
		{"Empty", &models.AntigravityQuota{}, TierUnknown},
		{"Pro", &models.AntigravityQuota{Models: []models.ModelQuota{{ResetTime: at(time.Hour)}}}, TierPro},
		{"Free", &models.AntigravityQuota{Models: []models.ModelQuota{{ResetTime: at(20 * time.Hour)}}}, TierFree},
		{"Mixed", &models.AntigravityQuota{Models: []models.ModelQuota{{ResetTime: at(20 * time.Hour)}, {ResetTime: at(time.Hour)}}}, TierPro},
		{"Unparsable", &models.AntigravityQuota{Models: []models.ModelQuota{{ResetTime: "soon"}}}, TierUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierFromQuota(tt.quota); got != tt.want {
				t.Errorf("TierFromQuota() = %v, want %v", got, tt.want)
			}
		})
	}
}

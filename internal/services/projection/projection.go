// Package projection estimates how fast a quota metric is being consumed
// from its recorded history and whether it will run out before it resets.
package projection

import (
	"math"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/models"
)

const (
	lowConfThreshold = 6
	medConfThreshold = 24

	// boundaryJump is the rise in remaining percentage that marks a quota
	// reset between two snapshots.
	boundaryJump = 5
	// maxStep drops larger than this between two snapshots are treated as
	// noise, such as an account switching plans.
	maxStep = 50
	minSpan = 5 * time.Minute
)

// Status indicates urgency level for quota depletion.
type Status string

const (
	StatusSafe     Status = "SAFE"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
	StatusUnknown  Status = "UNKNOWN"
)

// Confidence grades a projection by how many snapshots back it.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Projection is the consumption estimate of one metric.
type Projection struct {
	DepleteAt  time.Time
	ResetAt    time.Time
	Status     Status
	Confidence Confidence
	Current    float64
	// Rate is the consumed percentage per hour in the current session.
	Rate float64
	// HoursLeft is +Inf when nothing is being consumed.
	HoursLeft         float64
	DataPoints        int
	WillDepleteBefore bool
}

// DetectSessionBoundary reports whether the quota reset between two readings.
func DetectSessionBoundary(newPercent, oldPercent float64) bool {
	return newPercent > oldPercent+boundaryJump
}

// currentSession returns the snapshots since the last reset, oldest first.
// snapshots must be ordered by time.
func currentSession(snapshots []models.QuotaSnapshot) []models.QuotaSnapshot {
	start := 0
	for i := 1; i < len(snapshots); i++ {
		if DetectSessionBoundary(snapshots[i].Percentage, snapshots[i-1].Percentage) {
			start = i
		}
	}
	return snapshots[start:]
}

// SessionRate is the consumed percentage per hour over the current session.
// It is zero when the session is too short or nothing was consumed.
func SessionRate(snapshots []models.QuotaSnapshot) float64 {
	session := currentSession(snapshots)
	if len(session) < 2 {
		return 0
	}
	span := session[len(session)-1].Timestamp.Sub(session[0].Timestamp)
	if span < minSpan {
		return 0
	}

	consumed := 0.0
	for i := 1; i < len(session); i++ {
		diff := session[i-1].Percentage - session[i].Percentage
		if diff > 0 && diff < maxStep {
			consumed += diff
		}
	}
	return consumed / span.Hours()
}

// Calculate projects a metric with current percent remaining. resetAt may be
// zero when the metric has no reset time.
func Calculate(snapshots []models.QuotaSnapshot, current float64, resetAt, now time.Time) Projection {
	session := currentSession(snapshots)
	proj := Projection{
		Current:    current,
		Rate:       SessionRate(snapshots),
		ResetAt:    resetAt,
		DataPoints: len(session),
		Status:     StatusUnknown,
		HoursLeft:  math.Inf(1),
	}

	switch {
	case proj.DataPoints < lowConfThreshold:
		proj.Confidence = ConfidenceLow
	case proj.DataPoints < medConfThreshold:
		proj.Confidence = ConfidenceMedium
	default:
		proj.Confidence = ConfidenceHigh
	}

	if proj.Rate <= 0 {
		return proj
	}
	proj.HoursLeft = current / proj.Rate
	proj.DepleteAt = now.Add(time.Duration(proj.HoursLeft * float64(time.Hour)))

	if resetAt.IsZero() {
		return proj
	}
	untilReset := max(resetAt.Sub(now).Hours(), 0)
	proj.WillDepleteBefore = current < proj.Rate*untilReset
	switch {
	case !proj.WillDepleteBefore:
		proj.Status = StatusSafe
	case proj.HoursLeft < 1:
		proj.Status = StatusCritical
	default:
		proj.Status = StatusWarning
	}
	return proj
}

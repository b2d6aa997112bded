package models

import "time"

// TimeRange is the window of quota history shown in a chart.
type TimeRange int

const (
	TimeRange24Hours TimeRange = iota
	TimeRange7Days
	TimeRange30Days
	timeRangeCount
)

var timeRanges = [timeRangeCount]struct {
	label string
	span  time.Duration
}{
	TimeRange24Hours: {"24h", 24 * time.Hour},
	TimeRange7Days:   {"7d", 7 * 24 * time.Hour},
	TimeRange30Days:  {"30d", 30 * 24 * time.Hour},
}

func (t TimeRange) valid() bool { return t >= 0 && t < timeRangeCount }

func (t TimeRange) String() string {
	if !t.valid() {
		return "?"
	}
	return timeRanges[t].label
}

// Duration is how far back the range reaches. Unknown ranges reach as
// far back as history is kept.
func (t TimeRange) Duration() time.Duration {
	if !t.valid() {
		return timeRanges[TimeRange30Days].span
	}
	return timeRanges[t].span
}

// Next cycles 24h, 7d, 30d and back.
func (t TimeRange) Next() TimeRange {
	return (t + 1) % timeRangeCount
}

// QuotaSnapshot is one recorded remaining percentage of an account metric.
type QuotaSnapshot struct {
	Timestamp  time.Time
	Platform   Platform
	AccountID  string
	MetricKey  string
	ID         int64
	Percentage float64
}

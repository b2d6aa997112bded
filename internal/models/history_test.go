package models

import (
	"testing"
	"time"
)

func TestTimeRange_String(t *testing.T) {
	tests := []struct {
		tr   TimeRange
		want string
	}{
		{TimeRange24Hours, "24h"},
		{TimeRange7Days, "7d"},
		{TimeRange30Days, "30d"},
		{TimeRange(9), "?"},
	}
	for _, tt := range tests {
		if got := tt.tr.String(); got != tt.want {
			t.Errorf("TimeRange(%d).String() = %q, want %q", tt.tr, got, tt.want)
		}
	}
}

func TestTimeRange_Duration(t *testing.T) {
	if got := TimeRange7Days.Duration(); got != 168*time.Hour {
		t.Errorf("TimeRange7Days.Duration() = %v", got)
	}
	if got := TimeRange(9).Duration(); got != 720*time.Hour {
		t.Errorf("unknown range should default to 30 days, got %v", got)
	}
}

func TestTimeRange_Next(t *testing.T) {
	tr := TimeRange24Hours
	want := []TimeRange{TimeRange7Days, TimeRange30Days, TimeRange24Hours}
	for i, w := range want {
		tr = tr.Next()
		if tr != w {
			t.Errorf("step %d: Next() = %v, want %v", i, tr, w)
		}
	}
}

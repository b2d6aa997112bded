package extract

import (
	"encoding/json"
	"math"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return v
}

func TestGetPathValue(t *testing.T) {
	root := decode(t, `{"a":{"b":[{"c":1},{"c":"two"}]},"s":"x"}`)

	tests := []struct {
		name string
		path []string
		want any
	}{
		{"NestedArray", []string{"a", "b", "1", "c"}, "two"},
		{"FirstIndex", []string{"a", "b", "0", "c"}, float64(1)},
		{"MissingKey", []string{"a", "z"}, nil},
		{"OutOfRange", []string{"a", "b", "5"}, nil},
		{"NegativeIndex", []string{"a", "b", "-1"}, nil},
		{"NonNumericIndex", []string{"a", "b", "x"}, nil},
		{"ThroughScalar", []string{"s", "x"}, nil},
		{"EmptyPath", nil, root},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetPathValue(root, tt.path...)
			if tt.name == "EmptyPath" {
				if got == nil {
					t.Error("empty path should return root")
				}
				return
			}
			if got != tt.want {
				t.Errorf("GetPathValue(%v) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"Float", 1.5, Float(1.5)},
		{"Int", 7, Float(7)},
		{"NumericString", " 42 ", Float(42)},
		{"JSONNumber", json.Number("3.25"), Float(3.25)},
		{"EmptyString", "  ", nil},
		{"Garbage", "abc", nil},
		{"NaN", math.NaN(), nil},
		{"Inf", math.Inf(1), nil},
		{"Bool", true, nil},
		{"Nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToNumber(tt.in)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ToNumber(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ToNumber(%v) = %v, want %v", tt.in, *got, *tt.want)
			}
		})
	}
}

func TestToStringValue(t *testing.T) {
	if got := ToStringValue("  pro  "); got == nil || *got != "pro" {
		t.Errorf("ToStringValue trimmed = %v", got)
	}
	if got := ToStringValue(""); got != nil {
		t.Errorf("ToStringValue(\"\") = %q, want nil", *got)
	}
	if got := ToStringValue(float64(12)); got == nil || *got != "12" {
		t.Errorf("ToStringValue(12) = %v", got)
	}
	if got := ToStringValue(map[string]any{}); got != nil {
		t.Error("ToStringValue(map) should be nil")
	}
}

func TestFirstHelpers(t *testing.T) {
	root := decode(t, `{"legacy":{"plan":""},"plan_type":"Plus","usage":{"used":"12"},"reset":{"seconds":1700000000}}`)

	s := FirstString(root, []string{"legacy", "plan"}, []string{"plan_type"})
	if s == nil || *s != "Plus" {
		t.Errorf("FirstString() = %v, want Plus", s)
	}

	n := FirstNumber(root, []string{"usage", "missing"}, []string{"usage", "used"})
	if n == nil || *n != 12 {
		t.Errorf("FirstNumber() = %v, want 12", n)
	}

	ts := FirstTimestamp(root, []string{"nope"}, []string{"reset"})
	if ts == nil || *ts != 1700000000 {
		t.Errorf("FirstTimestamp() = %v, want 1700000000", ts)
	}

	if FirstNumber(root) != nil {
		t.Error("FirstNumber without paths should be nil")
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		nil_ bool
	}{
		{"Seconds", float64(1700000000), 1700000000, false},
		{"FractionalSeconds", 1700000000.9, 1700000000, false},
		{"Milliseconds", float64(1700000000000), 1700000000, false},
		{"MillisecondsFloor", float64(1700000000999), 1700000000, false},
		{"Boundary", float64(1e12), 1000000000000, false},
		{"Negative", float64(-5), 0, true},
		{"Zero", 0, 0, true},
		{"NaN", math.NaN(), 0, true},
		{"NumericString", "1700000000000", 1700000000, false},
		{"ISO", "2023-11-14T22:13:20Z", 1700000000, false},
		{"ISOOffset", "2023-11-15T06:13:20+08:00", 1700000000, false},
		{"Nested", map[string]any{"unixSeconds": float64(1700000000)}, 1700000000, false},
		{"NestedValueMs", map[string]any{"value": map[string]any{"timestamp": float64(1700000000000)}}, 1700000000, false},
		{"NestedUnknown", map[string]any{"when": float64(1700000000)}, 0, true},
		{"Garbage", "soon", 0, true},
		{"Nil", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTimestamp(tt.in)
			if tt.nil_ {
				if got != nil {
					t.Errorf("NormalizeTimestamp(%v) = %d, want nil", tt.in, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("NormalizeTimestamp(%v) = %v, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampPercent(t *testing.T) {
	tests := []struct {
		in   *float64
		want *int
	}{
		{Float(150), intPtr(100)},
		{Float(-3), intPtr(0)},
		{Float(42.6), intPtr(43)},
		{Float(42.4), intPtr(42)},
		{Float(1e20), intPtr(100)},
		{Float(-1e20), intPtr(0)},
		{Float(1e19), intPtr(100)},
		{nil, nil},
		{Float(math.Inf(-1)), nil},
	}
	for _, tt := range tests {
		got := ClampPercent(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("ClampPercent(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSafeLeft(t *testing.T) {
	tests := []struct {
		name        string
		total, used *float64
		want        *float64
	}{
		{"Normal", Float(10), Float(3), Float(7)},
		{"UnknownUsed", Float(10), nil, Float(10)},
		{"UnknownTotal", nil, Float(3), nil},
		{"Overused", Float(5), Float(20), Float(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeLeft(tt.total, tt.used)
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("SafeLeft() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSumDefined(t *testing.T) {
	if got := SumDefined(nil, nil); got != nil {
		t.Errorf("SumDefined(nil, nil) = %v, want nil", *got)
	}
	if got := SumDefined(Float(0), nil); got == nil || *got != 0 {
		t.Errorf("SumDefined(0, nil) = %v, want 0", got)
	}
	if got := SumDefined(Float(1.5), nil, Float(2)); got == nil || *got != 3.5 {
		t.Errorf("SumDefined() = %v, want 3.5", got)
	}
}

func intPtr(i int) *int { return &i }

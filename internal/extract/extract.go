// Package extract pulls typed values out of loosely structured JSON payloads.
// Every helper is total: shape mismatches yield nil, never a panic or error.
package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// msThreshold separates millisecond timestamps from second timestamps.
const msThreshold = 1e12

// timestampKeys are the field names a nested timestamp record may use.
var timestampKeys = []string{"seconds", "unixSeconds", "unix", "timestamp", "value"}

// GetPathValue walks maps and slices along path. Numeric keys index slices.
func GetPathValue(root any, path ...string) any {
	cur := root
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// ToNumber coerces numbers and numeric strings. NaN and infinities are rejected.
func ToNumber(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ToStringValue returns the trimmed string, or nil when empty. Finite numbers
// are formatted without a trailing fraction.
func ToStringValue(v any) *string {
	switch s := v.(type) {
	case string:
		t := strings.TrimSpace(s)
		if t == "" {
			return nil
		}
		return &t
	case json.Number:
		return ToStringValue(string(s))
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		n := ToNumber(s)
		if n == nil {
			return nil
		}
		t := strconv.FormatFloat(*n, 'f', -1, 64)
		return &t
	default:
		return nil
	}
}

// FirstNumber returns the first candidate path that resolves to a number.
func FirstNumber(root any, paths ...[]string) *float64 {
	for _, p := range paths {
		if n := ToNumber(GetPathValue(root, p...)); n != nil {
			return n
		}
	}
	return nil
}

// FirstString returns the first candidate path that resolves to a non-empty string.
func FirstString(root any, paths ...[]string) *string {
	for _, p := range paths {
		if s := ToStringValue(GetPathValue(root, p...)); s != nil {
			return s
		}
	}
	return nil
}

// FirstTimestamp returns the first candidate path that normalizes to a timestamp.
func FirstTimestamp(root any, paths ...[]string) *int64 {
	for _, p := range paths {
		if ts := NormalizeTimestamp(GetPathValue(root, p...)); ts != nil {
			return ts
		}
	}
	return nil
}

// NormalizeTimestamp converts seconds, milliseconds, ISO strings or a nested
// {seconds|unixSeconds|unix|timestamp|value} record into unix seconds.
// Values above 1e12 are taken as milliseconds.
func NormalizeTimestamp(v any) *int64 {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		for _, key := range timestampKeys {
			if inner, ok := m[key]; ok {
				if ts := NormalizeTimestamp(inner); ts != nil {
					return ts
				}
			}
		}
		return nil
	}
	if n := ToNumber(v); n != nil {
		return fromNumber(*n)
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return fromNumber(float64(t.Unix()))
		}
	}
	return nil
}

func fromNumber(n float64) *int64 {
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	if n > msThreshold {
		n /= 1000
	}
	ts := int64(math.Floor(n))
	return &ts
}

// ClampPercent rounds and clamps into [0,100]. Nil or non-finite input yields nil.
func ClampPercent(v *float64) *int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	p := int(max(0, min(100, math.Round(*v))))
	return &p
}

// SafeLeft returns total-used floored at zero. Unknown usage means nothing used;
// unknown total means the remainder is unknowable.
func SafeLeft(total, used *float64) *float64 {
	if total == nil {
		return nil
	}
	if used == nil {
		t := *total
		return &t
	}
	left := math.Max(0, *total-*used)
	return &left
}

// SumDefined sums the non-nil values, or returns nil when every value is nil.
func SumDefined(values ...*float64) *float64 {
	var sum float64
	seen := false
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		seen = true
	}
	if !seen {
		return nil
	}
	return &sum
}

// Float returns a pointer to f. Handy for literals in builders and tests.
func Float(f float64) *float64 { return &f }

// Value dereferences p, returning fallback for nil.
func Value[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

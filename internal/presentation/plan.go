package presentation

import "strings"

// planAliases maps substrings of vendor plan names to normalized plan ids.
// Order matters: the first match wins.
var planAliases = []struct {
	needle string
	plan   string
}{
	{"enterprise", "enterprise"},
	{"business", "business"},
	{"team", "team"},
	{"ultra", "ultra"},
	{"ultimate", "ultra"},
	{"plus", "plus"},
	{"pro", "pro"},
	{"power", "power"},
	{"individual", "individual"},
	{"trial", "trial"},
	{"free", "free"},
}

// NormalizePlan maps a vendor plan string to a stable lower-case plan id.
func NormalizePlan(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "unknown"
	}
	for _, a := range planAliases {
		if strings.Contains(s, a.needle) {
			return a.plan
		}
	}
	return s
}

// ResolvePlan returns the badge label and class. The label prefers the raw
// vendor string; the class always comes from the normalized name.
func ResolvePlan(raw, normalized string, opts Options) (label, class string) {
	if normalized == "" {
		normalized = NormalizePlan(raw)
	}
	class = strings.ToLower(normalized)
	if label = strings.TrimSpace(raw); label != "" {
		return label, class
	}
	fallback := strings.ToUpper(class[:1]) + class[1:]
	return opts.t("plan."+class, fallback, nil), class
}

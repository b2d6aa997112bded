// Package models defines data structures and domain types.
package models

import (
	"fmt"
	"strings"
)

// Platform identifies which assistant product an account belongs to.
type Platform string

const (
	PlatformAntigravity Platform = "antigravity"
	PlatformCodex       Platform = "codex"
	PlatformCopilot     Platform = "github_copilot"
	PlatformWindsurf    Platform = "windsurf"
	PlatformKiro        Platform = "kiro"
)

// AllPlatforms lists every supported platform in tab order.
var AllPlatforms = []Platform{
	PlatformAntigravity,
	PlatformCodex,
	PlatformCopilot,
	PlatformWindsurf,
	PlatformKiro,
}

// Title returns the product name shown in tab headers.
func (p Platform) Title() string {
	switch p {
	case PlatformAntigravity:
		return "Antigravity"
	case PlatformCodex:
		return "Codex"
	case PlatformCopilot:
		return "GitHub Copilot"
	case PlatformWindsurf:
		return "Windsurf"
	case PlatformKiro:
		return "Kiro"
	default:
		return string(p)
	}
}

// ParsePlatform accepts a platform id or a loose alias such as "copilot".
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "antigravity", "ag":
		return PlatformAntigravity, nil
	case "codex", "openai":
		return PlatformCodex, nil
	case "github_copilot", "github-copilot", "copilot", "gh":
		return PlatformCopilot, nil
	case "windsurf":
		return PlatformWindsurf, nil
	case "kiro":
		return PlatformKiro, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

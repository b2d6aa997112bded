package models

import (
	"strings"

	"github.com/samber/lo"
)

// Base carries the fields every platform account shares. Timestamps are unix seconds.
type Base struct {
	ID        string   `json:"id"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt int64    `json:"created_at"`
	LastUsed  int64    `json:"last_used"`
}

// Meta returns the shared account fields.
func (b *Base) Meta() *Base { return b }

// Account is implemented by every platform account variant.
type Account interface {
	Meta() *Base
	Platform() Platform
	// Label is the human identifier: an email, login or user id.
	Label() string
}

// NormalizeTag trims and lower-cases a tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags normalizes, de-duplicates and drops empty tags, keeping order.
func NormalizeTags(tags []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(tags, func(t string, _ int) string {
		return NormalizeTag(t)
	})))
	if len(out) == 0 {
		return nil
	}
	return out
}

// HasTag reports whether the account carries the normalized tag.
func HasTag(acc Account, tag string) bool {
	tag = NormalizeTag(tag)
	return lo.SomeBy(acc.Meta().Tags, func(t string) bool {
		return NormalizeTag(t) == tag
	})
}

// AccountIDs returns the ids of accounts in order.
func AccountIDs[A Account](accounts []A) []string {
	return lo.Map(accounts, func(a A, _ int) string { return a.Meta().ID })
}

// QuotaError records the last failed quota fetch of an account.
type QuotaError struct {
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

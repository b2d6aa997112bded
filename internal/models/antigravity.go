package models

import (
	"encoding/json"
	"strings"
	"time"
)

// TokenData is the Google OAuth credential of an Antigravity account.
type TokenData struct {
	AccessToken     string `json:"access_token,omitempty"`
	RefreshToken    string `json:"refresh_token"`
	ExpiresIn       int64  `json:"expires_in,omitempty"`
	ExpiryTimestamp int64  `json:"expiry_timestamp,omitempty"`
	ProjectID       string `json:"project_id,omitempty"`
}

// ModelQuota is the remaining share of one model. Percentage is remaining, 0..100.
type ModelQuota struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	ResetTime  string  `json:"reset_time,omitempty"`
}

// AntigravityQuota is the last fetched model quota set.
type AntigravityQuota struct {
	Models           []ModelQuota `json:"models"`
	SubscriptionTier string       `json:"subscription_tier,omitempty"`
	LastUpdated      int64        `json:"last_updated"`
	IsForbidden      bool         `json:"is_forbidden,omitempty"`
}

// Model returns the quota of a model by name.
func (q *AntigravityQuota) Model(name string) (ModelQuota, bool) {
	if q == nil {
		return ModelQuota{}, false
	}
	for _, m := range q.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelQuota{}, false
}

// AntigravityAccount is a Google account signed in to Antigravity.
type AntigravityAccount struct {
	Quota *AntigravityQuota `json:"quota,omitempty"`
	Base
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	DisabledReason string    `json:"disabled_reason,omitempty"`
	Token          TokenData `json:"token"`
	Disabled       bool      `json:"disabled,omitempty"`
}

func (a *AntigravityAccount) Platform() Platform { return PlatformAntigravity }
func (a *AntigravityAccount) Label() string      { return a.Email }

// RawAccountData is one entry of the opencode plugin accounts file.
type RawAccountData struct {
	RateLimitResetTimes map[string]float64 `json:"rateLimitResetTimes,omitempty"`
	Email               string             `json:"email"`
	RefreshToken        string             `json:"refreshToken"`
	ProjectID           string             `json:"projectId"`
	ManagedProjectID    string             `json:"managedProjectId,omitempty"`
	AddedAt             json.RawMessage    `json:"addedAt,omitempty"`
	LastUsed            json.RawMessage    `json:"lastUsed,omitempty"`
}

// RawAccountsFile is the top-level structure of the opencode plugin accounts file.
type RawAccountsFile struct {
	Accounts []RawAccountData `json:"accounts"`
	Version  int              `json:"version"`
}

// ToAccount converts a plugin entry into an Antigravity account without an id.
func (r *RawAccountData) ToAccount() *AntigravityAccount {
	acc := &AntigravityAccount{
		Email: strings.TrimSpace(r.Email),
		Token: TokenData{
			RefreshToken: r.RefreshToken,
			ProjectID:    r.ProjectID,
		},
	}
	if acc.Token.ProjectID == "" {
		acc.Token.ProjectID = r.ManagedProjectID
	}
	if len(r.AddedAt) > 0 {
		if t := parseTimeField(r.AddedAt); !t.IsZero() {
			acc.CreatedAt = t.Unix()
		}
	}
	if len(r.LastUsed) > 0 {
		if t := parseTimeField(r.LastUsed); !t.IsZero() {
			acc.LastUsed = t.Unix()
		}
	}
	return acc
}

// parseTimeField attempts to parse a JSON time value as either ISO string or Unix timestamp.
func parseTimeField(data json.RawMessage) time.Time {
	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, strVal); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02T15:04:05.000Z", strVal); err == nil {
			return t
		}
	}

	var numVal float64
	if err := json.Unmarshal(data, &numVal); err == nil && numVal > 0 {
		if numVal > 1e12 {
			return time.UnixMilli(int64(numVal))
		}
		return time.Unix(int64(numVal), 0)
	}

	return time.Time{}
}

// Package codex signs in to ChatGPT for the Codex CLI, reads rate-limit usage
// and writes the credential files Codex and OpenCode read at startup.
package codex

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const authClaimKey = "https://api.openai.com/auth"

// Identity is what the id token says about the account.
type Identity struct {
	Email     string
	UserID    string
	AccountID string
	PlanType  string
}

func parseClaims(token string) (jwt.MapClaims, error) {
	if token == "" {
		return nil, errors.New("token is empty")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

func claimString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ParseIdentity decodes an id token. Signatures are not verified; the token
// came straight from the token endpoint or a local credential file.
func ParseIdentity(idToken string) (Identity, error) {
	claims, err := parseClaims(idToken)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{Email: claimString(claims, "email")}
	if auth, ok := claims[authClaimKey].(map[string]any); ok {
		id.AccountID = claimString(auth, "chatgpt_account_id", "account_id")
		id.UserID = claimString(auth, "chatgpt_user_id", "user_id")
		id.PlanType = claimString(auth, "chatgpt_plan_type")
	}
	if id.UserID == "" {
		id.UserID = claimString(claims, "sub")
	}
	return id, nil
}

// AccountIDFromAccessToken reads the ChatGPT account id carried by an access token.
func AccountIDFromAccessToken(accessToken string) string {
	claims, err := parseClaims(accessToken)
	if err != nil {
		return ""
	}
	if auth, ok := claims[authClaimKey].(map[string]any); ok {
		return claimString(auth, "chatgpt_account_id", "account_id")
	}
	return ""
}

// TokenExpiry returns the exp claim of a token.
func TokenExpiry(token string) (time.Time, bool) {
	claims, err := parseClaims(token)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpired reports whether the token expires within a minute. Tokens
// without a readable exp count as expired.
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return true
	}
	return exp.Before(now.Add(time.Minute))
}

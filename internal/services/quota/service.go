package quota

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

const (
	refreshAttempts = 3
	// expiryLeeway treats tokens this close to expiry as already expired.
	expiryLeeway = 5 * time.Minute
)

// Config holds Google OAuth client settings and the HTTP client.
type Config struct {
	HTTPClient   *http.Client
	ClientID     string
	ClientSecret string
	// Endpoints defaults to DefaultEndpoints.
	Endpoints *Endpoints
	// RetryBackoff is the first wait between token refresh attempts.
	RetryBackoff time.Duration
}

// Result is the outcome of one account refresh.
type Result struct {
	Quota *models.AntigravityQuota
	// Token is the refreshed credential to persist.
	Token models.TokenData
	// Email is set when Google reports a different address than stored.
	Email string
}

// Service refreshes Antigravity accounts. Access tokens are cached per
// refresh token for the life of the process.
type Service struct {
	api    client
	config Config

	mu     sync.RWMutex
	tokens map[string]*oauth2.Token
}

func New(config Config) *Service {
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 500 * time.Millisecond
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	ep := DefaultEndpoints()
	if config.Endpoints != nil {
		ep = *config.Endpoints
	}
	return &Service{
		api:    client{http: config.HTTPClient, ep: ep},
		config: config,
		tokens: make(map[string]*oauth2.Token),
	}
}

func usable(tok *oauth2.Token) bool {
	return tok != nil && tok.AccessToken != "" && time.Until(tok.Expiry) > expiryLeeway
}

// AccessToken returns a usable access token for the credential along with
// the credential updated to match. The stored token is used while it has
// time left; otherwise the cache, then up to three refresh attempts with
// doubling backoff.
func (s *Service) AccessToken(ctx context.Context, token models.TokenData) (string, models.TokenData, error) {
	if token.RefreshToken == "" {
		return "", token, errors.New("no refresh token for account")
	}
	if token.ExpiryTimestamp > 0 && usable(&oauth2.Token{AccessToken: token.AccessToken, Expiry: time.Unix(token.ExpiryTimestamp, 0)}) {
		return token.AccessToken, token, nil
	}

	s.mu.RLock()
	cached := s.tokens[token.RefreshToken]
	s.mu.RUnlock()
	if usable(cached) {
		token.AccessToken = cached.AccessToken
		token.ExpiryTimestamp = cached.Expiry.Unix()
		return cached.AccessToken, token, nil
	}

	conf := s.api.oauthConfig(s.config.ClientID, s.config.ClientSecret, "")
	var (
		tok *oauth2.Token
		err error
	)
	backoff := s.config.RetryBackoff
	for attempt := 1; ; attempt++ {
		if tok, err = s.api.refresh(ctx, conf, token.RefreshToken); err == nil || attempt == refreshAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", token, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		return "", token, fmt.Errorf("failed to refresh token: %w", err)
	}

	s.mu.Lock()
	s.tokens[token.RefreshToken] = tok
	s.mu.Unlock()

	token.AccessToken = tok.AccessToken
	token.ExpiryTimestamp = tok.Expiry.Unix()
	token.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	if tok.RefreshToken != "" {
		token.RefreshToken = tok.RefreshToken
	}
	return tok.AccessToken, token, nil
}

// Refresh fetches the quota of an account. The account is not modified.
func (s *Service) Refresh(ctx context.Context, acc *models.AntigravityAccount) (*Result, error) {
	accessToken, token, err := s.AccessToken(ctx, acc.Token)
	if err != nil {
		return nil, err
	}
	res := &Result{Token: token}

	if info, err := s.api.fetchUserInfo(ctx, accessToken); err != nil {
		logger.Debug("failed to fetch google user info", "account", acc.ID, "error", err)
	} else if email := strings.TrimSpace(info.Email); email != "" && email != acc.Email {
		res.Email = email
	}

	if res.Token.ProjectID == "" {
		if projectID, err := s.api.fetchProjectID(ctx, accessToken); err == nil {
			res.Token.ProjectID = projectID
		} else {
			logger.Debug("failed to resolve project id", "account", acc.ID, "error", err)
		}
	}

	q, err := s.api.fetchQuota(ctx, accessToken, res.Token.ProjectID)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.mu.Lock()
			delete(s.tokens, acc.Token.RefreshToken)
			s.mu.Unlock()
		}
		return nil, err
	}
	res.Quota = q
	return res, nil
}

// CachedTokens returns how many access tokens are cached.
func (s *Service) CachedTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

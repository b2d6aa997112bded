package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services/oauth"
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/cclog",
	"https://www.googleapis.com/auth/experimentsandconfigs",
}

// Login is a Google sign-in waiting for the browser redirect.
type Login struct {
	server *oauth.CallbackServer
	conf   *oauth2.Config
	state  string
	URL    string
}

// StartLogin opens a loopback callback server and builds the consent URL.
func (s *Service) StartLogin() (*Login, error) {
	if s.config.ClientID == "" {
		return nil, fmt.Errorf("google client id is not configured")
	}

	server, err := oauth.Listen(0, "/oauth-callback")
	if err != nil {
		return nil, err
	}

	conf := s.api.oauthConfig(s.config.ClientID, s.config.ClientSecret, server.RedirectURL())
	state := oauth.NewState()

	return &Login{
		server: server,
		conf:   conf,
		state:  state,
		URL:    conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")),
	}, nil
}

// Wait blocks for the redirect, exchanges the code and resolves the account
// identity. The returned account has no id yet.
func (l *Login) Wait(ctx context.Context, s *Service) (*models.AntigravityAccount, error) {
	code, err := l.server.Wait(ctx, l.state)
	if err != nil {
		return nil, err
	}

	tok, err := l.conf.Exchange(s.api.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("google did not return a refresh token")
	}

	acc := &models.AntigravityAccount{
		Token: models.TokenData{
			AccessToken:     tok.AccessToken,
			RefreshToken:    tok.RefreshToken,
			ExpiryTimestamp: tok.Expiry.Unix(),
			ExpiresIn:       int64(time.Until(tok.Expiry).Seconds()),
		},
	}

	info, err := s.api.fetchUserInfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	acc.Email = strings.TrimSpace(info.Email)
	acc.Name = info.Name

	if projectID, err := s.api.fetchProjectID(ctx, tok.AccessToken); err == nil {
		acc.Token.ProjectID = projectID
	}
	return acc, nil
}

// Close stops the callback server.
func (l *Login) Close() {
	l.server.Close()
}

package codex

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services/oauth"
)

const (
	ClientID      = "app_EMoamEEZ73f0CkXaXp7hrann"
	AuthEndpoint  = "https://auth.openai.com/oauth/authorize"
	TokenEndpoint = "https://auth.openai.com/oauth/token"
	Originator    = "codex_vscode"
	CallbackPort  = 1455
	CallbackPath  = "/auth/callback"
)

// PortInUseCode is reported to the UI when the callback port is taken,
// usually by the Codex CLI itself.
const PortInUseCode = "CODEX_OAUTH_PORT_IN_USE"

var scopes = []string{"openid", "profile", "email", "offline_access"}

// ErrPortInUse wraps oauth.ErrPortInUse with the code shown to users.
var ErrPortInUse = fmt.Errorf("%s: %w", PortInUseCode, oauth.ErrPortInUse)

// Client talks to the OpenAI auth server.
type Client struct {
	HTTPClient   *http.Client
	TokenURL     string
	AuthURL      string
	CallbackPort int
}

// NewClient returns a client with the production endpoints.
func NewClient(httpClient *http.Client) *Client {
	return &Client{
		HTTPClient:   httpClient,
		TokenURL:     TokenEndpoint,
		AuthURL:      AuthEndpoint,
		CallbackPort: CallbackPort,
	}
}

func (c *Client) config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    ClientID,
		RedirectURL: redirectURL,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) ctx(ctx context.Context) context.Context {
	if c.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	return ctx
}

// Login is a PKCE authorization waiting on the local callback.
type Login struct {
	client *Client
	server *oauth.CallbackServer
	conf   *oauth2.Config
	pkce   oauth.PKCE
	state  string
	URL    string
}

// StartLogin binds the callback port and builds the authorization URL.
func (c *Client) StartLogin() (*Login, error) {
	server, err := oauth.Listen(c.CallbackPort, CallbackPath)
	if err != nil {
		if errors.Is(err, oauth.ErrPortInUse) {
			return nil, ErrPortInUse
		}
		return nil, err
	}

	conf := c.config(server.RedirectURL())
	pkce := oauth.NewPKCE()
	state := oauth.NewState()

	url := conf.AuthCodeURL(state,
		oauth2.S256ChallengeOption(pkce.Verifier),
		oauth2.SetAuthURLParam("id_token_add_organizations", "true"),
		oauth2.SetAuthURLParam("codex_cli_simplified_flow", "true"),
		oauth2.SetAuthURLParam("originator", Originator),
	)

	return &Login{client: c, server: server, conf: conf, pkce: pkce, state: state, URL: url}, nil
}

// Wait blocks for the browser redirect and exchanges the code.
func (l *Login) Wait(ctx context.Context) (models.CodexTokens, error) {
	code, err := l.server.Wait(ctx, l.state)
	if err != nil {
		return models.CodexTokens{}, err
	}

	tok, err := l.conf.Exchange(l.client.ctx(ctx), code, oauth2.VerifierOption(l.pkce.Verifier))
	if err != nil {
		return models.CodexTokens{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tokensFrom(tok, "")
}

// Close releases the callback port.
func (l *Login) Close() {
	l.server.Close()
}

// Refresh trades a refresh token for new tokens. The old refresh token is
// kept when the server does not rotate it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.CodexTokens, error) {
	if refreshToken == "" {
		return models.CodexTokens{}, errors.New("refresh token is empty")
	}
	src := c.config("").TokenSource(c.ctx(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return models.CodexTokens{}, fmt.Errorf("failed to refresh codex token: %w", err)
	}
	return tokensFrom(tok, refreshToken)
}

func tokensFrom(tok *oauth2.Token, fallbackRefresh string) (models.CodexTokens, error) {
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return models.CodexTokens{}, errors.New("token response has no id_token")
	}
	if tok.AccessToken == "" {
		return models.CodexTokens{}, errors.New("token response has no access_token")
	}

	out := models.CodexTokens{
		IDToken:      idToken,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if out.RefreshToken == "" {
		out.RefreshToken = fallbackRefresh
	}
	if id, err := ParseIdentity(idToken); err == nil {
		out.AccountID = id.AccountID
	}
	return out, nil
}

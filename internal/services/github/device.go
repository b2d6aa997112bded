// Package github runs the GitHub device flow and reads the Copilot and
// Windsurf entitlements tied to a GitHub account.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultClientID is the public client id the Copilot editor plugins use.
const DefaultClientID = "Iv1.b507a08c87ecfe98"

// DefaultAPIBase is the GitHub REST API root.
const DefaultAPIBase = "https://api.github.com"

var deviceScopes = []string{"read:user", "user:email"}

// Client holds the OAuth app and HTTP settings for GitHub.
type Client struct {
	HTTPClient *http.Client
	Endpoint   oauth2.Endpoint
	ClientID   string
	APIBase    string
}

// NewClient returns a client against github.com.
func NewClient(httpClient *http.Client, clientID string) *Client {
	if clientID == "" {
		clientID = DefaultClientID
	}
	return &Client{
		HTTPClient: httpClient,
		Endpoint:   endpoints.GitHub,
		ClientID:   clientID,
		APIBase:    DefaultAPIBase,
	}
}

func (c *Client) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: c.ClientID,
		Scopes:   deviceScopes,
		Endpoint: c.Endpoint,
	}
}

func (c *Client) ctx(ctx context.Context) context.Context {
	if c.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	return ctx
}

// DeviceCode is a started device authorization.
type DeviceCode = oauth2.DeviceAuthResponse

// StartDevice requests a user code.
func (c *Client) StartDevice(ctx context.Context) (*DeviceCode, error) {
	da, err := c.config().DeviceAuth(c.ctx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to start github device flow: %w", err)
	}
	return da, nil
}

// PollDevice waits until the user approves the code, the code expires or ctx ends.
func (c *Client) PollDevice(ctx context.Context, da *DeviceCode) (*oauth2.Token, error) {
	tok, err := c.config().DeviceAccessToken(c.ctx(ctx), da)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "expired_token" {
			return nil, errors.New("device code expired")
		}
		return nil, fmt.Errorf("github device flow failed: %w", err)
	}
	return tok, nil
}

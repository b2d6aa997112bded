// Package kiro signs in to Kiro with an AWS Builder ID through the SSO OIDC
// device flow and imports the token the Kiro IDE caches locally.
package kiro

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/golang-jwt/jwt/v5"

	"github.com/j-veylop/cockpit-tui/internal/models"
)

const (
	// DefaultRegion is where Builder ID is hosted.
	DefaultRegion = "us-east-1"
	// BuilderIDStartURL is the AWS Builder ID portal.
	BuilderIDStartURL = "https://view.awsapps.com/start"

	clientName      = "cockpit-tui"
	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"
	refreshGrant    = "refresh_token"
	providerBuilder = "BuilderId"
)

var scopes = []string{
	"codewhisperer:completions",
	"codewhisperer:analysis",
	"codewhisperer:conversations",
}

// ErrExpired is returned when the user did not approve the code in time.
var ErrExpired = errors.New("kiro device code expired")

// Client talks to AWS SSO OIDC.
type Client struct {
	HTTPClient *http.Client
	// Endpoint overrides the regional OIDC endpoint.
	Endpoint string
	Region   string
}

// NewClient returns a client for the Builder ID region.
func NewClient(httpClient *http.Client) *Client {
	return &Client{HTTPClient: httpClient, Region: DefaultRegion}
}

func (c *Client) oidc(region string) *ssooidc.Client {
	if region == "" {
		region = c.Region
	}
	if region == "" {
		region = DefaultRegion
	}
	return ssooidc.New(ssooidc.Options{}, func(o *ssooidc.Options) {
		o.Region = region
		o.RetryMaxAttempts = 1
		if c.HTTPClient != nil {
			o.HTTPClient = c.HTTPClient
		}
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	})
}

// Device is a started device authorization together with the client
// registration it belongs to.
type Device struct {
	ClientID        string
	ClientSecret    string
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Region          string
	ExpiresIn       time.Duration
	Interval        time.Duration
}

// StartDevice registers a public client and requests a user code.
func (c *Client) StartDevice(ctx context.Context) (*Device, error) {
	api := c.oidc("")

	reg, err := api.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String(clientName),
		ClientType: aws.String("public"),
		Scopes:     scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register oidc client: %w", err)
	}

	auth, err := api.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     reg.ClientId,
		ClientSecret: reg.ClientSecret,
		StartUrl:     aws.String(BuilderIDStartURL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start device authorization: %w", err)
	}

	uri := aws.ToString(auth.VerificationUriComplete)
	if uri == "" {
		uri = aws.ToString(auth.VerificationUri)
	}
	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Device{
		ClientID:        aws.ToString(reg.ClientId),
		ClientSecret:    aws.ToString(reg.ClientSecret),
		DeviceCode:      aws.ToString(auth.DeviceCode),
		UserCode:        aws.ToString(auth.UserCode),
		VerificationURI: uri,
		Region:          c.Region,
		ExpiresIn:       time.Duration(auth.ExpiresIn) * time.Second,
		Interval:        interval,
	}, nil
}

// PollDevice waits for the user to approve d and returns the signed-in account.
func (c *Client) PollDevice(ctx context.Context, d *Device) (*models.KiroAccount, error) {
	api := c.oidc(d.Region)
	interval := d.Interval
	deadline := time.Now().Add(d.ExpiresIn)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		if d.ExpiresIn > 0 && time.Now().After(deadline) {
			return nil, ErrExpired
		}

		out, err := api.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     aws.String(d.ClientID),
			ClientSecret: aws.String(d.ClientSecret),
			GrantType:    aws.String(deviceGrantType),
			DeviceCode:   aws.String(d.DeviceCode),
		})
		var pending *types.AuthorizationPendingException
		var slow *types.SlowDownException
		var expired *types.ExpiredTokenException
		switch {
		case err == nil:
			acc := &models.KiroAccount{
				AccessToken:   aws.ToString(out.AccessToken),
				RefreshToken:  aws.ToString(out.RefreshToken),
				ClientID:      d.ClientID,
				ClientSecret:  d.ClientSecret,
				Region:        d.Region,
				LoginProvider: providerBuilder,
				ExpiresAt:     time.Now().Add(time.Duration(out.ExpiresIn) * time.Second).Unix(),
				Status:        "ok",
			}
			applyIDToken(acc, aws.ToString(out.IdToken))
			return acc, nil
		case errors.As(err, &pending):
		case errors.As(err, &slow):
			interval += 5 * time.Second
		case errors.As(err, &expired):
			return nil, ErrExpired
		default:
			return nil, fmt.Errorf("kiro token request failed: %w", err)
		}
	}
}

// Refresh renews the access token of acc in place. Social logins have no OIDC
// client and are refreshed through the Kiro auth service instead.
func (c *Client) Refresh(ctx context.Context, acc *models.KiroAccount) error {
	if strings.TrimSpace(acc.RefreshToken) == "" {
		return errors.New("kiro account has no refresh token")
	}
	if acc.ClientID == "" {
		return c.refreshSocial(ctx, acc)
	}

	out, err := c.oidc(acc.Region).CreateToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(acc.ClientID),
		ClientSecret: aws.String(acc.ClientSecret),
		GrantType:    aws.String(refreshGrant),
		RefreshToken: aws.String(acc.RefreshToken),
	})
	if err != nil {
		var invalid *types.InvalidGrantException
		if errors.As(err, &invalid) {
			acc.Status = "error"
			acc.StatusReason = "refresh token rejected"
		}
		return fmt.Errorf("failed to refresh kiro token: %w", err)
	}

	acc.AccessToken = aws.ToString(out.AccessToken)
	if rt := aws.ToString(out.RefreshToken); rt != "" {
		acc.RefreshToken = rt
	}
	acc.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second).Unix()
	acc.Status, acc.StatusReason = "ok", ""
	applyIDToken(acc, aws.ToString(out.IdToken))
	return nil
}

// applyIDToken fills identity fields from an OIDC id token when one is returned.
func applyIDToken(acc *models.KiroAccount, idToken string) {
	if idToken == "" {
		return
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		acc.UserID = sub
	}
	if email, _ := claims["email"].(string); email != "" {
		acc.Email = email
	}
}

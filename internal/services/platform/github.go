package platform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services/github"
)

// githubLogin runs the device flow and resolves the identity behind the token.
func githubLogin[A models.Account](gh *github.Client, build func(models.GitHubIdentity) A) func(context.Context) (*login[A], error) {
	return func(ctx context.Context) (*login[A], error) {
		da, err := gh.StartDevice(ctx)
		if err != nil {
			return nil, err
		}
		uri := da.VerificationURIComplete
		if uri == "" {
			uri = da.VerificationURI
		}
		start := models.LoginStart{
			URL:             uri,
			UserCode:        da.UserCode,
			IntervalSeconds: int(da.Interval),
		}
		if !da.Expiry.IsZero() {
			start.ExpiresIn = int(time.Until(da.Expiry).Seconds())
		}

		return &login[A]{
			start: start,
			wait: func(ctx context.Context) (A, error) {
				var zero A
				tok, err := gh.PollDevice(ctx, da)
				if err != nil {
					return zero, err
				}
				scope, _ := tok.Extra("scope").(string)
				id, err := gh.FetchIdentity(ctx, tok.AccessToken, tok.TokenType, scope)
				if err != nil {
					return zero, err
				}
				return build(id), nil
			},
		}, nil
	}
}

func githubKey(id models.GitHubIdentity) string {
	if id.GitHubID != 0 {
		return "gh:" + strconv.FormatInt(id.GitHubID, 10)
	}
	if id.GitHubLogin != "" {
		return "login:" + strings.ToLower(id.GitHubLogin)
	}
	return strings.ToLower(id.GitHubEmail)
}

func quotaErrorCode(err error, now time.Time) *models.QuotaError {
	qe := quotaError(err, now)
	if errors.Is(err, github.ErrUnauthorized) {
		qe.Code = "unauthorized"
	}
	return qe
}

// Copilot manages GitHub accounts with a Copilot subscription.
type Copilot struct {
	*service[*models.CopilotAccount]
	gh        *github.Client
	configDir string
}

// CopilotConfig configures NewCopilot.
type CopilotConfig struct {
	GitHub       *github.Client
	AccountsPath string
	// ConfigDir is the github-copilot directory read by ImportLocal.
	ConfigDir string
}

// NewCopilot opens the Copilot account store.
func NewCopilot(cfg CopilotConfig, opts Options) (*Copilot, error) {
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = github.DefaultCopilotConfigDir()
	}
	c := &Copilot{gh: cfg.GitHub, configDir: cfg.ConfigDir}
	h := hooks[*models.CopilotAccount]{
		refresh:     c.refresh,
		fromToken:   c.fromToken,
		importLocal: c.importLocal,
		startLogin: githubLogin(cfg.GitHub, func(id models.GitHubIdentity) *models.CopilotAccount {
			return &models.CopilotAccount{GitHubIdentity: id}
		}),
		refreshOnAdd: true,
	}
	svc, err := newService(models.PlatformCopilot, cfg.AccountsPath, func(a *models.CopilotAccount) string {
		return githubKey(a.GitHubIdentity)
	}, h, opts)
	if err != nil {
		return nil, err
	}
	c.service = svc
	return c, nil
}

func (c *Copilot) refresh(ctx context.Context, acc *models.CopilotAccount) error {
	status, err := c.gh.FetchCopilot(ctx, acc.GitHubAccessToken)
	if err != nil {
		acc.QuotaError = quotaErrorCode(err, c.opts.now())
		return err
	}
	status.Apply(acc)
	acc.QuotaError = nil
	return nil
}

func (c *Copilot) fromToken(ctx context.Context, token string) (*models.CopilotAccount, error) {
	id, err := c.gh.FetchIdentity(ctx, token, "bearer", "")
	if err != nil {
		return nil, err
	}
	return &models.CopilotAccount{GitHubIdentity: id}, nil
}

func (c *Copilot) importLocal(ctx context.Context) ([]*models.CopilotAccount, error) {
	tokens, err := github.ReadLocalTokens(c.configDir)
	if err != nil {
		return nil, err
	}
	var out []*models.CopilotAccount
	var errs []error
	for _, t := range tokens {
		acc, err := c.fromToken(ctx, t.Token)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.User, err))
			continue
		}
		out = append(out, acc)
	}
	if len(out) == 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// ErrNoWindsurfKey is returned when refreshing a Windsurf account that only
// has a GitHub identity.
var ErrNoWindsurfKey = errors.New("no windsurf api key; import the account from the windsurf app")

// Windsurf manages Windsurf accounts. Sign-in shares the GitHub device flow;
// credits need the Windsurf API key found in the local installation.
type Windsurf struct {
	*service[*models.WindsurfAccount]
	gh        *github.Client
	statusURL string
	stateDB   string
}

// WindsurfConfig configures NewWindsurf.
type WindsurfConfig struct {
	GitHub       *github.Client
	AccountsPath string
	StatusURL    string
	// StateDB is the editor state.vscdb read by ImportLocal.
	StateDB string
}

// NewWindsurf opens the Windsurf account store.
func NewWindsurf(cfg WindsurfConfig, opts Options) (*Windsurf, error) {
	if cfg.StateDB == "" {
		cfg.StateDB = github.DefaultWindsurfStateDB()
	}
	w := &Windsurf{gh: cfg.GitHub, statusURL: cfg.StatusURL, stateDB: cfg.StateDB}
	h := hooks[*models.WindsurfAccount]{
		refresh:     w.refresh,
		fromToken:   w.fromToken,
		importLocal: w.importLocal,
		startLogin: githubLogin(cfg.GitHub, func(id models.GitHubIdentity) *models.WindsurfAccount {
			return &models.WindsurfAccount{GitHubIdentity: id}
		}),
		refreshOnAdd: true,
	}
	svc, err := newService(models.PlatformWindsurf, cfg.AccountsPath, func(a *models.WindsurfAccount) string {
		return githubKey(a.GitHubIdentity)
	}, h, opts)
	if err != nil {
		return nil, err
	}
	w.service = svc
	return w, nil
}

func (w *Windsurf) apply(acc *models.WindsurfAccount, status *github.WindsurfStatus) {
	acc.WindsurfUserStatus = status.UserStatus
	acc.WindsurfPlanStatus = status.PlanStatus
	if status.PlanName != "" {
		acc.WindsurfPlanName = status.PlanName
	}
	if email, _ := status.UserStatus["email"].(string); email != "" && acc.GitHubEmail == "" {
		acc.GitHubEmail = email
	}
	if name, _ := status.UserStatus["name"].(string); name != "" && acc.GitHubName == "" {
		acc.GitHubName = name
	}
}

func (w *Windsurf) refresh(ctx context.Context, acc *models.WindsurfAccount) error {
	now := w.opts.now()
	if acc.WindsurfAPIKey == "" {
		acc.QuotaError = quotaError(ErrNoWindsurfKey, now)
		return ErrNoWindsurfKey
	}
	status, err := w.gh.FetchWindsurfStatus(ctx, w.statusURL, acc.WindsurfAPIKey)
	if err != nil {
		acc.QuotaError = quotaError(err, now)
		return err
	}
	w.apply(acc, status)
	acc.QuotaError = nil
	return nil
}

func isGitHubToken(token string) bool {
	for _, p := range []string{"gho_", "ghu_", "ghp_", "github_pat_"} {
		if strings.HasPrefix(token, p) {
			return true
		}
	}
	return false
}

// fromToken accepts a GitHub token or a Windsurf API key.
func (w *Windsurf) fromToken(ctx context.Context, token string) (*models.WindsurfAccount, error) {
	if isGitHubToken(token) {
		id, err := w.gh.FetchIdentity(ctx, token, "bearer", "")
		if err != nil {
			return nil, err
		}
		return &models.WindsurfAccount{GitHubIdentity: id}, nil
	}

	status, err := w.gh.FetchWindsurfStatus(ctx, w.statusURL, token)
	if err != nil {
		return nil, err
	}
	acc := &models.WindsurfAccount{WindsurfAPIKey: token}
	w.apply(acc, status)
	return acc, nil
}

func (w *Windsurf) importLocal(ctx context.Context) ([]*models.WindsurfAccount, error) {
	local, err := github.ReadWindsurfState(ctx, w.stateDB)
	if err != nil {
		return nil, err
	}
	acc := &models.WindsurfAccount{
		WindsurfAPIKey: local.APIKey,
		GitHubIdentity: models.GitHubIdentity{GitHubEmail: local.Email, GitHubName: local.Name},
	}
	if local.Status != nil {
		w.apply(acc, local.Status)
	}
	return []*models.WindsurfAccount{acc}, nil
}

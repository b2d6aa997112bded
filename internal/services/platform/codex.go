package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services/codex"
)

// Codex manages ChatGPT accounts used by the Codex CLI.
type Codex struct {
	*service[*models.CodexAccount]
	client *codex.Client
	cfg    CodexConfig
}

// CodexConfig configures NewCodex. Empty paths use the Codex and OpenCode defaults.
type CodexConfig struct {
	HTTPClient   *http.Client
	Client       *codex.Client
	AccountsPath string
	UsageURL     string
	// Home is the Codex home holding auth.json.
	Home string
	// OpenCodeAuthPath is synced on switch when the file exists.
	OpenCodeAuthPath string
}

// NewCodex opens the Codex account store.
func NewCodex(cfg CodexConfig, opts Options) (*Codex, error) {
	if cfg.Client == nil {
		cfg.Client = codex.NewClient(cfg.HTTPClient)
	}
	if cfg.Home == "" {
		cfg.Home = codex.DefaultHome()
	}
	if cfg.OpenCodeAuthPath == "" {
		if p, err := codex.OpenCodeAuthPath(); err == nil {
			cfg.OpenCodeAuthPath = p
		}
	}

	c := &Codex{client: cfg.Client, cfg: cfg}
	h := hooks[*models.CodexAccount]{
		refresh:      c.refresh,
		fromToken:    c.fromToken,
		importLocal:  c.importLocal,
		startLogin:   c.startLogin,
		activate:     c.activate,
		refreshOnAdd: true,
	}
	svc, err := newService(models.PlatformCodex, cfg.AccountsPath, codexKey, h, opts)
	if err != nil {
		return nil, err
	}
	c.service = svc
	return c, nil
}

func codexKey(a *models.CodexAccount) string {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	if email == "" {
		return ""
	}
	return email + "|" + a.AccountID
}

// accountFromTokens fills identity fields from the id token.
func accountFromTokens(tokens models.CodexTokens) (*models.CodexAccount, error) {
	id, err := codex.ParseIdentity(tokens.IDToken)
	if err != nil {
		return nil, err
	}
	if tokens.AccountID == "" {
		tokens.AccountID = id.AccountID
	}
	return &models.CodexAccount{
		Email:     id.Email,
		UserID:    id.UserID,
		PlanType:  id.PlanType,
		AccountID: tokens.AccountID,
		Tokens:    tokens,
	}, nil
}

func (c *Codex) renew(ctx context.Context, acc *models.CodexAccount) error {
	tokens, err := c.client.Refresh(ctx, acc.Tokens.RefreshToken)
	if err != nil {
		return err
	}
	if tokens.AccountID == "" {
		tokens.AccountID = acc.AccountID
	}
	acc.Tokens = tokens
	return nil
}

func (c *Codex) refresh(ctx context.Context, acc *models.CodexAccount) error {
	now := c.opts.now()
	err := c.fetchUsage(ctx, acc)
	if err != nil {
		acc.QuotaError = quotaError(err, now)
		return err
	}
	acc.QuotaError = nil
	return nil
}

func (c *Codex) fetchUsage(ctx context.Context, acc *models.CodexAccount) error {
	if codex.TokenExpired(acc.Tokens.AccessToken, c.opts.now()) && acc.Tokens.RefreshToken != "" {
		if err := c.renew(ctx, acc); err != nil {
			return err
		}
	}

	usage, err := codex.FetchUsage(ctx, c.cfg.HTTPClient, c.cfg.UsageURL, acc.Tokens)
	if errors.Is(err, codex.ErrUnauthorized) && acc.Tokens.RefreshToken != "" {
		if rerr := c.renew(ctx, acc); rerr != nil {
			return rerr
		}
		usage, err = codex.FetchUsage(ctx, c.cfg.HTTPClient, c.cfg.UsageURL, acc.Tokens)
	}
	if err != nil {
		return err
	}

	acc.Quota = usage.Quota
	if usage.PlanType != "" {
		acc.PlanType = usage.PlanType
	}
	return nil
}

// fromToken takes a refresh token.
func (c *Codex) fromToken(ctx context.Context, token string) (*models.CodexAccount, error) {
	tokens, err := c.client.Refresh(ctx, token)
	if err != nil {
		return nil, err
	}
	return accountFromTokens(tokens)
}

func (c *Codex) importLocal(context.Context) ([]*models.CodexAccount, error) {
	tokens, err := codex.ReadAuthFile(codex.AuthFilePath(c.cfg.Home))
	if err != nil {
		return nil, fmt.Errorf("failed to read codex sign-in: %w", err)
	}
	acc, err := accountFromTokens(tokens)
	if err != nil {
		return nil, err
	}
	return []*models.CodexAccount{acc}, nil
}

func (c *Codex) startLogin(context.Context) (*login[*models.CodexAccount], error) {
	l, err := c.client.StartLogin()
	if err != nil {
		return nil, err
	}
	return &login[*models.CodexAccount]{
		wait: func(ctx context.Context) (*models.CodexAccount, error) {
			tokens, err := l.Wait(ctx)
			if err != nil {
				return nil, err
			}
			return accountFromTokens(tokens)
		},
		cleanup: l.Close,
		start:   models.LoginStart{URL: l.URL},
	}, nil
}

// activate writes auth.json and, when OpenCode is installed, its openai entry.
// An expired access token is renewed first.
func (c *Codex) activate(ctx context.Context, acc *models.CodexAccount) error {
	now := c.opts.now()
	if codex.TokenExpired(acc.Tokens.AccessToken, now) {
		if err := c.renew(ctx, acc); err != nil {
			return fmt.Errorf("token expired and refresh failed: %w", err)
		}
		if _, err := c.store.Replace(acc); err != nil {
			return err
		}
	}

	if err := codex.WriteAuthFile(codex.AuthFilePath(c.cfg.Home), acc.Tokens, now); err != nil {
		return fmt.Errorf("failed to write codex auth file: %w", err)
	}

	if c.cfg.OpenCodeAuthPath == "" {
		return nil
	}
	if _, err := os.Stat(c.cfg.OpenCodeAuthPath); err != nil {
		return nil
	}
	if err := codex.ReplaceOpenCodeEntry(c.cfg.OpenCodeAuthPath, acc, now); err != nil {
		logger.Warn("failed to sync opencode auth", "path", c.cfg.OpenCodeAuthPath, "error", err)
	}
	return nil
}

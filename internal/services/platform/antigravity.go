package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services/quota"
)

// Antigravity manages Google accounts signed in to Antigravity.
type Antigravity struct {
	*service[*models.AntigravityAccount]
	quota *quota.Service
}

// AntigravityConfig configures NewAntigravity.
type AntigravityConfig struct {
	Quota *quota.Service
	// AccountsPath is the cockpit accounts index.
	AccountsPath string
	// LocalPath is the opencode plugin accounts file used by ImportLocal.
	LocalPath string
}

// NewAntigravity opens the Antigravity account store.
func NewAntigravity(cfg AntigravityConfig, opts Options) (*Antigravity, error) {
	a := &Antigravity{quota: cfg.Quota}
	h := hooks[*models.AntigravityAccount]{
		refresh:      a.refresh,
		fromToken:    a.fromToken,
		parse:        parseAntigravity,
		startLogin:   a.startLogin,
		refreshOnAdd: true,
		importLocal: func(context.Context) ([]*models.AntigravityAccount, error) {
			return readPluginAccounts(cfg.LocalPath)
		},
	}
	svc, err := newService(models.PlatformAntigravity, cfg.AccountsPath, antigravityKey, h, opts)
	if err != nil {
		return nil, err
	}
	a.service = svc
	return a, nil
}

func antigravityKey(a *models.AntigravityAccount) string {
	return strings.ToLower(strings.TrimSpace(a.Email))
}

func (a *Antigravity) refresh(ctx context.Context, acc *models.AntigravityAccount) error {
	res, err := a.quota.Refresh(ctx, acc)
	if err != nil {
		return err
	}
	acc.Token = res.Token
	if res.Email != "" {
		acc.Email = res.Email
	}
	acc.Quota = res.Quota
	if res.Quota.IsForbidden {
		acc.DisabledReason = "quota access forbidden"
	} else {
		acc.DisabledReason = ""
	}
	return nil
}

// fromToken takes a Google refresh token. The email comes from the first refresh.
func (a *Antigravity) fromToken(ctx context.Context, token string) (*models.AntigravityAccount, error) {
	acc := &models.AntigravityAccount{Token: models.TokenData{RefreshToken: token}}
	if err := a.refresh(ctx, acc); err != nil {
		return nil, err
	}
	if acc.Email == "" {
		return nil, fmt.Errorf("could not resolve the google account of the token")
	}
	return acc, nil
}

func (a *Antigravity) startLogin(context.Context) (*login[*models.AntigravityAccount], error) {
	l, err := a.quota.StartLogin()
	if err != nil {
		return nil, err
	}
	return &login[*models.AntigravityAccount]{
		wait: func(ctx context.Context) (*models.AntigravityAccount, error) {
			return l.Wait(ctx, a.quota)
		},
		cleanup: l.Close,
		start:   models.LoginStart{URL: l.URL},
	}, nil
}

// parseAntigravity accepts cockpit exports and the opencode plugin format.
func parseAntigravity(data []byte) ([]*models.AntigravityAccount, error) {
	accs, err := parseAccounts[*models.AntigravityAccount](data)
	if err == nil && hasRefreshToken(accs) {
		return accs, nil
	}
	if plugin, perr := parsePluginAccounts(data); perr == nil && len(plugin) > 0 {
		return plugin, nil
	}
	return accs, err
}

func hasRefreshToken(accs []*models.AntigravityAccount) bool {
	for _, a := range accs {
		if a != nil && a.Token.RefreshToken != "" {
			return true
		}
	}
	return false
}

func parsePluginAccounts(data []byte) ([]*models.AntigravityAccount, error) {
	var file models.RawAccountsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	out := make([]*models.AntigravityAccount, 0, len(file.Accounts))
	for i := range file.Accounts {
		if file.Accounts[i].RefreshToken == "" {
			continue
		}
		out = append(out, file.Accounts[i].ToAccount())
	}
	return out, nil
}

func readPluginAccounts(path string) ([]*models.AntigravityAccount, error) {
	if path == "" {
		return nil, fmt.Errorf("antigravity accounts file is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parsePluginAccounts(data)
}

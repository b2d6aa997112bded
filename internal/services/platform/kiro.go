package platform

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services/kiro"
)

// kiroRefreshWindow renews Kiro tokens this long before they expire.
const kiroRefreshWindow = 5 * time.Minute

// Kiro manages Kiro accounts. Usage comes from imported profiles; refresh only
// renews the access token and the account status.
type Kiro struct {
	*service[*models.KiroAccount]
	client   *kiro.Client
	cacheDir string
}

// KiroConfig configures NewKiro.
type KiroConfig struct {
	Client       *kiro.Client
	AccountsPath string
	// CacheDir is the AWS SSO cache read by ImportLocal.
	CacheDir string
}

// NewKiro opens the Kiro account store.
func NewKiro(cfg KiroConfig, opts Options) (*Kiro, error) {
	if cfg.CacheDir == "" {
		cfg.CacheDir = kiro.DefaultCacheDir()
	}
	k := &Kiro{client: cfg.Client, cacheDir: cfg.CacheDir}
	h := hooks[*models.KiroAccount]{
		refresh:   k.refresh,
		fromToken: k.fromToken,
		importLocal: func(context.Context) ([]*models.KiroAccount, error) {
			acc, err := kiro.ReadLocal(k.cacheDir)
			if err != nil {
				return nil, err
			}
			return []*models.KiroAccount{acc}, nil
		},
		startLogin: k.startLogin,
	}
	svc, err := newService(models.PlatformKiro, cfg.AccountsPath, kiroKey, h, opts)
	if err != nil {
		return nil, err
	}
	k.service = svc
	return k, nil
}

func kiroKey(a *models.KiroAccount) string {
	if a.UserID != "" {
		return a.UserID
	}
	return strings.ToLower(strings.TrimSpace(a.Email))
}

func (k *Kiro) refresh(ctx context.Context, acc *models.KiroAccount) error {
	now := k.opts.now()
	if acc.AccessToken != "" && acc.ExpiresAt > now.Add(kiroRefreshWindow).Unix() {
		return nil
	}
	if err := k.client.Refresh(ctx, acc); err != nil {
		acc.QuotaError = quotaError(err, now)
		return err
	}
	acc.QuotaError = nil
	return nil
}

// fromToken takes the refresh token of a social Kiro login.
func (k *Kiro) fromToken(ctx context.Context, token string) (*models.KiroAccount, error) {
	acc := &models.KiroAccount{RefreshToken: token}
	if err := k.client.Refresh(ctx, acc); err != nil {
		return nil, err
	}
	if acc.UserID == "" {
		return nil, errors.New("kiro did not report a profile for the token")
	}
	return acc, nil
}

func (k *Kiro) startLogin(ctx context.Context) (*login[*models.KiroAccount], error) {
	d, err := k.client.StartDevice(ctx)
	if err != nil {
		return nil, err
	}
	return &login[*models.KiroAccount]{
		start: models.LoginStart{
			URL:             d.VerificationURI,
			UserCode:        d.UserCode,
			ExpiresIn:       int(d.ExpiresIn.Seconds()),
			IntervalSeconds: int(d.Interval.Seconds()),
		},
		wait: func(ctx context.Context) (*models.KiroAccount, error) {
			acc, err := k.client.PollDevice(ctx, d)
			if err != nil {
				return nil, err
			}
			if acc.UserID == "" {
				acc.UserID = "builder-id:" + d.ClientID
			}
			return acc, nil
		},
	}, nil
}

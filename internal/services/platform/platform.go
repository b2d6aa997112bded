// Package platform is the backend boundary the account pages talk to. Each
// supported product gets one Service built from a generic account store, a
// pending-login registry and the product's auth and quota clients.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/services/oauth"
	"github.com/j-veylop/cockpit-tui/internal/services/store"
)

var (
	// ErrNotFound is returned for an account id the store does not hold.
	ErrNotFound = store.ErrNotFound
	// ErrUnsupported is returned by operations a platform does not offer.
	ErrUnsupported = errors.New("operation not supported for this platform")
	// ErrNoAccounts is returned when an import yields nothing usable.
	ErrNoAccounts = errors.New("no valid accounts found")
)

// Service is everything an account page can ask of a platform backend.
type Service interface {
	Platform() models.Platform
	ListAccounts(ctx context.Context) ([]models.Account, error)
	ActiveAccount() string
	Switch(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) error
	DeleteAccounts(ctx context.Context, ids []string) error
	RefreshAccount(ctx context.Context, id string) (models.Account, error)
	// RefreshAll returns how many accounts refreshed successfully.
	RefreshAll(ctx context.Context) (int, error)
	UpdateTags(ctx context.Context, id string, tags []string) (models.Account, error)
	ImportJSON(ctx context.Context, content string) ([]models.Account, error)
	ImportLocal(ctx context.Context) ([]models.Account, error)
	AddWithToken(ctx context.Context, token string) (models.Account, error)
	ExportJSON(ctx context.Context, ids []string) (string, error)
	StartLogin(ctx context.Context) (models.LoginStart, error)
	CompleteLogin(ctx context.Context, loginID string) (models.Account, error)
	CancelLogin(ctx context.Context, loginID string) error
	Events() <-chan store.Event
	Close() error
}

// Recorder keeps quota history. *db.DB implements it.
type Recorder interface {
	InsertQuotaSnapshots(ctx context.Context, snapshots []models.QuotaSnapshot) error
	DeleteAccountSnapshots(ctx context.Context, platform models.Platform, accountIDs ...string) error
}

// Options are shared by every platform constructor.
type Options struct {
	History Recorder
	Now     func() time.Time
	// RefreshConcurrency bounds RefreshAll. Defaults to 4.
	RefreshConcurrency int
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// login is what a platform returns when it starts an OAuth login.
type login[A models.Account] struct {
	wait    oauth.WaitFunc[A]
	cleanup func()
	start   models.LoginStart
}

// hooks are the platform specific parts of a service. Nil hooks make the
// matching operation return ErrUnsupported.
type hooks[A models.Account] struct {
	// refresh updates tokens and quota of acc in place. It records a quota
	// error on the account itself when the account type has one.
	refresh func(ctx context.Context, acc A) error
	// fromToken builds an account from a pasted credential.
	fromToken   func(ctx context.Context, token string) (A, error)
	importLocal func(ctx context.Context) ([]A, error)
	// parse overrides the default JSON import decoding.
	parse      func(data []byte) ([]A, error)
	startLogin func(ctx context.Context) (*login[A], error)
	// activate makes the account current in the product's own config.
	activate func(ctx context.Context, acc A) error
	// refreshOnAdd refreshes quota before a new account is stored.
	refreshOnAdd bool
}

type service[A models.Account] struct {
	store    *store.Store[A]
	logins   *oauth.Sessions[A]
	hooks    hooks[A]
	opts     Options
	platform models.Platform
}

func newService[A models.Account](p models.Platform, path string, key store.KeyFunc[A], h hooks[A], opts Options) (*service[A], error) {
	st, err := store.Open(path, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s accounts: %w", p, err)
	}
	if opts.RefreshConcurrency <= 0 {
		opts.RefreshConcurrency = 4
	}
	return &service[A]{
		store:    st,
		logins:   oauth.NewSessions[A](),
		hooks:    h,
		opts:     opts,
		platform: p,
	}, nil
}

func (s *service[A]) Platform() models.Platform { return s.platform }

func (s *service[A]) Events() <-chan store.Event { return s.store.Events() }

func (s *service[A]) ActiveAccount() string { return s.store.Active() }

func (s *service[A]) ListAccounts(_ context.Context) ([]models.Account, error) {
	return toAccounts(s.store.List()), nil
}

func (s *service[A]) Switch(ctx context.Context, id string) error {
	acc, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if s.hooks.activate != nil {
		if err := s.hooks.activate(ctx, acc); err != nil {
			return err
		}
	}
	return s.store.SetActive(id)
}

func (s *service[A]) DeleteAccount(ctx context.Context, id string) error {
	removed, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.forget(ctx, removed)
	return nil
}

func (s *service[A]) DeleteAccounts(ctx context.Context, ids []string) error {
	removed, err := s.store.Delete(ids...)
	if err != nil {
		return err
	}
	s.forget(ctx, removed)
	return nil
}

func (s *service[A]) forget(ctx context.Context, ids []string) {
	if s.opts.History == nil || len(ids) == 0 {
		return
	}
	if err := s.opts.History.DeleteAccountSnapshots(ctx, s.platform, ids...); err != nil {
		logger.Warn("failed to delete quota history", "platform", s.platform, "error", err)
	}
}

func (s *service[A]) RefreshAccount(ctx context.Context, id string) (models.Account, error) {
	if s.hooks.refresh == nil {
		return nil, ErrUnsupported
	}
	acc, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	refreshErr := s.hooks.refresh(ctx, acc)

	saved, err := s.store.Replace(acc)
	if err != nil {
		return nil, err
	}
	if refreshErr != nil {
		return saved, refreshErr
	}
	s.record(ctx, saved)
	return saved, nil
}

func (s *service[A]) RefreshAll(ctx context.Context) (int, error) {
	if s.hooks.refresh == nil {
		return 0, ErrUnsupported
	}

	var (
		mu     sync.Mutex
		ok     int
		failed []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.RefreshConcurrency)
	for _, id := range models.AccountIDs(s.store.List()) {
		g.Go(func() error {
			_, err := s.RefreshAccount(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("failed to refresh account", "platform", s.platform, "account", id, "error", err)
				failed = append(failed, fmt.Errorf("%s: %w", id, err))
				return nil
			}
			ok++
			return nil
		})
	}
	_ = g.Wait()

	return ok, errors.Join(failed...)
}

// record stores one snapshot per metric with known data.
func (s *service[A]) record(ctx context.Context, acc A) {
	if s.opts.History == nil {
		return
	}
	now := s.opts.now()
	p := presentation.Build(acc, presentation.Options{Now: now})

	var snaps []models.QuotaSnapshot
	for _, m := range p.QuotaItems {
		if m.QuotaClass == presentation.QuotaUnknown {
			continue
		}
		snaps = append(snaps, models.QuotaSnapshot{
			Timestamp:  now,
			Platform:   s.platform,
			AccountID:  acc.Meta().ID,
			MetricKey:  m.Key,
			Percentage: float64(m.Percentage),
		})
	}
	if len(snaps) == 0 {
		return
	}
	if err := s.opts.History.InsertQuotaSnapshots(ctx, snaps); err != nil {
		logger.Warn("failed to record quota history", "platform", s.platform, "error", err)
	}
}

func (s *service[A]) UpdateTags(_ context.Context, id string, tags []string) (models.Account, error) {
	return s.store.Update(id, func(acc A) error {
		acc.Meta().Tags = models.NormalizeTags(tags)
		return nil
	})
}

func (s *service[A]) ImportJSON(ctx context.Context, content string) ([]models.Account, error) {
	data := []byte(strings.TrimSpace(content))
	if len(data) == 0 {
		return nil, errors.New("import content is empty")
	}

	parse := s.hooks.parse
	if parse == nil {
		parse = parseAccounts[A]
	}
	accs, err := parse(data)
	if err != nil {
		return nil, err
	}
	return s.add(ctx, accs, false)
}

func (s *service[A]) ImportLocal(ctx context.Context) ([]models.Account, error) {
	if s.hooks.importLocal == nil {
		return nil, ErrUnsupported
	}
	accs, err := s.hooks.importLocal(ctx)
	if err != nil {
		return nil, err
	}
	return s.add(ctx, accs, s.hooks.refreshOnAdd)
}

func (s *service[A]) AddWithToken(ctx context.Context, token string) (models.Account, error) {
	if s.hooks.fromToken == nil {
		return nil, ErrUnsupported
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is empty")
	}
	acc, err := s.hooks.fromToken(ctx, token)
	if err != nil {
		return nil, err
	}
	added, err := s.add(ctx, []A{acc}, s.hooks.refreshOnAdd)
	if err != nil {
		return nil, err
	}
	return added[0], nil
}

// add stores accounts that carry an identity, optionally refreshing them
// first. Refresh failures are logged and do not block the import.
func (s *service[A]) add(ctx context.Context, accs []A, refresh bool) ([]models.Account, error) {
	valid := lo.Filter(accs, func(a A, _ int) bool {
		return !isNil(a) && strings.TrimSpace(a.Label()) != ""
	})
	if len(valid) == 0 {
		return nil, ErrNoAccounts
	}

	out := make([]models.Account, 0, len(valid))
	for _, acc := range valid {
		if refresh && s.hooks.refresh != nil {
			if err := s.hooks.refresh(ctx, acc); err != nil {
				logger.Warn("failed to refresh new account", "platform", s.platform, "account", acc.Label(), "error", err)
			}
		}
		saved, _, err := s.store.Upsert(acc)
		if err != nil {
			return out, err
		}
		if refresh {
			s.record(ctx, saved)
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *service[A]) ExportJSON(_ context.Context, ids []string) (string, error) {
	data, err := s.store.Export(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *service[A]) StartLogin(ctx context.Context) (models.LoginStart, error) {
	if s.hooks.startLogin == nil {
		return models.LoginStart{}, ErrUnsupported
	}
	l, err := s.hooks.startLogin(ctx)
	if err != nil {
		return models.LoginStart{}, err
	}
	start := l.start
	start.LoginID = s.logins.Start(l.wait, l.cleanup)
	logger.Info("login started", "platform", s.platform, "login", start.LoginID)
	return start, nil
}

func (s *service[A]) CompleteLogin(ctx context.Context, loginID string) (models.Account, error) {
	acc, err := s.logins.Complete(ctx, loginID)
	if err != nil {
		return nil, err
	}
	added, err := s.add(ctx, []A{acc}, s.hooks.refreshOnAdd)
	if err != nil {
		return nil, err
	}
	logger.Info("login completed", "platform", s.platform, "account", added[0].Meta().ID)
	return added[0], nil
}

func (s *service[A]) CancelLogin(_ context.Context, loginID string) error {
	s.logins.Cancel(loginID)
	return nil
}

func (s *service[A]) Close() error {
	s.logins.Close()
	return s.store.Close()
}

func toAccounts[A models.Account](accs []A) []models.Account {
	return lo.Map(accs, func(a A, _ int) models.Account { return a })
}

func quotaError(err error, now time.Time) *models.QuotaError {
	return &models.QuotaError{Message: err.Error(), Timestamp: now.Unix()}
}

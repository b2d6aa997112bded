// Package services wires the platform backends, the database and desktop
// notifications together for the TUI.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/cockpit-tui/internal/config"
	"github.com/j-veylop/cockpit-tui/internal/db"
	"github.com/j-veylop/cockpit-tui/internal/groups"
	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/prefs"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/services/codex"
	"github.com/j-veylop/cockpit-tui/internal/services/github"
	"github.com/j-veylop/cockpit-tui/internal/services/kiro"
	"github.com/j-veylop/cockpit-tui/internal/services/platform"
	"github.com/j-veylop/cockpit-tui/internal/services/quota"
	"github.com/j-veylop/cockpit-tui/internal/services/store"
)

// historyRetention is how long quota snapshots are kept.
const historyRetention = 30 * 24 * time.Hour

// Notification thresholds on the lowest remaining percentage of an account.
const (
	criticalPercent = 5
	resetJump       = 20
)

type (
	// AccountsChangedEvent is emitted when a platform's account list changes.
	AccountsChangedEvent struct {
		Platform models.Platform
		IDs      []string
		Type     store.EventType
	}

	// QuotaPolledEvent is emitted after a background refresh of one platform.
	QuotaPolledEvent struct {
		Error     error
		Platform  models.Platform
		Refreshed int
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (AccountsChangedEvent) isServiceEvent() {}
func (QuotaPolledEvent) isServiceEvent()     {}
func (ErrorEvent) isServiceEvent()           {}

// Notifier shows a desktop notification.
type Notifier func(title, body string) error

func beeepNotify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Manager owns every platform service and routes their events to subscribers.
type Manager struct {
	services       map[models.Platform]platform.Service
	database       *db.DB
	prefs          prefs.Store
	groups         *groups.Store
	notify         Notifier
	ctx            context.Context
	cancel         context.CancelFunc
	stopChan       chan struct{}
	subscribers    []chan<- ServiceEvent
	previousLowest map[string]int
	interval       time.Duration
	wg             sync.WaitGroup
	mu             sync.RWMutex
	closeOnce      sync.Once
}

// NewManager opens the database and every platform store and starts the
// background quota poll.
func NewManager(cfg *config.Config) (*Manager, error) {
	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		ctx:            ctx,
		cancel:         cancel,
		services:       make(map[models.Platform]platform.Service),
		database:       database,
		prefs:          prefs.NewSQLite(database),
		groups:         groups.NewStore(cfg.GroupSettingsPath()),
		notify:         beeepNotify,
		stopChan:       make(chan struct{}),
		previousLowest: make(map[string]int),
		interval:       cfg.QuotaRefreshInterval,
	}

	if err := m.openServices(cfg); err != nil {
		cancel()
		_ = m.closeServices()
		_ = database.Close()
		return nil, err
	}

	if n, err := database.CleanupOldSnapshots(ctx, time.Now().Add(-historyRetention)); err != nil {
		logger.Warn("failed to clean up quota history", "error", err)
	} else if n > 0 {
		logger.Info("cleaned up quota history", "rows", n)
	}

	for _, svc := range m.services {
		m.wg.Add(1)
		go m.routeEvents(svc)
	}
	if m.interval > 0 {
		m.wg.Add(1)
		go m.pollLoop()
	}
	return m, nil
}

func (m *Manager) openServices(cfg *config.Config) error {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	opts := platform.Options{History: m.database}
	gh := github.NewClient(httpClient, cfg.GitHubClientID)

	ag, err := platform.NewAntigravity(platform.AntigravityConfig{
		Quota: quota.New(quota.Config{
			HTTPClient:   httpClient,
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		}),
		AccountsPath: cfg.AccountsPath(string(models.PlatformAntigravity)),
		LocalPath:    cfg.AntigravityAccountsPath,
	}, opts)
	if err != nil {
		return err
	}
	m.services[models.PlatformAntigravity] = ag

	cx, err := platform.NewCodex(platform.CodexConfig{
		HTTPClient:   httpClient,
		Client:       codex.NewClient(httpClient),
		AccountsPath: cfg.AccountsPath(string(models.PlatformCodex)),
	}, opts)
	if err != nil {
		return err
	}
	m.services[models.PlatformCodex] = cx

	cp, err := platform.NewCopilot(platform.CopilotConfig{
		GitHub:       gh,
		AccountsPath: cfg.AccountsPath(string(models.PlatformCopilot)),
	}, opts)
	if err != nil {
		return err
	}
	m.services[models.PlatformCopilot] = cp

	ws, err := platform.NewWindsurf(platform.WindsurfConfig{
		GitHub:       gh,
		AccountsPath: cfg.AccountsPath(string(models.PlatformWindsurf)),
	}, opts)
	if err != nil {
		return err
	}
	m.services[models.PlatformWindsurf] = ws

	kr, err := platform.NewKiro(platform.KiroConfig{
		Client:       kiro.NewClient(httpClient),
		AccountsPath: cfg.AccountsPath(string(models.PlatformKiro)),
	}, opts)
	if err != nil {
		return err
	}
	m.services[models.PlatformKiro] = kr
	return nil
}

// routeEvents forwards store events of one platform to subscribers.
func (m *Manager) routeEvents(svc platform.Service) {
	defer m.wg.Done()
	events := svc.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleStoreEvent(svc.Platform(), ev)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleStoreEvent(p models.Platform, ev store.Event) {
	switch ev.Type {
	case store.EventError:
		m.broadcast(ErrorEvent{Service: string(p), Error: ev.Error})
		return
	case store.EventAdded:
		title := fmt.Sprintf("%s account added", p.Title())
		if err := m.notify(title, "The account is ready to use."); err != nil {
			logger.Debug("notification failed", "error", err)
		}
	}
	m.broadcast(AccountsChangedEvent{Platform: p, IDs: ev.IDs, Type: ev.Type})
}

func (m *Manager) pollLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.PollOnce(m.ctx)
		case <-m.stopChan:
			return
		}
	}
}

// PollOnce refreshes every platform and raises quota notifications.
func (m *Manager) PollOnce(ctx context.Context) {
	for _, svc := range m.Services() {
		n, err := svc.RefreshAll(ctx)
		if errors.Is(err, platform.ErrUnsupported) {
			continue
		}
		m.broadcast(QuotaPolledEvent{Platform: svc.Platform(), Refreshed: n, Error: err})

		accounts, lerr := svc.ListAccounts(ctx)
		if lerr != nil {
			continue
		}
		for _, acc := range accounts {
			m.checkNotifications(acc)
		}
	}
}

// checkNotifications notifies when an account drops below the critical
// percentage or jumps back up after a reset.
func (m *Manager) checkNotifications(acc models.Account) {
	lowest, ok := lowestPercent(presentation.Build(acc, presentation.Options{}))
	if !ok {
		return
	}
	key := string(acc.Platform()) + "/" + acc.Meta().ID

	m.mu.Lock()
	previous, seen := m.previousLowest[key]
	m.previousLowest[key] = lowest
	m.mu.Unlock()
	if !seen {
		return
	}

	var title, body string
	switch {
	case lowest < criticalPercent && previous >= criticalPercent:
		title = fmt.Sprintf("Critical quota: %s", acc.Label())
		body = fmt.Sprintf("%s quota is below %d%% (%d%%)", acc.Platform().Title(), criticalPercent, lowest)
	case lowest-previous > resetJump:
		title = fmt.Sprintf("Quota reset: %s", acc.Label())
		body = fmt.Sprintf("%s quota has been refreshed.", acc.Platform().Title())
	default:
		return
	}
	if err := m.notify(title, body); err != nil {
		logger.Debug("notification failed", "error", err)
	}
}

func lowestPercent(p presentation.AccountPresentation) (int, bool) {
	lowest, found := 101, false
	for _, item := range p.QuotaItems {
		if item.QuotaClass == presentation.QuotaUnknown {
			continue
		}
		lowest = min(lowest, item.Percentage)
		found = true
	}
	return lowest, found
}

// broadcast sends an event to all subscribers, skipping full channels.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ev
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Service returns the backend of one platform.
func (m *Manager) Service(p models.Platform) platform.Service {
	return m.services[p]
}

// Services returns every backend in tab order.
func (m *Manager) Services() []platform.Service {
	out := make([]platform.Service, 0, len(m.services))
	for _, p := range models.AllPlatforms {
		if svc, ok := m.services[p]; ok {
			out = append(out, svc)
		}
	}
	return out
}

// Prefs returns the persisted preference store.
func (m *Manager) Prefs() prefs.Store {
	return m.prefs
}

// Groups returns the Antigravity display group settings.
func (m *Manager) Groups() *groups.Store {
	return m.groups
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// QuotaHistory returns the recorded percentages of one account metric since a time.
func (m *Manager) QuotaHistory(ctx context.Context, p models.Platform, accountID, metricKey string, since time.Time) ([]models.QuotaSnapshot, error) {
	return m.database.GetQuotaHistory(ctx, p, accountID, metricKey, since)
}

func (m *Manager) closeServices() error {
	var errs []error
	for _, svc := range m.services {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops background work and closes every service and the database.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.cancel()
		close(m.stopChan)
		m.wg.Wait()

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		errs := []error{m.closeServices()}
		if m.database != nil {
			errs = append(errs, m.database.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}

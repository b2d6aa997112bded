package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cockpit-tui/internal/app"
	"github.com/j-veylop/cockpit-tui/internal/config"
	"github.com/j-veylop/cockpit-tui/internal/groups"
	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/pagestate"
	"github.com/j-veylop/cockpit-tui/internal/services"
	"github.com/j-veylop/cockpit-tui/internal/ui/tabs/accounts"
	"github.com/j-veylop/cockpit-tui/internal/ui/tabs/dashboard"
	"github.com/j-veylop/cockpit-tui/internal/ui/tabs/info"
)

// runTUI builds the tabs over the service manager and runs the program until
// the user quits.
func runTUI(cfg *config.Config, mgr *services.Manager) error {
	model := app.NewModel(mgr)
	state := model.GetState()

	pages := buildPages(cfg, mgr)
	tabs := make([]app.Tab, 0, app.TabCount)
	tabs = append(tabs, dashboard.New(state, pages))
	for _, page := range pages {
		tabs = append(tabs, accounts.New(page, historyFunc(mgr, page.Platform())))
	}
	tabs = append(tabs, info.New(state, cfg, countFunc(mgr)))
	model.SetTabs(tabs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		if _, ok := <-sigChan; ok {
			p.Send(tea.Quit())
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// buildPages creates one page per platform, in tab order.
func buildPages(cfg *config.Config, mgr *services.Manager) []*pagestate.Page {
	translator := i18n.New(cfg.Locale)
	pages := make([]*pagestate.Page, 0, len(models.AllPlatforms))
	for _, p := range models.AllPlatforms {
		svc := mgr.Service(p)
		if svc == nil {
			logger.Warn("platform service not available", "platform", p)
			continue
		}
		pc := pagestate.Config{
			Platform:       p,
			Service:        svc,
			Prefs:          mgr.Prefs(),
			Translator:     translator,
			SearchFields:   searchFields,
			DownloadsDir:   cfg.DownloadsDir,
			PrivacyDefault: cfg.PrivacyDefault,
		}
		if p == models.PlatformAntigravity {
			pc.Groups = displayGroups(mgr.Groups())
		}
		pages = append(pages, pagestate.New(pc))
	}
	return pages
}

// displayGroups reads the group settings on every presentation build so that
// edits to the settings file show up on the next reload.
func displayGroups(store *groups.Store) func() []groups.DisplayGroup {
	return func() []groups.DisplayGroup {
		dg, err := store.DisplayGroups()
		if err != nil {
			logger.Warn("failed to load display groups", "error", err)
			return nil
		}
		return dg
	}
}

// searchFields adds the identifiers besides the display name that the search
// box matches.
func searchFields(acc models.Account) []string {
	switch a := acc.(type) {
	case *models.AntigravityAccount:
		return []string{a.Name}
	case *models.CodexAccount:
		return []string{a.UserID, a.AccountID}
	case *models.CopilotAccount:
		return []string{a.GitHubLogin, a.GitHubName}
	case *models.WindsurfAccount:
		return []string{a.GitHubLogin, a.GitHubName}
	case *models.KiroAccount:
		return []string{a.UserID, a.LoginProvider}
	}
	return nil
}

func historyFunc(mgr *services.Manager, p models.Platform) accounts.HistoryFunc {
	return func(ctx context.Context, accountID, metricKey string, since time.Time) ([]models.QuotaSnapshot, error) {
		return mgr.QuotaHistory(ctx, p, accountID, metricKey, since)
	}
}

func countFunc(mgr *services.Manager) info.CountFunc {
	return func(ctx context.Context) (map[models.Platform]int, error) {
		counts := make(map[models.Platform]int)
		for _, svc := range mgr.Services() {
			list, err := svc.ListAccounts(ctx)
			if err != nil {
				return counts, err
			}
			counts[svc.Platform()] = len(list)
		}
		return counts, nil
	}
}

package accounts

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cockpit-tui/internal/app"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/pagestate"
)

const actionTimeout = 2 * time.Minute

// pageUpdatedMsg reports that a background page action finished.
type pageUpdatedMsg struct {
	platform models.Platform
}

// oauthPreparedMsg reports the end of PrepareOAuth.
type oauthPreparedMsg struct {
	platform models.Platform
	started  bool
}

// autoCloseMsg fires when a successful add may close the modal.
type autoCloseMsg struct {
	platform models.Platform
}

// historyLoadedMsg carries the quota history of the account under the cursor.
type historyLoadedMsg struct {
	err       error
	platform  models.Platform
	key       string
	snapshots []models.QuotaSnapshot
}

// loadCmd reads the account list and reports it to the app.
func loadCmd(page *pagestate.Page) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		err := page.Load(ctx)
		return app.AccountsLoadedMsg{Platform: page.Platform(), Err: err}
	}
}

// actionCmd runs fn against the page and reports completion.
func actionCmd(page *pagestate.Page, fn func(ctx context.Context)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		fn(ctx)
		return pageUpdatedMsg{platform: page.Platform()}
	}
}

func prepareOAuthCmd(page *pagestate.Page, retry bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		var started bool
		if retry {
			started = page.RetryOAuth(ctx)
		} else {
			started = page.PrepareOAuth(ctx)
		}
		return oauthPreparedMsg{platform: page.Platform(), started: started}
	}
}

// completeOAuthCmd waits for the backend to finish the login. The wait has no
// deadline of its own; closing or retrying the modal cancels the login.
func completeOAuthCmd(page *pagestate.Page) tea.Cmd {
	return func() tea.Msg {
		page.CompleteOAuth(context.Background())
		return pageUpdatedMsg{platform: page.Platform()}
	}
}

// autoCloseCmd fires shortly after the add status' close time.
func autoCloseCmd(platform models.Platform, closeAt time.Time) tea.Cmd {
	delay := time.Until(closeAt) + 50*time.Millisecond
	if delay < 0 {
		delay = 0
	}
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return autoCloseMsg{platform: platform}
	})
}

func historyCmd(fn HistoryFunc, platform models.Platform, key, accountID, metricKey string, since time.Time) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		snaps, err := fn(ctx, accountID, metricKey, since)
		return historyLoadedMsg{platform: platform, key: key, snapshots: snaps, err: err}
	}
}

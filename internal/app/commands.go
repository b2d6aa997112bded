package app

import (
	"context"
	"io"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"

	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/services"
)

const (
	housekeepingInterval = 2 * time.Second
	pollTimeout          = 2 * time.Minute
)

// Toast lifetimes.
const (
	QuickNotificationDuration   = 3 * time.Second
	DefaultNotificationDuration = 5 * time.Second
	LongNotificationDuration    = 10 * time.Second
)

func init() {
	// Anything printed by xdg-open would corrupt the alt screen.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// Swapped in tests.
var (
	writeClipboard = clipboard.WriteAll
	openBrowser    = browser.OpenURL
)

func housekeepingCmd() tea.Cmd {
	return tea.Tick(housekeepingInterval, func(t time.Time) tea.Msg { return TickMsg{Time: t} })
}

// pollCmd refreshes every platform once and reports when done.
func pollCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
		defer cancel()
		mgr.PollOnce(ctx)
		return PollDoneMsg{Time: time.Now()}
	}
}

func subscribeCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg { return SubscriptionEventMsg{Channel: ch} }
}

// nextEventCmd blocks on the subscription. A closed channel ends the loop.
func nextEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

func expireNotificationCmd(id string, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg { return RemoveNotificationMsg{ID: id} })
}

func notify(t NotificationType, message string) tea.Cmd {
	d := DefaultNotificationDuration
	switch t {
	case NotificationError:
		d = LongNotificationDuration
	case NotificationInfo:
		d = QuickNotificationDuration
	}
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

func copyToClipboardCmd(text, label string) tea.Cmd {
	return func() tea.Msg {
		if err := writeClipboard(text); err != nil {
			logger.Warn("failed to copy to clipboard", "error", err)
			return AddNotificationMsg{Type: NotificationError, Message: "Copy failed: " + err.Error(), Duration: DefaultNotificationDuration}
		}
		if label == "" {
			label = "Copied to clipboard"
		}
		return AddNotificationMsg{Type: NotificationSuccess, Message: label, Duration: QuickNotificationDuration}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		if err := openBrowser(url); err != nil {
			logger.Warn("failed to open url", "url", url, "error", err)
			return AddNotificationMsg{Type: NotificationWarning, Message: "Could not open " + url, Duration: DefaultNotificationDuration}
		}
		return nil
	}
}

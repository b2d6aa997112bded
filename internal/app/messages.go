package app

import (
	"time"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services"
)

// Root model housekeeping.
type (
	// TickMsg drives toast expiry.
	TickMsg struct{ Time time.Time }

	// PollDoneMsg ends a ctrl+r poll across all platforms.
	PollDoneMsg struct{ Time time.Time }

	// SubscriptionEventMsg hands over the channel from Manager.Subscribe.
	SubscriptionEventMsg struct {
		Channel chan services.ServiceEvent
	}

	// ServiceEventMsg carries one manager event. It is broadcast to every
	// tab, visible or not.
	ServiceEventMsg struct {
		Event services.ServiceEvent
	}
)

// Requests tabs send to the root model.
type (
	// AccountsLoadedMsg is sent by a platform tab after listing its accounts.
	AccountsLoadedMsg struct {
		Err      error
		Platform models.Platform
	}

	AddNotificationMsg struct {
		Message  string
		Type     NotificationType
		Duration time.Duration
	}

	RemoveNotificationMsg struct{ ID string }

	// ErrorMsg becomes an error toast, prefixed with Context when set.
	ErrorMsg struct {
		Error   error
		Context string
	}

	TabSwitchMsg struct{ Tab TabID }

	// CopyToClipboardMsg copies Text and toasts Label on success.
	CopyToClipboardMsg struct {
		Text  string
		Label string
	}

	// OpenURLMsg opens a URL or a local directory with the desktop handler.
	OpenURLMsg struct{ URL string }
)

// Package app is the root Bubble Tea model: tab routing, global keys and
// the toast layer shared by every tab.
package app

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NotificationType selects the color and prefix of a toast.
type NotificationType int

const (
	NotificationSuccess NotificationType = iota
	NotificationError
	NotificationWarning
	NotificationInfo
)

const maxNotifications = 10

var notificationNames = map[NotificationType]string{
	NotificationSuccess: "success",
	NotificationError:   "error",
	NotificationWarning: "warning",
	NotificationInfo:    "info",
}

func (n NotificationType) String() string {
	if s, ok := notificationNames[n]; ok {
		return s
	}
	return "unknown"
}

// Notification is one toast. A zero Duration keeps it until removed.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
}

func (n Notification) expired(now time.Time) bool {
	return n.Duration > 0 && now.Sub(n.CreatedAt) > n.Duration
}

// State is shared by the root model and the tabs: pending work, the busy
// line and toasts. It is safe for concurrent use.
type State struct {
	mu            sync.RWMutex
	lastPolled    time.Time
	pending       map[string]struct{}
	busy          string
	notifications []Notification
}

// NewState starts with the initial account load pending.
func NewState() *State {
	return &State{pending: map[string]struct{}{"initial": {}}}
}

// SetLoading marks a named piece of work as running or finished.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		s.pending[resource] = struct{}{}
	} else {
		delete(s.pending, resource)
	}
}

func (s *State) IsLoading(resource string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[resource]
	return ok
}

func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending) > 0
}

// MarkPolled records the end of a quota poll.
func (s *State) MarkPolled(t time.Time) {
	s.mu.Lock()
	s.lastPolled = t
	s.mu.Unlock()
}

func (s *State) GetLastPolled() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPolled
}

// SetBusy shows a spinner toast with text until ClearBusy.
func (s *State) SetBusy(text string) {
	s.mu.Lock()
	s.busy = text
	s.mu.Unlock()
}

func (s *State) ClearBusy() {
	s.SetBusy("")
}

// Busy returns the spinner toast text, or "" when idle.
func (s *State) Busy() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// AddNotification queues a toast and returns its id. Only the newest
// maxNotifications are kept.
func (s *State) AddNotification(typ NotificationType, message string, d time.Duration) string {
	n := Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  d,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	if over := len(s.notifications) - maxNotifications; over > 0 {
		s.notifications = slices.Delete(s.notifications, 0, over)
	}
	return n.ID
}

func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool { return n.ID == id })
}

// ClearExpiredNotifications drops toasts whose duration has passed.
func (s *State) ClearExpiredNotifications() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool { return n.expired(now) })
}

// GetNotifications returns a copy of the toasts that have not expired.
func (s *State) GetNotifications() []Notification {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.expired(now) {
			out = append(out, n)
		}
	}
	return out
}

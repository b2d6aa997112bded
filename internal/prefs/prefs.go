// Package prefs persists small UI preferences such as the current account
// of each platform and the privacy toggle.
package prefs

import (
	"context"
	"strconv"
	"sync"

	"github.com/j-veylop/cockpit-tui/internal/db"
	"github.com/j-veylop/cockpit-tui/internal/logger"
)

// Well-known keys.
const (
	KeyPrivacyMode = "privacy_mode"
)

// CurrentAccountKey is the key holding the current account id of a platform.
func CurrentAccountKey(platform string) string {
	return platform + ".current_account_id"
}

// FlowNoticeKey is the key holding the collapsed state of a platform's flow notice.
func FlowNoticeKey(platform string) string {
	return platform + ".flow_notice_collapsed"
}

// Store is a string key/value store. Implementations swallow nothing: callers
// decide whether a failed write matters.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// GetBool reads a boolean preference, falling back when unset or unparsable.
func GetBool(s Store, key string, fallback bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// SetBool writes a boolean preference.
func SetBool(s Store, key string, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

// SQLite stores preferences in the application database.
type SQLite struct {
	db *db.DB
}

// NewSQLite returns a store over an open database.
func NewSQLite(database *db.DB) *SQLite {
	return &SQLite{db: database}
}

// Get returns a preference. Read failures are logged and reported as unset.
func (s *SQLite) Get(key string) (string, bool) {
	v, ok, err := s.db.GetPreference(context.Background(), key)
	if err != nil {
		logger.Warn("failed to read preference", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

// Set writes a preference.
func (s *SQLite) Set(key, value string) error {
	return s.db.SetPreference(context.Background(), key, value)
}

// Remove deletes a preference.
func (s *SQLite) Remove(key string) error {
	return s.db.DeletePreference(context.Background(), key)
}

// Memory is an in-process store, used when no database is available.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Package store keeps a per-platform account index in a JSON file, reloading
// it when another process rewrites the file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/j-veylop/cockpit-tui/internal/fsutil"
	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// ErrNotFound is returned when no account has the requested id.
var ErrNotFound = errors.New("account not found")

const fileVersion = 1

// File is the on-disk structure of an account index.
type File[A models.Account] struct {
	ActiveAccount string `json:"activeAccount,omitempty"`
	Accounts      []A    `json:"accounts"`
	Version       int    `json:"version"`
}

// EventType defines the type of store event.
type EventType int

const (
	EventLoaded EventType = iota
	EventChanged
	EventAdded
	EventUpdated
	EventDeleted
	EventActiveChanged
	EventError
)

// Event is emitted after every change to the index.
type Event struct {
	Error error
	IDs   []string
	Type  EventType
}

// KeyFunc returns the identity used to de-duplicate accounts, usually an
// email or a remote user id. Empty keys never match.
type KeyFunc[A models.Account] func(A) string

// Store is a file-backed account index for one platform.
type Store[A models.Account] struct {
	debounceTimer *time.Timer
	watcher       *fsnotify.Watcher
	onChange      func()
	key           KeyFunc[A]
	eventChan     chan Event
	stopChan      chan struct{}
	filePath      string
	activeAccount string
	accounts      []A
	mu            sync.RWMutex
	closeOnce     sync.Once
}

// Open loads the index at path, creating an empty one if it does not exist,
// and starts watching it.
func Open[A models.Account](path string, key KeyFunc[A]) (*Store[A], error) {
	s := &Store[A]{
		filePath:  path,
		key:       key,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load accounts: %w", err)
		}
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("failed to create accounts file: %w", err)
		}
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventLoaded})
	return s, nil
}

// Path returns the index file path.
func (s *Store[A]) Path() string {
	return s.filePath
}

// Events returns the event channel.
func (s *Store[A]) Events() <-chan Event {
	return s.eventChan
}

// SetOnChange registers a callback run after external file changes are reloaded.
func (s *Store[A]) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// List returns copies of all accounts in insertion order.
func (s *Store[A]) List() []A {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]A, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, clone(acc))
	}
	return out
}

// Get returns a copy of the account with the id.
func (s *Store[A]) Get(id string) (A, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return clone(s.accounts[i]), nil
	}
	var zero A
	return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Count returns the number of accounts.
func (s *Store[A]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Active returns the id of the active account, or "".
func (s *Store[A]) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeAccount
}

// SetActive marks an account as active and stamps its last use.
func (s *Store[A]) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	prevActive := s.activeAccount
	prevUsed := s.accounts[i].Meta().LastUsed
	s.activeAccount = id
	s.accounts[i].Meta().LastUsed = time.Now().Unix()

	if err := s.save(); err != nil {
		s.activeAccount = prevActive
		s.accounts[i].Meta().LastUsed = prevUsed
		return fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventActiveChanged, IDs: []string{id}})
	return nil
}

// Upsert inserts the account, or replaces the existing one with the same id
// or identity key. The stored copy keeps the existing id and creation time,
// and the existing tags unless acc carries its own. It reports whether the
// account was new.
func (s *Store[A]) Upsert(acc A) (A, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc = clone(acc)
	meta := acc.Meta()

	i := s.indexOf(meta.ID)
	if i < 0 && s.key != nil {
		if k := s.key(acc); k != "" {
			i = slices.IndexFunc(s.accounts, func(existing A) bool { return s.key(existing) == k })
		}
	}

	if i >= 0 {
		prev := s.accounts[i]
		old := prev.Meta()
		meta.ID = old.ID
		meta.CreatedAt = old.CreatedAt
		if meta.Tags == nil {
			meta.Tags = old.Tags
		}
		meta.Tags = models.NormalizeTags(meta.Tags)
		if meta.LastUsed == 0 {
			meta.LastUsed = old.LastUsed
		}
		s.accounts[i] = acc
		if err := s.save(); err != nil {
			s.accounts[i] = prev
			var zero A
			return zero, false, fmt.Errorf("failed to save accounts: %w", err)
		}
		s.sendEvent(Event{Type: EventUpdated, IDs: []string{meta.ID}})
		return clone(acc), false, nil
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt == 0 {
		meta.CreatedAt = time.Now().Unix()
	}
	meta.Tags = models.NormalizeTags(meta.Tags)

	s.accounts = append(s.accounts, acc)
	if len(s.accounts) == 1 && s.activeAccount == "" {
		s.activeAccount = meta.ID
	}

	if err := s.save(); err != nil {
		s.accounts = s.accounts[:len(s.accounts)-1]
		var zero A
		return zero, false, fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventAdded, IDs: []string{meta.ID}})
	return clone(acc), true, nil
}

// Replace overwrites a stored account with acc, keeping the stored creation
// time and tags. It fails with ErrNotFound when the id is gone.
func (s *Store[A]) Replace(acc A) (A, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero A
	acc = clone(acc)
	meta := acc.Meta()
	i := s.indexOf(meta.ID)
	if i < 0 {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, meta.ID)
	}

	prev := s.accounts[i]
	meta.CreatedAt = prev.Meta().CreatedAt
	meta.Tags = prev.Meta().Tags
	s.accounts[i] = acc
	if err := s.save(); err != nil {
		s.accounts[i] = prev
		return zero, fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventUpdated, IDs: []string{meta.ID}})
	return clone(acc), nil
}

// Update applies fn to a copy of the account and stores the result when fn
// returns nil. The id cannot be changed.
func (s *Store[A]) Update(id string, fn func(A) error) (A, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero A
	i := s.indexOf(id)
	if i < 0 {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := clone(s.accounts[i])
	if err := fn(next); err != nil {
		return zero, err
	}
	next.Meta().ID = id

	prev := s.accounts[i]
	s.accounts[i] = next
	if err := s.save(); err != nil {
		s.accounts[i] = prev
		return zero, fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventUpdated, IDs: []string{id}})
	return clone(next), nil
}

// Delete removes accounts by id and returns the ids that existed. Missing ids
// are skipped.
func (s *Store[A]) Delete(ids ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.accounts
	prevActive := s.activeAccount

	var removed []string
	kept := make([]A, 0, len(s.accounts))
	for _, acc := range s.accounts {
		if slices.Contains(ids, acc.Meta().ID) {
			removed = append(removed, acc.Meta().ID)
			continue
		}
		kept = append(kept, acc)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	s.accounts = kept
	if slices.Contains(removed, s.activeAccount) {
		s.activeAccount = ""
		if len(kept) > 0 {
			s.activeAccount = kept[0].Meta().ID
		}
	}

	if err := s.save(); err != nil {
		s.accounts = prev
		s.activeAccount = prevActive
		return nil, fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventDeleted, IDs: removed})
	return removed, nil
}

// Export returns the indented JSON of the selected accounts, in index order.
func (s *Store[A]) Export(ids []string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := make([]A, 0, len(ids))
	for _, acc := range s.accounts {
		if slices.Contains(ids, acc.Meta().ID) {
			selected = append(selected, acc)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: none of %d ids", ErrNotFound, len(ids))
	}
	return json.MarshalIndent(selected, "", "  ")
}

func (s *Store[A]) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.accounts, func(acc A) bool { return acc.Meta().ID == id })
}

// parse accepts the index format and a bare account array.
func parse[A models.Account](data []byte) ([]A, string, error) {
	var file File[A]
	if err := json.Unmarshal(data, &file); err == nil && file.Accounts != nil {
		return file.Accounts, file.ActiveAccount, nil
	}

	var accounts []A
	if err := json.Unmarshal(data, &accounts); err == nil {
		return accounts, "", nil
	}

	var empty map[string]any
	if err := json.Unmarshal(data, &empty); err == nil {
		return nil, "", nil
	}
	return nil, "", errors.New("failed to parse accounts file: invalid format")
}

// load reads the file. Callers hold the write lock or own s exclusively.
func (s *Store[A]) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	accounts, active, err := parse[A](data)
	if err != nil {
		return err
	}

	accounts = slices.DeleteFunc(accounts, func(acc A) bool {
		return isNil(acc) || acc.Meta().ID == ""
	})
	if active != "" && slices.IndexFunc(accounts, func(acc A) bool { return acc.Meta().ID == active }) < 0 {
		active = ""
	}

	s.accounts = accounts
	s.activeAccount = active
	return nil
}

// save writes the file. Callers hold the write lock.
func (s *Store[A]) save() error {
	accounts := s.accounts
	if accounts == nil {
		accounts = []A{}
	}
	return fsutil.WriteJSON(s.filePath, File[A]{
		Accounts:      accounts,
		ActiveAccount: s.activeAccount,
		Version:       fileVersion,
	}, 0o600)
}

func (s *Store[A]) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory to catch atomic renames.
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

func (s *Store[A]) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			s.mu.Lock()
			if s.debounceTimer != nil {
				s.debounceTimer.Stop()
			}
			s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
			s.mu.Unlock()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

func (s *Store[A]) handleFileChange() {
	s.mu.Lock()
	err := s.load()
	onChange := s.onChange
	s.mu.Unlock()

	if err != nil {
		if !os.IsNotExist(err) {
			s.sendEvent(Event{Type: EventError, Error: err})
		}
		return
	}

	s.sendEvent(Event{Type: EventChanged})
	if onChange != nil {
		onChange()
	}
}

// sendEvent never blocks; when the channel is full the oldest event is dropped.
func (s *Store[A]) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the watcher.
func (s *Store[A]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()

		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

// isNil reports a null entry decoded from the file.
func isNil[A models.Account](acc A) bool {
	v := reflect.ValueOf(acc)
	return !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil())
}

// clone deep-copies an account through its JSON form so callers never share
// maps with the index.
func clone[A models.Account](acc A) A {
	data, err := json.Marshal(acc)
	if err != nil {
		logger.Error("failed to clone account", "error", err)
		return acc
	}
	var out A
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Error("failed to clone account", "error", err)
		return acc
	}
	return out
}

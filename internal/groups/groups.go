// Package groups manages the user-defined model groups that fold several
// Antigravity model quotas into one displayed figure.
package groups

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/cockpit-tui/internal/fsutil"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// MaxDisplayGroups caps how many groups an account card shows.
const MaxDisplayGroups = 3

// DisplayGroup is one named bucket of model identifiers.
type DisplayGroup struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// Settings is the persisted group configuration.
type Settings struct {
	GroupMappings map[string]string `json:"group_mappings"`
	GroupNames    map[string]string `json:"group_names"`
	GroupOrder    []string          `json:"group_order"`
	UpdatedAt     int64             `json:"updated_at"`
}

func newSettings() *Settings {
	return &Settings{
		GroupMappings: map[string]string{},
		GroupNames:    map[string]string{},
	}
}

// SetModelGroup assigns a model to a group.
func (s *Settings) SetModelGroup(modelID, groupID string) {
	s.GroupMappings[modelID] = groupID
	if !slices.Contains(s.GroupOrder, groupID) {
		s.GroupOrder = append(s.GroupOrder, groupID)
	}
}

// RemoveModelGroup unassigns a model.
func (s *Settings) RemoveModelGroup(modelID string) {
	delete(s.GroupMappings, modelID)
}

// SetGroupName renames a group.
func (s *Settings) SetGroupName(groupID, name string) {
	s.GroupNames[groupID] = name
}

// DeleteGroup removes a group with its name, order slot and model mappings.
func (s *Settings) DeleteGroup(groupID string) {
	for model, gid := range s.GroupMappings {
		if gid == groupID {
			delete(s.GroupMappings, model)
		}
	}
	delete(s.GroupNames, groupID)
	s.GroupOrder = slices.DeleteFunc(s.GroupOrder, func(id string) bool { return id == groupID })
}

// SetGroupOrder replaces the display order.
func (s *Settings) SetGroupOrder(order []string) {
	s.GroupOrder = lo.Uniq(order)
}

// GroupName returns the configured name, or the id itself.
func (s *Settings) GroupName(groupID string) string {
	if name := s.GroupNames[groupID]; name != "" {
		return name
	}
	return groupID
}

// ModelsInGroup lists the models mapped to a group, sorted.
func (s *Settings) ModelsInGroup(groupID string) []string {
	out := make([]string, 0)
	for model, gid := range s.GroupMappings {
		if gid == groupID {
			out = append(out, model)
		}
	}
	slices.Sort(out)
	return out
}

// OrderedGroups returns groups that own at least one model: explicit order
// first, the rest alphabetically. limit <= 0 means no limit.
func (s *Settings) OrderedGroups(limit int) []string {
	used := lo.Uniq(lo.Values(s.GroupMappings))
	ordered := lo.Filter(s.GroupOrder, func(id string, _ int) bool {
		return slices.Contains(used, id)
	})
	rest := lo.Filter(used, func(id string, _ int) bool {
		return !slices.Contains(ordered, id)
	})
	slices.Sort(rest)
	ordered = append(ordered, rest...)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}

// DisplayGroups resolves the ordered groups into display buckets.
func (s *Settings) DisplayGroups(limit int) []DisplayGroup {
	return lo.Map(s.OrderedGroups(limit), func(id string, _ int) DisplayGroup {
		return DisplayGroup{ID: id, Name: s.GroupName(id), Models: s.ModelsInGroup(id)}
	})
}

// CalculateGroupQuota averages the remaining percentage of the group's models
// present in quota. Nil when none is present.
func CalculateGroupQuota(modelIDs []string, quota *models.AntigravityQuota) *float64 {
	var values []float64
	for _, id := range modelIDs {
		if m, ok := quota.Model(id); ok {
			values = append(values, m.Percentage)
		}
	}
	if len(values) == 0 {
		return nil
	}
	avg := lo.Sum(values) / float64(len(values))
	return &avg
}

// Store persists Settings as a JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the settings, returning empty settings if the file is missing.
func (st *Store) Load() (*Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.loadLocked()
}

func (st *Store) loadLocked() (*Settings, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return newSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read group settings: %w", err)
	}

	s := newSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse group settings: %w", err)
	}
	if s.GroupMappings == nil {
		s.GroupMappings = map[string]string{}
	}
	if s.GroupNames == nil {
		s.GroupNames = map[string]string{}
	}
	return s, nil
}

// Update applies fn to the current settings and saves the result.
func (st *Store) Update(fn func(*Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.loadLocked()
	if err != nil {
		return err
	}
	fn(s)
	s.UpdatedAt = time.Now().UnixMilli()
	return fsutil.WriteJSON(st.path, s, 0o600)
}

// DisplayGroups loads the settings and returns at most MaxDisplayGroups groups.
func (st *Store) DisplayGroups() ([]DisplayGroup, error) {
	s, err := st.Load()
	if err != nil {
		return nil, err
	}
	return s.DisplayGroups(MaxDisplayGroups), nil
}

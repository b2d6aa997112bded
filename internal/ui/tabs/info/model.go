// Package info provides the info tab: storage paths, settings, account
// counts and build information.
package info

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cockpit-tui/internal/app"
	"github.com/j-veylop/cockpit-tui/internal/config"
	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services"
)

const countTimeout = 10 * time.Second

// CountFunc returns the number of stored accounts per platform.
type CountFunc func(ctx context.Context) (map[models.Platform]int, error)

// countsMsg carries fresh account counts.
type countsMsg struct {
	err    error
	counts map[models.Platform]int
}

// keyMap defines the key bindings specific to the info tab.
type keyMap struct {
	Refresh key.Binding
	Copy    key.Binding
	Open    key.Binding
	Up      key.Binding
	Down    key.Binding
}

// defaultKeyMap returns the default key bindings for the info tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "recount"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy path"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open folder"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
	}
}

// pathRow is one copyable path of the configuration card.
type pathRow struct {
	label string
	path  string
	dir   bool
}

// Model represents the info tab state.
type Model struct {
	state    *app.State
	config   *config.Config
	count    CountFunc
	counts   map[models.Platform]int
	countErr error
	selected int
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model
}

// New creates a new info model. count may be nil.
func New(state *app.State, cfg *config.Config, count CountFunc) *Model {
	return &Model{
		state:    state,
		config:   cfg,
		count:    count,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init loads the account counts.
func (m *Model) Init() tea.Cmd {
	return m.countCmd()
}

func (m *Model) countCmd() tea.Cmd {
	if m.count == nil {
		return nil
	}
	count := m.count
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
		defer cancel()
		counts, err := count(ctx)
		if err != nil {
			logger.Warn("failed to count accounts", "error", err)
		}
		return countsMsg{counts: counts, err: err}
	}
}

// Capturing is always false; the info tab has no text input.
func (m *Model) Capturing() bool {
	return false
}

// Update handles messages for the info tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case countsMsg:
		m.countErr = msg.err
		if msg.counts != nil {
			m.counts = msg.counts
		}
		return m, nil

	case app.AccountsLoadedMsg:
		return m, m.countCmd()

	case app.ServiceEventMsg:
		if _, ok := msg.Event.(services.AccountsChangedEvent); ok {
			return m, m.countCmd()
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	rows := m.paths()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(rows)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Refresh):
		return m.countCmd()
	case key.Matches(msg, m.keys.Copy):
		if m.selected < len(rows) {
			row := rows[m.selected]
			return func() tea.Msg {
				return app.CopyToClipboardMsg{Text: row.path, Label: "Copied " + row.label + " path"}
			}
		}
	case key.Matches(msg, m.keys.Open):
		if m.selected < len(rows) {
			row := rows[m.selected]
			target := row.path
			if !row.dir {
				target = filepath.Dir(target)
			}
			return func() tea.Msg { return app.OpenURLMsg{URL: target} }
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// paths lists the storage locations in display order.
func (m *Model) paths() []pathRow {
	if m.config == nil {
		return nil
	}
	rows := []pathRow{
		{label: "Data", path: m.config.DataDir, dir: true},
		{label: "Database", path: m.config.DatabasePath},
		{label: "Log", path: m.config.LogPath},
		{label: "Downloads", path: m.config.DownloadsDir, dir: true},
		{label: "Display groups", path: m.config.GroupSettingsPath()},
	}
	for _, p := range models.AllPlatforms {
		rows = append(rows, pathRow{label: p.Title(), path: m.config.AccountsPath(string(p))})
	}
	if m.config.AntigravityAccountsPath != "" {
		rows = append(rows, pathRow{label: "Antigravity import", path: m.config.AntigravityAccountsPath})
	}
	return rows
}

// SetSize sets the available size for the info tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.Copy,
		m.keys.Open,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down},
		{m.keys.Copy, m.keys.Open, m.keys.Refresh},
	}
}

// Package dashboard provides the overview tab: one card per platform with its
// account count and the quota of its current account.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/j-veylop/cockpit-tui/internal/app"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/pagestate"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/ui/components"
)

const (
	refreshTimeout    = 2 * time.Minute
	animationDuration = 1.5 // seconds
	maxBars           = 3
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the overview tab.
type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	First   key.Binding
	Last    key.Binding
	Open    key.Binding
	Refresh key.Binding
}

// defaultKeyMap returns the default key bindings for the overview tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next platform"),
		),
		Prev: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev platform"),
		),
		First: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first platform"),
		),
		Last: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last platform"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open platform"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh platform"),
		),
	}
}

// AnimationState tracks the state of an animation.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// summary is what a platform card shows.
type summary struct {
	item     *pagestate.Item
	platform models.Platform
	count    int
	loaded   bool
	// fallback is set when no current account is chosen and the card shows
	// the account with the lowest quota instead.
	fallback   bool
	refreshing bool
}

// Model represents the overview tab state.
type Model struct {
	state          *app.State
	pages          []*pagestate.Page
	animations     map[string]*AnimationState
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	width          int
	height         int
	selectedIndex  int
	animationFrame int
	ticking        bool
}

// New creates a new overview model over the platform pages, in tab order.
func New(state *app.State, pages []*pagestate.Page) *Model {
	return &Model{
		state:      state,
		pages:      pages,
		spinner:    components.NewSpinner("Loading accounts..."),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.ticking = true
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Capturing is always false; the overview has no text input.
func (m *Model) Capturing() bool {
	return false
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case animationTickMsg:
		m.ticking = false
		return m, m.handleAnimationTick(msg)

	case app.AccountsLoadedMsg, app.ServiceEventMsg, app.PollDoneMsg:
		m.syncAnimationTargets(time.Now())
		return m, m.ensureTicking()

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) ensureTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return animationTickCmd()
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	m.animationFrame++
	now := time.Time(msg)

	_, pending := m.syncAnimationTargets(now)
	animating := m.stepAnimations(now)

	refreshing := lo.SomeBy(m.pages, (*pagestate.Page).RefreshingAll)
	if animating || pending || refreshing {
		return m.ensureTicking()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	n := len(m.pages)
	if n == 0 {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.selectedIndex = (m.selectedIndex + 1) % n
	case key.Matches(msg, m.keys.Prev):
		m.selectedIndex = (m.selectedIndex - 1 + n) % n
	case key.Matches(msg, m.keys.First):
		m.selectedIndex = 0
	case key.Matches(msg, m.keys.Last):
		m.selectedIndex = n - 1
	case key.Matches(msg, m.keys.Open):
		tab := app.TabFor(m.pages[m.selectedIndex].Platform())
		return func() tea.Msg { return app.TabSwitchMsg{Tab: tab} }
	case key.Matches(msg, m.keys.Refresh):
		return tea.Batch(refreshCmd(m.pages[m.selectedIndex]), m.ensureTicking())
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// refreshCmd refreshes every account of a page and reports the reload to all
// tabs.
func refreshCmd(page *pagestate.Page) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		page.RefreshAll(ctx)
		return app.AccountsLoadedMsg{Platform: page.Platform()}
	}
}

// SetSize sets the available size for the overview.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// summarize picks the account a platform card shows: the current account,
// or the one with the lowest quota when none is current.
func summarize(page *pagestate.Page) summary {
	s := summary{
		platform:   page.Platform(),
		loaded:     page.Loaded(),
		refreshing: page.RefreshingAll(),
	}
	accounts := page.Accounts()
	s.count = len(accounts)

	current := page.CurrentID()
	var lowest *float64
	for _, acc := range accounts {
		id := acc.Meta().ID
		pres, _ := page.Presentation(id)
		item := pagestate.Item{Account: acc, Presentation: pres}
		if id == current {
			s.item, s.fallback = &item, false
			return s
		}
		v := pagestate.LowestQuota(acc, pres)
		if s.item == nil || (v != nil && (lowest == nil || *v < *lowest)) {
			s.item, s.fallback, lowest = &item, true, v
		}
	}
	return s
}

// bars returns the metrics shown on a card.
func bars(pres presentation.AccountPresentation) []presentation.QuotaMetric {
	return pres.QuotaItems[:min(len(pres.QuotaItems), maxBars)]
}

func animationKey(p models.Platform, metricKey string) string {
	return string(p) + ":" + metricKey
}

// syncAnimationTargets points every bar animation at its card's current
// value. pending is set while a page has not loaded yet.
func (m *Model) syncAnimationTargets(now time.Time) (animating, pending bool) {
	for _, page := range m.pages {
		s := summarize(page)
		if !s.loaded {
			pending = true
			continue
		}
		if s.item == nil {
			continue
		}
		for _, metric := range bars(s.item.Presentation) {
			if metric.QuotaClass == presentation.QuotaUnknown {
				continue
			}
			if m.updateAnimationState(animationKey(s.platform, metric.Key), float64(metric.Percentage), now) {
				animating = true
			}
		}
	}
	return animating, pending
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	if target < 0 {
		return false
	}

	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

// stepAnimations eases every bar toward its target and reports whether any
// is still moving.
func (m *Model) stepAnimations(now time.Time) bool {
	moving := false
	for _, state := range m.animations {
		if state.CurrentPercent == state.TargetPercent {
			continue
		}
		elapsed := now.Sub(state.StartTime).Seconds()
		if elapsed >= animationDuration {
			state.CurrentPercent = state.TargetPercent
			continue
		}
		progress := max(elapsed, 0) / animationDuration
		ease := 1.0 - (1.0-progress)*(1.0-progress)
		state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
		moving = true
	}
	return moving
}

// animatedPercent is the value a bar currently shows.
func (m *Model) animatedPercent(p models.Platform, metric presentation.QuotaMetric) float64 {
	if state, ok := m.animations[animationKey(p, metric.Key)]; ok {
		return state.CurrentPercent
	}
	return float64(metric.Percentage)
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.Next,
		m.keys.Open,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Next, m.keys.Prev},
		{m.keys.First, m.keys.Last},
		{m.keys.Open, m.keys.Refresh},
	}
}

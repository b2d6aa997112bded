package app

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/services"
	"github.com/j-veylop/cockpit-tui/internal/ui/styles"
)

// TabID is the position of a tab in the navbar. The overview comes first,
// then one tab per platform in models.AllPlatforms order, then info.
type TabID int

// TabOverview is the ID of the cross-platform overview tab.
const TabOverview TabID = 0

// TabInfo is the ID of the info tab.
var TabInfo = TabID(len(models.AllPlatforms) + 1)

// TabCount is the number of tabs.
var TabCount = int(TabInfo) + 1

// TabFor returns the tab of a platform.
func TabFor(p models.Platform) TabID {
	for i, q := range models.AllPlatforms {
		if q == p {
			return TabID(i + 1)
		}
	}
	return TabOverview
}

// Platform returns the platform shown by a tab.
func (t TabID) Platform() (models.Platform, bool) {
	if t <= TabOverview || t >= TabInfo {
		return "", false
	}
	return models.AllPlatforms[t-1], true
}

func (t TabID) String() string {
	if p, ok := t.Platform(); ok {
		return p.Title()
	}
	switch t {
	case TabOverview:
		return "Overview"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab is one page of the navbar.
type Tab interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Tab, tea.Cmd)
	View() string
	// SetSize receives the area below the navbar.
	SetSize(width, height int)
	// Capturing reports whether the tab owns the keyboard, as when a text
	// input or modal is open. Only ctrl+c bypasses a capturing tab.
	Capturing() bool
	ShortHelp() []key.Binding
	FullHelp() [][]key.Binding
}

// navbarHeight is the navbar line plus its bottom border and spacing.
const navbarHeight = 3

// Model is the root model. It owns the navbar and toasts and routes
// messages to the tabs.
type Model struct {
	tabs      []Tab
	activeTab TabID

	state    *State
	services *services.Manager
	keymap   KeyMap
	help     help.Model
	spinner  spinner.Model
	events   chan services.ServiceEvent

	width, height int
	showHelp      bool
	ready         bool
}

// NewModel returns a model with empty tab slots. mgr may be nil in tests.
func NewModel(mgr *services.Manager) *Model {
	return &Model{
		tabs:     make([]Tab, TabCount),
		state:    NewState(),
		services: mgr,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.Primary)),
		),
	}
}

// SetTabs installs the tabs, indexed by TabID.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.ready {
		m.resizeTabs()
	}
}

func (m *Model) GetState() *State { return m.state }

func (m *Model) GetActiveTab() TabID { return m.activeTab }

// IsReady reports whether the first window size has arrived.
func (m *Model) IsReady() bool { return m.ready }

func (m *Model) Init() tea.Cmd {
	m.state.SetBusy("Loading accounts...")
	cmds := []tea.Cmd{m.spinner.Tick, housekeepingCmd()}
	if m.services != nil {
		cmds = append(cmds, subscribeCmd(m.services))
	}
	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}
	return tea.Batch(cmds...)
}

// Update consumes global keys, sends the remaining keys to the active tab
// and broadcasts every other message to all tabs, since tabs own
// asynchronous work whose results must land even while hidden.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
		return m, m.updateTab(m.activeTab, msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.ready = true
		m.resizeTabs()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, tea.Batch(cmd, m.broadcast(msg))
	}

	return m, tea.Batch(m.handleAppMsg(msg), m.broadcast(msg))
}

func (m *Model) handleAppMsg(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		return housekeepingCmd()

	case SubscriptionEventMsg:
		m.events = msg.Channel
		return nextEventCmd(m.events)

	case ServiceEventMsg:
		cmd := m.handleServiceEvent(msg.Event)
		if m.events != nil {
			cmd = tea.Batch(cmd, nextEventCmd(m.events))
		}
		return cmd

	case AccountsLoadedMsg:
		m.finish("initial")

	case PollDoneMsg:
		m.state.MarkPolled(msg.Time)
		m.finish("poll")

	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			return expireNotificationCmd(id, msg.Duration)
		}

	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)

	case ErrorMsg:
		text := msg.Error.Error()
		if msg.Context != "" {
			text = msg.Context + ": " + text
		}
		return notify(NotificationError, text)

	case CopyToClipboardMsg:
		return copyToClipboardCmd(msg.Text, msg.Label)

	case OpenURLMsg:
		return openURLCmd(msg.URL)

	case TabSwitchMsg:
		m.switchTab(msg.Tab)
	}
	return nil
}

// finish ends a piece of pending work and drops the busy toast once
// nothing else is running.
func (m *Model) finish(resource string) {
	m.state.SetLoading(resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearBusy()
	}
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.QuotaPolledEvent:
		if e.Error != nil {
			return notify(NotificationWarning, fmt.Sprintf("%s: refresh failed: %v", e.Platform.Title(), e.Error))
		}
	case services.ErrorEvent:
		return notify(NotificationError, fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}
	return nil
}

// handleKey reports whether a global binding consumed the key.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		return tea.Quit, true
	}
	if tab := m.activeTabModel(); tab != nil && tab.Capturing() {
		return nil, false
	}
	if m.showHelp {
		if key.Matches(msg, m.keymap.Help, m.keymap.Escape) {
			m.showHelp = false
		}
		return nil, true
	}

	n := len(m.tabs)
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.TabN):
		if i, err := strconv.Atoi(msg.String()); err == nil && i <= n {
			m.switchTab(TabID(i - 1))
		}
	case key.Matches(msg, m.keymap.NextTab):
		m.switchTab(TabID((int(m.activeTab) + 1) % n))
	case key.Matches(msg, m.keymap.PrevTab):
		m.switchTab(TabID((int(m.activeTab) + n - 1) % n))
	case key.Matches(msg, m.keymap.PollAll):
		if m.services == nil || m.state.IsLoading("poll") {
			return nil, true
		}
		m.state.SetLoading("poll", true)
		m.state.SetBusy("Refreshing all platforms...")
		return pollCmd(m.services), true
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) switchTab(id TabID) {
	if id < 0 || int(id) >= len(m.tabs) {
		return
	}
	m.activeTab = id
	m.resizeTabs()
}

func (m *Model) activeTabModel() Tab {
	if int(m.activeTab) < len(m.tabs) {
		return m.tabs[m.activeTab]
	}
	return nil
}

func (m *Model) updateTab(id TabID, msg tea.Msg) tea.Cmd {
	if int(id) >= len(m.tabs) || m.tabs[id] == nil {
		return nil
	}
	var cmd tea.Cmd
	m.tabs[id], cmd = m.tabs[id].Update(msg)
	return cmd
}

func (m *Model) broadcast(msg tea.Msg) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.tabs))
	for i := range m.tabs {
		cmds = append(cmds, m.updateTab(TabID(i), msg))
	}
	return tea.Batch(cmds...)
}

func (m *Model) resizeTabs() {
	h := max(0, m.height-navbarHeight)
	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, h)
		}
	}
}

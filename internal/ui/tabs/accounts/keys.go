package accounts

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the key bindings of an accounts page.
type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Enter      key.Binding
	Refresh    key.Binding
	RefreshAll key.Binding
	Select     key.Binding
	SelectAll  key.Binding
	Delete     key.Binding
	Add        key.Binding
	Export     key.Binding
	Search     key.Binding
	Sort       key.Binding
	SortDir    key.Binding
	Filter     key.Binding
	TagFilter  key.Binding
	EditTags   key.Binding
	Group      key.Binding
	Privacy    key.Binding
	View       key.Binding
	Notice     key.Binding
	Range      key.Binding
	Escape     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "set current"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		RefreshAll: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "refresh all"),
		),
		Select: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "select"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "select all"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete"),
		),
		Add: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "add"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort by"),
		),
		SortDir: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "sort order"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "plan filter"),
		),
		TagFilter: key.NewBinding(
			key.WithKeys("#"),
			key.WithHelp("#", "tags"),
		),
		EditTags: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "edit tags"),
		),
		Group: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "group by tag"),
		),
		Privacy: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "privacy"),
		),
		View: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "layout"),
		),
		Notice: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "notice"),
		),
		Range: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "history range"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear"),
		),
	}
}

// modal bindings, shown in help while a dialog owns the keyboard.
var (
	keyNextAddTab = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next method"))
	keySubmit     = key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit"))
	keyLocal      = key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "import local"))
	keyRetry      = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry"))
	keyCopy       = key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy"))
	keyOpen       = key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open"))
	keyHide       = key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "show/hide"))
	keySave       = key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save"))
	keyConfirm    = key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm"))
	keyCancel     = key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "cancel"))
	keyToggleTag  = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	keyClearTags  = key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear"))
	keyDeleteTag  = key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete tag"))
	keyAccept     = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply"))
	keyClose      = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close"))
)

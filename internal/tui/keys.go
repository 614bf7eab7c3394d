package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

type viewerKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Toggle   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Edit     key.Binding
	Save     key.Binding
	Cancel   key.Binding
	External key.Binding
	Copy     key.Binding
	Dismiss  key.Binding
}

func defaultViewerKeys() viewerKeyMap {
	return viewerKeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next")),
		Toggle:   key.NewBinding(key.WithKeys("enter", "v"), key.WithHelp("enter", "show/hide")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "scroll down")),
		Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Save:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop editing")),
		External: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "$EDITOR")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
		Dismiss:  key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter", "dismiss")),
	}
}

// shortHelp lists the bindings that apply in the viewer's current mode.
func (k viewerKeyMap) shortHelp(editing, shown bool) []key.Binding {
	if editing {
		return []key.Binding{k.Save, k.External, k.Cancel}
	}
	out := []key.Binding{k.Up, k.Down, k.Toggle}
	if shown {
		out = append(out, k.PageDown, k.Edit, k.Save, k.Copy)
	}
	return out
}

type appKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	New    key.Binding
	Close  key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func defaultAppKeys() appKeyMap {
	return appKeyMap{
		Next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next viewer")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev viewer")),
		New:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new viewer")),
		Close:  key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("ctrl+w", "close viewer")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload list")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k appKeyMap) shortHelp() []key.Binding {
	return []key.Binding{k.Next, k.New, k.Reload, k.Quit}
}

func newHelp() help.Model {
	h := help.New()
	h.Styles.ShortKey = h.Styles.ShortKey.Foreground(colorAccent)
	h.Styles.ShortDesc = styleMuted()
	h.Styles.ShortSeparator = styleMuted()
	return h
}

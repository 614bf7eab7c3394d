package tui

import (
	"context"
	"strings"
	"time"

	"scriptview/internal/highlight"
	"scriptview/internal/logging"
	"scriptview/internal/scripts"
	"scriptview/internal/store"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const scriptsReloadInterval = 30 * time.Second

// ScriptLister lists the scripts the server offers. *scriptapi.Client satisfies it.
type ScriptLister interface {
	Scripts(ctx context.Context) ([]scripts.Script, error)
}

type Options struct {
	Files       Files
	Lister      ScriptLister
	Highlighter highlight.Highlighter
	Logger      *zap.Logger

	// Paths are offered by every viewer's selector in addition to the server listing.
	Paths []string

	// IDs names the viewers to open. When empty the saved state (or a single fresh
	// viewer) decides.
	IDs []string

	// State is restored on start and written back on quit. Nil disables persistence.
	State     *store.ViewState
	SaveState func(*store.ViewState) error
}

type scriptsLoadedMsg struct {
	scripts []scripts.Script
	err     error
}

type reloadTickMsg struct{}

type appModel struct {
	opts Options
	log  *zap.Logger

	viewers []*ScriptViewer
	focus   int

	keys appKeyMap
	help help.Model

	width  int
	height int
}

func newAppModel(opts Options) appModel {
	m := appModel{
		opts: opts,
		log:  logging.OrNop(opts.Logger),
		keys: defaultAppKeys(),
		help: newHelp(),
	}

	ids := dedupePaths(opts.IDs)
	if len(ids) == 0 && opts.State != nil {
		for id := range opts.State.Viewers {
			ids = append(ids, id)
		}
		sortViewerIDs(ids, opts.State.Focus)
	}
	if len(ids) == 0 {
		ids = []string{newViewerID()}
	}
	for _, id := range ids {
		m.viewers = append(m.viewers, m.newViewer(id))
	}
	if opts.State != nil {
		for i, v := range m.viewers {
			if v.ID() == opts.State.Focus {
				m.focus = i
			}
		}
	}
	return m
}

// sortViewerIDs orders ids alphabetically with focus first.
func sortViewerIDs(ids []string, focus string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && viewerIDLess(ids[j], ids[j-1], focus); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func viewerIDLess(a, b, focus string) bool {
	if a == focus {
		return b != focus
	}
	if b == focus {
		return false
	}
	return a < b
}

func newViewerID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (m appModel) newViewer(id string) *ScriptViewer {
	selected := ""
	if m.opts.State != nil {
		selected = m.opts.State.Viewers[id].SelectedPath
	}
	if selected == "" && len(m.opts.Paths) > 0 {
		selected = strings.TrimSpace(m.opts.Paths[0])
	}
	v := NewScriptViewer(ScriptViewerConfig{
		ID:          id,
		Files:       m.opts.Files,
		Highlighter: m.opts.Highlighter,
		Logger:      m.log,
		Paths:       m.opts.Paths,
		Selected:    selected,
	})
	if m.width > 0 {
		v.SetSize(m.width, m.viewerHeight())
	}
	return v
}

func (m appModel) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.opts.Lister != nil {
		cmds = append(cmds, m.loadScripts(), tickReload())
	}
	if m.opts.State != nil {
		for _, v := range m.viewers {
			if m.opts.State.Viewers[v.ID()].Shown {
				cmds = append(cmds, v.ToggleView())
			}
		}
	}
	return tea.Batch(cmds...)
}

func tickReload() tea.Cmd {
	return tea.Tick(scriptsReloadInterval, func(time.Time) tea.Msg { return reloadTickMsg{} })
}

func (m appModel) loadScripts() tea.Cmd {
	lister := m.opts.Lister
	if lister == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		list, err := lister.Scripts(ctx)
		return scriptsLoadedMsg{scripts: list, err: err}
	}
}

func (m appModel) focused() *ScriptViewer {
	if len(m.viewers) == 0 {
		return nil
	}
	return m.viewers[m.focus]
}

func (m appModel) viewer(id string) *ScriptViewer {
	for _, v := range m.viewers {
		if v.ID() == id {
			return v
		}
	}
	return nil
}

func (m appModel) viewerHeight() int { return max(m.height-2, 1) }

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, v := range m.viewers {
			v.SetSize(m.width, m.viewerHeight())
		}
		return m, nil

	case reloadTickMsg:
		return m, tea.Batch(m.loadScripts(), tickReload())

	case scriptsLoadedMsg:
		if msg.err != nil {
			m.log.Warn("script listing failed", zap.Error(msg.err))
			return m, nil
		}
		for _, v := range m.viewers {
			v.SetScripts(msg.scripts)
		}
		return m, nil

	case fileLoadedMsg:
		if v := m.viewer(msg.viewerID); v != nil {
			return m, v.Update(msg)
		}
		return m, nil

	case fileSavedMsg:
		if v := m.viewer(msg.viewerID); v != nil {
			return m, v.Update(msg)
		}
		return m, nil

	case externalEditorDoneMsg:
		if v := m.viewer(msg.viewerID); v != nil {
			return m, v.Update(msg)
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	if v := m.focused(); v != nil {
		return m, v.Update(msg)
	}
	return m, nil
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.focused()
	if msg.String() == "ctrl+c" {
		m.persist()
		return m, tea.Quit
	}
	if v != nil && v.Captures() {
		return m, v.Update(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.persist()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		if len(m.viewers) > 0 {
			m.focus = (m.focus + 1) % len(m.viewers)
		}
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		if len(m.viewers) > 0 {
			m.focus = (m.focus + len(m.viewers) - 1) % len(m.viewers)
		}
		return m, nil
	case key.Matches(msg, m.keys.New):
		nv := m.newViewer(newViewerID())
		m.viewers = append(m.viewers, nv)
		m.focus = len(m.viewers) - 1
		return m, m.loadScripts()
	case key.Matches(msg, m.keys.Close):
		if len(m.viewers) <= 1 || v == nil || v.Saving() {
			return m, nil
		}
		v.abandonFetch()
		m.viewers = append(m.viewers[:m.focus:m.focus], m.viewers[m.focus+1:]...)
		if m.focus >= len(m.viewers) {
			m.focus = len(m.viewers) - 1
		}
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		return m, m.loadScripts()
	}

	if v != nil {
		return m, v.Update(msg)
	}
	return m, nil
}

// persist writes the viewers' selections back; failures are logged only.
func (m appModel) persist() {
	if m.opts.State == nil || m.opts.SaveState == nil {
		return
	}
	st := m.snapshot()
	if err := m.opts.SaveState(st); err != nil {
		m.log.Warn("saving view state failed", zap.Error(err))
	}
}

func (m appModel) snapshot() *store.ViewState {
	st := &store.ViewState{Version: 1, Viewers: map[string]store.ViewerState{}}
	for _, v := range m.viewers {
		st.Viewers[v.ID()] = store.ViewerState{SelectedPath: v.SelectedPath(), Shown: v.Visible()}
	}
	if v := m.focused(); v != nil {
		st.Focus = v.ID()
	}
	return st
}

func (m appModel) View() string {
	v := m.focused()
	if v == nil {
		return ""
	}

	tabs := make([]string, 0, len(m.viewers))
	for i, vw := range m.viewers {
		label := vw.ID()
		if len(label) > 8 {
			label = label[:8]
		}
		tabs = append(tabs, styleTab(i == m.focus).Render(label))
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	return strings.Join([]string{
		fitBlock(bar, m.width, 1),
		v.View(),
		fitBlock(m.help.ShortHelpView(m.keys.shortHelp()), m.width, 1),
	}, "\n")
}

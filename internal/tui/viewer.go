package tui

import (
	"context"
	"fmt"
	"strings"

	"scriptview/internal/highlight"
	"scriptview/internal/logging"
	"scriptview/internal/scripts"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// Files is the remote side of a viewer: the file-read and file-write endpoints.
// *scriptapi.Client satisfies it.
type Files interface {
	File(ctx context.Context, path string) (string, error)
	UpdateFile(ctx context.Context, path, content string) error
}

// languageNamer is implemented by highlighters that can name the detected language.
type languageNamer interface {
	Language(path, src string) string
}

// State is the lifecycle state of a single viewer.
type State int

const (
	StateHidden State = iota
	StateLoading
	StateShown
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateLoading:
		return "loading"
	case StateShown:
		return "shown"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type ScriptViewerConfig struct {
	// ID addresses the viewer; results of its requests are routed back by it.
	ID          string
	Files       Files
	Highlighter highlight.Highlighter
	Logger      *zap.Logger

	// Paths are always offered by the selector, on top of whatever SetScripts provides.
	Paths    []string
	Selected string

	// Clipboard overrides the system clipboard (tests).
	Clipboard func(string) error
}

// fileLoadedMsg completes a read issued by FetchAndShow.
type fileLoadedMsg struct {
	viewerID string
	seq      uint64
	path     string
	text     string
	err      error
}

// fileSavedMsg completes a write issued by Save.
type fileSavedMsg struct {
	viewerID string
	path     string
	content  string
	err      error
}

// ScriptViewer shows one server side script: a selector of paths, a preview pane with
// highlighted content and an editor for writing changes back.
//
// All methods run on the bubbletea event loop. Network calls happen inside the returned
// commands; their results come back through Update.
type ScriptViewer struct {
	id    string
	files Files
	hl    highlight.Highlighter
	log   *zap.Logger
	copy  func(string) error

	selector list.Model
	pane     viewport.Model
	editor   textarea.Model
	help     help.Model
	keys     viewerKeyMap

	pinned []string

	visible bool
	loading bool
	saving  bool
	editing bool

	// text is the last content fetched or saved for textPath. The pane never shows
	// anything else.
	text     string
	textPath string
	lang     string

	seq         uint64
	cancelFetch context.CancelFunc

	alert  string
	alerts int
	status string

	extEditorPath   string
	extEditorBefore string

	width, height int
}

func NewScriptViewer(cfg ScriptViewerConfig) *ScriptViewer {
	hl := cfg.Highlighter
	if hl == nil {
		hl = highlight.Plain
	}
	cp := cfg.Clipboard
	if cp == nil {
		cp = copyToClipboard
	}

	ed := textarea.New()
	ed.CharLimit = 0
	ed.MaxHeight = 0
	ed.ShowLineNumbers = true
	ed.Prompt = ""

	v := &ScriptViewer{
		id:       strings.TrimSpace(cfg.ID),
		files:    cfg.Files,
		hl:       hl,
		log:      logging.OrNop(cfg.Logger).With(zap.String("viewer", strings.TrimSpace(cfg.ID))),
		copy:     cp,
		selector: newSelector(),
		pane:     viewport.New(0, 0),
		editor:   ed,
		help:     newHelp(),
		keys:     defaultViewerKeys(),
		pinned:   dedupePaths(cfg.Paths),
	}
	v.SetScripts(nil)
	if sel := strings.TrimSpace(cfg.Selected); sel != "" {
		v.selectPath(sel)
	}
	return v
}

func newSelector() list.Model {
	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	d.SetSpacing(0)
	l := list.New(nil, d, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

type scriptItem struct {
	name string
	path string
}

func (i scriptItem) Title() string       { return i.name }
func (i scriptItem) Description() string { return i.path }
func (i scriptItem) FilterValue() string { return i.name }

func dedupePaths(paths []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (v *ScriptViewer) ID() string { return v.id }

func (v *ScriptViewer) State() State {
	switch {
	case v.saving:
		return StateSaving
	case v.loading:
		return StateLoading
	case v.visible:
		return StateShown
	default:
		return StateHidden
	}
}

// Visible reports whether the pane is shown. It stays true while a fetch replaces the
// content of a shown pane.
func (v *ScriptViewer) Visible() bool { return v.visible }

// Saving reports whether a write is in flight; the pane is dimmed meanwhile.
func (v *ScriptViewer) Saving() bool { return v.saving }

// Editable reports whether the content may be changed right now.
func (v *ScriptViewer) Editable() bool { return v.visible && !v.saving && !v.loading }

func (v *ScriptViewer) Editing() bool { return v.editing }

// Text is the content shown in the pane.
func (v *ScriptViewer) Text() string { return v.text }

// TextPath is the path Text was read from (or written to).
func (v *ScriptViewer) TextPath() string { return v.textPath }

// PaneBackground is the pane's current background color.
func (v *ScriptViewer) PaneBackground() lipgloss.TerminalColor {
	if v.saving {
		return colorSavingBg
	}
	return colorSurfaceBg
}

// Alert is the pending user visible alert, if any.
func (v *ScriptViewer) Alert() string { return v.alert }

// AlertCount is the number of alerts raised over the viewer's lifetime.
func (v *ScriptViewer) AlertCount() int { return v.alerts }

// Captures reports whether the viewer wants every key (editing, or an alert is up).
func (v *ScriptViewer) Captures() bool { return v.editing || v.alert != "" }

func (v *ScriptViewer) SelectedPath() string {
	it, ok := v.selector.SelectedItem().(scriptItem)
	if !ok {
		return ""
	}
	return it.path
}

// Paths lists the selector entries in display order.
func (v *ScriptViewer) Paths() []string {
	items := v.selector.Items()
	out := make([]string, 0, len(items))
	for _, it := range items {
		if si, ok := it.(scriptItem); ok {
			out = append(out, si.path)
		}
	}
	return out
}

// SetScripts replaces the selector entries with found plus the pinned paths. The current
// selection is kept, so this never triggers a fetch.
func (v *ScriptViewer) SetScripts(found []scripts.Script) {
	cur := v.SelectedPath()

	seen := map[string]bool{}
	var items []list.Item
	add := func(name, path string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		if name == "" {
			name = path
		}
		items = append(items, scriptItem{name: name, path: path})
	}
	for _, s := range found {
		add(s.Name, s.Path)
	}
	for _, p := range v.pinned {
		add("", p)
	}
	add("", cur)

	v.selector.SetItems(items)
	if cur != "" {
		v.selectPath(cur)
	}
}

// selectPath moves the selector to path, adding an entry when it is unknown.
func (v *ScriptViewer) selectPath(path string) {
	for i, p := range v.Paths() {
		if p == path {
			v.selector.Select(i)
			return
		}
	}
	items := append(v.selector.Items(), scriptItem{name: path, path: path})
	v.selector.SetItems(items)
	v.selector.Select(len(items) - 1)
}

// Select changes the selection to path and reacts like a user selection change.
func (v *ScriptViewer) Select(path string) tea.Cmd {
	if v.saving || strings.TrimSpace(path) == "" || path == v.SelectedPath() {
		return nil
	}
	v.selectPath(path)
	return v.OnSelectionChanged()
}

// ToggleView hides a shown pane without any request, or fetches the selected script
// and shows it.
func (v *ScriptViewer) ToggleView() tea.Cmd {
	if v.saving {
		return nil
	}
	if v.visible {
		v.visible = false
		v.editing = false
		v.editor.Blur()
		v.abandonFetch()
		return nil
	}
	return v.FetchAndShow()
}

// FetchAndShow reads the selected path. The pane is updated when the read completes;
// a failed read is logged and leaves the pane as it was.
func (v *ScriptViewer) FetchAndShow() tea.Cmd {
	path := v.SelectedPath()
	if path == "" {
		v.log.Debug("fetch skipped: nothing selected")
		return nil
	}
	if v.files == nil {
		v.log.Warn("fetch skipped: no file endpoint", zap.String("path", path))
		return nil
	}

	// Only the latest fetch may update the pane.
	v.abandonFetch()
	ctx, cancel := context.WithCancel(context.Background())
	v.cancelFetch = cancel
	v.seq++
	seq := v.seq
	v.loading = true

	files, id := v.files, v.id
	return func() tea.Msg {
		defer cancel()
		text, err := files.File(ctx, path)
		return fileLoadedMsg{viewerID: id, seq: seq, path: path, text: text, err: err}
	}
}

func (v *ScriptViewer) abandonFetch() {
	if v.cancelFetch != nil {
		v.cancelFetch()
		v.cancelFetch = nil
	}
	if v.loading {
		v.seq++
		v.loading = false
	}
}

// OnSelectionChanged refetches when the pane is shown (or about to be); a hidden pane
// ignores selection changes.
func (v *ScriptViewer) OnSelectionChanged() tea.Cmd {
	if v.saving {
		return nil
	}
	if !v.visible && !v.loading {
		return nil
	}
	return v.FetchAndShow()
}

// Save writes the editable text to the selected path. The pane is dimmed and locked
// until the write completes; a failed write raises one alert.
func (v *ScriptViewer) Save() tea.Cmd {
	if !v.Editable() {
		return nil
	}
	path := v.SelectedPath()
	if path == "" {
		return nil
	}
	content := v.text
	if v.editing {
		content = v.editor.Value()
	}

	v.saving = true
	v.editor.Blur()
	v.status = ""

	files, id := v.files, v.id
	return func() tea.Msg {
		err := files.UpdateFile(context.Background(), path, content)
		return fileSavedMsg{viewerID: id, path: path, content: content, err: err}
	}
}

func (v *ScriptViewer) handleLoaded(msg fileLoadedMsg) tea.Cmd {
	if msg.seq != v.seq {
		v.log.Debug("stale fetch result dropped", zap.String("path", msg.path))
		return nil
	}
	v.loading = false
	v.cancelFetch = nil

	if msg.err != nil {
		v.log.Warn("script fetch failed", zap.String("path", msg.path), zap.Error(msg.err))
		// Keep the selector on what the pane shows.
		if v.visible && v.textPath != "" {
			v.selectPath(v.textPath)
		}
		return nil
	}

	v.visible = true
	v.editing = false
	v.editor.Blur()
	v.setText(msg.path, msg.text)
	v.pane.GotoTop()
	return nil
}

func (v *ScriptViewer) handleSaved(msg fileSavedMsg) tea.Cmd {
	if !v.saving {
		return nil
	}
	v.saving = false

	var cmd tea.Cmd
	if v.editing {
		cmd = v.editor.Focus()
	}

	if msg.err != nil {
		v.log.Error("script save failed", zap.String("path", msg.path), zap.Error(msg.err))
		v.raiseAlert(fmt.Sprintf("Could not save %s:\n%v", msg.path, msg.err))
		return cmd
	}

	v.log.Info("script saved", zap.String("path", msg.path), zap.Int("bytes", len(msg.content)))
	v.setText(msg.path, msg.content)
	v.status = "Saved " + msg.path
	return cmd
}

func (v *ScriptViewer) raiseAlert(s string) {
	v.alert = s
	v.alerts++
}

// setText replaces the pane content in one step and re-runs the highlighter.
func (v *ScriptViewer) setText(path, text string) {
	v.text = text
	v.textPath = path
	v.lang = ""
	if ln, ok := v.hl.(languageNamer); ok {
		v.lang = ln.Language(path, text)
	}
	v.render()
}

func (v *ScriptViewer) render() {
	w := v.pane.Width
	if w <= 0 {
		w = 80
	}
	v.pane.SetContent(v.hl.Highlight(v.textPath, v.text, w))
}

func (v *ScriptViewer) startEditing() tea.Cmd {
	if !v.Editable() || v.editing {
		return nil
	}
	v.editing = true
	v.status = ""
	v.editor.SetValue(v.text)
	return v.editor.Focus()
}

func (v *ScriptViewer) stopEditing() {
	v.editing = false
	v.editor.Blur()
	v.editor.SetValue("")
}

// Update handles messages addressed to this viewer and key presses while it has focus.
func (v *ScriptViewer) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case fileLoadedMsg:
		if msg.viewerID != v.id {
			return nil
		}
		return v.handleLoaded(msg)
	case fileSavedMsg:
		if msg.viewerID != v.id {
			return nil
		}
		return v.handleSaved(msg)
	case externalEditorDoneMsg:
		if msg.viewerID != v.id {
			return nil
		}
		v.applyExternalEditorResult(msg)
		return v.editor.Focus()
	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	if v.editing && !v.saving {
		var cmd tea.Cmd
		v.editor, cmd = v.editor.Update(msg)
		return cmd
	}
	return nil
}

func (v *ScriptViewer) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.alert != "" {
		if key.Matches(msg, v.keys.Dismiss) {
			v.alert = ""
		}
		return nil
	}

	if v.editing {
		switch {
		case key.Matches(msg, v.keys.Save):
			return v.Save()
		case v.saving:
			return nil
		case key.Matches(msg, v.keys.Cancel):
			v.stopEditing()
			return nil
		case key.Matches(msg, v.keys.External):
			cmd, err := v.openExternalEditor()
			if err != nil {
				v.status = "Editor failed: " + err.Error()
				return nil
			}
			return cmd
		}
		var cmd tea.Cmd
		v.editor, cmd = v.editor.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, v.keys.Up):
		return v.moveSelection(-1)
	case key.Matches(msg, v.keys.Down):
		return v.moveSelection(1)
	case key.Matches(msg, v.keys.Toggle):
		return v.ToggleView()
	case key.Matches(msg, v.keys.PageUp):
		v.pane.HalfViewUp()
	case key.Matches(msg, v.keys.PageDown):
		v.pane.HalfViewDown()
	case key.Matches(msg, v.keys.Edit):
		return v.startEditing()
	case key.Matches(msg, v.keys.Save):
		return v.Save()
	case key.Matches(msg, v.keys.Copy):
		if !v.visible {
			return nil
		}
		if err := v.copy(v.text); err != nil {
			v.log.Warn("clipboard copy failed", zap.Error(err))
			v.status = "Copy failed: " + err.Error()
			return nil
		}
		v.status = "Copied " + v.textPath
	}
	return nil
}

func (v *ScriptViewer) moveSelection(delta int) tea.Cmd {
	if v.saving {
		return nil
	}
	before := v.selector.Index()
	if delta < 0 {
		v.selector.CursorUp()
	} else {
		v.selector.CursorDown()
	}
	if v.selector.Index() == before {
		return nil
	}
	return v.OnSelectionChanged()
}

// SetSize lays the viewer out in a width x height area.
func (v *ScriptViewer) SetSize(width, height int) {
	v.width, v.height = width, height

	selW := width / 3
	if selW > 40 {
		selW = 40
	}
	paneW := max(width-selW-1, 1)
	bodyH := max(height-3, 1)

	v.selector.SetSize(selW, bodyH)
	v.pane.Width = paneW
	v.pane.Height = bodyH
	v.editor.SetWidth(paneW)
	v.editor.SetHeight(bodyH)
	if v.textPath != "" {
		v.render()
	}
}

func (v *ScriptViewer) View() string {
	if v.alert != "" {
		return placeCentered(v.width, v.height, renderAlertModal(v.width, "Save failed", v.alert))
	}

	selW := v.selector.Width()
	paneW := v.pane.Width
	bodyH := v.pane.Height

	header := styleTitle().Render(v.headerText())

	var pane string
	switch {
	case v.editing:
		pane = v.editor.View()
	case v.visible:
		pane = v.pane.View()
	case v.loading:
		pane = styleMuted().Render("loading " + v.SelectedPath() + "…")
	default:
		pane = styleMuted().Render("hidden (enter to show)")
	}
	paneStyle := lipgloss.NewStyle().Background(v.PaneBackground())
	if v.saving {
		paneStyle = paneStyle.Faint(true)
	}
	pane = paneStyle.Render(fitBlock(pane, paneW, bodyH))

	sep := lipgloss.NewStyle().Foreground(colorBorder).Render(strings.TrimSuffix(strings.Repeat("│\n", bodyH), "\n"))
	body := lipgloss.JoinHorizontal(lipgloss.Top, fitBlock(v.selector.View(), selW, bodyH), sep, pane)

	footer := v.help.ShortHelpView(v.keys.shortHelp(v.editing, v.visible))
	if v.status != "" {
		footer = styleMuted().Render(v.status) + "  " + footer
	}
	return strings.Join([]string{header, body, fitBlock(footer, v.width, 1)}, "\n")
}

func (v *ScriptViewer) headerText() string {
	path := v.textPath
	if !v.visible || path == "" {
		path = v.SelectedPath()
	}
	if path == "" {
		path = "(no script selected)"
	}
	state := v.State().String()
	if v.editing && !v.saving {
		state = "editing"
	}
	if v.visible && v.lang != "" {
		state += " · " + v.lang
	}
	return fmt.Sprintf("%s  [%s]", path, state)
}

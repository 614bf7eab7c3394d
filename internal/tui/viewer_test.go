package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"scriptview/internal/highlight"
	"scriptview/internal/scripts"

	tea "github.com/charmbracelet/bubbletea"
	"pgregory.net/rapid"
)

type fileCall struct {
	op      string
	path    string
	content string
}

type fakeFiles struct {
	mu       sync.Mutex
	bodies   map[string]string
	readErr  error
	writeErr error
	calls    []fileCall
}

func newFakeFiles(bodies map[string]string) *fakeFiles {
	if bodies == nil {
		bodies = map[string]string{}
	}
	return &fakeFiles{bodies: bodies}
}

func (f *fakeFiles) File(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fileCall{op: "read", path: path})
	if f.readErr != nil {
		return "", f.readErr
	}
	body, ok := f.bodies[path]
	if !ok {
		return "", errors.New("404 not found")
	}
	return body, nil
}

func (f *fakeFiles) UpdateFile(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fileCall{op: "write", path: path, content: content})
	if f.writeErr != nil {
		return f.writeErr
	}
	f.bodies[path] = content
	return nil
}

func (f *fakeFiles) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeFiles) last() fileCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return fileCall{}
	}
	return f.calls[len(f.calls)-1]
}

type countingHighlighter struct{ calls int }

func (h *countingHighlighter) Highlight(_, src string, _ int) string {
	h.calls++
	return src
}

func newTestViewer(t *testing.T, files Files, paths ...string) *ScriptViewer {
	t.Helper()
	v := NewScriptViewer(ScriptViewerConfig{
		ID:        "w1",
		Files:     files,
		Paths:     paths,
		Clipboard: func(string) error { return nil },
	})
	v.SetSize(100, 30)
	return v
}

// run executes cmd and feeds its message back into the viewer, like the event loop would.
func run(t *testing.T, v *ScriptViewer, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	switch msg.(type) {
	case fileLoadedMsg, fileSavedMsg:
		_ = v.Update(msg)
	}
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestToggleView_TwiceFromHiddenReturnsToHiddenWithOneRead(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "echo a\n"})
	v := newTestViewer(t, files, "a.sh")

	run(t, v, v.ToggleView())
	if v.State() != StateShown {
		t.Fatalf("expected shown after first toggle, got %s", v.State())
	}
	if cmd := v.ToggleView(); cmd != nil {
		t.Fatalf("expected no command when hiding")
	}
	if v.State() != StateHidden || v.Visible() {
		t.Fatalf("expected hidden after second toggle, got %s", v.State())
	}
	if got := files.count("read"); got != 1 {
		t.Fatalf("expected exactly one read, got %d", got)
	}
}

func TestFetchAndShow_PaneTextEqualsBody(t *testing.T) {
	t.Parallel()

	body := "#!/bin/sh\r\n\techo \"héllo\"  \n\n"
	files := newFakeFiles(map[string]string{"/srv/a.sh": body})
	hl := &countingHighlighter{}
	v := NewScriptViewer(ScriptViewerConfig{ID: "w1", Files: files, Highlighter: hl, Selected: "/srv/a.sh"})

	cmd := v.FetchAndShow()
	if v.State() != StateLoading {
		t.Fatalf("expected loading while the read is in flight, got %s", v.State())
	}
	run(t, v, cmd)

	if v.Text() != body {
		t.Fatalf("pane text %q, want %q", v.Text(), body)
	}
	if !v.Visible() || v.TextPath() != "/srv/a.sh" {
		t.Fatalf("expected visible pane for /srv/a.sh, got visible=%v path=%q", v.Visible(), v.TextPath())
	}
	if hl.calls == 0 {
		t.Fatalf("expected the highlighter to run after the content changed")
	}
	if files.last().path != "/srv/a.sh" {
		t.Fatalf("read path %q", files.last().path)
	}
}

func TestFetchAndShow_FailureLeavesHiddenPaneHidden(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(nil)
	files.readErr = errors.New("boom")
	v := newTestViewer(t, files, "a.sh")

	run(t, v, v.ToggleView())

	if v.State() != StateHidden {
		t.Fatalf("expected hidden after failed read, got %s", v.State())
	}
	if v.AlertCount() != 0 || v.Alert() != "" {
		t.Fatalf("read failures must not alert")
	}
}

func TestFetchAndShow_FailureKeepsShownContent(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "A"})
	v := newTestViewer(t, files, "a.sh", "b.sh")
	run(t, v, v.ToggleView())

	// b.sh has no body, so the read fails.
	run(t, v, v.Select("b.sh"))

	if v.State() != StateShown {
		t.Fatalf("expected shown, got %s", v.State())
	}
	if v.Text() != "A" || v.TextPath() != "a.sh" {
		t.Fatalf("expected old content to stay, got %q from %q", v.Text(), v.TextPath())
	}
	if v.SelectedPath() != "a.sh" {
		t.Fatalf("expected selector back on the shown path, got %q", v.SelectedPath())
	}
	if v.AlertCount() != 0 {
		t.Fatalf("read failures must not alert")
	}
}

func TestOnSelectionChanged_HiddenMakesNoCall(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "A", "b.sh": "B"})
	v := newTestViewer(t, files, "a.sh", "b.sh")

	if cmd := v.Select("b.sh"); cmd != nil {
		t.Fatalf("expected no command while hidden")
	}
	if cmd := v.Update(keyRunes("k")); cmd != nil {
		t.Fatalf("expected no command while hidden")
	}
	if got := files.count("read"); got != 0 {
		t.Fatalf("expected no reads, got %d", got)
	}
}

func TestOnSelectionChanged_ShownReadsNewPathOnce(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "A", "b.sh": "B"})
	v := newTestViewer(t, files, "a.sh", "b.sh")
	run(t, v, v.ToggleView())

	cmd := v.Update(tea.KeyMsg{Type: tea.KeyDown})
	if cmd == nil {
		t.Fatalf("expected a read for the new selection")
	}
	if v.State() != StateLoading || !v.Visible() {
		t.Fatalf("expected loading over a visible pane, got %s", v.State())
	}
	run(t, v, cmd)

	if got := files.count("read"); got != 2 {
		t.Fatalf("expected two reads in total, got %d", got)
	}
	if files.last().path != "b.sh" {
		t.Fatalf("expected read of b.sh, got %q", files.last().path)
	}
	if v.Text() != "B" || v.State() != StateShown {
		t.Fatalf("expected B shown, got %q (%s)", v.Text(), v.State())
	}
}

func TestFetch_OnlyLatestResultApplies(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "A", "b.sh": "B", "c.sh": "C"})
	v := newTestViewer(t, files, "a.sh", "b.sh", "c.sh")
	run(t, v, v.ToggleView())

	first := v.Select("b.sh")
	second := v.Select("c.sh")
	if first == nil || second == nil {
		t.Fatalf("expected two reads")
	}

	// Complete out of order: the newer read lands first.
	secondMsg := second()
	firstMsg := first()
	_ = v.Update(secondMsg)
	_ = v.Update(firstMsg)

	if v.Text() != "C" || v.TextPath() != "c.sh" {
		t.Fatalf("expected latest selection to win, got %q from %q", v.Text(), v.TextPath())
	}
}

func TestSave_SuccessRestoresNormalEditablePane(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "old"})
	hl := &countingHighlighter{}
	v := NewScriptViewer(ScriptViewerConfig{ID: "w1", Files: files, Highlighter: hl, Paths: []string{"a.sh"}})
	v.SetSize(80, 20)
	run(t, v, v.ToggleView())

	_ = v.Update(keyRunes("e"))
	if !v.Editing() {
		t.Fatalf("expected edit mode")
	}
	v.editor.SetValue("new content\n")

	cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatalf("expected a write command")
	}
	if v.State() != StateSaving || !v.Saving() || v.Editable() {
		t.Fatalf("expected locked saving pane, got %s editable=%v", v.State(), v.Editable())
	}
	if v.PaneBackground() != colorSavingBg {
		t.Fatalf("expected dimmed background while saving")
	}
	before := hl.calls
	run(t, v, cmd)

	if v.Saving() || !v.Editable() {
		t.Fatalf("expected editable pane after save, saving=%v editable=%v", v.Saving(), v.Editable())
	}
	if v.PaneBackground() != colorSurfaceBg {
		t.Fatalf("expected normal background after save")
	}
	if hl.calls <= before {
		t.Fatalf("expected the highlighter to run after save")
	}
	if v.Text() != "new content\n" {
		t.Fatalf("pane text %q", v.Text())
	}
	last := files.last()
	if last.op != "write" || last.path != "a.sh" || last.content != "new content\n" {
		t.Fatalf("unexpected write %+v", last)
	}
	if v.AlertCount() != 0 {
		t.Fatalf("unexpected alert %q", v.Alert())
	}
}

func TestSave_FailureAlertsOnceAndUnlocks(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "old"})
	v := newTestViewer(t, files, "a.sh")
	run(t, v, v.ToggleView())
	_ = v.Update(keyRunes("e"))
	v.editor.SetValue("unsaved")

	files.writeErr = errors.New("500 internal server error")
	run(t, v, v.Save())

	if v.Saving() {
		t.Fatalf("expected saving cleared after failure")
	}
	if !v.Editable() {
		t.Fatalf("expected editable pane after failure")
	}
	if v.PaneBackground() != colorSurfaceBg {
		t.Fatalf("expected normal background after failure")
	}
	if v.AlertCount() != 1 {
		t.Fatalf("expected exactly one alert, got %d", v.AlertCount())
	}
	if !strings.Contains(v.Alert(), "500") {
		t.Fatalf("alert should carry the error, got %q", v.Alert())
	}
	if v.Text() != "old" {
		t.Fatalf("pane must keep last good content, got %q", v.Text())
	}
	if v.editor.Value() != "unsaved" {
		t.Fatalf("editor should keep unsaved text, got %q", v.editor.Value())
	}

	// The alert blocks other keys until dismissed.
	if cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlS}); cmd != nil {
		t.Fatalf("expected keys swallowed while the alert is up")
	}
	_ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if v.Alert() != "" || v.AlertCount() != 1 {
		t.Fatalf("expected alert dismissed, got %q (%d)", v.Alert(), v.AlertCount())
	}
}

func TestSaving_IgnoresToggleAndSelection(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "A", "b.sh": "B"})
	v := newTestViewer(t, files, "a.sh", "b.sh")
	run(t, v, v.ToggleView())

	save := v.Save()
	if cmd := v.ToggleView(); cmd != nil || !v.Visible() {
		t.Fatalf("toggle must be ignored while saving")
	}
	if cmd := v.Select("b.sh"); cmd != nil || v.SelectedPath() != "a.sh" {
		t.Fatalf("selection must be ignored while saving")
	}
	run(t, v, save)
	if v.State() != StateShown {
		t.Fatalf("expected shown, got %s", v.State())
	}
}

func TestEditing_EscDiscardsEdits(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "A"})
	v := newTestViewer(t, files, "a.sh")
	run(t, v, v.ToggleView())

	_ = v.Update(keyRunes("e"))
	v.editor.SetValue("changed")
	_ = v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	if v.Editing() || v.Text() != "A" {
		t.Fatalf("expected edit mode left with original text, editing=%v text=%q", v.Editing(), v.Text())
	}
	if files.count("write") != 0 {
		t.Fatalf("esc must not write")
	}
}

func TestCopy_UsesClipboard(t *testing.T) {
	t.Parallel()

	var copied string
	files := newFakeFiles(map[string]string{"a.sh": "echo hi"})
	v := NewScriptViewer(ScriptViewerConfig{
		ID:        "w1",
		Files:     files,
		Paths:     []string{"a.sh"},
		Clipboard: func(s string) error { copied = s; return nil },
	})
	run(t, v, v.ToggleView())
	_ = v.Update(keyRunes("y"))
	if copied != "echo hi" {
		t.Fatalf("copied %q", copied)
	}
}

func TestUpdate_IgnoresOtherViewersResults(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "A"})
	v := newTestViewer(t, files, "a.sh")
	cmd := v.ToggleView()
	msg := cmd().(fileLoadedMsg)
	msg.viewerID = "other"
	_ = v.Update(msg)
	if v.State() != StateLoading {
		t.Fatalf("expected result for another viewer to be ignored, got %s", v.State())
	}
}

func TestSetScripts_KeepsSelectionAndPinnedPaths(t *testing.T) {
	t.Parallel()

	v := newTestViewer(t, newFakeFiles(nil), "/pinned.sh")
	_ = v.Select("/pinned.sh")
	v.SetScripts([]scripts.Script{
		{Path: "/srv/a.sh", Name: "a.sh"},
		{Path: "/srv/b.sh", Name: "b.sh"},
	})

	got := v.Paths()
	want := []string{"/srv/a.sh", "/srv/b.sh", "/pinned.sh"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("paths %v, want %v", got, want)
	}
	if v.SelectedPath() != "/pinned.sh" {
		t.Fatalf("selection lost: %q", v.SelectedPath())
	}
}

func TestView_RendersStates(t *testing.T) {
	t.Parallel()

	files := newFakeFiles(map[string]string{"a.sh": "echo visible"})
	v := NewScriptViewer(ScriptViewerConfig{ID: "w1", Files: files, Highlighter: highlight.Plain, Paths: []string{"a.sh"}})
	v.SetSize(80, 12)

	if out := v.View(); !strings.Contains(out, "hidden") {
		t.Fatalf("expected hidden placeholder, got:\n%s", out)
	}
	run(t, v, v.ToggleView())
	if out := v.View(); !strings.Contains(out, "echo visible") {
		t.Fatalf("expected content in view, got:\n%s", out)
	}
}

func TestToggleView_PropertyHiddenAfterEvenToggles(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		body := rapid.String().Draw(rt, "body")
		pairs := rapid.IntRange(1, 5).Draw(rt, "pairs")

		files := newFakeFiles(map[string]string{"s": body})
		v := NewScriptViewer(ScriptViewerConfig{ID: "p", Files: files, Paths: []string{"s"}})
		for i := 0; i < pairs; i++ {
			if cmd := v.ToggleView(); cmd != nil {
				_ = v.Update(cmd())
			}
			if v.Text() != body {
				rt.Fatalf("pane text %q, want %q", v.Text(), body)
			}
			if cmd := v.ToggleView(); cmd != nil {
				rt.Fatalf("hiding must not issue a request")
			}
		}
		if v.State() != StateHidden {
			rt.Fatalf("expected hidden, got %s", v.State())
		}
		if got := files.count("read"); got != pairs {
			rt.Fatalf("expected %d reads, got %d", pairs, got)
		}
	})
}

package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyExternalEditorResult_UpdatesEditorAndCleansUp(t *testing.T) {
	t.Parallel()

	v := NewScriptViewer(ScriptViewerConfig{ID: "w1", Files: newFakeFiles(nil)})
	v.editor.SetValue("before")

	path := filepath.Join(t.TempDir(), "edited.sh")
	if err := os.WriteFile(path, []byte("after\n"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	v.extEditorPath = path
	v.extEditorBefore = "before"
	_ = v.Update(externalEditorDoneMsg{viewerID: "w1"})

	if got := v.editor.Value(); got != "after\n" {
		t.Fatalf("expected editor to be updated, got %q", got)
	}
	if !strings.Contains(v.status, "ctrl+s") {
		t.Fatalf("expected a save hint, got %q", v.status)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be removed, stat err=%v", err)
	}
}

func TestApplyExternalEditorResult_OtherViewerIgnored(t *testing.T) {
	t.Parallel()

	v := NewScriptViewer(ScriptViewerConfig{ID: "w1", Files: newFakeFiles(nil)})
	path := filepath.Join(t.TempDir(), "edited.sh")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	v.extEditorPath = path

	_ = v.Update(externalEditorDoneMsg{viewerID: "w2"})
	if v.extEditorPath != path {
		t.Fatalf("result for another viewer must not be applied")
	}
}

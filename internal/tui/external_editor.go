package tui

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type externalEditorDoneMsg struct {
	viewerID string
	err      error
}

func externalEditorName() string {
	if v := strings.TrimSpace(os.Getenv("VISUAL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("EDITOR")); v != "" {
		return v
	}
	return "vi"
}

// openExternalEditor hands the editor buffer to $VISUAL/$EDITOR. The temp file keeps the
// script's extension so the editor picks the right syntax.
func (v *ScriptViewer) openExternalEditor() (tea.Cmd, error) {
	args := splitShellWords(externalEditorName())
	if len(args) == 0 {
		args = []string{"vi"}
	}

	f, err := os.CreateTemp("", "scriptview-*"+filepath.Ext(v.textPath))
	if err != nil {
		return nil, err
	}
	path := f.Name()

	if _, err := f.WriteString(v.editor.Value()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	_ = f.Close()

	v.extEditorPath = path
	v.extEditorBefore = v.editor.Value()

	id := v.id
	cmd := exec.Command(args[0], append(args[1:], path)...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return externalEditorDoneMsg{viewerID: id, err: err}
	}), nil
}

func (v *ScriptViewer) applyExternalEditorResult(msg externalEditorDoneMsg) {
	path := v.extEditorPath
	before := v.extEditorBefore

	v.extEditorPath = ""
	v.extEditorBefore = ""
	if strings.TrimSpace(path) == "" {
		return
	}
	defer func() { _ = os.Remove(path) }()

	if msg.err != nil {
		v.status = "Editor failed: " + msg.err.Error()
		return
	}

	b, err := os.ReadFile(path)
	if err != nil {
		v.status = "Editor read failed: " + err.Error()
		return
	}

	after := string(b)
	v.editor.SetValue(after)

	if after == before {
		v.status = fmt.Sprintf("No changes from %s", externalEditorName())
		return
	}
	v.status = fmt.Sprintf("Updated from %s (ctrl+s to save)", externalEditorName())
}

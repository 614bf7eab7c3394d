package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const viewStateFileName = "view_state.json"

// ViewState remembers, per viewer instance, what was selected and whether the pane was open,
// so relaunching the TUI restores the last screen.
//
// It is best effort: callers should tolerate missing/invalid data.
type ViewState struct {
	Version int `json:"version"`

	// Viewers is keyed by viewer id (the guid a viewer was created with).
	Viewers map[string]ViewerState `json:"viewers,omitempty"`

	// Focus is the id of the viewer that had focus.
	Focus string `json:"focus,omitempty"`
}

type ViewerState struct {
	SelectedPath string `json:"selectedPath,omitempty"`
	Shown        bool   `json:"shown,omitempty"`
}

func viewStatePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, viewStateFileName), nil
}

func LoadViewState() (*ViewState, error) {
	path, err := viewStatePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ViewState{Version: 1, Viewers: map[string]ViewerState{}}, nil
		}
		return nil, err
	}
	var st ViewState
	if err := json.Unmarshal(b, &st); err != nil {
		// Corrupted state is treated as missing.
		return &ViewState{Version: 1, Viewers: map[string]ViewerState{}}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	if st.Viewers == nil {
		st.Viewers = map[string]ViewerState{}
	}
	return &st, nil
}

func SaveViewState(st *ViewState) error {
	if st == nil {
		return nil
	}
	path, err := viewStatePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	for id := range st.Viewers {
		if strings.TrimSpace(id) == "" {
			delete(st.Viewers, id)
		}
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(filepath.Dir(path), viewStateFileName+".*.tmp", path, b, 0o644)
}

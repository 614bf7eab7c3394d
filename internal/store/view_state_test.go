package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestViewState_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRIPTVIEW_CONFIG_DIR", dir)

	st, err := LoadViewState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Version != 1 || len(st.Viewers) != 0 {
		t.Fatalf("unexpected initial state: %+v", st)
	}

	st.Viewers["a1"] = ViewerState{SelectedPath: "/srv/a.sh", Shown: true}
	st.Viewers[" "] = ViewerState{SelectedPath: "dropped"}
	st.Focus = "a1"
	if err := SaveViewState(st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadViewState()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Focus != "a1" || got.Viewers["a1"].SelectedPath != "/srv/a.sh" || !got.Viewers["a1"].Shown {
		t.Fatalf("unexpected state: %+v", got)
	}
	if _, ok := got.Viewers[" "]; ok {
		t.Fatalf("expected blank viewer id to be dropped")
	}
}

func TestViewState_CorruptedIsTreatedAsMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRIPTVIEW_CONFIG_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, viewStateFileName), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st, err := LoadViewState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Version != 1 || st.Viewers == nil {
		t.Fatalf("expected fresh state, got %+v", st)
	}
}

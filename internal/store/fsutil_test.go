package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteScriptFile_CreatesParentsAndKeepsMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deploy.sh")
	if err := WriteScriptFile(path, []byte("echo one\n")); err != nil {
		t.Fatalf("write new: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o644 {
		t.Fatalf("new file mode=%v, want 0644", st.Mode().Perm())
	}

	if err := os.Chmod(path, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := WriteScriptFile(path, []byte("echo two\n")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	st, _ = os.Stat(path)
	if st.Mode().Perm() != 0o755 {
		t.Fatalf("overwrite lost executable bit: %v", st.Mode().Perm())
	}
	b, _ := os.ReadFile(path)
	if string(b) != "echo two\n" {
		t.Fatalf("content=%q", string(b))
	}

	ents, _ := os.ReadDir(filepath.Dir(path))
	if len(ents) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(ents))
	}
}

func TestWriteScriptFile_RejectsDirectory(t *testing.T) {
	t.Parallel()

	if err := WriteScriptFile(t.TempDir(), []byte("x")); err == nil {
		t.Fatalf("expected error when writing over a directory")
	}
	if err := WriteScriptFile("  ", []byte("x")); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

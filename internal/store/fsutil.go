package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

// WriteScriptFile replaces path with content, creating parent directories as needed.
//
// The write goes through a temp file in the same directory and a rename, so readers never
// observe a half-written script. An existing file keeps its permission bits (scripts are
// usually executable); new files get 0o644.
func WriteScriptFile(path string, content []byte) error {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." {
		return errors.New("write script: missing path")
	}
	perm := os.FileMode(0o644)
	if st, err := os.Stat(path); err == nil {
		if st.IsDir() {
			return errors.New("write script: path is a directory: " + path)
		}
		perm = st.Mode().Perm()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return atomicWriteFile(dir, "."+filepath.Base(path)+".*.tmp", path, content, perm)
}

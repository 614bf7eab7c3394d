// Package scripts discovers runnable scripts under a root directory and keeps a cached,
// filesystem-watched catalog of them for the selector.
package scripts

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AnyExecutable is the file type that matches every executable file regardless of name.
const AnyExecutable = ".*"

// DefaultFileTypes is used when no file types are configured.
var DefaultFileTypes = []string{AnyExecutable}

type Script struct {
	// Path is the absolute path on the server; it is what the file endpoints expect.
	Path string `json:"path"`
	// Name is Path relative to the catalog root (slash separated), used as the label.
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// ParseFileTypes splits a whitespace separated list of suffixes (".sh .py .*").
func ParseFileTypes(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return append([]string(nil), DefaultFileTypes...)
	}
	return fields
}

// Matches reports whether a file with the given name and mode is a script for types.
func Matches(name string, mode fs.FileMode, types []string) bool {
	if len(types) == 0 {
		types = DefaultFileTypes
	}
	for _, t := range types {
		if t == AnyExecutable {
			if mode.IsRegular() && mode.Perm()&0o111 != 0 {
				return true
			}
			continue
		}
		if strings.HasSuffix(name, t) {
			return true
		}
	}
	return false
}

// Discover walks root recursively and returns every matching file sorted by Name.
func Discover(root string, types []string) ([]Script, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("scripts: missing root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, errors.New("scripts: root is not a directory: " + abs)
	}

	out := []Script{}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtrees are skipped; the root itself was checked above.
			if d != nil && d.IsDir() && path != abs {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !Matches(d.Name(), info.Mode(), types) {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			rel = d.Name()
		}
		out = append(out, Script{
			Path:    path,
			Name:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

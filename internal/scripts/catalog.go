package scripts

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watch waits for the filesystem to go quiet before it
// rescans.
const DefaultDebounce = 150 * time.Millisecond

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithDebounce sets the quiet period Watch waits for. Zero or less keeps the default.
func WithDebounce(d time.Duration) CatalogOption {
	return func(c *Catalog) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// Catalog caches Discover results for one root and rescans once a burst of filesystem
// changes has settled (see Watch).
type Catalog struct {
	root     string
	types    []string
	log      *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	scripts []Script
	stale   bool
}

func NewCatalog(root string, types []string, log *zap.Logger, opts ...CatalogOption) *Catalog {
	if len(types) == 0 {
		types = DefaultFileTypes
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Catalog{
		root:     strings.TrimSpace(root),
		types:    append([]string(nil), types...),
		log:      log,
		debounce: DefaultDebounce,
		stale:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) FileTypes() []string { return append([]string(nil), c.types...) }

// Scripts returns the current script list, rescanning first if the cache is stale.
func (c *Catalog) Scripts() ([]Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale || c.scripts == nil {
		found, err := Discover(c.root, c.types)
		if err != nil {
			return nil, err
		}
		c.scripts = found
		c.stale = false
		c.log.Debug("catalog rescanned", zap.String("root", c.root), zap.Int("scripts", len(found)))
	}
	return append([]Script(nil), c.scripts...), nil
}

// Invalidate marks the cache stale; the next Scripts call rescans.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Watch rescans the catalog once changes under the root have been quiet for the
// debounce period. It blocks until ctx is done or the watcher fails.
func (c *Catalog) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addTree(w, c.root); err != nil {
		return err
	}

	settle := time.NewTimer(c.debounce)
	settle.Stop()
	defer settle.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						c.log.Warn("watch new directory", zap.String("dir", ev.Name), zap.Error(err))
					}
				}
			}
			settle.Reset(c.debounce)
			pending = true
		case <-settle.C:
			if !pending {
				continue
			}
			pending = false
			c.refresh()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				settle.Reset(c.debounce)
				pending = true
				continue
			}
			c.log.Warn("catalog watcher", zap.Error(err))
		}
	}
}

// refresh drops the cache and rescans right away so the next request is served warm.
func (c *Catalog) refresh() {
	c.Invalidate()
	if _, err := c.Scripts(); err != nil {
		c.log.Warn("catalog rescan", zap.String("root", c.root), zap.Error(err))
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
}

// Package web serves the scriptApi endpoints the viewer talks to.
package web

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scriptview/internal/scripts"
	"scriptview/internal/store"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// maxUpdateBytes caps the request body of updateFile.
const maxUpdateBytes = 16 << 20

type ServerConfig struct {
	Addr string
	// Root is the directory scripts are discovered under; relative request paths resolve
	// against it.
	Root      string
	FileTypes []string
	// Prefix mounts the API below a path (e.g. "/ci" serves /ci/scriptApi/file).
	Prefix   string
	ReadOnly bool

	// Journal, when set, records every successful write.
	Journal *store.Journal
	Logger  *zap.Logger
}

type Server struct {
	cfg     ServerConfig
	catalog *scripts.Catalog
	journal *store.Journal
	log     *zap.Logger
	now     func() time.Time
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.Root = strings.TrimSpace(cfg.Root)
	cfg.Prefix = "/" + strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if cfg.Prefix == "/" {
		cfg.Prefix = ""
	}
	if cfg.Root == "" {
		return nil, errors.New("web: root is empty")
	}
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, errors.New("web: root is not a directory: " + abs)
	}
	cfg.Root = abs
	if len(cfg.FileTypes) == 0 {
		cfg.FileTypes = scripts.DefaultFileTypes
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Server{
		cfg:     cfg,
		catalog: scripts.NewCatalog(abs, cfg.FileTypes, log.Named("catalog")),
		journal: cfg.Journal,
		log:     log,
		now:     time.Now,
	}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Root() string { return s.cfg.Root }

// Catalog exposes the script catalog so the caller can run its watcher.
func (s *Server) Catalog() *scripts.Catalog { return s.catalog }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /scriptApi/file", s.handleFile)
	mux.HandleFunc("POST /scriptApi/updateFile", s.handleUpdateFile)
	mux.HandleFunc("GET /scriptApi/scripts", s.handleScripts)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})

	var h http.Handler = mux
	if s.cfg.Prefix != "" {
		h = http.StripPrefix(s.cfg.Prefix, mux)
	}
	return s.logRequests(h)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// resolvePath maps a request path onto the filesystem. Relative paths resolve against
// Root; absolute paths are used as given.
func (s *Server) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.cfg.Root, p)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if strings.TrimSpace(p) == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	path := s.resolvePath(p)

	f, err := os.Open(path)
	if err != nil {
		s.writeFSError(w, "read", path, err)
		return
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.IsDir() {
		http.Error(w, "path is a directory", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, f); err != nil {
		s.log.Warn("stream file", zap.String("path", path), zap.Error(err))
	}
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadOnly {
		http.Error(w, "server is read-only", http.StatusForbidden)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBytes)
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.log.Warn("update rejected", zap.Int64("limit", maxErr.Limit), zap.String("remote", r.RemoteAddr))
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	p := r.PostForm.Get("path")
	if strings.TrimSpace(p) == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	content := []byte(r.PostForm.Get("content"))
	path := s.resolvePath(p)

	if err := store.WriteScriptFile(path, content); err != nil {
		s.writeFSError(w, "write", path, err)
		return
	}
	s.catalog.Invalidate()

	if s.journal != nil {
		if _, err := s.journal.Record(r.Context(), path, content, r.RemoteAddr, s.now()); err != nil {
			// The file is already written; a journal failure must not turn the save into an error.
			s.log.Error("journal record", zap.String("path", path), zap.Error(err))
		}
	}
	s.log.Info("script saved", zap.String("path", path), zap.Int("bytes", len(content)), zap.String("remote", r.RemoteAddr))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScripts(w http.ResponseWriter, r *http.Request) {
	all, err := s.catalog.Scripts()
	if err != nil {
		s.log.Error("list scripts", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b, err := json.Marshal(map[string]any{"data": all})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

func (s *Server) writeFSError(w http.ResponseWriter, op, path string, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "not found: "+path, http.StatusNotFound)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "permission denied: "+path, http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
	s.log.Warn(op+" failed", zap.String("path", path), zap.Error(err))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("took", s.now().Sub(start)),
		)
	})
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"scriptview/internal/scripts"
	"scriptview/internal/store"
	"scriptview/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultAddr = "127.0.0.1:8088"

func newServeCmd(app *App) *cobra.Command {
	var (
		addr        string
		root        string
		fileTypes   string
		prefix      string
		journalPath string
		noJournal   bool
		readOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a scripts directory over the scriptApi endpoints",
		Long: strings.TrimSpace(`
Serve a scripts directory over HTTP:

  GET  /scriptApi/file?path=<path>      raw file content
  POST /scriptApi/updateFile            form fields path, content
  GET  /scriptApi/scripts               discovered scripts (JSON)

Relative paths resolve against --root. Every successful write is recorded in a local
sqlite journal (see ` + "`scriptview journal`" + `).
`),
		Example: strings.TrimSpace(`
scriptview serve --root ./scripts
scriptview serve --root /opt/ci --file-types ".sh .py" --addr :8088 --read-only
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			addr = firstNonEmpty(addr, cfg.Addr, defaultAddr)
			root = firstNonEmpty(root, cfg.Root, ".")
			types := scripts.ParseFileTypes(firstNonEmpty(fileTypes, cfg.FileTypes))

			log, err := app.logger("stderr")
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var journal *store.Journal
			if !noJournal {
				if strings.TrimSpace(journalPath) == "" {
					if journalPath, err = store.DefaultJournalPath(); err != nil {
						return writeErr(cmd, err)
					}
				}
				journal, err = store.OpenJournal(ctx, journalPath)
				if err != nil {
					return writeErr(cmd, fmt.Errorf("open journal: %w", err))
				}
				defer func() { _ = journal.Close() }()
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:      addr,
				Root:      root,
				FileTypes: types,
				Prefix:    prefix,
				ReadOnly:  readOnly,
				Journal:   journal,
				Logger:    log,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + srvPrefix(prefix) + "/"

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"root":      srv.Root(),
					"fileTypes": srv.Catalog().FileTypes(),
					"readOnly":  readOnly,
					"journal":   journalPath,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": []string{"scriptview --base-url " + url + " view"},
			})
			log.Info("serving scripts", zap.String("url", url), zap.String("root", srv.Root()), zap.Bool("readOnly", readOnly))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Serve(gctx, ln) })
			g.Go(func() error {
				err := srv.Catalog().Watch(gctx)
				if err != nil && !errors.Is(err, context.Canceled) {
					// The listing still works without a watcher; it just rescans on demand.
					log.Warn("catalog watcher stopped", zap.Error(err))
				}
				return nil
			})
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			log.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("SCRIPTVIEW_ADDR", ""), "Bind address (host:port or :port; default: addr from config, else "+defaultAddr+")")
	cmd.Flags().StringVar(&root, "root", envOr("SCRIPTVIEW_ROOT", ""), "Scripts directory (default: root from config, else .)")
	cmd.Flags().StringVar(&fileTypes, "file-types", envOr("SCRIPTVIEW_FILE_TYPES", ""), "Whitespace separated suffixes; \".*\" means any executable file")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Mount the endpoints under this path prefix")
	cmd.Flags().StringVar(&journalPath, "journal", envOr("SCRIPTVIEW_JOURNAL", ""), "Save journal (sqlite) path (default: ~/.scriptview/journal.sqlite)")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record saves")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Reject updateFile requests")
	return cmd
}

func srvPrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

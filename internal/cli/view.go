package cli

import (
	"errors"
	"os"
	"strings"

	"scriptview/internal/highlight"
	"scriptview/internal/store"
	"scriptview/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type viewOptions struct {
	paths   []string
	ids     []string
	noState bool
}

func newViewCmd(app *App) *cobra.Command {
	var opts viewOptions

	cmd := &cobra.Command{
		Use:   "view [path...]",
		Short: "Open the interactive script viewer",
		Long: strings.TrimSpace(`
Open the interactive script viewer.

The selector lists the scripts the server offers plus any paths given as arguments.
enter shows or hides the selected script, e edits it and ctrl+s saves it back.
Each viewer is addressed by an id; --id opens specific viewers (repeatable) and the
last selection of every viewer is restored on the next start.
`),
		Example: strings.TrimSpace(`
scriptview view
scriptview view /opt/ci/scripts/deploy.sh
scriptview view --id build --id release
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.paths = append(opts.paths, args...)
			return runView(cmd, app, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.ids, "id", nil, "Viewer id to open (repeatable)")
	cmd.Flags().BoolVar(&opts.noState, "no-state", false, "Do not restore or save viewer selections")
	return cmd
}

func runView(cmd *cobra.Command, app *App, opts viewOptions) error {
	switch strings.TrimSpace(app.LogFile) {
	case "-", "stderr":
		return writeErr(cmd, errors.New("view: cannot log to stderr while drawing on the terminal; use a file"))
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return writeErr(cmd, errors.New("view: needs an interactive terminal (use `scriptview scripts cat` in pipes)"))
	}
	log, err := app.logger("")
	if err != nil {
		return writeErr(cmd, err)
	}
	defer func() { _ = log.Sync() }()

	client, err := app.newClient(log.Named("scriptapi"))
	if err != nil {
		return writeErr(cmd, err)
	}
	cfg, err := app.config()
	if err != nil {
		return writeErr(cmd, err)
	}

	hl := highlight.New(cfg.HighlightStyle)
	topts := tui.Options{
		Files:       client,
		Lister:      client,
		Highlighter: hl,
		Logger:      log,
		Paths:       opts.paths,
		IDs:         opts.ids,
	}
	if !opts.noState {
		st, err := store.LoadViewState()
		if err != nil {
			log.Warn("loading view state failed", zap.Error(err))
		} else {
			topts.State = st
			topts.SaveState = store.SaveViewState
		}
	}

	log.Info("viewer starting", zap.String("baseUrl", client.BaseURL()), zap.String("style", hl.Style()))
	if err := tui.Run(cmd.Context(), topts); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

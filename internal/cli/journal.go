package cli

import (
	"errors"
	"os"
	"strings"

	"scriptview/internal/store"

	"github.com/spf13/cobra"
)

func newJournalCmd(app *App) *cobra.Command {
	var (
		journalPath string
		path        string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show saves recorded by `scriptview serve` on this machine",
		Example: strings.TrimSpace(`
scriptview journal
scriptview journal --path /opt/ci/scripts/deploy.sh --limit 5
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(journalPath) == "" {
				p, err := store.DefaultJournalPath()
				if err != nil {
					return writeErr(cmd, err)
				}
				journalPath = p
			}
			if _, err := os.Stat(journalPath); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return writeErr(cmd, errNotFound("journal", journalPath))
				}
				return writeErr(cmd, err)
			}

			j, err := store.OpenJournal(cmd.Context(), journalPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = j.Close() }()

			entries, err := j.Recent(cmd.Context(), path, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": entries,
				"meta": map[string]any{"journal": journalPath, "limit": limit},
			})
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", envOr("SCRIPTVIEW_JOURNAL", ""), "Journal (sqlite) path (default: ~/.scriptview/journal.sqlite)")
	cmd.Flags().StringVar(&path, "path", "", "Only show saves of this absolute path")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")
	return cmd
}

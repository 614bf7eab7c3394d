package tui

import (
	"context"
	"errors"

	"scriptview/internal/termtheme"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive viewer and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.Files == nil {
		return errors.New("tui: no file endpoint configured")
	}
	termtheme.Apply()

	m := newAppModel(opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

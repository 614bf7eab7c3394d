package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"scriptview/internal/scriptapi"

	"github.com/spf13/cobra"
)

func newScriptsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List, read and write scripts on the server",
	}
	cmd.AddCommand(newScriptsListCmd(app))
	cmd.AddCommand(newScriptsCatCmd(app))
	cmd.AddCommand(newScriptsPutCmd(app))
	return cmd
}

func newScriptsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scripts the server offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.newClient(nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			list, err := client.Scripts(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": list})
		},
	}
}

func newScriptsCatCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a script's content",
		Long: strings.TrimSpace(`
Print a script's content exactly as the server returns it.

With --json the content is wrapped in the usual {"data": ...} envelope instead.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.newClient(nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			path := args[0]
			text, err := client.File(cmd.Context(), path)
			if err != nil {
				if scriptapi.IsNotFound(err) {
					return writeErr(cmd, errNotFound("script", path))
				}
				return writeErr(cmd, err)
			}
			if asJSON {
				return writeOut(cmd, app, map[string]any{
					"data": map[string]any{"path": path, "content": text},
				})
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Wrap the content in a JSON/YAML envelope")
	return cmd
}

func newScriptsPutCmd(app *App) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "Replace a script's content (from --file or stdin)",
		Example: strings.TrimSpace(`
scriptview scripts put deploy.sh --file ./deploy.sh
echo 'echo hi' | scriptview scripts put hello.sh
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				b   []byte
				err error
			)
			switch strings.TrimSpace(from) {
			case "", "-":
				b, err = io.ReadAll(cmd.InOrStdin())
			default:
				b, err = os.ReadFile(from)
			}
			if err != nil {
				return writeErr(cmd, err)
			}

			client, err := app.newClient(nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			path := args[0]
			if strings.TrimSpace(path) == "" {
				return writeErr(cmd, errors.New("put: empty path"))
			}
			if err := client.UpdateFile(cmd.Context(), path, string(b)); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"path": path, "bytes": len(b)},
			})
		},
	}
	cmd.Flags().StringVar(&from, "file", "", "Read content from this file (default: stdin)")
	return cmd
}

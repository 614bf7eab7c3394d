package cli

import (
	"strings"

	"scriptview/internal/scriptapi"
	"scriptview/internal/store"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change ~/.scriptview/config.json",
		Long: strings.TrimSpace(`
Show or change the user config.

Keys: ` + strings.Join(store.ConfigKeys(), ", ") + `

Flags and SCRIPTVIEW_* environment variables take precedence over the file.
`),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the config and where it lives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			path, err := store.ConfigPath()
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": cfg,
				"meta": map[string]any{"path": path},
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"key": args[0], "value": v},
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one config value (empty value clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(args[0]) == "baseUrl" && strings.TrimSpace(args[1]) != "" {
				if _, err := scriptapi.NormalizeBaseURL(args[1]); err != nil {
					return writeErr(cmd, err)
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			v, _ := cfg.Get(args[0])
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"key": args[0], "value": v},
			})
		},
	})

	return cmd
}

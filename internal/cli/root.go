package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"scriptview/internal/format"
	"scriptview/internal/logging"
	"scriptview/internal/scriptapi"
	"scriptview/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	BaseURL    string
	PrettyJSON bool
	Format     string
	LogFile    string
	LogLevel   string
	LogDev     bool

	cfg *store.Config
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "scriptview",
		Short:        "View and edit server side scripts from the terminal",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Open the viewer against a server
  scriptview --base-url https://ci.example.com/ view

  # Open the viewer on a path (shortcut for: scriptview view <path>; any first
  # argument that is not a subcommand is taken as a path)
  scriptview /opt/ci/scripts/deploy.sh
  scriptview deploy

  # Serve a scripts directory for the viewer
  scriptview serve --root ./scripts --addr 127.0.0.1:8088

  # Scriptable access
  scriptview scripts list
  scriptview scripts cat deploy.sh
  scriptview run deploy.sh --param staging
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive viewer.
			return runView(cmd, app, viewOptions{})
		},
	}

	cmd.PersistentFlags().StringVar(&app.BaseURL, "base-url", envOr("SCRIPTVIEW_BASE_URL", ""), "Server base URL the scriptApi endpoints live under (default: baseUrl from config)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SCRIPTVIEW_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log", envOr(logging.EnvFile, ""), "Log file (\"-\" for stderr; default: no logging for the viewer, stderr for serve)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr(logging.EnvLevel, "info"), "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.LogDev, "log-dev", envBool(logging.EnvDev), "Human-readable console log lines instead of JSON")

	cmd.AddCommand(newViewCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newScriptsCmd(app))
	cmd.AddCommand(newRunCmd(app))
	cmd.AddCommand(newJournalCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

// config loads ~/.scriptview/config.json once per invocation.
func (app *App) config() (*store.Config, error) {
	if app.cfg != nil {
		return app.cfg, nil
	}
	cfg, err := store.LoadConfig()
	if err != nil {
		return nil, err
	}
	app.cfg = cfg
	return cfg, nil
}

// resolveBaseURL applies flag > env > config precedence.
func (app *App) resolveBaseURL() (string, error) {
	if v := strings.TrimSpace(app.BaseURL); v != "" {
		return v, nil
	}
	cfg, err := app.config()
	if err != nil {
		return "", err
	}
	if v := strings.TrimSpace(cfg.BaseURL); v != "" {
		return v, nil
	}
	return "", errMissingBaseURL
}

func (app *App) newClient(log *zap.Logger) (*scriptapi.Client, error) {
	base, err := app.resolveBaseURL()
	if err != nil {
		return nil, err
	}
	return scriptapi.NewClient(base, scriptapi.WithLogger(log))
}

// logger builds the command's logger. fallback is used when no log file was asked for.
func (app *App) logger(fallback string) (*zap.Logger, error) {
	file := strings.TrimSpace(app.LogFile)
	if file == "" {
		file = fallback
	}
	return logging.New(logging.Options{Level: app.LogLevel, File: file, Dev: app.LogDev})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k)))
	return err == nil && v
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

package cli

import (
	"fmt"
	"os"
	"strings"

	"scriptview/internal/runner"
	"scriptview/internal/scriptapi"

	"github.com/spf13/cobra"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		params        []string
		envs          []string
		dir           string
		errorMode     string
		errorRange    string
		unstableMode  string
		unstableRange string
		injectProps   string
		tty           bool
	)

	modes := make([]string, len(runner.Modes))
	for i, m := range runner.Modes {
		modes[i] = string(m)
	}

	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Run a server side script locally and report its result",
		Long: strings.TrimSpace(`
Fetch a script from the server, run it from a private temp copy and report the exit
code as success, unstable or failure.

Each --param is passed as one argument; $NAME and ${NAME} expand against the script's
environment. The script's output goes to stderr so stdout carries only the report.

Failure is checked before unstable. Modes: ` + strings.Join(modes, "|") + `.
less-than, greater-than and exactly take one integer; custom takes codes and inclusive
spans such as "1,3>5". A failure result makes the command exit non-zero.
`),
		Example: strings.TrimSpace(`
scriptview run deploy.sh --param '$BUILD_ID' --param staging
scriptview run nightly.sh --error-mode greater-than --error-range 10 --unstable-mode custom --unstable-range 1,3>5
scriptview run version.sh --inject-properties build.properties
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failure, err := parseRule(errorMode, errorRange)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("--error-mode: %w", err))
			}
			unstable, err := parseRule(unstableMode, unstableRange)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("--unstable-mode: %w", err))
			}
			env := os.Environ()
			for _, kv := range envs {
				if !strings.Contains(kv, "=") {
					return writeErr(cmd, fmt.Errorf("--env %q: want KEY=VALUE", kv))
				}
				env = append(env, kv)
			}

			log, err := app.logger("")
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = log.Sync() }()

			client, err := app.newClient(log)
			if err != nil {
				return writeErr(cmd, err)
			}

			path := args[0]
			rep, err := runner.Run(cmd.Context(), client, runner.Options{
				Path:             path,
				Params:           params,
				Env:              env,
				Dir:              dir,
				Failure:          failure,
				Unstable:         unstable,
				InjectProperties: injectProps,
				TTY:              tty,
				Stdout:           cmd.ErrOrStderr(),
				Stderr:           cmd.ErrOrStderr(),
				Logger:           log,
			})
			if err != nil && rep == nil {
				if scriptapi.IsNotFound(err) {
					return writeErr(cmd, errNotFound("script", path))
				}
				return writeErr(cmd, err)
			}
			if werr := writeOut(cmd, app, map[string]any{"data": rep}); werr != nil {
				return werr
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if rep.Result == runner.Failure {
				return writeErr(cmd, scriptFailedError{path: path, code: rep.ExitCode})
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "Argument passed to the script (repeatable)")
	cmd.Flags().StringArrayVar(&envs, "env", nil, "Extra KEY=VALUE for the script's environment (repeatable)")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory (default: current directory)")
	cmd.Flags().StringVar(&errorMode, "error-mode", string(runner.ModeNonZero), "When the exit code means failure ("+strings.Join(modes, "|")+")")
	cmd.Flags().StringVar(&errorRange, "error-range", "", "Range for --error-mode")
	cmd.Flags().StringVar(&unstableMode, "unstable-mode", string(runner.ModeNone), "When the exit code means unstable ("+strings.Join(modes, "|")+")")
	cmd.Flags().StringVar(&unstableRange, "unstable-range", "", "Range for --unstable-mode")
	cmd.Flags().StringVar(&injectProps, "inject-properties", "", "Properties file (relative to --dir) to read back after the run")
	cmd.Flags().BoolVar(&tty, "tty", false, "Run the script on a pseudo-terminal")
	return cmd
}

func parseRule(mode, rng string) (runner.Rule, error) {
	m, err := runner.ParseMode(mode)
	if err != nil {
		return runner.Rule{}, err
	}
	r := runner.Rule{Mode: m, Range: rng}
	if err := r.Validate(); err != nil {
		return runner.Rule{}, err
	}
	return r, nil
}

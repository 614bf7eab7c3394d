// Package runner executes a server side script locally and turns its exit code into a
// Result.
//
// The script is fetched through the file endpoint, copied to an executable temp file
// and run with the given parameters, one argument each. Parameters may reference the
// script's environment as $NAME or ${NAME}.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scriptview/internal/logging"

	"github.com/magiconair/properties"
	"go.uber.org/zap"
)

// Source reads a script's content. *scriptapi.Client satisfies it.
type Source interface {
	File(ctx context.Context, path string) (string, error)
}

type Options struct {
	Path   string
	Params []string
	// Env is the script's environment. Nil inherits the current process environment.
	Env []string
	// Dir is the working directory. Empty means the current directory.
	Dir string

	Failure  Rule
	Unstable Rule

	// InjectProperties names a Java properties file, relative to Dir, that the script
	// writes. Its entries are returned in Report.Properties.
	InjectProperties string

	// TTY runs the script on a pseudo-terminal; its stdout and stderr both go to Stdout.
	TTY bool

	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

type Report struct {
	Path       string            `json:"path"`
	Args       []string          `json:"args"`
	ExitCode   int               `json:"exitCode"`
	Result     Result            `json:"result"`
	StartedAt  time.Time         `json:"startedAt"`
	DurationMs int64             `json:"durationMs"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Run fetches and executes opts.Path. A non-zero exit is not an error: it is reported
// through Report.ExitCode and Report.Result. Errors mean the script could not be run,
// or its properties file could not be read (the Report is still returned then).
func Run(ctx context.Context, src Source, opts Options) (*Report, error) {
	if err := opts.Failure.Validate(); err != nil {
		return nil, fmt.Errorf("runner: failure rule: %w", err)
	}
	if err := opts.Unstable.Validate(); err != nil {
		return nil, fmt.Errorf("runner: unstable rule: %w", err)
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, errors.New("runner: empty path")
	}
	if src == nil {
		return nil, errors.New("runner: no script source")
	}
	log := logging.OrNop(opts.Logger).With(zap.String("path", path))

	body, err := src.File(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("runner: fetch %s: %w", path, err)
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	args := ExpandParams(opts.Params, env)

	local, err := writeExecutable(path, body)
	if err != nil {
		return nil, fmt.Errorf("runner: copy %s: %w", path, err)
	}
	defer func() {
		if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("remove temp script", zap.String("file", local), zap.Error(err))
		}
	}()

	cmd := exec.CommandContext(ctx, local, args...)
	cmd.Dir = opts.Dir
	cmd.Env = env

	stdout, stderr := orDiscard(opts.Stdout), orDiscard(opts.Stderr)
	log.Info("executing", zap.String("command", commandLine(path, args)), zap.Bool("tty", opts.TTY))

	started := time.Now()
	if opts.TTY {
		err = runOnPTY(cmd, stdout)
	} else {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		err = cmd.Run()
	}
	elapsed := time.Since(started)

	code := 0
	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		return nil, fmt.Errorf("runner: %s: %w", path, ctx.Err())
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
	case err != nil:
		return nil, fmt.Errorf("runner: run %s: %w", path, err)
	}

	result, err := Classify(code, opts.Failure, opts.Unstable)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	if code != 0 {
		log.Warn("script exited", zap.Int("exitCode", code), zap.String("result", string(result)))
	} else {
		log.Info("script finished", zap.Duration("took", elapsed))
	}

	rep := &Report{
		Path:       path,
		Args:       args,
		ExitCode:   code,
		Result:     result,
		StartedAt:  started.UTC(),
		DurationMs: elapsed.Milliseconds(),
	}

	if name := strings.TrimSpace(opts.InjectProperties); name != "" {
		file := name
		if !filepath.IsAbs(file) {
			file = filepath.Join(opts.Dir, file)
		}
		props, err := LoadProperties(file)
		if err != nil {
			return rep, fmt.Errorf("runner: inject properties: %w", err)
		}
		for k, v := range props {
			log.Debug("injected property", zap.String("key", k), zap.String("value", v))
		}
		rep.Properties = props
	}
	return rep, nil
}

// ExpandParams expands $NAME and ${NAME} in every parameter against env. Unknown names
// expand to the empty string.
func ExpandParams(params, env []string) []string {
	vars := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = os.Expand(p, func(name string) string { return vars[name] })
	}
	return out
}

// LoadProperties reads a Java properties file. Values are taken literally; ${...}
// references are not expanded.
func LoadProperties(file string) (map[string]string, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadFile(file)
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}

// writeExecutable copies body to a private temp file named after the script, so
// interpreters that look at the extension still work.
func writeExecutable(path, body string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	prefix, suffix := name, ""
	if i := strings.Index(name, "."); i >= 0 {
		prefix, suffix = name[:i], name[i:]
	}
	if len(prefix) <= 3 {
		prefix = "tmp" + prefix
	}

	f, err := os.CreateTemp("", prefix+"-*"+suffix)
	if err != nil {
		return "", err
	}
	local := f.Name()
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		_ = os.Remove(local)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(local)
		return "", err
	}
	if err := os.Chmod(local, 0o700); err != nil {
		_ = os.Remove(local)
		return "", err
	}
	return local, nil
}

// commandLine renders the invocation so it can be pasted into a shell.
func commandLine(path string, args []string) string {
	var b strings.Builder
	b.WriteString(path)
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(a))
	}
	return b.String()
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// Package logging builds the zap loggers used by scriptview.
//
// The TUI draws on the terminal, so it must never log to stdout/stderr. It logs to the
// file named by SCRIPTVIEW_LOG (when set) and discards otherwise. The server logs JSON
// to stderr.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvFile names the env var that enables file logging for the TUI.
const EnvFile = "SCRIPTVIEW_LOG"

// EnvLevel overrides the log level (debug|info|warn|error).
const EnvLevel = "SCRIPTVIEW_LOG_LEVEL"

// EnvDev switches to console output when set to a true value.
const EnvDev = "SCRIPTVIEW_LOG_DEV"

type Options struct {
	// Level is one of debug|info|warn|error. Empty means info.
	Level string
	// File is a path to append to. "-" or "stderr" means stderr. Empty means discard.
	File string
	// Dev switches to the human-readable console encoder.
	Dev bool
}

func New(opts Options) (*zap.Logger, error) {
	dest := strings.TrimSpace(opts.File)
	if dest == "" {
		return zap.NewNop(), nil
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if opts.Dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true

	switch dest {
	case "-", "stderr":
		cfg.OutputPaths = []string{"stderr"}
	default:
		cfg.OutputPaths = []string{dest}
	}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, err
	}
	return lvl, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

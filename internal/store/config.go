package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Config is the user-level configuration stored at ~/.scriptview/config.json.
//
// Precedence (highest first): command-line flags, SCRIPTVIEW_* env vars, this file.
type Config struct {
	// BaseURL is the server root the scriptApi endpoints hang off (e.g. https://ci.example.com/).
	BaseURL string `json:"baseUrl,omitempty"`

	// Root is the directory `scriptview serve` discovers scripts under.
	Root string `json:"root,omitempty"`

	// FileTypes is a whitespace separated suffix list (".sh .py"); ".*" means any executable.
	FileTypes string `json:"fileTypes,omitempty"`

	// Addr is the default bind address for `scriptview serve`.
	Addr string `json:"addr,omitempty"`

	// HighlightStyle is a chroma style name. Empty picks one for the terminal background.
	HighlightStyle string `json:"highlightStyle,omitempty"`
}

var configKeys = map[string]func(*Config) *string{
	"baseUrl":        func(c *Config) *string { return &c.BaseURL },
	"root":           func(c *Config) *string { return &c.Root },
	"fileTypes":      func(c *Config) *string { return &c.FileTypes },
	"addr":           func(c *Config) *string { return &c.Addr },
	"highlightStyle": func(c *Config) *string { return &c.HighlightStyle },
}

// ConfigKeys lists the keys accepted by Get/Set, sorted.
func ConfigKeys() []string {
	out := make([]string, 0, len(configKeys))
	for k := range configKeys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type unknownKeyError struct{ key string }

func (e unknownKeyError) Error() string {
	return fmt.Sprintf("unknown config key: %s (expected one of: %s)", e.key, strings.Join(ConfigKeys(), ", "))
}

func (c *Config) Get(key string) (string, error) {
	f, ok := configKeys[strings.TrimSpace(key)]
	if !ok {
		return "", unknownKeyError{key: key}
	}
	return *f(c), nil
}

func (c *Config) Set(key, value string) error {
	f, ok := configKeys[strings.TrimSpace(key)]
	if !ok {
		return unknownKeyError{key: key}
	}
	*f(c) = strings.TrimSpace(value)
	return nil
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.scriptview).
	if v := strings.TrimSpace(os.Getenv("SCRIPTVIEW_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".scriptview"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadConfig returns the stored config, or an empty one when the file does not exist.
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("save config: nil config")
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Keep a copy of the previous config so an accidental overwrite is recoverable.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, "config.json.bak.*.tmp", path+".bak", prev, 0o644)
	}

	// Unique temp name + rename: the CLI and a running TUI may write concurrently.
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

package main

import (
	"os"
	"strings"

	"scriptview/internal/cli"

	"github.com/spf13/cobra"
)

// subcommandNames lists every token cobra dispatches on, including the help and
// completion commands it only adds at Execute time.
func subcommandNames(root *cobra.Command) map[string]bool {
	names := map[string]bool{"help": true, "completion": true}
	for _, c := range root.Commands() {
		names[c.Name()] = true
		for _, a := range c.Aliases {
			names[a] = true
		}
	}
	return names
}

// rewriteDirectViewArgs turns `scriptview <path>` into `scriptview view <path>`. Any
// first positional token that is not a subcommand is taken as a path, so extensionless
// scripts (`scriptview deploy`) work too.
func rewriteDirectViewArgs(argv []string, commands map[string]bool) []string {
	// Cobra treats the first non-flag token as a subcommand, so argv is rewritten before
	// parsing. Persistent flags may come first (`scriptview --base-url ... <path>`), so
	// look for the first positional token, not argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--base-url":  true,
		"--format":    true,
		"--log":       true,
		"--log-level": true,
	}
	boolFlags := map[string]bool{
		"--pretty":  true,
		"--log-dev": true,
	}

	isPath := func(s string) bool {
		s = strings.TrimSpace(s)
		return s != "" && !commands[s]
	}
	insertView := func(at int) []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:at]...)
		out = append(out, "view")
		return append(out, argv[at:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		switch {
		case a == "":
			continue
		case a == "--":
			if i+1 < len(argv) && isPath(argv[i+1]) {
				return insertView(i)
			}
			return argv
		case strings.HasPrefix(a, "-"):
			// Unknown flags are skipped without consuming a value so a path is never eaten.
			if !strings.Contains(a, "=") && !boolFlags[a] && valueFlags[a] {
				i++
			}
			continue
		case isPath(a):
			return insertView(i)
		default:
			return argv
		}
	}
	return argv
}

func main() {
	cmd := cli.NewRootCmd()
	os.Args = rewriteDirectViewArgs(os.Args, subcommandNames(cmd))

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

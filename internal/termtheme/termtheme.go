// Package termtheme resolves the terminal's background and color profile. The viewer
// and the highlighter both read it so panes and highlighted sources agree.
package termtheme

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// EnvTheme forces the background: light, dark or auto.
const EnvTheme = "SCRIPTVIEW_THEME"

// FromEnv resolves the background from SCRIPTVIEW_THEME, then COLORFGBG ("fg;bg", where
// xterm colors 0-6 are dark). ok is false when neither decides.
func FromEnv(getenv func(string) string) (dark, ok bool) {
	switch strings.ToLower(strings.TrimSpace(getenv(EnvTheme))) {
	case "light":
		return false, true
	case "dark":
		return true, true
	}

	v := strings.TrimSpace(getenv("COLORFGBG"))
	if v == "" {
		return false, false
	}
	parts := strings.Split(v, ";")
	bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil || bg < 0 {
		return false, false
	}
	return bg < 7, true
}

// Terminal queries can block, so the fallback runs at most once per process.
var detectedDark = sync.OnceValue(func() bool {
	if runtime.GOOS == "darwin" {
		if dark, ok := macOSDarkAppearance(); ok {
			return dark
		}
	}
	return lipgloss.HasDarkBackground()
})

// Dark reports whether the terminal background is dark.
func Dark() bool {
	if dark, ok := FromEnv(os.Getenv); ok {
		return dark
	}
	return detectedDark()
}

// Profile adjusts a detected color profile. NO_COLOR wins; otherwise TERM/COLORTERM are
// trusted when they claim more than the detector reported. CLICOLOR is ignored because
// it would strip colors from a full-screen program.
func Profile(getenv func(string) string, detected termenv.Profile) termenv.Profile {
	if strings.TrimSpace(getenv("NO_COLOR")) != "" {
		return termenv.Ascii
	}
	term := strings.ToLower(strings.TrimSpace(getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(getenv("COLORTERM")))
	switch {
	case strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit"):
		if detected != termenv.Ascii {
			return termenv.TrueColor
		}
	case strings.Contains(term, "256color") && (detected == termenv.Ascii || detected == termenv.ANSI):
		return termenv.ANSI256
	}
	return detected
}

// Apply configures lipgloss for an interactive session.
func Apply() {
	lipgloss.SetColorProfile(Profile(os.Getenv, termenv.ColorProfile()))
	lipgloss.SetHasDarkBackground(Dark())
}

// macOSDarkAppearance asks the system appearance. `defaults read -g AppleInterfaceStyle`
// prints "Dark" in dark mode and exits 1 in light mode.
func macOSDarkAppearance() (dark, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	out, err := exec.CommandContext(ctx, "defaults", "read", "-g", "AppleInterfaceStyle").CombinedOutput()
	if ctx.Err() != nil {
		return false, false
	}
	if err == nil {
		return strings.Contains(strings.ToLower(string(out)), "dark"), true
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() == 1 {
		return false, true
	}
	return false, false
}

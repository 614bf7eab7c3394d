package highlight

import (
	"strings"
	"sync"

	"scriptview/internal/termtheme"

	"github.com/charmbracelet/glamour"
)

var (
	mdRendererMu sync.Mutex
	// Cache renderers by wrap width + style. WithAutoStyle can block on terminal
	// background queries, so a fixed style is resolved up front instead.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

func renderMarkdown(md string, width int) (string, bool) {
	if strings.TrimSpace(md) == "" {
		return md, true
	}
	if width < 10 {
		width = 10
	}

	style := markdownStyle()
	key := style + ":" + fmtInt(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	mdRendererMu.Unlock()

	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", false
		}
		mdRendererMu.Lock()
		// Re-check in case a concurrent goroutine filled it.
		if existing := mdRenderers[key]; existing != nil {
			r = existing
		} else {
			mdRenderers[key] = rr
			r = rr
		}
		mdRendererMu.Unlock()
	}

	out, err := r.Render(md)
	if err != nil {
		return "", false
	}
	return strings.TrimRight(out, "\n"), true
}

// markdownStyle picks glamour's "light" or "dark" standard style.
func markdownStyle() string {
	if termtheme.Dark() {
		return "dark"
	}
	return "light"
}

// StyleForBackground returns the default chroma style for the terminal background.
func StyleForBackground() string {
	if termtheme.Dark() {
		return "monokai"
	}
	return "github"
}

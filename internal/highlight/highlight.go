// Package highlight renders script sources for the preview pane.
//
// Sources are highlighted with chroma (lexer picked by file name, then by content);
// markdown files are rendered with glamour instead. The input text is never modified:
// a highlighter only decorates it with ANSI sequences.
package highlight

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter decorates src for display. path is only used to pick a language.
type Highlighter interface {
	Highlight(path, src string, width int) string
}

// Func adapts a plain function to Highlighter.
type Func func(path, src string, width int) string

func (f Func) Highlight(path, src string, width int) string { return f(path, src, width) }

// Plain returns src untouched.
var Plain Highlighter = Func(func(_, src string, _ int) string { return src })

type Chroma struct {
	style     string
	formatter string

	mu     sync.Mutex
	lexers map[string]chroma.Lexer
}

// New returns a chroma highlighter. An empty style picks one matching the terminal
// background (see StyleForBackground).
func New(style string) *Chroma {
	style = strings.TrimSpace(style)
	if style == "" {
		style = StyleForBackground()
	}
	return &Chroma{
		style:     style,
		formatter: "terminal256",
		lexers:    map[string]chroma.Lexer{},
	}
}

func (c *Chroma) Style() string { return c.style }

func (c *Chroma) Highlight(path, src string, width int) string {
	if src == "" {
		return ""
	}
	if IsMarkdown(path) {
		if out, ok := renderMarkdown(src, width); ok {
			return out
		}
	}

	lexer := c.lexerFor(path, src)
	it, err := lexer.Tokenise(nil, src)
	if err != nil {
		return src
	}
	f := formatters.Get(c.formatter)
	if f == nil {
		f = formatters.Fallback
	}
	var b strings.Builder
	if err := f.Format(&b, styles.Get(c.style), it); err != nil {
		return src
	}
	return b.String()
}

// Language reports the lexer name chosen for path/src ("plaintext" when unknown).
func (c *Chroma) Language(path, src string) string {
	return strings.ToLower(c.lexerFor(path, src).Config().Name)
}

func (c *Chroma) lexerFor(path, src string) chroma.Lexer {
	name := filepath.Base(strings.TrimSpace(path))

	c.mu.Lock()
	l, ok := c.lexers[name]
	c.mu.Unlock()
	if ok {
		return l
	}

	var lexer chroma.Lexer
	if name != "" && name != "." {
		lexer = lexers.Match(name)
	}
	cacheable := lexer != nil
	if lexer == nil {
		// Extension-less scripts are common; fall back to the shebang/content analysers.
		lexer = lexers.Analyse(src)
	}
	if lexer == nil {
		lexer = lexers.Get("plaintext")
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	if cacheable {
		c.mu.Lock()
		c.lexers[name] = lexer
		c.mu.Unlock()
	}
	return lexer
}

func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdown":
		return true
	}
	return false
}

func fmtInt(n int) string { return strconv.Itoa(n) }

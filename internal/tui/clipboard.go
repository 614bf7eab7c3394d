package tui

import (
	"errors"
	"strings"

	"github.com/atotto/clipboard"
)

var errClipboardUnsupported = errors.New("clipboard unsupported on this system")

// copyToClipboard writes s to the system clipboard with normalized line endings.
func copyToClipboard(s string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(strings.ReplaceAll(s, "\r\n", "\n"))
}

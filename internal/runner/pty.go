package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// runOnPTY starts cmd on a pseudo-terminal sized like ours (or 120x40) and copies its
// output to out until the script exits.
func runOnPTY(cmd *exec.Cmd, out io.Writer) error {
	size := &pty.Winsize{Cols: 120, Rows: 40}
	if ws, err := pty.GetsizeFull(os.Stdin); err == nil && ws.Cols > 0 && ws.Rows > 0 {
		size = ws
	}

	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	copied := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, ptmx)
		copied <- err
	}()

	waitErr := cmd.Wait()
	// Linux reports EIO once the last terminal handle of the child is closed.
	if err := <-copied; err != nil && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("read pty: %w", err)
	}
	return waitErr
}

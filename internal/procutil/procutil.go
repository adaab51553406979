// Package procutil provides cross-platform graceful-then-forceful
// termination of a child process, the primitive the engine driver (C5)
// needs for both early termination and interrupt-driven stage cancellation.
package procutil

import (
	"os/exec"
	"time"
)

// Terminate asks proc to exit gracefully and force-kills it if it has not
// exited within grace. It returns once the process has exited (or once the
// force-kill has been issued, if the wait channel never fires).
func Terminate(cmd *exec.Cmd, grace time.Duration, exited <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	signalGraceful(cmd.Process)

	select {
	case <-exited:
		return
	case <-time.After(grace):
		cmd.Process.Kill()
	}
}

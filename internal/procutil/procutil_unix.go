//go:build !windows

package procutil

import (
	"os"
	"syscall"
)

// signalGraceful sends SIGTERM, the engine's documented shutdown signal.
func signalGraceful(p *os.Process) {
	p.Signal(syscall.SIGTERM)
}

//go:build !windows

package rcclient

import (
	"fmt"
	"os/exec"
	"syscall"
)

// spawnDaemon launches rcdBinaryPath detached from the current terminal, in
// a new session via Setsid, so it outlives the orchestrator process.
func spawnDaemon(rcdBinaryPath string, cfg StandaloneConfig) error {
	cmd := exec.Command(rcdBinaryPath, daemonArgs(cfg)...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start rcd: %w", err)
	}
	return cmd.Process.Release()
}

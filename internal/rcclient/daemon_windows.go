//go:build windows

package rcclient

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// spawnDaemon launches rcdBinaryPath detached from the current console, so
// it outlives the orchestrator process.
func spawnDaemon(rcdBinaryPath string, cfg StandaloneConfig) error {
	cmd := exec.Command(rcdBinaryPath, daemonArgs(cfg)...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start rcd: %w", err)
	}
	return cmd.Process.Release()
}

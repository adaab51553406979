package rcclient

import (
	"context"
	"fmt"

	"github.com/saupload/saupload/internal/constants"
)

// StandaloneConfig describes a control-plane the orchestrator should run
// itself rather than share with the engine process.
type StandaloneConfig struct {
	Enabled bool
	Addr    string
	WebGUI  bool
	NoAuth  bool
	User    string
	Pass    string
}

// EnsureStandaloneDaemon starts the rcd binary detached from this process
// if, and only if, nothing is already listening on cfg.Addr. It must never
// be torn down at session end and never restarted if it dies mid-session
// (spec §4.6, §9: "supervised but not owned"); callers simply call this
// once before the first stage and otherwise leave the daemon alone.
func EnsureStandaloneDaemon(ctx context.Context, rcdBinaryPath string, cfg StandaloneConfig) (*Client, error) {
	client := New("http://"+cfg.Addr, cfg.User, cfg.Pass)

	probeCtx, cancel := context.WithTimeout(ctx, constants.RCRequestTimeout)
	alreadyRunning := client.Noop(probeCtx)
	cancel()
	if alreadyRunning {
		return client, nil
	}

	if err := spawnDaemon(rcdBinaryPath, cfg); err != nil {
		return nil, fmt.Errorf("spawn standalone control plane: %w", err)
	}

	if !client.WaitUntilReachable(ctx, constants.RCDaemonStartupWait) {
		return nil, fmt.Errorf("standalone control plane did not become reachable within %s", constants.RCDaemonStartupWait)
	}
	return client, nil
}

func daemonArgs(cfg StandaloneConfig) []string {
	args := []string{"rcd", "--rc-addr=" + cfg.Addr}
	if cfg.WebGUI {
		args = append(args, "--rc-web-gui")
	}
	if cfg.NoAuth {
		args = append(args, "--rc-no-auth")
	} else {
		args = append(args, "--rc-user="+cfg.User, "--rc-pass="+cfg.Pass)
	}
	return args
}

//go:build windows

package procutil

import "os"

// signalGraceful has no SIGTERM equivalent on Windows; os.Process.Signal
// only supports os.Kill there, so the grace period simply gives the
// process a window to exit on its own (e.g. via a console-control handler
// the engine installs) before Terminate escalates to Kill.
func signalGraceful(p *os.Process) {}

// Package progress renders a live progress bar for the stage currently being
// driven by the engine. One bar tracks bytes accounted against the stage's
// byte cap; it is driven entirely by file_complete events forwarded from the
// engine driver, never by polling the child process directly.
package progress

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// StageBar displays progress for a single upload stage.
type StageBar struct {
	progress   *mpb.Progress
	bar        *mpb.Bar
	isTerminal bool
}

// NewStageBar creates a progress display. When stdout is not a terminal, all
// operations are no-ops except StartStage and Println, which write plain
// lines.
func NewStageBar() *StageBar {
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSIOnWindows(os.Stdout)
		p = mpb.New(
			mpb.WithOutput(os.Stdout),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &StageBar{progress: p, isTerminal: isTerminal}
}

// StartStage begins a new bar for the given credential/stage label, sized to
// the stage's byte cap. Any previous bar is left to complete on its own.
func (s *StageBar) StartStage(label string, capBytes int64) {
	if !s.isTerminal {
		fmt.Printf("-- %s: starting (cap %.1f GiB)\n", label, float64(capBytes)/(1<<30))
		return
	}

	s.bar = s.progress.New(capBytes,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
		),
	)
}

// Add reports bytes accounted for the current stage (called once per
// file_complete event).
func (s *StageBar) Add(bytes int64) {
	if s.bar == nil {
		return
	}
	s.bar.IncrBy(int(bytes))
}

// FinishStage completes the current bar.
func (s *StageBar) FinishStage() {
	if s.bar == nil {
		return
	}
	s.bar.SetCurrent(s.bar.Current())
	s.bar.Abort(true)
	s.bar = nil
}

// Println writes a line above the bars without disturbing rendering.
func (s *StageBar) Println(msg string) {
	if s.isTerminal {
		fmt.Fprintln(s.progress, msg)
		return
	}
	fmt.Println(msg)
}

// Wait blocks until all bars finish rendering.
func (s *StageBar) Wait() {
	s.progress.Wait()
}

func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}

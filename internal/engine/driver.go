// Package engine implements the driver that spawns one child transfer
// process per stage (C5): it composes the flag set, consumes the child's
// combined log stream line by line, classifies each line into an event,
// forwards file-complete events to the quota ledger in real time, and
// enforces early termination once the engine has stopped starting new
// transfers.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/saupload/saupload/internal/constants"
	"github.com/saupload/saupload/internal/core"
	"github.com/saupload/saupload/internal/logging"
	"github.com/saupload/saupload/internal/procutil"
	"github.com/saupload/saupload/internal/rcclient"
)

// Callbacks lets the session loop observe a stage in progress without the
// driver importing the quota ledger or distribution tracker directly (spec
// §9: "pass the ledger plus key as explicit parameters to the driver").
type Callbacks struct {
	// OnFileComplete is invoked synchronously for every file_complete
	// event, in the order the engine emits them. It must not block for
	// long: it is called from the log-reading goroutine.
	OnFileComplete func(path string, size int64)
}

// Driver runs one stage: one child process invocation against one
// credential.
type Driver struct {
	binaryPath string
	classifier *Classifier
	rc         *rcclient.Client // nil disables early termination and queue polling
	log        *logging.Logger
}

// New creates a driver for the given engine binary, using rc (possibly nil)
// for early-termination polling.
func New(binaryPath string, rateLimitOverrides map[string]time.Duration, rc *rcclient.Client, log *logging.Logger) *Driver {
	return &Driver{
		binaryPath: binaryPath,
		classifier: NewClassifier(rateLimitOverrides),
		rc:         rc,
		log:        log,
	}
}

// StageInput is the fully-resolved invocation for one stage.
type StageInput struct {
	Source        string
	Dest          string
	CredentialPath string
	Params        core.StageParams
	ExtraFlags    map[string]string
	FileListPath  string // non-empty for a chunked stage
	DryRun        bool
}

// Run spawns the engine, drives it to completion or early termination, and
// returns the stage outcome. ctx cancellation is the interrupt path: the
// reader goroutine continues draining already-buffered output so every
// file_complete event already written by the engine is forwarded to
// OnFileComplete before Run returns (spec §5: "flush all in-flight
// file_complete events ... before exit").
func (d *Driver) Run(ctx context.Context, in StageInput, cb Callbacks) core.StageResult {
	start := time.Now()

	cmd := exec.Command(d.binaryPath, d.buildArgs(in)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.log.Error().Err(err).Msg("failed to attach stdout pipe")
		return core.StageResult{Success: false}
	}
	cmd.Stderr = cmd.Stdout // combined stream required: patterns appear on both (spec §9)

	if err := cmd.Start(); err != nil {
		d.log.Error().Err(err).Msg("failed to start engine process")
		return core.StageResult{Success: false}
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	result := d.consume(ctx, cmd, stdout, exited, cb)
	result.Duration = time.Since(start)
	if result.Duration > 0 {
		result.AvgSpeed = float64(result.TotalBytes) / result.Duration.Seconds()
	}
	return result
}

func (d *Driver) consume(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, exited chan error, cb Callbacks) core.StageResult {
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var result core.StageResult
	var earlyTerminationTimer <-chan time.Time
	stallTimer := time.NewTimer(constants.EngineStallTimeout)
	defer stallTimer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if !stallTimer.Stop() {
				select {
				case <-stallTimer.C:
				default:
				}
			}
			stallTimer.Reset(constants.EngineStallTimeout)
			ev := d.classifier.Classify(line)
			switch ev.Kind {
			case EventFileComplete:
				size := ev.Size
				if size == 0 {
					size = d.resolveSize(ctx, ev.Path)
				}
				if cb.OnFileComplete != nil {
					cb.OnFileComplete(ev.Path, size)
				}
				result.TransferCount++
				result.TotalBytes += size
			case EventRateLimit:
				result.RateLimitKind = ev.Kind2
				result.DelayHours = ev.Delay.Hours()
				d.terminateAndWait(cmd, exited)
				result.Success = false
				return result
			case EventMaxTransferReached:
				if earlyTerminationTimer == nil {
					earlyTerminationTimer = time.After(constants.EarlyTerminationCheckInterval)
				}
			case EventFatal:
				d.terminateAndWait(cmd, exited)
				result.Success = false
				return result
			}

		case <-earlyTerminationTimer:
			if d.shouldTerminateEarly(ctx) {
				d.terminateAndWait(cmd, exited)
				result.Success = true
				result.EarlyTerminated = true
				d.drainRemaining(lines, &result, cb)
				return result
			}
			earlyTerminationTimer = nil

		case <-stallTimer.C:
			d.log.Warn().Msg("engine produced no output for the stall timeout, aborting stage")
			d.terminateAndWait(cmd, exited)
			result.Success = false
			d.drainRemaining(lines, &result, cb)
			return result

		case err := <-exited:
			result.Success = err == nil
			d.drainRemaining(lines, &result, cb)
			return result

		case <-ctx.Done():
			d.terminateAndWait(cmd, exited)
			result.Success = false
			d.drainRemaining(lines, &result, cb)
			return result
		}
	}
}

// drainRemaining flushes any output already buffered on the lines channel
// so bytes the engine reported before exiting are never lost, even when
// Run is returning due to early termination or process exit.
func (d *Driver) drainRemaining(lines chan string, result *core.StageResult, cb Callbacks) {
	if lines == nil {
		return
	}
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			ev := d.classifier.Classify(line)
			if ev.Kind == EventFileComplete {
				size := ev.Size
				if cb.OnFileComplete != nil {
					cb.OnFileComplete(ev.Path, size)
				}
				result.TransferCount++
				result.TotalBytes += size
			}
		default:
			return
		}
	}
}

func (d *Driver) terminateAndWait(cmd *exec.Cmd, exited chan error) {
	done := make(chan struct{})
	go func() {
		<-exited
		close(done)
	}()
	procutil.Terminate(cmd, constants.EngineGracePeriod, done)
}

// shouldTerminateEarly implements the mandatory early-termination poll
// (spec §4.5): transferring must be empty, aggregate speed zero, and
// checking non-empty. A control plane that cannot be reached never
// triggers early termination — the driver just lets the engine keep
// running until it exits on its own.
func (d *Driver) shouldTerminateEarly(ctx context.Context) bool {
	if d.rc == nil {
		return false
	}
	stats, ok := d.rc.Stats(ctx)
	if !ok {
		return false
	}
	return len(stats.Transferring) == 0 && stats.Speed == 0 && len(stats.Checking) > 0
}

// resolveSize queries the control plane for a path's size when the log
// line itself carried none, matching the path against the current
// transferring list. There is no local-filesystem fallback, here or in the
// session loop: a size the control plane cannot supply is reported as 0.
func (d *Driver) resolveSize(ctx context.Context, path string) int64 {
	if d.rc == nil {
		return 0
	}
	stats, ok := d.rc.Stats(ctx)
	if !ok {
		return 0
	}
	for _, t := range stats.Transferring {
		if t.Name == path {
			return t.Size
		}
	}
	return 0
}

// List asks the engine for a plain recursive filename listing of source
// (spec §4.4 step (i): "ask the engine for a plain recursive filename
// listing (fast, no stat)"). The engine, not a local filesystem walk, is
// the source of truth for what a chunked stage partitions — source may
// name a remote the driver has no local filesystem access to at all.
func (d *Driver) List(ctx context.Context, source, credentialPath string, timeout time.Duration) ([]string, error) {
	listCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(listCtx, d.binaryPath, d.buildListArgs(source, credentialPath)...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", source, err)
	}

	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("listing %s: %w", source, err)
	}
	return names, nil
}

func (d *Driver) buildListArgs(source, credentialPath string) []string {
	args := []string{"lsf", source, "--recursive", "--files-only"}
	if credentialPath != "" {
		args = append(args, "--service-account-file", credentialPath)
	}
	return args
}

func (d *Driver) buildArgs(in StageInput) []string {
	args := []string{"copy", in.Source, in.Dest}
	args = append(args, "--transfers", itoa(in.Params.Concurrency))
	if in.Params.StageByteCap > 0 {
		args = append(args, "--max-transfer", bytesFlag(in.Params.StageByteCap))
	}
	if in.Params.PerFileCap > 0 {
		args = append(args, "--max-size", bytesFlag(in.Params.PerFileCap))
	}
	if in.Params.OrderBySize {
		args = append(args, "--order-by=size,desc")
	}
	args = append(args, "--cutoff-mode="+in.Params.CutoffMode)
	args = append(args, "--stats=60s", "-v")

	if in.CredentialPath != "" {
		args = append(args, "--service-account-file", in.CredentialPath)
	}
	if in.FileListPath != "" {
		args = append(args, "--files-from", in.FileListPath)
	}
	if in.DryRun {
		args = append(args, "--dry-run")
	}
	for flag, value := range in.ExtraFlags {
		args = append(args, "--"+flag, value)
	}
	return args
}

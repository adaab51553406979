// Package session implements the top-level per-uploader state machine
// (C8): select a credential, drive stages through the engine, react to
// rate-limit and fatal outcomes, and keep the quota ledger, ban set, and
// distribution trackers current as it goes.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/saupload/saupload/internal/ban"
	"github.com/saupload/saupload/internal/chunker"
	"github.com/saupload/saupload/internal/config"
	"github.com/saupload/saupload/internal/constants"
	"github.com/saupload/saupload/internal/core"
	"github.com/saupload/saupload/internal/distribution"
	"github.com/saupload/saupload/internal/engine"
	"github.com/saupload/saupload/internal/events"
	"github.com/saupload/saupload/internal/logging"
	"github.com/saupload/saupload/internal/progress"
	"github.com/saupload/saupload/internal/publisher"
	"github.com/saupload/saupload/internal/rcclient"
	"github.com/saupload/saupload/internal/strategy"
)

// pollInterval is how often the queue capturer polls the control plane
// (spec §4.6: "polling cadence during a stage is ~2-3s").
const pollInterval = 3 * time.Second

// Runner owns every component instance C8 coordinates and drives the
// per-uploader state machine.
type Runner struct {
	cfg       *config.Config
	ledger    ledgerIface
	bans      *ban.BanSet
	distStore *distribution.Store
	queueTr   map[string]*distribution.Tracker
	histTr    map[string]*distribution.Tracker
	driver    *engine.Driver
	rc        *rcclient.Client
	publisher *publisher.Publisher
	bus       *events.EventBus
	bar       *progress.StageBar
	log       *logging.Logger
	chunkDir  string
	dryRun    bool
}

// New wires every C1-C9 component from cfg and returns a Runner ready to
// drive uploader sessions. dryRun mirrors cloudplow's --test flag (spec
// §4.12): every stage still runs the full credential/strategy/chunk-plan
// decision path, but the engine invocation passes --dry-run through and no
// byte-complete event is committed to the quota ledger.
func New(cfg *config.Config, ledger ledgerIface, bans *ban.BanSet, distStore *distribution.Store, rc *rcclient.Client, bus *events.EventBus, log *logging.Logger, dryRun bool) *Runner {
	return &Runner{
		cfg:       cfg,
		ledger:    ledger,
		bans:      bans,
		distStore: distStore,
		queueTr:   make(map[string]*distribution.Tracker),
		histTr:    make(map[string]*distribution.Tracker),
		driver:    engine.New(cfg.Core.EngineBinaryPath, cfg.RateLimitDelays(), rc, log),
		rc:        rc,
		publisher: publisher.New(filepath.Join(cfg.StateDir, "session_state.json")),
		bus:       bus,
		bar:       progress.NewStageBar(),
		log:       log,
		chunkDir:  filepath.Join(cfg.StateDir, "chunks"),
		dryRun:    dryRun,
	}
}

// ledgerIface is the quota ledger surface the session loop consumes
// (matches *quota.Ledger exactly); declared here so session_test.go can
// substitute a fake without pulling quota's file-backed constructor into
// every test.
type ledgerIface interface {
	Add(uploader, credential string, bytes int64)
	Remaining(uploader, credential string) int64
	Eligible(uploader, credential string) bool
	NeverUploaded(uploader, credential string) bool
	Cap() int64
	SafetyMarginBytes() int64
	Sweep() []core.QuotaKey
}

// RunAll drives every configured uploader in turn (spec §5: sequential
// execution is the baseline model; parallel is an implementation choice
// this build does not take).
func (r *Runner) RunAll(ctx context.Context) {
	_ = chunker.SweepStale(r.chunkDir)
	for name, up := range r.cfg.Uploaders {
		if ctx.Err() != nil {
			return
		}
		r.runUploader(ctx, name, up)
	}
	if err := r.distStore.Save(r.queueTr, r.histTr); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist distribution cache")
	}
	r.bar.Wait()
}

func (r *Runner) runUploader(ctx context.Context, name string, up config.UploaderConfig) {
	creds, err := up.Credentials()
	if err != nil {
		r.log.Error().Err(err).Str("uploader", name).Msg("failed to enumerate credentials")
		return
	}
	if len(creds) == 0 {
		r.bus.Publish(&events.UploaderSkippedEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventUploaderSkipped, Time: time.Now()},
			Uploader:  name, Reason: "no credentials configured",
		})
		return
	}

	r.publisher.StartSession(name)
	defer r.publisher.EndSession()

	queueTr := r.queueTracker(name)
	histTr := r.historyTracker(name)

	log := r.log.WithFields(name, "", 0)
	var totalFiles int
	var totalBytes int64
	var credentialsCycled int
	start := time.Now()

	captureOnce := queueTr.Snapshot().Count == 0

	for ctx.Err() == nil {
		r.bans.ClearExpiredQuota(r.ledger.Sweep())
		r.bans.Refresh()

		cred, idx, ok := selectCredential(name, creds, r.ledger, r.bans)
		if !ok {
			r.bus.Publish(&events.UploaderSkippedEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventUploaderSkipped, Time: time.Now()},
				Uploader:  name, Reason: "no eligible credential",
			})
			break
		}
		credentialsCycled++
		r.publisher.UpdateCredential(idx, cred.ID, len(creds))
		r.bus.Publish(&events.CredentialChangeEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventCredentialChange, Time: time.Now()},
			Uploader:  name, Credential: cred.ID, CredentialIndex: idx, CredentialTotal: len(creds),
		})

		var capturerDone chan struct{}
		if captureOnce {
			capturerDone = make(chan struct{})
			go func() {
				defer close(capturerDone)
				r.runQueueCapturer(ctx, queueTr, up.ParsedGenerateListTimeout())
			}()
			captureOnce = false
		}

		aborted, files, bytes := r.runCredential(ctx, name, cred, up, queueTr, histTr, log)
		totalFiles += files
		totalBytes += bytes

		if capturerDone != nil {
			<-capturerDone
		}
		if aborted {
			break
		}
	}

	r.bus.Publish(&events.SessionEndEvent{
		BaseEvent:         events.BaseEvent{EventType: events.EventSessionEnd, Time: time.Now()},
		Uploader:          name,
		TotalFiles:        totalFiles,
		TotalBytes:        totalBytes,
		Duration:          time.Since(start),
		CredentialsCycled: credentialsCycled,
	})
}

// runCredential drives stages 1..max for one selected credential. It
// returns aborted=true when a fatal outcome ends the whole uploader
// session (not just this credential).
func (r *Runner) runCredential(ctx context.Context, name string, cred core.Credential, up config.UploaderConfig, queueTr, histTr *distribution.Tracker, log *logging.Logger) (aborted bool, totalFiles int, totalBytes int64) {
	retriedThisStage := false

	for stage := 1; stage <= constants.MaxStagesPerCredential; {
		if ctx.Err() != nil {
			return true, totalFiles, totalBytes
		}
		remaining := r.ledger.Remaining(name, cred.ID)
		if remaining < constants.MinViableStageBytes {
			return false, totalFiles, totalBytes
		}

		snap := queueTr.Snapshot()
		params := strategy.Select(remaining, r.ledger.Cap(), r.ledger.SafetyMarginBytes(), &snap, stage)
		r.publisher.UpdateStage(stage)

		stageLabel := fmt.Sprintf("%s/%s stage %d", name, cred.ID, stage)
		r.bar.StartStage(stageLabel, params.StageByteCap)

		result := r.runStage(ctx, name, cred, up, params, stage, queueTr, histTr)
		r.bar.FinishStage()

		totalFiles += result.TransferCount
		totalBytes += result.TotalBytes

		r.bus.Publish(&events.StageEndEvent{
			BaseEvent:      events.BaseEvent{EventType: events.EventStageEnd, Time: time.Now()},
			Uploader:       name, Credential: cred.ID, Stage: stage,
			Success:        result.Success,
			TransferCount:  result.TransferCount,
			TotalBytes:     result.TotalBytes,
			Duration:       result.Duration,
			AvgSpeed:       result.AvgSpeed,
			RateLimitKind:  result.RateLimitKind,
			DelayHours:     result.DelayHours,
			EarlyTerminate: result.EarlyTerminated,
		})

		if result.RateLimitKind != "" {
			delay := time.Duration(result.DelayHours * float64(time.Hour))
			if delay <= 0 {
				delay = constants.DefaultBanDelay
			}
			r.bans.Ban(name, cred.ID, time.Now().Add(delay))
			r.bus.Publish(&events.RateLimitEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventRateLimit, Time: time.Now()},
				Uploader:  name, Credential: cred.ID, Stage: stage,
				Kind: result.RateLimitKind, Delay: delay,
			})
			log.Warn().Str("credential", cred.ID).Str("rate_limit", result.RateLimitKind).Msg("credential banned, rotating")
			return false, totalFiles, totalBytes
		}

		if !result.Success {
			if up.RetryPartialStage && result.TransferCount > 0 && !retriedThisStage {
				retriedThisStage = true
				log.Warn().Int("stage", stage).Msg("stage failed with partial progress, retrying on same credential")
				continue
			}
			log.Error().Int("stage", stage).Msg("stage failed fatally, aborting uploader session")
			return true, totalFiles, totalBytes
		}

		retriedThisStage = false
		stage++
	}
	return false, totalFiles, totalBytes
}

func (r *Runner) runStage(ctx context.Context, name string, cred core.Credential, up config.UploaderConfig, params core.StageParams, stage int, queueTr, histTr *distribution.Tracker) core.StageResult {
	cb := engine.Callbacks{
		OnFileComplete: func(path string, size int64) {
			if !r.dryRun {
				r.ledger.Add(name, cred.ID, size)
			}
			histTr.Observe(size)
			r.bar.Add(size)
			r.bus.Publish(&events.FileCompleteEvent{
				BaseEvent:  events.BaseEvent{EventType: events.EventFileComplete, Time: time.Now()},
				Uploader:   name, Credential: cred.ID, Stage: stage, Path: path, Size: size,
			})
		},
	}

	if !up.ChunkedUpload.Enabled {
		return r.driver.Run(ctx, engine.StageInput{
			Source:         up.LocalPath,
			Dest:           up.RemotePath,
			CredentialPath: cred.Path,
			Params:         params,
			ExtraFlags:     up.EngineExtras,
			DryRun:         r.dryRun,
		}, cb)
	}
	return r.runChunkedStage(ctx, name, cred, up, params, cb)
}

func (r *Runner) runChunkedStage(ctx context.Context, name string, cred core.Credential, up config.UploaderConfig, params core.StageParams, cb engine.Callbacks) core.StageResult {
	names, err := r.driver.List(ctx, up.LocalPath, cred.Path, up.ParsedGenerateListTimeout())
	if err != nil {
		r.log.Error().Err(err).Str("uploader", name).Msg("failed to list engine files for chunked stage")
		return core.StageResult{Success: false}
	}

	c := chunker.New(r.chunkDir, up.ChunkedUpload.ChunkSize)
	batches := c.Plan(names)
	defer func() {
		for _, batch := range batches {
			_ = chunker.Cleanup(batch)
		}
	}()
	if err := c.Materialize(batches); err != nil {
		r.log.Error().Err(err).Msg("failed to materialize chunk artifacts")
		return core.StageResult{Success: false}
	}

	var agg core.StageResult
	agg.Success = true
	for _, batch := range batches {
		func() {
			defer chunker.Cleanup(batch)
			res := r.driver.Run(ctx, engine.StageInput{
				Source:         up.LocalPath,
				Dest:           up.RemotePath,
				CredentialPath: cred.Path,
				Params:         params,
				ExtraFlags:     up.EngineExtras,
				FileListPath:   batch.Path,
				DryRun:         r.dryRun,
			}, cb)
			agg.TransferCount += res.TransferCount
			agg.TotalBytes += res.TotalBytes
			agg.Duration += res.Duration
			if res.RateLimitKind != "" {
				agg.RateLimitKind = res.RateLimitKind
				agg.DelayHours = res.DelayHours
			}
			if !res.Success {
				agg.Success = false
			}
		}()
		if agg.RateLimitKind != "" || !agg.Success {
			break
		}
		if ctx.Err() != nil {
			agg.Success = false
			break
		}
	}
	if agg.Duration > 0 {
		agg.AvgSpeed = float64(agg.TotalBytes) / agg.Duration.Seconds()
	}
	return agg
}

func (r *Runner) queueTracker(uploader string) *distribution.Tracker {
	if t, ok := r.queueTr[uploader]; ok {
		return t
	}
	t := r.distStore.LoadQueue(uploader)
	r.queueTr[uploader] = t
	return t
}

func (r *Runner) historyTracker(uploader string) *distribution.Tracker {
	if t, ok := r.histTr[uploader]; ok {
		return t
	}
	t := distribution.New(distribution.SourceCompletedTransfers)
	r.histTr[uploader] = t
	return t
}

// runQueueCapturer polls the control plane and feeds previously unseen
// transferring-entry sizes into tracker until the checking queue has been
// empty for one full polling interval, the checker never populated at
// all, or timeout elapses (spec §4.8).
func (r *Runner) runQueueCapturer(ctx context.Context, tracker *distribution.Tracker, timeout time.Duration) {
	if r.rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seen := make(map[string]bool)
	sawChecking := false
	emptyPolls := 0
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, ok := r.rc.Stats(ctx)
			if !ok {
				continue
			}
			for _, t := range stats.Transferring {
				if !seen[t.Name] {
					seen[t.Name] = true
					tracker.Observe(t.Size)
				}
			}
			if len(stats.Checking) > 0 {
				sawChecking = true
				emptyPolls = 0
				continue
			}
			// Checking is empty: join immediately if the checker never
			// populated at all; once it has drained, join only after it has
			// stayed empty across one full polling interval (spec §4.8).
			emptyPolls++
			if !sawChecking || emptyPolls >= 2 {
				return
			}
		}
	}
}

// selectCredential implements C8's deterministic selection: filter banned
// and quota-ineligible, preserve input order, pick the first (spec §4.8).
func selectCredential(uploader string, creds []core.Credential, ledger ledgerIface, bans *ban.BanSet) (core.Credential, int, bool) {
	for i, c := range creds {
		if bans.IsBanned(uploader, c.ID) {
			continue
		}
		if ledger.NeverUploaded(uploader, c.ID) || ledger.Eligible(uploader, c.ID) {
			return c, i, true
		}
	}
	return core.Credential{}, 0, false
}

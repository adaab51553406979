// Package constants collects the tunable defaults shared across saupload's
// components. Every uploader/stage config can override these; the values
// here are what an uploader gets when its config is silent.
package constants

import "time"

// Quota Ledger (C1)
const (
	// DefaultQuotaCapBytes is the default 24h byte cap applied to a
	// credential when its uploader config does not set one (750 GiB).
	DefaultQuotaCapBytes = 750 * 1024 * 1024 * 1024

	// QuotaSafetyMarginPercent is the fraction of the configured cap held
	// back as a safety margin: a credential stops being eligible once its
	// usage reaches cap minus this margin, and the strategy selector caps a
	// stage at remaining minus this margin, so a stage never targets the
	// provider's exact limit.
	QuotaSafetyMarginPercent = 0.05

	// QuotaWindow is the rolling period a quota record expires after.
	QuotaWindow = 24 * time.Hour
)

// Ban Set (C2)
const (
	// DefaultBanDelay is applied when an engine rate-limit signal does not
	// match any configured substring but is still classified as a
	// rate-limit line.
	DefaultBanDelay = 24 * time.Hour

	// DailyLimitBanDelay is the delay for the two rate-limit substrings
	// cloudplow treats as full-day exhaustion: userRateLimitExceeded and
	// dailyLimitExceeded.
	DailyLimitBanDelay = 24 * time.Hour
)

// Distribution Tracker (C3)
const (
	// DefaultReservoirSize bounds the number of file-size samples kept for
	// percentile estimation.
	DefaultReservoirSize = 10000

	// MinSamplesForMediumConfidence, MinSamplesForHighConfidence and
	// MinSamplesForVeryHighConfidence are the reservoir-count thresholds
	// the distribution tracker reports its confidence at. Below the first
	// threshold confidence is "low".
	MinSamplesForMediumConfidence   = 10
	MinSamplesForHighConfidence     = 100
	MinSamplesForVeryHighConfidence = 1000
)

// Distribution size buckets, in bytes. A file falls into bucket i when its
// size is >= DistributionBucketEdges[i] and < DistributionBucketEdges[i+1]
// (the final bucket has no upper edge).
var DistributionBucketEdges = []int64{
	0,
	100 * 1024 * 1024,
	1 * 1024 * 1024 * 1024,
	10 * 1024 * 1024 * 1024,
	50 * 1024 * 1024 * 1024,
}

// Chunker (C4)
const (
	// DefaultChunkCount is the default chunk_size: the maximum number of
	// file names per chunk file when chunked upload is enabled and the
	// uploader config does not set chunk_size.
	DefaultChunkCount = 4

	// MinViableStageBytes is the smallest remaining quota a stage will
	// bother starting with; below this the session loop stops running
	// stages on the credential and returns to credential selection rather
	// than spawning an engine run with a trivial cap.
	MinViableStageBytes = 10 * 1024 * 1024 * 1024
)

// Engine Driver (C5)
const (
	// EarlyTerminationCheckInterval is how long the engine driver waits
	// after a max-transfer-reached line before polling the RC client once
	// for early-termination eligibility.
	EarlyTerminationCheckInterval = 5 * time.Second

	// EngineGracePeriod is how long the engine driver waits for a graceful
	// exit after sending an interrupt before escalating to a kill.
	EngineGracePeriod = 10 * time.Second

	// EngineStallTimeout aborts a stage if no log line of any kind — not
	// just file_complete — has been classified for this long; it catches an
	// engine process wedged on a hung network call.
	EngineStallTimeout = 15 * time.Minute
)

// RC Client (C6)
const (
	// RCRequestTimeout bounds every individual call to the engine's
	// loopback control-plane API.
	RCRequestTimeout = 5 * time.Second

	// RCDaemonStartupWait is how long the RC client waits for a spawned rcd
	// to start answering rc/noop before giving up.
	RCDaemonStartupWait = 10 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer is the default per-subscriber channel buffer.
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer bounds buffer size a caller can request.
	EventBusMaxBuffer = 4096
)

// HTTP Client Timeouts. The RC client (C6) does not apply these: its
// transport is retryablehttp's default, bounded per call by
// RCRequestTimeout.
const (
	HTTPIdleConnTimeout      = 90 * time.Second
	HTTPTLSHandshakeTimeout  = 10 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPDialTimeout          = 5 * time.Second
	HTTPDialKeepAlive        = 30 * time.Second
)

// Retry configuration (C6 RC client, loopback so failures are rare and
// transient — a handful of fast retries rather than the teacher's long
// exponential backoff against a remote API).
const (
	MaxRetries        = 3
	RetryInitialDelay = 100 * time.Millisecond
	RetryMaxDelay     = 2 * time.Second
)

// Session Loop (C8) / Session Publisher (C9)
const (
	// SessionPublishInterval is a periodic snapshot interval. The session
	// loop does not use it: it publishes a snapshot only when a session
	// starts or ends and when the credential or stage changes.
	SessionPublishInterval = 30 * time.Second

	// MaxStagesPerCredential bounds how many successive stages a single
	// credential runs before the loop forces a fresh SELECT_CRED, even if
	// quota remains above MinViableStageBytes.
	MaxStagesPerCredential = 10
)

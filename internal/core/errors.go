package core

import "errors"

// Sentinel errors for the seven error classes the scheduler distinguishes
// (spec-level error taxonomy). Components that can fail in one of these
// ways wrap the sentinel with context via fmt.Errorf("...: %w", err) so
// callers can errors.Is against it.
var (
	// ErrTransientEngine marks a transient engine-side hiccup (a single
	// file I/O error, a network blip) the engine is expected to retry
	// internally. The session loop logs and continues.
	ErrTransientEngine = errors.New("transient engine error")

	// ErrRateLimited marks a credential-scoped rate-limit signal. The
	// session loop bans the credential and rotates.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExhausted marks a quota-exhaustion signal, handled as a
	// rate limit with the daily-class delay.
	ErrQuotaExhausted = errors.New("quota exhausted")

	// ErrControlPlaneUnreachable marks the control plane failing to
	// respond. It never aborts a stage; it only disables early
	// termination and queue capture for that stage.
	ErrControlPlaneUnreachable = errors.New("control plane unreachable")

	// ErrStageFailed marks a child exit with a failure code and no
	// recognized event. The session loop decides partial vs. full
	// failure from accounted bytes.
	ErrStageFailed = errors.New("stage failed")

	// ErrPersistenceFailed marks a failed write to a persisted cache. The
	// in-memory state remains authoritative until the next successful
	// write.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrConfigInvalid marks a fatal configuration error. The CLI must
	// abort before any uploader work starts.
	ErrConfigInvalid = errors.New("invalid configuration")
)

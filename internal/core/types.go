// Package core holds the domain types and error taxonomy shared by every
// scheduler component, plus the atomic-write helper each persistent
// component (quota ledger, ban set, distribution tracker, session
// publisher) uses to keep its on-disk cache crash-consistent.
package core

import "time"

// CredentialStatus is the derived runtime status of a credential, never
// stored directly — it is computed from the quota ledger and ban set at
// selection time.
type CredentialStatus string

const (
	StatusAvailable     CredentialStatus = "available"
	StatusActive        CredentialStatus = "active"
	StatusSuspended     CredentialStatus = "suspended"
	StatusQuotaExhausted CredentialStatus = "quota-exhausted"
)

// Credential identifies a service-account file the engine authenticates
// with. The orchestrator treats it as an opaque string; only the config
// loader cares that it resolves to a file on disk.
type Credential struct {
	ID   string
	Path string
}

// Uploader binds a local source tree to a remote destination and the pool
// of credentials it may rotate through. It carries no state of its own:
// quota, ban, and distribution data are all partitioned by uploader name
// in their owning components.
type Uploader struct {
	Name           string
	LocalPath      string
	RemotePath     string
	Credentials    []Credential
	EngineExtras   map[string]string
	ChunkedUpload  ChunkedUploadSpec
	MaxStages      int
	RetryPartialStage bool
}

// ChunkedUploadSpec configures the chunker (C4) for one uploader.
type ChunkedUploadSpec struct {
	Enabled             bool
	ChunkCount          int
	GenerateListTimeout time.Duration
}

// QuotaKey identifies one (uploader, credential) pair, the partition key
// every persistent component uses.
type QuotaKey struct {
	Uploader   string
	Credential string
}

// StageResult is C5's return value for one engine invocation.
type StageResult struct {
	Success        bool
	TransferCount  int
	TotalBytes     int64
	Duration       time.Duration
	AvgSpeed       float64
	RateLimitKind  string // empty unless rate limited
	DelayHours     float64
	EarlyTerminated bool
}

// StageParams is C7's output: the concrete flag set for one stage.
type StageParams struct {
	Concurrency   int
	StageByteCap  int64
	PerFileCap    int64 // 0 means no cap
	OrderBySize   bool
	CutoffMode    string
	StrategyTag   string
}

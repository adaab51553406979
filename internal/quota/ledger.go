// Package quota implements the durable per-credential rolling 24h byte
// ledger (C1). It is the sole writer of sa_quota_cache.json; every mutation
// is written in the same critical section as the in-memory update, and the
// write is atomic (temp file + rename) so a crash never leaves a torn
// cache.
package quota

import (
	"sync"
	"time"

	"github.com/saupload/saupload/internal/constants"
	"github.com/saupload/saupload/internal/core"
	"github.com/saupload/saupload/internal/logging"
)

// record is one (uploader, credential)'s quota state. Exported via JSON tags
// for the cache file; the lazy-expiry rule (now >= ResetAt means logically
// zero) is applied on read, never baked into storage.
type record struct {
	BytesUsed     int64     `json:"bytes"`
	WindowStart   time.Time `json:"window_start"`
	ResetAt       time.Time `json:"reset_time"`
	FirstUploadAt time.Time `json:"first_upload"`
}

// Ledger is the quota ledger for one uploader->credential->record cache.
// Safe for concurrent use by the stream reader (C5) and the session loop
// (C8).
type Ledger struct {
	mu       sync.Mutex
	path     string
	cap      int64
	margin   float64
	records  map[core.QuotaKey]*record
	log      *logging.Logger
}

// cacheFile is the on-disk shape: uploader -> credential -> record.
type cacheFile map[string]map[string]*record

// New creates a ledger backed by path, loading any existing cache. capBytes
// is the configured per-credential 24h quota (constants.DefaultQuotaCapBytes
// when the config is silent); marginPercent is the safety margin withheld
// from eligibility and strategy decisions (constants.QuotaSafetyMarginPercent
// by default).
func New(path string, capBytes int64, marginPercent float64, log *logging.Logger) *Ledger {
	if capBytes <= 0 {
		capBytes = constants.DefaultQuotaCapBytes
	}
	if marginPercent <= 0 {
		marginPercent = constants.QuotaSafetyMarginPercent
	}
	l := &Ledger{
		path:    path,
		cap:     capBytes,
		margin:  marginPercent,
		records: make(map[core.QuotaKey]*record),
		log:     log,
	}
	l.load()
	return l
}

func (l *Ledger) load() {
	var file cacheFile
	found, err := core.ReadJSONIfExists(l.path, &file)
	if err != nil {
		l.log.Warn().Err(err).Msg("quota cache unreadable, starting empty")
		return
	}
	if !found {
		return
	}
	for uploader, byCred := range file {
		for cred, rec := range byCred {
			l.records[core.QuotaKey{Uploader: uploader, Credential: cred}] = rec
		}
	}
}

// Cap returns the configured quota cap in bytes.
func (l *Ledger) Cap() int64 { return l.cap }

// SafetyMarginBytes returns the byte amount withheld from the cap.
func (l *Ledger) SafetyMarginBytes() int64 {
	return int64(float64(l.cap) * l.margin)
}

// Add records bytes uploaded by credential under uploader, creating the
// record on first upload. It writes the cache in the same critical section
// as the in-memory update (spec §4.1: "add writes in the same critical
// section"). Persistence failures are logged, never propagated — the
// in-memory state remains authoritative (error class 6).
func (l *Ledger) Add(uploader, credential string, bytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := core.QuotaKey{Uploader: uploader, Credential: credential}
	rec := l.records[key]
	now := time.Now()
	if rec == nil || now.After(rec.ResetAt) {
		rec = &record{WindowStart: now, ResetAt: now.Add(constants.QuotaWindow), FirstUploadAt: now}
		l.records[key] = rec
	}
	rec.BytesUsed += bytes

	if err := l.persistLocked(); err != nil {
		l.log.Warn().Err(err).Str("uploader", uploader).Str("credential", credential).Msg("failed to persist quota cache")
	}
}

// Remaining returns max(0, cap - bytes_used) for credential, after lazy
// expiry.
func (l *Ledger) Remaining(uploader, credential string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	used := l.usedLocked(uploader, credential)
	remaining := l.cap - used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Eligible reports whether credential has quota room under the safety
// margin: bytes_used < cap - margin.
func (l *Ledger) Eligible(uploader, credential string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	used := l.usedLocked(uploader, credential)
	return used < l.cap-l.SafetyMarginBytes()
}

// NeverUploaded reports whether credential has no upload history for
// uploader, the cloudplow "first upload" fast path that treats a
// never-seen credential as immediately eligible without consulting bytes.
func (l *Ledger) NeverUploaded(uploader, credential string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[core.QuotaKey{Uploader: uploader, Credential: credential}]
	return !ok || rec.FirstUploadAt.IsZero()
}

func (l *Ledger) usedLocked(uploader, credential string) int64 {
	rec, ok := l.records[core.QuotaKey{Uploader: uploader, Credential: credential}]
	if !ok {
		return 0
	}
	if time.Now().After(rec.ResetAt) {
		return 0
	}
	return rec.BytesUsed
}

// Sweep expires any record whose reset time has passed, zeroing its
// in-memory bytes_used so subsequent reads reflect the new window. It is
// idempotent: a record with no elapsed bytes is simply skipped. The caller
// (session loop, via the ban set) must clear any paired ban for every
// returned pair before the next credential selection observes state
// (the quota/ban synchronization invariant, spec §4.2).
func (l *Ledger) Sweep() []core.QuotaKey {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var expired []core.QuotaKey
	for key, rec := range l.records {
		if now.After(rec.ResetAt) && rec.BytesUsed > 0 {
			rec.BytesUsed = 0
			rec.WindowStart = now
			rec.ResetAt = now.Add(constants.QuotaWindow)
			expired = append(expired, key)
		}
	}
	if len(expired) > 0 {
		if err := l.persistLocked(); err != nil {
			l.log.Warn().Err(err).Msg("failed to persist quota cache after sweep")
		}
	}
	return expired
}

func (l *Ledger) persistLocked() error {
	file := make(cacheFile)
	for key, rec := range l.records {
		byCred, ok := file[key.Uploader]
		if !ok {
			byCred = make(map[string]*record)
			file[key.Uploader] = byCred
		}
		byCred[key.Credential] = rec
	}
	return core.WriteJSONAtomic(l.path, file)
}

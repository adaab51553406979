// Package publisher implements the write-only session-state snapshot sink
// (C9). It exists purely so an external dashboard or notifier can observe
// progress; the scheduler never reads this blob back (spec §4.9).
package publisher

import (
	"sync"
	"time"

	"github.com/saupload/saupload/internal/core"
)

// Snapshot is the full contents of session_state.json at any point in time.
type Snapshot struct {
	Uploader        string    `json:"uploader"`
	CredentialIndex int       `json:"credential_index"`
	CredentialID    string    `json:"credential_id"`
	CredentialTotal int       `json:"credential_total"`
	CredentialsUsed []string  `json:"credentials_used"`
	Stage           int       `json:"stage"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Active          bool      `json:"active"`
}

// Publisher atomically replaces path's contents on every mutation. Safe for
// concurrent use; in practice only the session loop's single goroutine per
// uploader calls it.
type Publisher struct {
	mu   sync.Mutex
	path string
	snap Snapshot
}

// New creates a publisher writing to path.
func New(path string) *Publisher {
	return &Publisher{path: path}
}

// StartSession begins tracking a new uploader session.
func (p *Publisher) StartSession(uploader string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.snap = Snapshot{Uploader: uploader, StartedAt: now, UpdatedAt: now, Active: true}
	p.writeLocked()
}

// UpdateCredential records the credential currently active for the session
// and appends it to the session's credential history (spec §3:
// "credentials_used: list").
func (p *Publisher) UpdateCredential(index int, id string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.CredentialIndex = index
	p.snap.CredentialID = id
	p.snap.CredentialTotal = total
	if len(p.snap.CredentialsUsed) == 0 || p.snap.CredentialsUsed[len(p.snap.CredentialsUsed)-1] != id {
		p.snap.CredentialsUsed = append(p.snap.CredentialsUsed, id)
	}
	p.snap.UpdatedAt = time.Now()
	p.writeLocked()
}

// UpdateStage records the stage index currently running.
func (p *Publisher) UpdateStage(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Stage = n
	p.snap.UpdatedAt = time.Now()
	p.writeLocked()
}

// EndSession marks the session inactive.
func (p *Publisher) EndSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Active = false
	p.snap.UpdatedAt = time.Now()
	p.writeLocked()
}

// writeLocked persists the snapshot. This package has no logger
// dependency, and the write error is neither returned nor logged: a
// failed write is discarded silently. The blob is advisory, never
// load-bearing for scheduling decisions.
func (p *Publisher) writeLocked() {
	_ = core.WriteJSONAtomic(p.path, p.snap)
}

// Package ban implements the durable set of suspended credentials (C2). It
// is kept synchronized with the quota ledger (C1): whenever the ledger
// expires a quota record, the paired ban must be cleared before the next
// credential-selection call observes state. That pairing is the canonical
// invariant the scheduler exists to preserve: quota_expired(x) => !is_banned(x).
package ban

import (
	"sync"
	"time"

	"github.com/saupload/saupload/internal/core"
	"github.com/saupload/saupload/internal/logging"
)

// BanSet is the ban set for every (uploader, credential) pair. Safe for
// concurrent use.
type BanSet struct {
	mu      sync.Mutex
	path    string
	unbanAt map[core.QuotaKey]time.Time
	log     *logging.Logger
}

// cacheFile is the on-disk shape: uploader -> credential -> unban_at (nil
// meaning "not banned" is represented by the key's absence).
type cacheFile map[string]map[string]time.Time

// New creates a ban set backed by path, loading any existing cache.
func New(path string, log *logging.Logger) *BanSet {
	b := &BanSet{
		path:    path,
		unbanAt: make(map[core.QuotaKey]time.Time),
		log:     log,
	}
	b.load()
	return b
}

func (b *BanSet) load() {
	var file cacheFile
	found, err := core.ReadJSONIfExists(b.path, &file)
	if err != nil {
		b.log.Warn().Err(err).Msg("ban cache unreadable, starting empty")
		return
	}
	if !found {
		return
	}
	for uploader, byCred := range file {
		for cred, at := range byCred {
			b.unbanAt[core.QuotaKey{Uploader: uploader, Credential: cred}] = at
		}
	}
}

// Ban suspends credential under uploader until until.
func (b *BanSet) Ban(uploader, credential string, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unbanAt[core.QuotaKey{Uploader: uploader, Credential: credential}] = until
	if err := b.persistLocked(); err != nil {
		b.log.Warn().Err(err).Str("uploader", uploader).Str("credential", credential).Msg("failed to persist ban cache")
	}
}

// Unban clears any ban on credential under uploader, a no-op if it was not
// banned.
func (b *BanSet) Unban(uploader, credential string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unbanLocked(uploader, credential)
}

func (b *BanSet) unbanLocked(uploader, credential string) {
	key := core.QuotaKey{Uploader: uploader, Credential: credential}
	if _, ok := b.unbanAt[key]; !ok {
		return
	}
	delete(b.unbanAt, key)
	if err := b.persistLocked(); err != nil {
		b.log.Warn().Err(err).Str("uploader", uploader).Str("credential", credential).Msg("failed to persist ban cache")
	}
}

// IsBanned reports whether credential is currently banned: a ban is active
// iff unban_at is set and in the future.
func (b *BanSet) IsBanned(uploader, credential string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	at, ok := b.unbanAt[core.QuotaKey{Uploader: uploader, Credential: credential}]
	return ok && time.Now().Before(at)
}

// Refresh clears every ban whose deadline has passed and returns the pairs
// just unbanned. It must be called before credential selection, not after,
// so newly expired bans are visible to the current selection call.
func (b *BanSet) Refresh() []core.QuotaKey {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var unbanned []core.QuotaKey
	for key, at := range b.unbanAt {
		if now.After(at) {
			delete(b.unbanAt, key)
			unbanned = append(unbanned, key)
		}
	}
	if len(unbanned) > 0 {
		if err := b.persistLocked(); err != nil {
			b.log.Warn().Err(err).Msg("failed to persist ban cache after refresh")
		}
	}
	return unbanned
}

// ClearExpiredQuota clears the ban for every pair the quota ledger just
// expired, preserving the quota/ban synchronization invariant. The session
// loop calls this immediately after Ledger.Sweep, before the next
// selection.
func (b *BanSet) ClearExpiredQuota(expired []core.QuotaKey) {
	for _, key := range expired {
		b.Unban(key.Uploader, key.Credential)
	}
}

func (b *BanSet) persistLocked() error {
	file := make(cacheFile)
	for key, at := range b.unbanAt {
		byCred, ok := file[key.Uploader]
		if !ok {
			byCred = make(map[string]time.Time)
			file[key.Uploader] = byCred
		}
		byCred[key.Credential] = at
	}
	return core.WriteJSONAtomic(b.path, file)
}

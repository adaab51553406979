// Package distribution implements the reservoir-sampled file-size tracker
// (C3). Two independent instances exist per uploader: the "queue" tracker,
// fed from the control-plane's checking/transferring arrays before
// transfers begin, and the "history" tracker, fed from the engine driver's
// file_complete events. Only the queue variant's snapshot drives strategy
// selection; the history variant is analytic only.
package distribution

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/saupload/saupload/internal/constants"
	"github.com/saupload/saupload/internal/core"
)

// Source identifies which feed populated a snapshot.
type Source string

const (
	SourceCheckerQueue      Source = "checker_queue"
	SourceCompletedTransfers Source = "completed_transfers"
)

// Confidence buckets the sample count into the levels strategy selection
// consults before trusting large_file_fraction.
type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceHigh     Confidence = "high"
	ConfidenceVeryHigh Confidence = "very_high"
)

// Snapshot is a point-in-time summary of observed file sizes.
type Snapshot struct {
	Count             int
	TotalBytes        int64
	P50, P75, P90, P95, P99 int64
	Buckets           [5]int64 // counts aligned to constants.DistributionBucketEdges
	LargeFileFraction float64  // share of the 50GB+ bucket by count
	Confidence        Confidence
	Source            Source
	CapturedAt        time.Time
}

// Tracker maintains a fixed-size reservoir sample plus exact bucket and
// total counters. observe is O(1) expected; snapshot computes percentiles
// from the reservoir via nearest-rank (not interpolated), matching
// cloudplow's own percentile definition.
type Tracker struct {
	mu         sync.Mutex
	source     Source
	reservoir  []int64
	maxSize    int
	seen       int64
	totalBytes int64
	buckets    [5]int64
	rng        *rand.Rand
}

// New creates a tracker of the given source kind with the default reservoir
// size (constants.DefaultReservoirSize).
func New(source Source) *Tracker {
	return &Tracker{
		source:    source,
		reservoir: make([]int64, 0, constants.DefaultReservoirSize),
		maxSize:   constants.DefaultReservoirSize,
		rng:       rand.New(rand.NewSource(1)),
	}
}

// Observe records one file size. It is safe for concurrent use; the queue
// capturer and the history feed from C5 may both call it.
func (t *Tracker) Observe(size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seen++
	t.totalBytes += size
	t.buckets[bucketIndex(size)]++

	if len(t.reservoir) < t.maxSize {
		t.reservoir = append(t.reservoir, size)
		return
	}
	// Algorithm R: replace a random existing sample with decaying
	// probability as more items are seen.
	j := t.rng.Int63n(t.seen)
	if j < int64(t.maxSize) {
		t.reservoir[j] = size
	}
}

func bucketIndex(size int64) int {
	edges := constants.DistributionBucketEdges
	idx := len(edges) - 1
	for i := len(edges) - 1; i >= 0; i-- {
		if size >= edges[i] {
			idx = i
			break
		}
	}
	return idx
}

// Snapshot computes the current distribution summary. count == 0 yields a
// zero-value snapshot with ConfidenceLow.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Count:      int(t.seen),
		TotalBytes: t.totalBytes,
		Buckets:    t.buckets,
		Source:     t.source,
		CapturedAt: time.Now(),
		Confidence: confidenceFor(t.seen),
	}
	if t.seen > 0 {
		largest := t.buckets[len(t.buckets)-1]
		snap.LargeFileFraction = float64(largest) / float64(t.seen)
	}

	if len(t.reservoir) == 0 {
		return snap
	}
	sorted := append([]int64(nil), t.reservoir...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	snap.P50 = percentile(sorted, 0.50)
	snap.P75 = percentile(sorted, 0.75)
	snap.P90 = percentile(sorted, 0.90)
	snap.P95 = percentile(sorted, 0.95)
	snap.P99 = percentile(sorted, 0.99)
	return snap
}

func confidenceFor(count int64) Confidence {
	switch {
	case count < constants.MinSamplesForMediumConfidence:
		return ConfidenceLow
	case count < constants.MinSamplesForHighConfidence:
		return ConfidenceMedium
	case count < constants.MinSamplesForVeryHighConfidence:
		return ConfidenceHigh
	default:
		return ConfidenceVeryHigh
	}
}

// percentile uses nearest-rank on an already-sorted slice.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// persisted is the on-disk shape written under learned_sizes_cache.json's
// per-uploader entry.
type persisted struct {
	Reservoir  []int64 `json:"reservoir"`
	Seen       int64   `json:"seen"`
	TotalBytes int64   `json:"total_bytes"`
	Buckets    [5]int64 `json:"buckets"`
}

// Store persists both trackers for a set of uploaders into a single
// learned_sizes_cache.json, keyed by uploader name, with "queue_distribution"
// and "transfer_history" sub-keys per spec §6.
type Store struct {
	path string
}

// NewStore creates a persistence helper for path.
func NewStore(path string) *Store { return &Store{path: path} }

type uploaderEntry struct {
	QueueDistribution persisted `json:"queue_distribution"`
	TransferHistory   persisted `json:"transfer_history"`
}

// Save writes the queue and history trackers for every uploader.
func (s *Store) Save(queueByUploader, historyByUploader map[string]*Tracker) error {
	file := make(map[string]uploaderEntry)
	names := make(map[string]struct{})
	for name := range queueByUploader {
		names[name] = struct{}{}
	}
	for name := range historyByUploader {
		names[name] = struct{}{}
	}
	for name := range names {
		entry := uploaderEntry{}
		if t, ok := queueByUploader[name]; ok {
			entry.QueueDistribution = t.export()
		}
		if t, ok := historyByUploader[name]; ok {
			entry.TransferHistory = t.export()
		}
		file[name] = entry
	}
	return core.WriteJSONAtomic(s.path, file)
}

// LoadQueue loads only the queue-distribution tracker for uploader, the one
// variant C7 consults at startup. A missing cache yields a fresh, empty
// tracker rather than an error (error class 6: read failure treated as
// empty cache).
func (s *Store) LoadQueue(uploader string) *Tracker {
	var file map[string]uploaderEntry
	found, err := core.ReadJSONIfExists(s.path, &file)
	t := New(SourceCheckerQueue)
	if err != nil || !found {
		return t
	}
	entry, ok := file[uploader]
	if !ok {
		return t
	}
	t.restore(entry.QueueDistribution)
	return t
}

func (t *Tracker) export() persisted {
	t.mu.Lock()
	defer t.mu.Unlock()
	return persisted{
		Reservoir:  append([]int64(nil), t.reservoir...),
		Seen:       t.seen,
		TotalBytes: t.totalBytes,
		Buckets:    t.buckets,
	}
}

func (t *Tracker) restore(p persisted) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reservoir = append([]int64(nil), p.Reservoir...)
	t.seen = p.Seen
	t.totalBytes = p.TotalBytes
	t.buckets = p.Buckets
}

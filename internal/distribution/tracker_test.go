package distribution

import (
	"path/filepath"
	"testing"
)

func TestObserveThenSnapshotCount(t *testing.T) {
	tr := New(SourceCheckerQueue)
	for i := 0; i < 50; i++ {
		tr.Observe(int64(i+1) * 1024 * 1024)
	}

	snap := tr.Snapshot()
	if snap.Count != 50 {
		t.Errorf("expected count 50, got %d", snap.Count)
	}
}

func TestPercentilesAreMonotonic(t *testing.T) {
	tr := New(SourceCheckerQueue)
	for i := 1; i <= 1000; i++ {
		tr.Observe(int64(i) * 1024)
	}

	snap := tr.Snapshot()
	if !(snap.P50 <= snap.P75 && snap.P75 <= snap.P90 && snap.P90 <= snap.P95 && snap.P95 <= snap.P99) {
		t.Errorf("expected monotonic percentiles, got p50=%d p75=%d p90=%d p95=%d p99=%d",
			snap.P50, snap.P75, snap.P90, snap.P95, snap.P99)
	}
}

func TestConfidenceThresholds(t *testing.T) {
	cases := []struct {
		count int
		want  Confidence
	}{
		{5, ConfidenceLow},
		{50, ConfidenceMedium},
		{500, ConfidenceHigh},
		{5000, ConfidenceVeryHigh},
	}
	for _, c := range cases {
		tr := New(SourceCheckerQueue)
		for i := 0; i < c.count; i++ {
			tr.Observe(1024)
		}
		if got := tr.Snapshot().Confidence; got != c.want {
			t.Errorf("count=%d: expected confidence %s, got %s", c.count, c.want, got)
		}
	}
}

func TestLargeFileFraction(t *testing.T) {
	tr := New(SourceCheckerQueue)
	for i := 0; i < 90; i++ {
		tr.Observe(1024) // tiny files, bucket 0
	}
	for i := 0; i < 10; i++ {
		tr.Observe(100 * 1024 * 1024 * 1024) // 100 GB, final bucket
	}

	snap := tr.Snapshot()
	if snap.LargeFileFraction < 0.09 || snap.LargeFileFraction > 0.11 {
		t.Errorf("expected large file fraction ~0.10, got %v", snap.LargeFileFraction)
	}
}

func TestReservoirCapsAtMaxSize(t *testing.T) {
	tr := New(SourceCheckerQueue)
	tr.maxSize = 100 // shrink for a fast test

	for i := 0; i < 10000; i++ {
		tr.Observe(int64(i))
	}

	if len(tr.reservoir) != 100 {
		t.Errorf("expected reservoir capped at 100, got %d", len(tr.reservoir))
	}
	if tr.Snapshot().Count != 10000 {
		t.Errorf("expected exact count to track all observations, got %d", tr.Snapshot().Count)
	}
}

func TestStoreSaveAndLoadQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learned_sizes_cache.json")
	store := NewStore(path)

	queue := New(SourceCheckerQueue)
	queue.Observe(5 * 1024 * 1024)
	history := New(SourceCompletedTransfers)
	history.Observe(7 * 1024 * 1024)

	if err := store.Save(
		map[string]*Tracker{"media": queue},
		map[string]*Tracker{"media": history},
	); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	reloaded := store.LoadQueue("media")
	if reloaded.Snapshot().Count != 1 {
		t.Errorf("expected reloaded queue tracker to have 1 sample, got %d", reloaded.Snapshot().Count)
	}
}

func TestLoadQueueMissingCacheIsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	tr := store.LoadQueue("media")
	if tr.Snapshot().Count != 0 {
		t.Errorf("expected empty tracker for missing cache, got count %d", tr.Snapshot().Count)
	}
}

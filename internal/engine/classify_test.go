package engine

import (
	"testing"
	"time"
)

func TestClassifyFileComplete(t *testing.T) {
	c := NewClassifier(nil)
	ev := c.Classify("2026/01/01 12:00:00 INFO  : movie.mkv: Copied (new) (1.500 GiB)")
	if ev.Kind != EventFileComplete {
		t.Fatalf("expected file_complete, got %s", ev.Kind)
	}
	if ev.Path != "movie.mkv" {
		t.Errorf("expected path movie.mkv, got %q", ev.Path)
	}
	wantSize := int64(1.5 * 1024 * 1024 * 1024)
	if ev.Size != wantSize {
		t.Errorf("expected size %d, got %d", wantSize, ev.Size)
	}
}

func TestClassifyMovedWithoutSize(t *testing.T) {
	c := NewClassifier(nil)
	ev := c.Classify("2026/01/01 12:00:00 INFO  : archive.zip: Moved")
	if ev.Kind != EventFileComplete {
		t.Fatalf("expected file_complete, got %s", ev.Kind)
	}
	if ev.Path != "archive.zip" {
		t.Errorf("expected path archive.zip, got %q", ev.Path)
	}
	if ev.Size != 0 {
		t.Errorf("expected size 0 when absent from the line, got %d", ev.Size)
	}
}

func TestClassifyRateLimitBuiltinSubstring(t *testing.T) {
	c := NewClassifier(nil)
	ev := c.Classify("googleapi: Error 403: User Rate Limit Exceeded, userRateLimitExceeded")
	if ev.Kind != EventRateLimit {
		t.Fatalf("expected rate_limit, got %s", ev.Kind)
	}
	if ev.Kind2 != "userRateLimitExceeded" {
		t.Errorf("expected matched substring userRateLimitExceeded, got %q", ev.Kind2)
	}
	if ev.Delay != 24*time.Hour {
		t.Errorf("expected 24h delay, got %v", ev.Delay)
	}
}

func TestClassifyMaxTransferReached(t *testing.T) {
	c := NewClassifier(nil)
	ev := c.Classify("Failed to copy: max transfer limit reached as set by --max-transfer")
	if ev.Kind != EventMaxTransferReached {
		t.Fatalf("expected max_transfer_reached, got %s", ev.Kind)
	}
}

func TestClassifyFatal(t *testing.T) {
	c := NewClassifier(nil)
	ev := c.Classify("2026/01/01 12:00:00 FATAL  : Fatal error: couldn't connect to remote")
	if ev.Kind != EventFatal {
		t.Fatalf("expected fatal, got %s", ev.Kind)
	}
}

func TestClassifyIgnoresUnknownLines(t *testing.T) {
	c := NewClassifier(nil)
	ev := c.Classify("2026/01/01 12:00:00 INFO  : Starting transfer")
	if ev.Kind != EventIgnore {
		t.Fatalf("expected ignore, got %s", ev.Kind)
	}
}

func TestConfiguredSubstringsUnionWithBuiltins(t *testing.T) {
	c := NewClassifier(map[string]time.Duration{
		"customQuotaBlock": 2 * time.Hour,
	})

	builtin := c.Classify("dailyLimitExceeded: quota reached")
	if builtin.Kind != EventRateLimit || builtin.Delay != 24*time.Hour {
		t.Errorf("expected built-in substring to survive the union, got %+v", builtin)
	}

	custom := c.Classify("server said: customQuotaBlock in effect")
	if custom.Kind != EventRateLimit || custom.Delay != 2*time.Hour {
		t.Errorf("expected configured substring to classify as rate_limit with its own delay, got %+v", custom)
	}
}

func TestConfiguredOverrideChangesOnlyItsOwnDelay(t *testing.T) {
	c := NewClassifier(map[string]time.Duration{
		"403: User rate limit": 6 * time.Hour,
	})

	ev := c.Classify("403: User rate limit exceeded")
	if ev.Delay != 6*time.Hour {
		t.Errorf("expected overridden delay of 6h, got %v", ev.Delay)
	}

	other := c.Classify("dailyLimitExceeded")
	if other.Delay != 24*time.Hour {
		t.Errorf("expected unrelated built-in delay to remain 24h, got %v", other.Delay)
	}
}

package quota

import (
	"path/filepath"
	"testing"

	"github.com/saupload/saupload/internal/logging"
)

func newTestLedger(t *testing.T, capBytes int64, margin float64) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sa_quota_cache.json")
	return New(path, capBytes, margin, logging.New())
}

func TestAddAccumulatesBytes(t *testing.T) {
	l := newTestLedger(t, 1000, 0.05)

	l.Add("media", "sa1", 300)
	l.Add("media", "sa1", 200)

	if got := l.Remaining("media", "sa1"); got != 500 {
		t.Errorf("expected remaining 500, got %d", got)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	l := newTestLedger(t, 100, 0.05)

	l.Add("media", "sa1", 500)

	if got := l.Remaining("media", "sa1"); got != 0 {
		t.Errorf("expected remaining floored at 0, got %d", got)
	}
}

func TestEligibleRespectsSafetyMargin(t *testing.T) {
	l := newTestLedger(t, 1000, 0.05) // margin = 50 bytes

	l.Add("media", "sa1", 940) // used=940, cap-margin=950 -> still eligible
	if !l.Eligible("media", "sa1") {
		t.Fatal("expected credential to remain eligible under the margin")
	}

	l.Add("media", "sa1", 20) // used=960 >= 950 -> ineligible
	if l.Eligible("media", "sa1") {
		t.Fatal("expected credential to become ineligible once within the safety margin")
	}
}

func TestNeverUploadedFastPath(t *testing.T) {
	l := newTestLedger(t, 1000, 0.05)

	if !l.NeverUploaded("media", "sa1") {
		t.Fatal("expected a credential with no history to report NeverUploaded")
	}

	l.Add("media", "sa1", 10)

	if l.NeverUploaded("media", "sa1") {
		t.Fatal("expected NeverUploaded to be false once bytes have been recorded")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	l := newTestLedger(t, 1000, 0.05)
	l.Add("media", "sa1", 100)

	// No window has elapsed yet, so sweep should report nothing.
	if expired := l.Sweep(); len(expired) != 0 {
		t.Errorf("expected no expirations before the window elapses, got %d", len(expired))
	}

	// Calling again changes nothing.
	if expired := l.Sweep(); len(expired) != 0 {
		t.Errorf("expected sweep to remain a no-op, got %d", len(expired))
	}
}

func TestPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa_quota_cache.json")
	log := logging.New()

	l1 := New(path, 1000, 0.05, log)
	l1.Add("media", "sa1", 400)

	l2 := New(path, 1000, 0.05, log)
	if got := l2.Remaining("media", "sa1"); got != 600 {
		t.Errorf("expected reloaded ledger to see remaining 600, got %d", got)
	}
}

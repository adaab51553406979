package strategy

import (
	"testing"

	"github.com/saupload/saupload/internal/distribution"
)

const gibConst = 1024 * 1024 * 1024

func lightSnapshot(fraction float64) *distribution.Snapshot {
	return &distribution.Snapshot{Count: 500, LargeFileFraction: fraction, Confidence: distribution.ConfidenceHigh}
}

func TestFreshLightDistribution(t *testing.T) {
	bundle := Select(750*gibConst, 750*gibConst, int64(0.05*750*gibConst), lightSnapshot(0.002), 1)

	if bundle.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", bundle.Concurrency)
	}
	if bundle.StageByteCap != 375*gibConst {
		t.Errorf("expected stage cap 375 GiB, got %d", bundle.StageByteCap)
	}
	if bundle.PerFileCap != 600*gibConst {
		t.Errorf("expected size cap 600 GiB, got %d", bundle.PerFileCap)
	}
	if !bundle.OrderBySize {
		t.Error("expected order_by size_desc")
	}
}

func TestMidQuotaHeavyDistribution(t *testing.T) {
	bundle := Select(500*gibConst, 750*gibConst, int64(0.05*750*gibConst), lightSnapshot(0.05), 2)

	if bundle.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", bundle.Concurrency)
	}
	if bundle.StageByteCap != 450*gibConst {
		t.Errorf("expected stage cap 450 GiB, got %d", bundle.StageByteCap)
	}
	if bundle.PerFileCap != 375*gibConst {
		t.Errorf("expected size cap 375 GiB, got %d", bundle.PerFileCap)
	}
}

func TestCriticalTierAnyDistribution(t *testing.T) {
	cap := int64(750 * gibConst)
	margin := int64(0.05 * float64(cap))
	remaining := int64(80 * gibConst)

	bundle := Select(remaining, cap, margin, lightSnapshot(0.05), 3)

	if bundle.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", bundle.Concurrency)
	}
	if bundle.StageByteCap > remaining-margin {
		t.Errorf("expected stage cap <= remaining-margin, got %d > %d", bundle.StageByteCap, remaining-margin)
	}
	if bundle.PerFileCap != 40*gibConst {
		t.Errorf("expected size cap 40 GiB, got %d", bundle.PerFileCap)
	}
	if bundle.OrderBySize {
		t.Error("expected order none in critical tier")
	}
}

func TestSafetyMarginInvariantAcrossAllTiersAndRegimes(t *testing.T) {
	cap := int64(750 * gibConst)
	margin := int64(0.05 * float64(cap))

	remainders := []int64{750 * gibConst, 500 * gibConst, 200 * gibConst, 80 * gibConst, 10 * gibConst}
	fractions := []float64{0.001, 0.01, 0.05, 0.15}

	for _, remaining := range remainders {
		for _, frac := range fractions {
			bundle := Select(remaining, cap, margin, lightSnapshot(frac), 1)
			if bundle.StageByteCap > remaining-margin {
				t.Errorf("remaining=%d frac=%v: stage cap %d exceeds remaining-margin %d",
					remaining, frac, bundle.StageByteCap, remaining-margin)
			}
		}
	}
}

func TestNoSnapshotYieldsConservativeRegime(t *testing.T) {
	bundle := Select(750*gibConst, 750*gibConst, int64(0.05*750*gibConst), nil, 1)
	if bundle.StrategyTag != "fresh/conservative" {
		t.Errorf("expected conservative regime with no snapshot, got %s", bundle.StrategyTag)
	}
}

func TestLowConfidenceFallsBackToConservative(t *testing.T) {
	snap := &distribution.Snapshot{Count: 3, LargeFileFraction: 0.5, Confidence: distribution.ConfidenceLow}
	bundle := Select(750*gibConst, 750*gibConst, int64(0.05*750*gibConst), snap, 1)
	if bundle.StrategyTag != "fresh/conservative" {
		t.Errorf("expected conservative regime under low confidence, got %s", bundle.StrategyTag)
	}
}

func TestSelectIsPure(t *testing.T) {
	snap := lightSnapshot(0.03)
	a := Select(400*gibConst, 750*gibConst, int64(0.05*750*gibConst), snap, 2)
	b := Select(400*gibConst, 750*gibConst, int64(0.05*750*gibConst), snap, 2)
	if a != b {
		t.Errorf("expected identical inputs to yield identical bundles, got %+v vs %+v", a, b)
	}
}

func TestCutoffModeAlwaysCautious(t *testing.T) {
	bundle := Select(750*gibConst, 750*gibConst, int64(0.05*750*gibConst), nil, 1)
	if bundle.CutoffMode != "cautious" {
		t.Errorf("expected cutoff mode cautious, got %s", bundle.CutoffMode)
	}
}

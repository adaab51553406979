// Package strategy implements the stage parameter selector (C7): a pure,
// deterministic function of (remaining quota, distribution snapshot,
// stage index) that yields the concrete flag bundle for one stage.
package strategy

import (
	"github.com/saupload/saupload/internal/core"
	"github.com/saupload/saupload/internal/distribution"
)

const gib = 1024 * 1024 * 1024

// QuotaTier buckets remaining/cap.
type QuotaTier string

const (
	TierFresh    QuotaTier = "fresh"
	TierMid      QuotaTier = "mid"
	TierLow      QuotaTier = "low"
	TierCritical QuotaTier = "critical"
)

// DistributionRegime buckets large_file_fraction.
type DistributionRegime string

const (
	RegimeUltraHeavy   DistributionRegime = "ultra_heavy"
	RegimeHeavy        DistributionRegime = "heavy"
	RegimeBalanced     DistributionRegime = "balanced"
	RegimeLight        DistributionRegime = "light"
	RegimeConservative DistributionRegime = "conservative"
)

// QuotaTierFor classifies remaining/cap.
func QuotaTierFor(remaining, cap int64) QuotaTier {
	if cap <= 0 {
		return TierCritical
	}
	ratio := float64(remaining) / float64(cap)
	switch {
	case ratio > 0.80:
		return TierFresh
	case ratio >= 0.50:
		return TierMid
	case ratio >= 0.25:
		return TierLow
	default:
		return TierCritical
	}
}

// DistributionRegimeFor classifies a snapshot, or returns conservative when
// snap is nil or confidence is below medium.
func DistributionRegimeFor(snap *distribution.Snapshot) DistributionRegime {
	if snap == nil || snap.Count == 0 {
		return RegimeConservative
	}
	if snap.Confidence == distribution.ConfidenceLow {
		return RegimeConservative
	}
	frac := snap.LargeFileFraction * 100 // fraction is a share in [0,1]; thresholds are percentages
	switch {
	case frac > 10:
		return RegimeUltraHeavy
	case frac >= 2:
		return RegimeHeavy
	case frac >= 0.5:
		return RegimeBalanced
	default:
		return RegimeLight
	}
}

// bundleTemplate holds the tier x regime table entries before the safety
// margin and remaining-quota clamps are applied.
type bundleTemplate struct {
	concurrency int
	stageCapGiB int64
	sizeCapGiB  int64
	orderSize   bool
}

var table = map[QuotaTier]map[DistributionRegime]bundleTemplate{
	TierFresh: {
		RegimeLight:        {8, 375, 600, true},
		RegimeBalanced:     {6, 375, 300, true},
		RegimeHeavy:        {4, 350, 200, true},
		RegimeUltraHeavy:   {2, 300, 150, true},
		RegimeConservative: {4, 300, 250, true},
	},
	TierMid: {
		RegimeLight:        {8, 450, 500, true},
		RegimeBalanced:     {6, 450, 375, true},
		RegimeHeavy:        {4, 450, 375, true},
		RegimeUltraHeavy:   {2, 350, 150, true},
		RegimeConservative: {4, 350, 250, true},
	},
	TierLow: {
		RegimeLight:        {8, 180, 300, true},
		RegimeBalanced:     {6, 180, 250, true},
		RegimeHeavy:        {4, 160, 150, true},
		RegimeUltraHeavy:   {2, 140, 100, true},
		RegimeConservative: {4, 150, 150, true},
	},
	TierCritical: {
		RegimeLight:        {8, 0, 40, false},
		RegimeBalanced:     {8, 0, 40, false},
		RegimeHeavy:        {8, 0, 40, false},
		RegimeUltraHeavy:   {8, 0, 40, false},
		RegimeConservative: {8, 0, 40, false},
	},
}

// Select computes the stage parameter bundle for stage index (1-based)
// given the credential's remaining quota, cap, and safety margin (all in
// bytes), and its distribution snapshot (nil if unavailable).
//
// Invariant enforced unconditionally: StageByteCap <= remaining - margin.
func Select(remaining, cap, marginBytes int64, snap *distribution.Snapshot, stage int) core.StageParams {
	tier := QuotaTierFor(remaining, cap)
	regime := DistributionRegimeFor(snap)
	tmpl := table[tier][regime]

	maxAllowed := remaining - marginBytes
	if maxAllowed < 0 {
		maxAllowed = 0
	}

	stageCap := tmpl.stageCapGiB * gib
	if tier == TierCritical {
		// spec §4.7: critical tier forces stage_cap = remaining - safety_margin.
		stageCap = maxAllowed
	}
	if stageCap > maxAllowed {
		stageCap = maxAllowed
	}

	sizeCap := tmpl.sizeCapGiB * gib
	if tier == TierCritical {
		// spec §4.7: critical tier forces size_cap = min(150 GiB, remaining/2).
		sizeCap = remaining / 2
		if sizeCap > 150*gib {
			sizeCap = 150 * gib
		}
	}

	return core.StageParams{
		Concurrency:  tmpl.concurrency,
		StageByteCap: stageCap,
		PerFileCap:   sizeCap,
		OrderBySize:  tmpl.orderSize,
		CutoffMode:   "cautious",
		StrategyTag:  string(tier) + "/" + string(regime),
	}
}

package prosody

import (
	"github.com/RyanBlaney/sonido-coach/algorithms/common"
	"github.com/RyanBlaney/sonido-coach/algorithms/stats"
)

// TierOptions tune Tier. Thresholds are the upper mean-cents distances for
// tiers 5, 4, 3 and 2; anything farther is tier 1.
type TierOptions struct {
	Band       int        `yaml:"band" json:"band"` // Sakoe-Chiba radius in frames, 0 = unconstrained
	Thresholds [4]float64 `yaml:"thresholds" json:"thresholds"`
}

// DefaultTierOptions returns the standard 25/50/100/200 cent tiers.
func DefaultTierOptions() TierOptions {
	return TierOptions{Thresholds: [4]float64{25, 50, 100, 200}}
}

// TierResult is the outcome of Tier. Tier is 0 when either contour has no
// voiced frames.
type TierResult struct {
	Tier          int     `json:"tier"`
	DistanceCents float64 `json:"distance_cents"`
}

// Tier rates how closely performance follows the shape of reference. Both
// contours are normalized to their own median so register differences do not
// count, then aligned with DTW.
func Tier(performance, reference []Frame, opts TierOptions) TierResult {
	perf := contourCents(performance)
	ref := contourCents(reference)
	if len(perf) == 0 || len(ref) == 0 {
		return TierResult{}
	}

	dtw := stats.NewDTWAlignment()
	if opts.Band > 0 {
		dtw = stats.NewDTWAlignmentWithBand(opts.Band)
	}
	aligned, err := dtw.AlignVectors(perf, ref)
	if err != nil {
		return TierResult{}
	}

	return TierResult{Tier: opts.tierFor(aligned.Distance), DistanceCents: aligned.Distance}
}

func (o TierOptions) tierFor(distance float64) int {
	for i, limit := range o.Thresholds {
		if distance <= limit {
			return 5 - i
		}
	}
	return 1
}

func contourCents(frames []Frame) []float64 {
	var hz []float64
	for _, f := range frames {
		if f.Voiced() {
			hz = append(hz, f.F0Hz)
		}
	}
	if len(hz) == 0 {
		return nil
	}
	ref := common.Median(hz)
	for i, v := range hz {
		hz[i] = common.Cents(v, ref)
	}
	return hz
}

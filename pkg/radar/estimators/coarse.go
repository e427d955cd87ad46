package estimators

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/apres-range/pkg/radar/common"
)

// CoarseRangeEstimator detects reflectors at bin resolution. Two reflectors
// closer than one range bin are not resolved into separate estimates.
type CoarseRangeEstimator struct {
	maxRangeM float64
	logger    logging.Logger
}

// CoarseOption configures a CoarseRangeEstimator
type CoarseOption func(*CoarseRangeEstimator)

// WithMaxRange limits the search to ranges at or below maxRangeM. Zero keeps
// the default cutoff at the Nyquist bin.
func WithMaxRange(maxRangeM float64) CoarseOption {
	return func(e *CoarseRangeEstimator) { e.maxRangeM = maxRangeM }
}

// WithCoarseLogger overrides the component logger
func WithCoarseLogger(logger logging.Logger) CoarseOption {
	return func(e *CoarseRangeEstimator) { e.logger = logger }
}

// NewCoarseRangeEstimator creates a coarse estimator
func NewCoarseRangeEstimator(opts ...CoarseOption) *CoarseRangeEstimator {
	e := &CoarseRangeEstimator{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.WithFields(logging.Fields{
			"component": "coarse_range_estimator",
		})
	}
	return e
}

// MaxBin returns the last bin index searched for sp
func (e *CoarseRangeEstimator) MaxBin(sp *common.Spectrum) int {
	maxBin := min(sp.SignalLength()/2, sp.Len()-1)
	if e.maxRangeM > 0 {
		byRange := int(math.Floor(e.maxRangeM / sp.RangeBinWidth()))
		maxBin = min(maxBin, byRange)
	}
	return max(maxBin, 0)
}

// Estimate returns strict local maxima above threshold, ascending by bin.
// On a padded spectrum a peak must beat every bin within the pad factor on
// either side, one resolution cell, which rejects sampled sidelobes. An empty
// result means nothing was detected and is not an error.
func (e *CoarseRangeEstimator) Estimate(sp *common.Spectrum, threshold Threshold) ([]common.ReflectorEstimate, error) {
	if sp == nil {
		return nil, common.NewRadarError(common.ErrCodeInsufficientSamples, "Estimate", "nil spectrum", nil)
	}
	if err := threshold.Validate(); err != nil {
		return nil, err
	}
	if e.maxRangeM < 0 || math.IsNaN(e.maxRangeM) {
		return nil, common.NewRadarError(common.ErrCodeInvalidConfig, "Estimate",
			fmt.Sprintf("max range must not be negative, got %g", e.maxRangeM), nil)
	}

	maxBin := e.MaxBin(sp)
	mags := sp.Magnitudes()[:maxBin+1]
	level, floor := threshold.Level(mags, sp.SidelobeFloor())
	reach := sp.PadFactor()

	logger := e.logger.WithFields(logging.Fields{
		"function":  "Estimate",
		"max_bin":   maxBin,
		"reach":     reach,
		"threshold": threshold.String(),
	})

	estimates := make([]common.ReflectorEstimate, 0)
	for k := 1; k < maxBin; k++ {
		if mags[k] <= level || !isPeak(mags, k, reach) {
			continue
		}
		r := sp.Range(k)
		estimates = append(estimates, common.ReflectorEstimate{
			CoarseRangeM: r,
			FineRangeM:   r,
			Amplitude:    mags[k],
			PhaseRad:     sp.Phase(k),
			BinIndex:     k,
		})
	}

	logger.Debug("Coarse peaks detected", logging.Fields{
		"level":       level,
		"noise_floor": floor.Level,
		"peaks":       len(estimates),
	})

	return estimates, nil
}

// isPeak reports whether mags[k] strictly exceeds every other bin within reach
func isPeak(mags []float64, k, reach int) bool {
	lo, hi := max(0, k-reach), min(len(mags)-1, k+reach)
	for j := lo; j <= hi; j++ {
		if j != k && mags[j] >= mags[k] {
			return false
		}
	}
	return true
}

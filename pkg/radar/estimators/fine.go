package estimators

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/apres-range/pkg/radar/common"
)

// FineRangeRefiner converts bin phase into a sub-bin range correction
type FineRangeRefiner struct {
	logger logging.Logger
}

// NewFineRangeRefiner creates a refiner. A nil logger uses the default.
func NewFineRangeRefiner(logger logging.Logger) *FineRangeRefiner {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{
			"component": "fine_range_refiner",
		})
	}
	return &FineRangeRefiner{logger: logger}
}

// PrincipalPhase wraps phase into (-pi, pi]
func PrincipalPhase(phase float64) float64 {
	p := math.Mod(phase, 2*math.Pi)
	switch {
	case p > math.Pi:
		p -= 2 * math.Pi
	case p <= -math.Pi:
		p += 2 * math.Pi
	}
	return p
}

// FineOffset returns the range offset phase*lambda/(4*pi) for the principal
// value of phase. Its magnitude never exceeds lambda/4.
func FineOffset(phase, wavelength float64) float64 {
	return PrincipalPhase(phase) * wavelength / (4 * math.Pi)
}

// Refine returns est with FineRangeM set from the phase of its bin. The input
// value is not modified.
func (r *FineRangeRefiner) Refine(est common.ReflectorEstimate, sp *common.Spectrum, cfg *common.ChirpConfig) (common.ReflectorEstimate, error) {
	if sp == nil || !sp.Config().Equal(cfg) {
		return est, common.NewRadarError(common.ErrCodeMismatchedConfig, "Refine",
			"spectrum was not produced with the supplied chirp configuration", nil)
	}
	if est.BinIndex < 0 || est.BinIndex >= sp.Len() {
		return est, common.NewRadarError(common.ErrCodeMismatchedConfig, "Refine",
			fmt.Sprintf("bin %d outside spectrum of %d bins", est.BinIndex, sp.Len()), nil)
	}
	if !sp.HasPhase() {
		return est, common.NewRadarError(common.ErrCodePhaseUnavailable, "Refine",
			"spectrum carries magnitude only", nil)
	}

	phase := PrincipalPhase(sp.Phase(est.BinIndex))
	offset := FineOffset(phase, cfg.Wavelength())

	refined := est
	refined.PhaseRad = phase
	refined.FineRangeM = est.CoarseRangeM + offset
	return refined, nil
}

// RefineAll refines every estimate and returns a new slice
func (r *FineRangeRefiner) RefineAll(estimates []common.ReflectorEstimate, sp *common.Spectrum, cfg *common.ChirpConfig) ([]common.ReflectorEstimate, error) {
	out := make([]common.ReflectorEstimate, len(estimates))
	for i, est := range estimates {
		refined, err := r.Refine(est, sp, cfg)
		if err != nil {
			return nil, err
		}
		out[i] = refined
	}

	r.logger.Debug("Fine ranges refined", logging.Fields{
		"function":   "RefineAll",
		"estimates":  len(out),
		"wavelength": cfg.Wavelength(),
	})
	return out, nil
}

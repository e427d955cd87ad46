package estimators

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/apres-range/pkg/radar/analyzers"
	"github.com/RyanBlaney/apres-range/pkg/radar/common"
	"github.com/RyanBlaney/apres-range/pkg/radar/synthetic"
)

func newConfig(t *testing.T, samplingHz float64) *common.ChirpConfig {
	t.Helper()
	cfg, err := common.NewChirpConfig(common.ChirpParams{
		BandwidthHz:  200e6,
		DurationS:    1,
		CarrierHz:    300e6,
		SamplingHz:   samplingHz,
		Permittivity: 3.1,
	})
	require.NoError(t, err)
	return cfg
}

func analyze(t *testing.T, cfg *common.ChirpConfig, reflectors []synthetic.Reflector) *common.Spectrum {
	t.Helper()
	sig, err := synthetic.Generate(cfg, reflectors)
	require.NoError(t, err)
	sp, err := analyzers.NewSpectralAnalyzer(analyzers.WithLogger(&logging.NoOpLogger{})).Analyze(sig)
	require.NoError(t, err)
	return sp
}

func nopCoarse(opts ...CoarseOption) *CoarseRangeEstimator {
	return NewCoarseRangeEstimator(append([]CoarseOption{WithCoarseLogger(&logging.NoOpLogger{})}, opts...)...)
}

func TestCoarseTwoReflectorScenario(t *testing.T) {
	cfg := newConfig(t, 12000)
	sp := analyze(t, cfg, []synthetic.Reflector{{RangeM: 50, Amplitude: 1}, {RangeM: 120, Amplitude: 1}})

	for _, threshold := range []Threshold{AbsoluteThreshold(0.1), DefaultThreshold()} {
		estimates, err := nopCoarse().Estimate(sp, threshold)
		require.NoError(t, err)
		require.Len(t, estimates, 2, threshold.String())

		width := cfg.RangeBinWidth()
		assert.Less(t, math.Abs(estimates[0].CoarseRangeM-50), width)
		assert.Less(t, math.Abs(estimates[1].CoarseRangeM-120), width)
		assert.Less(t, estimates[0].BinIndex, estimates[1].BinIndex)
		assert.Equal(t, 117, estimates[0].BinIndex)
		assert.Equal(t, 282, estimates[1].BinIndex)

		for _, est := range estimates {
			assert.Equal(t, est.CoarseRangeM, est.FineRangeM)
			assert.InDelta(t, sp.Magnitude(est.BinIndex), est.Amplitude, 1e-15)
			assert.InDelta(t, sp.Phase(est.BinIndex), est.PhaseRad, 1e-15)
		}
	}
}

func TestCoarseNothingAboveThreshold(t *testing.T) {
	cfg := newConfig(t, 4096)
	sp := analyze(t, cfg, []synthetic.Reflector{{RangeM: 50, Amplitude: 0.01}})

	estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.5))
	require.NoError(t, err)
	assert.NotNil(t, estimates)
	assert.Empty(t, estimates)
}

func TestCoarseMaxRangeCutoff(t *testing.T) {
	cfg := newConfig(t, 4096)
	sp := analyze(t, cfg, []synthetic.Reflector{{RangeM: 50, Amplitude: 1}, {RangeM: 120, Amplitude: 1}})

	estimates, err := nopCoarse(WithMaxRange(100)).Estimate(sp, AbsoluteThreshold(0.1))
	require.NoError(t, err)
	require.Len(t, estimates, 1)
	assert.Less(t, math.Abs(estimates[0].CoarseRangeM-50), cfg.RangeBinWidth())

	_, err = nopCoarse(WithMaxRange(-1)).Estimate(sp, AbsoluteThreshold(0.1))
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}

func TestCoarseExcludesNegativeFrequencies(t *testing.T) {
	cfg := newConfig(t, 4096)
	n := cfg.NominalSamples()

	samples := make([]complex128, n)
	for i := range samples {
		samples[i] = cmplx.Exp(complex(0, -2*math.Pi*100*float64(i)/float64(n)))
	}
	sig, err := common.NewComplexBeatSignal(samples, cfg)
	require.NoError(t, err)
	sp, err := analyzers.NewSpectralAnalyzer(analyzers.WithLogger(&logging.NoOpLogger{})).Analyze(sig)
	require.NoError(t, err)
	require.InDelta(t, 1.0, sp.Magnitude(n-100), 1e-9)

	estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.1))
	require.NoError(t, err)
	assert.Empty(t, estimates)
}

func TestCoarseStrictLocalMaxima(t *testing.T) {
	cfg := newConfig(t, 4096)

	tests := []struct {
		name string
		mags []float64
		want []int
	}{
		{"single peak", []float64{0, 1, 3, 1, 0, 0, 0, 0, 0, 0}, []int{2}},
		{"plateau rejected", []float64{0, 2, 2, 0, 0, 0, 0, 0, 0, 0}, nil},
		{"two peaks", []float64{0, 3, 1, 0, 2, 1, 0, 0, 0, 0}, []int{1, 4}},
		{"edge bins ignored", []float64{5, 1, 0, 0, 0, 0, 0, 0, 0, 0}, nil},
		{"below threshold", []float64{0, 0.5, 0, 0, 0, 0, 0, 0, 0, 0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp, err := common.NewMagnitudeSpectrum(tt.mags, 2*len(tt.mags), cfg)
			require.NoError(t, err)

			estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.9))
			require.NoError(t, err)

			var bins []int
			for _, est := range estimates {
				bins = append(bins, est.BinIndex)
				assert.Equal(t, 0.0, est.PhaseRad)
			}
			assert.Equal(t, tt.want, bins)
		})
	}
}

func TestCoarsePaddedPeaksSpanOneCell(t *testing.T) {
	cfg := newConfig(t, 4096)
	// bin 11 is a sampled sidelobe: it tops its adjacent bins but not bin 9
	mags := []float64{0, 1, 2, 6, 9, 10, 9, 6, 2, 1, 0.5, 0.8, 0.5, 0.3, 0.3, 1, 3, 1, 0.3, 0}

	tests := []struct {
		pad  int
		want []int
	}{
		{1, []int{5, 11, 16}},
		{2, []int{5, 16}},
	}
	for _, tt := range tests {
		sp, err := common.NewMagnitudeSpectrum(mags, 2*len(mags), cfg, common.WithPadFactor(tt.pad))
		require.NoError(t, err)

		estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.1))
		require.NoError(t, err)

		var bins []int
		for _, est := range estimates {
			bins = append(bins, est.BinIndex)
		}
		assert.Equal(t, tt.want, bins, "pad %d", tt.pad)
	}
}

func TestThresholdLevel(t *testing.T) {
	quiet := make([]float64, 1000)
	for i := range quiet {
		quiet[i] = 1e-12
	}
	quiet[300] = 1

	level, floor := DefaultThreshold().Level(quiet, 0)
	assert.Equal(t, 1.0, floor.Peak)
	assert.InDelta(t, MinDynamicRange, level, 1e-15)

	level, _ = DefaultThreshold().Level(quiet, 0.015)
	assert.InDelta(t, 0.015, level, 1e-15)

	// an absolute threshold is never raised
	level, _ = AbsoluteThreshold(1e-6).Level(quiet, 0.015)
	assert.Equal(t, 1e-6, level)

	// a real noise floor dominates the relative bound
	noisy := make([]float64, 1000)
	for i := range noisy {
		noisy[i] = 0.5
	}
	noisy[300] = 1
	level, floor = NoiseFloorThreshold(3).Level(noisy, 0.015)
	assert.Equal(t, 0.5, floor.Level)
	assert.InDelta(t, 1.5, level, 1e-12)
}

func TestCoarseNoiselessDefaultThreshold(t *testing.T) {
	cfg := newConfig(t, 12000)

	for _, w := range []analyzers.WindowType{analyzers.WindowRectangular, analyzers.WindowHann, analyzers.WindowHamming, analyzers.WindowBlackman} {
		sig, err := synthetic.Generate(cfg, []synthetic.Reflector{{RangeM: 50, Amplitude: 1}})
		require.NoError(t, err)
		sp, err := analyzers.NewSpectralAnalyzer(analyzers.WithLogger(&logging.NoOpLogger{}), analyzers.WithWindow(w)).Analyze(sig)
		require.NoError(t, err)

		estimates, err := nopCoarse().Estimate(sp, DefaultThreshold())
		require.NoError(t, err)
		require.Len(t, estimates, 1, w)
		assert.Equal(t, 117, estimates[0].BinIndex, w)
	}
}

func TestCoarseRejectsInvalidThreshold(t *testing.T) {
	cfg := newConfig(t, 4096)
	sp := analyze(t, cfg, []synthetic.Reflector{{RangeM: 50, Amplitude: 1}})

	for _, th := range []Threshold{
		AbsoluteThreshold(-1),
		NoiseFloorThreshold(math.NaN()),
		{Mode: "percentile", Value: 1},
	} {
		_, err := nopCoarse().Estimate(sp, th)
		assert.True(t, errors.Is(err, common.ErrInvalidConfig), "%v: %v", th, err)
	}

	_, err := nopCoarse().Estimate(nil, DefaultThreshold())
	assert.Error(t, err)
}

func TestResolutionBoundary(t *testing.T) {
	cfg := newConfig(t, 4096)
	width := cfg.RangeBinWidth()

	for i := range 10 {
		r1 := (100 + 0.1*float64(i)) * width

		for _, sep := range []float64{2.0, 3.0} {
			r2 := r1 + sep*width
			sp := analyze(t, cfg, []synthetic.Reflector{{RangeM: r1, Amplitude: 1}, {RangeM: r2, Amplitude: 1}})
			estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.1))
			require.NoError(t, err)
			require.Len(t, estimates, 2, "r1=%.3f sep=%.1f", r1, sep)
			assert.Less(t, math.Abs(estimates[0].CoarseRangeM-r1), width)
			assert.Less(t, math.Abs(estimates[1].CoarseRangeM-r2), width)
		}

		for _, sep := range []float64{0.2, 0.4} {
			sp := analyze(t, cfg, []synthetic.Reflector{{RangeM: r1, Amplitude: 1}, {RangeM: r1 + sep*width, Amplitude: 1}})
			estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.1))
			require.NoError(t, err)
			assert.LessOrEqual(t, len(estimates), 1, "r1=%.3f sep=%.1f", r1, sep)
		}
	}
}

func TestPrincipalPhase(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{5 * math.Pi, math.Pi},
		{2*math.Pi + 0.25, 0.25},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, PrincipalPhase(tt.in), 1e-12, "phase %v", tt.in)
	}
}

func TestFineRefinementRecoversSubBinRange(t *testing.T) {
	cfg := newConfig(t, 4096)
	width := cfg.RangeBinWidth()
	lambda := cfg.Wavelength()
	refiner := NewFineRangeRefiner(&logging.NoOpLogger{})

	for _, offset := range []float64{-0.12, -0.05, 0, 0.03, 0.1, 0.13} {
		truth := 117*width + offset
		sp := analyze(t, cfg, []synthetic.Reflector{{RangeM: truth, Amplitude: 1}})

		estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.1))
		require.NoError(t, err)
		require.Len(t, estimates, 1)

		coarseErr := math.Abs(estimates[0].CoarseRangeM - truth)
		assert.Less(t, coarseErr, width/2)

		refined, err := refiner.Refine(estimates[0], sp, cfg)
		require.NoError(t, err)
		assert.Less(t, math.Abs(refined.RangeM()-truth), 1e-4, "offset %.2f", offset)
		assert.LessOrEqual(t, math.Abs(refined.FineCorrectionM()), lambda/4)
		assert.Equal(t, estimates[0].CoarseRangeM, refined.CoarseRangeM)

		// the input estimate is left as it was
		assert.Equal(t, estimates[0].CoarseRangeM, estimates[0].FineRangeM)
	}
}

func TestFineCorrectionNeverExceedsQuarterWavelength(t *testing.T) {
	cfg := newConfig(t, 4096)
	lambda := cfg.Wavelength()
	refiner := NewFineRangeRefiner(&logging.NoOpLogger{})

	var reflectors []synthetic.Reflector
	for i := range 40 {
		reflectors = append(reflectors, synthetic.Reflector{RangeM: 20 + 13.37*float64(i), Amplitude: 1})
	}
	sp := analyze(t, cfg, reflectors)

	estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.05))
	require.NoError(t, err)
	require.NotEmpty(t, estimates)

	refined, err := refiner.RefineAll(estimates, sp, cfg)
	require.NoError(t, err)
	require.Len(t, refined, len(estimates))
	for _, est := range refined {
		assert.LessOrEqual(t, math.Abs(est.FineCorrectionM()), lambda/4)
		assert.Greater(t, est.PhaseRad, -math.Pi)
		assert.LessOrEqual(t, est.PhaseRad, math.Pi)
	}
}

func TestFineRefinerErrors(t *testing.T) {
	cfg := newConfig(t, 4096)
	other := newConfig(t, 8192)
	refiner := NewFineRangeRefiner(&logging.NoOpLogger{})

	sp := analyze(t, cfg, []synthetic.Reflector{{RangeM: 50, Amplitude: 1}})
	estimates, err := nopCoarse().Estimate(sp, AbsoluteThreshold(0.1))
	require.NoError(t, err)
	require.Len(t, estimates, 1)

	_, err = refiner.Refine(estimates[0], sp, other)
	assert.True(t, errors.Is(err, common.ErrMismatchedConfig))

	_, err = refiner.Refine(estimates[0], nil, cfg)
	assert.True(t, errors.Is(err, common.ErrMismatchedConfig))

	outOfRange := estimates[0]
	outOfRange.BinIndex = sp.Len()
	_, err = refiner.Refine(outOfRange, sp, cfg)
	assert.True(t, errors.Is(err, common.ErrMismatchedConfig))

	magOnly, err := common.NewMagnitudeSpectrum(sp.Magnitudes(), sp.SignalLength(), cfg)
	require.NoError(t, err)
	_, err = refiner.Refine(estimates[0], magOnly, cfg)
	assert.True(t, errors.Is(err, common.ErrPhaseUnavailable))

	_, err = refiner.RefineAll(estimates, magOnly, cfg)
	assert.True(t, errors.Is(err, common.ErrPhaseUnavailable))
}

func TestParseThresholdMode(t *testing.T) {
	mode, err := ParseThresholdMode("ABSOLUTE")
	require.NoError(t, err)
	assert.Equal(t, ThresholdAbsolute, mode)

	mode, err = ParseThresholdMode("")
	require.NoError(t, err)
	assert.Equal(t, ThresholdNoiseFloor, mode)

	_, err = ParseThresholdMode("dB")
	assert.Error(t, err)

	assert.Equal(t, "absolute(0.5)", AbsoluteThreshold(0.5).String())
	assert.Equal(t, "10x noise floor", DefaultThreshold().String())
}

package stacking

import (
	"errors"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/apres-range/pkg/radar/analyzers"
	"github.com/RyanBlaney/apres-range/pkg/radar/common"
	"github.com/RyanBlaney/apres-range/pkg/radar/synthetic"
)

type StackerTestSuite struct {
	suite.Suite
	config   *common.ChirpConfig
	analyzer *analyzers.SpectralAnalyzer
	signals  []*common.BeatSignal
}

func (s *StackerTestSuite) SetupTest() {
	cfg, err := common.NewChirpConfig(common.ChirpParams{
		BandwidthHz:  200e6,
		DurationS:    1,
		CarrierHz:    300e6,
		SamplingHz:   1024,
		Permittivity: 3.1,
	})
	s.Require().NoError(err)
	s.config = cfg
	s.analyzer = analyzers.NewSpectralAnalyzer(analyzers.WithLogger(&logging.NoOpLogger{}))

	rng := rand.New(rand.NewPCG(3, 5))
	s.signals, err = synthetic.Burst(cfg, []synthetic.Reflector{{RangeM: 60, Amplitude: 1}}, 9,
		synthetic.WithNoise(0.5, rng))
	s.Require().NoError(err)
}

func (s *StackerTestSuite) naiveMean(signals []*common.BeatSignal) []complex128 {
	out := make([]complex128, signals[0].Len())
	for _, sig := range signals {
		for i := range out {
			out[i] += sig.At(i)
		}
	}
	for i := range out {
		out[i] /= complex(float64(len(signals)), 0)
	}
	return out
}

func (s *StackerTestSuite) assertClose(want, got []complex128, tol float64) {
	s.Require().Len(got, len(want))
	for i := range want {
		s.Require().InDelta(0, cmplx.Abs(want[i]-got[i]), tol, "sample %d", i)
	}
}

func (s *StackerTestSuite) TestIncrementalMatchesBulk() {
	stacker, err := NewStacker(s.config, Coherent)
	s.Require().NoError(err)
	for _, sig := range s.signals {
		s.Require().NoError(stacker.AddSignal(sig))
	}
	s.Equal(len(s.signals), stacker.Count())

	incremental, err := stacker.Finalize()
	s.Require().NoError(err)

	bulk, err := StackSignals(s.config, Coherent, s.analyzer, s.signals)
	s.Require().NoError(err)

	s.Equal(len(s.signals), incremental.Count())
	s.True(incremental.HasPhase())
	s.True(incremental.Signal().IsComplex())
	s.assertClose(s.naiveMean(s.signals), incremental.Signal().Samples(), 1e-12)
	s.assertClose(incremental.Signal().Samples(), bulk.Signal().Samples(), 1e-15)
}

func (s *StackerTestSuite) TestMergeMatchesSequential() {
	left, err := NewStacker(s.config, Coherent)
	s.Require().NoError(err)
	right, err := NewStacker(s.config, Coherent)
	s.Require().NoError(err)
	empty, err := NewStacker(s.config, Coherent)
	s.Require().NoError(err)

	s.Require().NoError(left.AddSignals(s.signals[:2]))
	s.Require().NoError(right.AddSignals(s.signals[2:]))
	s.Require().NoError(left.Merge(right))
	s.Require().NoError(left.Merge(nil))
	s.Require().NoError(empty.Merge(left))
	s.Equal(len(s.signals), left.Count())
	s.Equal(len(s.signals), empty.Count())

	merged, err := left.Finalize()
	s.Require().NoError(err)
	s.assertClose(s.naiveMean(s.signals), merged.Signal().Samples(), 1e-12)

	copied, err := empty.Finalize()
	s.Require().NoError(err)
	s.assertClose(merged.Signal().Samples(), copied.Signal().Samples(), 1e-15)

	// right is untouched by the merge
	s.Equal(len(s.signals)-2, right.Count())
}

func (s *StackerTestSuite) TestSpectralCoherentMatchesTimeDomain() {
	timeDomain, err := StackSignals(s.config, Coherent, s.analyzer, s.signals)
	s.Require().NoError(err)
	fromTime, err := timeDomain.Spectrum(s.analyzer)
	s.Require().NoError(err)

	spectra, err := s.analyzer.AnalyzeAll(s.signals)
	s.Require().NoError(err)
	stacker, err := NewStacker(s.config, Coherent)
	s.Require().NoError(err)
	s.Require().NoError(stacker.AddSpectra(spectra))
	spectral, err := stacker.Finalize()
	s.Require().NoError(err)
	s.Nil(spectral.Signal())

	fromSpectra, err := spectral.Spectrum(nil)
	s.Require().NoError(err)
	s.True(fromSpectra.HasPhase())
	s.assertClose(fromTime.Bins(), fromSpectra.Bins(), 1e-12)
}

func (s *StackerTestSuite) TestIncoherentDropsPhase() {
	result, err := StackSignals(s.config, Incoherent, s.analyzer, s.signals)
	s.Require().NoError(err)
	s.Equal(Incoherent, result.Mode())
	s.False(result.HasPhase())

	sp, err := result.Spectrum(nil)
	s.Require().NoError(err)
	s.False(sp.HasPhase())

	spectra, err := s.analyzer.AnalyzeAll(s.signals)
	s.Require().NoError(err)
	for _, k := range []int{0, 10, 28, 300} {
		var sum float64
		for _, one := range spectra {
			sum += one.Magnitude(k)
		}
		s.InDelta(sum/float64(len(spectra)), sp.Magnitude(k), 1e-12, "bin %d", k)
	}
}

func (s *StackerTestSuite) TestSpectralStackKeepsTransformSettings() {
	padded := analyzers.NewSpectralAnalyzer(analyzers.WithLogger(&logging.NoOpLogger{}),
		analyzers.WithPadFactor(2), analyzers.WithWindow(analyzers.WindowHamming))

	result, err := StackSignals(s.config, Incoherent, padded, s.signals)
	s.Require().NoError(err)
	sp, err := result.Spectrum(nil)
	s.Require().NoError(err)
	s.Equal(2, sp.PadFactor())
	s.Equal(analyzers.WindowHamming.SidelobeFloor(), sp.SidelobeFloor())
	s.InDelta(s.config.RangeBinWidth()/2, sp.RangeBinWidth(), 1e-12)

	left, err := NewStacker(s.config, Incoherent)
	s.Require().NoError(err)
	right, err := NewStacker(s.config, Incoherent)
	s.Require().NoError(err)

	hamming, err := padded.Analyze(s.signals[0])
	s.Require().NoError(err)
	hann, err := analyzers.NewSpectralAnalyzer(analyzers.WithLogger(&logging.NoOpLogger{}),
		analyzers.WithPadFactor(2), analyzers.WithWindow(analyzers.WindowHann)).Analyze(s.signals[1])
	s.Require().NoError(err)

	s.Require().NoError(left.AddSpectrum(hamming))
	s.True(errors.Is(left.AddSpectrum(hann), common.ErrLengthMismatch))

	s.Require().NoError(right.AddSpectrum(hann))
	s.True(errors.Is(left.Merge(right), common.ErrLengthMismatch))
}

func (s *StackerTestSuite) TestErrors() {
	other, err := common.NewChirpConfig(common.ChirpParams{
		BandwidthHz:  100e6,
		DurationS:    1,
		CarrierHz:    300e6,
		SamplingHz:   1024,
		Permittivity: 3.1,
	})
	s.Require().NoError(err)

	stacker, err := NewStacker(s.config, Coherent)
	s.Require().NoError(err)
	s.Require().NoError(stacker.AddSignal(s.signals[0]))

	foreign, err := synthetic.Generate(other, []synthetic.Reflector{{RangeM: 60, Amplitude: 1}})
	s.Require().NoError(err)
	s.True(errors.Is(stacker.AddSignal(foreign), common.ErrConfigMismatch))

	short, err := synthetic.Generate(s.config, []synthetic.Reflector{{RangeM: 60, Amplitude: 1}}, synthetic.WithSamples(512))
	s.Require().NoError(err)
	s.True(errors.Is(stacker.AddSignal(short), common.ErrLengthMismatch))

	sp, err := s.analyzer.Analyze(s.signals[1])
	s.Require().NoError(err)
	s.True(errors.Is(stacker.AddSpectrum(sp), common.ErrDomainMismatch))

	_, err = stacker.Finalize()
	s.Require().NoError(err)
	s.True(errors.Is(stacker.AddSignal(s.signals[1]), common.ErrStackFinalized))
	_, err = stacker.Finalize()
	s.True(errors.Is(err, common.ErrStackFinalized))

	emptyStack, err := NewStacker(s.config, Incoherent)
	s.Require().NoError(err)
	_, err = emptyStack.Finalize()
	s.True(errors.Is(err, common.ErrEmptyInput))
	s.True(errors.Is(emptyStack.AddSignal(s.signals[0]), common.ErrDomainMismatch))

	coherent, err := NewStacker(s.config, Coherent)
	s.Require().NoError(err)
	magOnly, err := common.NewMagnitudeSpectrum(sp.Magnitudes(), sp.SignalLength(), s.config)
	s.Require().NoError(err)
	s.True(errors.Is(coherent.AddSpectrum(magOnly), common.ErrPhaseUnavailable))

	incoherent, err := NewStacker(s.config, Incoherent)
	s.Require().NoError(err)
	s.Require().NoError(incoherent.AddSpectrum(magOnly))
	s.True(errors.Is(coherent.Merge(incoherent), common.ErrDomainMismatch))

	_, err = StackSignals(s.config, Coherent, s.analyzer, nil)
	s.True(errors.Is(err, common.ErrEmptyInput))
	_, err = StackSignals(s.config, Incoherent, s.analyzer, []*common.BeatSignal{s.signals[0], foreign})
	s.True(errors.Is(err, common.ErrConfigMismatch))
	_, err = StackSignals(s.config, Incoherent, s.analyzer, []*common.BeatSignal{s.signals[0], short})
	s.True(errors.Is(err, common.ErrLengthMismatch))

	_, err = NewStacker(s.config, "median")
	s.True(errors.Is(err, common.ErrInvalidConfig))
	_, err = NewStacker(nil, Coherent)
	s.True(errors.Is(err, common.ErrInvalidConfig))
}

func TestStackerSuite(t *testing.T) {
	suite.Run(t, new(StackerTestSuite))
}

func TestCoherentStackingReducesNoiseVariance(t *testing.T) {
	cfg, err := common.NewChirpConfig(common.ChirpParams{
		BandwidthHz:  200e6,
		DurationS:    1,
		CarrierHz:    300e6,
		SamplingHz:   2048,
		Permittivity: 3.1,
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(21, 42))
	var previous float64
	for i, k := range []int{1, 4, 16} {
		noise, err := synthetic.Burst(cfg, nil, k, synthetic.WithNoise(1, rng), synthetic.WithRealOutput())
		require.NoError(t, err)

		result, err := StackSignals(cfg, Coherent, nil, noise)
		require.NoError(t, err)

		variance := stat.Variance(result.Signal().Real(), nil)
		assert.InEpsilon(t, 1/float64(k), variance, 0.15, "K=%d", k)
		if i > 0 {
			assert.Less(t, variance, previous)
		}
		previous = variance
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("Incoherent")
	require.NoError(t, err)
	assert.Equal(t, Incoherent, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Coherent, mode)

	_, err = ParseMode("median")
	assert.Error(t, err)
}

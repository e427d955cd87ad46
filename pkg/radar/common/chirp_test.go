package common

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceParams() ChirpParams {
	return ChirpParams{
		BandwidthHz:  200e6,
		DurationS:    1,
		CarrierHz:    300e6,
		SamplingHz:   12000,
		Permittivity: 3.1,
	}
}

func TestNewChirpConfigDerivedValues(t *testing.T) {
	cfg, err := NewChirpConfig(referenceParams())
	require.NoError(t, err)

	assert.Equal(t, SpeedOfLight, cfg.SpeedOfLightMps())
	assert.InDelta(t, 200e6, cfg.ChirpRate(), 1e-6)
	assert.Equal(t, 12000, cfg.NominalSamples())

	sqrtEps := math.Sqrt(3.1)
	assert.InDelta(t, SpeedOfLight/(sqrtEps*300e6), cfg.Wavelength(), 1e-12)
	assert.InDelta(t, SpeedOfLight/(2*200e6*sqrtEps), cfg.RangeBinWidth(), 1e-12)
	assert.InDelta(t, 0.4257, cfg.RangeBinWidth(), 1e-3)

	// one full chirp: the DFT bin spacing equals the nominal bin width
	assert.InDelta(t, cfg.RangeBinWidth(), cfg.RangeBinWidthFor(cfg.NominalSamples()), 1e-12)
	assert.InDelta(t, 2*cfg.RangeBinWidth(), cfg.RangeBinWidthFor(cfg.NominalSamples()/2), 1e-12)

	// beat frequency and range are inverse mappings
	f := cfg.BeatFrequency(50)
	assert.InDelta(t, 117.46, f, 0.01)
	assert.InDelta(t, 50, cfg.RangeForFrequency(f), 1e-9)
	assert.InDelta(t, 2*120*sqrtEps/SpeedOfLight, cfg.TwoWayTravelTime(120), 1e-18)
}

func TestNewChirpConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *ChirpParams)
	}{
		{"zero duration", func(p *ChirpParams) { p.DurationS = 0 }},
		{"negative bandwidth", func(p *ChirpParams) { p.BandwidthHz = -1 }},
		{"zero carrier", func(p *ChirpParams) { p.CarrierHz = 0 }},
		{"zero sampling", func(p *ChirpParams) { p.SamplingHz = 0 }},
		{"permittivity below vacuum", func(p *ChirpParams) { p.Permittivity = 0.9 }},
		{"negative speed of light", func(p *ChirpParams) { p.SpeedOfLightMps = -1 }},
		{"nan bandwidth", func(p *ChirpParams) { p.BandwidthHz = math.NaN() }},
		{"infinite duration", func(p *ChirpParams) { p.DurationS = math.Inf(1) }},
		{"negative max beat", func(p *ChirpParams) { p.MaxBeatHz = -5 }},
		{"aliased max beat", func(p *ChirpParams) { p.MaxBeatHz = 6001 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := referenceParams()
			tt.modify(&p)

			cfg, err := NewChirpConfig(p)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "want ErrInvalidConfig, got %v", err)
			assert.False(t, errors.Is(err, ErrEmptyInput))
		})
	}
}

func TestNewChirpConfigNamesFirstNonFiniteField(t *testing.T) {
	p := referenceParams()
	p.MaxBeatHz = math.NaN()
	p.SamplingHz = math.Inf(-1)
	p.CarrierHz = math.NaN()

	for range 20 {
		_, err := NewChirpConfig(p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "carrier_hz must be finite")
	}
}

func TestNewChirpConfigNyquistBoundary(t *testing.T) {
	p := referenceParams()
	p.MaxBeatHz = 6000

	cfg, err := NewChirpConfig(p)
	require.NoError(t, err)
	assert.Equal(t, 6000.0, cfg.MaxBeatHz())

	assert.Equal(t, 200e6, cfg.BandwidthHz())
	assert.Equal(t, 1.0, cfg.DurationS())
	assert.Equal(t, 300e6, cfg.CarrierHz())
	assert.Equal(t, 12000.0, cfg.SamplingHz())
	assert.Equal(t, 3.1, cfg.Permittivity())
}

func TestChirpConfigEqual(t *testing.T) {
	a, err := NewChirpConfig(referenceParams())
	require.NoError(t, err)
	b, err := NewChirpConfig(referenceParams())
	require.NoError(t, err)

	p := referenceParams()
	p.Permittivity = 3.2
	c, err := NewChirpConfig(p)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	roundTrip, err := NewChirpConfig(a.Params())
	require.NoError(t, err)
	assert.True(t, a.Equal(roundTrip))
}

func TestRadarErrorWrapping(t *testing.T) {
	cause := errors.New("underlying")
	err := NewRadarError(ErrCodeLengthMismatch, "AddSignal", "length 3 != 4", cause)

	assert.Equal(t, "AddSignal: length 3 != 4: underlying", err.Error())
	assert.True(t, errors.Is(err, ErrLengthMismatch))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrConfigMismatch))

	var re *RadarError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeLengthMismatch, re.Code)
}

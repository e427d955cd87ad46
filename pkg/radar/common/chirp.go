package common

import (
	"fmt"
	"math"
)

// SpeedOfLight is the vacuum speed of light in m/s
const SpeedOfLight = 299792458.0

// ChirpParams holds the raw acquisition parameters used to build a ChirpConfig
type ChirpParams struct {
	BandwidthHz     float64 `json:"bandwidth_hz" mapstructure:"bandwidth_hz" yaml:"bandwidth_hz"`
	DurationS       float64 `json:"duration_s" mapstructure:"duration_s" yaml:"duration_s"`
	CarrierHz       float64 `json:"carrier_hz" mapstructure:"carrier_hz" yaml:"carrier_hz"`
	SamplingHz      float64 `json:"sampling_hz" mapstructure:"sampling_hz" yaml:"sampling_hz"`
	Permittivity    float64 `json:"permittivity" mapstructure:"permittivity" yaml:"permittivity"`
	SpeedOfLightMps float64 `json:"speed_of_light_mps" mapstructure:"speed_of_light_mps" yaml:"speed_of_light_mps"`

	// MaxBeatHz is the highest beat frequency the instrument is designed to
	// observe. Zero leaves the Nyquist check undeclared.
	MaxBeatHz float64 `json:"max_beat_hz" mapstructure:"max_beat_hz" yaml:"max_beat_hz"`
}

// ChirpConfig is the immutable description of one acquisition
type ChirpConfig struct {
	bandwidthHz  float64
	durationS    float64
	carrierHz    float64
	samplingHz   float64
	permittivity float64
	speedOfLight float64
	maxBeatHz    float64
}

// NewChirpConfig validates params and builds a ChirpConfig
func NewChirpConfig(p ChirpParams) (*ChirpConfig, error) {
	invalid := func(format string, args ...any) error {
		return NewRadarError(ErrCodeInvalidConfig, "NewChirpConfig", fmt.Sprintf(format, args...), nil)
	}

	fields := []struct {
		name  string
		value float64
	}{
		{"bandwidth_hz", p.BandwidthHz},
		{"duration_s", p.DurationS},
		{"carrier_hz", p.CarrierHz},
		{"sampling_hz", p.SamplingHz},
		{"permittivity", p.Permittivity},
		{"speed_of_light_mps", p.SpeedOfLightMps},
		{"max_beat_hz", p.MaxBeatHz},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return nil, invalid("%s must be finite, got %v", f.name, f.value)
		}
	}

	switch {
	case p.BandwidthHz <= 0:
		return nil, invalid("bandwidth_hz must be positive, got %g", p.BandwidthHz)
	case p.DurationS <= 0:
		return nil, invalid("duration_s must be positive, got %g", p.DurationS)
	case p.CarrierHz <= 0:
		return nil, invalid("carrier_hz must be positive, got %g", p.CarrierHz)
	case p.SamplingHz <= 0:
		return nil, invalid("sampling_hz must be positive, got %g", p.SamplingHz)
	case p.Permittivity < 1.0:
		return nil, invalid("permittivity must be at least 1, got %g", p.Permittivity)
	case p.SpeedOfLightMps < 0:
		return nil, invalid("speed_of_light_mps must not be negative, got %g", p.SpeedOfLightMps)
	case p.MaxBeatHz < 0:
		return nil, invalid("max_beat_hz must not be negative, got %g", p.MaxBeatHz)
	case p.MaxBeatHz > 0 && p.SamplingHz < 2*p.MaxBeatHz:
		return nil, invalid("sampling_hz %g is below the Nyquist rate for max_beat_hz %g", p.SamplingHz, p.MaxBeatHz)
	}

	c := p.SpeedOfLightMps
	if c == 0 {
		c = SpeedOfLight
	}

	return &ChirpConfig{
		bandwidthHz:  p.BandwidthHz,
		durationS:    p.DurationS,
		carrierHz:    p.CarrierHz,
		samplingHz:   p.SamplingHz,
		permittivity: p.Permittivity,
		speedOfLight: c,
		maxBeatHz:    p.MaxBeatHz,
	}, nil
}

// BandwidthHz is the swept bandwidth B
func (c *ChirpConfig) BandwidthHz() float64 { return c.bandwidthHz }

// DurationS is the chirp duration T
func (c *ChirpConfig) DurationS() float64 { return c.durationS }

// CarrierHz is the centre frequency fc
func (c *ChirpConfig) CarrierHz() float64 { return c.carrierHz }

// SamplingHz is the ADC sampling rate fs
func (c *ChirpConfig) SamplingHz() float64 { return c.samplingHz }

// Permittivity is the relative permittivity of the medium
func (c *ChirpConfig) Permittivity() float64 { return c.permittivity }

// SpeedOfLightMps is the vacuum speed of light in use, SpeedOfLight unless
// overridden
func (c *ChirpConfig) SpeedOfLightMps() float64 { return c.speedOfLight }

// MaxBeatHz is the declared highest beat frequency, zero when undeclared
func (c *ChirpConfig) MaxBeatHz() float64 { return c.maxBeatHz }

// Params returns the parameters the config was built from
func (c *ChirpConfig) Params() ChirpParams {
	return ChirpParams{
		BandwidthHz:     c.bandwidthHz,
		DurationS:       c.durationS,
		CarrierHz:       c.carrierHz,
		SamplingHz:      c.samplingHz,
		Permittivity:    c.permittivity,
		SpeedOfLightMps: c.speedOfLight,
		MaxBeatHz:       c.maxBeatHz,
	}
}

// ChirpRate returns the frequency sweep rate in Hz/s
func (c *ChirpConfig) ChirpRate() float64 {
	return c.bandwidthHz / c.durationS
}

// Wavelength returns the in-medium wavelength at the carrier frequency
func (c *ChirpConfig) Wavelength() float64 {
	return c.speedOfLight / (math.Sqrt(c.permittivity) * c.carrierHz)
}

// NominalSamples is the sample count of one full chirp
func (c *ChirpConfig) NominalSamples() int {
	return int(math.Round(c.samplingHz * c.durationS))
}

// RangeBinWidth is the range spacing of adjacent bins for one full chirp,
// c / (2 B sqrt(eps)).
func (c *ChirpConfig) RangeBinWidth() float64 {
	return c.speedOfLight / (2 * c.bandwidthHz * math.Sqrt(c.permittivity))
}

// RangeBinWidthFor is the range spacing of adjacent bins for an n-sample DFT
func (c *ChirpConfig) RangeBinWidthFor(n int) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	return c.RangeForFrequency(c.samplingHz / float64(n))
}

// TwoWayTravelTime returns the round-trip propagation time to rangeM
func (c *ChirpConfig) TwoWayTravelTime(rangeM float64) float64 {
	return 2 * rangeM * math.Sqrt(c.permittivity) / c.speedOfLight
}

// BeatFrequency returns the beat frequency produced by a reflector at rangeM
func (c *ChirpConfig) BeatFrequency(rangeM float64) float64 {
	return c.ChirpRate() * c.TwoWayTravelTime(rangeM)
}

// RangeForFrequency converts a beat frequency to range
func (c *ChirpConfig) RangeForFrequency(hz float64) float64 {
	return hz * c.speedOfLight / (2 * c.ChirpRate() * math.Sqrt(c.permittivity))
}

// Equal reports whether both configs describe the same acquisition
func (c *ChirpConfig) Equal(other *ChirpConfig) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil {
		return false
	}
	return *c == *other
}

func (c *ChirpConfig) String() string {
	return fmt.Sprintf("chirp(B=%gHz T=%gs fc=%gHz fs=%gHz eps=%g)",
		c.bandwidthHz, c.durationS, c.carrierHz, c.samplingHz, c.permittivity)
}

package common

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Spectrum is the frequency-domain form of one beat signal. Bin k sits at
// frequency k*fs/N where N is the transform length, the signal length times
// the pad factor.
type Spectrum struct {
	bins          []complex128
	magnitude     []float64
	signalLen     int
	padFactor     int
	sidelobeFloor float64
	config        *ChirpConfig
	hasPhase      bool
}

// SpectrumOption records how the bins were produced
type SpectrumOption func(*Spectrum)

// WithPadFactor marks the bins as coming from a transform zero-padded to p
// times the signal length. Adjacent bins then lie 1/p of a resolution cell
// apart.
func WithPadFactor(p int) SpectrumOption {
	return func(sp *Spectrum) { sp.padFactor = p }
}

// WithSidelobeFloor records the amplitude, relative to the strongest bin,
// below which the taper's sidelobes can form spurious local maxima
func WithSidelobeFloor(level float64) SpectrumOption {
	return func(sp *Spectrum) { sp.sidelobeFloor = level }
}

// NewSpectrum builds a complex spectrum. signalLen is the transform length the
// bins were computed from and may exceed len(bins) for half spectra.
func NewSpectrum(bins []complex128, signalLen int, cfg *ChirpConfig, opts ...SpectrumOption) (*Spectrum, error) {
	sp, err := newSpectrum(len(bins), signalLen, cfg, opts)
	if err != nil {
		return nil, err
	}

	sp.hasPhase = true
	copy(sp.bins, bins)
	for i, b := range bins {
		sp.magnitude[i] = cmplx.Abs(b)
	}
	return sp, nil
}

// NewMagnitudeSpectrum builds a spectrum that carries no phase information
func NewMagnitudeSpectrum(magnitude []float64, signalLen int, cfg *ChirpConfig, opts ...SpectrumOption) (*Spectrum, error) {
	sp, err := newSpectrum(len(magnitude), signalLen, cfg, opts)
	if err != nil {
		return nil, err
	}

	copy(sp.magnitude, magnitude)
	for i, m := range magnitude {
		sp.bins[i] = complex(m, 0)
	}
	return sp, nil
}

func newSpectrum(bins, signalLen int, cfg *ChirpConfig, opts []SpectrumOption) (*Spectrum, error) {
	if err := checkSpectrumShape(bins, signalLen, cfg); err != nil {
		return nil, err
	}

	sp := &Spectrum{
		bins:      make([]complex128, bins),
		magnitude: make([]float64, bins),
		signalLen: signalLen,
		padFactor: 1,
		config:    cfg,
	}
	for _, opt := range opts {
		opt(sp)
	}

	if sp.padFactor < 1 || signalLen%sp.padFactor != 0 {
		return nil, NewRadarError(ErrCodeInvalidConfig, "NewSpectrum",
			fmt.Sprintf("pad factor %d does not divide transform length %d", sp.padFactor, signalLen), nil)
	}
	if sp.sidelobeFloor < 0 || sp.sidelobeFloor >= 1 || math.IsNaN(sp.sidelobeFloor) {
		return nil, NewRadarError(ErrCodeInvalidConfig, "NewSpectrum",
			fmt.Sprintf("sidelobe floor must be in [0, 1), got %g", sp.sidelobeFloor), nil)
	}
	return sp, nil
}

func checkSpectrumShape(bins, signalLen int, cfg *ChirpConfig) error {
	if cfg == nil {
		return NewRadarError(ErrCodeInvalidConfig, "NewSpectrum", "nil chirp configuration", nil)
	}
	if signalLen < 2 || bins < 2 {
		return NewRadarError(ErrCodeInsufficientSamples, "NewSpectrum",
			fmt.Sprintf("need at least 2 bins, got %d from %d samples", bins, signalLen), nil)
	}
	if bins > signalLen {
		return NewRadarError(ErrCodeLengthMismatch, "NewSpectrum",
			fmt.Sprintf("%d bins exceed signal length %d", bins, signalLen), nil)
	}
	return nil
}

// Len returns the number of bins
func (s *Spectrum) Len() int { return len(s.bins) }

// SignalLength returns N, the transform length including zero padding
func (s *Spectrum) SignalLength() int { return s.signalLen }

// PadFactor is the zero-padding factor, 1 for an unpadded transform
func (s *Spectrum) PadFactor() int { return s.padFactor }

// SidelobeFloor is the relative level below which peaks may be sidelobes
func (s *Spectrum) SidelobeFloor() float64 { return s.sidelobeFloor }

// Config returns the acquisition config
func (s *Spectrum) Config() *ChirpConfig { return s.config }

// HasPhase reports whether bins carry phase
func (s *Spectrum) HasPhase() bool { return s.hasPhase }

// Bin returns the complex value of bin k
func (s *Spectrum) Bin(k int) complex128 { return s.bins[k] }

// Magnitude returns |bin k|
func (s *Spectrum) Magnitude(k int) float64 { return s.magnitude[k] }

// Phase returns arg(bin k), or 0 when the spectrum has no phase
func (s *Spectrum) Phase(k int) float64 {
	if !s.hasPhase {
		return 0
	}
	return cmplx.Phase(s.bins[k])
}

// Frequency returns the beat frequency of bin k
func (s *Spectrum) Frequency(k int) float64 {
	return float64(k) * s.config.SamplingHz() / float64(s.signalLen)
}

// Range returns the range of bin k
func (s *Spectrum) Range(k int) float64 {
	return s.config.RangeForFrequency(s.Frequency(k))
}

// RangeBinWidth is the range spacing of adjacent bins
func (s *Spectrum) RangeBinWidth() float64 {
	return s.config.RangeBinWidthFor(s.signalLen)
}

// Resolution is the range spacing of independent bins, RangeBinWidth times
// the pad factor
func (s *Spectrum) Resolution() float64 {
	return s.config.RangeBinWidthFor(s.signalLen / s.padFactor)
}

// Bins returns a copy of the complex bins
func (s *Spectrum) Bins() []complex128 {
	out := make([]complex128, len(s.bins))
	copy(out, s.bins)
	return out
}

// Magnitudes returns a copy of the magnitude spectrum
func (s *Spectrum) Magnitudes() []float64 {
	out := make([]float64, len(s.magnitude))
	copy(out, s.magnitude)
	return out
}

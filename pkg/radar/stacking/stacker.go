// Package stacking combines repeated chirps of one acquisition into a single
// lower-noise signal or spectrum.
package stacking

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/apres-range/pkg/radar/analyzers"
	"github.com/RyanBlaney/apres-range/pkg/radar/common"
)

// Mode selects coherent or incoherent stacking
type Mode string

const (
	// Coherent averages complex samples and keeps phase. Noise variance falls as 1/K.
	Coherent Mode = "coherent"
	// Incoherent averages magnitude spectra and discards phase. SNR improves as sqrt(K).
	Incoherent Mode = "incoherent"
)

// ParseMode maps a config string onto a Mode. Empty means coherent.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Coherent:
		return Coherent, nil
	case Incoherent:
		return Incoherent, nil
	}
	return "", fmt.Errorf("unsupported stacking mode %q", s)
}

type domain int

// spectrumMeta carries the transform settings of stacked spectra through to
// the finalized spectrum
type spectrumMeta struct {
	padFactor     int
	sidelobeFloor float64
}

func metaOf(sp *common.Spectrum) spectrumMeta {
	return spectrumMeta{padFactor: sp.PadFactor(), sidelobeFloor: sp.SidelobeFloor()}
}

func (m spectrumMeta) options() []common.SpectrumOption {
	pad := max(m.padFactor, 1)
	return []common.SpectrumOption{
		common.WithPadFactor(pad),
		common.WithSidelobeFloor(m.sidelobeFloor),
	}
}

const (
	domainNone domain = iota
	domainTime
	domainSpectral
)

// Stacker accumulates a running mean of chirps. It is not safe for concurrent
// use; combine independent stackers with Merge.
type Stacker struct {
	config    *common.ChirpConfig
	mode      Mode
	domain    domain
	count     int
	length    int
	signalLen int
	meta      spectrumMeta
	complex   bool
	mean      []complex128
	magMean   []float64
	finalized bool
}

// NewStacker creates an empty stacker for cfg
func NewStacker(cfg *common.ChirpConfig, mode Mode) (*Stacker, error) {
	if cfg == nil {
		return nil, common.NewRadarError(common.ErrCodeInvalidConfig, "NewStacker", "nil chirp configuration", nil)
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, common.NewRadarError(common.ErrCodeInvalidConfig, "NewStacker", "invalid stacking mode", err)
	}
	if mode == "" {
		mode = Coherent
	}
	return &Stacker{config: cfg, mode: mode}, nil
}

// Mode returns the stacking mode
func (s *Stacker) Mode() Mode { return s.mode }

// Count returns the number of contributing chirps
func (s *Stacker) Count() int { return s.count }

// Config returns the shared chirp configuration
func (s *Stacker) Config() *common.ChirpConfig { return s.config }

// AddSignal adds one time-domain chirp. Only coherent stackers accept signals.
func (s *Stacker) AddSignal(sig *common.BeatSignal) error {
	if err := s.admit("AddSignal", domainTime); err != nil {
		return err
	}
	if s.mode != Coherent {
		return common.NewRadarError(common.ErrCodeDomainMismatch, "AddSignal",
			"incoherent stacking operates on spectra", nil)
	}
	if sig == nil {
		return common.NewRadarError(common.ErrCodeEmptyInput, "AddSignal", "nil signal", nil)
	}
	if err := s.checkShape("AddSignal", sig.Config(), sig.Len()); err != nil {
		return err
	}

	if s.count == 0 {
		s.domain = domainTime
		s.length = sig.Len()
		s.signalLen = sig.Len()
		s.mean = make([]complex128, s.length)
	}
	s.complex = s.complex || sig.IsComplex()
	s.count++

	k := complex(float64(s.count), 0)
	for i := range s.mean {
		s.mean[i] += (sig.At(i) - s.mean[i]) / k
	}
	return nil
}

// AddSignals adds chirps in order
func (s *Stacker) AddSignals(signals []*common.BeatSignal) error {
	for i, sig := range signals {
		if err := s.AddSignal(sig); err != nil {
			return fmt.Errorf("signal %d: %w", i, err)
		}
	}
	return nil
}

// AddSpectrum adds one spectrum. Coherent stackers average complex bins;
// incoherent stackers average magnitudes.
func (s *Stacker) AddSpectrum(sp *common.Spectrum) error {
	if err := s.admit("AddSpectrum", domainSpectral); err != nil {
		return err
	}
	if sp == nil {
		return common.NewRadarError(common.ErrCodeEmptyInput, "AddSpectrum", "nil spectrum", nil)
	}
	if err := s.checkShape("AddSpectrum", sp.Config(), sp.Len()); err != nil {
		return err
	}
	if s.count > 0 && sp.SignalLength() != s.signalLen {
		return common.NewRadarError(common.ErrCodeLengthMismatch, "AddSpectrum",
			fmt.Sprintf("signal length %d, want %d", sp.SignalLength(), s.signalLen), nil)
	}
	if s.count > 0 && metaOf(sp) != s.meta {
		return common.NewRadarError(common.ErrCodeLengthMismatch, "AddSpectrum",
			fmt.Sprintf("pad factor %d and sidelobe floor %g, want %d and %g",
				sp.PadFactor(), sp.SidelobeFloor(), s.meta.padFactor, s.meta.sidelobeFloor), nil)
	}
	if s.mode == Coherent && !sp.HasPhase() {
		return common.NewRadarError(common.ErrCodePhaseUnavailable, "AddSpectrum",
			"coherent stacking needs complex spectra", nil)
	}

	if s.count == 0 {
		s.domain = domainSpectral
		s.length = sp.Len()
		s.signalLen = sp.SignalLength()
		s.meta = metaOf(sp)
		if s.mode == Coherent {
			s.mean = make([]complex128, s.length)
		} else {
			s.magMean = make([]float64, s.length)
		}
	}
	s.count++

	if s.mode == Coherent {
		k := complex(float64(s.count), 0)
		for i := range s.mean {
			s.mean[i] += (sp.Bin(i) - s.mean[i]) / k
		}
		return nil
	}

	k := float64(s.count)
	for i := range s.magMean {
		s.magMean[i] += (sp.Magnitude(i) - s.magMean[i]) / k
	}
	return nil
}

// AddSpectra adds spectra in order
func (s *Stacker) AddSpectra(spectra []*common.Spectrum) error {
	for i, sp := range spectra {
		if err := s.AddSpectrum(sp); err != nil {
			return fmt.Errorf("spectrum %d: %w", i, err)
		}
	}
	return nil
}

// Merge folds other into s with a count-weighted mean. The result matches
// stacking both inputs sequentially up to rounding. other is left unchanged.
func (s *Stacker) Merge(other *Stacker) error {
	if s.finalized {
		return common.NewRadarError(common.ErrCodeStackFinalized, "Merge", "stack already finalized", nil)
	}
	if other == nil || other.count == 0 {
		return nil
	}
	if !s.config.Equal(other.config) {
		return common.NewRadarError(common.ErrCodeConfigMismatch, "Merge", "stackers use different chirp configurations", nil)
	}
	if s.mode != other.mode {
		return common.NewRadarError(common.ErrCodeDomainMismatch, "Merge",
			fmt.Sprintf("cannot merge %s into %s stack", other.mode, s.mode), nil)
	}
	if s.count == 0 {
		s.domain = other.domain
		s.count = other.count
		s.length = other.length
		s.signalLen = other.signalLen
		s.meta = other.meta
		s.complex = other.complex
		s.mean = cloneOrNil(other.mean)
		s.magMean = cloneOrNil(other.magMean)
		return nil
	}
	if s.domain != other.domain {
		return common.NewRadarError(common.ErrCodeDomainMismatch, "Merge", "cannot merge time-domain and spectral stacks", nil)
	}
	if s.length != other.length || s.signalLen != other.signalLen || s.meta != other.meta {
		return common.NewRadarError(common.ErrCodeLengthMismatch, "Merge",
			fmt.Sprintf("length %d, want %d", other.length, s.length), nil)
	}

	total := s.count + other.count
	w := float64(other.count) / float64(total)
	for i := range s.mean {
		s.mean[i] += (other.mean[i] - s.mean[i]) * complex(w, 0)
	}
	for i := range s.magMean {
		s.magMean[i] += (other.magMean[i] - s.magMean[i]) * w
	}
	s.count = total
	s.complex = s.complex || other.complex
	return nil
}

// Finalize freezes the stack into a read-only result
func (s *Stacker) Finalize() (*StackedResult, error) {
	if s.finalized {
		return nil, common.NewRadarError(common.ErrCodeStackFinalized, "Finalize", "stack already finalized", nil)
	}
	if s.count == 0 {
		return nil, common.NewRadarError(common.ErrCodeEmptyInput, "Finalize", "no chirps stacked", nil)
	}
	s.finalized = true

	result := &StackedResult{mode: s.mode, count: s.count}

	var err error
	switch {
	case s.domain == domainTime && s.complex:
		result.signal, err = common.NewComplexBeatSignal(s.mean, s.config)
	case s.domain == domainTime:
		re := make([]float64, len(s.mean))
		for i, v := range s.mean {
			re[i] = real(v)
		}
		result.signal, err = common.NewRealBeatSignal(re, s.config)
	case s.mode == Coherent:
		result.spectrum, err = common.NewSpectrum(s.mean, s.signalLen, s.config, s.meta.options()...)
	default:
		result.spectrum, err = common.NewMagnitudeSpectrum(s.magMean, s.signalLen, s.config, s.meta.options()...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finalize stack: %w", err)
	}
	return result, nil
}

func (s *Stacker) admit(op string, d domain) error {
	if s.finalized {
		return common.NewRadarError(common.ErrCodeStackFinalized, op, "stack already finalized", nil)
	}
	if s.count > 0 && s.domain != d {
		return common.NewRadarError(common.ErrCodeDomainMismatch, op,
			"cannot mix time-domain and spectral inputs", nil)
	}
	return nil
}

func (s *Stacker) checkShape(op string, cfg *common.ChirpConfig, length int) error {
	if !s.config.Equal(cfg) {
		return common.NewRadarError(common.ErrCodeConfigMismatch, op,
			fmt.Sprintf("got %v, want %v", cfg, s.config), nil)
	}
	if s.count > 0 && length != s.length {
		return common.NewRadarError(common.ErrCodeLengthMismatch, op,
			fmt.Sprintf("length %d, want %d", length, s.length), nil)
	}
	return nil
}

func cloneOrNil[T any](x []T) []T {
	if x == nil {
		return nil
	}
	out := make([]T, len(x))
	copy(out, x)
	return out
}

// StackedResult is the read-only outcome of a stack
type StackedResult struct {
	mode     Mode
	count    int
	signal   *common.BeatSignal
	spectrum *common.Spectrum
}

// Mode returns the stacking mode
func (r *StackedResult) Mode() Mode { return r.mode }

// Count returns the number of contributing chirps
func (r *StackedResult) Count() int { return r.count }

// Signal returns the averaged time-domain signal, or nil for spectral stacks
func (r *StackedResult) Signal() *common.BeatSignal { return r.signal }

// HasPhase reports whether the combined spectrum supports fine refinement
func (r *StackedResult) HasPhase() bool { return r.mode == Coherent }

// Spectrum returns the combined spectrum. Time-domain stacks are transformed
// with analyzer; spectral stacks return the stored spectrum.
func (r *StackedResult) Spectrum(analyzer *analyzers.SpectralAnalyzer) (*common.Spectrum, error) {
	if r.spectrum != nil {
		return r.spectrum, nil
	}
	if analyzer == nil {
		return nil, fmt.Errorf("time-domain stack needs a spectral analyzer")
	}
	return analyzer.Analyze(r.signal)
}

// StackSignals stacks signals in one call. Coherent mode averages in the time
// domain; incoherent mode transforms each chirp with analyzer first.
func StackSignals(cfg *common.ChirpConfig, mode Mode, analyzer *analyzers.SpectralAnalyzer, signals []*common.BeatSignal) (*StackedResult, error) {
	if len(signals) == 0 {
		return nil, common.NewRadarError(common.ErrCodeEmptyInput, "StackSignals", "no beat signals supplied", nil)
	}

	stacker, err := NewStacker(cfg, mode)
	if err != nil {
		return nil, err
	}

	if stacker.Mode() == Coherent {
		if err := stacker.AddSignals(signals); err != nil {
			return nil, err
		}
		return stacker.Finalize()
	}

	if analyzer == nil {
		return nil, fmt.Errorf("incoherent stacking needs a spectral analyzer")
	}
	for i, sig := range signals {
		if sig == nil {
			return nil, common.NewRadarError(common.ErrCodeEmptyInput, "StackSignals", fmt.Sprintf("signal %d is nil", i), nil)
		}
		if !cfg.Equal(sig.Config()) {
			return nil, common.NewRadarError(common.ErrCodeConfigMismatch, "StackSignals",
				fmt.Sprintf("signal %d: got %v, want %v", i, sig.Config(), cfg), nil)
		}
		if sig.Len() != signals[0].Len() {
			return nil, common.NewRadarError(common.ErrCodeLengthMismatch, "StackSignals",
				fmt.Sprintf("signal %d: length %d, want %d", i, sig.Len(), signals[0].Len()), nil)
		}
		sp, err := analyzer.Analyze(sig)
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
		if err := stacker.AddSpectrum(sp); err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
	}
	return stacker.Finalize()
}

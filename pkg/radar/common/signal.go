package common

// BeatSignal is one chirp's dechirped output
type BeatSignal struct {
	samples []complex128
	complex bool
	config  *ChirpConfig
}

// NewRealBeatSignal copies real-valued samples into a BeatSignal
func NewRealBeatSignal(samples []float64, cfg *ChirpConfig) (*BeatSignal, error) {
	if cfg == nil {
		return nil, NewRadarError(ErrCodeInvalidConfig, "NewRealBeatSignal", "nil chirp configuration", nil)
	}
	buf := make([]complex128, len(samples))
	for i, s := range samples {
		buf[i] = complex(s, 0)
	}
	return &BeatSignal{samples: buf, config: cfg}, nil
}

// NewComplexBeatSignal copies in-phase/quadrature samples into a BeatSignal
func NewComplexBeatSignal(samples []complex128, cfg *ChirpConfig) (*BeatSignal, error) {
	if cfg == nil {
		return nil, NewRadarError(ErrCodeInvalidConfig, "NewComplexBeatSignal", "nil chirp configuration", nil)
	}
	buf := make([]complex128, len(samples))
	copy(buf, samples)
	return &BeatSignal{samples: buf, complex: true, config: cfg}, nil
}

// Len returns the sample count
func (s *BeatSignal) Len() int { return len(s.samples) }

// IsComplex reports whether the signal carries a quadrature channel
func (s *BeatSignal) IsComplex() bool { return s.complex }

// Config returns the acquisition config
func (s *BeatSignal) Config() *ChirpConfig { return s.config }

// At returns sample i
func (s *BeatSignal) At(i int) complex128 { return s.samples[i] }

// Samples returns a copy of the samples
func (s *BeatSignal) Samples() []complex128 {
	out := make([]complex128, len(s.samples))
	copy(out, s.samples)
	return out
}

// Real returns a copy of the in-phase channel
func (s *BeatSignal) Real() []float64 {
	out := make([]float64, len(s.samples))
	for i, v := range s.samples {
		out[i] = real(v)
	}
	return out
}

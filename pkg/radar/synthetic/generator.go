// Package synthetic builds beat signals for known reflector geometries.
package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/RyanBlaney/apres-range/pkg/radar/common"
)

// Reflector is a point reflector at a known range
type Reflector struct {
	RangeM    float64 `json:"range_m" mapstructure:"range_m" yaml:"range_m"`
	Amplitude float64 `json:"amplitude" mapstructure:"amplitude" yaml:"amplitude"`
}

type options struct {
	real    bool
	samples int
	noise   float64
	rng     *rand.Rand
}

// Option configures signal generation
type Option func(*options)

// WithRealOutput produces a real cosine signal instead of complex I/Q
func WithRealOutput() Option {
	return func(o *options) { o.real = true }
}

// WithSamples overrides the sample count (default: one full chirp)
func WithSamples(n int) Option {
	return func(o *options) { o.samples = n }
}

// WithNoise adds i.i.d. Gaussian noise with the given standard deviation per
// component. A nil rng uses a fixed-seed source.
func WithNoise(stddev float64, rng *rand.Rand) Option {
	return func(o *options) {
		o.noise = stddev
		o.rng = rng
	}
}

// BeatPhase is the phase of a reflector's beat tone at the chirp mid-sample:
// 2*pi*fc*tau - pi*K*tau^2.
func BeatPhase(cfg *common.ChirpConfig, rangeM float64) float64 {
	tau := cfg.TwoWayTravelTime(rangeM)
	return 2*math.Pi*cfg.CarrierHz()*tau - math.Pi*cfg.ChirpRate()*tau*tau
}

// Generate sums one beat tone per reflector. Tone phase is referenced to the
// mid-sample time (n-1)/(2*fs).
func Generate(cfg *common.ChirpConfig, reflectors []Reflector, opts ...Option) (*common.BeatSignal, error) {
	if cfg == nil {
		return nil, common.NewRadarError(common.ErrCodeInvalidConfig, "Generate", "nil chirp configuration", nil)
	}

	o := options{samples: cfg.NominalSamples()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.samples < 0 {
		return nil, fmt.Errorf("sample count must not be negative, got %d", o.samples)
	}
	if o.noise < 0 {
		return nil, fmt.Errorf("noise stddev must not be negative, got %g", o.noise)
	}
	if o.noise > 0 && o.rng == nil {
		o.rng = rand.New(rand.NewPCG(1, 2))
	}

	n := o.samples
	fs := cfg.SamplingHz()
	mid := float64(n-1) / (2 * fs)
	samples := make([]complex128, n)

	for _, r := range reflectors {
		fd := cfg.BeatFrequency(r.RangeM)
		phi0 := BeatPhase(cfg, r.RangeM)
		for i := range samples {
			t := float64(i)/fs - mid
			phi := phi0 + 2*math.Pi*fd*t
			if o.real {
				samples[i] += complex(r.Amplitude*math.Cos(phi), 0)
			} else {
				samples[i] += complex(r.Amplitude*math.Cos(phi), r.Amplitude*math.Sin(phi))
			}
		}
	}

	if o.noise > 0 {
		for i := range samples {
			re := o.noise * o.rng.NormFloat64()
			im := 0.0
			if !o.real {
				im = o.noise * o.rng.NormFloat64()
			}
			samples[i] += complex(re, im)
		}
	}

	if o.real {
		return common.NewRealBeatSignal(realPart(samples), cfg)
	}
	return common.NewComplexBeatSignal(samples, cfg)
}

// Burst generates k independent realizations of the same geometry. All chirps
// draw noise from one source.
func Burst(cfg *common.ChirpConfig, reflectors []Reflector, k int, opts ...Option) ([]*common.BeatSignal, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.noise > 0 && o.rng == nil {
		opts = append(slices.Clone(opts), WithNoise(o.noise, rand.New(rand.NewPCG(1, 2))))
	}

	out := make([]*common.BeatSignal, 0, k)
	for i := range k {
		sig, err := Generate(cfg, reflectors, opts...)
		if err != nil {
			return nil, fmt.Errorf("chirp %d: %w", i, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

func realPart(x []complex128) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = real(v)
	}
	return out
}

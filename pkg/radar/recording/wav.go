// Package recording stores chirp bursts as PCM WAV files. Chirps are written
// back to back; real chirps use one channel and complex chirps carry I and Q
// on two interleaved channels.
package recording

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/apres-range/pkg/radar/common"
)

// DefaultBitDepth is the PCM sample width used when none is given
const DefaultBitDepth = 16

const pcmFormat = 1

type options struct {
	bitDepth  int
	fullScale float64
}

// Option configures WriteBurst and ReadBurst
type Option func(*options)

// WithBitDepth sets the PCM sample width for writing: 16, 24 or 32
func WithBitDepth(bits int) Option {
	return func(o *options) { o.bitDepth = bits }
}

// WithFullScale sets the amplitude that maps to digital full scale. When
// writing, zero scales to the burst's peak sample. When reading, zero means 1.
func WithFullScale(amplitude float64) Option {
	return func(o *options) { o.fullScale = amplitude }
}

func newOptions(opts []Option) options {
	o := options{bitDepth: DefaultBitDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WriteBurst encodes signals as one WAV stream and returns the full scale
// amplitude it used. Samples beyond full scale are clipped.
func WriteBurst(w io.WriteSeeker, signals []*common.BeatSignal, opts ...Option) (float64, error) {
	const op = "WriteBurst"
	o := newOptions(opts)

	if len(signals) == 0 {
		return 0, common.NewRadarError(common.ErrCodeEmptyInput, op, "no chirps to write", nil)
	}
	switch o.bitDepth {
	case 16, 24, 32:
	default:
		return 0, common.NewRadarError(common.ErrCodeInvalidConfig, op,
			fmt.Sprintf("unsupported bit depth %d", o.bitDepth), nil)
	}
	if o.fullScale < 0 || math.IsNaN(o.fullScale) || math.IsInf(o.fullScale, 0) {
		return 0, common.NewRadarError(common.ErrCodeInvalidConfig, op,
			fmt.Sprintf("full scale must be finite and non-negative, got %g", o.fullScale), nil)
	}

	for i, sig := range signals {
		if sig == nil {
			return 0, common.NewRadarError(common.ErrCodeEmptyInput, op, fmt.Sprintf("chirp %d is nil", i), nil)
		}
	}

	first := signals[0]
	cfg := first.Config()
	rate, err := sampleRate(cfg)
	if err != nil {
		return 0, common.NewRadarError(common.ErrCodeInvalidConfig, op, err.Error(), nil)
	}

	for i, sig := range signals {
		switch {
		case !sig.Config().Equal(cfg):
			return 0, common.NewRadarError(common.ErrCodeConfigMismatch, op,
				fmt.Sprintf("chirp %d was acquired with a different configuration", i), nil)
		case sig.Len() != first.Len():
			return 0, common.NewRadarError(common.ErrCodeLengthMismatch, op,
				fmt.Sprintf("chirp %d has %d samples, expected %d", i, sig.Len(), first.Len()), nil)
		case sig.IsComplex() != first.IsComplex():
			return 0, common.NewRadarError(common.ErrCodeDomainMismatch, op,
				fmt.Sprintf("chirp %d mixes real and complex samples", i), nil)
		}
	}

	channels := 1
	if first.IsComplex() {
		channels = 2
	}

	fullScale := o.fullScale
	if fullScale == 0 {
		fullScale = peak(signals)
	}

	maxCode := float64(int64(1)<<(o.bitDepth-1) - 1)
	quantize := func(x float64) int {
		v := math.Round(x / fullScale * maxCode)
		return int(math.Max(-maxCode-1, math.Min(maxCode, v)))
	}

	data := make([]int, 0, len(signals)*first.Len()*channels)
	for _, sig := range signals {
		for i := range sig.Len() {
			v := sig.At(i)
			data = append(data, quantize(real(v)))
			if channels == 2 {
				data = append(data, quantize(imag(v)))
			}
		}
	}

	enc := wav.NewEncoder(w, rate, o.bitDepth, channels, pcmFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: o.bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return 0, fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize WAV: %w", err)
	}

	return fullScale, nil
}

// ReadBurst decodes a WAV stream into chirps of cfg's nominal length. The
// stream's sample rate must match cfg and hold a whole number of chirps.
func ReadBurst(r io.ReadSeeker, cfg *common.ChirpConfig, opts ...Option) ([]*common.BeatSignal, error) {
	const op = "ReadBurst"
	o := newOptions(opts)

	if cfg == nil {
		return nil, common.NewRadarError(common.ErrCodeInvalidConfig, op, "nil chirp configuration", nil)
	}
	fullScale := o.fullScale
	if fullScale == 0 {
		fullScale = 1
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, common.NewRadarError(common.ErrCodeInvalidRecording, op, "not a valid WAV stream", dec.Err())
	}

	if want := math.Round(cfg.SamplingHz()); float64(dec.SampleRate) != want {
		return nil, common.NewRadarError(common.ErrCodeConfigMismatch, op,
			fmt.Sprintf("recording is sampled at %d Hz, configuration expects %g Hz", dec.SampleRate, cfg.SamplingHz()), nil)
	}

	channels := int(dec.NumChans)
	if channels != 1 && channels != 2 {
		return nil, common.NewRadarError(common.ErrCodeInvalidRecording, op,
			fmt.Sprintf("expected 1 or 2 channels, got %d", channels), nil)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, common.NewRadarError(common.ErrCodeInvalidRecording, op, "failed to decode PCM data", err)
	}

	n := cfg.NominalSamples()
	frames := len(buf.Data) / channels
	if frames < n {
		return nil, common.NewRadarError(common.ErrCodeInsufficientSamples, op,
			fmt.Sprintf("recording holds %d samples, one chirp needs %d", frames, n), nil)
	}
	if frames%n != 0 {
		return nil, common.NewRadarError(common.ErrCodeLengthMismatch, op,
			fmt.Sprintf("recording holds %d samples, not a whole number of %d-sample chirps", frames, n), nil)
	}

	scale := fullScale / float64(int64(1)<<(dec.BitDepth-1)-1)
	signals := make([]*common.BeatSignal, frames/n)
	for c := range signals {
		chunk := buf.Data[c*n*channels : (c+1)*n*channels]
		var sig *common.BeatSignal
		if channels == 2 {
			samples := make([]complex128, n)
			for i := range samples {
				samples[i] = complex(float64(chunk[2*i])*scale, float64(chunk[2*i+1])*scale)
			}
			sig, err = common.NewComplexBeatSignal(samples, cfg)
		} else {
			samples := make([]float64, n)
			for i := range samples {
				samples[i] = float64(chunk[i]) * scale
			}
			sig, err = common.NewRealBeatSignal(samples, cfg)
		}
		if err != nil {
			return nil, err
		}
		signals[c] = sig
	}

	return signals, nil
}

func sampleRate(cfg *common.ChirpConfig) (int, error) {
	fs := cfg.SamplingHz()
	if fs != math.Trunc(fs) || fs > math.MaxInt32 {
		return 0, fmt.Errorf("sampling rate %g Hz cannot be stored in a WAV header", fs)
	}
	return int(fs), nil
}

func peak(signals []*common.BeatSignal) float64 {
	var p float64
	for _, sig := range signals {
		for i := range sig.Len() {
			v := sig.At(i)
			p = math.Max(p, math.Max(math.Abs(real(v)), math.Abs(imag(v))))
		}
	}
	if p == 0 {
		return 1
	}
	return p
}

package configs

import (
	"strings"
	"testing"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/apres-range/pkg/radar"
	"github.com/RyanBlaney/apres-range/pkg/radar/estimators"
	"github.com/RyanBlaney/apres-range/pkg/radar/stacking"
	"github.com/RyanBlaney/apres-range/pkg/radar/synthetic"
)

func TestLoadDefaults(t *testing.T) {
	config, err := LoadConfigFrom(viper.New())
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(config))

	assert.Equal(t, GetDefaultConfig(), config)

	cfg, err := config.ChirpConfig()
	require.NoError(t, err)
	assert.Equal(t, 12000, cfg.NominalSamples())

	threshold, err := config.Processing.DetectionThreshold()
	require.NoError(t, err)
	assert.Equal(t, estimators.DefaultThreshold(), threshold)

	mode, err := config.Processing.Mode()
	require.NoError(t, err)
	assert.Equal(t, stacking.Coherent, mode)
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
log_level: debug
chirp:
  sampling_hz: 4096
  permittivity: 3.15
processing:
  window: hann
  pad_factor: 2
  threshold:
    mode: absolute
    value: 0.2
  stacking_mode: incoherent
simulation:
  chirps: 8
  noise_stddev: 0.5
  reflectors:
    - range_m: 75
      amplitude: 0.8
`)))

	config, err := LoadConfigFrom(v)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(config))

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 4096.0, config.Chirp.SamplingHz)
	assert.Equal(t, 3.15, config.Chirp.Permittivity)
	assert.Equal(t, 200e6, config.Chirp.BandwidthHz)
	assert.Equal(t, "hann", config.Processing.Window)
	assert.Equal(t, 2, config.Processing.PadFactor)
	assert.True(t, config.Processing.PhaseReference)
	assert.Equal(t, 8, config.Simulation.Chirps)
	assert.Equal(t, []synthetic.Reflector{{RangeM: 75, Amplitude: 0.8}}, config.Simulation.Reflectors)

	threshold, err := config.Processing.DetectionThreshold()
	require.NoError(t, err)
	assert.Equal(t, estimators.AbsoluteThreshold(0.2), threshold)

	mode, err := config.Processing.Mode()
	require.NoError(t, err)
	assert.Equal(t, stacking.Incoherent, mode)
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"output format", func(c *Config) { c.OutputFormat = "xml" }},
		{"bandwidth", func(c *Config) { c.Chirp.BandwidthHz = 0 }},
		{"permittivity", func(c *Config) { c.Chirp.Permittivity = 0.5 }},
		{"nyquist", func(c *Config) { c.Chirp.MaxBeatHz = 7000 }},
		{"window", func(c *Config) { c.Processing.Window = "kaiser" }},
		{"max range", func(c *Config) { c.Processing.MaxRangeM = -1 }},
		{"negative pad factor", func(c *Config) { c.Processing.PadFactor = -1 }},
		{"pad factor", func(c *Config) { c.Processing.PadFactor = MaxPadFactor + 1 }},
		{"threshold mode", func(c *Config) { c.Processing.Threshold.Mode = "fuzzy" }},
		{"threshold value", func(c *Config) { c.Processing.Threshold.Value = -2 }},
		{"stacking mode", func(c *Config) { c.Processing.StackingMode = "median" }},
		{"chirps", func(c *Config) { c.Simulation.Chirps = 0 }},
		{"bursts", func(c *Config) { c.Simulation.Bursts = 0 }},
		{"noise", func(c *Config) { c.Simulation.NoiseStdDev = -0.1 }},
		{"reflector range", func(c *Config) { c.Simulation.Reflectors[0].RangeM = -3 }},
		{"stack sizes", func(c *Config) { c.Benchmark.StackSizes = nil }},
		{"stack size", func(c *Config) { c.Benchmark.StackSizes = []int{1, 0} }},
		{"trials", func(c *Config) { c.Benchmark.Trials = 1 }},
		{"benchmark noise", func(c *Config) { c.Benchmark.NoiseStdDev = 0 }},
		{"benchmark concurrency", func(c *Config) { c.Benchmark.MaxConcurrency = 0 }},
	}

	require.NoError(t, ValidateConfig(GetDefaultConfig()))

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tc.mutate(config)
			assert.Error(t, ValidateConfig(config))
		})
	}
}

func TestProcessorOptions(t *testing.T) {
	config := GetDefaultConfig()
	config.Processing.Window = "blackman"
	config.Processing.MaxRangeM = 100

	opts, err := config.Processing.ProcessorOptions(&logging.NoOpLogger{})
	require.NoError(t, err)

	processor := radar.NewRangeProcessor(opts...)
	assert.Equal(t, "blackman", string(processor.Analyzer().Window()))
	assert.True(t, processor.Analyzer().PhaseReferenced())

	cfg, err := config.ChirpConfig()
	require.NoError(t, err)
	sig, err := synthetic.Generate(cfg, config.Simulation.Reflectors)
	require.NoError(t, err)

	estimates, err := processor.ProcessSingle(sig, cfg, estimators.AbsoluteThreshold(0.1))
	require.NoError(t, err)
	require.Len(t, estimates, 1)
	assert.Equal(t, 117, estimates[0].BinIndex)

	config.Processing.Window = "kaiser"
	_, err = config.Processing.ProcessorOptions(nil)
	assert.Error(t, err)
}

func TestProcessorOptionsPadFactor(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{0, 1}, {1, 1}, {4, 4}} {
		config := GetDefaultConfig()
		config.Processing.PadFactor = tt.in

		opts, err := config.Processing.ProcessorOptions(&logging.NoOpLogger{})
		require.NoError(t, err)
		assert.Equal(t, tt.want, radar.NewRangeProcessor(opts...).Analyzer().PadFactor(), "pad_factor %d", tt.in)
	}
}

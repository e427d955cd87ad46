package configs

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/apres-range/pkg/radar"
	"github.com/RyanBlaney/apres-range/pkg/radar/analyzers"
	"github.com/RyanBlaney/apres-range/pkg/radar/common"
	"github.com/RyanBlaney/apres-range/pkg/radar/estimators"
	"github.com/RyanBlaney/apres-range/pkg/radar/stacking"
	"github.com/RyanBlaney/apres-range/pkg/radar/synthetic"
	"github.com/RyanBlaney/apres-range/pkg/zaplog"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose" yaml:"verbose"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`

	// Radar acquisition parameters
	Chirp common.ChirpParams `mapstructure:"chirp" yaml:"chirp"`

	// Range pipeline settings
	Processing ProcessingConfig `mapstructure:"processing" yaml:"processing"`

	// Synthetic acquisition used by the simulate command
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`

	// Stacking benchmark settings
	Benchmark BenchmarkConfig `mapstructure:"benchmark" yaml:"benchmark"`
}

// MaxPadFactor caps processing.pad_factor. Zero and one both mean no padding.
const MaxPadFactor = 16

// ProcessingConfig contains range pipeline settings
type ProcessingConfig struct {
	Window         string          `mapstructure:"window" yaml:"window"`
	PadFactor      int             `mapstructure:"pad_factor" yaml:"pad_factor"`
	HalfSpectrum   bool            `mapstructure:"half_spectrum" yaml:"half_spectrum"`
	PhaseReference bool            `mapstructure:"phase_reference" yaml:"phase_reference"`
	MaxRangeM      float64         `mapstructure:"max_range_m" yaml:"max_range_m"`
	Threshold      ThresholdConfig `mapstructure:"threshold" yaml:"threshold"`
	StackingMode   string          `mapstructure:"stacking_mode" yaml:"stacking_mode"`
	MaxConcurrency int             `mapstructure:"max_concurrency" yaml:"max_concurrency"`
}

// ThresholdConfig contains the coarse detection threshold
type ThresholdConfig struct {
	Mode  string  `mapstructure:"mode" yaml:"mode"`
	Value float64 `mapstructure:"value" yaml:"value"`
}

// SimulationConfig describes a synthetic acquisition
type SimulationConfig struct {
	Reflectors  []synthetic.Reflector `mapstructure:"reflectors" yaml:"reflectors"`
	Chirps      int                   `mapstructure:"chirps" yaml:"chirps"`
	Bursts      int                   `mapstructure:"bursts" yaml:"bursts"`
	NoiseStdDev float64               `mapstructure:"noise_stddev" yaml:"noise_stddev"`
	Seed        uint64                `mapstructure:"seed" yaml:"seed"`
	RealSignal  bool                  `mapstructure:"real_signal" yaml:"real_signal"`
}

// BenchmarkConfig contains stacking benchmark settings
type BenchmarkConfig struct {
	StackSizes     []int   `mapstructure:"stack_sizes" yaml:"stack_sizes"`
	Trials         int     `mapstructure:"trials" yaml:"trials"`
	NoiseStdDev    float64 `mapstructure:"noise_stddev" yaml:"noise_stddev"`
	RangeM         float64 `mapstructure:"range_m" yaml:"range_m"`
	Seed           uint64  `mapstructure:"seed" yaml:"seed"`
	MaxConcurrency int     `mapstructure:"max_concurrency" yaml:"max_concurrency"`
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom applies defaults to v and decodes it
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if _, err := zaplog.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	switch strings.ToLower(config.LogFormat) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q", config.LogFormat)
	}

	switch strings.ToLower(config.OutputFormat) {
	case "", "table", "json", "yaml", "csv":
	default:
		return fmt.Errorf("unsupported output format %q", config.OutputFormat)
	}

	if _, err := config.ChirpConfig(); err != nil {
		return err
	}

	if err := config.Processing.Validate(); err != nil {
		return err
	}

	if err := config.Simulation.Validate(); err != nil {
		return err
	}

	return config.Benchmark.Validate()
}

// ChirpConfig builds the validated chirp configuration
func (c *Config) ChirpConfig() (*common.ChirpConfig, error) {
	cfg, err := common.NewChirpConfig(c.Chirp)
	if err != nil {
		return nil, fmt.Errorf("invalid chirp configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the processing settings
func (p ProcessingConfig) Validate() error {
	if _, err := analyzers.ParseWindowType(p.Window); err != nil {
		return fmt.Errorf("invalid processing window: %w", err)
	}

	if p.PadFactor < 0 || p.PadFactor > MaxPadFactor {
		return fmt.Errorf("pad factor must be between 1 and %d, got %d", MaxPadFactor, p.PadFactor)
	}

	if p.MaxRangeM < 0 || math.IsNaN(p.MaxRangeM) || math.IsInf(p.MaxRangeM, 0) {
		return fmt.Errorf("max range must be finite and non-negative")
	}

	if _, err := p.DetectionThreshold(); err != nil {
		return err
	}

	if _, err := stacking.ParseMode(p.StackingMode); err != nil {
		return fmt.Errorf("invalid stacking mode: %w", err)
	}

	if p.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency cannot be negative")
	}

	return nil
}

// DetectionThreshold builds the coarse detection threshold
func (p ProcessingConfig) DetectionThreshold() (estimators.Threshold, error) {
	mode, err := estimators.ParseThresholdMode(p.Threshold.Mode)
	if err != nil {
		return estimators.Threshold{}, fmt.Errorf("invalid threshold: %w", err)
	}

	threshold := estimators.Threshold{Mode: mode, Value: p.Threshold.Value}
	if err := threshold.Validate(); err != nil {
		return estimators.Threshold{}, fmt.Errorf("invalid threshold: %w", err)
	}
	return threshold, nil
}

// Mode returns the configured stacking mode
func (p ProcessingConfig) Mode() (stacking.Mode, error) {
	return stacking.ParseMode(p.StackingMode)
}

// ProcessorOptions translates the processing settings into RangeProcessor options
func (p ProcessingConfig) ProcessorOptions(logger logging.Logger) ([]radar.Option, error) {
	window, err := analyzers.ParseWindowType(p.Window)
	if err != nil {
		return nil, fmt.Errorf("invalid processing window: %w", err)
	}

	return []radar.Option{
		radar.WithLogger(logger),
		radar.WithMaxRange(p.MaxRangeM),
		radar.WithMaxConcurrency(p.MaxConcurrency),
		radar.WithAnalyzerOptions(
			analyzers.WithWindow(window),
			analyzers.WithPadFactor(max(p.PadFactor, 1)),
			analyzers.WithHalfSpectrum(p.HalfSpectrum),
			analyzers.WithPhaseReference(p.PhaseReference),
		),
	}, nil
}

// Validate checks the simulation settings
func (s SimulationConfig) Validate() error {
	if s.Chirps < 1 {
		return fmt.Errorf("simulation needs at least one chirp")
	}

	if s.Bursts < 1 {
		return fmt.Errorf("simulation needs at least one burst")
	}

	if s.NoiseStdDev < 0 || math.IsNaN(s.NoiseStdDev) {
		return fmt.Errorf("noise stddev cannot be negative")
	}

	for i, r := range s.Reflectors {
		if r.RangeM < 0 || math.IsNaN(r.RangeM) {
			return fmt.Errorf("reflector %d: range cannot be negative", i)
		}
		if r.Amplitude < 0 || math.IsNaN(r.Amplitude) {
			return fmt.Errorf("reflector %d: amplitude cannot be negative", i)
		}
	}

	return nil
}

// Validate checks the benchmark settings
func (b BenchmarkConfig) Validate() error {
	if len(b.StackSizes) == 0 {
		return fmt.Errorf("benchmark needs at least one stack size")
	}

	for _, k := range b.StackSizes {
		if k < 1 {
			return fmt.Errorf("stack size must be positive, got %d", k)
		}
	}

	if b.Trials < 2 {
		return fmt.Errorf("benchmark needs at least two trials per stack size")
	}

	if b.NoiseStdDev <= 0 || math.IsNaN(b.NoiseStdDev) {
		return fmt.Errorf("benchmark noise stddev must be positive")
	}

	if b.RangeM <= 0 || math.IsNaN(b.RangeM) {
		return fmt.Errorf("benchmark reflector range must be positive")
	}

	if b.MaxConcurrency < 1 {
		return fmt.Errorf("benchmark max concurrency must be positive")
	}

	return nil
}

package configs

import (
	"github.com/spf13/viper"

	"github.com/RyanBlaney/apres-range/pkg/radar/common"
	"github.com/RyanBlaney/apres-range/pkg/radar/estimators"
	"github.com/RyanBlaney/apres-range/pkg/radar/synthetic"
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	// Application defaults
	if !v.IsSet("log_level") {
		v.Set("log_level", "info")
	}
	if !v.IsSet("log_format") {
		v.Set("log_format", "console")
	}
	if !v.IsSet("output_format") {
		v.Set("output_format", "table")
	}

	// Chirp defaults describe a 200 MHz ApRES sweep in ice
	chirp := GetDefaultChirpParams()
	if !v.IsSet("chirp.bandwidth_hz") {
		v.Set("chirp.bandwidth_hz", chirp.BandwidthHz)
	}
	if !v.IsSet("chirp.duration_s") {
		v.Set("chirp.duration_s", chirp.DurationS)
	}
	if !v.IsSet("chirp.carrier_hz") {
		v.Set("chirp.carrier_hz", chirp.CarrierHz)
	}
	if !v.IsSet("chirp.sampling_hz") {
		v.Set("chirp.sampling_hz", chirp.SamplingHz)
	}
	if !v.IsSet("chirp.permittivity") {
		v.Set("chirp.permittivity", chirp.Permittivity)
	}
	if !v.IsSet("chirp.speed_of_light_mps") {
		v.Set("chirp.speed_of_light_mps", chirp.SpeedOfLightMps)
	}
	if !v.IsSet("chirp.max_beat_hz") {
		v.Set("chirp.max_beat_hz", chirp.MaxBeatHz)
	}

	// Processing defaults
	if !v.IsSet("processing.window") {
		v.Set("processing.window", "rectangular")
	}
	if !v.IsSet("processing.pad_factor") {
		v.Set("processing.pad_factor", 1)
	}
	if !v.IsSet("processing.half_spectrum") {
		v.Set("processing.half_spectrum", false)
	}
	if !v.IsSet("processing.phase_reference") {
		v.Set("processing.phase_reference", true)
	}
	if !v.IsSet("processing.max_range_m") {
		v.Set("processing.max_range_m", 0.0)
	}
	if !v.IsSet("processing.threshold.mode") {
		v.Set("processing.threshold.mode", string(estimators.ThresholdNoiseFloor))
	}
	if !v.IsSet("processing.threshold.value") {
		v.Set("processing.threshold.value", estimators.DefaultNoiseFloorMultiple)
	}
	if !v.IsSet("processing.stacking_mode") {
		v.Set("processing.stacking_mode", "coherent")
	}
	if !v.IsSet("processing.max_concurrency") {
		v.Set("processing.max_concurrency", 4)
	}

	// Simulation defaults
	if !v.IsSet("simulation.reflectors") {
		v.Set("simulation.reflectors", []map[string]any{
			{"range_m": 50.0, "amplitude": 1.0},
			{"range_m": 120.0, "amplitude": 1.0},
		})
	}
	if !v.IsSet("simulation.chirps") {
		v.Set("simulation.chirps", 1)
	}
	if !v.IsSet("simulation.bursts") {
		v.Set("simulation.bursts", 1)
	}
	if !v.IsSet("simulation.noise_stddev") {
		v.Set("simulation.noise_stddev", 0.0)
	}
	if !v.IsSet("simulation.seed") {
		v.Set("simulation.seed", 1)
	}
	if !v.IsSet("simulation.real_signal") {
		v.Set("simulation.real_signal", false)
	}

	// Benchmark defaults
	bench := GetDefaultBenchmarkConfig()
	if !v.IsSet("benchmark.stack_sizes") {
		v.Set("benchmark.stack_sizes", bench.StackSizes)
	}
	if !v.IsSet("benchmark.trials") {
		v.Set("benchmark.trials", bench.Trials)
	}
	if !v.IsSet("benchmark.noise_stddev") {
		v.Set("benchmark.noise_stddev", bench.NoiseStdDev)
	}
	if !v.IsSet("benchmark.range_m") {
		v.Set("benchmark.range_m", bench.RangeM)
	}
	if !v.IsSet("benchmark.seed") {
		v.Set("benchmark.seed", bench.Seed)
	}
	if !v.IsSet("benchmark.max_concurrency") {
		v.Set("benchmark.max_concurrency", bench.MaxConcurrency)
	}
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "console",
		OutputFormat: "table",
		Chirp:        GetDefaultChirpParams(),
		Processing:   GetDefaultProcessingConfig(),
		Simulation:   GetDefaultSimulationConfig(),
		Benchmark:    GetDefaultBenchmarkConfig(),
	}
}

// GetDefaultChirpParams returns the reference ApRES sweep
func GetDefaultChirpParams() common.ChirpParams {
	return common.ChirpParams{
		BandwidthHz:     200e6,
		DurationS:       1,
		CarrierHz:       300e6,
		SamplingHz:      12000,
		Permittivity:    3.1,
		SpeedOfLightMps: common.SpeedOfLight,
	}
}

// GetDefaultProcessingConfig returns default range pipeline settings
func GetDefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		Window:         "rectangular",
		PadFactor:      1,
		PhaseReference: true,
		Threshold: ThresholdConfig{
			Mode:  string(estimators.ThresholdNoiseFloor),
			Value: estimators.DefaultNoiseFloorMultiple,
		},
		StackingMode:   "coherent",
		MaxConcurrency: 4,
	}
}

// GetDefaultSimulationConfig returns the two-reflector reference geometry
func GetDefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Reflectors: []synthetic.Reflector{
			{RangeM: 50, Amplitude: 1},
			{RangeM: 120, Amplitude: 1},
		},
		Chirps: 1,
		Bursts: 1,
		Seed:   1,
	}
}

// GetDefaultBenchmarkConfig returns default stacking benchmark settings
func GetDefaultBenchmarkConfig() BenchmarkConfig {
	return BenchmarkConfig{
		StackSizes:     []int{1, 2, 4, 8, 16},
		Trials:         32,
		NoiseStdDev:    1,
		RangeM:         60,
		Seed:           1,
		MaxConcurrency: 4,
	}
}

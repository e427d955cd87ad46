// Package benchmark measures how coherent stacking narrows the spread of fine
// range estimates over repeated noisy trials.
package benchmark

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/sourcegraph/conc/pool"

	"github.com/RyanBlaney/apres-range/configs"
	"github.com/RyanBlaney/apres-range/pkg/radar"
	"github.com/RyanBlaney/apres-range/pkg/radar/common"
	"github.com/RyanBlaney/apres-range/pkg/radar/estimators"
	"github.com/RyanBlaney/apres-range/pkg/radar/stacking"
	"github.com/RyanBlaney/apres-range/pkg/radar/synthetic"
)

// TrialResult is the outcome of one noisy burst
type TrialResult struct {
	StackSize   int     `json:"stack_size" yaml:"stack_size"`
	Trial       int     `json:"trial" yaml:"trial"`
	Detected    bool    `json:"detected" yaml:"detected"`
	Reflectors  int     `json:"reflectors" yaml:"reflectors"`
	RangeM      float64 `json:"range_m" yaml:"range_m"`
	RangeErrorM float64 `json:"range_error_m" yaml:"range_error_m"`
}

// Summary is the full benchmark report
type Summary struct {
	StartTime     time.Time      `json:"start_time" yaml:"start_time"`
	EndTime       time.Time      `json:"end_time" yaml:"end_time"`
	TotalDuration time.Duration  `json:"total_duration" yaml:"total_duration"`
	RangeM        float64        `json:"range_m" yaml:"range_m"`
	NoiseStdDev   float64        `json:"noise_stddev" yaml:"noise_stddev"`
	Threshold     string         `json:"threshold" yaml:"threshold"`
	Stacks        []StackMetrics `json:"stacks" yaml:"stacks"`
}

// Orchestrator runs stacking trials across stack sizes
type Orchestrator struct {
	config    configs.BenchmarkConfig
	chirp     *common.ChirpConfig
	processor *radar.RangeProcessor
	threshold estimators.Threshold
	logger    logging.Logger
	metrics   *MetricsCalculator
}

// NewOrchestrator creates a new benchmark orchestrator
func NewOrchestrator(cfg *configs.Config, logger logging.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{
			"component": "benchmark_orchestrator",
		})
	}

	if err := cfg.Benchmark.Validate(); err != nil {
		return nil, fmt.Errorf("invalid benchmark configuration: %w", err)
	}

	chirp, err := cfg.ChirpConfig()
	if err != nil {
		return nil, err
	}

	threshold, err := cfg.Processing.DetectionThreshold()
	if err != nil {
		return nil, err
	}

	opts, err := cfg.Processing.ProcessorOptions(logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		config:    cfg.Benchmark,
		chirp:     chirp,
		processor: radar.NewRangeProcessor(opts...),
		threshold: threshold,
		logger:    logger,
		metrics:   NewMetricsCalculator(logger),
	}, nil
}

// Run executes every trial and summarizes each stack size. Trials draw noise
// from per-trial seeds, so results do not depend on scheduling.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	startTime := time.Now()

	o.logger.Debug("Starting stacking benchmark", logging.Fields{
		"stack_sizes":     o.config.StackSizes,
		"trials":          o.config.Trials,
		"noise_stddev":    o.config.NoiseStdDev,
		"range_m":         o.config.RangeM,
		"max_concurrency": o.config.MaxConcurrency,
	})

	results := make([][]TrialResult, len(o.config.StackSizes))
	for i := range results {
		results[i] = make([]TrialResult, o.config.Trials)
	}

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(o.config.MaxConcurrency)

	for i, k := range o.config.StackSizes {
		for trial := range o.config.Trials {
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				result, err := o.runTrial(k, trial)
				if err != nil {
					return fmt.Errorf("stack size %d trial %d: %w", k, trial, err)
				}
				results[i][trial] = result
				return nil
			})
		}
	}

	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("benchmark execution failed: %w", err)
	}

	stacks := make([]StackMetrics, len(o.config.StackSizes))
	for i, k := range o.config.StackSizes {
		stacks[i] = o.metrics.CalculateStackMetrics(k, results[i])
	}
	o.metrics.CompareToBaseline(stacks)

	endTime := time.Now()

	summary := &Summary{
		StartTime:     startTime,
		EndTime:       endTime,
		TotalDuration: endTime.Sub(startTime),
		RangeM:        o.config.RangeM,
		NoiseStdDev:   o.config.NoiseStdDev,
		Threshold:     o.threshold.String(),
		Stacks:        stacks,
	}

	o.logger.Debug("Stacking benchmark complete", logging.Fields{
		"duration_ms": summary.TotalDuration.Milliseconds(),
		"stacks":      len(stacks),
	})

	return summary, nil
}

// runTrial stacks k noisy chirps and scores the estimate nearest the reflector
func (o *Orchestrator) runTrial(k, trial int) (TrialResult, error) {
	rng := rand.New(rand.NewPCG(o.config.Seed, uint64(k)<<32|uint64(trial)))

	signals, err := synthetic.Burst(o.chirp,
		[]synthetic.Reflector{{RangeM: o.config.RangeM, Amplitude: 1}}, k,
		synthetic.WithNoise(o.config.NoiseStdDev, rng))
	if err != nil {
		return TrialResult{}, err
	}

	estimates, err := o.processor.ProcessStacked(signals, o.chirp, o.threshold, stacking.Coherent)
	if err != nil {
		return TrialResult{}, err
	}

	result := TrialResult{StackSize: k, Trial: trial, Reflectors: len(estimates)}

	// a detection counts only within one range bin of the true reflector
	best := math.Inf(1)
	for _, est := range estimates {
		diff := est.RangeM() - o.config.RangeM
		if math.Abs(diff) < math.Abs(best) {
			best = diff
			result.RangeM = est.RangeM()
		}
	}
	if math.Abs(best) <= o.chirp.RangeBinWidth() {
		result.Detected = true
		result.RangeErrorM = best
	}

	return result, nil
}

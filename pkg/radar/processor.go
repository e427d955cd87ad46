// Package radar turns FMCW beat signals into ranged reflector estimates.
//
// A RangeProcessor chains the spectral analyzer, the coarse peak detector and
// the phase-based fine refiner. Chirps of a burst can be stacked first to
// lower the noise floor.
package radar

import (
	"context"
	"fmt"
	"runtime"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/apres-range/pkg/radar/analyzers"
	"github.com/RyanBlaney/apres-range/pkg/radar/common"
	"github.com/RyanBlaney/apres-range/pkg/radar/estimators"
	"github.com/RyanBlaney/apres-range/pkg/radar/stacking"
)

// RangeProcessor runs the full range pipeline. It holds no per-call state and
// is safe for concurrent use.
type RangeProcessor struct {
	analyzer       *analyzers.SpectralAnalyzer
	coarse         *estimators.CoarseRangeEstimator
	fine           *estimators.FineRangeRefiner
	maxConcurrency int
	logger         logging.Logger
}

type processorOptions struct {
	analyzerOpts   []analyzers.Option
	maxRangeM      float64
	maxConcurrency int
	logger         logging.Logger
}

// Option configures a RangeProcessor
type Option func(*processorOptions)

// WithAnalyzerOptions passes options through to the spectral analyzer
func WithAnalyzerOptions(opts ...analyzers.Option) Option {
	return func(o *processorOptions) { o.analyzerOpts = append(o.analyzerOpts, opts...) }
}

// WithMaxRange limits peak detection to ranges at or below maxRangeM
func WithMaxRange(maxRangeM float64) Option {
	return func(o *processorOptions) { o.maxRangeM = maxRangeM }
}

// WithMaxConcurrency bounds the number of bursts ProcessBatch runs at once.
// Values below 1 use GOMAXPROCS.
func WithMaxConcurrency(n int) Option {
	return func(o *processorOptions) { o.maxConcurrency = n }
}

// WithLogger sets the logger shared by the processor and its stages
func WithLogger(logger logging.Logger) Option {
	return func(o *processorOptions) { o.logger = logger }
}

// NewRangeProcessor creates a processor
func NewRangeProcessor(opts ...Option) *RangeProcessor {
	o := processorOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.WithFields(logging.Fields{
			"component": "range_processor",
		})
	}
	if o.maxConcurrency < 1 {
		o.maxConcurrency = runtime.GOMAXPROCS(0)
	}

	// a nil o.logger leaves each stage on its own component logger
	analyzerOpts := append([]analyzers.Option{analyzers.WithLogger(o.logger)}, o.analyzerOpts...)

	return &RangeProcessor{
		analyzer: analyzers.NewSpectralAnalyzer(analyzerOpts...),
		coarse: estimators.NewCoarseRangeEstimator(
			estimators.WithMaxRange(o.maxRangeM),
			estimators.WithCoarseLogger(o.logger),
		),
		fine:           estimators.NewFineRangeRefiner(o.logger),
		maxConcurrency: o.maxConcurrency,
		logger:         logger,
	}
}

// Analyzer returns the spectral analyzer used by the processor
func (p *RangeProcessor) Analyzer() *analyzers.SpectralAnalyzer { return p.analyzer }

// ProcessSingle analyzes one chirp and returns its reflectors sorted by range.
// An empty result means nothing rose above the threshold.
func (p *RangeProcessor) ProcessSingle(sig *common.BeatSignal, cfg *common.ChirpConfig, threshold estimators.Threshold) ([]common.ReflectorEstimate, error) {
	if err := checkSignal("ProcessSingle", sig, cfg); err != nil {
		return nil, err
	}

	sp, err := p.analyzer.Analyze(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze beat signal: %w", err)
	}

	estimates, err := p.estimate(sp, cfg, threshold)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Single chirp processed", logging.Fields{
		"function":   "ProcessSingle",
		"samples":    sig.Len(),
		"reflectors": len(estimates),
	})
	return estimates, nil
}

// ProcessStacked stacks the chirps of one burst and processes the combined
// spectrum. Incoherent stacks carry no phase and return coarse ranges only.
func (p *RangeProcessor) ProcessStacked(signals []*common.BeatSignal, cfg *common.ChirpConfig, threshold estimators.Threshold, mode stacking.Mode) ([]common.ReflectorEstimate, error) {
	if len(signals) == 0 {
		return nil, common.NewRadarError(common.ErrCodeEmptyInput, "ProcessStacked", "no beat signals supplied", nil)
	}
	for i, sig := range signals {
		if err := checkSignal("ProcessStacked", sig, cfg); err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
	}

	stacked, err := stacking.StackSignals(cfg, mode, p.analyzer, signals)
	if err != nil {
		return nil, fmt.Errorf("failed to stack %d chirps: %w", len(signals), err)
	}

	sp, err := stacked.Spectrum(p.analyzer)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze stacked signal: %w", err)
	}

	estimates, err := p.estimate(sp, cfg, threshold)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Stacked burst processed", logging.Fields{
		"function":   "ProcessStacked",
		"chirps":     stacked.Count(),
		"mode":       stacked.Mode(),
		"reflectors": len(estimates),
	})
	return estimates, nil
}

func (p *RangeProcessor) estimate(sp *common.Spectrum, cfg *common.ChirpConfig, threshold estimators.Threshold) ([]common.ReflectorEstimate, error) {
	estimates, err := p.coarse.Estimate(sp, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to detect peaks: %w", err)
	}

	if sp.HasPhase() {
		estimates, err = p.fine.RefineAll(estimates, sp, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to refine ranges: %w", err)
		}
	}

	common.SortByRange(estimates)
	return estimates, nil
}

func checkSignal(op string, sig *common.BeatSignal, cfg *common.ChirpConfig) error {
	if cfg == nil {
		return common.NewRadarError(common.ErrCodeInvalidConfig, op, "nil chirp configuration", nil)
	}
	if sig == nil {
		return common.NewRadarError(common.ErrCodeEmptyInput, op, "nil beat signal", nil)
	}
	if !cfg.Equal(sig.Config()) {
		return common.NewRadarError(common.ErrCodeConfigMismatch, op,
			fmt.Sprintf("signal recorded with %v, processing with %v", sig.Config(), cfg), nil)
	}
	return nil
}

// Burst is one independent set of chirps to process
type Burst struct {
	ID        string
	Signals   []*common.BeatSignal
	Config    *common.ChirpConfig
	Threshold estimators.Threshold
	Mode      stacking.Mode
}

// BurstResult holds the estimates for one burst
type BurstResult struct {
	ID        string                     `json:"id" yaml:"id"`
	Chirps    int                        `json:"chirps" yaml:"chirps"`
	Mode      stacking.Mode              `json:"mode" yaml:"mode"`
	Estimates []common.ReflectorEstimate `json:"estimates" yaml:"estimates"`
}

// ProcessBatch processes independent bursts in parallel. Results are returned
// in input order. The first failure cancels bursts that have not started.
func (p *RangeProcessor) ProcessBatch(ctx context.Context, bursts []Burst) ([]BurstResult, error) {
	results := make([]BurstResult, len(bursts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrency)

	for i, burst := range bursts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			mode := burst.Mode
			if mode == "" {
				mode = stacking.Coherent
			}

			estimates, err := p.ProcessStacked(burst.Signals, burst.Config, burst.Threshold, mode)
			if err != nil {
				return fmt.Errorf("burst %d (%s): %w", i, burst.ID, err)
			}

			results[i] = BurstResult{
				ID:        burst.ID,
				Chirps:    len(burst.Signals),
				Mode:      mode,
				Estimates: estimates,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("Batch processed", logging.Fields{
		"function":        "ProcessBatch",
		"bursts":          len(bursts),
		"max_concurrency": p.maxConcurrency,
	})
	return results, nil
}

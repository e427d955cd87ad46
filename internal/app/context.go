package app

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/latency-benchmark-common/output"
	"github.com/dustin/go-humanize"

	"github.com/RyanBlaney/apres-range/configs"
	"github.com/RyanBlaney/apres-range/internal/benchmark"
	"github.com/RyanBlaney/apres-range/pkg/radar"
	"github.com/RyanBlaney/apres-range/pkg/radar/common"
	"github.com/RyanBlaney/apres-range/pkg/radar/synthetic"
	"github.com/RyanBlaney/apres-range/pkg/zaplog"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	SceneFile    string
	InputFiles   []string
	ExportDir    string
	FullScale    float64
	OutputFile   string
	OutputFormat string
	Timeout      time.Duration
	Verbose      bool
	Quiet        bool

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
	Out    io.Writer
}

// App runs simulations and benchmarks against the range pipeline
type App struct {
	ctx    *Context
	config *configs.Config
	logger logging.Logger
	out    io.Writer
}

// NewApp creates a new application. ctx.Config must already be loaded.
func NewApp(ctx *Context) (*App, error) {
	if ctx.Config == nil {
		return nil, fmt.Errorf("application configuration is required")
	}

	if ctx.OutputFormat == "" {
		ctx.OutputFormat = ctx.Config.OutputFormat
	}

	if err := configs.ValidateConfig(ctx.Config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := setupLogging(ctx)
	if err != nil {
		return nil, err
	}
	ctx.Logger = logger

	out := ctx.Out
	if out == nil {
		out = os.Stdout
	}

	logger.Debug("Application initialized", logging.Fields{
		"scene_file":    ctx.SceneFile,
		"output_format": ctx.OutputFormat,
		"timeout":       ctx.Timeout.Seconds(),
	})

	return &App{
		ctx:    ctx,
		config: ctx.Config,
		logger: logger,
		out:    out,
	}, nil
}

// setupLogging configures logging based on context. The console format uses
// the common DefaultLogger; json goes through zap.
func setupLogging(ctx *Context) (logging.Logger, error) {
	if ctx.Logger != nil {
		return ctx.Logger, nil
	}

	level, err := zaplog.ParseLevel(ctx.Config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	switch {
	case ctx.Quiet:
		level = logging.ErrorLevel
	case ctx.Verbose:
		level = logging.DebugLevel
	}

	var logger logging.Logger
	switch strings.ToLower(ctx.Config.LogFormat) {
	case "json":
		zl, err := zaplog.New(level)
		if err != nil {
			return nil, fmt.Errorf("failed to configure logging: %w", err)
		}
		logger = zl
	default:
		logger = logging.NewDefaultLogger()
		logger.SetLevel(level)
	}

	logging.SetGlobalLogger(logger)
	return logger.WithFields(logging.Fields{"component": "app"}), nil
}

func (app *App) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if app.ctx.Timeout > 0 {
		return context.WithTimeout(ctx, app.ctx.Timeout)
	}
	return context.WithCancel(ctx)
}

// RunSimulation synthesizes the configured bursts, processes them and writes
// the report
func (app *App) RunSimulation(ctx context.Context) error {
	report, err := app.Simulate(ctx)
	if err != nil {
		return err
	}
	return app.outputResults(report)
}

// Simulate synthesizes the configured bursts and processes them in parallel
func (app *App) Simulate(ctx context.Context) (*SimulationReport, error) {
	ctx, cancel := app.runContext(ctx)
	defer cancel()

	cfg, err := app.config.ChirpConfig()
	if err != nil {
		return nil, err
	}

	threshold, err := app.config.Processing.DetectionThreshold()
	if err != nil {
		return nil, err
	}

	mode, err := app.config.Processing.Mode()
	if err != nil {
		return nil, err
	}

	opts, err := app.config.Processing.ProcessorOptions(nil)
	if err != nil {
		return nil, err
	}

	sim := app.config.Simulation
	scene := &Scene{Name: "configured", Reflectors: sim.Reflectors}
	if app.ctx.SceneFile != "" {
		scene, err = loadSceneFromFile(app.ctx.SceneFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load scene: %w", err)
		}
	}

	app.logger.Debug("Synthesizing bursts", logging.Fields{
		"scene":        scene.Name,
		"reflectors":   len(scene.Reflectors),
		"bursts":       sim.Bursts,
		"chirps":       sim.Chirps,
		"noise_stddev": sim.NoiseStdDev,
	})

	bursts := make([]radar.Burst, sim.Bursts)
	for b := range bursts {
		var genOpts []synthetic.Option
		if sim.RealSignal {
			genOpts = append(genOpts, synthetic.WithRealOutput())
		}
		if sim.NoiseStdDev > 0 {
			genOpts = append(genOpts, synthetic.WithNoise(sim.NoiseStdDev, rand.New(rand.NewPCG(sim.Seed, uint64(b)))))
		}

		signals, err := synthetic.Burst(cfg, scene.Reflectors, sim.Chirps, genOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize burst %d: %w", b, err)
		}

		bursts[b] = radar.Burst{
			ID:        fmt.Sprintf("burst-%03d", b),
			Signals:   signals,
			Config:    cfg,
			Threshold: threshold,
			Mode:      mode,
		}
	}

	var exported []string
	if app.ctx.ExportDir != "" {
		if exported, err = app.exportBursts(bursts); err != nil {
			return nil, err
		}
	}

	processor := radar.NewRangeProcessor(opts...)
	results, err := processor.ProcessBatch(ctx, bursts)
	if err != nil {
		return nil, fmt.Errorf("range processing failed: %w", err)
	}

	return &SimulationReport{
		Timestamp:  time.Now(),
		Scene:      scene.Name,
		Chirp:      describeChirp(cfg),
		Reflectors: scene.Reflectors,
		Threshold:  threshold.String(),
		Mode:       string(mode),
		Bursts:     results,
		Exported:   exported,
	}, nil
}

// RunBenchmark runs the stacking benchmark and writes the report
func (app *App) RunBenchmark(ctx context.Context) error {
	ctx, cancel := app.runContext(ctx)
	defer cancel()

	orchestrator, err := benchmark.NewOrchestrator(app.config,
		logging.WithFields(logging.Fields{"component": "benchmark_orchestrator"}))
	if err != nil {
		return fmt.Errorf("failed to create benchmark orchestrator: %w", err)
	}

	summary, err := orchestrator.Run(ctx)
	if err != nil {
		return err
	}

	return app.outputResults(&BenchmarkReport{Summary: *summary})
}

// outputResults formats the report and writes it to file or stdout
func (app *App) outputResults(report any) error {
	formatter, err := NewFormatter(app.ctx.OutputFormat)
	if err != nil {
		return err
	}

	data, err := formatter.Format(report, true)
	if err != nil {
		return fmt.Errorf("failed to format output data: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	if app.ctx.OutputFile != "" {
		return app.writeToFile(data)
	}

	_, err = app.out.Write(data)
	return err
}

// writeToFile writes data to the specified output file
func (app *App) writeToFile(data []byte) error {
	// Ensure directory exists
	dir := filepath.Dir(app.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if err := os.WriteFile(app.ctx.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": app.ctx.OutputFile,
		"size_bytes":  len(data),
	})

	return nil
}

// ChirpSummary describes the sweep and its derived range axis
type ChirpSummary struct {
	common.ChirpParams `yaml:",inline"`
	ChirpRateHzPerS    float64 `json:"chirp_rate_hz_per_s" yaml:"chirp_rate_hz_per_s"`
	WavelengthM        float64 `json:"wavelength_m" yaml:"wavelength_m"`
	RangeBinWidthM     float64 `json:"range_bin_width_m" yaml:"range_bin_width_m"`
	MaxUnambiguousM    float64 `json:"max_unambiguous_range_m" yaml:"max_unambiguous_range_m"`
}

func describeChirp(cfg *common.ChirpConfig) ChirpSummary {
	return ChirpSummary{
		ChirpParams:     cfg.Params(),
		ChirpRateHzPerS: cfg.ChirpRate(),
		WavelengthM:     cfg.Wavelength(),
		RangeBinWidthM:  cfg.RangeBinWidth(),
		MaxUnambiguousM: cfg.RangeForFrequency(cfg.SamplingHz() / 2),
	}
}

// SimulationReport is the output of the simulate command
type SimulationReport struct {
	Timestamp  time.Time             `json:"timestamp" yaml:"timestamp"`
	Scene      string                `json:"scene" yaml:"scene"`
	Chirp      ChirpSummary          `json:"chirp" yaml:"chirp"`
	Reflectors []synthetic.Reflector `json:"reflectors" yaml:"reflectors"`
	Threshold  string                `json:"threshold" yaml:"threshold"`
	Mode       string                `json:"mode" yaml:"mode"`
	Bursts     []radar.BurstResult   `json:"bursts" yaml:"bursts"`
	Exported   []string              `json:"exported,omitempty" yaml:"exported,omitempty"`
}

// Caption implements Tabular
func (r *SimulationReport) Caption() []string {
	c := r.Chirp
	return []string{
		fmt.Sprintf("Scene: %s (%d reflectors, %d bursts)", r.Scene, len(r.Reflectors), len(r.Bursts)),
		fmt.Sprintf("Sweep: %s bandwidth at %s carrier, sampled at %s",
			humanHz(c.BandwidthHz), humanHz(c.CarrierHz), humanHz(c.SamplingHz)),
		fmt.Sprintf("Range bin: %.4f m, wavelength in medium: %.4f m, unambiguous to %.1f m",
			c.RangeBinWidthM, c.WavelengthM, c.MaxUnambiguousM),
		fmt.Sprintf("Threshold: %s, stacking: %s", r.Threshold, r.Mode),
	}
}

// Table implements Tabular
func (r *SimulationReport) Table() ([]string, [][]string) {
	return burstTable(r.Bursts)
}

func burstTable(bursts []radar.BurstResult) ([]string, [][]string) {
	headers := []string{"burst", "chirps", "bin", "coarse_range_m", "fine_range_m", "correction_m", "amplitude", "phase_rad"}
	var rows [][]string
	for _, b := range bursts {
		for _, est := range b.Estimates {
			rows = append(rows, []string{
				b.ID,
				strconv.Itoa(b.Chirps),
				strconv.Itoa(est.BinIndex),
				fmt.Sprintf("%.4f", est.CoarseRangeM),
				fmt.Sprintf("%.4f", est.FineRangeM),
				fmt.Sprintf("%+.4f", est.FineCorrectionM()),
				fmt.Sprintf("%.4g", est.Amplitude),
				fmt.Sprintf("%+.3f", est.PhaseRad),
			})
		}
	}
	return headers, rows
}

// BenchmarkReport wraps a benchmark summary for output
type BenchmarkReport struct {
	benchmark.Summary `yaml:",inline"`
}

// Caption implements Tabular
func (r *BenchmarkReport) Caption() []string {
	return []string{
		fmt.Sprintf("Reflector at %.3f m, noise stddev %g, threshold %s", r.RangeM, r.NoiseStdDev, r.Threshold),
		fmt.Sprintf("Completed in %s", output.FormatDuration(r.TotalDuration)),
	}
}

// Table implements Tabular
func (r *BenchmarkReport) Table() ([]string, [][]string) {
	headers := []string{"stack_size", "trials", "detection_rate", "bias_m", "std_dev_m", "variance_m2", "variance_ratio", "expected_ratio"}
	rows := make([][]string, 0, len(r.Stacks))
	for _, s := range r.Stacks {
		rows = append(rows, []string{
			strconv.Itoa(s.StackSize),
			strconv.Itoa(s.Trials),
			fmt.Sprintf("%.2f", s.DetectionRate),
			fmt.Sprintf("%+.2e", s.RangeError.Mean),
			fmt.Sprintf("%.2e", s.RangeError.StdDev),
			fmt.Sprintf("%.2e", s.RangeError.Variance),
			fmt.Sprintf("%.2f", s.VarianceRatio),
			fmt.Sprintf("%.0f", s.ExpectedRatio),
		})
	}
	return headers, rows
}

func humanHz(hz float64) string {
	value, prefix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%.4g %sHz", value, prefix)
}

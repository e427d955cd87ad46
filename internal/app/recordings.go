package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/apres-range/pkg/radar"
	"github.com/RyanBlaney/apres-range/pkg/radar/recording"
)

// ProcessReport is the output of the process command
type ProcessReport struct {
	Timestamp time.Time           `json:"timestamp" yaml:"timestamp"`
	Chirp     ChirpSummary        `json:"chirp" yaml:"chirp"`
	Files     []string            `json:"files" yaml:"files"`
	Threshold string              `json:"threshold" yaml:"threshold"`
	Mode      string              `json:"mode" yaml:"mode"`
	Bursts    []radar.BurstResult `json:"bursts" yaml:"bursts"`
}

// Caption implements Tabular
func (r *ProcessReport) Caption() []string {
	c := r.Chirp
	return []string{
		fmt.Sprintf("Recordings: %d", len(r.Files)),
		fmt.Sprintf("Sweep: %s bandwidth at %s carrier, sampled at %s",
			humanHz(c.BandwidthHz), humanHz(c.CarrierHz), humanHz(c.SamplingHz)),
		fmt.Sprintf("Threshold: %s, stacking: %s", r.Threshold, r.Mode),
	}
}

// Table implements Tabular
func (r *ProcessReport) Table() ([]string, [][]string) {
	return burstTable(r.Bursts)
}

// RunProcess reads recorded bursts, processes them and writes the report
func (app *App) RunProcess(ctx context.Context) error {
	report, err := app.Process(ctx)
	if err != nil {
		return err
	}
	return app.outputResults(report)
}

// Process reads each input WAV file as one burst and processes them in parallel
func (app *App) Process(ctx context.Context) (*ProcessReport, error) {
	if len(app.ctx.InputFiles) == 0 {
		return nil, fmt.Errorf("no recordings to process")
	}

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

	bursts := make([]radar.Burst, len(app.ctx.InputFiles))
	for i, path := range app.ctx.InputFiles {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open recording: %w", err)
		}
		signals, err := recording.ReadBurst(f, cfg, recording.WithFullScale(app.ctx.FullScale))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		app.logger.Debug("Recording loaded", logging.Fields{
			"file":   path,
			"chirps": len(signals),
		})

		bursts[i] = radar.Burst{
			ID:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Signals:   signals,
			Config:    cfg,
			Threshold: threshold,
			Mode:      mode,
		}
	}

	processor := radar.NewRangeProcessor(opts...)
	results, err := processor.ProcessBatch(ctx, bursts)
	if err != nil {
		return nil, fmt.Errorf("range processing failed: %w", err)
	}

	return &ProcessReport{
		Timestamp: time.Now(),
		Chirp:     describeChirp(cfg),
		Files:     app.ctx.InputFiles,
		Threshold: threshold.String(),
		Mode:      string(mode),
		Bursts:    results,
	}, nil
}

// exportBursts writes each burst to ExportDir as <id>.wav
func (app *App) exportBursts(bursts []radar.Burst) ([]string, error) {
	if err := os.MkdirAll(app.ctx.ExportDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	paths := make([]string, 0, len(bursts))
	for _, b := range bursts {
		path := filepath.Join(app.ctx.ExportDir, b.ID+".wav")
		fullScale, err := writeBurstFile(path, b, app.ctx.FullScale)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", b.ID, err)
		}

		app.logger.Debug("Burst exported", logging.Fields{
			"file":       path,
			"chirps":     len(b.Signals),
			"full_scale": fullScale,
		})
		paths = append(paths, path)
	}
	return paths, nil
}

func writeBurstFile(path string, b radar.Burst, fullScale float64) (float64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	used, err := recording.WriteBurst(f, b.Signals, recording.WithFullScale(fullScale))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return used, err
}

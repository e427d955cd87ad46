package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/apres-range/configs"
	"github.com/RyanBlaney/apres-range/internal/app"
)

var (
	benchmarkOutputFile string
	benchmarkTimeout    time.Duration
	benchmarkQuiet      bool
)

// benchmarkCmd represents the benchmark command
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [flags]",
	Short: "Measure how stacking narrows the fine range error",
	Long: `Run repeated noisy trials of a single reflector for each stack size and
report the fine range error statistics per size.

Coherent stacking of K chirps should cut the error variance by about K.
The report lists the measured variance ratio against the K=1 baseline
next to the expected ratio.

Examples:
  # Default stack sizes 1, 2, 4, 8 and 16 with 32 trials each
  apres-range benchmark

  # Heavier noise, more trials, YAML report
  apres-range benchmark --bench-noise 2 --trials 128 -o yaml

  # Custom stack sizes and reflector range
  apres-range benchmark --stack-sizes 1,10,100 --bench-range 250.3`,
	Args: cobra.NoArgs,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	f := benchmarkCmd.Flags()
	f.StringVar(&benchmarkOutputFile, "output-file", "", "write the report to a file instead of stdout")
	f.DurationVar(&benchmarkTimeout, "timeout", 10*time.Minute, "abort the benchmark after this long (0 disables)")
	f.BoolVarP(&benchmarkQuiet, "quiet", "q", false, "only log errors")

	f.IntSlice("stack-sizes", []int{1, 2, 4, 8, 16}, "stack sizes to benchmark")
	f.Int("trials", 32, "noisy trials per stack size")
	f.Float64("bench-noise", 1, "complex noise standard deviation per sample")
	f.Float64("bench-range", 60, "reflector range in meters")
	f.Uint64("bench-seed", 1, "noise generator seed")
	f.String("window", "rectangular", "window function (rectangular, hann, hamming, blackman)")
	f.Int("pad-factor", 1, "zero-pad each chirp to this many times its length before the transform")
	f.String("threshold-mode", "noise_floor", "threshold mode (absolute, noise_floor)")
	f.Float64("threshold", 10, "absolute amplitude or noise floor multiple")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	application, err := app.NewApp(&app.Context{
		OutputFile:   benchmarkOutputFile,
		OutputFormat: viper.GetString("output_format"),
		Timeout:      benchmarkTimeout,
		Verbose:      viper.GetBool("verbose"),
		Quiet:        benchmarkQuiet,
		Config:       config,
		Out:          cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	return application.RunBenchmark(context.Background())
}

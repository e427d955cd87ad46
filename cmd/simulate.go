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
	simulateScene      string
	simulateExportDir  string
	simulateFullScale  float64
	simulateOutputFile string
	simulateTimeout    time.Duration
	simulateQuiet      bool
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate [flags]",
	Short: "Synthesize chirp bursts and estimate reflector ranges",
	Long: `Synthesize deramped chirps for a reflector scene, run them through the
range pipeline and report the coarse and fine range of every detection.

The scene comes from the simulation section of the config or from a
separate YAML/JSON file given with --scene.

Examples:
  # Two-reflector reference scene with default settings
  apres-range simulate

  # Stack 16 noisy real-valued chirps per burst, four bursts
  apres-range simulate --chirps 16 --bursts 4 --noise 0.5 --real

  # Export the bursts as WAV recordings for the process command
  apres-range simulate --bursts 4 --chirps 8 --noise 0.2 --export-dir ./wav --full-scale 4

  # Pad the transform so fine ranges stay within a quarter wavelength
  apres-range simulate --pad-factor 2

  # Custom scene, Hann window, absolute threshold, JSON output
  apres-range simulate --scene layers.yaml --window hann \
    --threshold-mode absolute --threshold 0.05 -o json`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.StringVar(&simulateScene, "scene", "", "scene file with reflectors (YAML or JSON)")
	f.StringVar(&simulateExportDir, "export-dir", "", "also write each burst as a WAV recording into this directory")
	f.Float64Var(&simulateFullScale, "full-scale", 0, "amplitude mapped to WAV full scale (0 scales to each burst's peak)")
	f.StringVar(&simulateOutputFile, "output-file", "", "write the report to a file instead of stdout")
	f.DurationVar(&simulateTimeout, "timeout", 0, "abort processing after this long (0 disables)")
	f.BoolVarP(&simulateQuiet, "quiet", "q", false, "only log errors")

	f.Int("chirps", 1, "chirps per burst")
	f.Int("bursts", 1, "number of bursts")
	f.Float64("noise", 0, "complex noise standard deviation per sample")
	f.Uint64("seed", 1, "noise generator seed")
	f.Bool("real", false, "synthesize real-valued chirps")
	f.String("window", "rectangular", "window function (rectangular, hann, hamming, blackman)")
	f.Int("pad-factor", 1, "zero-pad each chirp to this many times its length before the transform")
	f.Float64("max-range", 0, "ignore detections beyond this range in meters (0 disables)")
	f.String("threshold-mode", "noise_floor", "threshold mode (absolute, noise_floor)")
	f.Float64("threshold", 10, "absolute amplitude or noise floor multiple")
	f.String("stacking", "coherent", "stacking mode (coherent, incoherent)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	application, err := app.NewApp(&app.Context{
		SceneFile:    simulateScene,
		ExportDir:    simulateExportDir,
		FullScale:    simulateFullScale,
		OutputFile:   simulateOutputFile,
		OutputFormat: viper.GetString("output_format"),
		Timeout:      simulateTimeout,
		Verbose:      viper.GetBool("verbose"),
		Quiet:        simulateQuiet,
		Config:       config,
		Out:          cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	return application.RunSimulation(context.Background())
}

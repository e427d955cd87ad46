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
	processFullScale  float64
	processOutputFile string
	processTimeout    time.Duration
	processQuiet      bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process [flags] recording.wav...",
	Short: "Estimate reflector ranges in recorded chirp bursts",
	Long: `Read deramped chirp bursts from PCM WAV files and run them through the
range pipeline. Each file is one burst of back-to-back chirps: mono files
hold real chirps, stereo files hold I and Q. The WAV sample rate must match
chirp.sampling_hz and the file must hold a whole number of chirps.

Examples:
  # Process bursts exported by the simulate command
  apres-range process --full-scale 4 wav/*.wav

  # Incoherent stacking with a Hann window, YAML report
  apres-range process --stacking incoherent --window hann -o yaml site-a.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	f := processCmd.Flags()
	f.Float64Var(&processFullScale, "full-scale", 1, "amplitude represented by WAV full scale")
	f.StringVar(&processOutputFile, "output-file", "", "write the report to a file instead of stdout")
	f.DurationVar(&processTimeout, "timeout", 0, "abort processing after this long (0 disables)")
	f.BoolVarP(&processQuiet, "quiet", "q", false, "only log errors")

	f.String("window", "rectangular", "window function (rectangular, hann, hamming, blackman)")
	f.Int("pad-factor", 1, "zero-pad each chirp to this many times its length before the transform")
	f.Float64("max-range", 0, "ignore detections beyond this range in meters (0 disables)")
	f.String("threshold-mode", "noise_floor", "threshold mode (absolute, noise_floor)")
	f.Float64("threshold", 10, "absolute amplitude or noise floor multiple")
	f.String("stacking", "coherent", "stacking mode (coherent, incoherent)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	application, err := app.NewApp(&app.Context{
		InputFiles:   args,
		FullScale:    processFullScale,
		OutputFile:   processOutputFile,
		OutputFormat: viper.GetString("output_format"),
		Timeout:      processTimeout,
		Verbose:      viper.GetBool("verbose"),
		Quiet:        processQuiet,
		Config:       config,
		Out:          cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	return application.RunProcess(context.Background())
}

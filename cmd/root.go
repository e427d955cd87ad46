package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "APRES_RANGE"

var (
	configFile   string
	verbose      bool
	logLevel     string
	logFormat    string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apres-range",
	Short: "FMCW radar range processing toolkit",
	Long: `Range processing for phase-sensitive FMCW radar (ApRES).

The pipeline turns deramped beat signals into reflector range estimates:
- Windowed DFT of each chirp with optional phase referencing
- Coarse range detection against an absolute or noise-floor threshold
- Fine range refinement from the phase of each peak bin
- Coherent and incoherent stacking of chirp bursts

Synthetic bursts drive both the simulate and benchmark commands, so the
whole chain can be exercised without field data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/apres-range/apres-range.yaml)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console",
		"log format (console, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format (table, json, yaml, csv)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "apres-range"))
		viper.AddConfigPath("/etc/apres-range")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("apres-range")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	} else if configFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", configFile, err)
		os.Exit(1)
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	return bindFlags(cmd, viper.GetViper())
}

// bindFlags binds each cobra flag to an environment variable. Command flags
// that map onto config keys are bound separately through flagKeys.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		key, mapped := flagKeys[f.Name]
		if !mapped {
			key = f.Name
		}

		// Apply the viper value to the flag when the flag is not set
		if !f.Changed && v.IsSet(key) {
			val := v.Get(key)
			if err := cmd.Flags().Set(f.Name, flagValue(val)); err != nil {
				lastErr = err
			}
		}

		if mapped {
			if err := v.BindPFlag(key, f); err != nil {
				lastErr = err
			}
		}

		if err := v.BindEnv(key, envPrefix+"_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// flagKeys maps command flags onto nested config keys
var flagKeys = map[string]string{
	"log-level":      "log_level",
	"log-format":     "log_format",
	"output":         "output_format",
	"window":         "processing.window",
	"pad-factor":     "processing.pad_factor",
	"max-range":      "processing.max_range_m",
	"threshold":      "processing.threshold.value",
	"threshold-mode": "processing.threshold.mode",
	"stacking":       "processing.stacking_mode",
	"chirps":         "simulation.chirps",
	"bursts":         "simulation.bursts",
	"noise":          "simulation.noise_stddev",
	"seed":           "simulation.seed",
	"real":           "simulation.real_signal",
	"stack-sizes":    "benchmark.stack_sizes",
	"trials":         "benchmark.trials",
	"bench-noise":    "benchmark.noise_stddev",
	"bench-range":    "benchmark.range_m",
	"bench-seed":     "benchmark.seed",
}

// flagValue renders a viper value the way pflag parses it back
func flagValue(val any) string {
	switch v := val.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprintf("%v", p)
		}
		return strings.Join(parts, ",")
	case []int:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprintf("%d", p)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%v", val)
}

// GetConfig returns the global viper instance
func GetConfig() *viper.Viper {
	return viper.GetViper()
}

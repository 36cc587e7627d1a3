// Package cli provides the command-line interface for morphorun.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cryoet-tools/morphorun/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	workDir string

	// Tool settings loaded once per invocation
	settings config.Settings

	// Logger cleanup, run after the command finishes
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "morphorun",
	Short: "Surface morphometrics pipeline runner",
	Long: `Morphorun configures, launches, and monitors the surface
morphometrics pipeline over volumetric microscopy data: segmentation to
mesh generation, curvature analysis, and distance/orientation
measurement.

Experiments live under a work directory, one subdirectory per
experiment, each holding a YAML configuration and a results directory.
The analysis stages themselves run as external scripts; morphorun fans
the per-file work out across a bounded worker pool and reports
progress.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings = config.LoadSettings()
		level := settings.LogLevel
		if verbose {
			level = slog.LevelDebug
		}

		logger, cleanup := config.SetupLogger(settings.LogFile, level)
		slog.SetDefault(logger)
		logCleanup = cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "work-dir", "w", "", "work directory holding experiments")
}

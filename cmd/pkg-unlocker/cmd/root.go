package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pkg-unlocker/internal/config"
	"github.com/oshokin/pkg-unlocker/internal/service/unlocker"
	"github.com/oshokin/pkg-unlocker/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// outputPath overrides the configured output package path.
	outputPath string
	// logLevel overrides the configured console log level.
	logLevel string

	// rootCmd represents the base command for running the unlock pipeline.
	rootCmd = &cobra.Command{
		Use:   "pkg-unlocker [source-url]",
		Short: "Rebuild a vendor installer package without its version gate",
		Long: `Download the vendor disk image, extract the installer package from it,
rewrite the version-gate threshold inside the package manifest to an
unreachable sentinel, and flatten the result back into an installable package.

All transient artifacts (mount point, downloaded archive, scratch expansion
directory) are removed on every exit path, including interruption. When the
installer package is already present in the working directory, the download
and mount steps are skipped and the existing bundle is reused.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling; cleanup still runs on interrupt.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use the source URL argument if provided, otherwise rely on config.
			var sourceURL string
			if len(args) > 0 {
				sourceURL = args[0]
			}

			options := &unlocker.Options{
				ConfigPath: configPath,
				SourceURL:  sourceURL,
				OutputPath: outputPath,
				LogLevel:   logLevel,
			}

			return unlocker.Run(ctx, options)
		},
	}
)

// Execute runs the pkg-unlocker CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "path of the rebuilt package (defaults to configuration)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "console log level (debug, info, warn, error)")
	rootCmd.SilenceUsage = true
}

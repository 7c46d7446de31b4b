// Package cmd wires the meshpack subcommands to their services.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/version"
)

// errUnknownLogLevel indicates a log level flag value outside the known set.
var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum severity written to stderr.
	logLevel string

	// rootCmd represents the base command shared by every packaging verb.
	rootCmd = &cobra.Command{
		Use:   "meshpack",
		Short: "Package, upload and publish content-addressed 3D assets.",
		Long: `Meshpack turns directories of 3D assets into content-addressed packages.

Every asset directory carries an asset.json descriptor and a thumbnail.png
preview next to its scene and texture files. Meshpack hashes each file into
a content identifier, records the result in a pack manifest, uploads new
blobs to the store and emits registry-ready descriptor records.

Identical files are stored once: blobs are keyed by content, so a texture
shared between assets is uploaded and kept a single time.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the meshpack CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "info", "minimum log level (debug, info, warn, error)")

	rootCmd.AddCommand(packCmd, uploadCmd, publishCmd, verifyCmd, fetchCmd, watchCmd)
}

// packRoot returns the positional pack root, defaulting to the current
// directory.
func packRoot(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return "."
}

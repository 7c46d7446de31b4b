package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshpack/meshpack/internal/service/pack"
)

// packCmd builds every asset under the pack root and records the manifest.
var packCmd = &cobra.Command{
	Use:   "pack [pack-root]",
	Short: "Build all assets and record the pack manifest",
	Long: `Scans every asset directory under the pack root, externalizes embedded
scene resources, computes content identifiers and writes the pack manifest.

An asset directory is any directory holding an asset.json descriptor with
at least a name, a category and one tag; a thumbnail.png preview must sit
next to it. The pack root defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		options := &pack.Options{
			ConfigPath: configPath,
			Root:       packRoot(args),
		}

		return pack.Run(ctx, options)
	},
}

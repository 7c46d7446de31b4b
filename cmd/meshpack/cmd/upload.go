package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshpack/meshpack/internal/service/upload"
)

var (
	// uploadBucket overrides the configured target bucket.
	uploadBucket string
	// uploadForce re-sends blobs the store already has.
	uploadForce bool

	// uploadCmd packs the tree and transfers its blobs into the store.
	uploadCmd = &cobra.Command{
		Use:   "upload [pack-root]",
		Short: "Pack the tree and upload new blobs to the store",
		Long: `Builds every asset under the pack root, then uploads each content blob
that the store does not hold yet.

Blobs are keyed by content identifier, so files shared between assets or
unchanged since the last run are never transferred again. Use --force to
re-send everything regardless of what the store reports.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &upload.Options{
				ConfigPath: configPath,
				Root:       packRoot(args),
				Bucket:     uploadBucket,
				Force:      uploadForce,
			}

			return upload.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	uploadCmd.Flags().StringVarP(&uploadBucket, "bucket", "b", "", "target bucket, overrides the settings file")
	uploadCmd.Flags().BoolVarP(&uploadForce, "force", "f", false, "transfer blobs even when the store already has them")
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshpack/meshpack/internal/service/publish"
)

var (
	// publishBucket overrides the configured target bucket.
	publishBucket string
	// publishForce re-sends blobs the store already has.
	publishForce bool
	// publishOutput is the directory descriptor records are written into.
	publishOutput string

	// publishCmd uploads the tree and emits registry descriptor records.
	publishCmd = &cobra.Command{
		Use:   "publish [pack-root]",
		Short: "Upload the tree and emit registry descriptor records",
		Long: `Runs a full upload of the pack root, then writes one descriptor record
per asset for registration.

Records reference blobs by their public content URLs, so they are only
written after every transfer has succeeded. By default records land in
the records directory under the pack root; --output redirects them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &publish.Options{
				ConfigPath: configPath,
				Root:       packRoot(args),
				Bucket:     publishBucket,
				Force:      publishForce,
				OutputDir:  publishOutput,
			}

			return publish.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	publishCmd.Flags().StringVarP(&publishBucket, "bucket", "b", "", "target bucket, overrides the settings file")
	publishCmd.Flags().BoolVarP(&publishForce, "force", "f", false, "transfer blobs even when the store already has them")
	publishCmd.Flags().StringVarP(&publishOutput, "output", "o", "", "directory for descriptor records")
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshpack/meshpack/internal/service/fetch"
)

var (
	// fetchAsset selects a single asset to restore.
	fetchAsset string
	// fetchDest is the directory restored assets are written into.
	fetchDest string
	// fetchBucket overrides the configured source bucket.
	fetchBucket string

	// fetchCmd restores recorded asset files from the blob store.
	fetchCmd = &cobra.Command{
		Use:   "fetch [pack-root]",
		Short: "Restore asset files from the blob store",
		Long: `Downloads the blobs recorded in the pack manifest and rebuilds the
asset file trees from them. Every restored file is checked against its
recorded content identifier before it is put in place.

By default all assets land in the restored directory under the pack
root; --asset restores a single asset and --dest redirects the output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &fetch.Options{
				ConfigPath: configPath,
				Root:       packRoot(args),
				AssetID:    fetchAsset,
				Dest:       fetchDest,
				Bucket:     fetchBucket,
			}

			return fetch.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	fetchCmd.Flags().StringVarP(&fetchAsset, "asset", "a", "", "restore only the asset with this identifier")
	fetchCmd.Flags().StringVarP(&fetchDest, "dest", "d", "", "destination directory for restored assets")
	fetchCmd.Flags().StringVarP(&fetchBucket, "bucket", "b", "", "source bucket, overrides the settings file")
}

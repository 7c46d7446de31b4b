package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshpack/meshpack/internal/service/watch"
)

var (
	// watchDebounce is the quiet period before a rebuild pass starts.
	watchDebounce time.Duration
	// watchUpload also transfers new blobs after every rebuild.
	watchUpload bool
	// watchBucket overrides the configured target bucket when uploading.
	watchBucket string
	// watchForce re-sends blobs the store already has.
	watchForce bool

	// watchCmd rebuilds the manifest whenever the asset tree changes.
	watchCmd = &cobra.Command{
		Use:   "watch [pack-root]",
		Short: "Rebuild the pack manifest whenever assets change",
		Long: `Watches the pack root and re-runs the pack workflow after every burst
of changes to payload files, thumbnails or descriptors. Exports touch
many files in quick succession, so rebuilds start only after the tree
has been quiet for the debounce period.

With --upload, each rebuild is followed by a transfer of new blobs to
the store. The command runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &watch.Options{
				ConfigPath: configPath,
				Root:       packRoot(args),
				Debounce:   watchDebounce,
				Upload:     watchUpload,
				Bucket:     watchBucket,
				Force:      watchForce,
			}

			return watch.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	watchCmd.Flags().DurationVarP(&watchDebounce, "debounce", "d", watch.DefaultDebounce, "quiet period before a rebuild starts")
	watchCmd.Flags().BoolVarP(&watchUpload, "upload", "u", false, "also upload new blobs after every rebuild")
	watchCmd.Flags().StringVarP(&watchBucket, "bucket", "b", "", "target bucket when uploading, overrides the settings file")
	watchCmd.Flags().BoolVarP(&watchForce, "force", "f", false, "transfer blobs even when the store already has them")
}

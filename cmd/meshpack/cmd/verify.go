package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshpack/meshpack/internal/service/verify"
)

var (
	// verifyRemote also checks blob presence in the store.
	verifyRemote bool
	// verifyBucket overrides the configured bucket for the remote check.
	verifyBucket string

	// verifyCmd compares the asset tree against the recorded manifest.
	verifyCmd = &cobra.Command{
		Use:   "verify [pack-root]",
		Short: "Check the asset tree against the recorded manifest",
		Long: `Re-hashes every asset under the pack root and compares the result with
the pack manifest. Missing files, changed contents, untracked files and
untracked asset directories are reported as differences.

With --remote, every recorded content identifier is also checked for
presence in the configured bucket. The command exits non-zero when any
difference is found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &verify.Options{
				ConfigPath: configPath,
				Root:       packRoot(args),
				Remote:     verifyRemote,
				Bucket:     verifyBucket,
			}

			return verify.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	verifyCmd.Flags().BoolVarP(&verifyRemote, "remote", "r", false, "also check blob presence in the store")
	verifyCmd.Flags().StringVarP(&verifyBucket, "bucket", "b", "", "bucket for the remote check, overrides the settings file")
}

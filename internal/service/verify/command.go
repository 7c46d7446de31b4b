// Package verify checks an asset tree against its recorded pack
// manifest: every recorded file must still exist with its recorded
// content identifier, and optionally every identifier must be present in
// the remote store.
package verify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/repository/packfile"
	"github.com/meshpack/meshpack/internal/service/common"
)

// Options contains inputs for the verify entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file.
	ConfigPath string
	// Root is the pack root holding the manifest and asset directories.
	Root string
	// Remote also checks every identifier's presence in the bucket.
	Remote bool
	// Bucket overrides the configured bucket for the remote check.
	Bucket string
}

// ErrVerificationFailed indicates the tree or the store diverged from
// the manifest. The differences are logged before this is returned.
var ErrVerificationFailed = errors.New("verification failed")

// Run executes the verification workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "meshpack-verify")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	repo := packfile.NewFileRepository(filepath.Join(opts.Root, packfile.Filename))

	recorded, err := repo.Load(ctx)
	if err != nil {
		return err
	}

	v := &verifier{
		root:    opts.Root,
		builder: common.ReadOnlyBuilderFromConfig(cfg),
	}

	if opts.Remote {
		bucket, err := common.ResolveBucket(opts.Bucket, cfg)
		if err != nil {
			return err
		}

		store, err := common.StoreFromConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect blob store: %w", err)
		}

		v.bucket = bucket
		v.store = store
	}

	report, err := v.Check(ctx, recorded)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	for _, difference := range report.Differences {
		logger.WarnKV(ctx, "Difference found",
			"asset_id", difference.AssetID,
			"path", difference.Path,
			"kind", difference.Kind,
			"detail", difference.Detail)
	}

	if !report.Clean() {
		return fmt.Errorf("%d differences: %w", len(report.Differences), ErrVerificationFailed)
	}

	logger.InfoKV(ctx, "Verification completed successfully",
		"assets", report.Assets,
		"files", report.Files)

	return nil
}

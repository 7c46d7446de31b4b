// Package upload packs the asset tree and transfers its contents into
// the blob store, skipping whatever is already there.
package upload

import (
	"context"
	"fmt"

	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/runlock"
	"github.com/meshpack/meshpack/internal/service/common"
	"github.com/meshpack/meshpack/internal/service/pack"
	"github.com/meshpack/meshpack/internal/uploader"
)

// Options contains inputs for the upload entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file.
	ConfigPath string
	// Root is the pack root holding asset directories.
	Root string
	// Bucket overrides the configured target bucket.
	Bucket string
	// Force transfers every blob even when it is already present.
	Force bool
}

// Run executes the upload workflow: a full pack of the tree followed by
// deduplicated transfers of every asset's contents.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "meshpack-upload")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	bucket, err := common.ResolveBucket(opts.Bucket, cfg)
	if err != nil {
		return err
	}

	lock, err := runlock.Acquire(ctx, opts.Root)
	if err != nil {
		return err
	}

	// Best-effort cleanup.
	defer func() {
		_ = lock.Release()
	}()

	packed, totals, err := Execute(ctx, cfg, opts.Root, bucket, opts.Force)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Upload completed successfully",
		"assets", len(packed.Assets),
		"bucket", bucket,
		"uploaded", totals.Uploaded,
		"skipped", totals.Skipped,
		"bytes", totals.Bytes)

	return nil
}

// Execute packs the tree and uploads every asset's contents. It is also
// the transfer half of the publish flow; the caller holds the run lock.
// Content shared between assets moves once: the existence check skips
// identifiers an earlier asset already transferred.
func Execute(ctx context.Context, cfg *config.Config, root, bucket string, force bool) (*pack.Result, *uploader.Result, error) {
	packed, err := pack.Execute(ctx, cfg, root)
	if err != nil {
		return nil, nil, fmt.Errorf("pack failed: %w", err)
	}

	store, err := common.StoreFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect blob store: %w", err)
	}

	var cache uploader.Cache

	if opened := common.CacheFromConfig(ctx, cfg); opened != nil {
		cache = opened

		// Best-effort cleanup.
		defer func() {
			_ = opened.Close()
		}()
	}

	coordinator := uploader.New(store, cache, cfg.Concurrency)
	totals := &uploader.Result{}

	for _, built := range packed.Assets {
		outcome, err := coordinator.Upload(ctx, bucket, built.Dir, built.Contents, force)
		if err != nil {
			return nil, nil, fmt.Errorf("upload %s: %w", built.ID, err)
		}

		logger.InfoKV(ctx, "Asset uploaded",
			"asset_id", built.ID,
			"unique", outcome.Unique,
			"uploaded", outcome.Uploaded,
			"skipped", outcome.Skipped,
			"bytes", outcome.Bytes)

		totals.Unique += outcome.Unique
		totals.Skipped += outcome.Skipped
		totals.Uploaded += outcome.Uploaded
		totals.Bytes += outcome.Bytes
	}

	return packed, totals, nil
}

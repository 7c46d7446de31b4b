// Package pack builds every asset under a pack root and records the
// outcome in the pack manifest.
package pack

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/domain/asset"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/repository/packfile"
	"github.com/meshpack/meshpack/internal/runlock"
	"github.com/meshpack/meshpack/internal/service/common"
)

// Options contains inputs for the pack entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file (defaults to meshpack-settings.yaml).
	ConfigPath string
	// Root is the pack root holding asset directories.
	Root string
}

// Result carries the outcome of a pack run for the flows stacked on top.
type Result struct {
	// Assets are the built and filled assets, in stable directory order.
	Assets []*asset.Asset
	// Manifest is the recorded pack manifest.
	Manifest *packfile.Manifest
}

// Run executes the pack workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "meshpack-pack")

	cfg, err := config.Load(opts.ConfigPath)
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

	result, err := Execute(ctx, cfg, opts.Root)
	if err != nil {
		return fmt.Errorf("pack failed: %w", err)
	}

	logger.InfoKV(ctx, "Pack completed successfully",
		"assets", len(result.Assets),
		"manifest", filepath.Join(opts.Root, packfile.Filename))

	return nil
}

// Execute builds and fills every asset under root and records the pack
// manifest. It is the shared core of the pack, upload and publish flows;
// the caller is expected to hold the run lock.
func Execute(ctx context.Context, cfg *config.Config, root string) (*Result, error) {
	builder := common.BuilderFromConfig(cfg)

	assets, err := builder.BuildAll(ctx, root)
	if err != nil {
		return nil, err
	}

	for _, built := range assets {
		logger.InfoKV(ctx, "Asset packaged",
			"asset_id", built.ID,
			"files", len(built.Contents),
			"entry_point", built.EntryPoint)
	}

	recorded := packfile.FromAssets(ctx, assets)

	repo := packfile.NewFileRepository(filepath.Join(root, packfile.Filename))
	if err = repo.Save(ctx, recorded); err != nil {
		return nil, err
	}

	return &Result{Assets: assets, Manifest: recorded}, nil
}

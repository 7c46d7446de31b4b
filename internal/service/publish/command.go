// Package publish runs the whole pipeline: pack the tree, upload the
// blobs and emit a validated descriptor record per asset. Records are
// written only after every transfer completed, so a published record
// never references content the store does not hold.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/manifest"
	"github.com/meshpack/meshpack/internal/runlock"
	"github.com/meshpack/meshpack/internal/service/common"
	"github.com/meshpack/meshpack/internal/service/upload"
)

// DefaultRecordsDirName is where descriptor records land under the pack
// root when no output directory is given.
const DefaultRecordsDirName = "records"

// Options contains inputs for the publish entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file.
	ConfigPath string
	// Root is the pack root holding asset directories.
	Root string
	// Bucket overrides the configured target bucket.
	Bucket string
	// Force transfers every blob even when it is already present.
	Force bool
	// OutputDir receives the descriptor records; defaults to the
	// records directory under the root.
	OutputDir string
}

// errRegistryRequired indicates the settings carry no registry identifier.
var errRegistryRequired = errors.New("registry id must be provided")

// Run executes the publish workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "meshpack-publish")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if cfg.RegistryID == "" {
		return errRegistryRequired
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

	packed, totals, err := upload.Execute(ctx, cfg, opts.Root, bucket, opts.Force)
	if err != nil {
		return err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(opts.Root, DefaultRecordsDirName)
	}

	if err = os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create records directory: %w", err)
	}

	pctx := common.PackContextFromConfig(cfg)

	for _, built := range packed.Assets {
		data, err := manifest.NewRecord(built, pctx).Encode()
		if err != nil {
			return err
		}

		path := filepath.Join(outputDir, built.ID+".json")
		if err = os.WriteFile(path, data, config.DefaultFilePermissions); err != nil {
			return fmt.Errorf("write record %s: %w", built.ID, err)
		}

		logger.InfoKV(ctx, "Record published",
			"asset_id", built.ID,
			"path", path)
	}

	logger.InfoKV(ctx, "Publish completed successfully",
		"assets", len(packed.Assets),
		"records", outputDir,
		"uploaded", totals.Uploaded,
		"skipped", totals.Skipped)

	return nil
}

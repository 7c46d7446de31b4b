// Package watch keeps the pack manifest in step with a changing asset
// tree by rebuilding it whenever payload files change.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/scan"
	"github.com/meshpack/meshpack/internal/service/common"
)

// DefaultDebounce is the quiet period after the last relevant change
// before a rebuild pass starts. Exports and texture bakes touch many
// files in bursts, so the period is generous.
const DefaultDebounce = 2 * time.Second

// Options contains inputs for the watch entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file.
	ConfigPath string
	// Root is the pack root holding asset directories.
	Root string
	// Debounce overrides the quiet period between the last change and a rebuild.
	Debounce time.Duration
	// Upload also transfers new blobs after every rebuild.
	Upload bool
	// Bucket overrides the configured target bucket when uploading.
	Bucket string
	// Force transfers every blob even when it is already present.
	Force bool
}

// Run watches the pack root and rebuilds the manifest after every burst
// of changes. It blocks until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "meshpack-watch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &watcher{
		cfg:        cfg,
		root:       opts.Root,
		classifier: scan.NewClassifier(cfg.SceneExtensions, cfg.ResourceExtensions),
		debounce:   debounce,
		upload:     opts.Upload,
		force:      opts.Force,
	}

	// The bucket is resolved once at startup so a missing setting fails
	// the command instead of every pass.
	if opts.Upload {
		w.bucket, err = common.ResolveBucket(opts.Bucket, cfg)
		if err != nil {
			return err
		}
	}

	if err = w.run(ctx); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	return nil
}

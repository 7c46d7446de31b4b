//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"

	"github.com/meshpack/meshpack/internal/blobstore"
	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/gltf"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/manifest"
	"github.com/meshpack/meshpack/internal/scan"
	"github.com/meshpack/meshpack/internal/uploadcache"
)

// ErrBucketRequired indicates no target bucket was given by flag or settings.
var ErrBucketRequired = errors.New("bucket must be provided")

// ResolveBucket prefers the flag value over the settings file.
func ResolveBucket(flagValue string, cfg *config.Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	if cfg.Bucket != "" {
		return cfg.Bucket, nil
	}

	return "", ErrBucketRequired
}

// PackContextFromConfig extracts the publication identity every asset
// build shares.
func PackContextFromConfig(cfg *config.Config) *manifest.PackContext {
	return &manifest.PackContext{
		ContentServerURL: cfg.ContentServerURL,
		ContractURI:      cfg.ContractURI,
		RegistryID:       cfg.RegistryID,
	}
}

// BuilderFromConfig assembles a manifest builder with the configured
// extension sets and the scene normalizer wired in.
func BuilderFromConfig(cfg *config.Config) *manifest.Builder {
	classifier := scan.NewClassifier(cfg.SceneExtensions, cfg.ResourceExtensions)

	return manifest.NewBuilder(
		PackContextFromConfig(cfg),
		classifier,
		manifest.NormalizerFunc(gltf.Externalize),
		cfg.Concurrency,
	)
}

// ReadOnlyBuilderFromConfig assembles a builder without a normalizer, for
// flows that must not rewrite anything in the tree.
func ReadOnlyBuilderFromConfig(cfg *config.Config) *manifest.Builder {
	classifier := scan.NewClassifier(cfg.SceneExtensions, cfg.ResourceExtensions)

	return manifest.NewBuilder(PackContextFromConfig(cfg), classifier, nil, cfg.Concurrency)
}

// StoreFromConfig connects the configured blob store.
func StoreFromConfig(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	return blobstore.NewS3(ctx, blobstore.S3Options{
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
	})
}

// CacheFromConfig opens the local upload cache, or returns nil when no
// cache directory is configured. A cache that cannot be opened is
// reported and skipped, since it only ever saves existence checks.
func CacheFromConfig(ctx context.Context, cfg *config.Config) *uploadcache.Cache {
	if cfg.CacheDir == "" {
		return nil
	}

	cache, err := uploadcache.Open(cfg.CacheDir)
	if err != nil {
		logger.WarnKV(ctx, "Upload cache unavailable",
			"dir", cfg.CacheDir,
			"error", err)

		return nil
	}

	return cache
}

package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/meshpack/meshpack/internal/cid"
	"github.com/meshpack/meshpack/internal/domain/asset"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/scan"
)

// defaultConcurrency bounds in-flight file reads when the caller does not.
const defaultConcurrency = 8

var (
	// ErrMissingThumbnail indicates an asset directory without the
	// conventional preview image.
	ErrMissingThumbnail = errors.New("thumbnail is missing")

	// ErrNoSceneFile indicates an asset whose tree holds no file the
	// classifier recognizes as a scene, so no entry point can be selected.
	ErrNoSceneFile = errors.New("no scene file found")

	// ErrNoAssets indicates a pack root without a single asset directory.
	ErrNoAssets = errors.New("no asset directories found")

	// ErrDuplicateAssetID indicates two asset directories whose names
	// collapse into the same identifier.
	ErrDuplicateAssetID = errors.New("duplicate asset identifier")
)

// Normalizer rewrites a scene file in place so embedded resources become
// standalone files next to it, and returns the names of the emitted files.
type Normalizer interface {
	Normalize(scenePath string) (emitted []string, err error)
}

// NormalizerFunc adapts a plain function to the Normalizer interface.
type NormalizerFunc func(scenePath string) ([]string, error)

// Normalize calls f.
func (f NormalizerFunc) Normalize(scenePath string) ([]string, error) {
	return f(scenePath)
}

// Builder assembles assets from their source directories.
type Builder struct {
	pack        *PackContext
	classifier  *scan.Classifier
	normalizer  Normalizer
	concurrency int
}

// NewBuilder creates a Builder. A nil classifier falls back to the default
// extension sets, a nil normalizer disables normalization and a
// non-positive concurrency falls back to defaultConcurrency.
func NewBuilder(pack *PackContext, classifier *scan.Classifier, normalizer Normalizer, concurrency int) *Builder {
	if classifier == nil {
		classifier = scan.NewClassifier(nil, nil)
	}

	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Builder{
		pack:        pack,
		classifier:  classifier,
		normalizer:  normalizer,
		concurrency: concurrency,
	}
}

// Build reads the descriptor inside dir and constructs the asset.
// Metadata invariants are checked here, so an invalid descriptor fails
// the asset before any tree walking or hashing starts.
func (b *Builder) Build(dir string) (*asset.Asset, error) {
	descriptor, err := asset.LoadDescriptor(dir)
	if err != nil {
		return nil, fmt.Errorf("load descriptor: %w", err)
	}

	return asset.New(dir, descriptor)
}

// Fill computes the content side of a built asset: the thumbnail URL, the
// contents mapping and the entry point. Scene files are normalized first
// so embedded resources can be addressed individually. Fill is
// re-runnable: building a fresh asset from the same directory and filling
// it again produces the same contents mapping.
func (b *Builder) Fill(ctx context.Context, a *asset.Asset) error {
	thumbnailID, err := cid.FromFile(filepath.Join(a.Dir, asset.ThumbnailFilename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", asset.ThumbnailFilename, ErrMissingThumbnail)
		}

		return fmt.Errorf("identify thumbnail: %w", err)
	}

	a.Thumbnail = b.pack.ContentURL(thumbnailID)

	if err = b.normalizeScenes(ctx, a); err != nil {
		return err
	}

	contents, err := b.Identify(ctx, a.Dir)
	if err != nil {
		return err
	}

	a.Contents = contents
	a.EntryPoint = ""

	names := make([]string, 0, len(contents))

	for relative := range contents {
		names = append(names, relative)
	}

	sort.Strings(names)

	// Sorted order makes the first scene file the lexicographically
	// lowest one.
	for _, relative := range names {
		if b.classifier.IsSceneFile(relative) {
			a.EntryPoint = relative

			break
		}
	}

	if a.EntryPoint == "" {
		return fmt.Errorf("%s: %w", a.ID, ErrNoSceneFile)
	}

	return nil
}

// Identify scans dir and computes content identifiers for its payload
// files without rewriting anything. It is the read-only half of Fill,
// also used to check an existing tree against a recorded manifest.
func (b *Builder) Identify(ctx context.Context, dir string) (map[string]cid.ID, error) {
	relatives, err := scan.Files(dir)
	if err != nil {
		return nil, err
	}

	resources := make([]string, 0, len(relatives))

	for _, relative := range relatives {
		if b.classifier.IsResourceFile(relative) {
			resources = append(resources, relative)
		}
	}

	return b.identifyAll(ctx, dir, resources)
}

// normalizeScenes runs the normalizer over every scene file of the asset.
// A scene that cannot be rewritten is packaged as is: the failure is
// logged and the build goes on.
func (b *Builder) normalizeScenes(ctx context.Context, a *asset.Asset) error {
	if b.normalizer == nil {
		return nil
	}

	relatives, err := scan.Files(a.Dir)
	if err != nil {
		return err
	}

	for _, relative := range relatives {
		if !b.classifier.IsSceneFile(relative) {
			continue
		}

		emitted, err := b.normalizer.Normalize(filepath.Join(a.Dir, filepath.FromSlash(relative)))
		if err != nil {
			logger.WarnKV(ctx, "Scene left as is, normalization failed",
				"asset_id", a.ID,
				"scene", relative,
				"error", err)

			continue
		}

		if len(emitted) > 0 {
			logger.InfoKV(ctx, "Externalized embedded resources",
				"asset_id", a.ID,
				"scene", relative,
				"count", len(emitted))
		}
	}

	return nil
}

// identifyAll hashes the listed files concurrently, bounded by
// b.concurrency. Every goroutine writes a distinct index of the result
// slices, so the final join is the only synchronization point.
func (b *Builder) identifyAll(ctx context.Context, dir string, relatives []string) (map[string]cid.ID, error) {
	ids := make([]cid.ID, len(relatives))
	failures := make([]error, len(relatives))
	semaphore := make(chan struct{}, b.concurrency)

	var wg sync.WaitGroup

	for index, relative := range relatives {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("identify contents: %w", ctx.Err())
		}

		wg.Add(1)

		go func(index int, relative string) {
			defer func() {
				<-semaphore

				wg.Done()
			}()

			id, err := cid.FromFile(filepath.Join(dir, filepath.FromSlash(relative)))
			if err != nil {
				failures[index] = fmt.Errorf("identify %s: %w", relative, err)

				return
			}

			ids[index] = id
		}(index, relative)
	}

	wg.Wait()

	for _, err := range failures {
		if err != nil {
			return nil, err
		}
	}

	contents := make(map[string]cid.ID, len(relatives))

	for index, relative := range relatives {
		contents[relative] = ids[index]
	}

	return contents, nil
}

// DiscoverAssets returns every directory under root holding an asset
// descriptor, sorted by path. A root that itself holds one is treated as
// a single-asset pack. Discovered assets are not descended into: an asset
// owns its whole subtree.
func DiscoverAssets(root string) ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if _, statErr := os.Stat(filepath.Join(path, asset.DescriptorFilename)); statErr != nil {
			return nil
		}

		dirs = append(dirs, path)

		return fs.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("discover assets under %s: %w", root, err)
	}

	sort.Strings(dirs)

	return dirs, nil
}

// BuildAll discovers, builds and fills every asset under root. Assets are
// processed concurrently and any failure fails the whole pack. The
// returned slice follows the sorted directory order of DiscoverAssets.
func (b *Builder) BuildAll(ctx context.Context, root string) ([]*asset.Asset, error) {
	dirs, err := DiscoverAssets(root)
	if err != nil {
		return nil, err
	}

	if len(dirs) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoAssets)
	}

	assets := make([]*asset.Asset, len(dirs))
	failures := make([]error, len(dirs))
	semaphore := make(chan struct{}, b.concurrency)

	var wg sync.WaitGroup

	for index, dir := range dirs {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("build assets: %w", ctx.Err())
		}

		wg.Add(1)

		go func(index int, dir string) {
			defer func() {
				<-semaphore

				wg.Done()
			}()

			built, err := b.Build(dir)
			if err != nil {
				failures[index] = fmt.Errorf("%s: %w", filepath.Base(dir), err)

				return
			}

			if err = b.Fill(ctx, built); err != nil {
				failures[index] = fmt.Errorf("%s: %w", built.ID, err)

				return
			}

			assets[index] = built
		}(index, dir)
	}

	wg.Wait()

	for _, err := range failures {
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]string, len(assets))

	for index, built := range assets {
		if previous, ok := seen[built.ID]; ok {
			return nil, fmt.Errorf("%s and %s: %w", previous, dirs[index], ErrDuplicateAssetID)
		}

		seen[built.ID] = dirs[index]
	}

	return assets, nil
}

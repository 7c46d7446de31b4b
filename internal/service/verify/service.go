package verify

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/meshpack/meshpack/internal/blobstore"
	"github.com/meshpack/meshpack/internal/cid"
	"github.com/meshpack/meshpack/internal/domain/asset"
	"github.com/meshpack/meshpack/internal/manifest"
	"github.com/meshpack/meshpack/internal/repository/packfile"
)

// Difference kinds reported by a verification run.
const (
	DiffAssetMissing   = "asset missing"
	DiffAssetUntracked = "asset untracked"
	DiffFileMissing    = "file missing"
	DiffFileChanged    = "file changed"
	DiffFileUntracked  = "file untracked"
	DiffRemoteMissing  = "remote missing"
)

// Difference is one divergence between the manifest and the world.
type Difference struct {
	// AssetID names the asset the difference belongs to.
	AssetID string
	// Path is the relative file path, empty for asset-level differences.
	Path string
	// Kind classifies the difference.
	Kind string
	// Detail carries extra context, such as the identifier found instead.
	Detail string
}

// Report sums up a verification run.
type Report struct {
	// Assets is the number of recorded assets checked.
	Assets int
	// Files is the number of recorded files checked.
	Files int
	// Differences lists every divergence found.
	Differences []Difference
}

// Clean reports whether the run found no differences.
func (r *Report) Clean() bool {
	return len(r.Differences) == 0
}

// add appends one difference to the report.
func (r *Report) add(assetID, path, kind, detail string) {
	r.Differences = append(r.Differences, Difference{
		AssetID: assetID,
		Path:    path,
		Kind:    kind,
		Detail:  detail,
	})
}

// verifier re-hashes the tree and compares it with the recorded pack
// manifest. It is unexported; callers should use Run, which encapsulates
// setup and difference reporting.
type verifier struct {
	root    string
	builder *manifest.Builder
	store   blobstore.Store
	bucket  string
}

// Check compares every recorded asset with the tree, and with the store
// when a remote store is configured. Differences accumulate instead of
// failing fast, so a single run reports everything that is off.
func (v *verifier) Check(ctx context.Context, recorded *packfile.Manifest) (*Report, error) {
	report := &Report{}

	dirs, err := manifest.DiscoverAssets(v.root)
	if err != nil {
		return nil, err
	}

	dirsByID := make(map[string]string, len(dirs))

	for _, dir := range dirs {
		dirsByID[asset.SlugID(filepath.Base(dir))] = dir
	}

	for _, assetID := range sortedKeys(recorded.Assets) {
		entry := recorded.Assets[assetID]
		report.Assets++

		dir, ok := dirsByID[assetID]
		if !ok {
			report.add(assetID, "", DiffAssetMissing, "no directory for this identifier")

			continue
		}

		contents, err := v.builder.Identify(ctx, dir)
		if err != nil {
			return nil, err
		}

		for _, relative := range sortedKeys(entry.Files) {
			recordedID := entry.Files[relative]
			report.Files++

			actual, ok := contents[relative]
			if !ok {
				report.add(assetID, relative, DiffFileMissing, "")

				continue
			}

			if actual.String() != recordedID {
				report.add(assetID, relative, DiffFileChanged, "now "+actual.String())
			}
		}

		for _, relative := range sortedKeys(contents) {
			if _, ok := entry.Files[relative]; !ok {
				report.add(assetID, relative, DiffFileUntracked, "")
			}
		}

		if v.store != nil {
			if err = v.checkRemote(ctx, assetID, entry, report); err != nil {
				return nil, err
			}
		}
	}

	for _, assetID := range sortedKeys(dirsByID) {
		if _, ok := recorded.Assets[assetID]; !ok {
			report.add(assetID, "", DiffAssetUntracked, dirsByID[assetID])
		}
	}

	return report, nil
}

// checkRemote confirms every recorded identifier is present in the
// bucket. Identifiers shared between files are checked once.
func (v *verifier) checkRemote(ctx context.Context, assetID string, entry packfile.AssetEntry, report *Report) error {
	unique := make(map[string]string, len(entry.Files))

	for relative, recordedID := range entry.Files {
		if existing, ok := unique[recordedID]; !ok || relative < existing {
			unique[recordedID] = relative
		}
	}

	for _, recordedID := range sortedKeys(unique) {
		exists, err := v.store.Exists(ctx, v.bucket, cid.ID(recordedID))
		if err != nil {
			return fmt.Errorf("check %s: %w", recordedID, err)
		}

		if !exists {
			report.add(assetID, unique[recordedID], DiffRemoteMissing, recordedID)
		}
	}

	return nil
}

// sortedKeys returns the map's keys in lexicographic order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))

	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

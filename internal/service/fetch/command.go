// Package fetch restores asset files from the blob store using the
// recorded pack manifest, verifying every payload against its content
// identifier before it lands on disk.
package fetch

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/meshpack/meshpack/internal/blobstore"
	"github.com/meshpack/meshpack/internal/cid"
	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/repository/packfile"
	"github.com/meshpack/meshpack/internal/service/common"

	// Ensure SHA256 is available for payload verification.
	_ "crypto/sha256"
)

const (
	// DefaultRestoreDirName receives restored assets under the pack root
	// when no destination is given.
	DefaultRestoreDirName = "restored"

	// restoredFileMode is applied to restored payload files.
	restoredFileMode os.FileMode = 0o644
)

// Options contains inputs for the fetch entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file.
	ConfigPath string
	// Root is the pack root holding the manifest.
	Root string
	// AssetID restores a single asset; empty restores all of them.
	AssetID string
	// Dest is the directory restored assets are written into; defaults
	// to the restored directory under the root.
	Dest string
	// Bucket overrides the configured source bucket.
	Bucket string
}

// errAssetNotRecorded indicates the requested asset is not in the manifest.
var errAssetNotRecorded = errors.New("asset not recorded in manifest")

// Run executes the fetch workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "meshpack-fetch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	bucket, err := common.ResolveBucket(opts.Bucket, cfg)
	if err != nil {
		return err
	}

	repo := packfile.NewFileRepository(filepath.Join(opts.Root, packfile.Filename))

	recorded, err := repo.Load(ctx)
	if err != nil {
		return err
	}

	var assetIDs []string

	if opts.AssetID != "" {
		if _, ok := recorded.Assets[opts.AssetID]; !ok {
			return fmt.Errorf("%s: %w", opts.AssetID, errAssetNotRecorded)
		}

		assetIDs = append(assetIDs, opts.AssetID)
	} else {
		for assetID := range recorded.Assets {
			assetIDs = append(assetIDs, assetID)
		}

		sort.Strings(assetIDs)
	}

	dest := opts.Dest
	if dest == "" {
		dest = filepath.Join(opts.Root, DefaultRestoreDirName)
	}

	store, err := common.StoreFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect blob store: %w", err)
	}

	f := &fetcher{
		store:  store,
		bucket: bucket,
		dest:   dest,
	}

	restored := 0

	for _, assetID := range assetIDs {
		count, err := f.restoreAsset(ctx, assetID, recorded.Assets[assetID])
		if err != nil {
			return fmt.Errorf("restore %s: %w", assetID, err)
		}

		restored += count
	}

	logger.InfoKV(ctx, "Fetch completed successfully",
		"assets", len(assetIDs),
		"files", restored,
		"dest", dest)

	return nil
}

// fetcher restores recorded files from the blob store. It is unexported;
// callers should use Run, which encapsulates setup and asset selection.
type fetcher struct {
	store  blobstore.Store
	bucket string
	dest   string
}

// restoreAsset downloads every recorded file of one asset into the
// destination, verifying each payload against its identifier before the
// file replaces anything.
func (f *fetcher) restoreAsset(ctx context.Context, assetID string, entry packfile.AssetEntry) (int, error) {
	relatives := make([]string, 0, len(entry.Files))

	for relative := range entry.Files {
		relatives = append(relatives, relative)
	}

	sort.Strings(relatives)

	count := 0

	for _, relative := range relatives {
		recordedID := cid.ID(entry.Files[relative])

		data, err := f.store.Get(ctx, f.bucket, recordedID)
		if err != nil {
			return count, fmt.Errorf("get %s: %w", relative, err)
		}

		checksum, err := recordedID.Digest()
		if err != nil {
			return count, fmt.Errorf("decode identifier %s: %w", recordedID, err)
		}

		target := filepath.Join(f.dest, assetID, filepath.FromSlash(relative))
		if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return count, fmt.Errorf("create %s: %w", filepath.Dir(target), err)
		}

		options := goupdate.Options{
			TargetPath: target,
			TargetMode: restoredFileMode,
			Checksum:   checksum,
			Hash:       crypto.SHA256,
		}

		if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
			return count, fmt.Errorf("write %s: %w", relative, err)
		}

		// go-update keeps the replaced file around; we do not need it.
		oldTarget := target + ".old"
		if _, err = os.Stat(oldTarget); err == nil {
			_ = os.Remove(oldTarget)
		}

		logger.InfoKV(ctx, "Restored file",
			"asset_id", assetID,
			"path", relative,
			"bytes", len(data))

		count++
	}

	return count, nil
}

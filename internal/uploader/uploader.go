package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/meshpack/meshpack/internal/blobstore"
	"github.com/meshpack/meshpack/internal/cid"
	"github.com/meshpack/meshpack/internal/logger"
)

// defaultConcurrency bounds in-flight transfers when the caller does not.
const defaultConcurrency = 8

// Cache remembers identifiers already seen in the store, saving repeat
// existence checks across runs. A stale or broken cache only costs extra
// checks, never correctness, so all its errors are non-fatal.
type Cache interface {
	// Has reports whether the identifier was seen in the bucket before.
	Has(bucket string, id cid.ID) (bool, error)

	// Mark records that the identifier is present in the bucket.
	Mark(bucket string, id cid.ID) error
}

// Coordinator uploads the contents of filled assets. The cache is
// optional: with a nil cache every identifier is checked remotely.
type Coordinator struct {
	store       blobstore.Store
	cache       Cache
	concurrency int
}

// Result sums up one upload run.
type Result struct {
	// Unique is the number of distinct identifiers in the request.
	Unique int
	// Skipped is how many of them were already present.
	Skipped int
	// Uploaded is how many blobs were transferred.
	Uploaded int
	// Bytes is the total transferred payload size.
	Bytes int64
}

// New creates a Coordinator. A non-positive concurrency falls back to
// defaultConcurrency.
func New(store blobstore.Store, cache Cache, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Coordinator{
		store:       store,
		cache:       cache,
		concurrency: concurrency,
	}
}

// Upload transfers every distinct content identifier in contents that the
// bucket does not already hold. Identical content under several paths is
// read from the lexicographically lowest one and transferred once. With
// force set, cache and existence checks are bypassed and every identifier
// is put unconditionally; rewriting identical content is a no-op for the
// store. The first failure fails the whole call, and retrying is safe:
// identifiers that made it are skipped the next time around.
func (c *Coordinator) Upload(ctx context.Context, bucket, baseDir string, contents map[string]cid.ID, force bool) (*Result, error) {
	sourceByID := make(map[cid.ID]string, len(contents))

	for relative, id := range contents {
		if existing, ok := sourceByID[id]; !ok || relative < existing {
			sourceByID[id] = relative
		}
	}

	ids := make([]cid.ID, 0, len(sourceByID))

	for id := range sourceByID {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	type outcome struct {
		uploaded bool
		bytes    int64
		err      error
	}

	outcomes := make([]outcome, len(ids))
	semaphore := make(chan struct{}, c.concurrency)

	var wg sync.WaitGroup

	for index, id := range ids {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("upload contents: %w", ctx.Err())
		}

		wg.Add(1)

		go func(index int, id cid.ID) {
			defer func() {
				<-semaphore

				wg.Done()
			}()

			uploaded, transferred, err := c.uploadOne(ctx, bucket, baseDir, sourceByID[id], id, force)
			outcomes[index] = outcome{uploaded: uploaded, bytes: transferred, err: err}
		}(index, id)
	}

	wg.Wait()

	result := &Result{Unique: len(ids)}

	for _, o := range outcomes {
		if o.err != nil {
			return nil, o.err
		}

		if o.uploaded {
			result.Uploaded++
			result.Bytes += o.bytes
		} else {
			result.Skipped++
		}
	}

	return result, nil
}

// uploadOne checks a single identifier and transfers it when missing.
// It reports whether a transfer happened and how many bytes moved.
func (c *Coordinator) uploadOne(ctx context.Context, bucket, baseDir, relative string, id cid.ID, force bool) (bool, int64, error) {
	if !force {
		present, err := c.cachedOrRemote(ctx, bucket, id)
		if err != nil {
			return false, 0, err
		}

		if present {
			logger.DebugKV(ctx, "Blob already present",
				"cid", id,
				"path", relative)

			return false, 0, nil
		}
	}

	data, err := os.ReadFile(filepath.Clean(filepath.Join(baseDir, filepath.FromSlash(relative))))
	if err != nil {
		return false, 0, fmt.Errorf("read %s: %w", relative, err)
	}

	contentType := blobstore.DetectContentType(relative, data)

	if err = c.store.Put(ctx, bucket, id, contentType, data); err != nil {
		return false, 0, fmt.Errorf("put %s: %w", relative, err)
	}

	c.remember(ctx, bucket, id)

	logger.InfoKV(ctx, "Uploaded blob",
		"cid", id,
		"path", relative,
		"bytes", len(data),
		"content_type", contentType)

	return true, int64(len(data)), nil
}

// cachedOrRemote consults the cache first and falls back to a remote
// existence check, recording a remote hit for the next run.
func (c *Coordinator) cachedOrRemote(ctx context.Context, bucket string, id cid.ID) (bool, error) {
	if c.cache != nil {
		present, err := c.cache.Has(bucket, id)
		if err != nil {
			logger.WarnKV(ctx, "Upload cache read failed",
				"cid", id,
				"error", err)
		} else if present {
			return true, nil
		}
	}

	exists, err := c.store.Exists(ctx, bucket, id)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", id, err)
	}

	if exists {
		c.remember(ctx, bucket, id)
	}

	return exists, nil
}

// remember marks an identifier as present, best-effort.
func (c *Coordinator) remember(ctx context.Context, bucket string, id cid.ID) {
	if c.cache == nil {
		return
	}

	if err := c.cache.Mark(bucket, id); err != nil {
		logger.WarnKV(ctx, "Upload cache write failed",
			"cid", id,
			"error", err)
	}
}

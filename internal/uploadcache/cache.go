// Package uploadcache remembers which blobs were already uploaded.
//
// The cache is a local badger database keyed by bucket and content
// identifier. It only ever saves remote existence checks: a stale or deleted
// cache costs extra HEAD requests, never correctness, because the upload
// coordinator still consults the store for anything the cache does not know.
package uploadcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/meshpack/meshpack/internal/cid"
)

// Cache is a badger-backed set of uploaded (bucket, identifier) pairs.
type Cache struct {
	db *badger.DB
}

// Open creates or opens the cache database at dir.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open upload cache: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Has reports whether the blob was recorded as uploaded.
func (c *Cache) Has(bucket string, id cid.ID) (bool, error) {
	var found bool

	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(cacheKey(bucket, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		found = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read upload cache: %w", err)
	}

	return found, nil
}

// Mark records the blob as uploaded, stamping the current time.
func (c *Cache) Mark(bucket string, id cid.ID) error {
	stamp := make([]byte, 8)
	binary.BigEndian.PutUint64(stamp, uint64(time.Now().Unix()))

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(bucket, id), stamp)
	})
	if err != nil {
		return fmt.Errorf("write upload cache: %w", err)
	}

	return nil
}

// MarkedAt returns the time a blob was recorded, or zero when absent.
func (c *Cache) MarkedAt(bucket string, id cid.ID) (time.Time, error) {
	var marked time.Time

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(bucket, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				marked = time.Unix(int64(binary.BigEndian.Uint64(val)), 0)
			}

			return nil
		})
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("read upload cache: %w", err)
	}

	return marked, nil
}

func cacheKey(bucket string, id cid.ID) []byte {
	return []byte(bucket + "/" + id.String())
}

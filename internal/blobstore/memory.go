package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshpack/meshpack/internal/cid"
)

// Memory is an in-process Store for tests and offline dry runs.
type Memory struct {
	mu       sync.RWMutex
	objects  map[string]memoryObject
	putCalls int
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

// Exists reports whether the blob is present.
func (m *Memory) Exists(_ context.Context, bucket string, id cid.ID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[objectKey(bucket, id)]

	return ok, nil
}

// Put stores a copy of the blob.
func (m *Memory) Put(_ context.Context, bucket string, id cid.ID, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putCalls++
	m.objects[objectKey(bucket, id)] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
	}

	return nil
}

// Get returns a copy of the blob's bytes, or ErrNotFound.
func (m *Memory) Get(_ context.Context, bucket string, id cid.ID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	object, ok := m.objects[objectKey(bucket, id)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, id, ErrNotFound)
	}

	return append([]byte(nil), object.data...), nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}

// PutCalls returns how many puts the store has served; tests use it to prove
// that re-runs transfer nothing.
func (m *Memory) PutCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.putCalls
}

// ContentType returns the media type recorded for a stored blob.
func (m *Memory) ContentType(bucket string, id cid.ID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.objects[objectKey(bucket, id)].contentType
}

func objectKey(bucket string, id cid.ID) string {
	return bucket + "/" + id.String()
}

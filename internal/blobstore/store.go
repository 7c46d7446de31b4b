package blobstore

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/meshpack/meshpack/internal/cid"
)

// DefaultContentType is used when no better media type can be determined.
const DefaultContentType = "application/octet-stream"

// ErrNotFound indicates the requested blob does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// Store is the remote home of content-addressed blobs. Content behind an
// identifier is immutable, so putting the same identifier twice is a
// harmless overwrite and existence is a safe dedup check.
type Store interface {
	// Exists reports whether the blob is already present.
	Exists(ctx context.Context, bucket string, id cid.ID) (bool, error)

	// Put stores the blob under its identifier with the given media type.
	Put(ctx context.Context, bucket string, id cid.ID, contentType string, data []byte) error

	// Get returns the blob's bytes, or ErrNotFound.
	Get(ctx context.Context, bucket string, id cid.ID) ([]byte, error)
}

// contentTypesByExtension covers the model formats the standard library's
// extension table does not know about.
var contentTypesByExtension = map[string]string{
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".ktx2": "image/ktx2",
	".bin":  DefaultContentType,
}

// DetectContentType resolves a blob's media type from its original file name,
// sniffing the content only when the extension says nothing.
func DetectContentType(name string, data []byte) string {
	extension := strings.ToLower(filepath.Ext(name))
	if extension != "" {
		if byTable, ok := contentTypesByExtension[extension]; ok {
			return byTable
		}

		if byExtension := mime.TypeByExtension(extension); byExtension != "" {
			return byExtension
		}
	}

	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}

	return DefaultContentType
}

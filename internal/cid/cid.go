// Package cid derives deterministic content identifiers for asset files.
//
// An identifier is a pure function of a blob's bytes, so identical files
// collapse to a single identifier regardless of their path or name. The
// identifier doubles as the blob's object key in the remote store, which is
// what makes deduplicated uploads possible.
package cid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EncodedLength is the length of an identifier's textual form.
const EncodedLength = sha256.Size * 2

// ID is the lowercase hex SHA-256 digest of a blob's bytes.
type ID string

// FromBytes returns the identifier of the given bytes.
func FromBytes(data []byte) ID {
	sum := sha256.Sum256(data)

	return ID(hex.EncodeToString(sum[:]))
}

// FromReader returns the identifier of everything readable from r.
func FromReader(r io.Reader) (ID, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("hash contents: %w", err)
	}

	return ID(hex.EncodeToString(hasher.Sum(nil))), nil
}

// FromFile returns the identifier of the file's contents.
func FromFile(path string) (ID, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	// Best-effort cleanup.
	defer func() {
		_ = file.Close()
	}()

	return FromReader(file)
}

// String returns the textual form of the identifier.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// Valid reports whether the identifier has the expected shape.
func (id ID) Valid() bool {
	if len(id) != EncodedLength {
		return false
	}

	_, err := hex.DecodeString(string(id))

	return err == nil
}

// Digest returns the raw digest bytes behind the identifier.
func (id ID) Digest() ([]byte, error) {
	raw, err := hex.DecodeString(string(id))
	if err != nil {
		return nil, fmt.Errorf("decode identifier: %w", err)
	}

	return raw, nil
}

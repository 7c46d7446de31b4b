package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meshpack/meshpack/internal/cid"
)

const (
	// DescriptorFilename is the metadata file expected in every asset directory.
	DescriptorFilename = "asset.json"

	// ThumbnailFilename is the preview image expected in every asset directory.
	ThumbnailFilename = "thumbnail.png"
)

// ErrInvalidDescriptor indicates author-provided metadata that violates the
// asset invariants. It is returned before any tree walking or hashing starts.
var ErrInvalidDescriptor = errors.New("invalid asset descriptor")

// Descriptor is the author-provided metadata read from asset.json.
type Descriptor struct {
	// Name is the human-readable asset name.
	Name string `json:"name"`
	// Description is optional free-form text about the asset.
	Description string `json:"description,omitempty"`
	// Category is the single classification bucket the asset belongs to.
	Category string `json:"category"`
	// Tags are searchable labels; at least one is required.
	Tags []string `json:"tags"`
	// Variations name alternative looks of the same asset.
	Variations []string `json:"variations,omitempty"`
}

// Validate checks the descriptor invariants: name, category and at least one
// non-blank tag are required.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidDescriptor)
	}

	if strings.TrimSpace(d.Category) == "" {
		return fmt.Errorf("category is required: %w", ErrInvalidDescriptor)
	}

	if len(d.Tags) == 0 {
		return fmt.Errorf("at least one tag is required: %w", ErrInvalidDescriptor)
	}

	for _, tag := range d.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("blank tag: %w", ErrInvalidDescriptor)
		}
	}

	return nil
}

// Asset is a single packaged asset rooted at a source directory.
type Asset struct {
	// ID is the stable identifier derived from the source directory name.
	ID string
	// Name is the human-readable asset name.
	Name string
	// Description is optional free-form text about the asset.
	Description string
	// Category is the single classification bucket the asset belongs to.
	Category string
	// Tags are searchable labels.
	Tags []string
	// Variations name alternative looks of the same asset.
	Variations []string
	// Thumbnail is the public URL of the preview image, set during fill.
	Thumbnail string
	// EntryPoint is the relative path of the scene to load first, set during fill.
	EntryPoint string
	// Contents maps relative file paths to their content identifiers, set during fill.
	Contents map[string]cid.ID
	// Dir is the absolute source directory; never serialized.
	Dir string
}

// New builds an Asset from its source directory and descriptor. Metadata
// invariants are checked here, before any tree I/O happens.
func New(dir string, descriptor *Descriptor) (*Asset, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	absolute, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	return &Asset{
		ID:          SlugID(filepath.Base(absolute)),
		Name:        descriptor.Name,
		Description: descriptor.Description,
		Category:    descriptor.Category,
		Tags:        append([]string(nil), descriptor.Tags...),
		Variations:  append([]string(nil), descriptor.Variations...),
		Dir:         absolute,
	}, nil
}

// LoadDescriptor reads and decodes the asset.json inside dir.
func LoadDescriptor(dir string) (*Descriptor, error) {
	contents, err := os.ReadFile(filepath.Clean(filepath.Join(dir, DescriptorFilename)))
	if err != nil {
		return nil, err
	}

	var descriptor Descriptor
	if err = json.Unmarshal(contents, &descriptor); err != nil {
		return nil, fmt.Errorf("decode %s: %w", DescriptorFilename, err)
	}

	return &descriptor, nil
}

// SlugID converts a directory name into the asset's stable identifier.
// The result is a pure function of the name: lowercase, with runs of
// non-alphanumeric characters collapsed into single dashes.
func SlugID(name string) string {
	var builder strings.Builder

	pendingDash := false

	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		isAlphanumeric := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlphanumeric {
			pendingDash = builder.Len() > 0
			continue
		}

		if pendingDash {
			builder.WriteByte('-')

			pendingDash = false
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

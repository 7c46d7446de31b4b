package manifest

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/meshpack/meshpack/internal/domain/asset"
	"github.com/meshpack/meshpack/internal/schema"
)

// Trait types surfaced on descriptor records.
const (
	TraitCategory  = "category"
	TraitTag       = "tag"
	TraitVariation = "variation"
)

// Trait is one classification entry on a descriptor record.
type Trait struct {
	Type  string `json:"trait_type"`
	Value string `json:"value"`
}

// FileRef ties a file's relative path to its content identifier and the
// public URL it is served from.
type FileRef struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
	URL  string `json:"url"`
}

// Record is the descriptor record published for a filled asset.
type Record struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ID          string    `json:"id"`
	Image       string    `json:"image"`
	URL         string    `json:"url"`
	ExternalURL string    `json:"external_url,omitempty"`
	Files       []FileRef `json:"files"`
	Owner       string    `json:"owner"`
	Registry    string    `json:"registry"`
	Traits      []Trait   `json:"traits"`
}

// NewRecord transforms a filled asset into its descriptor record. The
// asset is only read, never mutated. Calling this on an asset that has
// not been filled produces a record with no file references, which Encode
// rejects.
func NewRecord(a *asset.Asset, pack *PackContext) *Record {
	names := make([]string, 0, len(a.Contents))

	for relative := range a.Contents {
		names = append(names, relative)
	}

	sort.Strings(names)

	files := make([]FileRef, 0, len(names))

	for _, relative := range names {
		id := a.Contents[relative]

		files = append(files, FileRef{
			Name: relative,
			CID:  id.String(),
			URL:  pack.ContentURL(id),
		})
	}

	traits := make([]Trait, 0, 1+len(a.Tags)+len(a.Variations))
	traits = append(traits, Trait{Type: TraitCategory, Value: a.Category})

	for _, tag := range a.Tags {
		traits = append(traits, Trait{Type: TraitTag, Value: tag})
	}

	for _, variation := range a.Variations {
		traits = append(traits, Trait{Type: TraitVariation, Value: variation})
	}

	return &Record{
		Name:        a.Name,
		Description: a.Description,
		ID:          a.ID,
		Image:       a.Thumbnail,
		URL:         pack.ContentURL(a.Contents[a.EntryPoint]),
		ExternalURL: pack.ExternalURL(a.ID),
		Files:       files,
		// Ownership is assigned by the registry after publication.
		Owner:    "",
		Registry: pack.RegistryID,
		Traits:   traits,
	}
}

// Encode marshals the record and checks it against the embedded schema.
// A record that fails validation is never handed back to the caller.
func (r *Record) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", r.ID, err)
	}

	if err = schema.Validate(schema.KindRecord, data); err != nil {
		return nil, fmt.Errorf("record %s: %w", r.ID, err)
	}

	return data, nil
}

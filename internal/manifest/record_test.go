package manifest

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshpack/meshpack/internal/cid"
	"github.com/meshpack/meshpack/internal/domain/asset"
	"github.com/meshpack/meshpack/internal/gltf"
	"github.com/meshpack/meshpack/internal/schema"
)

// filledChair returns a filled asset without touching the filesystem.
func filledChair() *asset.Asset {
	thumbnailID := cid.FromBytes([]byte("thumbnail bytes"))

	return &asset.Asset{
		ID:          "wooden-chair",
		Name:        "Wooden Chair",
		Description: "A chair made of wood.",
		Category:    "furniture",
		Tags:        []string{"chair", "wood"},
		Variations:  []string{"oak"},
		Thumbnail:   "https://cdn.example.com/content/" + thumbnailID.String(),
		EntryPoint:  "model.glb",
		Contents: map[string]cid.ID{
			"model.glb":             cid.FromBytes([]byte("model bytes")),
			"wood.png":              cid.FromBytes([]byte("texture bytes")),
			asset.ThumbnailFilename: thumbnailID,
		},
	}
}

// TestPackContextURLs checks blob and collection URL assembly, including
// trailing slash handling on the configured bases.
func TestPackContextURLs(t *testing.T) {
	t.Parallel()

	id := cid.FromBytes([]byte("content"))

	pack := &PackContext{
		ContentServerURL: "https://cdn.example.com/content/",
		ContractURI:      "https://market.example.com/collections/",
	}

	require.Equal(t, "https://cdn.example.com/content/"+id.String(), pack.ContentURL(id))
	require.Equal(t, "https://market.example.com/collections/wooden-chair", pack.ExternalURL("wooden-chair"))

	pack.ContractURI = ""
	require.Empty(t, pack.ExternalURL("wooden-chair"))
}

// TestNewRecordShape checks every field of the produced record, including
// file ordering and trait composition.
func TestNewRecordShape(t *testing.T) {
	t.Parallel()

	built := filledChair()

	pack := &PackContext{
		ContentServerURL: "https://cdn.example.com/content",
		ContractURI:      "https://market.example.com/collections",
		RegistryID:       "registry-1",
	}

	record := NewRecord(built, pack)

	require.Equal(t, "Wooden Chair", record.Name)
	require.Equal(t, "A chair made of wood.", record.Description)
	require.Equal(t, "wooden-chair", record.ID)
	require.Equal(t, built.Thumbnail, record.Image)
	require.Equal(t, pack.ContentURL(built.Contents["model.glb"]), record.URL)
	require.Equal(t, "https://market.example.com/collections/wooden-chair", record.ExternalURL)
	require.Empty(t, record.Owner)
	require.Equal(t, "registry-1", record.Registry)

	require.Equal(t, []FileRef{
		{
			Name: "model.glb",
			CID:  built.Contents["model.glb"].String(),
			URL:  pack.ContentURL(built.Contents["model.glb"]),
		},
		{
			Name: asset.ThumbnailFilename,
			CID:  built.Contents[asset.ThumbnailFilename].String(),
			URL:  pack.ContentURL(built.Contents[asset.ThumbnailFilename]),
		},
		{
			Name: "wood.png",
			CID:  built.Contents["wood.png"].String(),
			URL:  pack.ContentURL(built.Contents["wood.png"]),
		},
	}, record.Files)

	require.Equal(t, []Trait{
		{Type: TraitCategory, Value: "furniture"},
		{Type: TraitTag, Value: "chair"},
		{Type: TraitTag, Value: "wood"},
		{Type: TraitVariation, Value: "oak"},
	}, record.Traits)
}

// TestRecordEncodeValidates checks that a complete record passes the
// embedded schema and omits the external link when none is configured.
func TestRecordEncodeValidates(t *testing.T) {
	t.Parallel()

	pack := &PackContext{
		ContentServerURL: "https://cdn.example.com/content",
		RegistryID:       "registry-1",
	}

	data, err := NewRecord(filledChair(), pack).Encode()
	require.NoError(t, err)

	var decoded map[string]any

	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "wooden-chair", decoded["id"])
	require.NotContains(t, decoded, "external_url")
}

// TestRecordEncodeRejectsMissingRegistry checks that schema validation
// catches an empty registry identifier.
func TestRecordEncodeRejectsMissingRegistry(t *testing.T) {
	t.Parallel()

	pack := &PackContext{ContentServerURL: "https://cdn.example.com/content"}

	_, err := NewRecord(filledChair(), pack).Encode()
	require.ErrorIs(t, err, schema.ErrInvalid)
}

// TestRecordEncodeRejectsUnfilledAsset checks that a record built from an
// asset that was never filled cannot be encoded.
func TestRecordEncodeRejectsUnfilledAsset(t *testing.T) {
	t.Parallel()

	built, err := asset.New(t.TempDir(), &asset.Descriptor{
		Name:     "Chair",
		Category: "furniture",
		Tags:     []string{"chair"},
	})
	require.NoError(t, err)

	pack := &PackContext{
		ContentServerURL: "https://cdn.example.com/content",
		RegistryID:       "registry-1",
	}

	_, err = NewRecord(built, pack).Encode()
	require.ErrorIs(t, err, schema.ErrInvalid)
}

// TestChairPackaging replays the canonical scenario: a chair directory
// with a descriptor, a thumbnail and a scene carrying one embedded
// texture ends up as a validated record with one category trait and one
// trait per tag.
func TestChairPackaging(t *testing.T) {
	t.Parallel()

	pack := &PackContext{
		ContentServerURL: "https://cdn.example.com/content",
		RegistryID:       "registry-1",
	}
	builder := NewBuilder(pack, nil, NormalizerFunc(gltf.Externalize), 2)

	dir := writeAssetTree(t, t.TempDir(), "chair", chairDescriptor(), map[string][]byte{
		asset.ThumbnailFilename: []byte("thumbnail bytes"),
	})
	writeEmbeddedTextureScene(t, filepath.Join(dir, "model.glb"))

	built, err := builder.Build(dir)
	require.NoError(t, err)

	require.NoError(t, builder.Fill(context.Background(), built))

	require.GreaterOrEqual(t, len(built.Contents), 2)
	require.Equal(t, pack.ContentURL(built.Contents[asset.ThumbnailFilename]), built.Thumbnail)
	require.Equal(t, "model.glb", built.EntryPoint)

	record := NewRecord(built, pack)
	require.Len(t, record.Traits, 3)
	require.Equal(t, Trait{Type: TraitCategory, Value: "furniture"}, record.Traits[0])

	_, err = record.Encode()
	require.NoError(t, err)
}

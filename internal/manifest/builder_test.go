package manifest

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshpack/meshpack/internal/cid"
	"github.com/meshpack/meshpack/internal/domain/asset"
	"github.com/meshpack/meshpack/internal/gltf"
)

// chairDescriptor returns a valid descriptor for the test asset.
func chairDescriptor() map[string]any {
	return map[string]any{
		"name":     "Chair",
		"category": "furniture",
		"tags":     []string{"chair", "wood"},
	}
}

// writeAssetTree lays out an asset directory under root and returns its path.
func writeAssetTree(t *testing.T, root, name string, descriptor map[string]any, files map[string][]byte) string {
	t.Helper()

	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	encoded, err := json.Marshal(descriptor)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, asset.DescriptorFilename), encoded, 0o600))

	for relative, contents := range files {
		path := filepath.Join(dir, filepath.FromSlash(relative))

		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, contents, 0o600))
	}

	return dir
}

// writeEmbeddedTextureScene writes a binary scene container at path whose
// single image lives in the binary chunk, and returns the embedded payload.
func writeEmbeddedTextureScene(t *testing.T, path string) []byte {
	t.Helper()

	payload := []byte{0x89, 0x50, 0x4E, 0x47, 1, 2, 3, 4}

	document := map[string]any{
		"asset":   map[string]any{"version": "2.0"},
		"buffers": []any{map[string]any{"byteLength": len(payload)}},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": len(payload)},
		},
		"images": []any{
			map[string]any{"bufferView": 0, "mimeType": "image/png", "name": "wood_diffuse"},
		},
	}

	encoded, err := json.Marshal(document)
	require.NoError(t, err)

	for len(encoded)%4 != 0 {
		encoded = append(encoded, ' ')
	}

	bin := append([]byte(nil), payload...)
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	container := binary.LittleEndian.AppendUint32(nil, 0x46546C67)
	container = binary.LittleEndian.AppendUint32(container, 2)
	container = binary.LittleEndian.AppendUint32(container, uint32(12+8+len(encoded)+8+len(bin)))
	container = binary.LittleEndian.AppendUint32(container, uint32(len(encoded)))
	container = binary.LittleEndian.AppendUint32(container, 0x4E4F534A)
	container = append(container, encoded...)
	container = binary.LittleEndian.AppendUint32(container, uint32(len(bin)))
	container = binary.LittleEndian.AppendUint32(container, 0x004E4942)
	container = append(container, bin...)

	require.NoError(t, os.WriteFile(path, container, 0o600))

	return payload
}

// TestBuilderBuildFailsWithoutDescriptor checks that a directory without
// asset.json cannot be built.
func TestBuilderBuildFailsWithoutDescriptor(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(&PackContext{ContentServerURL: "https://cdn.example.com"}, nil, nil, 0)

	_, err := builder.Build(t.TempDir())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestBuilderFillComputesContents checks the happy path: every payload
// file is identified, the entry point and thumbnail are set, and the
// descriptor file itself stays out of the contents mapping.
func TestBuilderFillComputesContents(t *testing.T) {
	t.Parallel()

	pack := &PackContext{ContentServerURL: "https://cdn.example.com/content"}
	builder := NewBuilder(pack, nil, nil, 0)

	model := []byte("model bytes")
	texture := []byte("texture bytes")
	thumbnail := []byte("thumbnail bytes")

	dir := writeAssetTree(t, t.TempDir(), "Wooden Chair", chairDescriptor(), map[string][]byte{
		"model.glb":             model,
		"textures/wood.png":     texture,
		asset.ThumbnailFilename: thumbnail,
	})

	built, err := builder.Build(dir)
	require.NoError(t, err)

	require.NoError(t, builder.Fill(context.Background(), built))

	require.Equal(t, "model.glb", built.EntryPoint)
	require.Equal(t, pack.ContentURL(cid.FromBytes(thumbnail)), built.Thumbnail)
	require.Equal(t, map[string]cid.ID{
		"model.glb":             cid.FromBytes(model),
		"textures/wood.png":     cid.FromBytes(texture),
		asset.ThumbnailFilename: cid.FromBytes(thumbnail),
	}, built.Contents)
}

// TestBuilderFillMissingThumbnailIsFatal checks that an asset without the
// conventional preview image fails the whole fill.
func TestBuilderFillMissingThumbnailIsFatal(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(&PackContext{ContentServerURL: "https://cdn.example.com"}, nil, nil, 0)

	dir := writeAssetTree(t, t.TempDir(), "chair", chairDescriptor(), map[string][]byte{
		"model.glb": []byte("model bytes"),
	})

	built, err := builder.Build(dir)
	require.NoError(t, err)

	require.ErrorIs(t, builder.Fill(context.Background(), built), ErrMissingThumbnail)
}

// TestBuilderFillNoSceneIsFatal checks that an asset without a single
// scene file has no entry point and fails the fill.
func TestBuilderFillNoSceneIsFatal(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(&PackContext{ContentServerURL: "https://cdn.example.com"}, nil, nil, 0)

	dir := writeAssetTree(t, t.TempDir(), "chair", chairDescriptor(), map[string][]byte{
		"wood.png":              []byte("texture bytes"),
		asset.ThumbnailFilename: []byte("thumbnail bytes"),
	})

	built, err := builder.Build(dir)
	require.NoError(t, err)

	require.ErrorIs(t, builder.Fill(context.Background(), built), ErrNoSceneFile)
}

// TestBuilderFillNormalizationIsBestEffort checks that a scene the
// normalizer cannot rewrite is packaged as is instead of failing the asset.
func TestBuilderFillNormalizationIsBestEffort(t *testing.T) {
	t.Parallel()

	var normalized []string

	normalizer := NormalizerFunc(func(scenePath string) ([]string, error) {
		normalized = append(normalized, filepath.Base(scenePath))

		return nil, errors.New("unreadable container")
	})

	builder := NewBuilder(&PackContext{ContentServerURL: "https://cdn.example.com"}, nil, normalizer, 0)

	model := []byte("model bytes")

	dir := writeAssetTree(t, t.TempDir(), "chair", chairDescriptor(), map[string][]byte{
		"model.glb":             model,
		asset.ThumbnailFilename: []byte("thumbnail bytes"),
	})

	built, err := builder.Build(dir)
	require.NoError(t, err)

	require.NoError(t, builder.Fill(context.Background(), built))

	require.Equal(t, []string{"model.glb"}, normalized)
	require.Equal(t, cid.FromBytes(model), built.Contents["model.glb"])
}

// TestBuilderFillEntryPointIsLowestScenePath checks that with several
// scene files the lexicographically lowest relative path wins.
func TestBuilderFillEntryPointIsLowestScenePath(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(&PackContext{ContentServerURL: "https://cdn.example.com"}, nil, nil, 0)

	dir := writeAssetTree(t, t.TempDir(), "chair", chairDescriptor(), map[string][]byte{
		"b.glb":                 []byte("second scene"),
		"a/model.glb":           []byte("first scene"),
		asset.ThumbnailFilename: []byte("thumbnail bytes"),
	})

	built, err := builder.Build(dir)
	require.NoError(t, err)

	require.NoError(t, builder.Fill(context.Background(), built))
	require.Equal(t, "a/model.glb", built.EntryPoint)
}

// TestBuilderFillExternalizesEmbeddedResources checks the full pipeline
// against a real container: the embedded texture becomes a standalone
// identified file and a second build over the same directory reproduces
// the exact same contents mapping.
func TestBuilderFillExternalizesEmbeddedResources(t *testing.T) {
	t.Parallel()

	pack := &PackContext{ContentServerURL: "https://cdn.example.com/content"}
	builder := NewBuilder(pack, nil, NormalizerFunc(gltf.Externalize), 2)

	dir := writeAssetTree(t, t.TempDir(), "chair", chairDescriptor(), map[string][]byte{
		asset.ThumbnailFilename: []byte("thumbnail bytes"),
	})
	payload := writeEmbeddedTextureScene(t, filepath.Join(dir, "model.glb"))

	built, err := builder.Build(dir)
	require.NoError(t, err)

	require.NoError(t, builder.Fill(context.Background(), built))

	require.Equal(t, "model.glb", built.EntryPoint)
	require.Len(t, built.Contents, 3)
	require.Equal(t, cid.FromBytes(payload), built.Contents["model_wood_diffuse.png"])

	rebuilt, err := builder.Build(dir)
	require.NoError(t, err)

	require.NoError(t, builder.Fill(context.Background(), rebuilt))
	require.Equal(t, built.Contents, rebuilt.Contents)
}

// TestDiscoverAssets checks that descriptor-carrying directories are found
// at any depth, sorted, and that a discovered asset's subtree is not
// searched again.
func TestDiscoverAssets(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	chair := writeAssetTree(t, root, "chair", chairDescriptor(), nil)
	table := writeAssetTree(t, filepath.Join(root, "group"), "table", chairDescriptor(), nil)

	// Inside an already discovered asset, so it must not be listed.
	writeAssetTree(t, chair, "inner", chairDescriptor(), nil)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "misc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("pack"), 0o600))

	dirs, err := DiscoverAssets(root)
	require.NoError(t, err)
	require.Equal(t, []string{chair, table}, dirs)
}

// TestDiscoverAssetsSingleAssetRoot checks that a root carrying its own
// descriptor is the whole pack.
func TestDiscoverAssetsSingleAssetRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := writeAssetTree(t, root, "chair", chairDescriptor(), nil)

	dirs, err := DiscoverAssets(dir)
	require.NoError(t, err)
	require.Equal(t, []string{dir}, dirs)
}

// TestDiscoverAssetsMissingRoot checks the error path for a root that
// does not exist.
func TestDiscoverAssetsMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := DiscoverAssets(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestBuildAll checks that every asset under the root comes back built,
// filled and in sorted directory order.
func TestBuildAll(t *testing.T) {
	t.Parallel()

	pack := &PackContext{ContentServerURL: "https://cdn.example.com/content"}
	builder := NewBuilder(pack, nil, nil, 2)

	root := t.TempDir()

	writeAssetTree(t, root, "chair", chairDescriptor(), map[string][]byte{
		"model.glb":             []byte("chair scene"),
		asset.ThumbnailFilename: []byte("chair thumbnail"),
	})
	writeAssetTree(t, root, "table", chairDescriptor(), map[string][]byte{
		"model.glb":             []byte("table scene"),
		asset.ThumbnailFilename: []byte("table thumbnail"),
	})

	assets, err := builder.BuildAll(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	require.Equal(t, "chair", assets[0].ID)
	require.Equal(t, "table", assets[1].ID)

	for _, built := range assets {
		require.Equal(t, "model.glb", built.EntryPoint)
		require.NotEmpty(t, built.Contents)
	}
}

// TestBuildAllFailsOnBrokenAsset checks that one bad asset fails the
// whole pack and the error names it.
func TestBuildAllFailsOnBrokenAsset(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(&PackContext{ContentServerURL: "https://cdn.example.com"}, nil, nil, 2)

	root := t.TempDir()

	writeAssetTree(t, root, "chair", chairDescriptor(), map[string][]byte{
		"model.glb":             []byte("chair scene"),
		asset.ThumbnailFilename: []byte("chair thumbnail"),
	})
	writeAssetTree(t, root, "table", chairDescriptor(), map[string][]byte{
		"model.glb": []byte("table scene"),
	})

	_, err := builder.BuildAll(context.Background(), root)
	require.ErrorIs(t, err, ErrMissingThumbnail)
	require.ErrorContains(t, err, "table")
}

// TestBuildAllRejectsDuplicateIdentifiers checks that two directories
// whose names collapse into one identifier cannot share a pack.
func TestBuildAllRejectsDuplicateIdentifiers(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(&PackContext{ContentServerURL: "https://cdn.example.com"}, nil, nil, 2)

	root := t.TempDir()

	files := map[string][]byte{
		"model.glb":             []byte("scene"),
		asset.ThumbnailFilename: []byte("thumbnail"),
	}
	writeAssetTree(t, root, "wooden-chair", chairDescriptor(), files)
	writeAssetTree(t, root, "Wooden Chair", chairDescriptor(), files)

	_, err := builder.BuildAll(context.Background(), root)
	require.ErrorIs(t, err, ErrDuplicateAssetID)
}

// TestBuildAllEmptyRoot checks that a root without assets is reported as such.
func TestBuildAllEmptyRoot(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(&PackContext{ContentServerURL: "https://cdn.example.com"}, nil, nil, 0)

	_, err := builder.BuildAll(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrNoAssets)
}

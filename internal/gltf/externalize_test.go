package gltf

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeScene builds GLB bytes from a document and a binary chunk.
func encodeScene(t *testing.T, document map[string]any, bin []byte) []byte {
	t.Helper()

	payload, err := json.Marshal(document)
	require.NoError(t, err)

	glb := &container{JSON: payload, BIN: bin}

	return glb.encode()
}

// embeddedImageScene returns a document with one PNG image stored in the binary chunk.
func embeddedImageScene() (map[string]any, []byte) {
	bin := []byte{0, 0, 0, 0, 0x89, 'P', 'N', 'G', 1, 2, 3, 4, 9, 9, 9, 9}
	document := map[string]any{
		"asset": map[string]any{"version": "2.0"},
		"images": []any{
			map[string]any{"mimeType": "image/png", "bufferView": 0, "name": "wood diffuse"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 4, "byteLength": 8},
		},
		"buffers": []any{map[string]any{"byteLength": 16}},
	}

	return document, bin
}

// TestExternalizeEmbeddedImage checks extraction, URI rewrite and payload bytes.
func TestExternalizeEmbeddedImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	scenePath := filepath.Join(dir, "model.glb")
	document, bin := embeddedImageScene()

	require.NoError(t, os.WriteFile(scenePath, encodeScene(t, document, bin), 0o600))

	emitted, err := Externalize(scenePath)
	require.NoError(t, err)
	require.Equal(t, []string{"model_wood_diffuse.png"}, emitted)

	payload, err := os.ReadFile(filepath.Join(dir, "model_wood_diffuse.png"))
	require.NoError(t, err)
	require.Equal(t, bin[4:12], payload)

	rewritten, err := os.ReadFile(scenePath)
	require.NoError(t, err)

	glb, err := decodeContainer(rewritten)
	require.NoError(t, err)
	require.Equal(t, padChunk(bin, 0), glb.BIN)

	var updated map[string]any
	require.NoError(t, json.Unmarshal(glb.JSON, &updated))

	images := updated["images"].([]any)
	image := images[0].(map[string]any)
	require.Equal(t, "model_wood_diffuse.png", image["uri"])
	require.NotContains(t, image, "bufferView")
}

// TestExternalizeIdempotent ensures a second run changes nothing.
func TestExternalizeIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	scenePath := filepath.Join(dir, "model.glb")
	document, bin := embeddedImageScene()

	require.NoError(t, os.WriteFile(scenePath, encodeScene(t, document, bin), 0o600))

	_, err := Externalize(scenePath)
	require.NoError(t, err)

	afterFirst, err := os.ReadFile(scenePath)
	require.NoError(t, err)

	emitted, err := Externalize(scenePath)
	require.NoError(t, err)
	require.Empty(t, emitted)

	afterSecond, err := os.ReadFile(scenePath)
	require.NoError(t, err)
	require.True(t, bytes.Equal(afterFirst, afterSecond))
}

// TestExternalizeWithoutImages leaves a scene with no embedded images untouched.
func TestExternalizeWithoutImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	scenePath := filepath.Join(dir, "model.glb")
	document := map[string]any{
		"asset":  map[string]any{"version": "2.0"},
		"images": []any{map[string]any{"uri": "already-external.png"}},
	}

	original := encodeScene(t, document, nil)
	require.NoError(t, os.WriteFile(scenePath, original, 0o600))

	emitted, err := Externalize(scenePath)
	require.NoError(t, err)
	require.Empty(t, emitted)

	current, err := os.ReadFile(scenePath)
	require.NoError(t, err)
	require.True(t, bytes.Equal(original, current))
}

// TestExternalizeRejectsNonGLB surfaces ErrNotGLB for other file types.
func TestExternalizeRejectsNonGLB(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "model.glb")

	require.NoError(t, os.WriteFile(path, []byte("{\"not\": \"a glb\"}"), 0o600))

	_, err := Externalize(path)
	require.ErrorIs(t, err, ErrNotGLB)
}

// TestExternalizeRejectsBrokenBufferView surfaces ErrMalformed on bad offsets.
func TestExternalizeRejectsBrokenBufferView(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	scenePath := filepath.Join(dir, "model.glb")
	document := map[string]any{
		"asset": map[string]any{"version": "2.0"},
		"images": []any{
			map[string]any{"mimeType": "image/png", "bufferView": 0},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 12, "byteLength": 999},
		},
	}

	require.NoError(t, os.WriteFile(scenePath, encodeScene(t, document, []byte{1, 2, 3, 4}), 0o600))

	_, err := Externalize(scenePath)
	require.ErrorIs(t, err, ErrMalformed)
}

// TestDecodeContainerTruncated rejects containers with lying lengths.
func TestDecodeContainerTruncated(t *testing.T) {
	t.Parallel()

	document := map[string]any{"asset": map[string]any{"version": "2.0"}}
	full := encodeScene(t, document, []byte{1, 2, 3, 4})

	_, err := decodeContainer(full[:len(full)-2])
	require.ErrorIs(t, err, ErrMalformed)

	_, err = decodeContainer([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrNotGLB)
}

// TestExtractedFileNameFallbacks checks naming for unnamed images and unknown media types.
func TestExtractedFileNameFallbacks(t *testing.T) {
	t.Parallel()

	name := extractedFileName("model", map[string]any{}, 2, "image/ktx2")
	require.Equal(t, "model_2.ktx2", name)

	name = extractedFileName("model", map[string]any{"name": "??"}, 0, "application/unknown")
	require.Equal(t, "model_0.bin", name)
}

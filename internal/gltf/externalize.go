package gltf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// extractedFileMode is used for image files written next to the scene.
const extractedFileMode os.FileMode = 0o644

// extensionsByMediaType maps glTF image media types to file extensions.
var extensionsByMediaType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/ktx2": ".ktx2",
}

// Externalize rewrites the binary glTF scene at path so that images stored in
// its binary chunk become standalone files in the scene's directory, each
// image entry pointing at its file by relative URI. The binary chunk itself
// is left untouched, which keeps every other buffer view offset valid.
//
// Returns the names of the files it wrote, relative to the scene's directory.
// A scene without embedded images is left as is, so running Externalize twice
// is a no-op.
func Externalize(path string) ([]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	glb, err := decodeContainer(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var document map[string]any
	if err = json.Unmarshal(glb.JSON, &document); err != nil {
		return nil, fmt.Errorf("decode scene document: %w", err)
	}

	images, _ := document["images"].([]any)
	if len(images) == 0 {
		return nil, nil
	}

	bufferViews, _ := document["bufferViews"].([]any)
	sceneDir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var emitted []string

	for index, rawImage := range images {
		image, ok := rawImage.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("image %d is not an object: %w", index, ErrMalformed)
		}

		// Images that already reference a URI are external by definition.
		if _, external := image["uri"]; external {
			continue
		}

		viewIndex, ok := intField(image, "bufferView")
		if !ok {
			continue
		}

		payload, err := bufferViewPayload(bufferViews, glb.BIN, viewIndex)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", index, err)
		}

		mediaType, _ := image["mimeType"].(string)
		name := extractedFileName(stem, image, index, mediaType)

		if err = os.WriteFile(filepath.Join(sceneDir, name), payload, extractedFileMode); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}

		delete(image, "bufferView")
		image["uri"] = name

		emitted = append(emitted, name)
	}

	if len(emitted) == 0 {
		return nil, nil
	}

	rewritten, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encode scene document: %w", err)
	}

	glb.JSON = rewritten

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if err = os.WriteFile(path, glb.encode(), info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("rewrite scene: %w", err)
	}

	return emitted, nil
}

// bufferViewPayload slices the binary chunk for the given buffer view index.
func bufferViewPayload(bufferViews []any, bin []byte, viewIndex int) ([]byte, error) {
	if viewIndex < 0 || viewIndex >= len(bufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range: %w", viewIndex, ErrMalformed)
	}

	view, ok := bufferViews[viewIndex].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("buffer view %d is not an object: %w", viewIndex, ErrMalformed)
	}

	offset, _ := intField(view, "byteOffset")

	length, ok := intField(view, "byteLength")
	if !ok {
		return nil, fmt.Errorf("buffer view %d has no length: %w", viewIndex, ErrMalformed)
	}

	if offset < 0 || length < 0 || offset+length > len(bin) {
		return nil, fmt.Errorf("buffer view %d exceeds binary chunk: %w", viewIndex, ErrMalformed)
	}

	return bin[offset : offset+length], nil
}

// extractedFileName derives a file name for an embedded image from its
// optional name, falling back to the image index, with the extension implied
// by the media type. The scene's stem prefix keeps names unique when several
// scenes share a directory.
func extractedFileName(stem string, image map[string]any, index int, mediaType string) string {
	extension, ok := extensionsByMediaType[strings.ToLower(mediaType)]
	if !ok {
		extension = ".bin"
	}

	name, _ := image["name"].(string)

	name = sanitizeFileName(name)
	if name == "" {
		name = fmt.Sprintf("%d", index)
	}

	return stem + "_" + name + extension
}

// sanitizeFileName keeps a conservative character set for emitted files.
func sanitizeFileName(name string) string {
	var builder strings.Builder

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			builder.WriteRune(r)
		case r == ' ':
			builder.WriteByte('_')
		}
	}

	return strings.Trim(builder.String(), ".")
}

// intField reads a JSON number field as an int.
func intField(object map[string]any, key string) (int, bool) {
	value, ok := object[key].(float64)
	if !ok {
		return 0, false
	}

	return int(value), true
}

// Package scan enumerates asset trees and classifies files by extension.
package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSceneExtensions returns the extensions treated as scene entry points.
func DefaultSceneExtensions() []string {
	return []string{".glb"}
}

// DefaultResourceExtensions returns the extensions included in an asset's
// uploadable payload. Scene extensions are part of this set: every scene is
// also a resource.
func DefaultResourceExtensions() []string {
	return []string{".glb", ".gltf", ".bin", ".png", ".jpg", ".jpeg", ".webp", ".ktx2"}
}

// Classifier decides which files are scene entry points and which belong to
// an asset's uploadable payload. Matching compares the lowercased extension
// for exact equality, so "Model.GLB" is a scene and "model.glb2" is not.
type Classifier struct {
	scenes    map[string]struct{}
	resources map[string]struct{}
}

// NewClassifier builds a Classifier from extension lists.
// Empty lists fall back to the defaults.
func NewClassifier(sceneExtensions, resourceExtensions []string) *Classifier {
	if len(sceneExtensions) == 0 {
		sceneExtensions = DefaultSceneExtensions()
	}

	if len(resourceExtensions) == 0 {
		resourceExtensions = DefaultResourceExtensions()
	}

	return &Classifier{
		scenes:    extensionSet(sceneExtensions),
		resources: extensionSet(resourceExtensions),
	}
}

// IsSceneFile reports whether the path names a scene entry point.
func (c *Classifier) IsSceneFile(path string) bool {
	_, ok := c.scenes[normalizedExtension(path)]

	return ok
}

// IsResourceFile reports whether the path belongs to the uploadable payload.
func (c *Classifier) IsResourceFile(path string) bool {
	_, ok := c.resources[normalizedExtension(path)]

	return ok
}

// Files walks dir and returns the relative, slash-separated paths of all
// regular files in lexicographic order. The defined order is what makes
// downstream choices (entry-point selection, upload batching) reproducible.
func Files(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		relative, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}

		files = append(files, filepath.ToSlash(relative))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(files)

	return files, nil
}

// extensionSet normalizes extensions into a lookup set.
// Entries are lowercased and get a leading dot when missing.
func extensionSet(extensions []string) map[string]struct{} {
	result := make(map[string]struct{}, len(extensions))

	for _, extension := range extensions {
		extension = strings.ToLower(strings.TrimSpace(extension))
		if extension == "" {
			continue
		}

		if !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}

		result[extension] = struct{}{}
	}

	return result
}

func normalizedExtension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

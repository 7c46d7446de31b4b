package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDescriptorValidate covers the metadata invariants.
func TestDescriptorValidate(t *testing.T) {
	t.Parallel()

	valid := &Descriptor{Name: "Chair", Category: "furniture", Tags: []string{"chair", "wood"}}
	require.NoError(t, valid.Validate())

	cases := []*Descriptor{
		{Category: "furniture", Tags: []string{"chair"}},
		{Name: "   ", Category: "furniture", Tags: []string{"chair"}},
		{Name: "Chair", Tags: []string{"chair"}},
		{Name: "Chair", Category: "furniture"},
		{Name: "Chair", Category: "furniture", Tags: []string{"chair", " "}},
	}

	for _, descriptor := range cases {
		require.ErrorIs(t, descriptor.Validate(), ErrInvalidDescriptor)
	}
}

// TestNewFailsFastWithoutTreeIO ensures invalid metadata is rejected even for
// directories that do not exist.
func TestNewFailsFastWithoutTreeIO(t *testing.T) {
	t.Parallel()

	_, err := New(filepath.Join(t.TempDir(), "ghost"), &Descriptor{Name: "Chair"})
	require.ErrorIs(t, err, ErrInvalidDescriptor)
}

// TestNewDerivesID checks that the identifier comes from the directory name only.
func TestNewDerivesID(t *testing.T) {
	t.Parallel()

	descriptor := &Descriptor{Name: "Wooden Chair", Category: "furniture", Tags: []string{"chair"}}

	built, err := New(filepath.Join(t.TempDir(), "Wooden Chair v2"), descriptor)
	require.NoError(t, err)
	require.Equal(t, "wooden-chair-v2", built.ID)
	require.Empty(t, built.Thumbnail)
	require.Empty(t, built.EntryPoint)
	require.Empty(t, built.Contents)
	require.True(t, filepath.IsAbs(built.Dir))

	again, err := New(filepath.Join(t.TempDir(), "Wooden Chair v2"), descriptor)
	require.NoError(t, err)
	require.Equal(t, built.ID, again.ID)
}

// TestSlugID checks slug derivation corner cases.
func TestSlugID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "chair", SlugID("Chair"))
	require.Equal(t, "wooden-chair", SlugID("  Wooden   Chair  "))
	require.Equal(t, "red-5", SlugID("Red #5!"))
	require.Equal(t, "", SlugID("???"))
	require.Equal(t, SlugID("chair"), SlugID("chair"))
}

// TestLoadDescriptor reads asset.json from a directory.
func TestLoadDescriptor(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	payload := []byte(`{"name": "Chair", "category": "furniture", "tags": ["chair", "wood"], "variations": ["oak"]}`)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFilename), payload, 0o600))

	descriptor, err := LoadDescriptor(dir)
	require.NoError(t, err)
	require.Equal(t, "Chair", descriptor.Name)
	require.Equal(t, "furniture", descriptor.Category)
	require.Equal(t, []string{"chair", "wood"}, descriptor.Tags)
	require.Equal(t, []string{"oak"}, descriptor.Variations)
}

// TestLoadDescriptorErrors covers missing and malformed files.
func TestLoadDescriptorErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := LoadDescriptor(dir)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFilename), []byte("{"), 0o600))

	_, err = LoadDescriptor(dir)
	require.Error(t, err)
}

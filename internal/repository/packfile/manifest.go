package packfile

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/meshpack/meshpack/internal/domain/asset"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/version"
)

// Filename is the pack manifest kept at the pack root.
const Filename = "meshpack-manifest.yaml"

// Actor identifies who produced a manifest, for the audit trail.
type Actor struct {
	// Hostname of the machine the pack run happened on.
	Hostname string `yaml:"hostname"`
	// Username of the account that ran it.
	Username string `yaml:"username"`
}

// AssetEntry is the manifest's view of one packaged asset.
type AssetEntry struct {
	// Name is the human-readable asset name.
	Name string `yaml:"name"`
	// EntryPoint is the relative path of the asset's primary scene.
	EntryPoint string `yaml:"entry_point"`
	// Thumbnail is the public URL of the preview image.
	Thumbnail string `yaml:"thumbnail"`
	// Files maps relative paths to content identifiers.
	Files map[string]string `yaml:"files"`
}

// Manifest records the outcome of one pack run.
type Manifest struct {
	// GeneratedAt is when the pack run finished.
	GeneratedAt time.Time `yaml:"generated_at"`
	// GeneratedBy identifies the producing host and user.
	GeneratedBy *Actor `yaml:"generated_by,omitempty"`
	// Version is the tool version that produced the manifest.
	Version string `yaml:"version"`
	// Assets maps asset identifiers to their packaged contents.
	Assets map[string]AssetEntry `yaml:"assets"`
}

// DetectActor gathers host and user information for the audit trail.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// FromAssets assembles a manifest from filled assets. Actor detection is
// best-effort: a manifest without an audit trail is still a manifest.
func FromAssets(ctx context.Context, assets []*asset.Asset) *Manifest {
	entries := make(map[string]AssetEntry, len(assets))

	for _, built := range assets {
		files := make(map[string]string, len(built.Contents))

		for relative, id := range built.Contents {
			files[relative] = id.String()
		}

		entries[built.ID] = AssetEntry{
			Name:       built.Name,
			EntryPoint: built.EntryPoint,
			Thumbnail:  built.Thumbnail,
			Files:      files,
		}
	}

	actor, err := DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Actor detection failed", "error", err)
	}

	return &Manifest{
		GeneratedAt: time.Now().UTC(),
		GeneratedBy: actor,
		Version:     version.Short(),
		Assets:      entries,
	}
}

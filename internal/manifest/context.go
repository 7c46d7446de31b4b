package manifest

import (
	"strings"

	"github.com/meshpack/meshpack/internal/cid"
)

// PackContext carries the publication settings shared by every asset in a
// pack: where content blobs are served from, which registry the records
// belong to and the optional collection page used for external links.
type PackContext struct {
	// ContentServerURL is the public base URL serving blobs by content identifier.
	ContentServerURL string
	// ContractURI is the base URL of the collection page. Optional.
	ContractURI string
	// RegistryID identifies the registry the records are published under.
	RegistryID string
}

// ContentURL returns the public URL the identified blob is served from.
func (p *PackContext) ContentURL(id cid.ID) string {
	return strings.TrimRight(p.ContentServerURL, "/") + "/" + id.String()
}

// ExternalURL returns the collection page URL for an asset, or the empty
// string when no contract URI is configured.
func (p *PackContext) ExternalURL(assetID string) string {
	if p.ContractURI == "" {
		return ""
	}

	return strings.TrimRight(p.ContractURI, "/") + "/" + assetID
}

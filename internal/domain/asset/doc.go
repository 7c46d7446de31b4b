// Package asset contains the core domain types for packaged 3D assets.
//
// It defines the Descriptor (author-provided metadata read from asset.json)
// and the Asset (the packaged unit with its content identifiers), plus the
// slug derivation that keeps asset identifiers stable across runs.
package asset

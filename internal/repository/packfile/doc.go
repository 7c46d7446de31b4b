// Package packfile persists the pack manifest, the YAML record of what a
// pack run built, kept at the pack root between runs. The manifest is the
// input for offline verification and for restoring files from the store.
package packfile

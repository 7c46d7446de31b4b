// Package uploader transfers asset contents into the blob store.
//
// Transfers are deduplicated by content identifier: within one run,
// identical content referenced from several paths moves once, and across
// runs the store's existence check skips whatever is already there. A run
// is all-or-nothing from the caller's perspective and safe to retry.
package uploader

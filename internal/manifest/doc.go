// Package manifest turns asset directories into filled assets and
// publishable descriptor records.
//
// A build first reads and validates the author-provided descriptor, then
// fills the content side of the asset: scene files are rewritten so
// embedded resources become standalone files, every resource receives a
// content identifier, and the entry point is selected. A filled asset can
// be transformed into a descriptor record, which is checked against the
// embedded schema before it is written anywhere.
package manifest

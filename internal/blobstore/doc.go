// Package blobstore abstracts the remote home of content-addressed blobs.
//
// The Store interface is the minimal surface the pipeline needs: existence
// checks, puts and gets keyed by content identifier. S3 implements it on the
// AWS SDK and works against any S3-compatible endpoint; Memory implements it
// in process for tests and dry runs.
package blobstore

// Package blobstore abstracts read-only access to configuration artifacts
// such as vocabulary files, whether they live on the local file system or
// in an object store shared by a fleet.
//
// Implement the Store interface to support custom backends:
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	}
//
// LocalStore serves blobs from a directory, minio.Store from an
// S3-compatible object store, and CachingStore wraps either so remote
// blobs are downloaded once and reused across restarts.
package blobstore

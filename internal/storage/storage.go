// Package storage abstracts where finished session archives live. The
// pipeline writes archives to the local filesystem first and optionally
// mirrors them to a shared object store so other lab machines can pull
// converted sessions without access to the acquisition rigs.
package storage

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ArchiveStore abstracts archive mirroring operations.
// Implementations cover S3 and the local filesystem for development.
type ArchiveStore interface {
	// Put uploads a local archive file to objectPath in the store.
	Put(ctx context.Context, localPath, objectPath string) error

	// Get downloads the object at objectPath to localPath.
	Get(ctx context.Context, objectPath, localPath string) error

	// Exists reports whether objectPath is present in the store.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// Delete removes objectPath. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// List returns every object path under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

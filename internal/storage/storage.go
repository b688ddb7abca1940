package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage contains blob storage abstractions. A blob store is a pure
// byte cache keyed by a generated storage name; it carries no metadata of its
// own. Implementations must be safe for concurrent use and must use streaming
// I/O only.

// ErrObjectNotFound is returned by Stat, Get and Delete when no blob exists
// under the given key.
var ErrObjectNotFound = errors.New("object not found")

// PutObjectOptions define optional parameters for uploading blobs.
// Size should be the exact number of bytes if known; if unknown, set to -1 and
// the implementation will drain the reader until EOF.
// ContentType is optional and advisory.
type PutObjectOptions struct {
	Size        int64
	ContentType string
}

// ObjectInfo contains basic information about a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Storage is the blob store contract.
//
// Put must not report success until the incoming stream has been fully
// drained and the blob is durably in place under key; a failed write must
// leave no blob behind for that key. Retrying incomplete writes is the
// caller's concern, not the store's.
type Storage interface {
	// Put streams the reader's content into a new blob under key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Stat reports existence and size of a blob. Missing blobs are reported
	// via ErrObjectNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Get opens a blob's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes a blob by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

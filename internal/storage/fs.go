package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docstore/internal/config"
)

// fsStorage implements the Storage interface on a local filesystem directory.
// Blobs are plain files named by their key. Writes go to a temporary file in
// the same directory and are renamed into place only after the stream has
// been fully drained, so readers never observe a partially written blob.
// It is safe for concurrent use; writes for different keys are independent.
type fsStorage struct {
	dir string
}

// NewFS creates a filesystem-backed blob store rooted at cfg.Dir,
// creating the directory if missing.
func NewFS(cfg config.BlobConfig) (Storage, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &fsStorage{dir: cfg.Dir}, nil
}

// keyPath validates a key and resolves it to a path inside the store.
// Keys are engine-generated, but untrusted input must never reach the
// filesystem as a path component.
func (s *fsStorage) keyPath(key string) (string, error) {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || key != filepath.Base(key) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

// Put streams the reader into a temp file, syncs it, and renames it to key.
// Any failure removes the temp file and leaves no blob under key.
func (s *fsStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	dst, err := s.keyPath(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return ObjectInfo{}, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return ObjectInfo{}, fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ObjectInfo{}, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return ObjectInfo{}, fmt.Errorf("finalize blob: %w", err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         written,
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
	}, nil
}

// Stat reports the blob's current size on disk.
func (s *fsStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		LastModified: st.ModTime(),
	}, nil
}

// Get opens the blob for streaming reads.
func (s *fsStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open blob: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	info := ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		LastModified: st.ModTime(),
	}
	return f, info, nil
}

// Delete removes the blob. A missing key is treated as already deleted.
func (s *fsStorage) Delete(ctx context.Context, key string) error {
	p, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"docstore/internal/model"
	"docstore/internal/repository"
)

// DocumentJSONFile is a repository.DocumentRepository backed by a single JSON
// document on disk holding the ordered record array.
//
// Every mutation is a load-modify-persist of the entire record set, guarded
// by a single writer lock; that lock is the serialization point that prevents
// lost updates when concurrent requests race. Persisting writes a temp file
// in the store's directory and renames it over the old snapshot, so a crash
// mid-write leaves either the old or the new complete snapshot and readers
// never observe a partial one.
type DocumentJSONFile struct {
	path string
	mu   sync.RWMutex
}

// NewDocumentJSONFile creates the store at path, creating the parent
// directory and an empty record set if the file does not exist yet.
func NewDocumentJSONFile(path string) (*DocumentJSONFile, error) {
	if path == "" {
		return nil, fmt.Errorf("metadata file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create metadata directory: %w", err)
		}
	}
	r := &DocumentJSONFile{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := r.persist([]model.Document{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat metadata file: %w", err)
	}
	return r, nil
}

var _ repository.DocumentRepository = (*DocumentJSONFile)(nil)

// load reads the current snapshot. Callers must hold at least a read lock.
func (r *DocumentJSONFile) load() ([]model.Document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Document{}, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	docs := []model.Document{}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return docs, nil
}

// persist writes the full snapshot via temp-file-then-rename.
// Callers mutating the set must hold the writer lock.
func (r *DocumentJSONFile) persist(docs []model.Document) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".metadata-*")
	if err != nil {
		return fmt.Errorf("create temp metadata: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

// LoadAll returns the full record set in insertion order.
func (r *DocumentJSONFile) LoadAll(ctx context.Context) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load()
}

// AppendAll appends all records in a single load-modify-persist cycle under
// the mutation lock.
func (r *DocumentJSONFile) AppendAll(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.load()
	if err != nil {
		return err
	}
	current = append(current, docs...)
	return r.persist(current)
}

// FindByID returns the record with the given id.
func (r *DocumentJSONFile) FindByID(ctx context.Context, id string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == id {
			d := docs[i]
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

// RemoveByID removes the record with the given id under the mutation lock
// and returns it.
func (r *DocumentJSONFile) RemoveByID(ctx context.Context, id string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == id {
			removed := docs[i]
			docs = append(docs[:i], docs[i+1:]...)
			if err := r.persist(docs); err != nil {
				return nil, err
			}
			return &removed, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Ping verifies the store file is readable.
func (r *DocumentJSONFile) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.load()
	return err
}

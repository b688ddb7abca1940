package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"docstore/internal/config"
	"docstore/internal/model"
	"docstore/internal/repository"
	"docstore/internal/storage"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("document not found")
	// ErrBlobMissing means the record exists but its blob is gone from
	// storage. Distinct from ErrNotFound so callers can tell "never existed"
	// apart from "record exists but blob lost".
	ErrBlobMissing  = errors.New("document file missing from storage")
	ErrNoFiles      = errors.New("no files supplied")
	ErrTooManyFiles = errors.New("too many files in batch")
	ErrFileTooLarge = errors.New("file exceeds size limit")
)

// UploadFile is one incoming file of a batch. Size is the client-declared
// length and is advisory only; the persisted record always carries the
// verified on-disk size.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// BatchResult reports the outcome of one upload batch. A batch with both
// Documents and Failed entries is a partial success, not an error.
type BatchResult struct {
	Documents []model.Document `json:"documents"`
	Failed    []string         `json:"failedFiles"`
}

// Limits holds upload validation and verification settings.
type Limits struct {
	MaxFileSize       int64
	MaxFilesPerBatch  int
	VerifyMaxAttempts int
	VerifyRetryDelay  time.Duration
}

// LimitsFromConfig maps the upload configuration onto service limits.
func LimitsFromConfig(cfg config.UploadConfig) Limits {
	return Limits{
		MaxFileSize:       cfg.MaxFileSizeBytes,
		MaxFilesPerBatch:  cfg.MaxFilesPerBatch,
		VerifyMaxAttempts: cfg.VerifyMaxAttempts,
		VerifyRetryDelay:  time.Duration(cfg.VerifyRetryDelayMs) * time.Millisecond,
	}
}

// DocumentService defines the use cases of the storage engine.
type DocumentService interface {
	// UploadBatch ingests a batch of files with partial-failure tolerance:
	// each file is streamed to the blob store and verified independently;
	// all verified records are appended to the metadata store in a single
	// atomic mutation. One file's failure never aborts its siblings.
	UploadBatch(ctx context.Context, files []UploadFile) (*BatchResult, error)

	// List returns one page of records after text filter, sort and pagination.
	List(ctx context.Context, params ListParams) (*DocumentListResult, error)

	// Download resolves an id to its record and opens the blob stream.
	// The caller owns the returned ReadCloser.
	Download(ctx context.Context, id string) (io.ReadCloser, *model.Document, error)

	// Delete removes the blob (best-effort) and then the record (authoritative).
	Delete(ctx context.Context, id string) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store  storage.Storage
	repo   repository.DocumentRepository
	limits Limits
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, limits Limits) DocumentService {
	return &documentService{store: store, repo: repo, limits: limits}
}

func (s *documentService) UploadBatch(ctx context.Context, files []UploadFile) (*BatchResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if s.limits.MaxFilesPerBatch > 0 && len(files) > s.limits.MaxFilesPerBatch {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrTooManyFiles, len(files), s.limits.MaxFilesPerBatch)
	}

	succeeded := make([]model.Document, 0, len(files))
	failed := make([]string, 0)

	for _, f := range files {
		doc, err := s.ingestOne(ctx, f)
		if err != nil {
			log.Printf("upload: file %q failed: %v", f.Name, err)
			failed = append(failed, f.Name)
			continue
		}
		succeeded = append(succeeded, *doc)
	}

	if len(succeeded) > 0 {
		// One append for the whole batch: a single lock acquisition on the
		// metadata store. If this fails the blobs are already on disk and are
		// left orphaned; that must surface as a fatal error, not be swallowed.
		if err := s.repo.AppendAll(ctx, succeeded); err != nil {
			return nil, fmt.Errorf("save metadata: %w", err)
		}
	}

	return &BatchResult{Documents: succeeded, Failed: failed}, nil
}

// ingestOne writes one file to the blob store and verifies it. On any
// failure the partial blob is removed best-effort and the error returned;
// the caller records the file as failed and moves on.
func (s *documentService) ingestOne(ctx context.Context, f UploadFile) (*model.Document, error) {
	if s.limits.MaxFileSize > 0 && f.Size > s.limits.MaxFileSize {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrFileTooLarge, f.Size, s.limits.MaxFileSize)
	}
	if f.Open == nil {
		return nil, errors.New("no content")
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	// Storage name decouples the blob from the untrusted title; only the
	// extension is carried over.
	key := uuid.NewString() + filepath.Ext(f.Name)

	var r io.Reader = rc
	if s.limits.MaxFileSize > 0 {
		// Cap the stream one byte past the limit so an under-declared
		// oversized upload is cut off and detected below.
		r = io.LimitReader(rc, s.limits.MaxFileSize+1)
	}

	info, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        f.Size,
		ContentType: f.ContentType,
	})
	if err != nil {
		s.discardBlob(ctx, key)
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if s.limits.MaxFileSize > 0 && info.Size > s.limits.MaxFileSize {
		s.discardBlob(ctx, key)
		return nil, fmt.Errorf("%w: stream exceeded %d bytes", ErrFileTooLarge, s.limits.MaxFileSize)
	}

	verified, err := s.verifyBlob(ctx, key)
	if err != nil {
		s.discardBlob(ctx, key)
		return nil, err
	}

	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	return &model.Document{
		ID:          uuid.NewString(),
		Title:       f.Name,
		StorageName: key,
		Size:        verified.Size, // verified on-disk size, never the declared one
		MimeType:    ct,
		UploadDate:  time.Now().UTC(),
	}, nil
}

// verifyBlob confirms the blob exists and is non-empty. The write call
// itself only returns after the stream is drained, so the first attempt
// normally succeeds; the bounded retry tolerates backends with
// read-after-write visibility lag without stalling on a genuinely failed
// write.
func (s *documentService) verifyBlob(ctx context.Context, key string) (storage.ObjectInfo, error) {
	attempts := s.limits.VerifyMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return storage.ObjectInfo{}, ctx.Err()
			case <-time.After(s.limits.VerifyRetryDelay):
			}
		}
		info, err := s.store.Stat(ctx, key)
		if err == nil && info.Size > 0 {
			return info, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New("blob is empty")
		}
	}
	return storage.ObjectInfo{}, fmt.Errorf("blob not fully written after %d attempts: %w", attempts, lastErr)
}

// discardBlob removes a partial or rejected blob. Best-effort only.
func (s *documentService) discardBlob(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		log.Printf("upload: could not clean up blob %q: %v", key, err)
	}
}

// List loads the current snapshot and runs the pure query stage over it.
func (s *documentService) List(ctx context.Context, params ListParams) (*DocumentListResult, error) {
	docs, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return runQuery(docs, params), nil
}

// Download resolves the record and opens its blob stream.
func (s *documentService) Download(ctx context.Context, id string) (io.ReadCloser, *model.Document, error) {
	if id == "" {
		return nil, nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.StorageName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrBlobMissing
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return rc, doc, nil
}

// Delete removes the blob first (best-effort, failure logged only) and then
// the record. The record's removal is the success criterion: once it is gone
// the document no longer exists, whatever happened to the blob.
func (s *documentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.store.Delete(ctx, doc.StorageName); err != nil {
		log.Printf("delete: could not remove blob %q: %v", doc.StorageName, err)
	}

	if _, err := s.repo.RemoveByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost a race with another delete; the record is gone either way.
			return ErrNotFound
		}
		return err
	}
	return nil
}

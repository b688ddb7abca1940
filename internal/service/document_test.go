package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"docstore/internal/model"
	"docstore/internal/repository"
	repoMocks "docstore/internal/repository/mocks"
	"docstore/internal/storage"
	storeMocks "docstore/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{
		MaxFileSize:       1024,
		MaxFilesPerBatch:  5,
		VerifyMaxAttempts: 3,
		VerifyRetryDelay:  time.Millisecond,
	}
}

func uploadFile(name, contentType, content string) UploadFile {
	return UploadFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func TestDocumentService_UploadBatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		files      []UploadFile
		limits     Limits
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		wantErrMsg string
		checkRes   func(t *testing.T, res *BatchResult)
	}{
		{
			name:       "validation - empty batch",
			files:      nil,
			limits:     testLimits(),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrNoFiles,
		},
		{
			name: "validation - too many files",
			files: []UploadFile{
				uploadFile("a.txt", "text/plain", "a"),
				uploadFile("b.txt", "text/plain", "b"),
				uploadFile("c.txt", "text/plain", "c"),
			},
			limits: Limits{MaxFileSize: 1024, MaxFilesPerBatch: 2, VerifyMaxAttempts: 1},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
			},
			wantErr: ErrTooManyFiles,
		},
		{
			name:   "happy path - size taken from verified stat, not declared",
			files:  []UploadFile{uploadFile("report.pdf", "application/pdf", "hello world")},
			limits: testLimits(),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasSuffix(key, ".pdf") && !strings.Contains(key, "report")
				}), mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{Size: 11}, nil)
				mStore.On("Stat", ctx, mock.Anything).
					Return(storage.ObjectInfo{Size: 11}, nil)
				mRepo.On("AppendAll", ctx, mock.MatchedBy(func(docs []model.Document) bool {
					return len(docs) == 1 &&
						docs[0].Title == "report.pdf" &&
						docs[0].Size == 11 &&
						docs[0].ID != "" &&
						docs[0].StorageName != "report.pdf"
				})).Return(nil)
			},
			checkRes: func(t *testing.T, res *BatchResult) {
				require.Len(t, res.Documents, 1)
				assert.Empty(t, res.Failed)
				assert.Equal(t, int64(11), res.Documents[0].Size)
			},
		},
		{
			name:   "verification failure - blob deleted, sibling unaffected",
			files:  []UploadFile{uploadFile("good.txt", "text/plain", "fine"), uploadFile("bad.txt", "text/plain", "gone")},
			limits: testLimits(),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasSuffix(key, ".txt")
				}), mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{Size: 4}, nil).Once()
				mStore.On("Stat", ctx, mock.Anything).
					Return(storage.ObjectInfo{Size: 4}, nil).Once()

				// Second file: written but never becomes visible.
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{Size: 4}, nil).Once()
				mStore.On("Stat", ctx, mock.Anything).
					Return(storage.ObjectInfo{}, storage.ErrObjectNotFound)
				mStore.On("Delete", ctx, mock.Anything).Return(nil).Once()

				mRepo.On("AppendAll", ctx, mock.MatchedBy(func(docs []model.Document) bool {
					return len(docs) == 1 && docs[0].Title == "good.txt"
				})).Return(nil)
			},
			checkRes: func(t *testing.T, res *BatchResult) {
				require.Len(t, res.Documents, 1)
				assert.Equal(t, []string{"bad.txt"}, res.Failed)
			},
		},
		{
			name:   "zero succeeded - no metadata mutation",
			files:  []UploadFile{uploadFile("only.txt", "text/plain", "x")},
			limits: testLimits(),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("disk full"))
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
			},
			checkRes: func(t *testing.T, res *BatchResult) {
				assert.Empty(t, res.Documents)
				assert.Equal(t, []string{"only.txt"}, res.Failed)
			},
		},
		{
			name:   "oversized declared size - rejected before any write",
			files:  []UploadFile{{Name: "huge.bin", Size: 4096, Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("x")), nil }}},
			limits: testLimits(),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
			},
			checkRes: func(t *testing.T, res *BatchResult) {
				assert.Empty(t, res.Documents)
				assert.Equal(t, []string{"huge.bin"}, res.Failed)
			},
		},
		{
			name:   "metadata append failure is fatal",
			files:  []UploadFile{uploadFile("a.txt", "text/plain", "abc")},
			limits: testLimits(),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{Size: 3}, nil)
				mStore.On("Stat", ctx, mock.Anything).
					Return(storage.ObjectInfo{Size: 3}, nil)
				mRepo.On("AppendAll", ctx, mock.Anything).Return(errors.New("io error"))
			},
			wantErrMsg: "save metadata: io error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mStore, mRepo, tt.limits)

			tt.setupMocks(mStore, mRepo)

			res, err := svc.UploadBatch(ctx, tt.files)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_UploadBatch_OversizedStreamCutOff(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, Limits{MaxFileSize: 4, MaxFilesPerBatch: 5, VerifyMaxAttempts: 1})

	// Declares 3 bytes but streams 10; the capped reader lets at most 5
	// through and the blob must be discarded.
	f := UploadFile{
		Name: "liar.bin",
		Size: 3,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("0123456789")), nil
		},
	}

	mStore.On("Put", ctx, mock.Anything, mock.MatchedBy(func(r io.Reader) bool {
		n, _ := io.Copy(io.Discard, r)
		return n == 5 // limit+1
	}), mock.Anything).Return(storage.ObjectInfo{Size: 5}, nil)
	mStore.On("Delete", ctx, mock.Anything).Return(nil)

	res, err := svc.UploadBatch(ctx, []UploadFile{f})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, []string{"liar.bin"}, res.Failed)
	mStore.AssertExpectations(t)
	mRepo.AssertNotCalled(t, "AppendAll", mock.Anything, mock.Anything)
}

func TestDocumentService_Download(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "valid-id").
					Return(&model.Document{ID: "valid-id", StorageName: "blob.txt", Size: 5}, nil)
				mStore.On("Get", ctx, "blob.txt").
					Return(io.NopCloser(strings.NewReader("hello")), storage.ObjectInfo{Size: 5}, nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "unknown id",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "record exists but blob lost",
			id:   "orphan-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "orphan-id").
					Return(&model.Document{ID: "orphan-id", StorageName: "gone.txt"}, nil)
				mStore.On("Get", ctx, "gone.txt").
					Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)
			},
			wantErr: ErrBlobMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mStore, mRepo, testLimits())

			tt.setupMocks(mStore, mRepo)

			rc, doc, err := svc.Download(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotNil(t, rc)
				defer rc.Close()
				assert.Equal(t, tt.id, doc.ID)
				content, err := io.ReadAll(rc)
				require.NoError(t, err)
				assert.Equal(t, "hello", string(content))
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "valid-id").
					Return(&model.Document{ID: "valid-id", StorageName: "blob.txt"}, nil)
				mStore.On("Delete", ctx, "blob.txt").Return(nil)
				mRepo.On("RemoveByID", ctx, "valid-id").
					Return(&model.Document{ID: "valid-id"}, nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "unknown id",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "blob delete failure is non-fatal",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "valid-id").
					Return(&model.Document{ID: "valid-id", StorageName: "blob.txt"}, nil)
				mStore.On("Delete", ctx, "blob.txt").Return(errors.New("permission denied"))
				mRepo.On("RemoveByID", ctx, "valid-id").
					Return(&model.Document{ID: "valid-id"}, nil)
			},
		},
		{
			name: "record removal failure is fatal",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "valid-id").
					Return(&model.Document{ID: "valid-id", StorageName: "blob.txt"}, nil)
				mStore.On("Delete", ctx, "blob.txt").Return(nil)
				mRepo.On("RemoveByID", ctx, "valid-id").Return(nil, errors.New("io error"))
			},
			wantErr: errors.New("io error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mStore, mRepo, testLimits())

			tt.setupMocks(mStore, mRepo)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
			} else {
				assert.NoError(t, err)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := NewDocumentService(nil, mRepo, testLimits())

		mRepo.On("LoadAll", ctx).Return([]model.Document{
			{ID: "1", Title: "a.txt", UploadDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "2", Title: "b.txt", UploadDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		}, nil)

		res, err := svc.List(ctx, ListParams{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, "2", res.Items[0].ID) // descending by default
		mRepo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := NewDocumentService(nil, mRepo, testLimits())

		mRepo.On("LoadAll", ctx).Return(nil, errors.New("io error"))

		_, err := svc.List(ctx, ListParams{})
		assert.Error(t, err)
		mRepo.AssertExpectations(t)
	})
}

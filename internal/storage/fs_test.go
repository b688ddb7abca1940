package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docstore/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, io.ErrUnexpectedEOF
}

func newFSStore(t *testing.T) (Storage, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFS(config.BlobConfig{Dir: dir})
	require.NoError(t, err)
	return store, dir
}

func TestFSPutStatGetDelete(t *testing.T) {
	ctx := context.Background()
	store, dir := newFSStore(t)

	content := "hello blob store"
	info, err := store.Put(ctx, "abc123.txt", strings.NewReader(content), PutObjectOptions{
		Size:        int64(len(content)),
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123.txt", info.Key)
	assert.Equal(t, int64(len(content)), info.Size)

	// Size reported by Stat matches what was actually written.
	st, err := store.Stat(ctx, "abc123.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), st.Size)

	rc, getInfo, err := store.Get(ctx, "abc123.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
	assert.Equal(t, int64(len(content)), getInfo.Size)

	require.NoError(t, store.Delete(ctx, "abc123.txt"))
	_, err = store.Stat(ctx, "abc123.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// File really gone from disk.
	_, err = os.Stat(filepath.Join(dir, "abc123.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestFSPutFailedWriteLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store, dir := newFSStore(t)

	_, err := store.Put(ctx, "broken.bin", &failingReader{data: "partial"}, PutObjectOptions{Size: -1})
	require.Error(t, err)

	// Neither the blob nor a leftover temp file exists.
	_, err = store.Stat(ctx, "broken.bin")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFSKeyValidation(t *testing.T) {
	ctx := context.Background()
	store, _ := newFSStore(t)

	for _, key := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
		_, err := store.Put(ctx, key, strings.NewReader("x"), PutObjectOptions{Size: 1})
		assert.Error(t, err, "key %q must be rejected", key)

		_, err = store.Stat(ctx, key)
		assert.Error(t, err, "key %q must be rejected", key)
	}
}

func TestFSStatMissing(t *testing.T) {
	ctx := context.Background()
	store, _ := newFSStore(t)

	_, err := store.Stat(ctx, "never-written")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, _, err = store.Get(ctx, "never-written")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFSDeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	store, _ := newFSStore(t)

	assert.NoError(t, store.Delete(ctx, "never-written"))
}

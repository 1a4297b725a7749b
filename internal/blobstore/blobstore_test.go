package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("%PDF-1.4 fake document bytes")
	require.NoError(t, store.Put(ctx, "doc-1.pdf", data))

	got, err := store.Get(ctx, "doc-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Put replaces existing content.
	require.NoError(t, store.Put(ctx, "doc-1.pdf", []byte("v2")))
	got, err = store.Get(ctx, "doc-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestFileStore_GetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "doc-1", []byte("x")))
	require.NoError(t, store.Delete(ctx, "doc-1"))
	_, err = store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Idempotent.
	require.NoError(t, store.Delete(ctx, "doc-1"))
}

func TestFileStore_RejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", "has space", "x\x00y"} {
		err := store.Put(ctx, key, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

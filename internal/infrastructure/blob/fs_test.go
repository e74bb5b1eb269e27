package blob

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("%PDF-1.4 счёт на оплату")
	uri, err := store.Put(ctx, "supply/101/счёт-15.pdf", data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	got, err := store.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileStore_OverwriteKeepsURI(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := store.Put(ctx, "uploads/scan.pdf", []byte("v1"))
	require.NoError(t, err)
	second, err := store.Put(ctx, "uploads/scan.pdf", []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := store.Get(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestFileStore_RejectsTraversalOnPut(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	// Clean("/../../etc/passwd") stays inside the root, so this must
	// land under the store, not at /etc
	uri, err := store.Put(context.Background(), "../../etc/passwd", []byte("x"))
	if err == nil {
		assert.True(t, strings.Contains(uri, store.root))
	}
}

func TestFileStore_RejectsForeignURIOnGet(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}

func TestFileStore_GetMissingBlobFails(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "file://"+store.root+"/missing.pdf")
	assert.Error(t, err)
}

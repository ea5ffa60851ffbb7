package blobstore

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/gtstore/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts backend reads of the wrapped store.
type countingStore struct {
	BlobStore
	reads atomic.Int64
	fail  error
}

type countingBlob struct {
	Blob
	s *countingStore
}

func (c *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := c.BlobStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, s: c}, nil
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.s.reads.Add(1)
	if b.s.fail != nil {
		return 0, b.s.fail
	}
	return b.Blob.ReadAt(ctx, p, off)
}

func newCounting(t *testing.T, data []byte) (*countingStore, *CachingStore) {
	t.Helper()
	inner := &countingStore{BlobStore: NewMemoryStore()}
	require.NoError(t, inner.Put(context.Background(), "blob", data))
	return inner, NewCachingStore(inner, cache.NewLRUBlockCache(1<<20, nil), 256)
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestCachingStore_ReadAt(t *testing.T) {
	ctx := context.Background()
	data := pattern(1000)
	inner, s := newCounting(t, data)

	b, err := s.Open(ctx, "blob")
	require.NoError(t, err)
	defer b.Close()

	buf := make([]byte, 600)
	n, err := b.ReadAt(ctx, buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	assert.Equal(t, data[100:700], buf)
	// Blocks 0..2 are one missing run.
	assert.Equal(t, int64(1), inner.reads.Load())

	n, err = b.ReadAt(ctx, buf[:200], 300)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	assert.Equal(t, data[300:500], buf[:200])
	assert.Equal(t, int64(1), inner.reads.Load())

	// Tail read across the last, short block.
	tail := make([]byte, 100)
	n, err = b.ReadAt(ctx, tail, 950)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 50, n)
	assert.Equal(t, data[950:], tail[:50])

	_, err = b.ReadAt(ctx, tail, 1000)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := b.ReadRange(ctx, 10, 20)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data[10:30], got)
}

func TestCachingStore_InvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	inner, s := newCounting(t, pattern(512))

	read := func() []byte {
		b, err := s.Open(ctx, "blob")
		require.NoError(t, err)
		defer b.Close()
		buf := make([]byte, 4)
		_, err = b.ReadAt(ctx, buf, 0)
		require.NoError(t, err)
		return buf
	}

	read()
	read()
	assert.Equal(t, int64(1), inner.reads.Load())

	require.NoError(t, s.Put(ctx, "blob", []byte("TTTTTTTT")))
	assert.Equal(t, []byte("TTTT"), read())
	assert.Equal(t, int64(2), inner.reads.Load())
}

func TestCachingStore_BackendError(t *testing.T) {
	ctx := context.Background()
	inner, s := newCounting(t, pattern(512))
	inner.fail = errors.New("connection reset")

	b, err := s.Open(ctx, "blob")
	require.NoError(t, err)
	_, err = b.ReadAt(ctx, make([]byte, 10), 0)
	assert.ErrorIs(t, err, inner.fail)
}

func TestCachingStore_Bypass(t *testing.T) {
	ctx := context.Background()
	inner, s := newCounting(t, pattern(64))
	require.NoError(t, inner.Put(ctx, "CURRENT", []byte("manifest-000001")))
	s.Bypass("CURRENT")

	for range 2 {
		data, err := ReadAll(ctx, s, "CURRENT")
		require.NoError(t, err)
		assert.Equal(t, "manifest-000001", string(data))
	}
	assert.Equal(t, int64(2), inner.reads.Load())

	// Writes by another process are seen immediately.
	require.NoError(t, inner.Put(ctx, "CURRENT", []byte("manifest-000002")))
	data, err := ReadAll(ctx, s, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "manifest-000002", string(data))
}

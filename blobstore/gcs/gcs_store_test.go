package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/hupe1980/gtstore/blobstore"
	"github.com/hupe1980/gtstore/internal/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

var _ blobstore.BlobStore = (*Store)(nil)

type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	reads   int
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string][]byte)}
}

func (m *memBucket) Size(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return 0, storage.ErrObjectNotExist
	}
	return int64(len(data)), nil
}

func (m *memBucket) NewRangeReader(_ context.Context, key string, off, length int64) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	end := min(off+length, int64(len(data)))
	return io.NopCloser(bytes.NewReader(bytes.Clone(data[off:end]))), nil
}

func (m *memBucket) NewWriter(ctx context.Context, key string, ifNotExists bool, crc uint32, sendCRC bool) io.WriteCloser {
	return &memWriter{ctx: ctx, bucket: m, key: key, ifNotExists: ifNotExists, crc: crc, sendCRC: sendCRC}
}

func (m *memBucket) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrObjectNotExist
	}
	delete(m.objects, key)
	return nil
}

func (m *memBucket) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type memWriter struct {
	ctx         context.Context
	bucket      *memBucket
	key         string
	ifNotExists bool
	crc         uint32
	sendCRC     bool
	buf         bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if w.sendCRC && hash.CRC32C(w.buf.Bytes()) != w.crc {
		return errors.New("crc32c mismatch")
	}
	w.bucket.mu.Lock()
	defer w.bucket.mu.Unlock()
	if _, ok := w.bucket.objects[w.key]; ok && w.ifNotExists {
		return &googleapi.Error{Code: http.StatusPreconditionFailed, Message: "conditionNotMet"}
	}
	w.bucket.objects[w.key] = bytes.Clone(w.buf.Bytes())
	return nil
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	s := NewStoreWithBucket(bucket, "maize/")

	_, err := s.Open(ctx, "taxa/1/geno-0.blk")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, s.Put(ctx, "taxa/1/geno-0.blk", []byte("ACGTACGT")))
	assert.Contains(t, bucket.objects, "maize/taxa/1/geno-0.blk")

	b, err := s.Open(ctx, "taxa/1/geno-0.blk")
	require.NoError(t, err)
	assert.Equal(t, int64(8), b.Size())

	buf := make([]byte, 4)
	n, err := b.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "GTAC", string(buf[:n]))

	n, err = b.ReadAt(ctx, buf, 6)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := b.ReadRange(ctx, 5, 100)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "CGT", string(got))

	require.NoError(t, s.Delete(ctx, "taxa/1/geno-0.blk"))
	require.NoError(t, s.Delete(ctx, "taxa/1/geno-0.blk"))
}

func TestStore_CreateAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStoreWithBucket(newMemBucket(), "maize")

	w, err := s.Create(ctx, "sites/desc-1-0.blk")
	require.NoError(t, err)
	_, err = w.Write([]byte("descriptor"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, blobstore.ErrClosed)

	require.NoError(t, s.Put(ctx, "taxa/2/geno-0.blk", nil))
	require.NoError(t, s.Put(ctx, "taxa/1/geno-0.blk", nil))
	require.NoError(t, s.Put(ctx, "taxabase", nil))

	names, err := s.List(ctx, "taxa/")
	require.NoError(t, err)
	assert.Equal(t, []string{"taxa/1/geno-0.blk", "taxa/2/geno-0.blk"}, names)

	data, err := blobstore.ReadAll(ctx, s, "sites/desc-1-0.blk")
	require.NoError(t, err)
	assert.Equal(t, "descriptor", string(data))
}

func TestStore_PutIfNotExists(t *testing.T) {
	ctx := context.Background()
	s := NewStoreWithBucket(newMemBucket(), "")

	require.NoError(t, s.PutIfNotExists(ctx, "manifest-1", []byte("one")))
	assert.ErrorIs(t, s.PutIfNotExists(ctx, "manifest-1", []byte("two")), ErrConflict)

	data, err := blobstore.ReadAll(ctx, s, "manifest-1")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestStore_Integration(t *testing.T) {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		t.Skip("GCS_BUCKET not set")
	}
	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	require.NoError(t, err)
	defer client.Close()

	s := NewStore(client.Bucket(bucketName), "gtstore-test/"+t.Name())
	require.NoError(t, s.Put(ctx, "taxa/1/geno-0.blk", []byte("ACGT")))
	defer func() { _ = s.Delete(ctx, "taxa/1/geno-0.blk") }()

	data, err := blobstore.ReadAll(ctx, s, "taxa/1/geno-0.blk")
	require.NoError(t, err)
	assert.Equal(t, "ACGT", string(data))
}

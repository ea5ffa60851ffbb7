package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/hupe1980/gtstore/blobstore"
	"github.com/hupe1980/gtstore/internal/hash"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// ErrConflict is returned by PutIfNotExists when the object already exists.
var ErrConflict = fmt.Errorf("gcs: %w", blobstore.ErrExists)

// Bucket is the slice of a GCS bucket the store needs. NewStore adapts a
// *storage.BucketHandle; tests substitute an in-memory bucket.
type Bucket interface {
	Size(ctx context.Context, key string) (int64, error)
	NewRangeReader(ctx context.Context, key string, off, length int64) (io.ReadCloser, error)
	NewWriter(ctx context.Context, key string, ifNotExists bool, crc32c uint32, sendCRC bool) io.WriteCloser
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Store implements blobstore.BlobStore for a GCS bucket.
type Store struct {
	bucket Bucket
	prefix string
}

// NewStore creates a store that keeps every blob below rootPrefix.
func NewStore(b *storage.BucketHandle, rootPrefix string) *Store {
	return NewStoreWithBucket(handle{b}, rootPrefix)
}

// NewStoreWithBucket creates a store over any Bucket implementation.
func NewStoreWithBucket(b Bucket, rootPrefix string) *Store {
	return &Store{bucket: b, prefix: rootPrefix}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	size, err := s.bucket.Size(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", key, blobstore.ErrNotFound)
		}
		return nil, err
	}
	return &gcsBlob{bucket: s.bucket, key: key, size: size}, nil
}

// Create streams into a resumable upload; the object appears on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	ctx, cancel := context.WithCancel(ctx)
	return &gcsWritableBlob{w: s.bucket.NewWriter(ctx, s.key(name), false, 0, false), cancel: cancel}, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	return s.write(ctx, name, data, false)
}

// PutIfNotExists writes a blob only if no object exists under name.
func (s *Store) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	err := s.write(ctx, name, data, true)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return ErrConflict
	}
	return err
}

func (s *Store) write(ctx context.Context, name string, data []byte, ifNotExists bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.NewWriter(ctx, s.key(name), ifNotExists, hash.CRC32C(data), true)
	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.bucket.Delete(ctx, s.key(name))
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.bucket.List(ctx, s.key(prefix))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		rel := strings.TrimPrefix(strings.TrimPrefix(k, s.prefix), "/")
		if rel != "" && strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out, nil
}

type gcsBlob struct {
	bucket Bucket
	key    string
	size   int64
}

func (b *gcsBlob) Size() int64  { return b.size }
func (b *gcsBlob) Close() error { return nil }

func (b *gcsBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= b.size {
		return 0, io.EOF
	}
	n := min(int64(len(p)), b.size-off)
	r, err := b.bucket.NewRangeReader(ctx, b.key, off, n)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	read, err := io.ReadFull(r, p[:n])
	if err != nil {
		return read, err
	}
	if read < len(p) {
		return read, io.EOF
	}
	return read, nil
}

func (b *gcsBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return b.bucket.NewRangeReader(ctx, b.key, off, min(length, b.size-off))
}

type gcsWritableBlob struct {
	w      io.WriteCloser
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	closeErr error
}

func (b *gcsWritableBlob) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, blobstore.ErrClosed
	}
	return b.w.Write(p)
}

// Sync is a no-op; data is committed on Close.
func (b *gcsWritableBlob) Sync() error { return nil }

func (b *gcsWritableBlob) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return b.closeErr
	}
	b.closed = true
	b.closeErr = b.w.Close()
	b.cancel()
	return b.closeErr
}

// handle adapts a *storage.BucketHandle to Bucket.
type handle struct {
	b *storage.BucketHandle
}

func (h handle) Size(ctx context.Context, key string) (int64, error) {
	attrs, err := h.b.Object(key).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (h handle) NewRangeReader(ctx context.Context, key string, off, length int64) (io.ReadCloser, error) {
	return h.b.Object(key).NewRangeReader(ctx, off, length)
}

func (h handle) NewWriter(ctx context.Context, key string, ifNotExists bool, crc uint32, sendCRC bool) io.WriteCloser {
	obj := h.b.Object(key)
	if ifNotExists {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	if sendCRC {
		w.CRC32C = crc
		w.SendCRC32C = true
	}
	return w
}

func (h handle) Delete(ctx context.Context, key string) error {
	return h.b.Object(key).Delete(ctx)
}

func (h handle) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := h.b.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

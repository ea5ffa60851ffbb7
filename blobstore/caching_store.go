package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/hupe1980/gtstore/internal/cache"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheBlockSize is the caching granularity for remote blobs.
const DefaultCacheBlockSize = 64 * 1024

// CachingStore wraps a remote BlobStore with a block cache over byte ranges.
// Reads are split into fixed-size blocks; missing runs of adjacent blocks are
// fetched with one backend request each.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
	fetchers  int
	bypass    []string
}

// NewCachingStore wraps inner. blockSize <= 0 selects DefaultCacheBlockSize.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultCacheBlockSize
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize, fetchers: 16}
}

// Bypass excludes blobs whose name starts with one of prefixes from caching.
// Use it for mutable pointers such as a CURRENT file that other processes
// rewrite.
func (s *CachingStore) Bypass(prefixes ...string) *CachingStore {
	s.bypass = append(s.bypass, prefixes...)
	return s
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, p := range s.bypass {
		if strings.HasPrefix(name, p) {
			return b, nil
		}
	}
	return &CachingBlob{inner: b, store: s, name: name}, nil
}

// Create passes through; the cached ranges of name are dropped because the
// blob is about to change.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(k cache.Key) bool {
		return k.Kind == cache.KindBlob && k.Path == name
	})
}

// CachingBlob serves ReadAt from the block cache.
type CachingBlob struct {
	inner Blob
	store *CachingStore
	name  string
}

func (b *CachingBlob) key(blk int64) cache.Key {
	return cache.Key{Kind: cache.KindBlob, Path: b.name, Block: uint64(blk)}
}

func (b *CachingBlob) Close() error { return b.inner.Close() }
func (b *CachingBlob) Size() int64  { return b.inner.Size() }

func (b *CachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.Size() {
		return nopReadCloser{}, nil
	}
	length = min(length, b.Size()-off)
	buf := make([]byte, length)
	n, err := b.ReadAt(ctx, buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return io.NopCloser(&sliceReader{data: buf[:n]}), nil
}

func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}

	bs := b.store.blockSize
	end := min(off+int64(len(p)), size)
	first, last := off/bs, (end-1)/bs

	blocks, err := b.fetch(ctx, first, last)
	if err != nil {
		return 0, err
	}

	total := 0
	for blk := first; blk <= last; blk++ {
		data := blocks[blk-first]
		blkStart := blk * bs
		lo := max(blkStart, off)
		hi := min(blkStart+int64(len(data)), end)
		if hi <= lo {
			break
		}
		total += copy(p[lo-off:hi-off], data[lo-blkStart:hi-blkStart])
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fetch returns blocks first..last, loading missing runs in parallel.
func (b *CachingBlob) fetch(ctx context.Context, first, last int64) ([][]byte, error) {
	blocks := make([][]byte, last-first+1)
	type run struct{ start, count int64 }
	var missing []run
	for blk := first; blk <= last; blk++ {
		if data, ok := b.store.cache.Get(b.key(blk)); ok {
			blocks[blk-first] = data
			continue
		}
		if n := len(missing); n > 0 && missing[n-1].start+missing[n-1].count == blk {
			missing[n-1].count++
		} else {
			missing = append(missing, run{start: blk, count: 1})
		}
	}
	if len(missing) == 0 {
		return blocks, nil
	}

	bs := b.store.blockSize
	size := b.Size()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.store.fetchers)
	for _, r := range missing {
		g.Go(func() error {
			start := r.start * bs
			buf := make([]byte, min(r.count*bs, size-start))
			n, err := b.inner.ReadAt(gctx, buf, start)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]
			for i := range r.count {
				lo := i * bs
				if lo >= int64(len(buf)) {
					break
				}
				// Copy so a cached block does not pin the whole run buffer.
				data := append([]byte(nil), buf[lo:min(lo+bs, int64(len(buf)))]...)
				b.store.cache.Set(b.key(r.start+i), data)
				blocks[r.start+i-first] = data
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

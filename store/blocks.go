package store

import (
	"context"
	"fmt"

	"github.com/hupe1980/gtstore/blobstore"
	"github.com/hupe1980/gtstore/internal/blockcodec"
	"github.com/hupe1980/gtstore/internal/cache"
	"github.com/hupe1980/gtstore/internal/manifest"
	"github.com/hupe1980/gtstore/matrix"
)

// block returns block b of a taxon column, loading it through the cache. A
// miss schedules look-ahead prefetches of the following blocks.
func (s *Store) block(kind cache.Kind, id uint64, b int) ([]byte, error) {
	if s.closed.Load() {
		return nil, matrix.ErrClosed
	}
	key := cache.Key{Kind: kind, Namespace: id, Block: uint64(b)}
	blk, loaded, err := s.genotypes.GetOrLoad(s.ctx, key, func(context.Context) ([]byte, error) {
		return s.fetch(key)
	})
	s.metrics.OnCacheAccess(kind.String(), !loaded)
	if err != nil {
		return nil, err
	}
	if loaded {
		s.log.Debug("block miss", "kind", kind.String(), "taxon", id, "block", b)
		s.prefetch(kind, id, b)
	}
	return blk, nil
}

// fetch reads one block from the container. Concurrent fetches of the same
// block share one read.
func (s *Store) fetch(key cache.Key) ([]byte, error) {
	v, err, _ := s.flight.Do(flightKey(key), func() (any, error) {
		s.inflight.Store(key, struct{}{})
		defer s.inflight.Delete(key)
		return s.readBlock(s.ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func flightKey(k cache.Key) string {
	return fmt.Sprintf("%d/%d/%d", k.Kind, k.Namespace, k.Block)
}

func (s *Store) blockName(key cache.Key) string {
	switch key.Kind {
	case cache.KindDepth:
		return depthBlockName(key.Namespace, int(key.Block))
	case cache.KindAnnotation:
		return descriptorBlockName(key.Namespace, int(key.Block))
	default:
		return genotypeBlockName(key.Namespace, int(key.Block))
	}
}

// readBlock reads and decodes one block, bypassing the cache.
func (s *Store) readBlock(ctx context.Context, key cache.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, matrix.ErrClosed
	}
	name := s.blockName(key)
	frame, err := s.readBlob(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := blockcodec.Decode(frame)
	if err != nil {
		return nil, ioError("decode", name, err)
	}
	if key.Kind == cache.KindGenotype && len(data) != s.blockLen(int(key.Block)) {
		return nil, ioError("decode", name, fmt.Errorf("%w: block holds %d sites, want %d", matrix.ErrConsistency, len(data), s.blockLen(int(key.Block))))
	}
	return data, nil
}

// depthBlock returns depth block b of a taxon, checked against the allele
// rows and the site span of the block.
func (s *Store) depthBlock(info manifest.TaxonInfo, b int) ([]byte, error) {
	blk, err := s.block(cache.KindDepth, info.ID, b)
	if err != nil {
		return nil, err
	}
	if err := s.checkDepth(info, b, blk); err != nil {
		return nil, err
	}
	return blk, nil
}

func (s *Store) checkDepth(info manifest.TaxonInfo, b int, blk []byte) error {
	if want := int(info.DepthAlleles) * s.blockLen(b) * 2; len(blk) != want {
		return ioError("decode", depthBlockName(info.ID, b),
			fmt.Errorf("%w: depth block has %d bytes, want %d", matrix.ErrConsistency, len(blk), want))
	}
	return nil
}

// readBlob reads a whole blob under the I/O lock.
func (s *Store) readBlob(ctx context.Context, name string) ([]byte, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	frame, err := blobstore.ReadAll(ctx, s.blobs, name)
	if err != nil {
		return nil, ioError("read", name, err)
	}
	return frame, nil
}

// writeBlob compresses data and stores it under the I/O lock.
func (s *Store) writeBlob(ctx context.Context, name string, data []byte) error {
	frame, err := blockcodec.Encode(data, s.opts.compression)
	if err != nil {
		return err
	}
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	if err := s.blobs.Put(ctx, name, frame); err != nil {
		return ioError("write", name, err)
	}
	return nil
}

func (s *Store) deleteBlob(ctx context.Context, name string) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	return s.blobs.Delete(ctx, name)
}

func (s *Store) listBlobs(ctx context.Context, prefix string) ([]string, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	return s.blobs.List(ctx, prefix)
}

func (s *Store) prefetch(kind cache.Kind, id uint64, b int) {
	for k := b + 1; k <= b+s.opts.lookAhead && k < s.nBlocks; k++ {
		key := cache.Key{Kind: kind, Namespace: id, Block: uint64(k)}
		if s.genotypes.Contains(key) {
			continue
		}
		if _, busy := s.inflight.Load(key); busy {
			continue
		}
		// Prefetches never wait for the I/O budget.
		ok := s.rc.TryAcquireIO(s.blockSize) && s.rc.TryGo(func() {
			data, err := s.fetch(key)
			if err != nil {
				s.log.Debug("prefetch failed", "kind", kind.String(), "taxon", id, "block", k, "error", err)
				s.metrics.OnPrefetch(PrefetchFailed)
				return
			}
			s.genotypes.Set(key, data)
		})
		if !ok {
			s.log.Debug("prefetch dropped", "kind", kind.String(), "taxon", id, "block", k)
			s.metrics.OnPrefetch(PrefetchDropped)
			continue
		}
		s.metrics.OnPrefetch(PrefetchScheduled)
	}
}

package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/gtstore/internal/blockcodec"
	"github.com/hupe1980/gtstore/internal/cache"
	"github.com/hupe1980/gtstore/internal/manifest"
	"github.com/hupe1980/gtstore/internal/workerpool"
	"github.com/hupe1980/gtstore/matrix"
)

// Rebuild recomputes the descriptor of every site and the summary of every
// taxon from the genotype blocks, persists them under a new generation and
// marks the store clean. Blocks are processed in parallel; the whole run is
// bounded by the rebuild timeout and fails with matrix.ErrTimeout when it
// expires. A failed rebuild leaves the store dirty.
func (s *Store) Rebuild(ctx context.Context) (err error) {
	if s.closed.Load() {
		return matrix.ErrClosed
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	began := time.Now()
	defer func() {
		s.metrics.OnRebuild(time.Since(began), s.nBlocks, err)
	}()

	// A rebuild holds one background slot, so prefetching backs off while it
	// runs.
	if err := s.rc.AcquireBackground(ctx); err != nil {
		return err
	}
	defer s.rc.ReleaseBackground()

	next, err := s.nextManifest()
	if err != nil {
		return err
	}
	need := s.columnBytes(next.Taxa)
	if limit := s.rc.MemoryLimit(); limit > 0 {
		if need > limit {
			return fmt.Errorf("%w: rebuild needs %d bytes per block, memory limit is %d", matrix.ErrInvalidArgument, need, limit)
		}
		// Columns are read past the cache; its share of the budget goes to the
		// workers.
		s.genotypes.Purge()
	}
	prevGen := next.AnnotationGen
	gen := prevGen + 1

	var (
		mu        sync.Mutex
		sums      = make([]TaxonSummary, len(next.Taxa))
		annotated = make([]bool, s.nBlocks)
	)
	cfg := workerpool.Config{Workers: s.opts.workers, Timeout: s.opts.rebuildTimeout}
	err = workerpool.Run(ctx, cfg, s.nBlocks, func(ctx context.Context, b int) error {
		if err := s.rc.AcquireMemory(ctx, need); err != nil {
			return err
		}
		defer s.rc.ReleaseMemory(need)

		cols, err := s.readColumns(ctx, next.Taxa, b)
		if err != nil {
			return err
		}
		local := make([]TaxonSummary, len(next.Taxa))
		anns := annotateBlock(cols, local)

		mu.Lock()
		for t, sum := range local {
			sums[t].Heterozygous += sum.Heterozygous
			sums[t].NotMissing += sum.NotMissing
			sums[t].Depth += sum.Depth
		}
		mu.Unlock()

		if !hasCalls(anns) {
			return nil
		}
		if err := s.writeBlob(ctx, descriptorBlockName(gen, b), encodeDescriptors(anns)); err != nil {
			return err
		}
		annotated[b] = true
		return nil
	})
	if err != nil {
		s.dropGeneration(ctx, gen)
		s.log.Warn("rebuild failed", "generation", gen, "error", err)
		return err
	}

	bm := roaring.New()
	for b, ok := range annotated {
		if ok {
			start, end := s.blockRange(b)
			bm.AddRange(uint64(start), uint64(end))
		}
	}
	data, err := encodeAnnotated(bm)
	if err != nil {
		return err
	}
	if err := s.writeBlob(ctx, annotatedName(gen), data); err != nil {
		s.dropGeneration(ctx, gen)
		return err
	}

	ids := make([]uint64, len(next.Taxa))
	byID := make(map[uint64]TaxonSummary, len(next.Taxa))
	for t, info := range next.Taxa {
		ids[t] = info.ID
		byID[info.ID] = sums[t]
	}
	if err := s.writeBlob(ctx, summaryName(gen), encodeSummaries(ids, sums)); err != nil {
		s.dropGeneration(ctx, gen)
		return err
	}

	next.AnnotationGen = gen
	next.AnnotatedPath = annotatedName(gen)
	next.SummaryPath = summaryName(gen)
	next.Clean = true
	if err := s.save(ctx, next); err != nil {
		s.dropGeneration(ctx, gen)
		return err
	}
	s.installClean(next, bm, byID)

	s.collect(ctx, prevGen, next.ID)
	s.log.Info("rebuild complete",
		"generation", gen,
		"taxa", len(next.Taxa),
		"blocks", s.nBlocks,
		"annotated_sites", bm.GetCardinality(),
		"duration", time.Since(began),
	)
	return nil
}

// installClean makes a rebuilt manifest live together with its derived state.
func (s *Store) installClean(man *manifest.Manifest, bm *roaring.Bitmap, sums map[uint64]TaxonSummary) {
	byName := make(map[string]int, len(man.Taxa))
	for i, t := range man.Taxa {
		byName[t.Name] = i
	}
	s.mu.Lock()
	s.man = man
	s.byName = byName
	s.annotated = bm
	s.summaries = sums
	s.mu.Unlock()
	s.invalidateAnnotations()
}

// columnBytes bounds the decoded genotype and depth bytes of one block.
func (s *Store) columnBytes(taxa []manifest.TaxonInfo) int64 {
	var n int64
	for _, t := range taxa {
		n += int64(s.blockSize) * (1 + 2*int64(t.DepthAlleles))
	}
	return n
}

// readColumns reads block b of every taxon directly from the container. Bulk
// reads are throttled by the I/O limit and bypass the cache.
func (s *Store) readColumns(ctx context.Context, taxa []manifest.TaxonInfo, b int) (blockColumns, error) {
	cols := blockColumns{
		n:     s.blockLen(b),
		taxa:  taxa,
		geno:  make([][]byte, len(taxa)),
		depth: make([][]byte, len(taxa)),
	}
	for t, info := range taxa {
		g, err := s.readThrottled(ctx, cache.Key{Kind: cache.KindGenotype, Namespace: info.ID, Block: uint64(b)})
		if err != nil {
			return cols, err
		}
		cols.geno[t] = g
		if info.DepthAlleles == 0 {
			continue
		}
		d, err := s.readThrottled(ctx, cache.Key{Kind: cache.KindDepth, Namespace: info.ID, Block: uint64(b)})
		if err != nil {
			return cols, err
		}
		if err := s.checkDepth(info, b, d); err != nil {
			return cols, err
		}
		cols.depth[t] = d
	}
	return cols, nil
}

func (s *Store) readThrottled(ctx context.Context, key cache.Key) ([]byte, error) {
	name := s.blockName(key)
	frame, err := s.readBlob(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.rc.AcquireIO(ctx, len(frame)); err != nil {
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

// dropGeneration deletes the derived blobs of an uncommitted generation.
func (s *Store) dropGeneration(ctx context.Context, gen uint64) {
	ctx = context.WithoutCancel(ctx)
	names, err := s.listBlobs(ctx, descriptorPrefix(gen))
	if err != nil {
		s.log.Warn("list descriptors", "generation", gen, "error", err)
	}
	names = append(names, annotatedName(gen), summaryName(gen))
	for _, name := range names {
		if err := s.deleteBlob(ctx, name); err != nil {
			s.log.Warn("delete descriptor", "name", name, "error", err)
		}
	}
}

// collect deletes derived blobs older than keep and manifests older than the
// one preceding current. The previous manifest stays loadable.
func (s *Store) collect(ctx context.Context, keep, current uint64) {
	ctx = context.WithoutCancel(ctx)
	var names []string
	for _, prefix := range []string{"sites/", "taxa/summary-"} {
		found, err := s.listBlobs(ctx, prefix)
		if err != nil {
			s.log.Warn("list derived blobs", "prefix", prefix, "error", err)
			return
		}
		names = append(names, found...)
	}
	for _, name := range names {
		gen, ok := generationOf(name)
		if !ok || gen >= keep {
			continue
		}
		if err := s.deleteBlob(ctx, name); err != nil {
			s.log.Warn("delete derived blob", "name", name, "error", err)
		}
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	versions, err := s.manifests.ListVersions(ctx)
	if err != nil {
		s.log.Warn("list manifests", "error", err)
		return
	}
	for _, v := range versions {
		if v+1 >= current {
			continue
		}
		if err := s.manifests.DeleteVersion(ctx, v); err != nil {
			s.log.Warn("delete manifest", "version", v, "error", err)
		}
	}
}

// generationOf parses the generation from the name of a derived blob.
func generationOf(name string) (uint64, bool) {
	var gen uint64
	var block int
	switch {
	case strings.HasPrefix(name, "sites/desc-"):
		if _, err := fmt.Sscanf(name, "sites/desc-%d-%d.blk", &gen, &block); err != nil {
			return 0, false
		}
	case strings.HasPrefix(name, "sites/annotated-"):
		if _, err := fmt.Sscanf(name, "sites/annotated-%d.blk", &gen); err != nil {
			return 0, false
		}
	case strings.HasPrefix(name, "taxa/summary-"):
		if _, err := fmt.Sscanf(name, "taxa/summary-%d.blk", &gen); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	return gen, true
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/gtstore/blobstore"
	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/internal/blockcodec"
	"github.com/hupe1980/gtstore/internal/cache"
	"github.com/hupe1980/gtstore/internal/manifest"
	"github.com/hupe1980/gtstore/internal/resource"
	"github.com/hupe1980/gtstore/matrix"
	"golang.org/x/sync/singleflight"
)

// Store is a mutable genotype matrix backed by a blob container.
type Store struct {
	blobs     blobstore.BlobStore
	manifests *manifest.Store
	opts      options
	log       *slog.Logger
	metrics   MetricsObserver
	rc        *resource.Controller

	sites     *matrix.SiteTable
	codec     genotype.AlleleCodec
	blockSize int
	nBlocks   int

	// ioMu serializes every physical call on the container.
	ioMu sync.Mutex
	// wmu serializes mutations and rebuilds.
	wmu sync.Mutex

	mu        sync.RWMutex
	man       *manifest.Manifest
	byName    map[string]int
	annotated *roaring.Bitmap
	summaries map[uint64]TaxonSummary

	genotypes   *cache.LRU[cache.Key, []byte]
	annotations *cache.LRU[cache.Key, []SiteAnnotation]
	flight      singleflight.Group
	// inflight holds the keys of blocks being read.
	inflight sync.Map

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// Create initializes an empty container with the given sites. It fails if
// blobs already holds a container.
func Create(ctx context.Context, blobs blobstore.BlobStore, spec matrix.SiteSpec, opts ...Option) (*Store, error) {
	o := applyOptions(opts)
	if o.blockSize <= 0 {
		return nil, fmt.Errorf("%w: block size %d", matrix.ErrInvalidArgument, o.blockSize)
	}
	if err := (matrix.Config{MaxNumAlleles: o.maxNumAlleles}).Validate(); err != nil {
		return nil, err
	}
	sites, err := matrix.NewSiteTable(spec)
	if err != nil {
		return nil, err
	}

	ms := manifest.NewStore(blobs)
	if _, err := ms.Load(ctx); err == nil {
		return nil, fmt.Errorf("%w: container already exists", matrix.ErrInvalidArgument)
	} else if !errors.Is(err, manifest.ErrNotFound) {
		return nil, ioError("load manifest", manifest.CurrentFileName, err)
	}

	frame, err := blockcodec.Encode(encodeSites(sites.Spec()), o.compression)
	if err != nil {
		return nil, err
	}
	if err := blobs.Put(ctx, sitesTableName, frame); err != nil {
		return nil, ioError("write", sitesTableName, err)
	}

	man := &manifest.Manifest{
		MaxNumAlleles: o.maxNumAlleles,
		RetainRare:    o.retainRare,
		Codec:         o.codec.Name(),
		BlockSize:     o.blockSize,
		Compression:   uint8(o.compression),
		SiteCount:     sites.SiteCount(),
		SitesPath:     sitesTableName,
		NextTaxonID:   1,
	}
	if tc, ok := o.codec.(*genotype.TextCodec); ok {
		man.CodecAlleles = tc.Alleles()
	}
	if err := ms.Save(ctx, man); err != nil {
		return nil, ioError("commit", manifest.FileName(1), err)
	}

	o.logger.Info("container created", "sites", sites.SiteCount(), "block_size", o.blockSize)
	return newStore(blobs, ms, man, sites, o.codec, o), nil
}

// Open opens an existing container.
func Open(ctx context.Context, blobs blobstore.BlobStore, opts ...Option) (*Store, error) {
	o := applyOptions(opts)
	ms := manifest.NewStore(blobs)
	man, err := ms.Load(ctx)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("open container: %w", err)
		}
		return nil, ioError("load manifest", manifest.CurrentFileName, err)
	}

	codec, err := genotype.CodecByName(man.Codec, man.CodecAlleles)
	if err != nil {
		return nil, err
	}
	data, err := readFrame(ctx, blobs, man.SitesPath)
	if err != nil {
		return nil, err
	}
	spec, err := decodeSites(data)
	if err != nil {
		return nil, ioError("decode", man.SitesPath, err)
	}
	sites, err := matrix.NewSiteTable(spec)
	if err != nil {
		return nil, err
	}
	if sites.SiteCount() != man.SiteCount || man.BlockSize <= 0 {
		return nil, ioError("open", man.SitesPath, fmt.Errorf("site table has %d sites, manifest %d", sites.SiteCount(), man.SiteCount))
	}

	s := newStore(blobs, ms, man, sites, codec, o)
	if man.Clean {
		if err := s.loadAnnotationState(ctx, man); err != nil {
			s.Close()
			return nil, err
		}
	}
	o.logger.Info("container opened", "manifest", man.ID, "taxa", len(man.Taxa), "sites", sites.SiteCount(), "clean", man.Clean)
	return s, nil
}

func newStore(blobs blobstore.BlobStore, ms *manifest.Store, man *manifest.Manifest, sites *matrix.SiteTable, codec genotype.AlleleCodec, o options) *Store {
	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		MaxBackgroundTasks: int64(max(1, o.maxPrefetches)),
		IOLimitBytesPerSec: o.ioLimit,
	})
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		blobs:       blobs,
		manifests:   ms,
		opts:        o,
		log:         o.logger,
		metrics:     o.metrics,
		rc:          rc,
		sites:       sites,
		codec:       codec,
		blockSize:   man.BlockSize,
		nBlocks:     (sites.SiteCount() + man.BlockSize - 1) / man.BlockSize,
		annotated:   roaring.New(),
		summaries:   map[uint64]TaxonSummary{},
		genotypes:   cache.NewLRUBlockCache(int64(o.cacheBlocks)*int64(man.BlockSize), rc),
		annotations: cache.NewLRU[cache.Key, []SiteAnnotation](int64(max(1, o.annotationBlocks)), nil, nil),
		ctx:         ctx,
		cancel:      cancel,
	}
	s.install(man)
	return s
}

// install makes man the live manifest. Callers hold no lock.
func (s *Store) install(man *manifest.Manifest) {
	byName := make(map[string]int, len(man.Taxa))
	for i, t := range man.Taxa {
		byName[t.Name] = i
	}
	s.mu.Lock()
	s.man = man
	s.byName = byName
	s.mu.Unlock()
}

func (s *Store) loadAnnotationState(ctx context.Context, man *manifest.Manifest) error {
	bm := roaring.New()
	if man.AnnotatedPath != "" {
		data, err := readFrame(ctx, s.blobs, man.AnnotatedPath)
		if err != nil {
			return err
		}
		if bm, err = decodeAnnotated(data); err != nil {
			return ioError("decode", man.AnnotatedPath, err)
		}
	}
	sums := map[uint64]TaxonSummary{}
	if man.SummaryPath != "" {
		data, err := readFrame(ctx, s.blobs, man.SummaryPath)
		if err != nil {
			return err
		}
		if sums, err = decodeSummaries(data); err != nil {
			return ioError("decode", man.SummaryPath, err)
		}
	}
	s.mu.Lock()
	s.annotated = bm
	s.summaries = sums
	s.mu.Unlock()
	return nil
}

// Close stops prefetching and releases the caches. The backing store is not
// closed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	s.rc.Wait()
	s.invalidateAll()
	return errors.Join(s.genotypes.Close(), s.annotations.Close())
}

// Dirty reports whether derived annotations are stale.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.man.Clean
}

// BlockSize returns the number of sites per block.
func (s *Store) BlockSize() int { return s.blockSize }

// Config returns the matrix configuration recorded in the container.
func (s *Store) Config() matrix.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matrix.Config{
		MaxNumAlleles: s.man.MaxNumAlleles,
		RetainRare:    s.man.RetainRare,
		Workers:       s.opts.workers,
		BuildTimeout:  s.opts.rebuildTimeout,
		Codec:         s.codec,
		Logger:        s.log,
	}
}

// Codec returns the allele codec of the container.
func (s *Store) Codec() genotype.AlleleCodec { return s.codec }

// ToBitMatrix materializes the store into an immutable BitMatrix.
func (s *Store) ToBitMatrix(ctx context.Context, layout matrix.Layout) (*matrix.BitMatrix, error) {
	cfg := s.Config()
	cfg.Layout = layout
	return matrix.Materialize(ctx, s, cfg)
}

// Stats reports cache statistics.
type Stats struct {
	GenotypeHits     int64
	GenotypeMisses   int64
	AnnotationHits   int64
	AnnotationMisses int64
	CachedBytes      int64
}

// Stats returns a snapshot of the cache counters.
func (s *Store) Stats() Stats {
	var st Stats
	st.GenotypeHits, st.GenotypeMisses = s.genotypes.Stats()
	st.AnnotationHits, st.AnnotationMisses = s.annotations.Stats()
	st.CachedBytes = s.rc.MemoryUsage()
	return st
}

// Taxa returns the taxon names in order.
func (s *Store) Taxa() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.man.Taxa))
	for i, t := range s.man.Taxa {
		names[i] = t.Name
	}
	return names
}

func (s *Store) TaxonCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.man.Taxa)
}

func (s *Store) TaxonName(taxon int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.man.Taxa[taxon].Name
}

// TaxonIndex returns the index of the named taxon, or -1.
func (s *Store) TaxonIndex(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byName[name]; ok {
		return i
	}
	return -1
}

func (s *Store) taxon(taxon int) (manifest.TaxonInfo, error) {
	if s.closed.Load() {
		return manifest.TaxonInfo{}, matrix.ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := matrix.CheckTaxon(taxon, len(s.man.Taxa)); err != nil {
		return manifest.TaxonInfo{}, err
	}
	return s.man.Taxa[taxon], nil
}

func (s *Store) SiteCount() int               { return s.sites.SiteCount() }
func (s *Store) SiteTable() *matrix.SiteTable { return s.sites }
func (s *Store) Locus(site int) matrix.Locus  { return s.sites.Locus(site) }
func (s *Store) Loci() []matrix.Locus         { return s.sites.Loci() }
func (s *Store) LociOffsets() []int           { return s.sites.LociOffsets() }
func (s *Store) Position(site int) int32      { return s.sites.Position(site) }
func (s *Store) SiteName(site int) string     { return s.sites.SiteName(site) }

// SiteOfPosition needs the sorted position index, which is only trusted on a
// clean store.
func (s *Store) SiteOfPosition(position int32, locus string, snpID string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.sites.SiteOfPosition(position, locus, snpID)
}

var _ matrix.Readier = (*Store)(nil)

// Ready reports ErrNotReady while the store is dirty and ErrClosed after Close.
func (s *Store) Ready() error { return s.ready() }

func (s *Store) ready() error {
	if s.closed.Load() {
		return matrix.ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.man.Clean {
		return matrix.ErrNotReady
	}
	return nil
}

func (s *Store) Base(taxon, site int) (byte, error) {
	info, err := s.taxon(taxon)
	if err != nil {
		return genotype.Unknown, err
	}
	if err := matrix.CheckSite(site, s.sites.SiteCount()); err != nil {
		return genotype.Unknown, err
	}
	blk, err := s.block(cache.KindGenotype, info.ID, site/s.blockSize)
	if err != nil {
		return genotype.Unknown, err
	}
	return blk[site%s.blockSize], nil
}

func (s *Store) BaseArray(taxon, site int) ([2]genotype.AlleleCode, error) {
	g, err := s.Base(taxon, site)
	if err != nil {
		return [2]genotype.AlleleCode{genotype.UnknownAllele, genotype.UnknownAllele}, err
	}
	return genotype.UnpackArray(g), nil
}

// BaseString renders the call at (taxon, site) with the container's codec.
func (s *Store) BaseString(taxon, site int) (string, error) {
	g, err := s.Base(taxon, site)
	if err != nil {
		return "", err
	}
	return s.codec.String(g), nil
}

func (s *Store) BaseRow(taxon int) ([]byte, error) {
	return s.BaseRange(taxon, 0, s.sites.SiteCount())
}

func (s *Store) BaseRange(taxon, start, end int) ([]byte, error) {
	info, err := s.taxon(taxon)
	if err != nil {
		return nil, err
	}
	if err := matrix.CheckRange(start, end, s.sites.SiteCount()); err != nil {
		return nil, err
	}
	out := make([]byte, 0, end-start)
	for site := start; site < end; {
		b := site / s.blockSize
		blk, err := s.block(cache.KindGenotype, info.ID, b)
		if err != nil {
			return nil, err
		}
		from := site - b*s.blockSize
		to := min(end-b*s.blockSize, len(blk))
		out = append(out, blk[from:to]...)
		site = b*s.blockSize + to
	}
	return out, nil
}

// Depth returns the per-allele read depth of taxon at site, indexed by allele
// code. It returns nil for taxa added without depth.
func (s *Store) Depth(taxon, site int) ([]uint16, error) {
	info, err := s.taxon(taxon)
	if err != nil {
		return nil, err
	}
	if err := matrix.CheckSite(site, s.sites.SiteCount()); err != nil {
		return nil, err
	}
	if info.DepthAlleles == 0 {
		return nil, nil
	}
	b := site / s.blockSize
	blk, err := s.depthBlock(info, b)
	if err != nil {
		return nil, err
	}
	n := s.blockLen(b)
	off := site - b*s.blockSize
	out := make([]uint16, info.DepthAlleles)
	for a := range out {
		i := (a*n + off) * 2
		out[a] = uint16(blk[i]) | uint16(blk[i+1])<<8
	}
	return out, nil
}

func (s *Store) blockLen(b int) int {
	return min(s.blockSize, s.sites.SiteCount()-b*s.blockSize)
}

func (s *Store) blockRange(b int) (int, int) {
	start := b * s.blockSize
	return start, start + s.blockLen(b)
}

// TaxonSummary returns the counts of taxon computed by the last rebuild.
func (s *Store) TaxonSummary(taxon int) (TaxonSummary, error) {
	info, err := s.taxon(taxon)
	if err != nil {
		return TaxonSummary{}, err
	}
	if err := s.ready(); err != nil {
		return TaxonSummary{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries[info.ID], nil
}

func (s *Store) TaxonHeterozygousCount(taxon int) (int, error) {
	sum, err := s.TaxonSummary(taxon)
	return sum.Heterozygous, err
}

func (s *Store) TaxonNotMissingCount(taxon int) (int, error) {
	sum, err := s.TaxonSummary(taxon)
	return sum.NotMissing, err
}

// Alleles returns the allele table of site: at most MaxNumAlleles codes in
// rank order.
func (s *Store) Alleles(site int) ([]genotype.AlleleCode, error) {
	a, err := s.Annotation(site)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	n := s.man.MaxNumAlleles
	s.mu.RUnlock()
	return a.Alleles.Table(n), nil
}

func ioError(op, name string, err error) error {
	if errors.Is(err, matrix.ErrIO) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", matrix.ErrIO, op, name, err)
}

func readFrame(ctx context.Context, blobs blobstore.BlobStore, name string) ([]byte, error) {
	frame, err := blobstore.ReadAll(ctx, blobs, name)
	if err != nil {
		return nil, ioError("read", name, err)
	}
	data, err := blockcodec.Decode(frame)
	if err != nil {
		return nil, ioError("decode", name, err)
	}
	return data, nil
}

// taxaSnapshot returns a copy of the live taxon list.
func (s *Store) taxaSnapshot() []manifest.TaxonInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.man.Taxa)
}

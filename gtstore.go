package gtstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/gtstore/blobstore"
	"github.com/hupe1980/gtstore/internal/cache"
	"github.com/hupe1980/gtstore/internal/manifest"
	"github.com/hupe1980/gtstore/matrix"
	"github.com/hupe1980/gtstore/siteindex"
	"github.com/hupe1980/gtstore/store"
	"github.com/hupe1980/gtstore/view"
)

type (
	RawMatrix = matrix.RawMatrix
	SiteSpec  = matrix.SiteSpec
	BitMatrix = matrix.BitMatrix
	Source    = matrix.Source
	Layout    = matrix.Layout
	JoinMode  = view.JoinMode
)

const (
	SiteMajor  = matrix.SiteMajor
	TaxonMajor = matrix.TaxonMajor
	Both       = matrix.Both

	Union     = view.Union
	Intersect = view.Intersect
)

// BuildFromRawMatrix ranks the alleles of every site and packs raw into an
// immutable BitMatrix.
func BuildFromRawMatrix(ctx context.Context, raw *RawMatrix, opts ...Option) (*BitMatrix, error) {
	o := applyOptions(opts)
	start := time.Now()
	m, err := matrix.Build(ctx, raw, o.cfg)
	d := time.Since(start)
	o.logger.LogBuild(ctx, len(raw.Taxa), len(raw.Positions), d, err)
	o.metrics.RecordBuild(len(raw.Taxa), len(raw.Positions), d, err)
	return m, err
}

// Backend selects the blob store that holds a mutable container.
type Backend struct {
	name   string
	blobs  blobstore.BlobStore
	remote bool
}

// Local keeps the container in a directory.
func Local(dir string) Backend {
	return Backend{name: dir, blobs: blobstore.NewLocalStore(dir)}
}

// Remote keeps the container in an object store such as s3, minio or gcs.
// Reads go through an in-memory byte-range cache, optionally backed by a
// cache directory (WithCacheDir).
func Remote(blobs blobstore.BlobStore) Backend {
	return Backend{name: "remote", blobs: blobs, remote: true}
}

// Memory keeps the container in memory. It is lost on Close.
func Memory() Backend {
	return Backend{name: "memory", blobs: blobstore.NewMemoryStore()}
}

// resolve wraps a remote backend with its read cache.
func (b Backend) resolve(o options) (blobstore.BlobStore, cache.BlockCache, error) {
	if b.blobs == nil {
		return nil, nil, fmt.Errorf("%w: empty backend", ErrInvalidArgument)
	}
	if !b.remote {
		return b.blobs, nil, nil
	}
	var c cache.BlockCache = cache.NewShardedBlockCache(o.remoteCacheBytes, nil)
	if o.cacheDir != "" {
		disk, err := cache.NewDiskBlockCache(cache.DiskCacheConfig{
			RootDir:      o.cacheDir,
			MaxSizeBytes: o.cacheDirBytes,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: cache dir: %w", ErrIO, err)
		}
		c = &cache.Tiered{L1: c, L2: disk}
	}
	cs := blobstore.NewCachingStore(b.blobs, c, 0).Bypass(manifest.CurrentFileName)
	return cs, c, nil
}

// MutableStore is a store.Store that logs its mutations and reports them to
// the facade metrics collector.
type MutableStore struct {
	*store.Store

	log     *Logger
	metrics MetricsCollector
	cache   cache.BlockCache
}

// CreateMutableStore creates an empty container with the given sites.
func CreateMutableStore(ctx context.Context, backend Backend, sites SiteSpec, opts ...Option) (*MutableStore, error) {
	return openMutable(ctx, backend, opts, func(blobs blobstore.BlobStore, so []store.Option) (*store.Store, error) {
		return store.Create(ctx, blobs, sites, so...)
	})
}

// OpenMutableStore opens an existing container.
func OpenMutableStore(ctx context.Context, backend Backend, opts ...Option) (*MutableStore, error) {
	return openMutable(ctx, backend, opts, func(blobs blobstore.BlobStore, so []store.Option) (*store.Store, error) {
		return store.Open(ctx, blobs, so...)
	})
}

func openMutable(ctx context.Context, backend Backend, opts []Option, open func(blobstore.BlobStore, []store.Option) (*store.Store, error)) (*MutableStore, error) {
	o := applyOptions(opts)
	o.logger = o.logger.WithContainer(backend.name)
	blobs, c, err := backend.resolve(o)
	if err != nil {
		return nil, err
	}
	st, err := open(blobs, o.storeOptions())
	if err != nil {
		if c != nil {
			_ = c.Close()
		}
		return nil, err
	}
	return &MutableStore{Store: st, log: o.logger, metrics: o.metrics, cache: c}, nil
}

// AddTaxon appends a taxon. See store.Store.AddTaxon.
func (m *MutableStore) AddTaxon(ctx context.Context, name string, genotypes []byte, depth [][]uint16) (int, error) {
	start := time.Now()
	idx, err := m.Store.AddTaxon(ctx, name, genotypes, depth)
	m.log.LogMutation(ctx, "add", name, err)
	m.metrics.RecordMutation("add", time.Since(start), err)
	return idx, err
}

// RemoveTaxon removes the taxon at index.
func (m *MutableStore) RemoveTaxon(ctx context.Context, index int) error {
	start := time.Now()
	name := ""
	if index >= 0 && index < m.TaxonCount() {
		name = m.TaxonName(index)
	}
	err := m.Store.RemoveTaxon(ctx, index)
	m.log.LogMutation(ctx, "remove", name, err)
	m.metrics.RecordMutation("remove", time.Since(start), err)
	return err
}

// RenameTaxon renames the taxon at index.
func (m *MutableStore) RenameTaxon(ctx context.Context, index int, name string) error {
	start := time.Now()
	err := m.Store.RenameTaxon(ctx, index, name)
	m.log.LogMutation(ctx, "rename", name, err)
	m.metrics.RecordMutation("rename", time.Since(start), err)
	return err
}

// Rebuild recomputes the derived annotations and marks the store clean.
func (m *MutableStore) Rebuild(ctx context.Context) error {
	start := time.Now()
	err := m.Store.Rebuild(ctx)
	d := time.Since(start)
	m.log.LogRebuild(ctx, m.TaxonCount(), d, err)
	m.metrics.RecordRebuild(d, err)
	return err
}

// ExportSiteIndex writes a SQLite sidecar describing every site. The store
// must be clean.
func (m *MutableStore) ExportSiteIndex(ctx context.Context, path string) error {
	return siteindex.Export(ctx, path, m.Store, m.Codec())
}

// Close closes the store and its remote read cache.
func (m *MutableStore) Close() error {
	err := m.Store.Close()
	if m.cache != nil {
		err = errors.Join(err, m.cache.Close())
	}
	return err
}

// FilterTaxa restricts base to the named taxa, in the given order. With
// retainUnknown, names missing from base are kept as all-missing rows.
func FilterTaxa(base Source, names []string, retainUnknown bool) (*view.Filter, error) {
	return view.FilterTaxa(base, names, retainUnknown)
}

// FilterSites restricts base to the given site indices.
func FilterSites(base Source, sites []int) (*view.Filter, error) {
	return view.FilterSites(base, sites)
}

// FilterSiteRange restricts base to sites first..last inclusive.
func FilterSiteRange(base Source, first, last int) (*view.Filter, error) {
	return view.FilterSiteRange(base, first, last)
}

// Combine concatenates sources with the same taxa along the site axis.
func Combine(parts ...Source) (*view.Combined, error) {
	return view.Combine(parts...)
}

// Join concatenates sources along the site axis, taking the union or
// intersection of their taxa.
func Join(mode JoinMode, parts ...Source) (*view.Combined, error) {
	return view.Join(mode, parts...)
}

// Project imputes taxa from donor pairs of base along breakpoint intervals.
func Project(base Source, taxa []string, breakpoints [][]view.Breakpoint) (*view.Projection, error) {
	return view.Project(base, taxa, breakpoints)
}

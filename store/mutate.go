package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/gtstore/internal/manifest"
	"github.com/hupe1980/gtstore/matrix"
	"golang.org/x/sync/errgroup"
)

// MaxDepthAlleles bounds the allele rows of a depth matrix.
const MaxDepthAlleles = 16

// AddTaxon appends a taxon with one diploid call per site. depth is optional;
// when given it holds one row of per-site read counts per allele code. The
// store becomes dirty. It returns the index of the new taxon.
func (s *Store) AddTaxon(ctx context.Context, name string, genotypes []byte, depth [][]uint16) (int, error) {
	if s.closed.Load() {
		return -1, matrix.ErrClosed
	}
	n := s.sites.SiteCount()
	if name == "" {
		return -1, fmt.Errorf("%w: empty taxon name", matrix.ErrInvalidArgument)
	}
	if len(genotypes) != n {
		return -1, fmt.Errorf("%w: taxon %q has %d calls, want %d", matrix.ErrInvalidArgument, name, len(genotypes), n)
	}
	if len(depth) > MaxDepthAlleles {
		return -1, fmt.Errorf("%w: %d depth rows, at most %d", matrix.ErrInvalidArgument, len(depth), MaxDepthAlleles)
	}
	for a, row := range depth {
		if len(row) != n {
			return -1, fmt.Errorf("%w: depth row %d has %d sites, want %d", matrix.ErrInvalidArgument, a, len(row), n)
		}
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	next, err := s.nextManifest()
	if err != nil {
		return -1, err
	}
	if slices.ContainsFunc(next.Taxa, func(t manifest.TaxonInfo) bool { return t.Name == name }) {
		return -1, fmt.Errorf("%w: duplicate taxon %q", matrix.ErrInvalidArgument, name)
	}
	id := next.NextTaxonID
	next.NextTaxonID++

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.opts.workers))
	for b := range s.nBlocks {
		g.Go(func() error {
			start, end := s.blockRange(b)
			if err := s.writeBlob(gctx, genotypeBlockName(id, b), genotypes[start:end]); err != nil {
				return err
			}
			if len(depth) == 0 {
				return nil
			}
			return s.writeBlob(gctx, depthBlockName(id, b), encodeDepth(depth, start, end))
		})
	}
	if err := g.Wait(); err != nil {
		s.dropTaxonBlobs(ctx, id)
		return -1, err
	}

	next.Taxa = append(next.Taxa, manifest.TaxonInfo{ID: id, Name: name, DepthAlleles: uint8(len(depth))})
	if err := s.commitDirty(ctx, next); err != nil {
		s.dropTaxonBlobs(ctx, id)
		return -1, err
	}
	s.log.Info("taxon added", "name", name, "id", id, "blocks", s.nBlocks, "depth", len(depth) > 0)
	return len(next.Taxa) - 1, nil
}

// RemoveTaxon removes the taxon at index and deletes its blocks. The store
// becomes dirty.
func (s *Store) RemoveTaxon(ctx context.Context, index int) error {
	if s.closed.Load() {
		return matrix.ErrClosed
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	next, err := s.nextManifest()
	if err != nil {
		return err
	}
	if err := matrix.CheckTaxon(index, len(next.Taxa)); err != nil {
		return err
	}
	info := next.Taxa[index]
	next.Taxa = slices.Delete(next.Taxa, index, index+1)
	if err := s.commitDirty(ctx, next); err != nil {
		return err
	}
	dropped := s.invalidateTaxon(info.ID)
	s.dropTaxonBlobs(ctx, info.ID)
	s.log.Info("taxon removed", "name", info.Name, "id", info.ID, "evicted", dropped)
	return nil
}

// RenameTaxon renames the taxon at index. The store becomes dirty.
func (s *Store) RenameTaxon(ctx context.Context, index int, name string) error {
	if s.closed.Load() {
		return matrix.ErrClosed
	}
	if name == "" {
		return fmt.Errorf("%w: empty taxon name", matrix.ErrInvalidArgument)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	next, err := s.nextManifest()
	if err != nil {
		return err
	}
	if err := matrix.CheckTaxon(index, len(next.Taxa)); err != nil {
		return err
	}
	for i, t := range next.Taxa {
		if t.Name == name && i != index {
			return fmt.Errorf("%w: duplicate taxon %q", matrix.ErrInvalidArgument, name)
		}
	}
	old := next.Taxa[index].Name
	next.Taxa[index].Name = name
	if err := s.commitDirty(ctx, next); err != nil {
		return err
	}
	s.log.Info("taxon renamed", "from", old, "to", name)
	return nil
}

func (s *Store) nextManifest() (*manifest.Manifest, error) {
	if s.closed.Load() {
		return nil, matrix.ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.man.Clone(), nil
}

// commitDirty persists next as a dirty manifest and makes it live.
func (s *Store) commitDirty(ctx context.Context, next *manifest.Manifest) error {
	next.Clean = false
	if err := s.save(ctx, next); err != nil {
		return err
	}
	s.install(next)
	s.invalidateAnnotations()
	return nil
}

func (s *Store) save(ctx context.Context, next *manifest.Manifest) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	if err := s.manifests.Save(ctx, next); err != nil {
		return ioError("commit", manifest.FileName(next.ID+1), err)
	}
	return nil
}

// dropTaxonBlobs deletes the blocks of a taxon id. Failures leave orphans
// behind and are only logged.
func (s *Store) dropTaxonBlobs(ctx context.Context, id uint64) {
	ctx = context.WithoutCancel(ctx)
	names, err := s.listBlobs(ctx, taxonPrefix(id))
	if err != nil {
		s.log.Warn("list taxon blocks", "id", id, "error", err)
		return
	}
	for _, name := range names {
		if err := s.deleteBlob(ctx, name); err != nil {
			s.log.Warn("delete taxon block", "name", name, "error", err)
		}
	}
}

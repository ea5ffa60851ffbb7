package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/gtstore/allele"
	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/internal/cache"
	"github.com/hupe1980/gtstore/internal/manifest"
	"github.com/hupe1980/gtstore/matrix"
)

// Annotation returns the derived descriptor of site.
func (s *Store) Annotation(site int) (SiteAnnotation, error) {
	if err := s.ready(); err != nil {
		return SiteAnnotation{}, err
	}
	if err := matrix.CheckSite(site, s.sites.SiteCount()); err != nil {
		return SiteAnnotation{}, err
	}
	b := site / s.blockSize
	anns, err := s.annotationBlock(b)
	if err != nil {
		return SiteAnnotation{}, err
	}
	return anns[site-b*s.blockSize], nil
}

func (s *Store) AllelesSortedByFrequency(site int) (allele.Frequencies, error) {
	a, err := s.Annotation(site)
	if err != nil {
		return nil, err
	}
	return slices.Clone(a.Alleles), nil
}

func (s *Store) HeterozygousCount(site int) (int, error) {
	a, err := s.Annotation(site)
	return a.Heterozygous, err
}

func (s *Store) TotalNotMissing(site int) (int, error) {
	a, err := s.Annotation(site)
	return a.NotMissing, err
}

func (s *Store) MinorAlleleFrequency(site int) (float64, error) {
	a, err := s.Annotation(site)
	return a.MinorAlleleFrequency, err
}

// SiteCoverage returns the summed read depth at site.
func (s *Store) SiteCoverage(site int) (int, error) {
	a, err := s.Annotation(site)
	return a.Coverage, err
}

// AnnotatedSites returns the number of sites with a persisted descriptor.
func (s *Store) AnnotatedSites() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.annotated.GetCardinality()
}

// annotationBlock returns the descriptors of site block b. Blocks persisted by
// the last rebuild are read from the container; the others are recomputed
// from the genotype blocks.
func (s *Store) annotationBlock(b int) ([]SiteAnnotation, error) {
	start, _ := s.blockRange(b)
	s.mu.RLock()
	gen := s.man.AnnotationGen
	persisted := s.annotated.Contains(uint32(start))
	s.mu.RUnlock()

	key := cache.Key{Kind: cache.KindAnnotation, Namespace: gen, Block: uint64(b)}
	anns, loaded, err := s.annotations.GetOrLoad(s.ctx, key, func(ctx context.Context) ([]SiteAnnotation, error) {
		if persisted {
			return s.readDescriptors(ctx, gen, b)
		}
		s.log.Debug("recomputing descriptors", "block", b)
		return s.recomputeBlock(b)
	})
	s.metrics.OnCacheAccess(cache.KindAnnotation.String(), !loaded)
	return anns, err
}

func (s *Store) readDescriptors(ctx context.Context, gen uint64, b int) ([]SiteAnnotation, error) {
	data, err := s.readBlock(ctx, cache.Key{Kind: cache.KindAnnotation, Namespace: gen, Block: uint64(b)})
	if err != nil {
		return nil, err
	}
	anns, err := decodeDescriptors(data)
	if err != nil {
		return nil, ioError("decode", descriptorBlockName(gen, b), err)
	}
	if len(anns) != s.blockLen(b) {
		return nil, ioError("decode", descriptorBlockName(gen, b), fmt.Errorf("%d descriptors, want %d", len(anns), s.blockLen(b)))
	}
	return anns, nil
}

func (s *Store) recomputeBlock(b int) ([]SiteAnnotation, error) {
	taxa := s.taxaSnapshot()
	cols := blockColumns{n: s.blockLen(b), taxa: taxa}
	for _, t := range taxa {
		g, err := s.block(cache.KindGenotype, t.ID, b)
		if err != nil {
			return nil, err
		}
		var d []byte
		if t.DepthAlleles > 0 {
			if d, err = s.depthBlock(t, b); err != nil {
				return nil, err
			}
		}
		cols.geno = append(cols.geno, g)
		cols.depth = append(cols.depth, d)
	}
	return annotateBlock(cols, nil), nil
}

// blockColumns holds the raw columns of every taxon for one site block.
type blockColumns struct {
	n     int
	taxa  []manifest.TaxonInfo
	geno  [][]byte
	depth [][]byte
}

// annotateBlock derives the descriptors of one site block. If sums is non-nil
// the per-taxon counts of the block are added to it.
func annotateBlock(cols blockColumns, sums []TaxonSummary) []SiteAnnotation {
	out := make([]SiteAnnotation, cols.n)
	col := make([]byte, len(cols.geno))
	for site := range cols.n {
		for t, g := range cols.geno {
			col[t] = g[site]
		}
		a := SiteAnnotation{
			Alleles:      allele.Rank(col),
			Heterozygous: allele.HeterozygousCount(col),
			NotMissing:   allele.NotMissingCount(col),
		}
		a.MinorAlleleFrequency = a.Alleles.MinorFrequency()
		for t, d := range cols.depth {
			var depth int
			for r := range int(cols.taxa[t].DepthAlleles) {
				i := (r*cols.n + site) * 2
				depth += int(d[i]) | int(d[i+1])<<8
			}
			a.Coverage += depth
			if sums != nil {
				sums[t].Depth += int64(depth)
			}
		}
		if sums != nil {
			for t, g := range col {
				if genotype.IsHeterozygous(g) {
					sums[t].Heterozygous++
				}
				if g != genotype.Unknown {
					sums[t].NotMissing++
				}
			}
		}
		out[site] = a
	}
	return out
}

// hasCalls reports whether any site of the block has a non-missing call.
func hasCalls(anns []SiteAnnotation) bool {
	return slices.ContainsFunc(anns, func(a SiteAnnotation) bool { return a.NotMissing > 0 })
}

// invalidateTaxon drops every cached block of a taxon id.
func (s *Store) invalidateTaxon(id uint64) int {
	return s.genotypes.Invalidate(func(k cache.Key) bool {
		return k.Namespace == id && (k.Kind == cache.KindGenotype || k.Kind == cache.KindDepth)
	})
}

// invalidateAnnotations drops every cached descriptor block.
func (s *Store) invalidateAnnotations() int {
	return s.annotations.Invalidate(cache.OfKind(cache.KindAnnotation))
}

// invalidateAll drops every cached block.
func (s *Store) invalidateAll() {
	s.genotypes.Purge()
	s.annotations.Purge()
}

package view

import (
	"fmt"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/matrix"
)

// Breakpoint starts a donor interval at a physical position. The interval
// runs until the next breakpoint of the same taxon, or the last site. A donor
// of -1 means no hypothesis: calls in the interval are unknown.
type Breakpoint struct {
	Locus    string
	Position int32
	DonorA   int
	DonorB   int
}

type interval struct {
	start, end     int
	donorA, donorB int
}

// Projection imputes low-density taxa from donor pairs of a high-density base.
// It shares the base's site axis.
type Projection struct {
	base      matrix.Source
	table     *matrix.SiteTable
	names     []string
	taxonIx   map[string]int
	intervals [][]interval

	// current caches the last interval hit per taxon; callers tend to walk a
	// taxon site by site.
	current []atomic.Pointer[interval]
}

var (
	_ matrix.Source     = (*Projection)(nil)
	_ matrix.SiteTabler = (*Projection)(nil)
	_ matrix.Readier    = (*Projection)(nil)
)

// Project builds a projection of taxa over base. breakpoints[i] holds the
// breakpoints of taxa[i] in ascending (locus, position) order.
func Project(base matrix.Source, taxa []string, breakpoints [][]Breakpoint) (*Projection, error) {
	if len(taxa) != len(breakpoints) {
		return nil, fmt.Errorf("%w: %d taxa but %d breakpoint lists", matrix.ErrInvalidArgument, len(taxa), len(breakpoints))
	}
	p := &Projection{
		base:      base,
		names:     slices.Clone(taxa),
		taxonIx:   make(map[string]int, len(taxa)),
		intervals: make([][]interval, len(taxa)),
		current:   make([]atomic.Pointer[interval], len(taxa)),
	}
	var err error
	if p.table, err = matrix.SitesOf(base); err != nil {
		return nil, err
	}
	for i, name := range taxa {
		if _, dup := p.taxonIx[name]; dup {
			return nil, fmt.Errorf("%w: duplicate taxon %q", matrix.ErrInvalidArgument, name)
		}
		p.taxonIx[name] = i
		ivs, err := p.resolve(breakpoints[i])
		if err != nil {
			return nil, fmt.Errorf("taxon %q: %w", name, err)
		}
		p.intervals[i] = ivs
	}
	return p, nil
}

// resolve converts breakpoints to site intervals. A breakpoint between sites
// starts at the next site; an interval emptied by its successor is dropped.
func (p *Projection) resolve(bps []Breakpoint) ([]interval, error) {
	donors := p.base.TaxonCount()
	ivs := make([]interval, 0, len(bps))
	for _, bp := range bps {
		for _, d := range []int{bp.DonorA, bp.DonorB} {
			if d < -1 || d >= donors {
				return nil, fmt.Errorf("%w: donor %d out of range [-1,%d)", matrix.ErrInvalidArgument, d, donors)
			}
		}
		site, err := p.base.SiteOfPosition(bp.Position, bp.Locus, "")
		if err != nil {
			return nil, err
		}
		if site < 0 {
			site = -site - 1
		}
		if n := len(ivs); n > 0 {
			if site < ivs[n-1].start {
				return nil, fmt.Errorf("%w: breakpoint %s:%d out of order", matrix.ErrInvalidArgument, bp.Locus, bp.Position)
			}
			if site == ivs[n-1].start {
				ivs = ivs[:n-1]
			}
		}
		ivs = append(ivs, interval{start: site, donorA: bp.DonorA, donorB: bp.DonorB})
	}
	for i := range ivs {
		if i+1 < len(ivs) {
			ivs[i].end = ivs[i+1].start
		} else {
			ivs[i].end = p.base.SiteCount()
		}
	}
	return ivs, nil
}

// search finds the interval of taxon t containing site s, or nil.
func (p *Projection) search(t, s int) *interval {
	ivs := p.intervals[t]
	i := sort.Search(len(ivs), func(i int) bool { return ivs[i].start > s }) - 1
	if i < 0 || s >= ivs[i].end {
		return nil
	}
	return &ivs[i]
}

func (p *Projection) lookup(t, s int) *interval {
	if iv := p.current[t].Load(); iv != nil && s >= iv.start && s < iv.end {
		return iv
	}
	iv := p.search(t, s)
	if iv != nil {
		p.current[t].Store(iv)
	}
	return iv
}

// Donors returns the donor pair covering site s of taxon t; ok is false when
// there is no hypothesis.
func (p *Projection) Donors(t, s int) (a, b int, ok bool) {
	iv := p.lookup(t, s)
	if iv == nil || iv.donorA < 0 || iv.donorB < 0 {
		return -1, -1, false
	}
	return iv.donorA, iv.donorB, true
}

// Inner returns the donor source.
func (p *Projection) Inner() matrix.Source { return p.base }

func (p *Projection) TaxonCount() int        { return len(p.names) }
func (p *Projection) SiteCount() int         { return p.base.SiteCount() }
func (p *Projection) TaxonName(t int) string { return p.names[t] }

// TaxonIndex returns the index of the named taxon, or -1.
func (p *Projection) TaxonIndex(name string) int {
	if t, ok := p.taxonIx[name]; ok {
		return t
	}
	return -1
}

// SiteTable returns the site table of the base.
func (p *Projection) SiteTable() *matrix.SiteTable { return p.table }

func (p *Projection) Locus(site int) matrix.Locus { return p.base.Locus(site) }
func (p *Projection) Loci() []matrix.Locus        { return p.base.Loci() }
func (p *Projection) LociOffsets() []int          { return p.base.LociOffsets() }
func (p *Projection) Position(site int) int32     { return p.base.Position(site) }
func (p *Projection) SiteName(site int) string    { return p.base.SiteName(site) }

func (p *Projection) SiteOfPosition(position int32, locus string, snpID string) (int, error) {
	return p.base.SiteOfPosition(position, locus, snpID)
}

// Ready forwards the readiness of the donor source.
func (p *Projection) Ready() error { return matrix.CheckReady(p.base) }

// Base merges the donor calls at site s with genotype.CombineNoHets.
func (p *Projection) Base(t, s int) (byte, error) {
	if err := matrix.CheckTaxon(t, p.TaxonCount()); err != nil {
		return genotype.Unknown, err
	}
	if err := matrix.CheckSite(s, p.SiteCount()); err != nil {
		return genotype.Unknown, err
	}
	return p.call(t, s)
}

func (p *Projection) call(t, s int) (byte, error) {
	a, b, ok := p.Donors(t, s)
	if !ok {
		return genotype.Unknown, nil
	}
	ga, err := p.base.Base(a, s)
	if err != nil {
		return genotype.Unknown, err
	}
	gb := ga
	if b != a {
		if gb, err = p.base.Base(b, s); err != nil {
			return genotype.Unknown, err
		}
	}
	return genotype.CombineNoHets(ga, gb), nil
}

func (p *Projection) BaseArray(t, s int) ([2]genotype.AlleleCode, error) {
	g, err := p.Base(t, s)
	return genotype.UnpackArray(g), err
}

func (p *Projection) BaseRow(t int) ([]byte, error) {
	return p.BaseRange(t, 0, p.SiteCount())
}

func (p *Projection) BaseRange(t, start, end int) ([]byte, error) {
	if err := matrix.CheckTaxon(t, p.TaxonCount()); err != nil {
		return nil, err
	}
	if err := matrix.CheckRange(start, end, p.SiteCount()); err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	for s := start; s < end; s++ {
		g, err := p.call(t, s)
		if err != nil {
			return nil, err
		}
		out[s-start] = g
	}
	return out, nil
}

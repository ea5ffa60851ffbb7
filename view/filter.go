package view

import (
	"fmt"
	"slices"

	"github.com/hupe1980/gtstore/allele"
	"github.com/hupe1980/gtstore/bitset"
	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/matrix"
)

// Filter is a taxon and site re-indexing of a base source.
type Filter struct {
	base matrix.Source

	// taxa is nil for the identity; -1 marks an unknown taxon.
	taxa    []int
	names   []string
	taxonIx map[string]int

	// sites is nil for the identity or a range.
	sites  []int
	ranged bool
	first  int

	table *matrix.SiteTable
}

var (
	_ matrix.Source          = (*Filter)(nil)
	_ matrix.FrequencySource = (*Filter)(nil)
	_ matrix.PresenceSource  = (*Filter)(nil)
	_ matrix.SiteTabler      = (*Filter)(nil)
	_ matrix.Readier         = (*Filter)(nil)
)

// FilterTaxa keeps the named taxa in the given order. Names missing from base
// are kept as unknown taxa when retainUnknown is set and dropped otherwise.
func FilterTaxa(base matrix.Source, names []string, retainUnknown bool) (*Filter, error) {
	taxa := make([]int, 0, len(names))
	kept := make([]string, 0, len(names))
	for _, name := range names {
		t := matrix.TaxonIndex(base, name)
		if t < 0 && !retainUnknown {
			continue
		}
		taxa = append(taxa, t)
		kept = append(kept, name)
	}
	return newFilter(base, taxa, kept, nil, false, 0)
}

// FilterTaxaIndices redirects view taxon i to base taxon indices[i]; -1 yields
// an unknown taxon.
func FilterTaxaIndices(base matrix.Source, indices []int) (*Filter, error) {
	for _, t := range indices {
		if t < -1 || t >= base.TaxonCount() {
			return nil, fmt.Errorf("%w: taxon %d out of range [-1,%d)", matrix.ErrInvalidArgument, t, base.TaxonCount())
		}
	}
	return newFilter(base, slices.Clone(indices), nil, nil, false, 0)
}

// FilterSites keeps the given sites in ascending order; duplicates collapse.
func FilterSites(base matrix.Source, indices []int) (*Filter, error) {
	sites := slices.Clone(indices)
	slices.Sort(sites)
	sites = slices.Compact(sites)
	for _, s := range sites {
		if err := matrix.CheckSite(s, base.SiteCount()); err != nil {
			return nil, err
		}
	}
	return newFilter(base, nil, nil, sites, false, 0)
}

// FilterSiteRange keeps sites first through last inclusive.
func FilterSiteRange(base matrix.Source, first, last int) (*Filter, error) {
	if err := matrix.CheckRange(first, last+1, base.SiteCount()); err != nil {
		return nil, err
	}
	sites := make([]int, last-first+1)
	for i := range sites {
		sites[i] = first + i
	}
	return newFilter(base, nil, nil, sites, true, first)
}

// newFilter composes the requested redirection with base when base is itself
// a Filter. sites holds view-site → base-site indices.
func newFilter(base matrix.Source, taxa []int, names []string, sites []int, ranged bool, first int) (*Filter, error) {
	if inner, ok := base.(*Filter); ok {
		if taxa != nil {
			if names == nil {
				names = make([]string, len(taxa))
				for i, t := range taxa {
					if t >= 0 {
						names[i] = inner.TaxonName(t)
					}
				}
			}
			for i, t := range taxa {
				if t >= 0 {
					taxa[i] = inner.baseTaxon(t)
				}
			}
		} else if inner.taxa != nil {
			taxa = slices.Clone(inner.taxa)
			names = slices.Clone(inner.names)
		}
		switch {
		case sites == nil:
			sites, ranged, first = inner.sites, inner.ranged, inner.first
		case inner.sites != nil:
			for i, s := range sites {
				sites[i] = inner.sites[s]
			}
			if ranged && inner.ranged {
				first += inner.first
			} else {
				ranged = false
			}
		}
		base = inner.base
	}

	f := &Filter{base: base, taxa: taxa, sites: sites, ranged: ranged, first: first}
	if taxa != nil {
		if names == nil {
			names = make([]string, len(taxa))
			for i, t := range taxa {
				if t >= 0 {
					names[i] = base.TaxonName(t)
				}
			}
		}
		f.names = names
		f.taxonIx = make(map[string]int, len(names))
		for i, name := range names {
			if _, dup := f.taxonIx[name]; !dup && name != "" {
				f.taxonIx[name] = i
			}
		}
	}

	table, err := matrix.SitesOf(base)
	if err != nil {
		return nil, err
	}
	if sites != nil {
		if ranged {
			table, err = table.Range(first, first+len(sites))
		} else {
			table, err = table.Subset(sites)
		}
		if err != nil {
			return nil, err
		}
	}
	f.table = table
	return f, nil
}

// Inner returns the innermost source.
func (f *Filter) Inner() matrix.Source { return f.base }

// BaseTaxon returns the base index of view taxon t and false for an unknown
// taxon.
func (f *Filter) BaseTaxon(t int) (int, bool) {
	bt := f.baseTaxon(t)
	return bt, bt >= 0
}

// BaseSite returns the base index of view site s.
func (f *Filter) BaseSite(s int) int { return f.baseSite(s) }

func (f *Filter) baseTaxon(t int) int {
	if f.taxa == nil {
		return t
	}
	return f.taxa[t]
}

func (f *Filter) baseSite(s int) int {
	switch {
	case f.ranged:
		return f.first + s
	case f.sites != nil:
		return f.sites[s]
	default:
		return s
	}
}

func (f *Filter) TaxonCount() int {
	if f.taxa == nil {
		return f.base.TaxonCount()
	}
	return len(f.taxa)
}

func (f *Filter) SiteCount() int { return f.table.SiteCount() }

func (f *Filter) TaxonName(t int) string {
	if f.names == nil {
		return f.base.TaxonName(t)
	}
	return f.names[t]
}

// TaxonIndex returns the view index of the named taxon, or -1.
func (f *Filter) TaxonIndex(name string) int {
	if f.taxonIx == nil {
		return matrix.TaxonIndex(f.base, name)
	}
	if t, ok := f.taxonIx[name]; ok {
		return t
	}
	return -1
}

func (f *Filter) SiteTable() *matrix.SiteTable { return f.table }
func (f *Filter) Locus(site int) matrix.Locus  { return f.table.Locus(site) }
func (f *Filter) Loci() []matrix.Locus         { return f.table.Loci() }
func (f *Filter) LociOffsets() []int           { return f.table.LociOffsets() }
func (f *Filter) Position(site int) int32      { return f.table.Position(site) }
func (f *Filter) SiteName(site int) string     { return f.table.SiteName(site) }

// SiteOfPosition looks position up in the view's own site table once the base
// is ready.
func (f *Filter) SiteOfPosition(position int32, locus string, snpID string) (int, error) {
	if err := f.Ready(); err != nil {
		return 0, err
	}
	return f.table.SiteOfPosition(position, locus, snpID)
}

// Ready forwards the readiness of the base.
func (f *Filter) Ready() error { return matrix.CheckReady(f.base) }

func (f *Filter) check(t, s int) error {
	if err := matrix.CheckTaxon(t, f.TaxonCount()); err != nil {
		return err
	}
	return matrix.CheckSite(s, f.SiteCount())
}

// Base returns the call of view taxon t at view site s. Unknown taxa read as
// genotype.Unknown without consulting the base.
func (f *Filter) Base(t, s int) (byte, error) {
	if err := f.check(t, s); err != nil {
		return genotype.Unknown, err
	}
	bt := f.baseTaxon(t)
	if bt < 0 {
		return genotype.Unknown, nil
	}
	return f.base.Base(bt, f.baseSite(s))
}

func (f *Filter) BaseArray(t, s int) ([2]genotype.AlleleCode, error) {
	g, err := f.Base(t, s)
	return genotype.UnpackArray(g), err
}

func (f *Filter) BaseRow(t int) ([]byte, error) {
	return f.BaseRange(t, 0, f.SiteCount())
}

func (f *Filter) BaseRange(t, start, end int) ([]byte, error) {
	if err := matrix.CheckTaxon(t, f.TaxonCount()); err != nil {
		return nil, err
	}
	if err := matrix.CheckRange(start, end, f.SiteCount()); err != nil {
		return nil, err
	}
	bt := f.baseTaxon(t)
	if bt < 0 {
		return unknownRow(end - start), nil
	}
	switch {
	case f.ranged:
		return f.base.BaseRange(bt, f.first+start, f.first+end)
	case f.sites == nil:
		return f.base.BaseRange(bt, start, end)
	}
	if start == end {
		return []byte{}, nil
	}
	lo, hi := f.sites[start], f.sites[end-1]+1
	span, err := f.base.BaseRange(bt, lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	for i := range out {
		out[i] = span[f.sites[start+i]-lo]
	}
	return out, nil
}

func unknownRow(n int) []byte {
	row := make([]byte, n)
	for i := range row {
		row[i] = genotype.Unknown
	}
	return row
}

// AllelesSortedByFrequency delegates to the base when the taxa are not
// filtered and scans the view column otherwise.
func (f *Filter) AllelesSortedByFrequency(s int) (allele.Frequencies, error) {
	if err := matrix.CheckSite(s, f.SiteCount()); err != nil {
		return nil, err
	}
	if f.taxa == nil {
		return matrix.AllelesSortedByFrequency(f.base, f.baseSite(s))
	}
	col, err := matrix.Column(f, s)
	if err != nil {
		return nil, err
	}
	return allele.Rank(col), nil
}

func (f *Filter) HeterozygousCount(s int) (int, error) {
	if err := matrix.CheckSite(s, f.SiteCount()); err != nil {
		return 0, err
	}
	if f.taxa == nil {
		return matrix.HeterozygousCount(f.base, f.baseSite(s))
	}
	col, err := matrix.Column(f, s)
	if err != nil {
		return 0, err
	}
	return allele.HeterozygousCount(col), nil
}

func (f *Filter) TotalNotMissing(s int) (int, error) {
	if err := matrix.CheckSite(s, f.SiteCount()); err != nil {
		return 0, err
	}
	if f.taxa == nil {
		return matrix.TotalNotMissing(f.base, f.baseSite(s))
	}
	col, err := matrix.Column(f, s)
	if err != nil {
		return 0, err
	}
	return allele.NotMissingCount(col), nil
}

// RankSlots returns the rank slots of a bit-packed base, or 0.
func (f *Filter) RankSlots() int {
	if p, ok := f.base.(matrix.PresenceSource); ok {
		return p.RankSlots()
	}
	return 0
}

// SitePresence passes through to the base when the taxa are not filtered.
func (f *Filter) SitePresence(rank, s int) (*bitset.BitSet, error) {
	p, ok := f.base.(matrix.PresenceSource)
	if !ok || f.taxa != nil {
		return nil, fmt.Errorf("%w: site presence of a taxa-filtered view", matrix.ErrUnsupportedAxis)
	}
	if err := matrix.CheckSite(s, f.SiteCount()); err != nil {
		return nil, err
	}
	return p.SitePresence(rank, f.baseSite(s))
}

// TaxonPresence passes through to the base when the sites are not filtered.
func (f *Filter) TaxonPresence(rank, t int) (*bitset.BitSet, error) {
	p, ok := f.base.(matrix.PresenceSource)
	if !ok || f.sites != nil {
		return nil, fmt.Errorf("%w: taxon presence of a site-filtered view", matrix.ErrUnsupportedAxis)
	}
	if err := matrix.CheckTaxon(t, f.TaxonCount()); err != nil {
		return nil, err
	}
	bt := f.baseTaxon(t)
	if bt < 0 {
		return bitset.New(f.SiteCount()), nil
	}
	return p.TaxonPresence(rank, bt)
}

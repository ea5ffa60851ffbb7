package matrix

import (
	"slices"
	"sort"
	"strconv"

	"github.com/hupe1980/gtstore/genotype"
)

// Locus is a contiguous half-open range of sites [Start, End) sharing a name,
// typically one chromosome.
type Locus struct {
	Name  string
	Start int
	End   int
}

// Len returns the number of sites in the locus.
func (l Locus) Len() int { return l.End - l.Start }

// Contains reports whether site falls inside the locus.
func (l Locus) Contains(site int) bool { return site >= l.Start && site < l.End }

// SiteSpec is the raw per-site metadata a SiteTable is built from.
type SiteSpec struct {
	// Loci names the loci in site order; LociOffsets[i] is the first site of Loci[i].
	Loci        []string
	LociOffsets []int
	// Positions holds one physical position per site, nondecreasing within a locus.
	Positions []int32
	// SiteNames is empty or holds one name (SNP id) per site.
	SiteNames []string
	// Reference is empty or holds one reference allele per site.
	Reference []genotype.AlleleCode
}

// SiteTable is the immutable structural description of the site axis.
// Structural accessors panic on out-of-range site indices, like slice indexing.
type SiteTable struct {
	loci      []Locus
	offsets   []int
	positions []int32
	names     []string
	reference []genotype.AlleleCode
	byName    map[string]int
}

// NewSiteTable validates spec and builds a SiteTable. The slices are copied.
func NewSiteTable(spec SiteSpec) (*SiteTable, error) {
	n := len(spec.Positions)
	if len(spec.Loci) != len(spec.LociOffsets) {
		return nil, invalidf("%d loci but %d loci offsets", len(spec.Loci), len(spec.LociOffsets))
	}
	if len(spec.SiteNames) != 0 && len(spec.SiteNames) != n {
		return nil, invalidf("%d site names for %d sites", len(spec.SiteNames), n)
	}
	if len(spec.Reference) != 0 && len(spec.Reference) != n {
		return nil, invalidf("%d reference alleles for %d sites", len(spec.Reference), n)
	}
	if n > 0 && len(spec.Loci) == 0 {
		return nil, invalidf("%d sites but no loci", n)
	}

	t := &SiteTable{
		loci:      make([]Locus, len(spec.Loci)),
		offsets:   slices.Clone(spec.LociOffsets),
		positions: slices.Clone(spec.Positions),
		byName:    make(map[string]int, len(spec.Loci)),
	}
	if len(spec.SiteNames) > 0 {
		t.names = slices.Clone(spec.SiteNames)
	}
	if len(spec.Reference) > 0 {
		t.reference = slices.Clone(spec.Reference)
	}

	for i, name := range spec.Loci {
		start := spec.LociOffsets[i]
		end := n
		if i+1 < len(spec.Loci) {
			end = spec.LociOffsets[i+1]
		}
		switch {
		case i == 0 && start != 0:
			return nil, invalidf("first locus starts at site %d, want 0", start)
		case start >= end:
			return nil, invalidf("locus %q is empty or overlaps its successor (offset %d, next %d)", name, start, end)
		}
		if _, dup := t.byName[name]; dup {
			return nil, invalidf("duplicate locus %q", name)
		}
		t.byName[name] = i
		t.loci[i] = Locus{Name: name, Start: start, End: end}

		for s := start + 1; s < end; s++ {
			if t.positions[s] < t.positions[s-1] {
				return nil, invalidf("locus %q: position %d at site %d precedes %d", name, t.positions[s], s, t.positions[s-1])
			}
		}
	}
	return t, nil
}

// SiteCount returns the number of sites.
func (t *SiteTable) SiteCount() int { return len(t.positions) }

// NumLoci returns the number of loci.
func (t *SiteTable) NumLoci() int { return len(t.loci) }

// Loci returns the loci in site order.
func (t *SiteTable) Loci() []Locus { return slices.Clone(t.loci) }

// LociOffsets returns the first site of every locus.
func (t *SiteTable) LociOffsets() []int { return slices.Clone(t.offsets) }

// Locus returns the locus containing site.
func (t *SiteTable) Locus(site int) Locus {
	_ = t.positions[site]
	return t.loci[sort.SearchInts(t.offsets, site+1)-1]
}

// LocusIndex returns the index of the named locus.
func (t *SiteTable) LocusIndex(name string) (int, bool) {
	i, ok := t.byName[name]
	return i, ok
}

// LocusRange returns the site range of the named locus.
func (t *SiteTable) LocusRange(name string) (start, end int, ok bool) {
	i, ok := t.byName[name]
	if !ok {
		return 0, 0, false
	}
	return t.loci[i].Start, t.loci[i].End, true
}

// Position returns the physical position of site.
func (t *SiteTable) Position(site int) int32 { return t.positions[site] }

// SiteName returns the SNP id of site. Unnamed sites are called
// S<locus>_<position>.
func (t *SiteTable) SiteName(site int) string {
	if t.names != nil {
		return t.names[site]
	}
	return "S" + t.Locus(site).Name + "_" + strconv.Itoa(int(t.positions[site]))
}

// HasSiteNames reports whether explicit SNP ids were supplied.
func (t *SiteTable) HasSiteNames() bool { return t.names != nil }

// ReferenceAllele returns the reference allele of site, or UnknownAllele.
func (t *SiteTable) ReferenceAllele(site int) genotype.AlleleCode {
	if t.reference == nil {
		_ = t.positions[site]
		return genotype.UnknownAllele
	}
	return t.reference[site]
}

// SiteOfPosition binary-searches the sites of locus for position. When several
// sites share the position a non-empty snpID selects among them by name. If no
// site matches, the result is -(insertionPoint)-1 where insertionPoint is the
// global site index at which the position would be inserted.
func (t *SiteTable) SiteOfPosition(position int32, locus string, snpID string) (int, error) {
	li, ok := t.byName[locus]
	if !ok {
		return 0, invalidf("unknown locus %q", locus)
	}
	l := t.loci[li]
	i := l.Start + sort.Search(l.Len(), func(k int) bool {
		return t.positions[l.Start+k] >= position
	})
	if i == l.End || t.positions[i] != position {
		return -i - 1, nil
	}
	if snpID == "" {
		return i, nil
	}
	for s := i; s < l.End && t.positions[s] == position; s++ {
		if t.SiteName(s) == snpID {
			return s, nil
		}
	}
	return -i - 1, nil
}

// Spec returns a copy of the raw metadata, with explicit site names only when
// they were supplied.
func (t *SiteTable) Spec() SiteSpec {
	spec := SiteSpec{
		Loci:        make([]string, len(t.loci)),
		LociOffsets: slices.Clone(t.offsets),
		Positions:   slices.Clone(t.positions),
		SiteNames:   slices.Clone(t.names),
		Reference:   slices.Clone(t.reference),
	}
	for i, l := range t.loci {
		spec.Loci[i] = l.Name
	}
	return spec
}

// Subset returns the table restricted to the given sites, which must be
// strictly ascending and in range.
func (t *SiteTable) Subset(sites []int) (*SiteTable, error) {
	n := t.SiteCount()
	spec := SiteSpec{Positions: make([]int32, len(sites))}
	if t.names != nil {
		spec.SiteNames = make([]string, len(sites))
	}
	if t.reference != nil {
		spec.Reference = make([]genotype.AlleleCode, len(sites))
	}
	last := -1
	for i, s := range sites {
		if s <= last || s >= n {
			return nil, invalidf("site %d out of order or range", s)
		}
		last = s
		spec.Positions[i] = t.positions[s]
		if t.names != nil {
			spec.SiteNames[i] = t.names[s]
		}
		if t.reference != nil {
			spec.Reference[i] = t.reference[s]
		}
		l := t.Locus(s)
		if len(spec.Loci) == 0 || spec.Loci[len(spec.Loci)-1] != l.Name {
			spec.Loci = append(spec.Loci, l.Name)
			spec.LociOffsets = append(spec.LociOffsets, i)
		}
	}
	return NewSiteTable(spec)
}

// Range returns the table restricted to sites [start, end).
func (t *SiteTable) Range(start, end int) (*SiteTable, error) {
	if err := CheckRange(start, end, t.SiteCount()); err != nil {
		return nil, err
	}
	spec := SiteSpec{Positions: slices.Clone(t.positions[start:end])}
	if t.names != nil {
		spec.SiteNames = slices.Clone(t.names[start:end])
	}
	if t.reference != nil {
		spec.Reference = slices.Clone(t.reference[start:end])
	}
	for _, l := range t.loci {
		lo, hi := max(l.Start, start), min(l.End, end)
		if lo < hi {
			spec.Loci = append(spec.Loci, l.Name)
			spec.LociOffsets = append(spec.LociOffsets, lo-start)
		}
	}
	return NewSiteTable(spec)
}

// ConcatSiteTables appends tables in order. A locus continuing across a table
// boundary is merged; a locus name reappearing later is rejected.
func ConcatSiteTables(tables ...*SiteTable) (*SiteTable, error) {
	var (
		spec      SiteSpec
		withNames bool
		withRef   bool
	)
	for _, t := range tables {
		withNames = withNames || t.names != nil
		withRef = withRef || t.reference != nil
	}
	base := 0
	for _, t := range tables {
		for _, l := range t.loci {
			if len(spec.Loci) > 0 && spec.Loci[len(spec.Loci)-1] == l.Name && l.Start == 0 {
				continue
			}
			spec.Loci = append(spec.Loci, l.Name)
			spec.LociOffsets = append(spec.LociOffsets, base+l.Start)
		}
		spec.Positions = append(spec.Positions, t.positions...)
		for s := range t.SiteCount() {
			if withNames {
				spec.SiteNames = append(spec.SiteNames, t.SiteName(s))
			}
			if withRef {
				spec.Reference = append(spec.Reference, t.ReferenceAllele(s))
			}
		}
		base += t.SiteCount()
	}
	return NewSiteTable(spec)
}

package matrix

import (
	"github.com/hupe1980/gtstore/allele"
	"github.com/hupe1980/gtstore/bitset"
	"github.com/hupe1980/gtstore/genotype"
)

// Source is the accessor contract shared by every genotype backing. Cell
// accessors return ErrInvalidArgument for out-of-range indices; structural
// accessors panic on them, like slice indexing.
type Source interface {
	TaxonCount() int
	SiteCount() int
	TaxonName(taxon int) string

	Locus(site int) Locus
	Loci() []Locus
	LociOffsets() []int
	Position(site int) int32
	SiteName(site int) string
	SiteOfPosition(position int32, locus string, snpID string) (int, error)

	Base(taxon, site int) (byte, error)
	BaseArray(taxon, site int) ([2]genotype.AlleleCode, error)
	BaseRow(taxon int) ([]byte, error)
	BaseRange(taxon, start, end int) ([]byte, error)
}

// FrequencySource is implemented by backings that answer per-site frequency
// queries without scanning the site column.
type FrequencySource interface {
	AllelesSortedByFrequency(site int) (allele.Frequencies, error)
	HeterozygousCount(site int) (int, error)
	TotalNotMissing(site int) (int, error)
}

// PresenceSource exposes the raw rank bitsets of a bit-packed backing.
type PresenceSource interface {
	RankSlots() int
	SitePresence(rank, site int) (*bitset.BitSet, error)
	TaxonPresence(rank, taxon int) (*bitset.BitSet, error)
}

// SiteTabler is implemented by backings that share their SiteTable.
type SiteTabler interface {
	SiteTable() *SiteTable
}

// Readier is implemented by backings whose derived indexes can be stale, such
// as a dirty mutable store.
type Readier interface {
	Ready() error
}

// CheckReady returns the Ready error of src, or nil when src is always ready.
func CheckReady(src Source) error {
	if r, ok := src.(Readier); ok {
		return r.Ready()
	}
	return nil
}

// SitesOf returns the site table of src, rebuilding it from the structural
// accessors when src does not share one.
func SitesOf(src Source) (*SiteTable, error) {
	if st, ok := src.(SiteTabler); ok {
		return st.SiteTable(), nil
	}
	n := src.SiteCount()
	spec := SiteSpec{
		LociOffsets: src.LociOffsets(),
		Positions:   make([]int32, n),
		SiteNames:   make([]string, n),
	}
	for _, l := range src.Loci() {
		spec.Loci = append(spec.Loci, l.Name)
	}
	for s := range n {
		spec.Positions[s] = src.Position(s)
		spec.SiteNames[s] = src.SiteName(s)
	}
	return NewSiteTable(spec)
}

// TaxonIndex returns the index of the named taxon, or -1.
func TaxonIndex(src Source, name string) int {
	if ix, ok := src.(interface{ TaxonIndex(string) int }); ok {
		return ix.TaxonIndex(name)
	}
	for t := range src.TaxonCount() {
		if src.TaxonName(t) == name {
			return t
		}
	}
	return -1
}

// TaxaNames returns every taxon name in order.
func TaxaNames(src Source) []string {
	names := make([]string, src.TaxonCount())
	for t := range names {
		names[t] = src.TaxonName(t)
	}
	return names
}

// Column reads the calls of every taxon at site.
func Column(src Source, site int) ([]byte, error) {
	if err := checkSite(site, src.SiteCount()); err != nil {
		return nil, err
	}
	col := make([]byte, src.TaxonCount())
	for t := range col {
		g, err := src.Base(t, site)
		if err != nil {
			return nil, err
		}
		col[t] = g
	}
	return col, nil
}

// AllelesSortedByFrequency ranks the alleles at site by descending gamete
// count, ties in ascending code order.
func AllelesSortedByFrequency(src Source, site int) (allele.Frequencies, error) {
	if fs, ok := src.(FrequencySource); ok {
		return fs.AllelesSortedByFrequency(site)
	}
	col, err := Column(src, site)
	if err != nil {
		return nil, err
	}
	return allele.Rank(col), nil
}

// MajorAllele returns the rank-0 allele at site, or UnknownAllele.
func MajorAllele(src Source, site int) (genotype.AlleleCode, error) {
	f, err := AllelesSortedByFrequency(src, site)
	if err != nil {
		return genotype.UnknownAllele, err
	}
	return f.Major(), nil
}

// MinorAllele returns the rank-1 allele at site, or UnknownAllele.
func MinorAllele(src Source, site int) (genotype.AlleleCode, error) {
	f, err := AllelesSortedByFrequency(src, site)
	if err != nil {
		return genotype.UnknownAllele, err
	}
	return f.Minor(), nil
}

// MajorAlleleFrequency divides the rank-0 count by the non-missing gamete count.
func MajorAlleleFrequency(src Source, site int) (float64, error) {
	f, err := AllelesSortedByFrequency(src, site)
	if err != nil {
		return 0, err
	}
	return f.MajorFrequency(), nil
}

// MinorAlleleFrequency divides the rank-1 count by the non-missing gamete count.
func MinorAlleleFrequency(src Source, site int) (float64, error) {
	f, err := AllelesSortedByFrequency(src, site)
	if err != nil {
		return 0, err
	}
	return f.MinorFrequency(), nil
}

// MinorAlleleCount returns the rank-1 gamete count at site.
func MinorAlleleCount(src Source, site int) (int, error) {
	f, err := AllelesSortedByFrequency(src, site)
	if err != nil {
		return 0, err
	}
	return f.CountAt(1), nil
}

// TotalGametesNotMissing returns the number of ordinary gametes at site,
// counted by scanning the calls. Unknown and rare gametes are not counted, so
// the result matches the sum of the counts of AllelesSortedByFrequency.
func TotalGametesNotMissing(src Source, site int) (int, error) {
	col, err := Column(src, site)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range col {
		if g == genotype.Unknown {
			continue
		}
		a, b := genotype.Unpack(g)
		if a.IsKnown() {
			n++
		}
		if b.IsKnown() {
			n++
		}
	}
	return n, nil
}

// HeterozygousCount returns the number of heterozygous taxa at site.
func HeterozygousCount(src Source, site int) (int, error) {
	if fs, ok := src.(FrequencySource); ok {
		return fs.HeterozygousCount(site)
	}
	col, err := Column(src, site)
	if err != nil {
		return 0, err
	}
	return allele.HeterozygousCount(col), nil
}

// TotalNotMissing returns the number of taxa with a call at site.
func TotalNotMissing(src Source, site int) (int, error) {
	if fs, ok := src.(FrequencySource); ok {
		return fs.TotalNotMissing(site)
	}
	col, err := Column(src, site)
	if err != nil {
		return 0, err
	}
	return allele.NotMissingCount(col), nil
}

// TaxonHeterozygousCount returns the number of heterozygous sites of taxon.
func TaxonHeterozygousCount(src Source, taxon int) (int, error) {
	if ts, ok := src.(interface{ TaxonHeterozygousCount(int) (int, error) }); ok {
		return ts.TaxonHeterozygousCount(taxon)
	}
	row, err := src.BaseRow(taxon)
	if err != nil {
		return 0, err
	}
	return allele.HeterozygousCount(row), nil
}

// TaxonNotMissingCount returns the number of called sites of taxon.
func TaxonNotMissingCount(src Source, taxon int) (int, error) {
	if ts, ok := src.(interface{ TaxonNotMissingCount(int) (int, error) }); ok {
		return ts.TaxonNotMissingCount(taxon)
	}
	row, err := src.BaseRow(taxon)
	if err != nil {
		return 0, err
	}
	return allele.NotMissingCount(row), nil
}

// BaseRange reads sites [start, end) of taxon through Base. Backings use it to
// implement Source.BaseRange when they have no faster path.
func BaseRange(src Source, taxon, start, end int) ([]byte, error) {
	if err := checkTaxon(taxon, src.TaxonCount()); err != nil {
		return nil, err
	}
	if err := CheckRange(start, end, src.SiteCount()); err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	for s := start; s < end; s++ {
		g, err := src.Base(taxon, s)
		if err != nil {
			return nil, err
		}
		out[s-start] = g
	}
	return out, nil
}

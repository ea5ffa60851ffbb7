package matrix

import (
	"fmt"
	"slices"

	"github.com/hupe1980/gtstore/bitset"
	"github.com/hupe1980/gtstore/genotype"
)

// BitMatrix is an immutable bit-packed genotype matrix. See the package
// documentation for the layout.
type BitMatrix struct {
	cfg Config

	taxa    []string
	taxonIx map[string]int
	sites   *SiteTable
	alleles [][]genotype.AlleleCode
	slots   int

	// siteWords holds one bitset of tw words per (site, rank), at
	// (site*slots+rank)*tw. taxonWords holds one bitset of sw words per
	// (taxon, rank), at (taxon*slots+rank)*sw. Either may be nil.
	siteWords  []uint64
	taxonWords []uint64
	tw, sw     int
}

var (
	_ Source          = (*BitMatrix)(nil)
	_ FrequencySource = (*BitMatrix)(nil)
	_ PresenceSource  = (*BitMatrix)(nil)
	_ SiteTabler      = (*BitMatrix)(nil)
)

func newBitMatrix(taxa []string, sites *SiteTable, alleles [][]genotype.AlleleCode, cfg Config) *BitMatrix {
	m := &BitMatrix{
		cfg:     cfg,
		taxa:    taxa,
		taxonIx: make(map[string]int, len(taxa)),
		sites:   sites,
		alleles: alleles,
		slots:   cfg.RankSlots(),
		tw:      (len(taxa) + 63) >> 6,
		sw:      (sites.SiteCount() + 63) >> 6,
	}
	for i, name := range taxa {
		m.taxonIx[name] = i
	}
	return m
}

// derive returns a matrix sharing everything but the bit arrays.
func (m *BitMatrix) derive(siteWords, taxonWords []uint64) *BitMatrix {
	out := *m
	out.siteWords = siteWords
	out.taxonWords = taxonWords
	switch {
	case siteWords != nil && taxonWords != nil:
		out.cfg.Layout = Both
	case siteWords != nil:
		out.cfg.Layout = SiteMajor
	default:
		out.cfg.Layout = TaxonMajor
	}
	return &out
}

func (m *BitMatrix) TaxonCount() int { return len(m.taxa) }
func (m *BitMatrix) SiteCount() int  { return m.sites.SiteCount() }

// TaxonName returns the name of taxon.
func (m *BitMatrix) TaxonName(taxon int) string { return m.taxa[taxon] }

// TaxonIndex returns the index of the named taxon, or -1.
func (m *BitMatrix) TaxonIndex(name string) int {
	if i, ok := m.taxonIx[name]; ok {
		return i
	}
	return -1
}

// Taxa returns the taxon names in order.
func (m *BitMatrix) Taxa() []string { return slices.Clone(m.taxa) }

func (m *BitMatrix) SiteTable() *SiteTable      { return m.sites }
func (m *BitMatrix) Locus(site int) Locus       { return m.sites.Locus(site) }
func (m *BitMatrix) Loci() []Locus              { return m.sites.Loci() }
func (m *BitMatrix) LociOffsets() []int         { return m.sites.LociOffsets() }
func (m *BitMatrix) Position(site int) int32    { return m.sites.Position(site) }
func (m *BitMatrix) SiteName(site int) string   { return m.sites.SiteName(site) }
func (m *BitMatrix) ReferenceAllele(site int) genotype.AlleleCode {
	return m.sites.ReferenceAllele(site)
}

// SiteOfPosition looks up position within locus. See SiteTable.SiteOfPosition.
func (m *BitMatrix) SiteOfPosition(position int32, locus string, snpID string) (int, error) {
	return m.sites.SiteOfPosition(position, locus, snpID)
}

// Layout returns the layouts held.
func (m *BitMatrix) Layout() Layout { return m.cfg.Layout }

// Codec returns the allele codec.
func (m *BitMatrix) Codec() genotype.AlleleCodec { return m.cfg.Codec }

// MaxNumAlleles returns the number of ranked alleles kept per site.
func (m *BitMatrix) MaxNumAlleles() int { return m.cfg.MaxNumAlleles }

// RetainRare reports whether the rare slot exists.
func (m *BitMatrix) RetainRare() bool { return m.cfg.RetainRare }

// RankSlots returns the number of rank slots.
func (m *BitMatrix) RankSlots() int { return m.slots }

// Alleles returns the rank-ordered allele table of site.
func (m *BitMatrix) Alleles(site int) []genotype.AlleleCode {
	return slices.Clone(m.alleles[site])
}

// SlotAllele returns the allele a rank slot stands for at site: the table
// entry, RareAllele for the rare slot, or UnknownAllele for an unused slot.
func (m *BitMatrix) SlotAllele(site, rank int) genotype.AlleleCode {
	if m.cfg.RetainRare && rank == m.cfg.MaxNumAlleles {
		return genotype.RareAllele
	}
	if rank < len(m.alleles[site]) {
		return m.alleles[site][rank]
	}
	return genotype.UnknownAllele
}

func (m *BitMatrix) slotOf(site int, a genotype.AlleleCode) int {
	if a == genotype.UnknownAllele {
		return -1
	}
	for r, c := range m.alleles[site] {
		if c == a {
			return r
		}
	}
	if m.cfg.RetainRare {
		return m.cfg.MaxNumAlleles
	}
	return -1
}

func (m *BitMatrix) bit(rank, taxon, site int) bool {
	if m.siteWords != nil {
		w := m.siteWords[(site*m.slots+rank)*m.tw+taxon>>6]
		return w>>(uint(taxon)&63)&1 != 0
	}
	w := m.taxonWords[(taxon*m.slots+rank)*m.sw+site>>6]
	return w>>(uint(site)&63)&1 != 0
}

// cell decodes one (taxon, site). A single set bit decodes as a homozygous
// call; output pairs are in ascending code order, since the bit layout keeps
// no phase.
func (m *BitMatrix) cell(taxon, site int) ([2]genotype.AlleleCode, error) {
	out := [2]genotype.AlleleCode{genotype.UnknownAllele, genotype.UnknownAllele}
	n := 0
	for r := range m.slots {
		if !m.bit(r, taxon, site) {
			continue
		}
		if n < 2 {
			out[n] = m.SlotAllele(site, r)
		}
		n++
	}
	switch {
	case n == 1:
		out[1] = out[0]
	case n > 2:
		return [2]genotype.AlleleCode{genotype.UnknownAllele, genotype.UnknownAllele},
			&ConsistencyError{Taxon: taxon, Site: site, Bits: n}
	}
	if out[1] < out[0] {
		out[0], out[1] = out[1], out[0]
	}
	return out, nil
}

// BaseArray returns the allele pair of (taxon, site).
func (m *BitMatrix) BaseArray(taxon, site int) ([2]genotype.AlleleCode, error) {
	if err := checkTaxon(taxon, len(m.taxa)); err != nil {
		return [2]genotype.AlleleCode{genotype.UnknownAllele, genotype.UnknownAllele}, err
	}
	if err := checkSite(site, m.SiteCount()); err != nil {
		return [2]genotype.AlleleCode{genotype.UnknownAllele, genotype.UnknownAllele}, err
	}
	return m.cell(taxon, site)
}

// Base returns the diploid call of (taxon, site) in unphased sorted form, the
// same byte genotype.Canonical yields for the raw call.
func (m *BitMatrix) Base(taxon, site int) (byte, error) {
	a, err := m.BaseArray(taxon, site)
	if err != nil {
		return genotype.Unknown, err
	}
	return genotype.PackUnphasedSorted(a[0], a[1]), nil
}

// BaseString renders the call of (taxon, site) with the matrix codec.
func (m *BitMatrix) BaseString(taxon, site int) (string, error) {
	g, err := m.Base(taxon, site)
	if err != nil {
		return "", err
	}
	return m.cfg.Codec.String(g), nil
}

// BaseRow returns every call of taxon.
func (m *BitMatrix) BaseRow(taxon int) ([]byte, error) {
	return m.BaseRange(taxon, 0, m.SiteCount())
}

// BaseRange returns the calls of taxon at sites [start, end).
func (m *BitMatrix) BaseRange(taxon, start, end int) ([]byte, error) {
	if err := checkTaxon(taxon, len(m.taxa)); err != nil {
		return nil, err
	}
	if err := CheckRange(start, end, m.SiteCount()); err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	for s := start; s < end; s++ {
		a, err := m.cell(taxon, s)
		if err != nil {
			return nil, err
		}
		out[s-start] = genotype.PackUnphasedSorted(a[0], a[1])
	}
	return out, nil
}

func (m *BitMatrix) checkRank(rank int) error {
	if rank < 0 || rank >= m.slots {
		return invalidf("rank %d out of range [0,%d)", rank, m.slots)
	}
	return nil
}

// SitePresence returns the taxa carrying the rank-th allele at site. The
// bitset aliases the matrix and must not be modified.
func (m *BitMatrix) SitePresence(rank, site int) (*bitset.BitSet, error) {
	if m.siteWords == nil {
		return nil, fmt.Errorf("%w: site presence needs a site-major layout", ErrUnsupportedAxis)
	}
	if err := m.checkRank(rank); err != nil {
		return nil, err
	}
	if err := checkSite(site, m.SiteCount()); err != nil {
		return nil, err
	}
	return m.sitePresence(rank, site), nil
}

func (m *BitMatrix) sitePresence(rank, site int) *bitset.BitSet {
	off := (site*m.slots + rank) * m.tw
	return bitset.Wrap(m.siteWords[off:off+m.tw:off+m.tw], len(m.taxa))
}

// TaxonPresence returns the sites at which taxon carries the rank-th allele.
// The bitset aliases the matrix and must not be modified.
func (m *BitMatrix) TaxonPresence(rank, taxon int) (*bitset.BitSet, error) {
	if m.taxonWords == nil {
		return nil, fmt.Errorf("%w: taxon presence needs a taxon-major layout", ErrUnsupportedAxis)
	}
	if err := m.checkRank(rank); err != nil {
		return nil, err
	}
	if err := checkTaxon(taxon, len(m.taxa)); err != nil {
		return nil, err
	}
	return m.taxonPresence(rank, taxon), nil
}

func (m *BitMatrix) taxonPresence(rank, taxon int) *bitset.BitSet {
	off := (taxon*m.slots + rank) * m.sw
	return bitset.Wrap(m.taxonWords[off:off+m.sw:off+m.sw], m.SiteCount())
}

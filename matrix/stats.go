package matrix

import (
	"github.com/hupe1980/gtstore/allele"
	"github.com/hupe1980/gtstore/bitset"
	"github.com/hupe1980/gtstore/genotype"
)

// Per-site statistics on a site-major matrix are set algebra over the rank
// bitsets of the site. A taxon with two set bits is heterozygous, so
//
//	count(r)      = 2|B_r| - Σ_{q≠r} |B_r ∧ B_q|
//	heterozygous  = Σ_{r<q} |B_r ∧ B_q|
//	not missing   = |∪ B_r|
//
// Without a site-major layout the column is decoded and scanned; both paths
// agree on every matrix.

func (m *BitMatrix) siteSets(site int) []*bitset.BitSet {
	sets := make([]*bitset.BitSet, m.slots)
	for r := range sets {
		sets[r] = m.sitePresence(r, site)
	}
	return sets
}

func (m *BitMatrix) taxonSets(taxon int) []*bitset.BitSet {
	sets := make([]*bitset.BitSet, m.slots)
	for r := range sets {
		sets[r] = m.taxonPresence(r, taxon)
	}
	return sets
}

func (m *BitMatrix) column(site int) ([]byte, error) {
	col := make([]byte, len(m.taxa))
	for t := range col {
		a, err := m.cell(t, site)
		if err != nil {
			return nil, err
		}
		col[t] = genotype.Pack(a[0], a[1])
	}
	return col, nil
}

// AllelesSortedByFrequency ranks the alleles at site from bit cardinalities.
func (m *BitMatrix) AllelesSortedByFrequency(site int) (allele.Frequencies, error) {
	if err := checkSite(site, m.SiteCount()); err != nil {
		return nil, err
	}
	if m.siteWords == nil {
		col, err := m.column(site)
		if err != nil {
			return nil, err
		}
		return allele.Rank(col), nil
	}
	sets := m.siteSets(site)
	var counts [16]int
	for r, a := range m.alleles[site] {
		c := 2 * sets[r].Count()
		for q := range sets {
			if q != r {
				c -= bitset.IntersectionCount(sets[r], sets[q])
			}
		}
		counts[a] = c
	}
	return allele.FromCounts(counts), nil
}

// HeterozygousCount returns the number of taxa with two rank bits at site.
func (m *BitMatrix) HeterozygousCount(site int) (int, error) {
	if err := checkSite(site, m.SiteCount()); err != nil {
		return 0, err
	}
	if m.siteWords == nil {
		col, err := m.column(site)
		if err != nil {
			return 0, err
		}
		return allele.HeterozygousCount(col), nil
	}
	return pairwiseIntersections(m.siteSets(site)), nil
}

// TotalNotMissing returns the number of taxa with any rank bit at site.
func (m *BitMatrix) TotalNotMissing(site int) (int, error) {
	if err := checkSite(site, m.SiteCount()); err != nil {
		return 0, err
	}
	if m.siteWords == nil {
		col, err := m.column(site)
		if err != nil {
			return 0, err
		}
		return allele.NotMissingCount(col), nil
	}
	return bitset.UnionCount(m.siteSets(site)...), nil
}

// HomozygousCount returns the number of taxa homozygous for the rank-th
// allele at site: the taxa in B_rank and in no other rank set.
func (m *BitMatrix) HomozygousCount(site, rank int) (int, error) {
	if err := checkSite(site, m.SiteCount()); err != nil {
		return 0, err
	}
	if err := m.checkRank(rank); err != nil {
		return 0, err
	}
	if m.siteWords == nil {
		col, err := m.column(site)
		if err != nil {
			return 0, err
		}
		slot := m.SlotAllele(site, rank)
		if slot == genotype.UnknownAllele {
			return 0, nil
		}
		return allele.HomozygousCount(col, slot), nil
	}
	sets := m.siteSets(site)
	others := bitset.New(len(m.taxa))
	for q, set := range sets {
		if q == rank {
			continue
		}
		for w := range set.NumWords() {
			others.SetWord(w, others.Word(w)|set.Word(w))
		}
	}
	return bitset.DifferenceCount(sets[rank], others), nil
}

// TaxonHeterozygousCount returns the number of heterozygous sites of taxon.
func (m *BitMatrix) TaxonHeterozygousCount(taxon int) (int, error) {
	if err := checkTaxon(taxon, len(m.taxa)); err != nil {
		return 0, err
	}
	if m.taxonWords == nil {
		row, err := m.BaseRow(taxon)
		if err != nil {
			return 0, err
		}
		return allele.HeterozygousCount(row), nil
	}
	return pairwiseIntersections(m.taxonSets(taxon)), nil
}

// TaxonNotMissingCount returns the number of called sites of taxon.
func (m *BitMatrix) TaxonNotMissingCount(taxon int) (int, error) {
	if err := checkTaxon(taxon, len(m.taxa)); err != nil {
		return 0, err
	}
	if m.taxonWords == nil {
		row, err := m.BaseRow(taxon)
		if err != nil {
			return 0, err
		}
		return allele.NotMissingCount(row), nil
	}
	return bitset.UnionCount(m.taxonSets(taxon)...), nil
}

func pairwiseIntersections(sets []*bitset.BitSet) int {
	n := 0
	for r := range sets {
		for q := r + 1; q < len(sets); q++ {
			n += bitset.IntersectionCount(sets[r], sets[q])
		}
	}
	return n
}

// Package allele ranks the alleles observed at a site by frequency.
//
// Ranking scans every taxon's diploid call at a site, splits it into its two
// gametes and counts each ordinary allele (codes 0..13). Unknown and rare
// gametes are ignored. A homozygous call contributes two to one allele, a
// heterozygous call one to each of its alleles.
//
// The result is sorted by descending count. Ties keep ascending code order,
// because counts are collected by code value before the stable sort. Encoded
// files depend on this exact order: rank 0 is the major allele, rank 1 the
// minor allele.
package allele

import (
	"slices"

	"github.com/hupe1980/gtstore/genotype"
)

// Count pairs an allele code with its gamete count.
type Count struct {
	Allele genotype.AlleleCode
	Count  int
}

// Frequencies is a frequency-sorted allele list (rank order).
type Frequencies []Count

// GameteCounts returns the per-code gamete counts of a site column.
func GameteCounts(genotypes []byte) [16]int {
	var counts [16]int
	for _, g := range genotypes {
		if g == genotype.Unknown {
			continue
		}
		counts[g>>4]++
		counts[g&0x0F]++
	}
	return counts
}

// Rank returns the ordinary alleles of a site column sorted by descending
// gamete count, ties broken by ascending code.
func Rank(genotypes []byte) Frequencies {
	return FromCounts(GameteCounts(genotypes))
}

// FromCounts builds the rank order from per-code gamete counts. Rare and
// unknown codes are dropped.
func FromCounts(counts [16]int) Frequencies {
	f := make(Frequencies, 0, 4)
	for code := genotype.AlleleCode(0); code <= genotype.MaxKnownAllele; code++ {
		if counts[code] > 0 {
			f = append(f, Count{Allele: code, Count: counts[code]})
		}
	}
	slices.SortStableFunc(f, func(a, b Count) int {
		return b.Count - a.Count
	})
	return f
}

// Table returns at most max allele codes in rank order.
func (f Frequencies) Table(max int) []genotype.AlleleCode {
	n := min(len(f), max)
	out := make([]genotype.AlleleCode, n)
	for i := range n {
		out[i] = f[i].Allele
	}
	return out
}

// Total returns the number of non-missing, non-rare gametes.
func (f Frequencies) Total() int {
	total := 0
	for _, c := range f {
		total += c.Count
	}
	return total
}

// Allele returns the allele at rank r, or UnknownAllele when the site has
// fewer than r+1 alleles.
func (f Frequencies) Allele(r int) genotype.AlleleCode {
	if r < 0 || r >= len(f) {
		return genotype.UnknownAllele
	}
	return f[r].Allele
}

// CountAt returns the gamete count at rank r (0 if absent).
func (f Frequencies) CountAt(r int) int {
	if r < 0 || r >= len(f) {
		return 0
	}
	return f[r].Count
}

// Major returns the most frequent allele.
func (f Frequencies) Major() genotype.AlleleCode { return f.Allele(0) }

// Minor returns the second most frequent allele.
func (f Frequencies) Minor() genotype.AlleleCode { return f.Allele(1) }

// MajorFrequency is the rank-0 count over the total gamete count.
func (f Frequencies) MajorFrequency() float64 { return f.frequency(0) }

// MinorFrequency is the rank-1 count over the total gamete count.
func (f Frequencies) MinorFrequency() float64 { return f.frequency(1) }

func (f Frequencies) frequency(r int) float64 {
	total := f.Total()
	if total == 0 {
		return 0
	}
	return float64(f.CountAt(r)) / float64(total)
}

// HeterozygousCount counts calls with two different, non-missing gametes.
func HeterozygousCount(genotypes []byte) int {
	n := 0
	for _, g := range genotypes {
		if genotype.IsHeterozygous(g) {
			n++
		}
	}
	return n
}

// NotMissingCount counts calls with at least one known gamete.
func NotMissingCount(genotypes []byte) int {
	n := 0
	for _, g := range genotypes {
		if g != genotype.Unknown {
			n++
		}
	}
	return n
}

// HomozygousCount counts homozygous calls of allele a.
func HomozygousCount(genotypes []byte, a genotype.AlleleCode) int {
	want := genotype.Homozygous(a)
	n := 0
	for _, g := range genotypes {
		if g == want {
			n++
		}
	}
	return n
}

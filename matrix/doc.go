// Package matrix holds the genotype matrix contract and its bit-packed
// in-memory implementation.
//
// # Source
//
// Source is the accessor contract every backing satisfies: the immutable
// BitMatrix, the views in package view, and the disk-resident store in package
// store. Format writers read through Source without knowing which backing is
// underneath. Per-site frequency queries are package functions
// (AllelesSortedByFrequency, MinorAlleleFrequency, HeterozygousCount, ...) that
// use a backing's FrequencySource fast path when it has one and fall back to
// scanning the site column otherwise.
//
// # BitMatrix
//
// A BitMatrix stores, for each of R rank slots, a boolean taxon × site matrix:
// bit (slot r, taxon t, site s) is set when taxon t carries the allele ranked r
// at site s. R is MaxNumAlleles, plus one slot for the rare bucket when
// RetainRare is set. A diploid cell has at most two bits set across all slots.
//
// Two physical layouts exist. SiteMajor keeps one bitset per (slot, site)
// indexed by taxon; TaxonMajor keeps one per (slot, taxon) indexed by site.
// Build fills the requested layout in parallel, partitioned by site or by
// taxon so that no two workers share a word. Transpose converts between the
// layouts with 64×64 block transposes.
//
//	m, err := matrix.Build(ctx, raw, matrix.DefaultConfig())
//	g, err := m.Base(taxon, site)
//	maf, err := matrix.MinorAlleleFrequency(m, site)
//
// A BitMatrix is immutable after Build and safe for concurrent readers.
package matrix

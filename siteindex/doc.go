// Package siteindex writes and queries a SQLite sidecar describing the sites
// of a genotype matrix: locus, position, SNP id, major and minor allele, minor
// allele frequency, call counts and coverage.
//
// The sidecar lets tools that cannot read the block container look up sites
// with plain SQL:
//
//	SELECT site_index FROM site WHERE locus = 'chr1' AND position BETWEEN 1000 AND 2000;
package siteindex

// Package testutil provides testing utilities for gtstore.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random genotype calls and depth
// rows, extracting raw columns as ground truth, and measuring call
// concordance.
//
// # Random Calls
//
//	rng := testutil.NewRNG(seed)
//	row := rng.Calls(1000, testutil.CallConfig{Alleles: 4, MissingRate: 0.1})
//	rows := rng.Rows(64, 1000, testutil.DefaultCalls)
//
// # Ground Truth
//
//	col := testutil.Column(rows, site)
//	want := allele.Rank(col)
//
// # Concordance
//
//	c := testutil.Concordance(want, got)
package testutil

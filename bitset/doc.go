// Package bitset provides fixed-size word-slice bitsets.
//
// Bits are stored least-significant first in []uint64 words, so bit i lives in
// word i/64 at position i%64. Bits past Len are always zero; counting and set
// operations rely on that.
//
// A BitSet is not synchronized. Writers must own disjoint bitsets, after which
// any number of goroutines may read concurrently.
//
// Transpose64 flips a 64×64 bit block in place with the word-level swap network
// (log2(64) rounds of masked shifts) instead of copying bit by bit.
package bitset

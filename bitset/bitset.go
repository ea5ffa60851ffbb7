package bitset

import (
	"math/bits"
)

// BitSet is a fixed-size bitset.
type BitSet struct {
	words []uint64
	n     int
}

// New creates a zeroed BitSet holding n bits.
func New(n int) *BitSet {
	return &BitSet{
		words: make([]uint64, wordsFor(n)),
		n:     n,
	}
}

// FromWords wraps words as a BitSet of n bits. Bits past n are cleared.
func FromWords(words []uint64, n int) *BitSet {
	need := wordsFor(n)
	if len(words) < need {
		w := make([]uint64, need)
		copy(w, words)
		words = w
	}
	b := &BitSet{words: words[:need], n: n}
	b.clearTail()
	return b
}

func wordsFor(n int) int { return (n + 63) >> 6 }

func (b *BitSet) clearTail() {
	if r := b.n & 63; r != 0 && len(b.words) > 0 {
		b.words[len(b.words)-1] &= (uint64(1) << r) - 1
	}
}

// Len returns the number of addressable bits.
func (b *BitSet) Len() int { return b.n }

// Set sets bit i. Out-of-range indices are ignored.
func (b *BitSet) Set(i int) {
	if i < 0 || i >= b.n {
		return
	}
	b.words[i>>6] |= uint64(1) << (i & 63)
}

// Clear clears bit i.
func (b *BitSet) Clear(i int) {
	if i < 0 || i >= b.n {
		return
	}
	b.words[i>>6] &^= uint64(1) << (i & 63)
}

// Test reports whether bit i is set.
func (b *BitSet) Test(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.words[i>>6]&(uint64(1)<<(i&63)) != 0
}

// Count returns the number of set bits.
func (b *BitSet) Count() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Words exposes the backing words. Callers must treat them as read-only.
func (b *BitSet) Words() []uint64 { return b.words }

// Word returns word i, or 0 past the end.
func (b *BitSet) Word(i int) uint64 {
	if i < 0 || i >= len(b.words) {
		return 0
	}
	return b.words[i]
}

// NumWords returns the number of backing words.
func (b *BitSet) NumWords() int { return len(b.words) }

// SetWord overwrites word i. Used by bulk builders that own the set.
func (b *BitSet) SetWord(i int, w uint64) {
	b.words[i] = w
	if i == len(b.words)-1 {
		b.clearTail()
	}
}

// Clone returns a deep copy.
func (b *BitSet) Clone() *BitSet {
	w := make([]uint64, len(b.words))
	copy(w, b.words)
	return &BitSet{words: w, n: b.n}
}

// Equal reports whether both sets have the same length and bits.
func (b *BitSet) Equal(o *BitSet) bool {
	if b.n != o.n {
		return false
	}
	for i, w := range b.words {
		if o.words[i] != w {
			return false
		}
	}
	return true
}

// NextSet returns the index of the first set bit at or after i, or -1.
func (b *BitSet) NextSet(i int) int {
	if i < 0 {
		i = 0
	}
	if i >= b.n {
		return -1
	}
	wi := i >> 6
	w := b.words[wi] &^ ((uint64(1) << (i & 63)) - 1)
	for {
		if w != 0 {
			return wi<<6 + bits.TrailingZeros64(w)
		}
		wi++
		if wi >= len(b.words) {
			return -1
		}
		w = b.words[wi]
	}
}

// Indices returns the positions of all set bits in ascending order.
func (b *BitSet) Indices() []int {
	out := make([]int, 0, b.Count())
	for i := b.NextSet(0); i >= 0; i = b.NextSet(i + 1) {
		out = append(out, i)
	}
	return out
}

// IntersectionCount returns |a ∧ b|. Sets of different lengths are compared
// over their common words.
func IntersectionCount(a, b *BitSet) int {
	n := min(len(a.words), len(b.words))
	c := 0
	for i := 0; i < n; i++ {
		c += bits.OnesCount64(a.words[i] & b.words[i])
	}
	return c
}

// DifferenceCount returns |a ∧ ¬b|.
func DifferenceCount(a, b *BitSet) int {
	c := 0
	for i, w := range a.words {
		if i < len(b.words) {
			w &^= b.words[i]
		}
		c += bits.OnesCount64(w)
	}
	return c
}

// UnionCount returns the cardinality of the union of all sets.
func UnionCount(sets ...*BitSet) int {
	n := 0
	for _, s := range sets {
		if s != nil && len(s.words) > n {
			n = len(s.words)
		}
	}
	c := 0
	for i := 0; i < n; i++ {
		var w uint64
		for _, s := range sets {
			if s != nil && i < len(s.words) {
				w |= s.words[i]
			}
		}
		c += bits.OnesCount64(w)
	}
	return c
}

// Wrap views words as a BitSet of n bits without copying or touching the
// words. The caller guarantees bits past n are already zero.
func Wrap(words []uint64, n int) *BitSet {
	return &BitSet{words: words, n: n}
}

package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/gtstore/genotype"
)

// CallConfig shapes randomly drawn diploid calls.
type CallConfig struct {
	// Alleles is the number of distinct allele codes drawn from, starting at A.
	Alleles int
	// MissingRate is the probability that a call is unknown.
	MissingRate float64
	// HetRate is the probability that the second allele is drawn
	// independently of the first. 0 yields only homozygous calls.
	HetRate float64
	// Skew > 0 draws alleles from a Zipf distribution with that exponent,
	// so that low codes are major alleles.
	Skew float64
}

// DefaultCalls draws A, C, G and T independently with a tenth missing.
var DefaultCalls = CallConfig{Alleles: 4, MissingRate: 0.1, HetRate: 1}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Calls draws n diploid calls.
func (r *RNG) Calls(n int, cfg CallConfig) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callsLocked(n, cfg)
}

func (r *RNG) callsLocked(n int, cfg CallConfig) []byte {
	row := make([]byte, n)
	for i := range row {
		if r.rand.Float64() < cfg.MissingRate {
			row[i] = genotype.Unknown
			continue
		}
		x := r.alleleLocked(cfg)
		y := x
		if r.rand.Float64() < cfg.HetRate {
			y = r.alleleLocked(cfg)
		}
		row[i] = genotype.Pack(x, y)
	}
	return row
}

func (r *RNG) alleleLocked(cfg CallConfig) genotype.AlleleCode {
	n := max(1, min(cfg.Alleles, genotype.MaxRetainedAlleles))
	if cfg.Skew > 0 {
		return genotype.AlleleCode(r.zipfLocked(n, cfg.Skew))
	}
	return genotype.AlleleCode(r.rand.Intn(n))
}

// Rows draws a taxa × sites genotype matrix.
func (r *RNG) Rows(taxa, sites int, cfg CallConfig) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([][]byte, taxa)
	for t := range rows {
		rows[t] = r.callsLocked(sites, cfg)
	}
	return rows
}

// Depth draws read counts consistent with calls: one row per allele code up
// to the highest code called, with 1..maxReads reads for each called allele
// and zero elsewhere.
func (r *RNG) Depth(calls []byte, maxReads int) [][]uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	alleles := 0
	for _, g := range calls {
		for _, a := range unpack(g) {
			alleles = max(alleles, int(a)+1)
		}
	}
	depth := make([][]uint16, alleles)
	for a := range depth {
		depth[a] = make([]uint16, len(calls))
	}
	for s, g := range calls {
		for _, a := range unpack(g) {
			if depth[a][s] == 0 {
				depth[a][s] = uint16(1 + r.rand.Intn(max(1, maxReads)))
			}
		}
	}
	return depth
}

func unpack(g byte) []genotype.AlleleCode {
	x, y := genotype.Unpack(g)
	var out []genotype.AlleleCode
	for _, a := range []genotype.AlleleCode{x, y} {
		if a.IsKnown() {
			out = append(out, a)
		}
	}
	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// inverse transform over the cumulative weights
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Names returns prefix0, prefix1, ... prefix(n-1).
func Names(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

// Positions returns n ascending positions step, 2*step, ...
func Positions(n int, step int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = step * int32(i+1)
	}
	return out
}

// Column returns the calls of every row at site.
func Column(rows [][]byte, site int) []byte {
	col := make([]byte, len(rows))
	for t, row := range rows {
		col[t] = row[site]
	}
	return col
}

// Concordance returns the fraction of known calls in want that got
// reproduces exactly. Two empty or all-unknown rows are fully concordant.
func Concordance(want, got []byte) float64 {
	n := min(len(want), len(got))
	known, same := 0, 0
	for i := range n {
		if want[i] == genotype.Unknown {
			continue
		}
		known++
		if want[i] == got[i] {
			same++
		}
	}
	if known == 0 {
		return 1.0
	}
	return float64(same) / float64(known)
}

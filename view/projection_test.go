package view

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/matrix"
	"github.com/hupe1980/gtstore/testutil"
)

func donorMatrix(t *testing.T) *matrix.BitMatrix {
	t.Helper()
	hom := genotype.Homozygous
	raw := &matrix.RawMatrix{
		Taxa: []string{"d0", "d1", "d2"},
		Genotypes: [][]byte{
			{hom(genotype.A), hom(genotype.A), hom(genotype.G), hom(genotype.A), hom(genotype.T), hom(genotype.A)},
			{hom(genotype.C), hom(genotype.A), hom(genotype.G), hom(genotype.C), hom(genotype.T), genotype.Unknown},
			{genotype.Pack(genotype.A, genotype.C), hom(genotype.A), hom(genotype.G), hom(genotype.G), hom(genotype.T), hom(genotype.A)},
		},
		SiteSpec: matrix.SiteSpec{
			Loci:        []string{"1"},
			LociOffsets: []int{0},
			Positions:   []int32{10, 20, 30, 40, 50, 60},
		},
	}
	m, err := matrix.Build(context.Background(), raw, matrix.DefaultConfig())
	require.NoError(t, err)
	return m
}

func TestProjection_Merge(t *testing.T) {
	base := donorMatrix(t)
	p, err := Project(base, []string{"het", "hom"}, [][]Breakpoint{
		{{Locus: "1", Position: 10, DonorA: 0, DonorB: 1}},
		{{Locus: "1", Position: 10, DonorA: 0, DonorB: 0}},
	})
	require.NoError(t, err)

	g, err := p.Base(0, 3)
	require.NoError(t, err)
	assert.Equal(t, genotype.PackUnphasedSorted(genotype.A, genotype.C), g)
	assert.Equal(t, "M", genotype.Nucleotide.String(g))

	g, err = p.Base(1, 3)
	require.NoError(t, err)
	assert.Equal(t, genotype.Homozygous(genotype.A), g)

	g, err = p.Base(0, 5)
	require.NoError(t, err)
	assert.Equal(t, genotype.Unknown, g, "missing donor call")
}

func TestProjection_Intervals(t *testing.T) {
	base := donorMatrix(t)
	p, err := Project(base, []string{"x"}, [][]Breakpoint{{
		{Locus: "1", Position: 15, DonorA: 2, DonorB: 2},
		{Locus: "1", Position: 30, DonorA: -1, DonorB: -1},
		{Locus: "1", Position: 40, DonorA: 0, DonorB: 2},
	}})
	require.NoError(t, err)

	row, err := p.BaseRow(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		genotype.Unknown,                 // before the first breakpoint
		genotype.Homozygous(genotype.A), // d2/d2
		genotype.Unknown,                 // no hypothesis
		genotype.PackUnphasedSorted(genotype.A, genotype.G),
		genotype.Homozygous(genotype.T),
		genotype.Homozygous(genotype.A),
	}, row)

	_, _, ok := p.Donors(0, 2)
	assert.False(t, ok)
	a, b, ok := p.Donors(0, 4)
	require.True(t, ok)
	assert.Equal(t, [2]int{0, 2}, [2]int{a, b})
}

func TestProjection_HeterozygousDonor(t *testing.T) {
	base := donorMatrix(t)
	p, err := Project(base, []string{"x"}, [][]Breakpoint{{{Locus: "1", Position: 10, DonorA: 2, DonorB: 2}}})
	require.NoError(t, err)
	g, err := p.Base(0, 0)
	require.NoError(t, err)
	assert.Equal(t, genotype.Unknown, g)
}

func TestProjection_Invalid(t *testing.T) {
	base := donorMatrix(t)
	_, err := Project(base, []string{"x"}, [][]Breakpoint{{{Locus: "1", Position: 10, DonorA: 3, DonorB: 0}}})
	assert.ErrorIs(t, err, matrix.ErrInvalidArgument)

	_, err = Project(base, []string{"x"}, [][]Breakpoint{{{Locus: "9", Position: 10}}})
	assert.ErrorIs(t, err, matrix.ErrInvalidArgument)

	_, err = Project(base, []string{"x"}, [][]Breakpoint{{
		{Locus: "1", Position: 40, DonorA: 0, DonorB: 0},
		{Locus: "1", Position: 20, DonorA: 0, DonorB: 0},
	}})
	assert.ErrorIs(t, err, matrix.ErrInvalidArgument)

	_, err = Project(base, []string{"x", "y"}, nil)
	assert.ErrorIs(t, err, matrix.ErrInvalidArgument)
}

func TestProjection_CacheMatchesSearch(t *testing.T) {
	base := donorMatrix(t)
	p, err := Project(base, []string{"x"}, [][]Breakpoint{{
		{Locus: "1", Position: 10, DonorA: 0, DonorB: 0},
		{Locus: "1", Position: 25, DonorA: 1, DonorB: 0},
		{Locus: "1", Position: 45, DonorA: 1, DonorB: 1},
	}})
	require.NoError(t, err)

	rng := testutil.NewRNG(1)
	for range 500 {
		s := rng.Intn(p.SiteCount())
		cached := p.lookup(0, s)
		searched := p.search(0, s)
		require.Equal(t, searched, cached, "site %d", s)
	}
}

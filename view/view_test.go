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

func buildMatrix(t *testing.T, seed int64, taxa []string, locus string, sites int) *matrix.BitMatrix {
	t.Helper()
	raw := &matrix.RawMatrix{
		Taxa: taxa,
		Genotypes: testutil.NewRNG(seed).Rows(len(taxa), sites, testutil.CallConfig{
			Alleles:     3,
			MissingRate: 0.125,
			HetRate:     1,
		}),
		SiteSpec: matrix.SiteSpec{
			Loci:        []string{locus},
			LociOffsets: []int{0},
			Positions:   testutil.Positions(sites, 100),
		},
	}
	m, err := matrix.Build(context.Background(), raw, matrix.DefaultConfig())
	require.NoError(t, err)
	return m
}

func names(n int) []string { return testutil.Names("T", n) }

func TestFilter_Redirection(t *testing.T) {
	base := buildMatrix(t, 1, names(10), "1", 10)

	taxa, err := FilterTaxaIndices(base, []int{2, -1, 0})
	require.NoError(t, err)
	v, err := FilterSites(taxa, []int{7, 5, 6, 6})
	require.NoError(t, err)

	assert.Same(t, base, v.Inner().(*matrix.BitMatrix))
	assert.Equal(t, 3, v.TaxonCount())
	assert.Equal(t, 3, v.SiteCount())

	got, err := v.Base(1, 0)
	require.NoError(t, err)
	assert.Equal(t, genotype.Unknown, got)

	got, err = v.Base(0, 1)
	require.NoError(t, err)
	want, err := base.Base(2, 6)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, ok := v.BaseTaxon(1)
	assert.False(t, ok)
	assert.Equal(t, "T2", v.TaxonName(0))
	assert.Equal(t, int32(700), v.Position(1))

	row, err := v.BaseRow(0)
	require.NoError(t, err)
	full, err := base.BaseRow(2)
	require.NoError(t, err)
	assert.Equal(t, full[5:8], row)

	row, err = v.BaseRow(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{genotype.Unknown, genotype.Unknown, genotype.Unknown}, row)
}

func TestFilter_RangeComposition(t *testing.T) {
	base := buildMatrix(t, 2, names(4), "1", 20)

	outer, err := FilterSiteRange(base, 5, 14)
	require.NoError(t, err)
	assert.Equal(t, 10, outer.SiteCount())

	inner, err := FilterSiteRange(outer, 2, 4)
	require.NoError(t, err)
	assert.Same(t, base, inner.Inner().(*matrix.BitMatrix))
	assert.Equal(t, 7, inner.BaseSite(0))
	assert.Equal(t, 3, inner.SiteCount())

	for tx := range 4 {
		row, err := inner.BaseRow(tx)
		require.NoError(t, err)
		want, err := base.BaseRange(tx, 7, 10)
		require.NoError(t, err)
		assert.Equal(t, want, row)
	}

	listed, err := FilterSites(outer, []int{0, 9})
	require.NoError(t, err)
	assert.Equal(t, 5, listed.BaseSite(0))
	assert.Equal(t, 14, listed.BaseSite(1))

	_, err = FilterSiteRange(base, 15, 20)
	assert.ErrorIs(t, err, matrix.ErrInvalidArgument)
}

func TestFilterTaxa_ByName(t *testing.T) {
	base := buildMatrix(t, 3, names(5), "1", 6)

	kept, err := FilterTaxa(base, []string{"T3", "nope", "T1"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"T3", "T1"}, matrix.TaxaNames(kept))

	retained, err := FilterTaxa(base, []string{"T3", "nope", "T1"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"T3", "nope", "T1"}, matrix.TaxaNames(retained))
	assert.Equal(t, 1, retained.TaxonIndex("nope"))

	g, err := retained.Base(1, 2)
	require.NoError(t, err)
	assert.Equal(t, genotype.Unknown, g)

	again, err := FilterTaxa(retained, []string{"T1", "nope"}, true)
	require.NoError(t, err)
	bt, ok := again.BaseTaxon(0)
	require.True(t, ok)
	assert.Equal(t, 1, bt)
	_, ok = again.BaseTaxon(1)
	assert.False(t, ok)
	assert.Equal(t, "nope", again.TaxonName(1))
}

func TestFilter_PresenceAndFrequencies(t *testing.T) {
	base := buildMatrix(t, 4, names(6), "1", 12)

	sites, err := FilterSites(base, []int{1, 4, 9})
	require.NoError(t, err)
	p, err := sites.SitePresence(0, 1)
	require.NoError(t, err)
	want, err := base.SitePresence(0, 4)
	require.NoError(t, err)
	assert.True(t, want.Equal(p))
	_, err = sites.TaxonPresence(0, 0)
	assert.ErrorIs(t, err, matrix.ErrUnsupportedAxis)

	taxa, err := FilterTaxaIndices(base, []int{5, 0})
	require.NoError(t, err)
	_, err = taxa.SitePresence(0, 0)
	assert.ErrorIs(t, err, matrix.ErrUnsupportedAxis)

	f, err := matrix.AllelesSortedByFrequency(sites, 2)
	require.NoError(t, err)
	wantF, err := matrix.AllelesSortedByFrequency(base, 9)
	require.NoError(t, err)
	assert.Equal(t, wantF, f)

	col, err := matrix.Column(taxa, 3)
	require.NoError(t, err)
	het, err := matrix.HeterozygousCount(taxa, 3)
	require.NoError(t, err)
	n := 0
	for _, g := range col {
		if genotype.IsHeterozygous(g) {
			n++
		}
	}
	assert.Equal(t, n, het)
}

func TestCombine_Routing(t *testing.T) {
	taxa := names(3)
	first := buildMatrix(t, 5, taxa, "1", 4)
	second := buildMatrix(t, 6, taxa, "2", 3)

	c, err := Combine(first, second)
	require.NoError(t, err)
	assert.Equal(t, 7, c.SiteCount())
	assert.Equal(t, []int{0, 4}, c.LociOffsets())

	for tx := range taxa {
		got, err := c.Base(tx, 5)
		require.NoError(t, err)
		want, err := second.Base(tx, 1)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		row, err := c.BaseRow(tx)
		require.NoError(t, err)
		a, err := first.BaseRow(tx)
		require.NoError(t, err)
		b, err := second.BaseRow(tx)
		require.NoError(t, err)
		assert.Equal(t, append(a, b...), row)
	}

	site, err := c.SiteOfPosition(200, "2", "")
	require.NoError(t, err)
	assert.Equal(t, 5, site)

	f, err := matrix.AllelesSortedByFrequency(c, 6)
	require.NoError(t, err)
	want, err := matrix.AllelesSortedByFrequency(second, 2)
	require.NoError(t, err)
	assert.Equal(t, want, f)

	_, err = c.TaxonPresence(0, 0)
	assert.ErrorIs(t, err, matrix.ErrUnsupportedAxis)
}

func TestCombine_MergesSplitLocus(t *testing.T) {
	base := buildMatrix(t, 7, names(2), "1", 10)
	head, err := FilterSiteRange(base, 0, 3)
	require.NoError(t, err)
	tail, err := FilterSiteRange(base, 4, 9)
	require.NoError(t, err)

	c, err := Combine(head, tail)
	require.NoError(t, err)
	assert.Equal(t, []matrix.Locus{{Name: "1", Start: 0, End: 10}}, c.Loci())
}

func TestCombine_RejectsDifferentTaxa(t *testing.T) {
	first := buildMatrix(t, 8, []string{"a", "b"}, "1", 2)
	second := buildMatrix(t, 9, []string{"b", "a"}, "2", 2)
	_, err := Combine(first, second)
	assert.ErrorIs(t, err, matrix.ErrInvalidArgument)
}

func TestJoin(t *testing.T) {
	first := buildMatrix(t, 10, []string{"c", "a"}, "1", 3)
	second := buildMatrix(t, 11, []string{"b", "c"}, "2", 2)

	union, err := Join(Union, first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, matrix.TaxaNames(union))
	assert.Equal(t, 5, union.SiteCount())

	g, err := union.Base(1, 0)
	require.NoError(t, err)
	assert.Equal(t, genotype.Unknown, g, "b is absent from the first part")

	g, err = union.Base(0, 2)
	require.NoError(t, err)
	want, err := first.Base(1, 2)
	require.NoError(t, err)
	assert.Equal(t, want, g)

	inter, err := Join(Intersect, first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, matrix.TaxaNames(inter))
	g, err = inter.Base(0, 4)
	require.NoError(t, err)
	want, err = second.Base(1, 1)
	require.NoError(t, err)
	assert.Equal(t, want, g)
}

// staleSource is a BitMatrix whose derived indexes report stale.
type staleSource struct {
	*matrix.BitMatrix
	err error
}

func (s staleSource) Ready() error { return s.err }

func TestViews_SiteOfPositionForwardsReadiness(t *testing.T) {
	base := buildMatrix(t, 12, names(3), "1", 6)
	stale := staleSource{BitMatrix: base, err: matrix.ErrNotReady}

	filtered, err := FilterSiteRange(stale, 1, 4)
	require.NoError(t, err)
	_, err = filtered.SiteOfPosition(300, "1", "")
	assert.ErrorIs(t, err, matrix.ErrNotReady)

	nested, err := FilterTaxa(filtered, []string{"T1"}, false)
	require.NoError(t, err)
	_, err = nested.SiteOfPosition(300, "1", "")
	assert.ErrorIs(t, err, matrix.ErrNotReady)

	stale.err = nil
	filtered, err = FilterSiteRange(stale, 1, 4)
	require.NoError(t, err)
	s, err := filtered.SiteOfPosition(300, "1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, s)
}

func TestCombined_SiteOfPositionForwardsReadiness(t *testing.T) {
	taxa := names(2)
	first := buildMatrix(t, 13, taxa, "1", 3)
	second := staleSource{BitMatrix: buildMatrix(t, 14, taxa, "2", 3), err: matrix.ErrNotReady}

	c, err := Combine(first, second)
	require.NoError(t, err)
	_, err = c.SiteOfPosition(100, "1", "")
	assert.ErrorIs(t, err, matrix.ErrNotReady)

	second.err = nil
	c, err = Combine(first, second)
	require.NoError(t, err)
	s, err := c.SiteOfPosition(200, "2", "")
	require.NoError(t, err)
	assert.Equal(t, 4, s)
}

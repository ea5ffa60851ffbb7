package matrix

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gtstore/allele"
	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/testutil"
)

const (
	a  = genotype.A
	c  = genotype.C
	g  = genotype.G
	tt = genotype.T
)

// randomRaw builds taxa × sites calls from at most alleles distinct codes, with
// roughly a tenth missing.
func randomRaw(seed int64, taxa, sites, alleles int) *RawMatrix {
	raw := &RawMatrix{
		Taxa: testutil.Names("T", taxa),
		Genotypes: testutil.NewRNG(seed).Rows(taxa, sites, testutil.CallConfig{
			Alleles:     alleles,
			MissingRate: 0.1,
			HetRate:     1.0 / 3,
		}),
		SiteSpec: SiteSpec{
			Loci:        []string{"1", "2"},
			LociOffsets: []int{0, sites / 2},
			Positions:   make([]int32, sites),
		},
	}
	for s := range sites {
		raw.Positions[s] = int32(s%(sites/2)*10 + 1)
	}
	return raw
}

func testConfig(layout Layout) Config {
	cfg := DefaultConfig()
	cfg.Layout = layout
	return cfg
}

func TestBuild_DecodesRawCalls(t *testing.T) {
	raw := randomRaw(1, 70, 130, 4)
	for _, layout := range []Layout{SiteMajor, TaxonMajor, Both} {
		t.Run(layout.String(), func(t *testing.T) {
			m, err := Build(context.Background(), raw, testConfig(layout))
			require.NoError(t, err)
			assert.Equal(t, layout, m.Layout())
			assert.Equal(t, 70, m.TaxonCount())
			assert.Equal(t, 130, m.SiteCount())

			for tx := range raw.Taxa {
				row, err := m.BaseRow(tx)
				require.NoError(t, err)
				for s, want := range raw.Genotypes[tx] {
					assert.Equal(t, genotype.Canonical(want), row[s], "taxon %d site %d", tx, s)
				}
			}
		})
	}
}

func TestBuild_RankOrderAndHalfMissing(t *testing.T) {
	raw := &RawMatrix{
		Taxa: []string{"t0", "t1", "t2"},
		Genotypes: [][]byte{
			{genotype.Pack(a, c)},
			{genotype.Pack(c, c)},
			{genotype.Pack(g, genotype.UnknownAllele)},
		},
		SiteSpec: SiteSpec{Loci: []string{"1"}, LociOffsets: []int{0}, Positions: []int32{1}},
	}
	m, err := Build(context.Background(), raw, DefaultConfig())
	require.NoError(t, err)

	// C:3, A:1, G:1 ties keep ascending code order.
	assert.Equal(t, []genotype.AlleleCode{c, a, g}, m.Alleles(0))

	got, err := m.Base(0, 0)
	require.NoError(t, err)
	assert.Equal(t, genotype.Pack(a, c), got)

	got, err = m.Base(2, 0)
	require.NoError(t, err)
	assert.Equal(t, genotype.Homozygous(g), got)

	s, err := m.BaseString(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "M", s)
}

func TestBase_CanonicalWhenMinorHasLowerCode(t *testing.T) {
	raw := &RawMatrix{
		Taxa:      []string{"t0", "t1", "t2"},
		Genotypes: [][]byte{{genotype.Homozygous(c)}, {genotype.Homozygous(c)}, {genotype.Pack(c, a)}},
		SiteSpec:  SiteSpec{Loci: []string{"1"}, LociOffsets: []int{0}, Positions: []int32{1}},
	}
	for _, layout := range []Layout{SiteMajor, TaxonMajor} {
		m, err := Build(context.Background(), raw, testConfig(layout))
		require.NoError(t, err)
		require.Equal(t, []genotype.AlleleCode{c, a}, m.Alleles(0))

		got, err := m.Base(2, 0)
		require.NoError(t, err)
		assert.Equal(t, genotype.Pack(a, c), got, layout.String())

		row, err := m.BaseRow(2)
		require.NoError(t, err)
		assert.Equal(t, []byte{genotype.Canonical(raw.Genotypes[2][0])}, row)

		arr, err := m.BaseArray(2, 0)
		require.NoError(t, err)
		assert.Equal(t, [2]genotype.AlleleCode{a, c}, arr)
	}
}

func TestBuild_RareSlot(t *testing.T) {
	raw := &RawMatrix{
		Taxa:      []string{"t0", "t1", "t2"},
		Genotypes: [][]byte{{genotype.Homozygous(a)}, {genotype.Homozygous(a)}, {genotype.Pack(a, tt)}},
		SiteSpec:  SiteSpec{Loci: []string{"1"}, LociOffsets: []int{0}, Positions: []int32{1}},
	}

	cfg := DefaultConfig()
	cfg.MaxNumAlleles = 1
	m, err := Build(context.Background(), raw, cfg)
	require.NoError(t, err)
	got, err := m.Base(2, 0)
	require.NoError(t, err)
	assert.Equal(t, genotype.Homozygous(a), got)

	cfg.RetainRare = true
	m, err = Build(context.Background(), raw, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, m.RankSlots())
	got, err = m.Base(2, 0)
	require.NoError(t, err)
	assert.Equal(t, genotype.Pack(a, genotype.RareAllele), got)

	f, err := AllelesSortedByFrequency(m, 0)
	require.NoError(t, err)
	assert.Equal(t, allele.Frequencies{{Allele: a, Count: 5}}, f)
}

func TestBuild_InvalidArguments(t *testing.T) {
	raw := randomRaw(2, 4, 6, 3)
	ctx := context.Background()

	for _, n := range []int{0, 15} {
		cfg := DefaultConfig()
		cfg.MaxNumAlleles = n
		_, err := Build(ctx, raw, cfg)
		assert.ErrorIs(t, err, ErrInvalidArgument, "maxNumAlleles %d", n)
	}

	short := *raw
	short.Genotypes = raw.Genotypes[:3]
	_, err := Build(ctx, &short, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	dup := *raw
	dup.Taxa = []string{"x", "x", "y", "z"}
	_, err = Build(ctx, &dup, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = BuildWithAlleles(ctx, raw, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	tables := make([][]genotype.AlleleCode, 6)
	tables[0] = []genotype.AlleleCode{a, a}
	_, err = BuildWithAlleles(ctx, raw, tables, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBuildWithAlleles(t *testing.T) {
	raw := randomRaw(3, 20, 10, 3)
	tables := make([][]genotype.AlleleCode, 10)
	for s := range tables {
		tables[s] = []genotype.AlleleCode{g, a}
	}
	cfg := DefaultConfig()
	cfg.MaxNumAlleles = 2
	m, err := BuildWithAlleles(context.Background(), raw, tables, cfg)
	require.NoError(t, err)

	for tx := range raw.Taxa {
		for s := range tables {
			got, err := m.Base(tx, s)
			require.NoError(t, err)
			ga, gb := genotype.Unpack(got)
			for _, x := range []genotype.AlleleCode{ga, gb} {
				assert.Contains(t, []genotype.AlleleCode{g, a, genotype.UnknownAllele}, x)
			}
		}
	}
}

func TestBuild_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuildTimeout = time.Nanosecond
	_, err := Build(context.Background(), randomRaw(4, 64, 4096, 4), cfg)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTranspose_Involution(t *testing.T) {
	ctx := context.Background()
	raw := randomRaw(5, 130, 200, 5)
	m, err := Build(ctx, raw, testConfig(SiteMajor))
	require.NoError(t, err)

	tm, err := m.Transpose(ctx)
	require.NoError(t, err)
	assert.Equal(t, TaxonMajor, tm.Layout())
	back, err := tm.Transpose(ctx)
	require.NoError(t, err)
	assert.Equal(t, SiteMajor, back.Layout())

	direct, err := Build(ctx, raw, testConfig(TaxonMajor))
	require.NoError(t, err)

	for r := range m.RankSlots() {
		for s := range m.SiteCount() {
			want, err := m.SitePresence(r, s)
			require.NoError(t, err)
			got, err := back.SitePresence(r, s)
			require.NoError(t, err)
			require.True(t, want.Equal(got), "rank %d site %d", r, s)
		}
		for tx := range m.TaxonCount() {
			want, err := direct.TaxonPresence(r, tx)
			require.NoError(t, err)
			got, err := tm.TaxonPresence(r, tx)
			require.NoError(t, err)
			require.True(t, want.Equal(got), "rank %d taxon %d", r, tx)
		}
	}
}

func TestOptimize(t *testing.T) {
	ctx := context.Background()
	m, err := Build(ctx, randomRaw(6, 10, 10, 3), testConfig(TaxonMajor))
	require.NoError(t, err)

	same, err := m.Optimize(ctx, TaxonMajor)
	require.NoError(t, err)
	assert.Same(t, m, same)

	both, err := m.Optimize(ctx, Both)
	require.NoError(t, err)
	assert.Equal(t, Both, both.Layout())
	_, err = both.SitePresence(0, 0)
	require.NoError(t, err)
	_, err = both.TaxonPresence(0, 0)
	require.NoError(t, err)
}

func TestPresence_UnsupportedAxis(t *testing.T) {
	ctx := context.Background()
	m, err := Build(ctx, randomRaw(7, 8, 8, 2), testConfig(SiteMajor))
	require.NoError(t, err)

	_, err = m.TaxonPresence(0, 0)
	assert.ErrorIs(t, err, ErrUnsupportedAxis)
	assert.NotErrorIs(t, err, ErrInvalidArgument)

	_, err = m.SitePresence(m.RankSlots(), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTotalGametesNotMissing_CountsCalls(t *testing.T) {
	n := genotype.UnknownAllele
	raw := &RawMatrix{
		Taxa: []string{"t0", "t1", "t2", "t3", "t4"},
		Genotypes: [][]byte{
			{genotype.Homozygous(a), genotype.Pack(a, c)},
			{genotype.Homozygous(a), genotype.Unknown},
			{genotype.Pack(a, tt), genotype.Pack(c, n)},
			{genotype.Unknown, genotype.Homozygous(g)},
			{genotype.Pack(n, a), genotype.Unknown},
		},
		SiteSpec: SiteSpec{Loci: []string{"1"}, LociOffsets: []int{0}, Positions: []int32{1, 2}},
	}

	cfg := DefaultConfig()
	cfg.MaxNumAlleles = 1
	cfg.RetainRare = true
	m, err := Build(context.Background(), raw, cfg)
	require.NoError(t, err)

	// Site 0: the rare T gamete of t2 is not ordinary and t4 decodes as AA.
	total, err := TotalGametesNotMissing(m, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	nm, err := TotalNotMissing(m, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, nm)

	for s := range m.SiteCount() {
		f, err := AllelesSortedByFrequency(m, s)
		require.NoError(t, err)
		total, err := TotalGametesNotMissing(m, s)
		require.NoError(t, err)
		assert.Equal(t, f.Total(), total, "site %d", s)
	}
}

func TestFrequencies_BitPathMatchesScan(t *testing.T) {
	ctx := context.Background()
	raw := randomRaw(8, 97, 64, 5)
	cfg := testConfig(Both)
	cfg.RetainRare = true
	cfg.MaxNumAlleles = 3
	both, err := Build(ctx, raw, cfg)
	require.NoError(t, err)
	taxonOnly := both.derive(nil, both.taxonWords)

	for s := range both.SiteCount() {
		col, err := Column(both, s)
		require.NoError(t, err)

		fast, err := both.AllelesSortedByFrequency(s)
		require.NoError(t, err)
		assert.Equal(t, allele.Rank(col), fast, "site %d", s)

		slow, err := taxonOnly.AllelesSortedByFrequency(s)
		require.NoError(t, err)
		assert.Equal(t, fast, slow, "site %d", s)

		total, err := TotalGametesNotMissing(both, s)
		require.NoError(t, err)
		assert.Equal(t, fast.Total(), total)

		het, err := both.HeterozygousCount(s)
		require.NoError(t, err)
		assert.Equal(t, allele.HeterozygousCount(col), het)

		nm, err := both.TotalNotMissing(s)
		require.NoError(t, err)
		assert.Equal(t, allele.NotMissingCount(col), nm)

		for r := range both.RankSlots() {
			hom, err := both.HomozygousCount(s, r)
			require.NoError(t, err)
			homScan, err := taxonOnly.HomozygousCount(s, r)
			require.NoError(t, err)
			assert.Equal(t, homScan, hom, "site %d rank %d", s, r)
		}
	}

	for tx := range both.TaxonCount() {
		row, err := both.BaseRow(tx)
		require.NoError(t, err)
		het, err := both.TaxonHeterozygousCount(tx)
		require.NoError(t, err)
		assert.Equal(t, allele.HeterozygousCount(row), het)
		nm, err := both.TaxonNotMissingCount(tx)
		require.NoError(t, err)
		assert.Equal(t, allele.NotMissingCount(row), nm)
	}
}

func TestFrequencies_MatchRawWhenLossless(t *testing.T) {
	raw := randomRaw(9, 50, 40, 4)
	m, err := Build(context.Background(), raw, DefaultConfig())
	require.NoError(t, err)

	for s := range m.SiteCount() {
		col := make([]byte, len(raw.Genotypes))
		for tx, row := range raw.Genotypes {
			col[tx] = row[s]
		}
		want := allele.Rank(col)
		got, err := AllelesSortedByFrequency(m, s)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		maf, err := MinorAlleleFrequency(m, s)
		require.NoError(t, err)
		assert.InDelta(t, want.MinorFrequency(), maf, 1e-12)
	}
}

func TestBase_ConsistencyViolation(t *testing.T) {
	m, err := Build(context.Background(), randomRaw(10, 4, 4, 3), testConfig(SiteMajor))
	require.NoError(t, err)

	for r := range 3 {
		m.siteWords[(2*m.slots+r)*m.tw] |= 1 << 1
	}
	_, err = m.Base(1, 2)
	require.ErrorIs(t, err, ErrConsistency)
	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Taxon)
	assert.Equal(t, 2, ce.Site)
	assert.Equal(t, 3, ce.Bits)
}

func TestBase_OutOfRange(t *testing.T) {
	m, err := Build(context.Background(), randomRaw(11, 4, 4, 3), DefaultConfig())
	require.NoError(t, err)

	_, err = m.Base(4, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = m.BaseRange(0, 3, 5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMaterialize(t *testing.T) {
	ctx := context.Background()
	raw := randomRaw(12, 12, 20, 3)
	m, err := Build(ctx, raw, DefaultConfig())
	require.NoError(t, err)

	again, err := Materialize(ctx, m, testConfig(TaxonMajor))
	require.NoError(t, err)
	for tx := range raw.Taxa {
		want, err := m.BaseRow(tx)
		require.NoError(t, err)
		got, err := again.BaseRow(tx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, m.Taxa(), again.Taxa())
}

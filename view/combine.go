package view

import (
	"fmt"
	"slices"
	"sort"

	"github.com/hupe1980/gtstore/allele"
	"github.com/hupe1980/gtstore/bitset"
	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/matrix"
)

// Combined concatenates the site axes of sources sharing one taxon order.
type Combined struct {
	parts   []matrix.Source
	offsets []int
	table   *matrix.SiteTable
	names   []string
	taxonIx map[string]int
}

var (
	_ matrix.Source          = (*Combined)(nil)
	_ matrix.FrequencySource = (*Combined)(nil)
	_ matrix.PresenceSource  = (*Combined)(nil)
	_ matrix.SiteTabler      = (*Combined)(nil)
	_ matrix.Readier         = (*Combined)(nil)
)

// Combine concatenates parts in order. Every part must list the same taxa in
// the same order; a locus split across adjacent parts is merged.
func Combine(parts ...matrix.Source) (*Combined, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to combine", matrix.ErrInvalidArgument)
	}
	names := matrix.TaxaNames(parts[0])
	tables := make([]*matrix.SiteTable, len(parts))
	offsets := make([]int, len(parts)+1)
	for i, p := range parts {
		if i > 0 && !slices.Equal(names, matrix.TaxaNames(p)) {
			return nil, fmt.Errorf("%w: part %d lists different taxa", matrix.ErrInvalidArgument, i)
		}
		t, err := matrix.SitesOf(p)
		if err != nil {
			return nil, err
		}
		tables[i] = t
		offsets[i+1] = offsets[i] + p.SiteCount()
	}
	table, err := matrix.ConcatSiteTables(tables...)
	if err != nil {
		return nil, err
	}
	c := &Combined{
		parts:   slices.Clone(parts),
		offsets: offsets,
		table:   table,
		names:   names,
		taxonIx: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, dup := c.taxonIx[name]; !dup {
			c.taxonIx[name] = i
		}
	}
	return c, nil
}

// Parts returns the combined sources.
func (c *Combined) Parts() []matrix.Source { return slices.Clone(c.parts) }

// route returns the part holding site s and the site index within it. Empty
// parts share their offset with the next part and are skipped.
func (c *Combined) route(s int) (int, int) {
	i := sort.SearchInts(c.offsets, s+1) - 1
	return i, s - c.offsets[i]
}

func (c *Combined) TaxonCount() int        { return len(c.names) }
func (c *Combined) SiteCount() int         { return c.table.SiteCount() }
func (c *Combined) TaxonName(t int) string { return c.names[t] }

// TaxonIndex returns the index of the named taxon, or -1.
func (c *Combined) TaxonIndex(name string) int {
	if t, ok := c.taxonIx[name]; ok {
		return t
	}
	return -1
}

func (c *Combined) SiteTable() *matrix.SiteTable { return c.table }
func (c *Combined) Locus(site int) matrix.Locus  { return c.table.Locus(site) }
func (c *Combined) Loci() []matrix.Locus         { return c.table.Loci() }
func (c *Combined) LociOffsets() []int           { return c.table.LociOffsets() }
func (c *Combined) Position(site int) int32      { return c.table.Position(site) }
func (c *Combined) SiteName(site int) string     { return c.table.SiteName(site) }

func (c *Combined) SiteOfPosition(position int32, locus string, snpID string) (int, error) {
	if err := c.Ready(); err != nil {
		return 0, err
	}
	return c.table.SiteOfPosition(position, locus, snpID)
}

// Ready returns the first readiness error among the parts.
func (c *Combined) Ready() error {
	for _, p := range c.parts {
		if err := matrix.CheckReady(p); err != nil {
			return err
		}
	}
	return nil
}

// Base routes site s to the part that holds it.
func (c *Combined) Base(t, s int) (byte, error) {
	if err := matrix.CheckTaxon(t, c.TaxonCount()); err != nil {
		return genotype.Unknown, err
	}
	if err := matrix.CheckSite(s, c.SiteCount()); err != nil {
		return genotype.Unknown, err
	}
	i, local := c.route(s)
	return c.parts[i].Base(t, local)
}

func (c *Combined) BaseArray(t, s int) ([2]genotype.AlleleCode, error) {
	g, err := c.Base(t, s)
	return genotype.UnpackArray(g), err
}

func (c *Combined) BaseRow(t int) ([]byte, error) {
	return c.BaseRange(t, 0, c.SiteCount())
}

func (c *Combined) BaseRange(t, start, end int) ([]byte, error) {
	if err := matrix.CheckTaxon(t, c.TaxonCount()); err != nil {
		return nil, err
	}
	if err := matrix.CheckRange(start, end, c.SiteCount()); err != nil {
		return nil, err
	}
	out := make([]byte, 0, end-start)
	for i, p := range c.parts {
		lo, hi := max(start, c.offsets[i]), min(end, c.offsets[i+1])
		if lo >= hi {
			continue
		}
		chunk, err := p.BaseRange(t, lo-c.offsets[i], hi-c.offsets[i])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Combined) AllelesSortedByFrequency(s int) (allele.Frequencies, error) {
	if err := matrix.CheckSite(s, c.SiteCount()); err != nil {
		return nil, err
	}
	i, local := c.route(s)
	return matrix.AllelesSortedByFrequency(c.parts[i], local)
}

func (c *Combined) HeterozygousCount(s int) (int, error) {
	if err := matrix.CheckSite(s, c.SiteCount()); err != nil {
		return 0, err
	}
	i, local := c.route(s)
	return matrix.HeterozygousCount(c.parts[i], local)
}

func (c *Combined) TotalNotMissing(s int) (int, error) {
	if err := matrix.CheckSite(s, c.SiteCount()); err != nil {
		return 0, err
	}
	i, local := c.route(s)
	return matrix.TotalNotMissing(c.parts[i], local)
}

// RankSlots returns the largest rank-slot count of the parts, or 0 when a
// part is not bit-packed.
func (c *Combined) RankSlots() int {
	n := 0
	for _, p := range c.parts {
		ps, ok := p.(matrix.PresenceSource)
		if !ok {
			return 0
		}
		n = max(n, ps.RankSlots())
	}
	return n
}

// SitePresence delegates to the part holding site s.
func (c *Combined) SitePresence(rank, s int) (*bitset.BitSet, error) {
	if err := matrix.CheckSite(s, c.SiteCount()); err != nil {
		return nil, err
	}
	i, local := c.route(s)
	ps, ok := c.parts[i].(matrix.PresenceSource)
	if !ok {
		return nil, fmt.Errorf("%w: part %d is not bit-packed", matrix.ErrUnsupportedAxis, i)
	}
	return ps.SitePresence(rank, local)
}

// TaxonPresence is only available for a single part; a taxon bitset spanning
// parts would have to be materialized.
func (c *Combined) TaxonPresence(rank, t int) (*bitset.BitSet, error) {
	if len(c.parts) != 1 {
		return nil, fmt.Errorf("%w: taxon presence across %d combined parts", matrix.ErrUnsupportedAxis, len(c.parts))
	}
	ps, ok := c.parts[0].(matrix.PresenceSource)
	if !ok {
		return nil, fmt.Errorf("%w: part 0 is not bit-packed", matrix.ErrUnsupportedAxis)
	}
	return ps.TaxonPresence(rank, t)
}

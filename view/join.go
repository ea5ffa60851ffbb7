package view

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gtstore/matrix"
)

// JoinMode selects the taxa of a Join.
type JoinMode uint8

const (
	// Union keeps every taxon of any part; taxa missing from a part read as unknown there.
	Union JoinMode = iota
	// Intersect keeps the taxa present in every part.
	Intersect
)

func (m JoinMode) String() string {
	switch m {
	case Union:
		return "union"
	case Intersect:
		return "intersect"
	default:
		return fmt.Sprintf("JoinMode(%d)", uint8(m))
	}
}

// Join aligns the taxa of parts, sorted by name, and combines them.
func Join(mode JoinMode, parts ...matrix.Source) (*Combined, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to join", matrix.ErrInvalidArgument)
	}
	if mode > Intersect {
		return nil, fmt.Errorf("%w: unknown join mode %d", matrix.ErrInvalidArgument, mode)
	}

	var all []string
	for _, p := range parts {
		all = append(all, matrix.TaxaNames(p)...)
	}
	slices.Sort(all)
	all = slices.Compact(all)
	ids := make(map[string]uint32, len(all))
	for i, name := range all {
		ids[name] = uint32(i)
	}

	var common *roaring.Bitmap
	for _, p := range parts {
		set := roaring.New()
		for t := range p.TaxonCount() {
			set.Add(ids[p.TaxonName(t)])
		}
		switch {
		case common == nil:
			common = set
		case mode == Union:
			common.Or(set)
		default:
			common.And(set)
		}
	}

	names := make([]string, 0, common.GetCardinality())
	it := common.Iterator()
	for it.HasNext() {
		names = append(names, all[it.Next()])
	}

	aligned := make([]matrix.Source, len(parts))
	for i, p := range parts {
		f, err := FilterTaxa(p, names, true)
		if err != nil {
			return nil, err
		}
		aligned[i] = f
	}
	return Combine(aligned...)
}

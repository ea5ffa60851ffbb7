package matrix

import (
	"context"
	"time"

	"github.com/hupe1980/gtstore/bitset"
	"github.com/hupe1980/gtstore/internal/workerpool"
)

// Transpose returns a matrix holding only the layout m lacks, derived by 64×64
// block transposes of the layout m holds. A matrix holding both layouts is
// returned as is.
func (m *BitMatrix) Transpose(ctx context.Context) (*BitMatrix, error) {
	start := time.Now()
	var out *BitMatrix
	switch {
	case m.siteWords != nil && m.taxonWords != nil:
		return m, nil
	case m.siteWords != nil:
		words, err := m.siteToTaxon(ctx)
		if err != nil {
			return nil, err
		}
		out = m.derive(nil, words)
	default:
		words, err := m.taxonToSite(ctx)
		if err != nil {
			return nil, err
		}
		out = m.derive(words, nil)
	}
	m.cfg.Logger.Debug("bit matrix transposed", "layout", out.cfg.Layout.String(), "elapsed", time.Since(start))
	return out, nil
}

// Optimize returns a matrix holding at least the requested layout, transposing
// when needed. The result shares the existing bit arrays.
func (m *BitMatrix) Optimize(ctx context.Context, layout Layout) (*BitMatrix, error) {
	switch layout {
	case SiteMajor:
		if m.siteWords != nil {
			return m, nil
		}
	case TaxonMajor:
		if m.taxonWords != nil {
			return m, nil
		}
	case Both:
		if m.siteWords != nil && m.taxonWords != nil {
			return m, nil
		}
	default:
		return nil, invalidf("unknown layout %d", layout)
	}
	t, err := m.Transpose(ctx)
	if err != nil {
		return nil, err
	}
	if layout != Both {
		return t, nil
	}
	if m.siteWords != nil {
		return m.derive(m.siteWords, t.taxonWords), nil
	}
	return m.derive(t.siteWords, m.taxonWords), nil
}

// siteToTaxon runs one unit per 64-taxon block; a unit writes only the taxon
// bitsets of its block.
func (m *BitMatrix) siteToTaxon(ctx context.Context) ([]uint64, error) {
	nt, ns := len(m.taxa), m.SiteCount()
	out := make([]uint64, nt*m.slots*m.sw)
	err := workerpool.Run(ctx, m.cfg.pool(), m.tw, func(_ context.Context, tb int) error {
		var blk [64]uint64
		for r := range m.slots {
			for sb := range m.sw {
				for i := range blk {
					blk[i] = 0
					if s := sb<<6 + i; s < ns {
						blk[i] = m.siteWords[(s*m.slots+r)*m.tw+tb]
					}
				}
				bitset.Transpose64(&blk)
				for j := range min(64, nt-tb<<6) {
					t := tb<<6 + j
					out[(t*m.slots+r)*m.sw+sb] = blk[j]
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// taxonToSite runs one unit per 64-site block.
func (m *BitMatrix) taxonToSite(ctx context.Context) ([]uint64, error) {
	nt, ns := len(m.taxa), m.SiteCount()
	out := make([]uint64, ns*m.slots*m.tw)
	err := workerpool.Run(ctx, m.cfg.pool(), m.sw, func(_ context.Context, sb int) error {
		var blk [64]uint64
		for r := range m.slots {
			for tb := range m.tw {
				for j := range blk {
					blk[j] = 0
					if t := tb<<6 + j; t < nt {
						blk[j] = m.taxonWords[(t*m.slots+r)*m.sw+sb]
					}
				}
				bitset.Transpose64(&blk)
				for i := range min(64, ns-sb<<6) {
					s := sb<<6 + i
					out[(s*m.slots+r)*m.tw+tb] = blk[i]
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

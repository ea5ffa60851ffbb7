package matrix

import (
	"context"
	"time"

	"github.com/hupe1980/gtstore/allele"
	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/internal/workerpool"
)

const (
	siteUnitSize  = 1024
	taxonUnitSize = 16
)

// RawMatrix is the bulk input of Build: one diploid byte per (taxon, site)
// plus taxon names and site metadata.
type RawMatrix struct {
	Taxa      []string
	Genotypes [][]byte
	SiteSpec
}

func (raw *RawMatrix) validate() (*SiteTable, error) {
	sites, err := NewSiteTable(raw.SiteSpec)
	if err != nil {
		return nil, err
	}
	if len(raw.Genotypes) != len(raw.Taxa) {
		return nil, invalidf("%d genotype rows for %d taxa", len(raw.Genotypes), len(raw.Taxa))
	}
	seen := make(map[string]struct{}, len(raw.Taxa))
	for t, name := range raw.Taxa {
		if _, dup := seen[name]; dup {
			return nil, invalidf("duplicate taxon %q", name)
		}
		seen[name] = struct{}{}
		if len(raw.Genotypes[t]) != sites.SiteCount() {
			return nil, invalidf("taxon %q has %d calls for %d sites", name, len(raw.Genotypes[t]), sites.SiteCount())
		}
	}
	return sites, nil
}

// Build ranks the alleles of every site and packs raw into a BitMatrix with
// the configured layout. Ranking and packing run on a worker pool; the whole
// build fails with ErrTimeout when it exceeds cfg.BuildTimeout.
func Build(ctx context.Context, raw *RawMatrix, cfg Config) (*BitMatrix, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sites, err := raw.validate()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	alleles, err := RankSites(ctx, raw.Genotypes, sites.SiteCount(), cfg)
	if err != nil {
		return nil, err
	}
	return build(ctx, raw, sites, alleles, cfg, start)
}

// BuildWithAlleles packs raw using precomputed per-site allele tables. Each
// table holds at most cfg.MaxNumAlleles distinct ordinary codes in rank order.
func BuildWithAlleles(ctx context.Context, raw *RawMatrix, alleles [][]genotype.AlleleCode, cfg Config) (*BitMatrix, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sites, err := raw.validate()
	if err != nil {
		return nil, err
	}
	tables, err := checkAlleleTables(alleles, sites.SiteCount(), cfg.MaxNumAlleles)
	if err != nil {
		return nil, err
	}
	return build(ctx, raw, sites, tables, cfg, time.Now())
}

func checkAlleleTables(alleles [][]genotype.AlleleCode, sites, maxNumAlleles int) ([][]genotype.AlleleCode, error) {
	if sites > 0 && len(alleles) == 0 {
		return nil, invalidf("empty allele table")
	}
	if len(alleles) != sites {
		return nil, invalidf("%d allele tables for %d sites", len(alleles), sites)
	}
	out := make([][]genotype.AlleleCode, sites)
	for s, table := range alleles {
		if len(table) > maxNumAlleles {
			return nil, invalidf("site %d: %d alleles exceed maxNumAlleles %d", s, len(table), maxNumAlleles)
		}
		var seen [16]bool
		for _, a := range table {
			if !a.IsKnown() || a > genotype.MaxKnownAllele {
				return nil, invalidf("site %d: allele code %d is not an ordinary allele", s, a)
			}
			if seen[a] {
				return nil, invalidf("site %d: duplicate allele code %d", s, a)
			}
			seen[a] = true
		}
		out[s] = append([]genotype.AlleleCode(nil), table...)
	}
	return out, nil
}

// RankSites computes the top cfg.MaxNumAlleles alleles of every site by
// scanning the rows.
func RankSites(ctx context.Context, rows [][]byte, sites int, cfg Config) ([][]genotype.AlleleCode, error) {
	cfg = cfg.withDefaults()
	alleles := make([][]genotype.AlleleCode, sites)
	units := workerpool.Split(sites, siteUnitSize)
	err := workerpool.Run(ctx, cfg.pool(), len(units), func(_ context.Context, u int) error {
		col := make([]byte, len(rows))
		for s := units[u].Start; s < units[u].End; s++ {
			for t, row := range rows {
				col[t] = row[s]
			}
			alleles[s] = allele.Rank(col).Table(cfg.MaxNumAlleles)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alleles, nil
}

func (c Config) pool() workerpool.Config {
	return workerpool.Config{Workers: c.Workers, Timeout: c.BuildTimeout}
}

func build(ctx context.Context, raw *RawMatrix, sites *SiteTable, alleles [][]genotype.AlleleCode, cfg Config, start time.Time) (*BitMatrix, error) {
	taxa := append([]string(nil), raw.Taxa...)
	m := newBitMatrix(taxa, sites, alleles, cfg)

	var err error
	switch cfg.Layout {
	case TaxonMajor:
		err = m.fillTaxonMajor(ctx, raw.Genotypes)
	default:
		err = m.fillSiteMajor(ctx, raw.Genotypes)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Layout == Both {
		if m.taxonWords, err = m.siteToTaxon(ctx); err != nil {
			return nil, err
		}
	}

	cfg.Logger.Info("bit matrix built",
		"taxa", len(taxa),
		"sites", sites.SiteCount(),
		"layout", cfg.Layout.String(),
		"slots", m.slots,
		"elapsed", time.Since(start),
	)
	return m, nil
}

// fillSiteMajor partitions by site: every unit owns the bitsets of its sites.
func (m *BitMatrix) fillSiteMajor(ctx context.Context, rows [][]byte) error {
	m.siteWords = make([]uint64, m.SiteCount()*m.slots*m.tw)
	units := workerpool.Split(m.SiteCount(), siteUnitSize)
	return workerpool.Run(ctx, m.cfg.pool(), len(units), func(_ context.Context, u int) error {
		for s := units[u].Start; s < units[u].End; s++ {
			base := s * m.slots * m.tw
			for t, row := range rows {
				a, b := genotype.Unpack(row[s])
				for _, c := range [2]genotype.AlleleCode{a, b} {
					if r := m.slotOf(s, c); r >= 0 {
						m.siteWords[base+r*m.tw+t>>6] |= 1 << (uint(t) & 63)
					}
				}
			}
		}
		return nil
	})
}

// fillTaxonMajor partitions by taxon: every unit owns the bitsets of its taxa.
func (m *BitMatrix) fillTaxonMajor(ctx context.Context, rows [][]byte) error {
	m.taxonWords = make([]uint64, len(m.taxa)*m.slots*m.sw)
	units := workerpool.Split(len(m.taxa), taxonUnitSize)
	return workerpool.Run(ctx, m.cfg.pool(), len(units), func(_ context.Context, u int) error {
		for t := units[u].Start; t < units[u].End; t++ {
			base := t * m.slots * m.sw
			for s, g := range rows[t] {
				a, b := genotype.Unpack(g)
				for _, c := range [2]genotype.AlleleCode{a, b} {
					if r := m.slotOf(s, c); r >= 0 {
						m.taxonWords[base+r*m.sw+s>>6] |= 1 << (uint(s) & 63)
					}
				}
			}
		}
		return nil
	})
}

// Materialize copies any Source into a new BitMatrix, re-ranking its alleles.
// Use it to obtain a layout a view cannot provide.
func Materialize(ctx context.Context, src Source, cfg Config) (*BitMatrix, error) {
	sites, err := SitesOf(src)
	if err != nil {
		return nil, err
	}
	raw := &RawMatrix{
		Taxa:      TaxaNames(src),
		Genotypes: make([][]byte, src.TaxonCount()),
		SiteSpec:  sites.Spec(),
	}
	for t := range raw.Genotypes {
		if raw.Genotypes[t], err = src.BaseRow(t); err != nil {
			return nil, err
		}
	}
	return Build(ctx, raw, cfg)
}

package siteindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/matrix"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups that match no site.
var ErrNotFound = errors.New("siteindex: site not found")

const schema = `
CREATE TABLE site (
	site_index   INTEGER PRIMARY KEY,
	locus        TEXT    NOT NULL,
	position     INTEGER NOT NULL,
	snp_id       TEXT    NOT NULL,
	major_allele TEXT    NOT NULL,
	minor_allele TEXT    NOT NULL,
	maf          REAL    NOT NULL,
	heterozygous INTEGER NOT NULL,
	not_missing  INTEGER NOT NULL,
	coverage     INTEGER NOT NULL
);
CREATE INDEX site_locus_position ON site (locus, position);
CREATE INDEX site_snp_id ON site (snp_id);
CREATE TABLE metadata (
	taxa     INTEGER NOT NULL,
	sites    INTEGER NOT NULL,
	codec    TEXT    NOT NULL
);
`

// Site conforms to the rows of table "site" and is parsed with sqlx.
type Site struct {
	Index        int     `db:"site_index"`
	Locus        string  `db:"locus"`
	Position     int32   `db:"position"`
	SNPID        string  `db:"snp_id"`
	Major        string  `db:"major_allele"`
	Minor        string  `db:"minor_allele"`
	MAF          float64 `db:"maf"`
	Heterozygous int     `db:"heterozygous"`
	NotMissing   int     `db:"not_missing"`
	Coverage     int     `db:"coverage"`
}

// Metadata conforms to the single row of table "metadata".
type Metadata struct {
	Taxa  int    `db:"taxa"`
	Sites int    `db:"sites"`
	Codec string `db:"codec"`
}

// CoverageSource is implemented by backings that know the read depth of a site.
type CoverageSource interface {
	SiteCoverage(site int) (int, error)
}

// Index is an open sidecar.
type Index struct {
	DB       *sqlx.DB
	Metadata Metadata
}

func connect(path string) (*sqlx.DB, error) {
	// URI filenames have to begin with 'file:'.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return sqlx.Connect("sqlite", path)
}

// Open opens an existing sidecar.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(strings.TrimPrefix(path, "file:")); err != nil {
		return nil, fmt.Errorf("siteindex: %w", err)
	}
	db, err := connect(path)
	if err != nil {
		return nil, fmt.Errorf("siteindex: open %s: %w", path, err)
	}
	idx := &Index{DB: db}
	if err := db.Get(&idx.Metadata, "SELECT * FROM metadata LIMIT 1"); err != nil {
		db.Close()
		return nil, fmt.Errorf("siteindex: read metadata: %w", err)
	}
	return idx, nil
}

func (x *Index) Close() error {
	return x.DB.Close()
}

// Export writes a sidecar for src to path, replacing any existing file.
// Alleles are rendered with codec; a nil codec means genotype.Nucleotide.
// Coverage is filled in when src implements CoverageSource.
func Export(ctx context.Context, path string, src matrix.Source, codec genotype.AlleleCodec) error {
	if codec == nil {
		codec = genotype.Nucleotide
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("siteindex: %w", err)
	}
	db, err := connect(path)
	if err != nil {
		return fmt.Errorf("siteindex: create %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `
	PRAGMA journal_mode = OFF;
	PRAGMA synchronous = OFF;
	`); err != nil {
		return fmt.Errorf("siteindex: unable to set pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("siteindex: create schema: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO site
		(site_index, locus, position, snp_id, major_allele, minor_allele, maf, heterozygous, not_missing, coverage)
		VALUES (:site_index, :locus, :position, :snp_id, :major_allele, :minor_allele, :maf, :heterozygous, :not_missing, :coverage)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	cov, hasCoverage := src.(CoverageSource)
	for s := range src.SiteCount() {
		row, err := describe(src, codec, s)
		if err != nil {
			return err
		}
		if hasCoverage {
			if row.Coverage, err = cov.SiteCoverage(s); err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("siteindex: insert site %d: %w", s, err)
		}
	}

	meta := Metadata{Taxa: src.TaxonCount(), Sites: src.SiteCount(), Codec: codec.Name()}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO metadata (taxa, sites, codec) VALUES (:taxa, :sites, :codec)`, meta); err != nil {
		return err
	}
	return tx.Commit()
}

func describe(src matrix.Source, codec genotype.AlleleCodec, s int) (Site, error) {
	freq, err := matrix.AllelesSortedByFrequency(src, s)
	if err != nil {
		return Site{}, err
	}
	het, err := matrix.HeterozygousCount(src, s)
	if err != nil {
		return Site{}, err
	}
	notMissing, err := matrix.TotalNotMissing(src, s)
	if err != nil {
		return Site{}, err
	}
	row := Site{
		Index:        s,
		Locus:        src.Locus(s).Name,
		Position:     src.Position(s),
		SNPID:        src.SiteName(s),
		MAF:          freq.MinorFrequency(),
		Heterozygous: het,
		NotMissing:   notMissing,
	}
	if len(freq) > 0 {
		row.Major = codec.AlleleString(freq.Major())
	}
	if len(freq) > 1 {
		row.Minor = codec.AlleleString(freq.Minor())
	}
	return row, nil
}

// Lookup returns the sites of locus whose position lies in [start, end].
func (x *Index) Lookup(ctx context.Context, locus string, start, end int32) ([]Site, error) {
	var out []Site
	err := x.DB.SelectContext(ctx, &out,
		"SELECT * FROM site WHERE locus = ? AND position BETWEEN ? AND ? ORDER BY site_index", locus, start, end)
	return out, err
}

// ByName returns the site with the given SNP id.
func (x *Index) ByName(ctx context.Context, snpID string) (Site, error) {
	var out Site
	err := x.DB.GetContext(ctx, &out, "SELECT * FROM site WHERE snp_id = ? ORDER BY site_index LIMIT 1", snpID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Site{}, fmt.Errorf("%w: %q", ErrNotFound, snpID)
		}
		return Site{}, err
	}
	return out, nil
}

// MinorAlleleFrequencyAtLeast returns the index of every site whose minor
// allele frequency is at least maf, in site order.
func (x *Index) MinorAlleleFrequencyAtLeast(ctx context.Context, maf float64) ([]int, error) {
	var out []int
	err := x.DB.SelectContext(ctx, &out, "SELECT site_index FROM site WHERE maf >= ? ORDER BY site_index", maf)
	return out, err
}

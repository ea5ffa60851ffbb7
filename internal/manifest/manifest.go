package manifest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/gtstore/blobstore"
)

const (
	ManifestPrefix  = "manifest-"
	CurrentFileName = "CURRENT"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = binaryVersion
)

// Manifest describes one committed state of a container.
type Manifest struct {
	Version   int
	ID        uint64
	CreatedAt time.Time

	MaxNumAlleles int
	RetainRare    bool
	// Codec names the allele codec; CodecAlleles holds a text codec's table.
	Codec        string
	CodecAlleles []string
	// BlockSize is the number of sites per genotype and descriptor block.
	BlockSize   int
	Compression uint8

	SiteCount int
	SitesPath string

	// NextTaxonID is never reused, so cache keys of removed taxa cannot alias.
	NextTaxonID uint64
	Taxa        []TaxonInfo

	// Clean reports whether the annotations of generation AnnotationGen match
	// the taxon list.
	Clean         bool
	AnnotationGen uint64
	AnnotatedPath string
	SummaryPath   string
}

// TaxonInfo describes one taxon column.
type TaxonInfo struct {
	ID   uint64
	Name string
	// DepthAlleles is the number of allele rows in the taxon's depth blocks;
	// zero means the taxon carries no depth.
	DepthAlleles uint8
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.CodecAlleles = slices.Clone(m.CodecAlleles)
	c.Taxa = slices.Clone(m.Taxa)
	return &c
}

// FileName returns the blob name of manifest version id.
func FileName(id uint64) string {
	return fmt.Sprintf("%s%06d", ManifestPrefix, id)
}

func parseFileName(name string) (uint64, bool) {
	s, ok := strings.CutPrefix(name, ManifestPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil
}

// Store reads and commits manifests in a blob store.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// Load loads the manifest CURRENT points at.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	return s.LoadVersion(ctx, 0)
}

// LoadVersion loads a specific version. 0 means latest.
func (s *Store) LoadVersion(ctx context.Context, id uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := FileName(id)
	if id == 0 {
		current, err := blobstore.ReadAll(ctx, s.store, CurrentFileName)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		name = strings.TrimSpace(string(current))
	}

	data, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", name, err)
	}
	return Unmarshal(data)
}

// ListVersions returns the ids of every stored manifest in ascending order.
func (s *Store) ListVersions(ctx context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.store.List(ctx, ManifestPrefix)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, n := range names {
		if id, ok := parseFileName(n); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Save commits m as the next version. m.ID is advanced and CreatedAt set.
// A concurrent writer that already claimed the version makes Save fail with
// an error matching blobstore.ErrExists.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++
	m.CreatedAt = time.Now()

	data, err := m.MarshalBinary()
	if err != nil {
		m.ID--
		return err
	}
	name := FileName(m.ID)
	if err := blobstore.PutIfNotExists(ctx, s.store, name, data); err != nil {
		m.ID--
		return err
	}
	return s.store.Put(ctx, CurrentFileName, []byte(name))
}

// DeleteVersion deletes the manifest blob of version id.
func (s *Store) DeleteVersion(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, FileName(id))
}

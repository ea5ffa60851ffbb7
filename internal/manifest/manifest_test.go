package manifest

import (
	"context"
	"testing"

	"github.com/hupe1980/gtstore/blobstore"
	"github.com/hupe1980/gtstore/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest() *Manifest {
	return &Manifest{
		MaxNumAlleles: 6,
		Codec:         "nucleotide",
		BlockSize:     65536,
		Compression:   2,
		SiteCount:     100,
		SitesPath:     "sites/table.blk",
		NextTaxonID:   3,
		Taxa: []TaxonInfo{
			{ID: 1, Name: "B73", DepthAlleles: 6},
			{ID: 2, Name: "Mo17"},
		},
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemoryStore())

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	m := testManifest()
	require.NoError(t, s.Save(ctx, m))
	assert.Equal(t, uint64(1), m.ID)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.Taxa, got.Taxa)
	assert.Equal(t, 65536, got.BlockSize)
	assert.False(t, got.Clean)

	next := got.Clone()
	next.Clean = true
	next.AnnotationGen = 1
	next.Taxa[0].Name = "B73-renamed"
	require.NoError(t, s.Save(ctx, next))
	assert.Equal(t, uint64(2), next.ID)
	assert.Equal(t, "B73", got.Taxa[0].Name)

	latest, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Clean)
	assert.Equal(t, "B73-renamed", latest.Taxa[0].Name)

	v1, err := s.LoadVersion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "B73", v1.Taxa[0].Name)

	ids, err := s.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, ids)

	require.NoError(t, s.DeleteVersion(ctx, 1))
	ids, err = s.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ids)
}

func TestStore_ConcurrentWriterLosesVersion(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	a := NewStore(blobs)
	b := NewStore(blobs)

	ma := testManifest()
	mb := testManifest()
	require.NoError(t, a.Save(ctx, ma))

	err := b.Save(ctx, mb)
	assert.ErrorIs(t, err, blobstore.ErrExists)
	assert.Equal(t, uint64(0), mb.ID)
}

func TestStore_LoadErrors(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := NewStore(blobs)

	require.NoError(t, blobs.Put(ctx, CurrentFileName, []byte(FileName(999))))
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, blobs.Put(ctx, FileName(999), []byte("garbage")))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_SaveErrors(t *testing.T) {
	ctx := context.Background()
	fsys := fs.NewFaultyFS(fs.LocalFS{})
	fsys.AddRule(CurrentFileName, fs.Fault{FailAfterBytes: -1, FailOnRename: true})

	s := NewStore(blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(fsys)))
	m := testManifest()
	assert.ErrorIs(t, s.Save(ctx, m), fs.ErrInjected)
}

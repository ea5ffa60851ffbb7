package s3

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/gtstore/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ blobstore.BlobStore = (*Store)(nil)
var _ blobstore.BlobStore = (*DDBCommitStore)(nil)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewStore(client, "genotypes", "maize/")

	_, err := s.Open(ctx, "taxa/1/geno-0.blk")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, s.Put(ctx, "taxa/1/geno-0.blk", []byte("ACGTACGT")))
	assert.Contains(t, client.objects, "maize/taxa/1/geno-0.blk")
	require.Len(t, client.checksum, 1)
	assert.Equal(t, crc32cHeader([]byte("ACGTACGT")), client.checksum[0])

	b, err := s.Open(ctx, "taxa/1/geno-0.blk")
	require.NoError(t, err)
	assert.Equal(t, int64(8), b.Size())

	buf := make([]byte, 4)
	n, err := b.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "GTAC", string(buf[:n]))

	n, err = b.ReadAt(ctx, buf, 6)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = b.ReadAt(ctx, buf, 8)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := b.ReadRange(ctx, 1, 3)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "CGT", string(got))
	require.NoError(t, b.Close())

	require.NoError(t, s.Delete(ctx, "taxa/1/geno-0.blk"))
	require.NoError(t, s.Delete(ctx, "taxa/1/geno-0.blk"))
	_, err = s.Open(ctx, "taxa/1/geno-0.blk")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_CreateStreams(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeClient(), "genotypes", "maize/")

	w, err := s.Create(ctx, "sites/desc-1-0.blk")
	require.NoError(t, err)
	_, err = w.Write([]byte("desc"))
	require.NoError(t, err)
	_, err = w.Write([]byte("riptor"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	data, err := blobstore.ReadAll(ctx, s, "sites/desc-1-0.blk")
	require.NoError(t, err)
	assert.Equal(t, "descriptor", string(data))
}

func TestStore_AbortDiscardsUpload(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewStore(client, "genotypes", "")

	w, err := s.Create(ctx, "taxa/1/geno-0.blk")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.(*streamingWritableBlob).Abort())

	assert.NotContains(t, client.objects, "taxa/1/geno-0.blk")
}

func TestStore_ListPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeClient(), "genotypes", "maize/")

	for _, name := range []string{"taxa/2/geno-0.blk", "taxa/1/geno-0.blk", "taxa/1/geno-1.blk", "taxa/10/geno-0.blk", "taxabase", "CURRENT"} {
		require.NoError(t, s.Put(ctx, name, []byte(name)))
	}

	names, err := s.List(ctx, "taxa/")
	require.NoError(t, err)
	assert.Equal(t, []string{"taxa/1/geno-0.blk", "taxa/1/geno-1.blk", "taxa/10/geno-0.blk", "taxa/2/geno-0.blk"}, names)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestStore_PutIfNotExists(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeClient(), "genotypes", "maize/")

	require.NoError(t, s.PutIfNotExists(ctx, "manifest-1", []byte("one")))
	assert.ErrorIs(t, s.PutIfNotExists(ctx, "manifest-1", []byte("two")), ErrConflict)

	data, err := blobstore.ReadAll(ctx, s, "manifest-1")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestStore_Integration(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}
	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	s := NewStore(awss3.NewFromConfig(cfg), bucket, "gtstore-test/"+t.Name())
	t.Cleanup(func() {
		names, _ := s.List(ctx, "")
		for _, n := range names {
			_ = s.Delete(ctx, n)
		}
	})

	require.NoError(t, s.Put(ctx, "taxa/1/geno-0.blk", []byte("ACGT")))
	data, err := blobstore.ReadAll(ctx, s, "taxa/1/geno-0.blk")
	require.NoError(t, err)
	assert.Equal(t, "ACGT", string(data))
}

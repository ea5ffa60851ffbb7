package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskBlockCache(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1024})
	require.NoError(t, err)

	key := Key{Kind: KindBlob, Path: "taxa/3/geno-0.blk", Block: 7}
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, []byte("block-7"))
	c.Flush()

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "block-7", string(got))
	require.NoError(t, c.Close())

	// A new instance finds the file again.
	reopened, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1024})
	require.NoError(t, err)
	got, ok = reopened.Get(key)
	require.True(t, ok)
	assert.Equal(t, "block-7", string(got))

	assert.Equal(t, 1, reopened.Invalidate(func(k Key) bool { return k.Path == key.Path }))
	_, ok = reopened.Get(key)
	assert.False(t, ok)
}

func TestDiskBlockCache_Evicts(t *testing.T) {
	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: t.TempDir(), MaxSizeBytes: 10})
	require.NoError(t, err)

	for block := range uint64(3) {
		c.Set(Key{Kind: KindGenotype, Namespace: 1, Block: block}, make([]byte, 4))
		c.Flush()
	}
	assert.Equal(t, int64(8), c.Size())
	_, ok := c.Get(Key{Kind: KindGenotype, Namespace: 1, Block: 0})
	assert.False(t, ok)

	// Larger than the cache: ignored.
	c.Set(Key{Kind: KindGenotype, Namespace: 2}, make([]byte, 11))
	c.Flush()
	_, ok = c.Get(Key{Kind: KindGenotype, Namespace: 2})
	assert.False(t, ok)
}

func TestTiered(t *testing.T) {
	l2, err := NewDiskBlockCache(DiskCacheConfig{RootDir: t.TempDir(), MaxSizeBytes: 1024})
	require.NoError(t, err)
	l1 := NewLRUBlockCache(1024, nil)
	tc := &Tiered{L1: l1, L2: l2}

	key := Key{Kind: KindBlob, Path: "sites/desc-1-0.blk"}
	tc.Set(key, []byte("desc"))
	l2.Flush()

	l1.Purge()
	got, ok := tc.Get(key)
	require.True(t, ok)
	assert.Equal(t, "desc", string(got))
	assert.True(t, l1.Contains(key))

	assert.Equal(t, 2, tc.Invalidate(func(k Key) bool { return k == key }))
	require.NoError(t, tc.Close())
}

package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hupe1980/gtstore/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genoKey(taxon, block uint64) Key {
	return Key{Kind: KindGenotype, Namespace: taxon, Block: block}
}

func TestLRU_StrictEviction(t *testing.T) {
	c := NewLRU[Key, []byte](2, nil, nil)
	loads := map[Key]int{}
	load := func(k Key) func(context.Context) ([]byte, error) {
		return func(context.Context) ([]byte, error) {
			loads[k]++
			return []byte{byte(k.Block)}, nil
		}
	}

	b1, b2, b3 := genoKey(0, 1), genoKey(0, 2), genoKey(0, 3)
	for _, k := range []Key{b1, b2, b3, b1} {
		v, _, err := c.GetOrLoad(context.Background(), k, load(k))
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(k.Block)}, v)
	}

	assert.Equal(t, 2, loads[b1])
	assert.Equal(t, 1, loads[b2])
	assert.Equal(t, 1, loads[b3])
	assert.False(t, c.Contains(b2))
	assert.Equal(t, 2, c.Len())
}

func TestLRU_GetRefreshesRecency(t *testing.T) {
	c := NewLRU[string, int](2, nil, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", 3)

	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), misses)
}

func TestLRU_Cost(t *testing.T) {
	c := NewLRUBlockCache(10, nil)
	c.Set(genoKey(0, 0), make([]byte, 4))
	c.Set(genoKey(0, 1), make([]byte, 4))
	assert.Equal(t, int64(8), c.Size())

	c.Set(genoKey(0, 2), make([]byte, 4))
	assert.Equal(t, int64(8), c.Size())
	assert.False(t, c.Contains(genoKey(0, 0)))

	// Too large to ever fit.
	c.Set(genoKey(0, 3), make([]byte, 11))
	assert.False(t, c.Contains(genoKey(0, 3)))

	// Growing an entry evicts others.
	c.Set(genoKey(0, 2), make([]byte, 9))
	assert.Equal(t, int64(9), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestLRU_ResourceController(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 8})
	c := NewLRUBlockCache(100, rc)

	c.Set(genoKey(0, 0), make([]byte, 6))
	assert.Equal(t, int64(6), rc.MemoryUsage())

	// The controller has 2 bytes left, so this is dropped.
	c.Set(genoKey(0, 1), make([]byte, 4))
	assert.False(t, c.Contains(genoKey(0, 1)))

	c.Invalidate(OfKind(KindGenotype))
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestLRU_GetOrLoadError(t *testing.T) {
	c := NewLRU[Key, []byte](4, nil, nil)
	boom := errors.New("read failed")

	_, loaded, err := c.GetOrLoad(context.Background(), genoKey(1, 1), func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, loaded)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_InvalidateNamespace(t *testing.T) {
	c := NewLRU[Key, []byte](10, nil, nil)
	var evicted []Key
	c.OnEvict(func(k Key, _ []byte) { evicted = append(evicted, k) })

	for taxon := range uint64(2) {
		for block := range uint64(3) {
			c.Set(genoKey(taxon, block), nil)
		}
	}
	c.Set(Key{Kind: KindAnnotation, Namespace: 1, Block: 0}, nil)

	n := c.Invalidate(InNamespace(KindGenotype, 1))
	assert.Equal(t, 3, n)
	assert.Len(t, evicted, 3)
	assert.Equal(t, 4, c.Len())
	assert.True(t, c.Contains(Key{Kind: KindAnnotation, Namespace: 1}))
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int, int](16, nil, nil)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				k := (g*31 + i) % 64
				if _, ok := c.Get(k); !ok {
					c.Set(k, i)
				}
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
	assert.LessOrEqual(t, c.Size(), int64(16))
}

func TestShardedLRU(t *testing.T) {
	c := NewShardedBlockCache(64*1024, nil)

	for block := range uint64(100) {
		c.Set(Key{Kind: KindBlob, Path: "taxa/1/geno-0.blk", Block: block}, []byte{byte(block)})
	}
	v, ok := c.Get(Key{Kind: KindBlob, Path: "taxa/1/geno-0.blk", Block: 42})
	require.True(t, ok)
	assert.Equal(t, []byte{42}, v)
	assert.Equal(t, int64(100), c.Size())

	n := c.Invalidate(func(k Key) bool { return k.Path == "taxa/1/geno-0.blk" })
	assert.Equal(t, 100, n)
	assert.Equal(t, int64(0), c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), misses)
	require.NoError(t, c.Close())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "genotype", KindGenotype.String())
	assert.Equal(t, "annotation", KindAnnotation.String())
	assert.Equal(t, "kind(0)", KindUnknown.String())
}

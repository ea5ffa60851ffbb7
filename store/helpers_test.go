package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gtstore/blobstore"
	"github.com/hupe1980/gtstore/internal/cache"
	"github.com/hupe1980/gtstore/matrix"
	"github.com/hupe1980/gtstore/testutil"
)

var errInjected = errors.New("injected read fault")

// countingStore counts opens per blob and fails reads of blobs whose name
// contains a registered pattern.
type countingStore struct {
	blobstore.BlobStore

	mu     sync.Mutex
	opens  map[string]int
	failOn []string
}

func newCountingStore() *countingStore {
	return &countingStore{BlobStore: blobstore.NewMemoryStore(), opens: map[string]int{}}
}

func (c *countingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	c.mu.Lock()
	c.opens[name]++
	fail := false
	for _, p := range c.failOn {
		fail = fail || strings.Contains(name, p)
	}
	c.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return c.BlobStore.Open(ctx, name)
}

func (c *countingStore) opened(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

func (c *countingStore) fail(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failOn = append(c.failOn, pattern)
}

func (c *countingStore) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.opens)
	c.failOn = nil
}

// testSites returns n sites on locus "1" at positions 10, 20, ...
func testSites(n int) matrix.SiteSpec {
	spec := matrix.SiteSpec{
		Loci:        []string{"1"},
		LociOffsets: []int{0},
		Positions:   testutil.Positions(n, 10),
	}
	return spec
}

// randomCalls draws calls from A, C, G and T with a tenth missing.
func randomCalls(rng *testutil.RNG, n int) []byte {
	return rng.Calls(n, testutil.DefaultCalls)
}

func newTestStore(t *testing.T, blobs blobstore.BlobStore, sites int, opts ...Option) *Store {
	t.Helper()
	st, err := Create(context.Background(), blobs, testSites(sites), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func genotypeKey(id uint64, block int) cache.Key {
	return cache.Key{Kind: cache.KindGenotype, Namespace: id, Block: uint64(block)}
}

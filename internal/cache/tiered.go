package cache

import "errors"

// Tiered chains a fast cache in front of a slower one. Hits in the second
// tier are promoted into the first.
type Tiered struct {
	L1, L2 BlockCache
}

func (t *Tiered) Get(key Key) ([]byte, bool) {
	if b, ok := t.L1.Get(key); ok {
		return b, true
	}
	b, ok := t.L2.Get(key)
	if ok {
		t.L1.Set(key, b)
	}
	return b, ok
}

func (t *Tiered) Set(key Key, b []byte) {
	t.L1.Set(key, b)
	t.L2.Set(key, b)
}

func (t *Tiered) Invalidate(predicate func(key Key) bool) int {
	return t.L1.Invalidate(predicate) + t.L2.Invalidate(predicate)
}

func (t *Tiered) Close() error {
	return errors.Join(t.L1.Close(), t.L2.Close())
}

// Stats reports first-tier hits and second-tier misses.
func (t *Tiered) Stats() (hits, misses int64) {
	h1, _ := t.L1.Stats()
	h2, m2 := t.L2.Stats()
	return h1 + h2, m2
}

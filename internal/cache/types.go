package cache

import "fmt"

// Kind separates key spaces and tuning.
type Kind uint8

const (
	KindUnknown    Kind = iota
	KindGenotype        // per-taxon genotype blocks
	KindDepth           // per-taxon allele depth blocks
	KindAnnotation      // per-site descriptor blocks
	KindBlob            // raw blob byte ranges
)

func (k Kind) String() string {
	switch k {
	case KindGenotype:
		return "genotype"
	case KindDepth:
		return "depth"
	case KindAnnotation:
		return "annotation"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Key identifies one cached block. Namespace groups the blocks invalidated
// together; for per-taxon kinds it is the stable taxon id.
type Key struct {
	Kind      Kind
	Namespace uint64
	Block     uint64
	// Path is optional; it names the source blob for KindBlob entries.
	Path string
}

// InNamespace returns a predicate matching every key of kind k in namespace ns.
func InNamespace(k Kind, ns uint64) func(Key) bool {
	return func(key Key) bool { return key.Kind == k && key.Namespace == ns }
}

// OfKind returns a predicate matching every key of kind k.
func OfKind(k Kind) func(Key) bool {
	return func(key Key) bool { return key.Kind == k }
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(key Key) (b []byte, ok bool)
	// Set caches a block. Implementations may copy or retain; caller must treat b as immutable.
	Set(key Key, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool) int
	// Close releases any resources (e.g. background writers).
	Close() error
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}

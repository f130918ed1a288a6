// Package eviction decides which key leaves the cache when it is full.
//
// Each memoized function owns one Policy instance: its order index. The
// index tracks every live key and hands out eviction candidates. The cache
// controller keeps the index's key set equal to the entry store's key set
// and serializes all calls behind its own lock, so implementations here
// are not safe for concurrent use on their own.
package eviction

// Policy is the contract every eviction strategy follows. The cache does
// not care how a strategy orders keys; it only raises these events and
// asks for a victim when over capacity.
type Policy interface {

	// OnHit is called whenever a key is served from the cache.
	// Recency-based strategies reorder on this; FIFO ignores it.
	OnHit(key string)

	// OnInsert is called when a key is written to the cache. A key that
	// is already tracked keeps its position.
	OnInsert(key string)

	// Remove drops a key's bookkeeping after an explicit delete or an
	// expiration, as opposed to a capacity eviction. Unknown keys are a
	// no-op.
	Remove(key string)

	// Evict removes and returns the next eviction candidate, or "" when
	// nothing is tracked. Ties break by index order, deterministically.
	Evict() string

	// Contains reports whether a key is tracked.
	Contains(key string) bool

	// Len reports how many keys are tracked.
	Len() int
}

// PolicyType identifies a supported eviction strategy.
type PolicyType string

const (
	// FIFO evicts the oldest-inserted key, ignoring access patterns.
	FIFO PolicyType = "FIFO"

	// LRU evicts the key that has gone unaccessed the longest.
	LRU PolicyType = "LRU"

	// LFU evicts the key with the fewest accesses.
	LFU PolicyType = "LFU"
)

// NewEvictionPolicy builds a fresh, empty policy of the given type.
func NewEvictionPolicy(t PolicyType) Policy {
	switch t {
	case FIFO:
		return newFIFO()
	case LRU:
		return newLRU()
	case LFU:
		return newLFU()
	default:
		panic("unknown eviction policy")
	}
}

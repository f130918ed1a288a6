package memoize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/susumuota/s3-memoize/entry"
	"github.com/susumuota/s3-memoize/entrystore"
	"github.com/susumuota/s3-memoize/eviction"
	"github.com/susumuota/s3-memoize/keycodec"
	"github.com/susumuota/s3-memoize/metrics"
	"github.com/susumuota/s3-memoize/objectstore"
)

// Func is the shape of a memoizable function: positional arguments plus
// an optional named-argument map, returning one serializable result.
// It must be pure; equal arguments must always produce an equal result.
type Func[V any] func(ctx context.Context, args []any, kwargs map[string]any) (V, error)

// Info is a snapshot of one memoized function's process-local statistics.
// Counters start at zero on process start and reset only via Clear; they
// are never persisted to the remote store.
type Info struct {
	Hits        int64
	Misses      int64
	CurrentSize int
	MaxSize     int
}

/*
Memoized wraps one function with a remote-store-backed cache.

This struct is the orchestrator that connects:
- the key codec (arguments → cache key)
- the entry store (persisted results)
- the eviction policy (which key leaves when the cache is full)
- counters and metrics

One mutex serializes all order-index and counter mutations, so
admit/evict sequences are linearized against each other. The
read–invoke–write sequence itself is NOT linearized against remote
state: two processes missing on the same key may both compute, with the
last write winning. Within one process a singleflight group collapses
concurrent misses on the same key to a single invocation.
*/
type Memoized[V any] struct {
	fn         Func[V]
	name       string
	typed      bool
	maxSize    int
	policy     eviction.PolicyType
	bestEffort bool
	codec      entry.Codec
	logger     *slog.Logger

	entries  *entrystore.Store
	counters *metrics.Counters
	m        metrics.Metrics

	mu       sync.Mutex
	index    eviction.Policy
	hydrated bool

	sf singleflight.Group
}

/*
New builds a memoized wrapper around fn.

Without WithStore, the cache runs on S3 and WithBucket is required;
credentials and region come from the default AWS config chain. The
namespace prefix is the function name plus a fingerprint of the
configuration, so differently configured wrappings of the same function
never share entries.
*/
func New[V any](ctx context.Context, fn Func[V], opts ...Option) (*Memoized[V], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.name == "" {
		cfg.name = functionName(fn)
	}

	store := cfg.store
	if store == nil {
		if cfg.bucket == "" {
			return nil, errors.New("memoize: a bucket name (WithBucket) or a store (WithStore) is required")
		}
		s3store, err := objectstore.NewS3(ctx, cfg.bucket)
		if err != nil {
			return nil, err
		}
		store = s3store
	}

	counters := &metrics.Counters{}
	sink := metrics.Metrics(counters)
	if _, isNoop := cfg.metrics.(metrics.Noop); !isNoop && cfg.metrics != nil {
		sink = metrics.Multi{counters, cfg.metrics}
	}

	prefix := cfg.name + "/" + fingerprint(cfg)
	entries := entrystore.New(store, prefix, cfg.logger, sink, cfg.touchBuffer)
	if cfg.expiration > 0 {
		entries.SetExpiration(cfg.expiration)
	}

	return &Memoized[V]{
		fn:         fn,
		name:       cfg.name,
		typed:      cfg.typed,
		maxSize:    cfg.maxSize,
		policy:     cfg.policy,
		bestEffort: cfg.bestEffort,
		codec:      cfg.codec,
		logger:     cfg.logger,
		entries:    entries,
		counters:   counters,
		m:          sink,
		index:      eviction.NewEvictionPolicy(cfg.policy),
	}, nil
}

// NewFIFO builds a memoized wrapper with FIFO eviction.
func NewFIFO[V any](ctx context.Context, fn Func[V], opts ...Option) (*Memoized[V], error) {
	return New(ctx, fn, append([]Option{WithPolicy(eviction.FIFO)}, opts...)...)
}

// NewLRU builds a memoized wrapper with LRU eviction.
func NewLRU[V any](ctx context.Context, fn Func[V], opts ...Option) (*Memoized[V], error) {
	return New(ctx, fn, append([]Option{WithPolicy(eviction.LRU)}, opts...)...)
}

// Call invokes the memoized function with positional arguments only.
func (f *Memoized[V]) Call(ctx context.Context, args ...any) (V, error) {
	return f.CallKW(ctx, args, nil)
}

/*
CallKW invokes the memoized function with positional and named arguments.

The call path:
 1. Derive the cache key; unhashable arguments fail here, before fn runs.
 2. Read the entry store. A live entry is a hit: the result is decoded
    and returned without invoking fn, and under LRU the key moves to the
    most-recently-used position.
 3. On a miss, fn runs. A failing fn propagates its error unchanged and
    nothing is cached.
 4. On success the result is written through to the store, then the
    eviction policy admits the key and trims the namespace to maxsize.

Store outages during read or write propagate to the caller; only corrupt
entries are recovered (logged, recomputed).
*/
func (f *Memoized[V]) CallKW(ctx context.Context, args []any, kwargs map[string]any) (V, error) {
	var zero V

	key, err := keycodec.Derive(f.name, args, kwargs, f.typed)
	if err != nil {
		return zero, err
	}

	if err := f.hydrate(ctx); err != nil {
		if !f.bestEffort {
			return zero, err
		}
		// Hydration retries on the next call.
		f.logger.Warn("cache degraded: index rebuild failed",
			"function", f.name, "error", err)
	}

	ent, err := f.entries.Read(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, entrystore.ErrCorruptEntry):
			f.logger.Warn("recomputing corrupt cache entry",
				"function", f.name, "key", key, "error", err)
		case f.bestEffort:
			f.logger.Warn("cache degraded: read failed, recomputing",
				"function", f.name, "key", key, "error", err)
		default:
			return zero, err
		}
		ent = nil
	}

	if ent != nil {
		var v V
		if err := f.codec.Decode(ent.Payload, &v); err != nil {
			// Same treatment as a corrupt envelope: recompute.
			f.logger.Warn("recomputing undecodable cache entry",
				"function", f.name, "key", key, "error", err)
		} else {
			f.mu.Lock()
			f.m.Hit()
			if f.index.Contains(key) {
				f.index.OnHit(key)
			} else {
				// Written by another process, or left behind by a failed
				// eviction delete. Track it so it stays evictable.
				f.admitLocked(ctx, key)
			}
			f.mu.Unlock()

			if f.policy == eviction.LRU {
				f.entries.Touch(ent)
			}
			return v, nil
		}
	}

	f.mu.Lock()
	f.m.Miss()
	// An expired or corrupt entry may still be tracked; drop it so the
	// index's key set matches the store again.
	f.index.Remove(key)
	f.mu.Unlock()

	result, err, _ := f.sf.Do(key, func() (any, error) {
		v, err := f.fn(ctx, args, kwargs)
		if err != nil {
			// Failures are never memoized.
			return nil, err
		}

		payload, err := f.codec.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("memoize: encode result of %s: %w", f.name, err)
		}

		if _, err := f.entries.Write(ctx, key, payload); err != nil {
			if !f.bestEffort {
				return nil, err
			}
			// The result is good even though it could not be persisted.
			f.logger.Warn("cache degraded: write failed",
				"function", f.name, "key", key, "error", err)
			return v, nil
		}

		f.admit(ctx, key)
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return result.(V), nil
}

// admit records a freshly written key and evicts until the namespace is
// back within maxSize. Eviction deletes are best-effort: the result is
// already durable, so a failed trim is logged rather than failing the
// call that triggered it.
func (f *Memoized[V]) admit(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admitLocked(ctx, key)
}

func (f *Memoized[V]) admitLocked(ctx context.Context, key string) {
	f.index.OnInsert(key)
	if f.maxSize <= 0 {
		return
	}
	for f.index.Len() > f.maxSize {
		victim := f.index.Evict()
		if victim == "" {
			return
		}
		f.m.Eviction()
		if err := f.entries.Remove(context.WithoutCancel(ctx), victim); err != nil {
			f.logger.Warn("failed to delete evicted cache entry",
				"function", f.name, "key", victim, "error", err)
		}
	}
}

/*
hydrate rebuilds the order index from the remote store, once per process.

Entries written by an earlier process are listed and re-admitted oldest
first: by last access for LRU, by creation for FIFO and LFU, with the key
as a deterministic tie-break. If the configured maxSize shrank since the
entries were written, the excess is evicted immediately.
*/
func (f *Memoized[V]) hydrate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.hydrated {
		return nil
	}

	entries, err := f.entries.List(ctx)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := orderStamp(entries[i], f.policy), orderStamp(entries[j], f.policy)
		if a.Equal(b) {
			return entries[i].Key < entries[j].Key
		}
		return a.Before(b)
	})

	for _, e := range entries {
		f.index.OnInsert(e.Key)
	}

	if f.maxSize > 0 {
		for f.index.Len() > f.maxSize {
			victim := f.index.Evict()
			if victim == "" {
				break
			}
			f.m.Eviction()
			if err := f.entries.Remove(context.WithoutCancel(ctx), victim); err != nil {
				f.logger.Warn("failed to delete evicted cache entry",
					"function", f.name, "key", victim, "error", err)
			}
		}
	}

	f.hydrated = true
	return nil
}

func orderStamp(e *entry.CacheEntry, p eviction.PolicyType) time.Time {
	if p == eviction.LRU {
		return e.LastAccessedAt
	}
	return e.CreatedAt
}

// Info reports the process-local statistics: hit and miss counts since
// the last Clear (or process start), the number of tracked entries, and
// the configured bound.
func (f *Memoized[V]) Info() Info {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Info{
		Hits:        f.counters.Hits(),
		Misses:      f.counters.Misses(),
		CurrentSize: f.index.Len(),
		MaxSize:     f.maxSize,
	}
}

// Clear removes every persisted entry in the namespace, resets the order
// index and the counters, and reports how many objects were actually
// deleted. A partial failure returns both the count removed so far and
// the error.
func (f *Memoized[V]) Clear(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.entries.Clear(ctx)
	f.index = eviction.NewEvictionPolicy(f.policy)
	f.counters.Reset()
	f.hydrated = true
	return n, err
}

// SetExpiration changes the default expiration for entries written from
// now on. Existing persisted entries are untouched. Non-positive d
// disables expiration.
func (f *Memoized[V]) SetExpiration(d time.Duration) {
	f.entries.SetExpiration(d)
}

// Name returns the function identity used in keys and the namespace.
func (f *Memoized[V]) Name() string {
	return f.name
}

// Close flushes pending access-time updates. Call it on shutdown when
// using LRU; it is harmless otherwise.
func (f *Memoized[V]) Close() {
	f.entries.Close()
}

// functionName resolves fn's runtime name, e.g. "main.Square".
func functionName[V any](fn Func[V]) string {
	if pc := reflect.ValueOf(fn).Pointer(); pc != 0 {
		if rf := runtime.FuncForPC(pc); rf != nil {
			return rf.Name()
		}
	}
	return "anonymous"
}

// fingerprint digests the parts of the configuration that change key
// semantics or eviction behavior, so two differently configured
// decorations of one function get disjoint namespaces. The default
// expiration is deliberately excluded: it is mutable at runtime and
// only affects future writes.
func fingerprint(c *config) string {
	s := fmt.Sprintf("maxsize=%d,typed=%t,policy=%s", c.maxSize, c.typed, c.policy)
	return keycodec.Digest([]byte(s))[:8]
}

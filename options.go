package memoize

import (
	"log/slog"
	"time"

	"github.com/susumuota/s3-memoize/entry"
	"github.com/susumuota/s3-memoize/eviction"
	"github.com/susumuota/s3-memoize/metrics"
	"github.com/susumuota/s3-memoize/objectstore"
)

// config is the namespace configuration bundle for one memoized function.
type config struct {
	name        string
	maxSize     int
	typed       bool
	bucket      string
	policy      eviction.PolicyType
	expiration  time.Duration
	store       objectstore.Store
	codec       entry.Codec
	logger      *slog.Logger
	metrics     metrics.Metrics
	touchBuffer int
	bestEffort  bool
}

func defaultConfig() *config {
	return &config{
		maxSize:     128,
		policy:      eviction.FIFO,
		codec:       entry.JSONCodec{},
		logger:      slog.Default(),
		metrics:     metrics.Noop{},
		touchBuffer: 256,
	}
}

// Option configures a memoized function at construction time.
type Option func(*config)

// WithName overrides the function identity used in keys and the namespace
// prefix. Set it for closures and method values, whose runtime names
// (fn.func1 and the like) are not stable across builds.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithMaxSize bounds the number of cached entries. A non-positive size
// disables the bound entirely. Default 128.
func WithMaxSize(n int) Option {
	return func(c *config) { c.maxSize = n }
}

// WithTyped includes each argument's runtime type in the cache key, so
// Call(ctx, 1) and Call(ctx, 1.0) cache separately.
func WithTyped() Option {
	return func(c *config) { c.typed = true }
}

// WithBucket names the S3 bucket backing the cache. Required unless a
// store is injected with WithStore.
func WithBucket(bucket string) Option {
	return func(c *config) { c.bucket = bucket }
}

// WithPolicy selects the eviction strategy. Default FIFO.
func WithPolicy(p eviction.PolicyType) Option {
	return func(c *config) { c.policy = p }
}

// WithExpiration sets the default lifetime stamped on new entries.
// Zero (the default) means entries never expire.
func WithExpiration(d time.Duration) Option {
	return func(c *config) { c.expiration = d }
}

// WithStore injects a backing store, replacing the default S3 store.
// Useful for tests, demos, and alternative object stores.
func WithStore(s objectstore.Store) Option {
	return func(c *config) { c.store = s }
}

// WithCodec replaces the JSON payload codec.
func WithCodec(codec entry.Codec) Option {
	return func(c *config) { c.codec = codec }
}

// WithLogger routes the cache's diagnostics (corrupt entries, failed
// best-effort deletes) to logger instead of slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics adds a metrics sink alongside the built-in counters that
// back Info.
func WithMetrics(m metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithTouchBuffer sizes the queue of asynchronous LRU access-time
// updates. Default 256.
func WithTouchBuffer(n int) Option {
	return func(c *config) { c.touchBuffer = n }
}

// WithBestEffort degrades store outages into recomputation instead of
// failing the call: reads fall back to invoking the wrapped function and
// write failures are logged rather than returned. Off by default, so a
// down cache is visible to callers instead of silently making every call
// slow and duplicated.
func WithBestEffort() Option {
	return func(c *config) { c.bestEffort = true }
}

// Package metrics reports what the cache is doing.
package metrics

import "sync/atomic"

// Metrics receives one callback per cache lifecycle event. The cache
// always holds a non-nil Metrics, so implementations never need nil
// checks around these calls.
type Metrics interface {

	// Hit is called when a memoized result is served from the store.
	Hit()

	// Miss is called when the wrapped function has to run.
	Miss()

	// Eviction is called when a key is removed to make room.
	Eviction()

	// Expire is called when a key is dropped past its expiration.
	Expire()

	// Touch is called when an access-time update is queued for a key.
	Touch()
}

// Noop ignores every event. It is the default when the caller does not
// care about metrics.
type Noop struct{}

func (Noop) Hit()      {}
func (Noop) Miss()     {}
func (Noop) Eviction() {}
func (Noop) Expire()   {}
func (Noop) Touch()    {}

// Counters is the process-local tally behind a memoized function's Info.
// Counts reset on process restart or explicit Reset; they are never
// persisted remotely.
type Counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64
	touches   atomic.Int64
}

func (c *Counters) Hit()      { c.hits.Add(1) }
func (c *Counters) Miss()     { c.misses.Add(1) }
func (c *Counters) Eviction() { c.evictions.Add(1) }
func (c *Counters) Expire()   { c.expired.Add(1) }
func (c *Counters) Touch()    { c.touches.Add(1) }

func (c *Counters) Hits() int64      { return c.hits.Load() }
func (c *Counters) Misses() int64    { return c.misses.Load() }
func (c *Counters) Evictions() int64 { return c.evictions.Load() }
func (c *Counters) Expired() int64   { return c.expired.Load() }
func (c *Counters) Touches() int64   { return c.touches.Load() }

// Reset zeroes every counter.
func (c *Counters) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expired.Store(0)
	c.touches.Store(0)
}

// Multi fans one event out to several sinks.
type Multi []Metrics

func (m Multi) Hit() {
	for _, s := range m {
		s.Hit()
	}
}

func (m Multi) Miss() {
	for _, s := range m {
		s.Miss()
	}
}

func (m Multi) Eviction() {
	for _, s := range m {
		s.Eviction()
	}
}

func (m Multi) Expire() {
	for _, s := range m {
		s.Expire()
	}
}

func (m Multi) Touch() {
	for _, s := range m {
		s.Touch()
	}
}

// Package entrystore maps cache keys to persisted entries.
//
// It is the only layer that talks to the object store: it prefixes keys
// with the owning namespace, wraps payloads in the wire envelope, stamps
// timestamps and the default expiration on write, and filters out expired
// or corrupt objects on read.
package entrystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/susumuota/s3-memoize/entry"
	"github.com/susumuota/s3-memoize/metrics"
	"github.com/susumuota/s3-memoize/objectstore"
)

// ErrCorruptEntry reports a remote object that failed to deserialize.
// The cache treats it as a miss rather than crashing the caller; it is
// the only error in the system recovered instead of propagated.
var ErrCorruptEntry = errors.New("entrystore: corrupt entry")

/*
Store persists the entries of one namespace.

Writes are write-through: an entry is durable before the memoized call
returns. Access-time updates (Touch) are the exception. They ride a
buffered queue drained by a background worker, so LRU hits never block on
a second round-trip; under pressure updates are dropped, which can only
make LRU ordering slightly stale, never lose a result.

A queued update must never recreate an entry that Remove or Clear has
since deleted. Remove tombstones the key and Clear retires the whole
generation of queued updates; both take flushMu, so they also wait out
any update already being written.
*/
type Store struct {
	store  objectstore.Store
	prefix string
	logger *slog.Logger
	m      metrics.Metrics

	// expiration is the default lifetime stamped on entries written from
	// now on, in nanoseconds. Zero disables expiration. Changing it never
	// rewrites already persisted entries.
	expiration atomic.Int64

	// gen invalidates queued touches: Clear bumps it, and the worker
	// discards updates stamped with an older value.
	gen atomic.Uint64

	// dead holds keys deleted since their last write. A touch for a dead
	// key is discarded; the next Write of the key clears the tombstone.
	dead sync.Map

	// flushMu serializes each touch rewrite against Remove and Clear.
	flushMu sync.Mutex

	touch     chan touchUpdate
	sendMu    sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// touchUpdate is one queued access-time rewrite, stamped with the
// generation it was queued under.
type touchUpdate struct {
	ent *entry.CacheEntry
	gen uint64
}

// New builds a Store for one namespace prefix. touchBuffer sizes the
// access-time update queue.
func New(store objectstore.Store, prefix string, logger *slog.Logger, m metrics.Metrics, touchBuffer int) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Noop{}
	}

	s := &Store{
		store:  store,
		prefix: prefix,
		logger: logger,
		m:      m,
		touch:  make(chan touchUpdate, touchBuffer),
	}

	s.wg.Add(1)
	go s.touchWorker()

	return s
}

func (s *Store) objectKey(key string) string {
	return s.prefix + "/" + key
}

/*
Read fetches the live entry for key.

Returns (nil, nil) on a plain miss. An entry past its expiration is a
miss too: it is deleted best-effort and counted as expired. A corrupt
object returns ErrCorruptEntry so the caller can log and recompute.
Store outages propagate untouched; masking them as misses would hide the
loss of durability from the caller.
*/
func (s *Store) Read(ctx context.Context, key string) (*entry.CacheEntry, error) {
	b, err := s.store.Get(ctx, s.objectKey(key))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	ent, err := entry.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}

	if ent.Expired(time.Now()) {
		s.m.Expire()
		s.deleteExpired(ctx, key)
		return nil, nil
	}

	return ent, nil
}

// deleteExpired removes an expired object. Best-effort: the read already
// decided on a miss, so a failed delete only leaves garbage behind.
func (s *Store) deleteExpired(ctx context.Context, key string) {
	if err := s.Remove(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("failed to delete expired cache entry",
			"prefix", s.prefix, "key", key, "error", err)
	}
}

// Write persists payload under key, stamping the current time and the
// namespace's default expiration. The returned entry reflects exactly
// what was stored.
func (s *Store) Write(ctx context.Context, key string, payload []byte) (*entry.CacheEntry, error) {
	now := time.Now()
	ent := &entry.CacheEntry{
		Key:            key,
		Payload:        payload,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if d := time.Duration(s.expiration.Load()); d > 0 {
		ent.ExpireAt = now.Add(d)
	}

	b, err := entry.Marshal(ent)
	if err != nil {
		return nil, err
	}

	// Once dispatched, the write runs to completion even if the caller
	// abandons the call.
	if err := s.store.Put(context.WithoutCancel(ctx), s.objectKey(key), b); err != nil {
		return nil, err
	}
	s.dead.Delete(key)
	return ent, nil
}

// Touch queues an access-time update for ent. Non-blocking: when the
// queue is full the update is dropped and LRU ordering goes slightly
// stale until the next hit. After Close, updates are dropped.
func (s *Store) Touch(ent *entry.CacheEntry) {
	touched := *ent
	touched.LastAccessedAt = time.Now()

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.touch <- touchUpdate{ent: &touched, gen: s.gen.Load()}:
		s.m.Touch()
	default:
	}
}

// touchWorker drains queued access-time updates and rewrites the
// corresponding objects. Failures are logged and forgotten; the
// in-process order index stays authoritative for eviction either way.
func (s *Store) touchWorker() {
	defer s.wg.Done()

	for u := range s.touch {
		s.flushMu.Lock()
		s.applyTouch(u)
		s.flushMu.Unlock()
	}
}

// applyTouch rewrites one touched entry, unless the update was retired
// by a Clear or its key deleted while it sat in the queue. Called with
// flushMu held.
func (s *Store) applyTouch(u touchUpdate) {
	if u.gen != s.gen.Load() {
		return
	}
	if _, gone := s.dead.Load(u.ent.Key); gone {
		return
	}

	b, err := entry.Marshal(u.ent)
	if err != nil {
		s.logger.Warn("failed to encode touched cache entry",
			"prefix", s.prefix, "key", u.ent.Key, "error", err)
		return
	}
	if err := s.store.Put(context.Background(), s.objectKey(u.ent.Key), b); err != nil {
		s.logger.Warn("failed to persist access time",
			"prefix", s.prefix, "key", u.ent.Key, "error", err)
	}
}

// Remove deletes the entry under key. Idempotent; a missing key is fine.
// The key is tombstoned first so a queued touch cannot recreate the
// object; the tombstone lives until the key's next Write.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.dead.Store(key, struct{}{})
	return s.store.Delete(ctx, s.objectKey(key))
}

// Clear deletes every entry under the namespace prefix and reports how
// many were actually removed. Best-effort bulk operation: when a delete
// fails midway, the count still reflects only what really went away and
// the error carries what did not.
//
// Queued touches are retired first, so an access-time rewrite in flight
// across Clear cannot resurrect a cleared entry.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.flushMu.Lock()
	s.gen.Add(1)
	s.dead.Clear()
	s.flushMu.Unlock()

	keys, err := s.store.ListKeys(ctx, s.prefix+"/")
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

/*
List returns every live entry under the namespace prefix. Used to rebuild
the order index after a restart.

Corrupt objects are logged and skipped; expired objects are deleted
best-effort and skipped. The listing itself propagates store failures.
*/
func (s *Store) List(ctx context.Context) ([]*entry.CacheEntry, error) {
	keys, err := s.store.ListKeys(ctx, s.prefix+"/")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]*entry.CacheEntry, 0, len(keys))
	for _, objKey := range keys {
		b, err := s.store.Get(ctx, objKey)
		if err != nil {
			if errors.Is(err, objectstore.ErrNotFound) {
				// Deleted between list and get.
				continue
			}
			return nil, err
		}

		ent, err := entry.Unmarshal(b)
		if err != nil {
			s.logger.Warn("skipping corrupt cache entry",
				"prefix", s.prefix, "object", objKey, "error", err)
			continue
		}

		if ent.Expired(now) {
			s.m.Expire()
			s.deleteExpired(ctx, strings.TrimPrefix(objKey, s.prefix+"/"))
			continue
		}

		entries = append(entries, ent)
	}
	return entries, nil
}

// SetExpiration changes the default expiration applied to entries written
// from this point forward. Non-positive durations disable expiration.
// Already persisted entries keep whatever expiration they were written
// with.
func (s *Store) SetExpiration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.expiration.Store(int64(d))
}

// Expiration returns the current default expiration; zero means none.
func (s *Store) Expiration() time.Duration {
	return time.Duration(s.expiration.Load())
}

// Close stops the touch worker after draining queued updates. Touch
// calls arriving later are dropped.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.closed = true
		close(s.touch)
		s.sendMu.Unlock()
		s.wg.Wait()
	})
}

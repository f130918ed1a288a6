package entrystore_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susumuota/s3-memoize/entrystore"
	"github.com/susumuota/s3-memoize/metrics"
	"github.com/susumuota/s3-memoize/objectstore"
)

func newTestStore(t *testing.T) (*entrystore.Store, *objectstore.MemoryStore) {
	t.Helper()
	backing := objectstore.NewMemory()
	s := entrystore.New(backing, "pkg.F/abcd1234", slog.Default(), metrics.Noop{}, 64)
	t.Cleanup(s.Close)
	return s, backing
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	written, err := s.Write(ctx, "key1", []byte(`{"answer":42}`))
	require.NoError(t, err)
	assert.Equal(t, "key1", written.Key)
	assert.False(t, written.CreatedAt.IsZero())

	got, err := s.Read(ctx, "key1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte(`{"answer":42}`), got.Payload)
}

func TestReadMiss(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.Read(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadCorruptEntry(t *testing.T) {
	ctx := context.Background()
	s, backing := newTestStore(t)

	require.NoError(t, backing.Put(ctx, "pkg.F/abcd1234/bad", []byte("garbage")))

	got, err := s.Read(ctx, "bad")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, entrystore.ErrCorruptEntry)
}

func TestReadPropagatesStoreFailure(t *testing.T) {
	backing := &failingStore{err: objectstore.ErrStoreUnavailable}
	s := entrystore.New(backing, "p", slog.Default(), metrics.Noop{}, 8)
	defer s.Close()

	_, err := s.Read(context.Background(), "k")
	assert.ErrorIs(t, err, objectstore.ErrStoreUnavailable)
}

func TestExpirationMakesEntryMiss(t *testing.T) {
	ctx := context.Background()
	_, backing := newTestStore(t)

	var expired metrics.Counters
	s2 := entrystore.New(backing, "pkg.F/abcd1234", slog.Default(), &expired, 8)
	defer s2.Close()

	s2.SetExpiration(time.Nanosecond)
	_, err := s2.Write(ctx, "shortlived", []byte("1"))
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	got, err := s2.Read(ctx, "shortlived")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(1), expired.Expired())

	// The expired object was deleted best-effort.
	_, err = backing.Get(ctx, "pkg.F/abcd1234/shortlived")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestSetExpirationIsForwardOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Write(ctx, "before", []byte("1"))
	require.NoError(t, err)

	s.SetExpiration(time.Nanosecond)
	time.Sleep(time.Millisecond)

	// The entry written before the expiration change has no deadline.
	got, err := s.Read(ctx, "before")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.True(t, got.ExpireAt.IsZero())
}

func TestSetExpirationNonPositiveDisables(t *testing.T) {
	s, _ := newTestStore(t)

	s.SetExpiration(time.Minute)
	assert.Equal(t, time.Minute, s.Expiration())

	s.SetExpiration(-1)
	assert.Equal(t, time.Duration(0), s.Expiration())
}

func TestRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Write(ctx, "k", []byte("v"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "k"))

	got, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClearCountsRemovals(t *testing.T) {
	ctx := context.Background()
	s, backing := newTestStore(t)

	for _, k := range []string{"a", "b", "c"} {
		_, err := s.Write(ctx, k, []byte("v"))
		require.NoError(t, err)
	}
	// An object outside the namespace must survive.
	require.NoError(t, backing.Put(ctx, "other/zzz", []byte("keep")))

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, backing.Len())
}

func TestListSkipsCorruptAndExpired(t *testing.T) {
	ctx := context.Background()
	s, backing := newTestStore(t)

	_, err := s.Write(ctx, "live", []byte("1"))
	require.NoError(t, err)

	require.NoError(t, backing.Put(ctx, "pkg.F/abcd1234/junk", []byte("{")))

	s.SetExpiration(time.Nanosecond)
	_, err = s.Write(ctx, "dead", []byte("2"))
	require.NoError(t, err)
	s.SetExpiration(0)

	time.Sleep(time.Millisecond)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "live", entries[0].Key)
}

func TestTouchUpdatesLastAccess(t *testing.T) {
	ctx := context.Background()
	backing := objectstore.NewMemory()
	s := entrystore.New(backing, "p", slog.Default(), metrics.Noop{}, 8)

	written, err := s.Write(ctx, "k", []byte("v"))
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	s.Touch(written)

	// Close drains the touch queue, so the rewrite is visible after it.
	s.Close()

	got, err := s.Read(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.LastAccessedAt.After(written.LastAccessedAt))
}

func TestQueuedTouchDoesNotResurrectRemovedEntry(t *testing.T) {
	ctx := context.Background()
	s, backing := newTestStore(t)

	written, err := s.Write(ctx, "k", []byte("v"))
	require.NoError(t, err)

	s.Touch(written)
	require.NoError(t, s.Remove(ctx, "k"))

	// Drain the queue; the update for the removed key must be discarded.
	s.Close()

	_, err = backing.Get(ctx, "pkg.F/abcd1234/k")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestQueuedTouchDoesNotSurviveClear(t *testing.T) {
	ctx := context.Background()
	s, backing := newTestStore(t)

	written, err := s.Write(ctx, "k", []byte("v"))
	require.NoError(t, err)

	s.Touch(written)
	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s.Close()

	assert.Equal(t, 0, backing.Len())
}

func TestRemovedKeyTouchableAgainAfterRewrite(t *testing.T) {
	ctx := context.Background()
	s, backing := newTestStore(t)

	_, err := s.Write(ctx, "k", []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, "k"))

	// A fresh write clears the tombstone.
	rewritten, err := s.Write(ctx, "k", []byte("v2"))
	require.NoError(t, err)
	s.Touch(rewritten)
	s.Close()

	got, err := s.Read(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("v2"), got.Payload)
	assert.Equal(t, 1, backing.Len())
}

func TestTouchAfterCloseIsDropped(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	written, err := s.Write(ctx, "k", []byte("v"))
	require.NoError(t, err)

	s.Close()
	assert.NotPanics(t, func() { s.Touch(written) })
}

// failingStore fails every operation with a fixed error.
type failingStore struct {
	err error
}

func (f *failingStore) Get(context.Context, string) ([]byte, error)        { return nil, f.err }
func (f *failingStore) Put(context.Context, string, []byte) error          { return f.err }
func (f *failingStore) Delete(context.Context, string) error               { return f.err }
func (f *failingStore) ListKeys(context.Context, string) ([]string, error) { return nil, f.err }

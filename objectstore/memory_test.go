package objectstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susumuota/s3-memoize/objectstore"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := objectstore.NewMemory()

	require.NoError(t, s.Put(ctx, "ns/a", []byte("payload")))

	got, err := s.Get(ctx, "ns/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestMemoryGetMissing(t *testing.T) {
	s := objectstore.NewMemory()

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestMemoryDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := objectstore.NewMemory()

	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "k"))
	// Second delete of the same key is still fine.
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestMemoryListKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	s := objectstore.NewMemory()

	require.NoError(t, s.Put(ctx, "ns1/b", []byte("1")))
	require.NoError(t, s.Put(ctx, "ns1/a", []byte("2")))
	require.NoError(t, s.Put(ctx, "ns2/c", []byte("3")))

	keys, err := s.ListKeys(ctx, "ns1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"ns1/a", "ns1/b"}, keys)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := objectstore.NewMemory()

	require.NoError(t, s.Put(ctx, "k", []byte("abc")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

package entry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susumuota/s3-memoize/entry"
)

func TestMarshalRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	e := &entry.CacheEntry{
		Key:            "abc123",
		Payload:        []byte(`{"n":42}`),
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpireAt:       now.Add(time.Hour),
	}

	b, err := entry.Marshal(e)
	require.NoError(t, err)

	got, err := entry.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, e.Key, got.Key)
	assert.Equal(t, e.Payload, got.Payload)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, e.LastAccessedAt.Equal(got.LastAccessedAt))
	assert.True(t, e.ExpireAt.Equal(got.ExpireAt))
}

func TestMarshalNoExpiration(t *testing.T) {
	e := &entry.CacheEntry{Key: "k", Payload: []byte("1"), CreatedAt: time.Now()}

	b, err := entry.Marshal(e)
	require.NoError(t, err)

	got, err := entry.Unmarshal(b)
	require.NoError(t, err)
	assert.True(t, got.ExpireAt.IsZero())
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := entry.Unmarshal([]byte("not json at all"))
	assert.Error(t, err)
}

func TestUnmarshalWrongVersion(t *testing.T) {
	_, err := entry.Unmarshal([]byte(`{"v":99,"key":"k"}`))
	assert.Error(t, err)
}

func TestExpired(t *testing.T) {
	now := time.Now()

	live := &entry.CacheEntry{ExpireAt: now.Add(time.Minute)}
	assert.False(t, live.Expired(now))

	dead := &entry.CacheEntry{ExpireAt: now.Add(-time.Nanosecond)}
	assert.True(t, dead.Expired(now))

	forever := &entry.CacheEntry{}
	assert.False(t, forever.Expired(now))
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := entry.JSONCodec{}

	b, err := c.Encode(map[string]int{"a": 1})
	require.NoError(t, err)

	var out map[string]int
	require.NoError(t, c.Decode(b, &out))
	assert.Equal(t, map[string]int{"a": 1}, out)
}

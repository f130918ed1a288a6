//go:build integration

package objectstore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susumuota/s3-memoize/objectstore"
)

// Runs against a real bucket. Requires AWS credentials in the environment
// and S3_MEMOIZE_TEST_BUCKET naming a bucket the caller may create.
func TestS3StoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bucket := os.Getenv("S3_MEMOIZE_TEST_BUCKET")
	if bucket == "" {
		t.Skip("S3_MEMOIZE_TEST_BUCKET not set")
	}

	ctx := context.Background()
	store, err := objectstore.NewS3(ctx, bucket)
	require.NoError(t, err)
	require.NoError(t, store.EnsureBucket(ctx))

	key := fmt.Sprintf("integration/%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = store.Delete(ctx, key)
	})

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, objectstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, key, []byte("payload")))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	keys, err := store.ListKeys(ctx, "integration/")
	require.NoError(t, err)
	assert.Contains(t, keys, key)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key)) // idempotent

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

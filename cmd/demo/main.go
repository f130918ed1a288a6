// Command demo walks through the cache lifecycle: misses, hits, LRU
// eviction, expiration, and clearing.
//
// By default it runs against an in-process store so it works without
// credentials. Set S3_MEMOIZE_BUCKET to run against a real S3 bucket
// (the bucket is created if missing; credentials come from the default
// AWS config chain).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	memoize "github.com/susumuota/s3-memoize"
	"github.com/susumuota/s3-memoize/objectstore"
)

func pickStore(ctx context.Context) (objectstore.Store, string, error) {
	if bucket := os.Getenv("S3_MEMOIZE_BUCKET"); bucket != "" {
		s, err := objectstore.NewS3(ctx, bucket)
		if err != nil {
			return nil, "", err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, "", err
		}
		return s, "s3://" + bucket, nil
	}
	return objectstore.NewMemory(), "memory", nil
}

func main() {
	ctx := context.Background()

	store, location, err := pickStore(ctx)
	if err != nil {
		slog.Error("store setup failed", "error", err)
		os.Exit(1)
	}

	// A unique run id keeps repeated demo runs against a shared bucket
	// from reading each other's entries.
	runID := uuid.NewString()[:8]

	fmt.Println("==================== SETUP ====================")
	fmt.Println("STORE    :", location)
	fmt.Println("RUN      :", runID)
	fmt.Println("POLICY   : LRU")
	fmt.Println("MAXSIZE  : 2")

	invocations := 0
	slowSquare := func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		invocations++
		n := args[0].(int)
		time.Sleep(50 * time.Millisecond) // pretend this is expensive
		return n * n, nil
	}

	square, err := memoize.NewLRU(ctx, slowSquare,
		memoize.WithStore(store),
		memoize.WithName("demo.Square/"+runID),
		memoize.WithMaxSize(2),
	)
	if err != nil {
		slog.Error("memoize setup failed", "error", err)
		os.Exit(1)
	}
	defer square.Close()

	call := func(n int) {
		start := time.Now()
		v, err := square.Call(ctx, n)
		if err != nil {
			slog.Error("call failed", "arg", n, "error", err)
			os.Exit(1)
		}
		fmt.Printf("CALL square(%d) = %-6d (%s)\n", n, v, time.Since(start).Round(time.Millisecond))
	}

	fmt.Println("\n==================== 1) MISS THEN HIT ====================")
	call(10) // computes
	call(10) // served from the store

	fmt.Println("\n==================== 2) LRU EVICTION ====================")
	call(20) // cache now holds 10, 20
	call(10) // touch 10; 20 becomes least recently used
	call(30) // evicts 20
	call(20) // recomputed

	fmt.Println("\n==================== 3) EXPIRATION ====================")
	square.SetExpiration(time.Second)
	call(40)
	fmt.Println("WAIT 2s for the entry to expire")
	time.Sleep(2 * time.Second)
	call(40) // recomputed

	fmt.Println("\n==================== 4) INFO ====================")
	info := square.Info()
	fmt.Printf("HITS=%d MISSES=%d SIZE=%d/%d INVOCATIONS=%d\n",
		info.Hits, info.Misses, info.CurrentSize, info.MaxSize, invocations)

	fmt.Println("\n==================== 5) CLEAR ====================")
	n, err := square.Clear(ctx)
	if err != nil {
		slog.Error("clear failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("REMOVED %d entries\n", n)

	info = square.Info()
	fmt.Printf("AFTER CLEAR: HITS=%d MISSES=%d SIZE=%d\n", info.Hits, info.Misses, info.CurrentSize)
}

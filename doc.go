/*
Package memoize caches the results of pure functions in a remote object
store, so memoized results survive process restarts and can be shared
across machines.

A memoized function is built from a target callable and a configuration:

	square := func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return args[0].(int) * args[0].(int), nil
	}

	cached, err := memoize.NewFIFO(ctx, square,
		memoize.WithBucket("my-cache-bucket"),
		memoize.WithMaxSize(128),
	)
	if err != nil {
		return err
	}
	defer cached.Close()

	v, err := cached.Call(ctx, 10) // first call computes and persists
	v, err = cached.Call(ctx, 10)  // later calls read the stored result

Every wrapper owns one namespace in the store, keyed by the function name
and a fingerprint of its configuration. Entries are written through
before a result is returned and evicted FIFO or LRU once the namespace
exceeds its maxsize. Info, Clear, and SetExpiration expose the
management surface.

The wrapper is safe for concurrent use within one process. Across
processes the store is last-writer-wins: two machines missing on the
same key may both compute, which costs duplicate work but never corrupts
an entry.
*/
package memoize

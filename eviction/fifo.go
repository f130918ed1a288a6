// This file implements FIFO eviction.

package eviction

type fifo struct {
	// queue keeps keys in insertion order; index 0 is the oldest key and
	// the next eviction candidate.
	queue []string

	// set mirrors the queue for O(1) membership checks.
	set map[string]struct{}
}

func newFIFO() *fifo {
	return &fifo{
		queue: make([]string, 0),
		set:   make(map[string]struct{}),
	}
}

// OnHit is a no-op: FIFO orders by insertion only.
func (f *fifo) OnHit(string) {}

// OnInsert appends a new key to the tail. Re-inserting a tracked key does
// not move it; only the first insertion counts.
func (f *fifo) OnInsert(k string) {
	if _, ok := f.set[k]; ok {
		return
	}
	f.queue = append(f.queue, k)
	f.set[k] = struct{}{}
}

// Evict pops the oldest-inserted key.
func (f *fifo) Evict() string {
	if len(f.queue) == 0 {
		return ""
	}
	k := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.set, k)
	return k
}

// Remove drops a key while preserving the order of everything else.
func (f *fifo) Remove(k string) {
	if _, ok := f.set[k]; !ok {
		return
	}
	delete(f.set, k)
	for i, v := range f.queue {
		if v == k {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			break
		}
	}
}

func (f *fifo) Contains(k string) bool {
	_, ok := f.set[k]
	return ok
}

func (f *fifo) Len() int {
	return len(f.queue)
}

// This file implements LRU eviction.

package eviction

// lruNode is one key in the recency list.
type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

// lru tracks keys in a doubly-linked list ordered by recency. head is the
// most recently used key, tail the least. The nodes map gives O(1) access
// for reorders and removals.
type lru struct {
	nodes map[string]*lruNode
	head  *lruNode
	tail  *lruNode
}

func newLRU() *lru {
	return &lru{nodes: make(map[string]*lruNode)}
}

// OnHit marks a key as most recently used.
func (l *lru) OnHit(k string) {
	if n, ok := l.nodes[k]; ok {
		l.moveToFront(n)
	}
}

// OnInsert adds a new key at the most-recently-used end. An already
// tracked key is left alone; hits handle reordering.
func (l *lru) OnInsert(k string) {
	if _, ok := l.nodes[k]; ok {
		return
	}
	n := &lruNode{key: k}
	l.nodes[k] = n
	l.addFront(n)
}

// Evict removes the least recently used key, the list tail.
func (l *lru) Evict() string {
	if l.tail == nil {
		return ""
	}
	k := l.tail.key
	l.remove(l.tail)
	delete(l.nodes, k)
	return k
}

func (l *lru) Remove(k string) {
	if n, ok := l.nodes[k]; ok {
		l.remove(n)
		delete(l.nodes, k)
	}
}

func (l *lru) Contains(k string) bool {
	_, ok := l.nodes[k]
	return ok
}

func (l *lru) Len() int {
	return len(l.nodes)
}

func (l *lru) addFront(n *lruNode) {
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lru) remove(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (l *lru) moveToFront(n *lruNode) {
	if l.head == n {
		return
	}
	l.remove(n)
	l.addFront(n)
}

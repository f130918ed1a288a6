// This file implements LFU eviction.

package eviction

// lfuNode is one key tracked by LFU. seq records insertion order so that
// ties inside a frequency bucket break deterministically.
type lfuNode struct {
	key  string
	freq int
	seq  uint64
}

type lfu struct {
	// nodes finds the node for a key in O(1).
	nodes map[string]*lfuNode

	// freqMap groups keys by access count.
	freqMap map[int]map[string]*lfuNode

	// minFreq is the smallest frequency currently present, so eviction
	// never scans every bucket.
	minFreq int

	// nextSeq numbers insertions.
	nextSeq uint64
}

func newLFU() *lfu {
	return &lfu{
		nodes:   make(map[string]*lfuNode),
		freqMap: make(map[int]map[string]*lfuNode),
	}
}

// OnHit bumps the key's access count into the next frequency bucket.
func (l *lfu) OnHit(k string) {
	n, ok := l.nodes[k]
	if !ok {
		return
	}

	old := n.freq
	n.freq++

	delete(l.freqMap[old], k)
	if len(l.freqMap[old]) == 0 {
		delete(l.freqMap, old)
		if l.minFreq == old {
			l.minFreq++
		}
	}

	if l.freqMap[n.freq] == nil {
		l.freqMap[n.freq] = make(map[string]*lfuNode)
	}
	l.freqMap[n.freq][k] = n
}

// OnInsert starts a new key at frequency 1.
func (l *lfu) OnInsert(k string) {
	if _, ok := l.nodes[k]; ok {
		return
	}

	l.nextSeq++
	n := &lfuNode{key: k, freq: 1, seq: l.nextSeq}
	l.nodes[k] = n

	if l.freqMap[1] == nil {
		l.freqMap[1] = make(map[string]*lfuNode)
	}
	l.freqMap[1][k] = n
	l.minFreq = 1
}

// Evict removes the least frequently used key. Within the lowest
// frequency bucket the earliest-inserted key goes first.
func (l *lfu) Evict() string {
	bucket := l.freqMap[l.minFreq]
	if len(bucket) == 0 {
		return ""
	}

	var victim *lfuNode
	for _, n := range bucket {
		if victim == nil || n.seq < victim.seq {
			victim = n
		}
	}

	delete(bucket, victim.key)
	if len(bucket) == 0 {
		delete(l.freqMap, l.minFreq)
		l.resetMinFreq()
	}
	delete(l.nodes, victim.key)
	return victim.key
}

func (l *lfu) Remove(k string) {
	n, ok := l.nodes[k]
	if !ok {
		return
	}
	delete(l.freqMap[n.freq], k)
	if len(l.freqMap[n.freq]) == 0 {
		delete(l.freqMap, n.freq)
		if l.minFreq == n.freq {
			l.resetMinFreq()
		}
	}
	delete(l.nodes, k)
}

// resetMinFreq rescans the buckets after the minimum one empties.
func (l *lfu) resetMinFreq() {
	l.minFreq = 0
	for f := range l.freqMap {
		if l.minFreq == 0 || f < l.minFreq {
			l.minFreq = f
		}
	}
}

func (l *lfu) Contains(k string) bool {
	_, ok := l.nodes[k]
	return ok
}

func (l *lfu) Len() int {
	return len(l.nodes)
}

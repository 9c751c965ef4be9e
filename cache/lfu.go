package cache

import (
	"container/heap"
	"sort"
)

// lfuPolicy orders keys by access count, breaking ties by insertion order.
// A min-heap keeps Victim O(1) and Accessed/Remove O(log n).
type lfuPolicy struct {
	heap  lfuHeap
	items map[Digest]*lfuItem
	seq   uint64
}

type lfuItem struct {
	key   Digest
	count uint64 // successful reads since insertion
	seq   uint64 // insertion order, fixed for the item's lifetime
	index int    // position in the heap
}

func newLFUPolicy() *lfuPolicy {
	return &lfuPolicy{items: make(map[Digest]*lfuItem)}
}

// Inserted tracks key with a zero count and a fresh insertion sequence.
func (p *lfuPolicy) Inserted(key Digest) {
	p.seq++
	item := &lfuItem{key: key, seq: p.seq}
	p.items[key] = item
	heap.Push(&p.heap, item)
}

func (p *lfuPolicy) Accessed(key Digest) {
	item, ok := p.items[key]
	if !ok {
		return
	}
	item.count++
	heap.Fix(&p.heap, item.index)
}

func (p *lfuPolicy) Victim() (Digest, bool) {
	if len(p.heap) == 0 {
		return Digest{}, false
	}
	return p.heap[0].key, true
}

func (p *lfuPolicy) Remove(key Digest) {
	item, ok := p.items[key]
	if !ok {
		return
	}
	heap.Remove(&p.heap, item.index)
	delete(p.items, key)
}

func (p *lfuPolicy) Len() int {
	return len(p.heap)
}

// Keys returns keys from lowest to highest (count, insertion) rank.
func (p *lfuPolicy) Keys() []Digest {
	items := make([]*lfuItem, len(p.heap))
	copy(items, p.heap)
	sort.Slice(items, func(i, j int) bool { return lfuLess(items[i], items[j]) })

	keys := make([]Digest, len(items))
	for i, item := range items {
		keys[i] = item.key
	}
	return keys
}

func lfuLess(a, b *lfuItem) bool {
	if a.count != b.count {
		return a.count < b.count
	}
	return a.seq < b.seq
}

// lfuHeap implements heap.Interface.
type lfuHeap []*lfuItem

func (h lfuHeap) Len() int           { return len(h) }
func (h lfuHeap) Less(i, j int) bool { return lfuLess(h[i], h[j]) }

func (h lfuHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *lfuHeap) Push(x any) {
	item := x.(*lfuItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *lfuHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

var _ EvictionPolicy = (*lfuPolicy)(nil)

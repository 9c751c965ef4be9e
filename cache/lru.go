package cache

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// lruPolicy orders keys by recency. The list is sized so it never evicts on
// its own; the Cache enforces capacity by asking for a Victim.
type lruPolicy struct {
	order *simplelru.LRU[Digest, struct{}]
}

func newLRUPolicy() *lruPolicy {
	order, err := simplelru.NewLRU[Digest, struct{}](math.MaxInt, nil)
	if err != nil {
		// Only returned for a non-positive size.
		panic("cache: failed to create LRU order: " + err.Error())
	}
	return &lruPolicy{order: order}
}

func (p *lruPolicy) Inserted(key Digest) {
	p.order.Add(key, struct{}{})
}

// Accessed moves key to the most recently used end.
func (p *lruPolicy) Accessed(key Digest) {
	p.order.Get(key)
}

func (p *lruPolicy) Victim() (Digest, bool) {
	key, _, ok := p.order.GetOldest()
	return key, ok
}

func (p *lruPolicy) Remove(key Digest) {
	p.order.Remove(key)
}

func (p *lruPolicy) Len() int {
	return p.order.Len()
}

// Keys returns keys from least to most recently used.
func (p *lruPolicy) Keys() []Digest {
	return p.order.Keys()
}

var _ EvictionPolicy = (*lruPolicy)(nil)

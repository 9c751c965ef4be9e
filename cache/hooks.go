package cache

// EvictReason indicates why an entry left the cache without a Delete.
type EvictReason int

const (
	// EvictReasonCapacity means a Set at capacity displaced the entry.
	EvictReasonCapacity EvictReason = iota

	// EvictReasonResize means Resize shrank the cache below its size.
	EvictReasonResize

	// EvictReasonManual means the entry was removed through Evict.
	EvictReasonManual
)

func (r EvictReason) String() string {
	switch r {
	case EvictReasonCapacity:
		return "capacity"
	case EvictReasonResize:
		return "resize"
	case EvictReasonManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Hooks receives cache events. Any field may be nil.
//
// Hooks run after the cache lock is released, in the order the events
// happened within one operation. They observe; they must not assume the
// cache still holds the reported entry.
type Hooks[V any] struct {
	OnHit    func(key Key, value V)
	OnMiss   func(key Key)
	OnInsert func(key Key, value V)
	OnEvict  func(key Key, value V, reason EvictReason)
	OnRemove func(key Key, value V)
}

type eventKind int

const (
	eventHit eventKind = iota
	eventMiss
	eventInsert
	eventEvict
	eventRemove
)

type event[V any] struct {
	kind   eventKind
	key    Key
	value  V
	reason EvictReason
}

func (h *Hooks[V]) fire(events []event[V]) {
	for _, ev := range events {
		switch ev.kind {
		case eventHit:
			if h.OnHit != nil {
				h.OnHit(ev.key, ev.value)
			}
		case eventMiss:
			if h.OnMiss != nil {
				h.OnMiss(ev.key)
			}
		case eventInsert:
			if h.OnInsert != nil {
				h.OnInsert(ev.key, ev.value)
			}
		case eventEvict:
			if h.OnEvict != nil {
				h.OnEvict(ev.key, ev.value, ev.reason)
			}
		case eventRemove:
			if h.OnRemove != nil {
				h.OnRemove(ev.key, ev.value)
			}
		}
	}
}

func (h *Hooks[V]) empty() bool {
	return h.OnHit == nil && h.OnMiss == nil && h.OnInsert == nil &&
		h.OnEvict == nil && h.OnRemove == nil
}

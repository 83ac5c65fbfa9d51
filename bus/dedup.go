package bus

import "sync"

const (
	// DedupLimit is the maximum number of recent event keys remembered by a
	// deduplicating subscriber.
	DedupLimit = 100
	// DedupEvict is how many of the oldest keys are discarded once the limit
	// is reached. Trimming in a coarse batch keeps eviction churn low at a
	// negligible staleness cost.
	DedupEvict = 50
)

// Deduper tracks recently observed event keys so a subscriber receiving
// at-least-once delivery can suppress duplicates.
type Deduper struct {
	mu    sync.Mutex
	seen  map[int64]struct{}
	order []int64
	limit int
	evict int
}

// NewDeduper creates a deduper with the default bounds.
func NewDeduper() *Deduper {
	return NewDeduperWithBounds(DedupLimit, DedupEvict)
}

// NewDeduperWithBounds creates a deduper holding at most limit keys,
// discarding the oldest evict keys when full.
func NewDeduperWithBounds(limit, evict int) *Deduper {
	if limit <= 0 {
		limit = DedupLimit
	}
	if evict <= 0 || evict > limit {
		evict = limit / 2
	}
	return &Deduper{
		seen:  make(map[int64]struct{}, limit),
		order: make([]int64, 0, limit),
		limit: limit,
		evict: evict,
	}
}

// Seen records key and reports whether it was already observed.
func (d *Deduper) Seen(key int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	if len(d.order) >= d.limit {
		for _, old := range d.order[:d.evict] {
			delete(d.seen, old)
		}
		d.order = append(d.order[:0], d.order[d.evict:]...)
	}

	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
	return false
}

// Len returns the number of keys currently tracked.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

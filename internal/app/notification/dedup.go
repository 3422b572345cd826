package notification

import (
	"sync"
	"time"
)

// dedupSet remembers keys for a retention window. A key, once marked, stays
// marked until Evict runs past its retention.
type dedupSet struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
}

func newDedupSet(retention time.Duration) *dedupSet {
	return &dedupSet{seen: make(map[string]time.Time), retention: retention}
}

// Mark records key and reports whether this call was the one that added it.
func (d *dedupSet) Mark(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = now
	return true
}

func (d *dedupSet) Has(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[key]
	return ok
}

func (d *dedupSet) Evict(now time.Time) int {
	if d.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-d.retention)

	d.mu.Lock()
	defer d.mu.Unlock()
	evicted := 0
	for key, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, key)
			evicted++
		}
	}
	return evicted
}

func (d *dedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

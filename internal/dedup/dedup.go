// Package dedup tracks which items have already been announced.
package dedup

import (
	"sync"

	"rss_notify/internal/model"
)

// Tracker holds the set of links already reported as new.
// The set only grows; it lives as long as the process.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Delta returns the items of snap whose links have not been seen before,
// in snapshot order, and records them as seen.
// Items without a link are ignored.
func (t *Tracker) Delta(snap *model.Snapshot) []model.Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fresh []model.Item
	for _, item := range snap.Items {
		if !item.HasIdentity() {
			continue
		}
		if _, ok := t.seen[item.Link]; ok {
			continue
		}
		t.seen[item.Link] = struct{}{}
		fresh = append(fresh, item)
	}
	return fresh
}

// Seen reports whether link has already been reported.
func (t *Tracker) Seen(link string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[link]
	return ok
}

// Len returns the number of tracked links.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

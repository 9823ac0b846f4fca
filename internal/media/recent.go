package media

import (
	"sort"
	"sync"
	"sync/atomic"
)

// DefaultRecentCapacity bounds the "recently added" view.
const DefaultRecentCapacity = 200

// recentEntry snapshots the AuthList in effect for the item's parent at
// insertion time, so visibility checks never re-walk the tree.
type recentEntry struct {
	item     *ContentItem
	auth     *AuthList
	modified int64
}

// RecentSet is the bounded, modified-time-ordered view of the most
// recently added items. The capacity invariant is a compound
// check-then-act, so the whole structure sits behind one lock; a lock-free
// threshold pre-filter rejects obviously-too-old items first.
type RecentSet struct {
	capacity  int
	threshold atomic.Int64 // oldest admitted mtime once full

	mu      sync.Mutex
	entries []recentEntry // sorted newest first
}

// NewRecentSet creates a recent set. A non-positive capacity falls back to
// the default.
func NewRecentSet(capacity int) *RecentSet {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &RecentSet{capacity: capacity}
}

// Add offers an item to the recent view, evicting the oldest entry when
// the set is full. Items older than the current eviction threshold are
// skipped without taking the lock.
func (r *RecentSet) Add(item *ContentItem, auth *AuthList) {
	modified := item.LastModified()
	if t := r.threshold.Load(); t != 0 && modified <= t {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.item.ID() == item.ID() {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}

	idx := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].modified <= modified
	})
	r.entries = append(r.entries, recentEntry{})
	copy(r.entries[idx+1:], r.entries[idx:])
	r.entries[idx] = recentEntry{item: item, auth: auth, modified: modified}

	if len(r.entries) > r.capacity {
		r.entries = r.entries[:r.capacity]
	}
	if len(r.entries) == r.capacity {
		r.threshold.Store(r.entries[len(r.entries)-1].modified)
	}
}

// Remove drops the item with the given id, if present. Dropping below
// capacity clears the pre-filter threshold so new items are admitted
// again regardless of age.
func (r *RecentSet) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.item.ID() == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			if len(r.entries) < r.capacity {
				r.threshold.Store(0)
			}
			return true
		}
	}
	return false
}

// Items returns the recent items newest first, filtered by the AuthList
// snapshotted at insertion time. Public entries are visible to everyone.
func (r *RecentSet) Items(username string) []*ContentItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ContentItem, 0, len(r.entries))
	for _, e := range r.entries {
		if e.auth.Admits(username) {
			out = append(out, e.item)
		}
	}
	return out
}

// Len returns the current number of entries.
func (r *RecentSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

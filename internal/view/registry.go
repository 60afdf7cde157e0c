// Package view keeps one accumulator per rendered list view.
package view

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/spacetraveling/internal/feed"
	"github.com/ppiankov/spacetraveling/internal/post"
)

const (
	DefaultTTL      = 30 * time.Minute
	DefaultMaxViews = 1000
)

// ErrNotFound is returned for unknown or expired view IDs.
var ErrNotFound = errors.New("view not found")

type entry struct {
	acc      *feed.Accumulator
	created  time.Time
	lastSeen time.Time
}

// Registry maps view IDs to their accumulators. Views idle for longer than
// the TTL are dropped on the next sweep; when the cap is reached the least
// recently used view is evicted.
type Registry struct {
	newAcc func() *feed.Accumulator
	ttl    time.Duration
	max    int
	now    func() time.Time

	mu    sync.Mutex
	views map[string]*entry
}

// NewRegistry creates a registry. newAcc builds a fresh, uninitialized accumulator.
func NewRegistry(newAcc func() *feed.Accumulator, ttl time.Duration, maxViews int) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxViews <= 0 {
		maxViews = DefaultMaxViews
	}
	return &Registry{
		newAcc: newAcc,
		ttl:    ttl,
		max:    maxViews,
		now:    time.Now,
		views:  make(map[string]*entry),
	}
}

// Create mounts a new view seeded with first and returns its ID.
func (r *Registry) Create(first post.Page) (string, *feed.Accumulator, error) {
	acc := r.newAcc()
	if err := acc.Initialize(first); err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked(now)
	for len(r.views) >= r.max {
		r.evictOldestLocked()
	}
	r.views[id] = &entry{acc: acc, created: now, lastSeen: now}
	return id, acc, nil
}

// Get returns the accumulator of a live view and marks it as used.
func (r *Registry) Get(id string) (*feed.Accumulator, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.views[id]
	if !ok {
		return nil, ErrNotFound
	}
	if now.Sub(e.lastSeen) > r.ttl {
		delete(r.views, id)
		return nil, ErrNotFound
	}
	e.lastSeen = now
	return e.acc, nil
}

// Delete unmounts a view. It reports whether the view existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.views[id]; !ok {
		return false
	}
	delete(r.views, id)
	return true
}

// Sweep drops expired views and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

// Len returns the number of mounted views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// IDs returns the mounted view IDs, oldest first.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.views[ids[i]].created.Before(r.views[ids[j]].created)
	})
	return ids
}

func (r *Registry) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range r.views {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.views, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range r.views {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	if oldestID != "" {
		delete(r.views, oldestID)
	}
}

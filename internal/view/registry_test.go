package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/spacetraveling/internal/cms"
	"github.com/ppiankov/spacetraveling/internal/feed"
	"github.com/ppiankov/spacetraveling/internal/post"
)

type nopFetcher struct{}

func (nopFetcher) FetchPage(context.Context, string) (cms.Page, error) {
	return cms.Page{}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(t *testing.T, ttl time.Duration, max int) (*Registry, *clock) {
	t.Helper()
	n, err := post.NewNormalizer(post.DefaultDateFormat)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	r := NewRegistry(func() *feed.Accumulator { return feed.New(nopFetcher{}, n) }, ttl, max)
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r.now = c.now
	return r, c
}

func page(uids ...string) post.Page {
	p := post.Page{NextCursor: "https://x/page2"}
	for _, uid := range uids {
		p.Posts = append(p.Posts, post.Post{UID: uid})
	}
	return p
}

func TestCreateAndGet(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute, 10)

	id, acc, err := r.Create(page("a"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("empty view id")
	}

	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != acc {
		t.Error("Get returned a different accumulator")
	}
	if snap := got.Snapshot(); len(snap.Posts) != 1 || !snap.HasMore() {
		t.Errorf("accumulator not seeded: %+v", snap)
	}
}

func TestViewsAreIndependent(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute, 10)

	id1, _, _ := r.Create(page("a"))
	id2, _, _ := r.Create(page("b", "c"))
	if id1 == id2 {
		t.Fatal("duplicate view ids")
	}

	a1, _ := r.Get(id1)
	a2, _ := r.Get(id2)
	if len(a1.Snapshot().Posts) != 1 || len(a2.Snapshot().Posts) != 2 {
		t.Error("views share state")
	}
}

func TestGet_Expired(t *testing.T) {
	r, c := newTestRegistry(t, time.Minute, 10)
	id, _, _ := r.Create(page("a"))

	c.advance(30 * time.Second)
	if _, err := r.Get(id); err != nil {
		t.Fatalf("Get within ttl: %v", err)
	}

	// Access refreshed lastSeen, so another 45s is still live.
	c.advance(45 * time.Second)
	if _, err := r.Get(id); err != nil {
		t.Fatalf("Get after refresh: %v", err)
	}

	c.advance(2 * time.Minute)
	if _, err := r.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if r.Len() != 0 {
		t.Errorf("len = %d, want expired view removed", r.Len())
	}
}

func TestSweep(t *testing.T) {
	r, c := newTestRegistry(t, time.Minute, 10)
	r.Create(page("a"))
	r.Create(page("b"))
	c.advance(2 * time.Minute)
	r.Create(page("c"))

	if removed := r.Sweep(); removed != 0 {
		t.Errorf("removed = %d, want 0 (Create already swept)", removed)
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}

	c.advance(2 * time.Minute)
	if removed := r.Sweep(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestCreate_EvictsLeastRecentlyUsed(t *testing.T) {
	r, c := newTestRegistry(t, time.Hour, 2)

	first, _, _ := r.Create(page("a"))
	c.advance(time.Second)
	second, _, _ := r.Create(page("b"))
	c.advance(time.Second)
	if _, err := r.Get(first); err != nil {
		t.Fatalf("Get: %v", err)
	}
	c.advance(time.Second)
	third, _, _ := r.Create(page("c"))

	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
	if _, err := r.Get(second); !errors.Is(err, ErrNotFound) {
		t.Errorf("second view should have been evicted")
	}
	for _, id := range []string{first, third} {
		if _, err := r.Get(id); err != nil {
			t.Errorf("Get(%s): %v", id, err)
		}
	}
}

func TestDelete(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute, 10)
	id, _, _ := r.Create(page("a"))

	if !r.Delete(id) {
		t.Fatal("Delete returned false for live view")
	}
	if r.Delete(id) {
		t.Fatal("Delete returned true for removed view")
	}
	if _, err := r.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIDs_OldestFirst(t *testing.T) {
	r, c := newTestRegistry(t, time.Hour, 10)
	a, _, _ := r.Create(page("a"))
	c.advance(time.Second)
	b, _, _ := r.Create(page("b"))

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Errorf("ids = %v, want [%s %s]", ids, a, b)
	}
}

func TestNewRegistry_Defaults(t *testing.T) {
	r := NewRegistry(nil, 0, 0)
	if r.ttl != DefaultTTL || r.max != DefaultMaxViews {
		t.Errorf("ttl=%v max=%d, want defaults", r.ttl, r.max)
	}
}

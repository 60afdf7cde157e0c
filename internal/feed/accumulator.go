// Package feed accumulates cursor pages of posts into one growing list.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/spacetraveling/internal/cms"
	"github.com/ppiankov/spacetraveling/internal/post"
)

// ErrAlreadyInitialized is returned by a second Initialize call.
var ErrAlreadyInitialized = errors.New("accumulator already initialized")

// State is the accumulator's position in its load cycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome tells a LoadMore caller what happened.
type Outcome int

const (
	// OutcomeLoaded means a page was fetched and appended.
	OutcomeLoaded Outcome = iota
	// OutcomeExhausted means there was no cursor; nothing was fetched.
	OutcomeExhausted
	// OutcomeBusy means another fetch was already outstanding; nothing was fetched.
	OutcomeBusy
	// OutcomeFailed means the fetch or normalization failed; nothing was appended.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeBusy:
		return "busy"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one LoadMore call. Err is set only for OutcomeFailed.
type Result struct {
	Outcome  Outcome
	Appended []post.Post
	Err      error
}

// PageFetcher follows an opaque next-page cursor.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string) (cms.Page, error)
}

// Snapshot is a point-in-time copy of the accumulated state.
type Snapshot struct {
	Posts  []post.Post
	Cursor string
	State  State
	Err    error // last failure while State is StateFailed
}

// HasMore reports whether the "load more" control should be offered.
func (s Snapshot) HasMore() bool {
	return s.Cursor != ""
}

// Accumulator owns the post list of one view and extends it page by page.
// The lock is never held across a fetch; a second LoadMore issued while one
// is outstanding returns OutcomeBusy.
type Accumulator struct {
	fetcher    PageFetcher
	normalizer *post.Normalizer

	mu          sync.Mutex
	posts       []post.Post
	cursor      string
	state       State
	lastErr     error
	initialized bool
}

// New creates an uninitialized accumulator.
func New(fetcher PageFetcher, normalizer *post.Normalizer) *Accumulator {
	return &Accumulator{
		fetcher:    fetcher,
		normalizer: normalizer,
	}
}

// Initialize seeds the accumulator with the first page. It may be called once.
func (a *Accumulator) Initialize(first post.Page) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return ErrAlreadyInitialized
	}
	a.posts = append(make([]post.Post, 0, len(first.Posts)), first.Posts...)
	a.cursor = first.NextCursor
	a.state = StateIdle
	a.initialized = true
	return nil
}

// LoadMore fetches the page behind the current cursor and appends it.
// Calling it from StateFailed retries the same cursor.
func (a *Accumulator) LoadMore(ctx context.Context) Result {
	a.mu.Lock()
	if a.state == StateFetching {
		a.mu.Unlock()
		return Result{Outcome: OutcomeBusy}
	}
	if a.cursor == "" {
		a.mu.Unlock()
		return Result{Outcome: OutcomeExhausted}
	}
	cursor := a.cursor
	a.state = StateFetching
	a.mu.Unlock()

	page, err := a.fetch(ctx, cursor)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.state = StateFailed
		a.lastErr = err
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	a.posts = append(a.posts, page.Posts...)
	a.cursor = page.NextCursor
	a.state = StateIdle
	a.lastErr = nil
	return Result{Outcome: OutcomeLoaded, Appended: page.Posts}
}

func (a *Accumulator) fetch(ctx context.Context, cursor string) (post.Page, error) {
	raw, err := a.fetcher.FetchPage(ctx, cursor)
	if err != nil {
		return post.Page{}, fmt.Errorf("load more: %w", err)
	}
	page, err := a.normalizer.NormalizePage(raw)
	if err != nil {
		return post.Page{}, fmt.Errorf("load more: %w", err)
	}
	return page, nil
}

// Snapshot returns a copy of the accumulated posts, cursor and state.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		Posts:  append([]post.Post(nil), a.posts...),
		Cursor: a.cursor,
		State:  a.state,
		Err:    a.lastErr,
	}
}

// HasMore reports whether a cursor remains.
func (a *Accumulator) HasMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor != ""
}

// State returns the current state.
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

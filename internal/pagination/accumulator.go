package pagination

import (
	"context"
	"sync"
	"time"
)

// TriggerDebounce is how long a scroll-edge trigger waits before firing a
// load, so that rapid visibility flicker collapses into a single request.
const TriggerDebounce = 200 * time.Millisecond

// Page is one fetched slice of a list. NextCursor is opaque to the
// accumulator: a real cursor token for cursor-style endpoints, a page number
// rendered as a string for offset-style ones.
type Page[T any] struct {
	Items      []T
	NextCursor *string
	HasMore    bool
}

// Fetcher retrieves the page that starts at cursor. A nil cursor means the
// beginning of the list. Fetchers own all transport concerns; the
// accumulator never sees HTTP.
type Fetcher[T any] func(ctx context.Context, cursor *string) (Page[T], error)

// Accumulator drives repeated fetches for one list instance, appending and
// deduplicating results as the consumer scrolls. At most one fetch is in
// flight at a time; a second Load while one is outstanding is dropped, not
// queued.
type Accumulator[T any] struct {
	fetch Fetcher[T]
	keyOf func(T) any

	mu      sync.Mutex
	items   []T
	cursor  *string
	hasMore bool
	loading bool
	fetched bool
	gen     uint64
	pending *time.Timer
}

// NewAccumulator builds an empty accumulator. keyOf supplies the
// deduplication key for an item; overlapping page boundaries are deduped by
// that key, never by position.
func NewAccumulator[T any](fetch Fetcher[T], keyOf func(T) any) *Accumulator[T] {
	return &Accumulator[T]{
		fetch:   fetch,
		keyOf:   keyOf,
		hasMore: true,
	}
}

// Load fetches the next page and appends it. With reset true the
// accumulated items and cursor are discarded first and the fetch starts from
// the beginning of the list; any response still in flight for the previous
// state is discarded when it lands. With reset false the call is a no-op
// while a fetch is outstanding or after exhaustion.
func (a *Accumulator[T]) Load(ctx context.Context, reset bool) error {
	a.mu.Lock()

	var cursor *string
	if reset {
		// A reset does not wait for an outstanding fetch: the two requests
		// may briefly overlap, and the superseded response is dropped by the
		// generation check below when it lands.
		a.gen++
		a.items = nil
		a.cursor = nil
		a.hasMore = true
		a.fetched = false
	} else {
		if a.loading || !a.hasMore {
			a.mu.Unlock()
			return nil
		}
		cursor = a.cursor
	}

	a.loading = true
	gen := a.gen
	a.mu.Unlock()

	page, err := a.fetch(ctx, cursor)

	a.mu.Lock()
	defer a.mu.Unlock()

	// A reset or teardown happened while the request was in flight. The
	// response belongs to a discarded state and must not be applied.
	if gen != a.gen {
		return nil
	}

	a.loading = false
	a.fetched = true

	if err != nil {
		a.hasMore = false
		return err
	}

	added := 0
	for _, item := range page.Items {
		if !a.containsLocked(item) {
			a.items = append(a.items, item)
			added++
		}
	}

	a.cursor = page.NextCursor

	// A cursor with an empty page, or hasMore with nothing new, would loop
	// forever. Treat both as exhaustion: a page that dedups away entirely
	// counts as nothing new even when the server keeps handing out a cursor.
	a.hasMore = page.HasMore && page.NextCursor != nil && added > 0

	return nil
}

// Trigger schedules Load(false) after the debounce window; triggers arriving
// while one is already scheduled, or while a fetch is in flight, are
// dropped. A failed load is reported through report when non-nil.
func (a *Accumulator[T]) Trigger(ctx context.Context, report func(error)) {
	a.mu.Lock()
	if a.pending != nil || a.loading || !a.hasMore {
		a.mu.Unlock()
		return
	}
	a.pending = time.AfterFunc(TriggerDebounce, func() {
		a.mu.Lock()
		a.pending = nil
		a.mu.Unlock()

		if err := a.Load(ctx, false); err != nil && report != nil {
			report(err)
		}
	})
	a.mu.Unlock()
}

// Invalidate discards any response still in flight and cancels a pending
// trigger. Call on teardown so late arrivals never touch a dead list.
func (a *Accumulator[T]) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.loading = false
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
}

// Items returns a copy of the accumulated items in insertion order.
func (a *Accumulator[T]) Items() []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]T, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Accumulator[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

func (a *Accumulator[T]) HasMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasMore
}

func (a *Accumulator[T]) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// Fetched reports whether at least one fetch has completed since the last
// reset.
func (a *Accumulator[T]) Fetched() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetched
}

// Prepend inserts item at the head of the list, skipping the dedup check so
// that optimistic records are always visible immediately.
func (a *Accumulator[T]) Prepend(item T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append([]T{item}, a.items...)
}

// PrependUnique inserts item at the head unless its key is already present.
func (a *Accumulator[T]) PrependUnique(item T) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.containsLocked(item) {
		return false
	}
	a.items = append([]T{item}, a.items...)
	return true
}

// Replace swaps the first item satisfying match for with, keeping its
// position.
func (a *Accumulator[T]) Replace(match func(T) bool, with T) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, item := range a.items {
		if match(item) {
			a.items[i] = with
			return true
		}
	}
	return false
}

// Remove drops the first item satisfying match.
func (a *Accumulator[T]) Remove(match func(T) bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, item := range a.items {
		if match(item) {
			a.items = append(a.items[:i], a.items[i+1:]...)
			return true
		}
	}
	return false
}

// Update applies apply to the first item satisfying match, in place.
func (a *Accumulator[T]) Update(match func(T) bool, apply func(*T)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.items {
		if match(a.items[i]) {
			apply(&a.items[i])
			return true
		}
	}
	return false
}

// Find returns a copy of the first item satisfying match.
func (a *Accumulator[T]) Find(match func(T) bool) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, item := range a.items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (a *Accumulator[T]) containsLocked(item T) bool {
	key := a.keyOf(item)
	for _, existing := range a.items {
		if a.keyOf(existing) == key {
			return true
		}
	}
	return false
}

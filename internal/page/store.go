package page

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
)

var (
	ErrPageNotFound    = errors.New("page not found")
	ErrInvalidCategory = errors.New("invalid category")
)

// Store holds the session's pages in insertion order.
//
// Readers load an immutable snapshot; every write builds a new slice and
// publishes it with a single pointer swap, so a reader never observes a page
// half-way through an update.
type Store struct {
	mu    sync.Mutex // serializes writers
	pages atomic.Pointer[[]Page]
}

func NewStore() *Store {
	s := &Store{}
	empty := []Page{}
	s.pages.Store(&empty)
	return s
}

func (s *Store) snapshot() []Page { return *s.pages.Load() }

func (s *Store) publish(next []Page) { s.pages.Store(&next) }

// Append adds pages to the end of the collection.
func (s *Store) Append(pages ...Page) {
	if len(pages) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snapshot()
	next := make([]Page, 0, len(cur)+len(pages))
	next = append(next, cur...)
	next = append(next, pages...)
	s.publish(next)
}

// MergeByID applies classification results and clears IsClassifying on each
// matched page. Results for unknown ids are dropped. Returns how many applied.
func (s *Store) MergeByID(results ...Result) int {
	if len(results) == 0 {
		return 0
	}
	byID := make(map[string]Label, len(results))
	for _, r := range results {
		byID[r.ID] = r.Label
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snapshot()
	applied := 0
	var next []Page
	for i, p := range cur {
		l, ok := byID[p.ID]
		if !ok {
			continue
		}
		if next == nil {
			next = slices.Clone(cur)
		}
		next[i].Category = l.Category
		next[i].SubCategory = l.SubCategory
		next[i].IsClassifying = false
		applied++
	}
	if next != nil {
		s.publish(next)
	}
	return applied
}

// UpdateByID applies a user edit to a single page.
func (s *Store) UpdateByID(id string, e Edit) (Page, error) {
	if e.Category != nil && !e.Category.Valid() {
		return Page{}, ErrInvalidCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snapshot()
	i := slices.IndexFunc(cur, func(p Page) bool { return p.ID == id })
	if i < 0 {
		return Page{}, ErrPageNotFound
	}
	next := slices.Clone(cur)
	if e.Category != nil {
		next[i].Category = *e.Category
	}
	if e.SubCategory != nil {
		next[i].SubCategory = *e.SubCategory
	}
	s.publish(next)
	return next[i], nil
}

// Remove drops the pages with the given ids and returns how many were removed.
func (s *Store) Remove(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snapshot()
	next := make([]Page, 0, len(cur))
	for _, p := range cur {
		if _, ok := drop[p.ID]; !ok {
			next = append(next, p)
		}
	}
	removed := len(cur) - len(next)
	if removed > 0 {
		s.publish(next)
	}
	return removed
}

// Clear empties the store. Late merges against the old pages become no-ops.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish([]Page{})
}

// All returns a copy of the current snapshot.
func (s *Store) All() []Page { return slices.Clone(s.snapshot()) }

func (s *Store) Len() int { return len(s.snapshot()) }

func (s *Store) Get(id string) (Page, bool) {
	for _, p := range s.snapshot() {
		if p.ID == id {
			return p, true
		}
	}
	return Page{}, false
}

// ByCategory returns the pages currently labelled c, in store order.
func (s *Store) ByCategory(c Category) []Page {
	var out []Page
	for _, p := range s.snapshot() {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

// Selected returns the pages whose ids are in ids, in store order.
// Unknown ids are ignored.
func (s *Store) Selected(ids []string) []Page {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Page
	for _, p := range s.snapshot() {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Pending reports how many pages still wait for a classification result.
func (s *Store) Pending() int {
	n := 0
	for _, p := range s.snapshot() {
		if p.IsClassifying {
			n++
		}
	}
	return n
}

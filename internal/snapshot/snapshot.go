// Package snapshot memoizes the most recent value fetched per key and drops
// responses that were started before a newer fetch of the same key completed.
package snapshot

import "sync"

type Ticket struct {
	key string
	gen uint64
}

type entry[T any] struct {
	issued    uint64
	committed uint64
	value     T
	has       bool
}

type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
}

func New[T any]() *Store[T] {
	return &Store[T]{entries: make(map[string]*entry[T])}
}

// Begin is called before a fetch for key starts.
func (s *Store[T]) Begin(key string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	e.issued++
	return Ticket{key: key, gen: e.issued}
}

// Commit stores v unless a fetch started later has already committed. It
// returns the value now held for the key and whether v was kept. A dropped v
// is handed back when the held value was forgotten.
func (s *Store[T]) Commit(t Ticket, v T) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(t.key)
	if t.gen <= e.committed {
		if !e.has {
			return v, false
		}
		return e.value, false
	}
	e.committed = t.gen
	e.value = v
	e.has = true
	return v, true
}

// Get returns the value held for key, if any.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.has {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Forget drops the value held for key. Generation counters survive, so a
// fetch begun before Forget still loses to any fetch begun after it.
func (s *Store[T]) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return
	}
	var zero T
	e.value = zero
	e.has = false
}

func (s *Store[T]) entry(key string) *entry[T] {
	e, ok := s.entries[key]
	if !ok {
		e = &entry[T]{}
		s.entries[key] = e
	}
	return e
}

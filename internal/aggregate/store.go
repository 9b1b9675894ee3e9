package aggregate

import (
	"sync"
	"time"

	"daycal/internal/model"
)

// Entry is one cached fetch result. Entries are never mutated after they
// are stored; a refresh builds a new Entry and swaps it in.
type Entry struct {
	Key string
	// FetchedAt is the time of the last successful fetch, zero if there never was one.
	FetchedAt time.Time
	Range     model.Range
	Events    []model.Event

	// LastError is the most recent fetch failure since FetchedAt.
	LastError error
	FailedAt  time.Time
	// Failures counts consecutive failed refreshes.
	Failures int
}

func (e *Entry) HasData() bool {
	return e != nil && !e.FetchedAt.IsZero()
}

// Store holds entries by key. Swap replaces the entry pointer atomically.
type Store interface {
	Load(key string) *Entry
	Swap(key string, e *Entry) (old *Entry)
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Load(key string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key]
}

func (s *MemoryStore) Swap(key string, e *Entry) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.entries[key]
	s.entries[key] = e
	return old
}

// Len reports the number of cached keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// AngelaMos | 2026
// memory.go

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. One mutex covers the whole
// map so a check-and-increment never interleaves with another on any key.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Hit(
	_ context.Context,
	key string,
	now time.Time,
	window time.Duration,
	maxRequests int,
) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.Expired(now) {
		entry = &Entry{Count: 1, ResetAt: now.Add(window)}
		s.entries[key] = entry
		return *entry, true, nil
	}

	if entry.Count >= maxRequests {
		return *entry, false, nil
	}

	entry.Count++
	return *entry, true, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries), nil
}

var _ Store = (*MemoryStore)(nil)

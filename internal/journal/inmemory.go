package journal

import (
	"context"
	"sync"
)

const defaultInMemoryCap = 500

// InMemoryStore keeps the newest entries of each session in process memory.
type InMemoryStore struct {
	mu         sync.RWMutex
	perSession int
	entries    map[string][]Entry
}

// NewInMemoryStore keeps at most perSession entries per session; zero means 500.
func NewInMemoryStore(perSession int) *InMemoryStore {
	if perSession <= 0 {
		perSession = defaultInMemoryCap
	}
	return &InMemoryStore{perSession: perSession, entries: make(map[string][]Entry)}
}

func (s *InMemoryStore) Record(_ context.Context, entry Entry) error {
	entry = prepare(entry)
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.entries[entry.SessionID], entry)
	if over := len(list) - s.perSession; over > 0 {
		list = append([]Entry(nil), list[over:]...)
	}
	s.entries[entry.SessionID] = list
	return nil
}

// Recent returns up to limit of the newest entries, oldest first.
func (s *InMemoryStore) Recent(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.entries[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Entry, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process for local runs and tests. Expired entries stay until Purge.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Claim(_ context.Context, key string, claim Entry, now time.Time) (Outcome, Entry, error) {
	id := hashKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[id]; ok && existing.live(now) {
		return outcomeOf(existing, claim.Fingerprint)
	}
	claim.Finished = false
	s.entries[id] = claim
	return Claimed, claim, nil
}

func (s *MemoryStore) Finish(_ context.Context, key string, done Entry) error {
	id := hashKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[id]; ok && existing.Fingerprint != done.Fingerprint {
		return ErrKeyReused
	}
	done.Finished = true
	done.Body = append([]byte(nil), done.Body...)
	s.entries[id] = done
	return nil
}

func (s *MemoryStore) Forget(_ context.Context, key, fingerprint string) error {
	id := hashKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[id]; ok && existing.Fingerprint == fingerprint {
		delete(s.entries, id)
	}
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, entry := range s.entries {
		if limit > 0 && purged == limit {
			break
		}
		if !entry.live(now) {
			delete(s.entries, id)
			purged++
		}
	}
	return purged, nil
}

// Len counts stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

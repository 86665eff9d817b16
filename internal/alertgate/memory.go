package alertgate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const sweepEvery = time.Minute

// MemoryStore is an in-process KeyStore. Expired keys are dropped on a
// periodic sweep, and when maxKeys is set the entry closest to expiry is
// evicted to make room.
type MemoryStore struct {
	mu        sync.Mutex
	keys      map[string]time.Time // key → expiry
	maxKeys   int
	lastSweep time.Time

	// OnEvict is called with the number of expired keys removed by a
	// sweep (optional).
	OnEvict func(n int)

	// OnCapEvict is called when the size cap forces out a key that has not
	// expired; that key's bar can alert again (optional).
	OnCapEvict func(key string)
}

// NewMemoryStore creates a store; maxKeys <= 0 means no cap.
func NewMemoryStore(maxKeys int) *MemoryStore {
	return &MemoryStore{
		keys:    make(map[string]time.Time, 256),
		maxKeys: maxKeys,
	}
}

func (s *MemoryStore) MarkOnce(_ context.Context, key string, now, expireAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= sweepEvery {
		s.sweep(now)
	}
	if exp, ok := s.keys[key]; ok && exp.After(now) {
		return false, nil
	}
	if s.maxKeys > 0 && len(s.keys) >= s.maxKeys {
		s.sweep(now)
		if len(s.keys) >= s.maxKeys {
			s.evictOldest(now)
		}
	}
	s.keys[key] = expireAt
	return true, nil
}

// Len returns the number of keys held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// sweep drops expired keys. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	s.lastSweep = now
	removed := 0
	for k, exp := range s.keys {
		if !exp.After(now) {
			delete(s.keys, k)
			removed++
		}
	}
	if removed > 0 && s.OnEvict != nil {
		s.OnEvict(removed)
	}
}

// evictOldest drops the key with the earliest expiry. Every key is live
// at this point, the caller having just swept. Caller holds mu.
func (s *MemoryStore) evictOldest(now time.Time) {
	var oldest string
	var oldestExp time.Time
	for k, exp := range s.keys {
		if oldest == "" || exp.Before(oldestExp) {
			oldest, oldestExp = k, exp
		}
	}
	if oldest == "" {
		return
	}
	delete(s.keys, oldest)
	log.Warn().
		Str("component", "alertgate").
		Str("key", oldest).
		Dur("ttl_left", oldestExp.Sub(now)).
		Int("max_keys", s.maxKeys).
		Msg("gate store full, evicted a live key; raise GATE_MAX_KEYS")
	if s.OnCapEvict != nil {
		s.OnCapEvict(oldest)
	}
}

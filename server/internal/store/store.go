package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xrbridge/xrbridge/pkg/types"
)

// userEntry is a user record together with the time it was last written.
type userEntry struct {
	record    types.UserRecord
	updatedAt time.Time
}

// Store is the thread-safe shared state of one relay process.
type Store struct {
	mu          sync.RWMutex
	coords      types.Coordinates
	buttonIndex int
	code        types.CodePair
	users       map[string]*userEntry
	seq         Sequences

	ttl time.Duration
	now func() time.Time // injectable for deterministic tests

	obsMu     sync.RWMutex
	observers []func(Event)
}

// New creates a Store with default values. A positive userTTL enables
// eviction of user records that have not been refreshed within that window
// (see Run); zero keeps them forever.
func New(userTTL time.Duration) *Store {
	return &Store{
		buttonIndex: types.NoButton,
		code:        types.DefaultCode,
		users:       make(map[string]*userEntry),
		ttl:         userTTL,
		now:         time.Now,
	}
}

// Coordinates returns the latest normalized pointer coordinates.
func (s *Store) Coordinates() types.Coordinates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coords
}

// SetCoordinates overwrites the pointer coordinates unconditionally.
func (s *Store) SetCoordinates(x, y float64) {
	s.mu.Lock()
	s.coords = types.Coordinates{X: x, Y: y}
	s.mu.Unlock()
}

// ButtonIndex returns the last reported button index, or types.NoButton.
func (s *Store) ButtonIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buttonIndex
}

// SetButtonIndex overwrites the standalone button index.
func (s *Store) SetButtonIndex(i int) {
	s.mu.Lock()
	s.buttonIndex = i
	s.mu.Unlock()
}

// Code returns the current code pair.
func (s *Store) Code() types.CodePair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// SetCode overwrites the code pair without touching any sequence counter.
func (s *Store) SetCode(c types.CodePair) {
	s.mu.Lock()
	s.code = c
	s.mu.Unlock()
}

// PutUser replaces the record for id. Previous fields are not merged.
func (s *Store) PutUser(id string, rec types.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &userEntry{record: rec, updatedAt: s.now()}
}

// User returns the record for id and whether it was found.
func (s *Store) User(id string) (types.UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[id]
	if !ok {
		return types.UserRecord{}, false
	}
	return e.record, true
}

// Users returns a copy of every known user record keyed by user id.
func (s *Store) Users() map[string]types.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.UserRecord, len(s.users))
	for id, e := range s.users {
		out[id] = e.record
	}
	return out
}

// UserCount returns the number of user records currently held.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Evict removes user records whose last update is older than now minus the
// TTL and returns how many were removed. It is a no-op when the TTL is zero.
func (s *Store) Evict(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.users {
		if !e.updatedAt.After(cutoff) {
			delete(s.users, id)
			removed++
		}
	}
	return removed
}

// Run starts the background user eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled. With a zero TTL it
// returns immediately.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale users", "count", n)
			}
		}
	}
}

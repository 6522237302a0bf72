package track

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/feastline/feastline/pkg/types"
)

// Position is a driver location together with the time it was last reported.
type Position struct {
	Location  types.LatLng
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory map of last-known driver positions,
// keyed by driver id. A background goroutine (Run) periodically evicts
// entries that have not been updated within the configured TTL, so a driver
// that stops reporting disappears from the read path instead of showing a
// frozen position forever.
type Store struct {
	mu   sync.RWMutex
	data map[int64]*Position
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[int64]*Position),
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the configured retention window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put stores or replaces the position for driverID.
func (s *Store) Put(driverID int64, loc types.LatLng) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[driverID] = &Position{
		Location:  loc,
		UpdatedAt: s.now(),
	}
}

// Get returns the position for driverID and a boolean indicating whether one
// was found. Entries older than the TTL are treated as not found.
func (s *Store) Get(driverID int64) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[driverID]
	if !ok {
		return Position{}, false
	}
	if !p.UpdatedAt.After(s.now().Add(-s.ttl)) {
		return Position{}, false
	}
	return *p, true
}

// Count returns the total number of entries currently held, including stale
// ones not yet evicted.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, p := range s.data {
		if !p.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) so entries are evicted promptly. Run blocks
// until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
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
				slog.Debug("track: evicted stale driver positions", "count", n)
			}
		}
	}
}

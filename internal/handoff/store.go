// Package handoff hands analysis results from the analyze call to the
// result fetch through single-use tokens with a bounded lifetime.
package handoff

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saistats/internal/faults"
	"saistats/internal/table"
)

const (
	// DefaultTTL bounds how long an unclaimed result stays readable.
	DefaultTTL = 5 * time.Minute
	// maxEntries caps the store; issuing beyond it evicts the oldest
	// unclaimed result.
	maxEntries = 1000
)

type entry struct {
	result *table.Table
	issued time.Time
}

// Store is a mutex-guarded in-memory token store. Tokens are opaque
// UUIDs; a result is removed on first consume, on expiry at read time,
// or by the background sweeper.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	log     *zap.Logger

	now func() time.Time

	sweepOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
}

// NewStore returns an empty store. A non-positive ttl falls back to
// DefaultTTL.
func NewStore(ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		entries: map[string]entry{},
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Issue validates the result and stores it under a fresh token.
func (s *Store) Issue(result *table.Table) (string, error) {
	if err := result.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= maxEntries {
		s.evictOldestLocked()
	}
	token := uuid.NewString()
	s.entries[token] = entry{result: result, issued: s.now()}
	s.log.Debug("result stored", zap.String("token", token), zap.Int("held", len(s.entries)))
	return token, nil
}

// Consume removes and returns the result for token. Unknown and
// already-consumed tokens are indistinguishable. Expiry is checked at
// read time, so a sweep is not needed for correctness.
func (s *Store) Consume(token string) (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return nil, faults.New(faults.HandoffFailure, faults.CodeTokenNotFound,
			"no result for token %s", token)
	}
	delete(s.entries, token)
	if s.now().Sub(e.issued) > s.ttl {
		return nil, faults.New(faults.HandoffFailure, faults.CodeTokenExpired,
			"result for token %s expired", token)
	}
	return e.result, nil
}

// Len reports the number of unclaimed results.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for token, e := range s.entries {
		if e.issued.Before(cutoff) {
			delete(s.entries, token)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug("swept expired results", zap.Int("removed", removed), zap.Int("held", len(s.entries)))
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until Close.
func (s *Store) StartSweeper(interval time.Duration) {
	s.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.Sweep()
				case <-s.stop:
					return
				}
			}
		}()
	})
}

// Close stops the sweeper. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Store) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for token, e := range s.entries {
		if oldest == "" || e.issued.Before(oldestAt) {
			oldest = token
			oldestAt = e.issued
		}
	}
	if oldest != "" {
		delete(s.entries, oldest)
		s.log.Warn("store full, evicted oldest result", zap.String("token", oldest))
	}
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore is the default Store: a thread-safe in-memory map with TTL.
// Payloads are stored as JSON so cached data round-trips identically to a
// durable backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	nowFn   func() time.Time
	logger  *zap.Logger
}

type memoryEntry struct {
	data      []byte
	fetchedAt time.Time
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the store's clock. Intended for tests that need to
// move time past an entry's expiry without sleeping.
func WithClock(nowFn func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.nowFn = nowFn
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger, opts ...MemoryOption) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		nowFn:   time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Store. Expired entries are misses; they are left in
// place for the cleanup loop rather than deleted under a read lock.
func (s *MemoryStore) Get(_ context.Context, key string, dest any) (Entry, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || s.nowFn().After(entry.expiresAt) {
		return Entry{}, false, nil
	}

	if dest != nil {
		if err := json.Unmarshal(entry.data, dest); err != nil {
			return Entry{}, false, fmt.Errorf("unmarshal cached payload for %q: %w", key, err)
		}
	}

	return Entry{Key: key, FetchedAt: entry.fetchedAt, ExpiresAt: entry.expiresAt}, true, nil
}

// Put implements Store as a create-or-replace.
func (s *MemoryStore) Put(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal payload for %q: %w", key, err)
	}

	now := s.nowFn()
	s.mu.Lock()
	s.entries[key] = &memoryEntry{
		data:      data,
		fetchedAt: now,
		expiresAt: now.Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

// Stats implements StatsProvider.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.nowFn()
	stats := Stats{TotalEntries: len(s.entries)}
	for _, entry := range s.entries {
		if now.After(entry.expiresAt) {
			stats.StaleEntries++
		} else {
			stats.FreshEntries++
		}
	}
	return stats, nil
}

// CleanupStale removes expired entries and returns how many were dropped.
func (s *MemoryStore) CleanupStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// StartPeriodicCleanup runs CleanupStale on the given interval until the
// context is cancelled.
func (s *MemoryStore) StartPeriodicCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.CleanupStale(); removed > 0 {
					s.logger.Debug("cache cleanup removed stale entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

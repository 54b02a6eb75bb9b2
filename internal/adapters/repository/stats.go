package repository

import (
	"context"
	"sync"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// StatsStore materializes per-user UserStats documents.
type StatsStore struct {
	mu    sync.RWMutex
	stats map[string]*model.UserStats
}

// NewStatsStore constructs an empty stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{
		stats: make(map[string]*model.UserStats),
	}
}

// Apply runs mutate against the user's stats document, creating it on first
// write, and returns the resulting snapshot. The partitioning scheme
// guarantees a single writer per user; the lock protects readers.
func (s *StatsStore) Apply(ctx context.Context, userID string, mutate func(*model.UserStats)) (model.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.stats[userID]
	if !ok {
		doc = &model.UserStats{UserID: userID}
		s.stats[userID] = doc
	}
	mutate(doc)
	return *doc, nil
}

// Get returns a user's stats snapshot. ErrNotFound for users the engine has
// never materialized.
func (s *StatsStore) Get(ctx context.Context, userID string) (model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.stats[userID]
	if !ok {
		return model.UserStats{}, ErrNotFound
	}
	return *doc, nil
}

// All returns a snapshot of every user's stats, for leaderboard rebuilds and
// sweep scheduling.
func (s *StatsStore) All(ctx context.Context) []model.UserStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.UserStats, 0, len(s.stats))
	for _, doc := range s.stats {
		out = append(out, *doc)
	}
	return out
}

// ReplaceUser atomically swaps a user's stats document (reconciliation path).
func (s *StatsStore) ReplaceUser(ctx context.Context, userID string, stats model.UserStats) error {
	stats.UserID = userID

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[userID] = &stats
	return nil
}

// UserCount returns the number of users with materialized stats.
func (s *StatsStore) UserCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stats)
}

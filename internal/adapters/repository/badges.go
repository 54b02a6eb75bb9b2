package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// BadgeStore materializes per-user badge awards. The one write primitive is a
// uniqueness-enforced insert, which makes double-awarding impossible even
// under concurrent evaluator invocations for the same user.
type BadgeStore struct {
	mu     sync.RWMutex
	awards map[string]map[string]model.BadgeAward // userID -> badgeID -> award
}

// NewBadgeStore constructs an empty badge store.
func NewBadgeStore() *BadgeStore {
	return &BadgeStore{
		awards: make(map[string]map[string]model.BadgeAward),
	}
}

// AwardOnce inserts a (user, badge) award if absent. Returns true when this
// call created the award, false when it already existed.
func (s *BadgeStore) AwardOnce(ctx context.Context, userID, badgeID string, earnedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byBadge, ok := s.awards[userID]
	if !ok {
		byBadge = make(map[string]model.BadgeAward)
		s.awards[userID] = byBadge
	}
	if _, exists := byBadge[badgeID]; exists {
		return false, nil
	}
	byBadge[badgeID] = model.BadgeAward{
		UserID:   userID,
		BadgeID:  badgeID,
		EarnedAt: earnedAt,
	}
	return true, nil
}

// Awards returns a user's badge awards ordered by badge id for deterministic
// reads.
func (s *BadgeStore) Awards(ctx context.Context, userID string) []model.BadgeAward {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byBadge := s.awards[userID]
	out := make([]model.BadgeAward, 0, len(byBadge))
	for _, award := range byBadge {
		out = append(out, award)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BadgeID < out[j].BadgeID
	})
	return out
}

// Has reports whether a (user, badge) award exists.
func (s *BadgeStore) Has(ctx context.Context, userID, badgeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.awards[userID][badgeID]
	return exists
}

// CountFor returns the number of badges a user holds.
func (s *BadgeStore) CountFor(ctx context.Context, userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.awards[userID])
}

// ReplaceUser atomically swaps a user's award set (reconciliation path).
// Existing awards are immutable, so reconciliation only ever re-derives the
// same set or widens it.
func (s *BadgeStore) ReplaceUser(ctx context.Context, userID string, awards []model.BadgeAward) error {
	byBadge := make(map[string]model.BadgeAward, len(awards))
	for _, award := range awards {
		award.UserID = userID
		byBadge[award.BadgeID] = award
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(byBadge) == 0 {
		delete(s.awards, userID)
		return nil
	}
	s.awards[userID] = byBadge
	return nil
}

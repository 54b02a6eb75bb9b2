// Package repository holds the per-user materialized aggregate stores. Only
// the incremental updater and the reconciler write them; everything else
// reads. Write serialization per user comes from event partitioning, so the
// locks here only guard concurrent readers.
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// DexStore materializes each user's ScubaDex: one entry per species with
// surviving evidence. An entry exists if and only if its evidence set is
// non-empty; entries are deleted, not zeroed, when the last tag goes away.
type DexStore struct {
	mu    sync.RWMutex
	users map[string]map[string]*model.ScubaDexEntry // userID -> speciesID -> entry
}

// NewDexStore constructs an empty ScubaDex store.
func NewDexStore() *DexStore {
	return &DexStore{
		users: make(map[string]map[string]*model.ScubaDexEntry),
	}
}

// AddEvidence records a surviving species-tag: creates the entry on first
// evidence, otherwise unions the media id into the evidence set (idempotent).
// Returns true when a new entry was created.
func (s *DexStore) AddEvidence(ctx context.Context, userID, speciesID, mediaID string, seenAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.users[userID]
	if !ok {
		entries = make(map[string]*model.ScubaDexEntry)
		s.users[userID] = entries
	}

	entry, ok := entries[speciesID]
	if !ok {
		entries[speciesID] = &model.ScubaDexEntry{
			SpeciesID:        speciesID,
			FirstSeenAt:      seenAt,
			EvidenceMediaIDs: map[string]struct{}{mediaID: {}},
		}
		return true, nil
	}

	entry.EvidenceMediaIDs[mediaID] = struct{}{}
	return false, nil
}

// RemoveEvidence drops one media id from a species' evidence set and deletes
// the entry when the set becomes empty. Returns true when the entry was
// deleted. Unknown users, species, or media ids are no-ops: remove is
// commutative with add under at-least-once delivery.
func (s *DexStore) RemoveEvidence(ctx context.Context, userID, speciesID, mediaID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	entry, ok := entries[speciesID]
	if !ok {
		return false, nil
	}

	delete(entry.EvidenceMediaIDs, mediaID)
	if len(entry.EvidenceMediaIDs) == 0 {
		delete(entries, speciesID)
		if len(entries) == 0 {
			delete(s.users, userID)
		}
		return true, nil
	}
	return false, nil
}

// RemoveMediaEverywhere drops a deleted media id from every species entry of
// one user. Returns the number of entries deleted outright.
func (s *DexStore) RemoveMediaEverywhere(ctx context.Context, userID, mediaID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.users[userID]
	if !ok {
		return 0, nil
	}

	deleted := 0
	for speciesID, entry := range entries {
		if _, had := entry.EvidenceMediaIDs[mediaID]; !had {
			continue
		}
		delete(entry.EvidenceMediaIDs, mediaID)
		if len(entry.EvidenceMediaIDs) == 0 {
			delete(entries, speciesID)
			deleted++
		}
	}
	if len(entries) == 0 {
		delete(s.users, userID)
	}
	return deleted, nil
}

// Entries returns deep copies of a user's ScubaDex entries ordered by species
// id for deterministic reads.
func (s *DexStore) Entries(ctx context.Context, userID string) []*model.ScubaDexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.users[userID]
	out := make([]*model.ScubaDexEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SpeciesID < out[j].SpeciesID
	})
	return out
}

// SpeciesCount returns the cardinality of a user's ScubaDex entry set.
func (s *DexStore) SpeciesCount(ctx context.Context, userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID])
}

// ReplaceUser atomically swaps a user's entire entry set. This is the
// reconciliation path; incremental folds never call it.
func (s *DexStore) ReplaceUser(ctx context.Context, userID string, entries map[string]*model.ScubaDexEntry) error {
	clone := make(map[string]*model.ScubaDexEntry, len(entries))
	for speciesID, entry := range entries {
		clone[speciesID] = entry.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(clone) == 0 {
		delete(s.users, userID)
		return nil
	}
	s.users[userID] = clone
	return nil
}

// UserCount returns the number of users with at least one entry.
func (s *DexStore) UserCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

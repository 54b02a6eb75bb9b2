package source

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryReader is an in-process Reader used when no primary store is
// configured (local development, the event simulator, and tests). Mutators
// mirror the writes the real application would perform, so reconciliation
// behaves the same against either implementation.
type MemoryReader struct {
	mu          sync.RWMutex
	dives       map[string][]DiveRow       // userID -> rows
	media       map[string][]MediaRow      // userID -> rows
	tags        map[string][]SpeciesTagRow // userID -> rows
	catalogSize int
}

// NewMemoryReader creates an empty in-memory primary store.
func NewMemoryReader(catalogSize int) *MemoryReader {
	return &MemoryReader{
		dives:       make(map[string][]DiveRow),
		media:       make(map[string][]MediaRow),
		tags:        make(map[string][]SpeciesTagRow),
		catalogSize: catalogSize,
	}
}

// AddDive inserts a live dive row.
func (m *MemoryReader) AddDive(userID string, row DiveRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dives[userID] = append(m.dives[userID], row)
}

// DeleteDive soft-deletes a dive row.
func (m *MemoryReader) DeleteDive(userID, diveID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.dives[userID]
	for i := range rows {
		if rows[i].ID == diveID && rows[i].DeletedAt == nil {
			t := at
			rows[i].DeletedAt = &t
		}
	}
}

// AddMedia inserts a live media row.
func (m *MemoryReader) AddMedia(userID string, row MediaRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[userID] = append(m.media[userID], row)
}

// DeleteMedia soft-deletes a media row.
func (m *MemoryReader) DeleteMedia(userID, mediaID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.media[userID]
	for i := range rows {
		if rows[i].ID == mediaID && rows[i].DeletedAt == nil {
			t := at
			rows[i].DeletedAt = &t
		}
	}
}

// AddTag inserts a live species-tag row.
func (m *MemoryReader) AddTag(userID string, row SpeciesTagRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[userID] = append(m.tags[userID], row)
}

// RemoveTag soft-deletes a species-tag row.
func (m *MemoryReader) RemoveTag(userID, mediaID, speciesID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tags[userID]
	for i := range rows {
		if rows[i].MediaID == mediaID && rows[i].SpeciesID == speciesID && rows[i].DeletedAt == nil {
			t := at
			rows[i].DeletedAt = &t
		}
	}
}

// UserSnapshot returns a copy of one user's rows under a single lock
// acquisition, which gives the same consistency as a snapshot read.
func (m *MemoryReader) UserSnapshot(_ context.Context, userID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{UserID: userID}
	snap.Dives = append(snap.Dives, m.dives[userID]...)
	snap.Media = append(snap.Media, m.media[userID]...)
	snap.Tags = append(snap.Tags, m.tags[userID]...)
	return snap, nil
}

// AllUserIDs lists every user with rows, sorted for determinism.
func (m *MemoryReader) AllUserIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for userID := range m.dives {
		seen[userID] = struct{}{}
	}
	for userID := range m.media {
		seen[userID] = struct{}{}
	}
	for userID := range m.tags {
		seen[userID] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for userID := range seen {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids, nil
}

// SpeciesCatalogSize reports the configured catalog size.
func (m *MemoryReader) SpeciesCatalogSize(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalogSize, nil
}

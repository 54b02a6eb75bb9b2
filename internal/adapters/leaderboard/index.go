// Package leaderboard maintains the derived, re-sorted views over UserStats.
// Each metric's index is an immutable snapshot swapped atomically on rebuild;
// readers never observe a partially sorted index.
package leaderboard

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"
)

// Default index configuration constants.
const (
	defaultDebounce = 500 * time.Millisecond
)

// Entry is one leaderboard row.
type Entry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"user_id"`
	Value  float64 `json:"value"`
}

// StatsSource supplies the stats documents a rebuild folds over.
type StatsSource interface {
	All(ctx context.Context) []model.UserStats
}

// snapshot is the immutable product of one rebuild.
type snapshot struct {
	entries     []Entry
	rankByUser  map[string]int
	valueByUser map[string]float64
	builtAt     time.Time
}

// Index holds one atomically-swapped snapshot per supported metric. It is
// never authoritative; staleness is bounded by the refresh debounce.
type Index struct {
	source    StatsSource
	snapshots map[model.Metric]*atomic.Pointer[snapshot]
	dirty     chan model.Metric
	debounce  time.Duration
}

// NewIndex creates an index over all supported metrics.
func NewIndex(source StatsSource, opts ...Option) *Index {
	idx := &Index{
		source:    source,
		snapshots: make(map[model.Metric]*atomic.Pointer[snapshot]),
		dirty:     make(chan model.Metric, 64),
		debounce:  defaultDebounce,
	}
	for _, opt := range opts {
		opt(idx)
	}
	for _, metric := range model.Metrics() {
		idx.snapshots[metric] = &atomic.Pointer[snapshot]{}
	}
	return idx
}

// MarkDirty schedules a debounced rebuild for a metric. Never blocks the
// caller: when the channel is full a rebuild is already pending and the
// signal is redundant.
func (idx *Index) MarkDirty(metric model.Metric) {
	select {
	case idx.dirty <- metric:
	default:
	}
}

// Run consumes dirty signals and rebuilds after the debounce window,
// coalescing bursts of stats changes into one rebuild per metric. Blocks
// until ctx is cancelled.
func (idx *Index) Run(ctx context.Context) {
	pending := make(map[model.Metric]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case metric := <-idx.dirty:
			pending[metric] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(idx.debounce)
				fire = timer.C
			}
		case <-fire:
			for metric := range pending {
				idx.Rebuild(ctx, metric)
				delete(pending, metric)
			}
			timer = nil
			fire = nil
		}
	}
}

// Rebuild re-reads all UserStats for a metric and publishes a fresh snapshot.
func (idx *Index) Rebuild(ctx context.Context, metric model.Metric) {
	start := time.Now()

	stats := idx.source.All(ctx)
	entries := make([]Entry, 0, len(stats))
	valueByUser := make(map[string]float64, len(stats))
	for _, st := range stats {
		v := metric.Value(st)
		entries = append(entries, Entry{UserID: st.UserID, Value: v})
		valueByUser[st.UserID] = v
	}

	sortEntries(entries)
	assignRanksWithTies(entries)

	rankByUser := make(map[string]int, len(entries))
	for _, e := range entries {
		rankByUser[e.UserID] = e.Rank
	}

	idx.snapshots[metric].Store(&snapshot{
		entries:     entries,
		rankByUser:  rankByUser,
		valueByUser: valueByUser,
		builtAt:     time.Now(),
	})

	ms := float64(time.Since(start).Milliseconds())
	metrics.RecordLeaderboardRebuild(string(metric))
	metrics.RecordLeaderboardRebuildDuration(ms)
}

// load returns the current snapshot, building one synchronously on first
// read so cold starts do not serve empty boards forever.
func (idx *Index) load(ctx context.Context, metric model.Metric) (*snapshot, error) {
	ptr, ok := idx.snapshots[metric]
	if !ok {
		return nil, ErrUnknownMetric
	}
	if snap := ptr.Load(); snap != nil {
		return snap, nil
	}
	idx.Rebuild(ctx, metric)
	return ptr.Load(), nil
}

// Top returns the top-N rows for a metric.
func (idx *Index) Top(ctx context.Context, metric model.Metric, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	snap, err := idx.load(ctx, metric)
	if err != nil {
		return nil, err
	}
	if n > len(snap.entries) {
		n = len(snap.entries)
	}
	out := make([]Entry, n)
	copy(out, snap.entries[:n])
	return out, nil
}

// Rank returns one user's row for a metric.
func (idx *Index) Rank(ctx context.Context, metric model.Metric, userID string) (Entry, error) {
	snap, err := idx.load(ctx, metric)
	if err != nil {
		return Entry{}, err
	}
	rank, ok := snap.rankByUser[userID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: rank, UserID: userID, Value: snap.valueByUser[userID]}, nil
}

// TopScoped computes a friend-restricted board on read from the global
// snapshot plus the caller-supplied friend set. Friend boards are never
// materialized: the friend graph is too combinatorial to cache per group.
func (idx *Index) TopScoped(ctx context.Context, metric model.Metric, friendIDs []string, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	snap, err := idx.load(ctx, metric)
	if err != nil {
		return nil, err
	}

	scoped := make([]Entry, 0, len(friendIDs))
	for _, userID := range friendIDs {
		if v, ok := snap.valueByUser[userID]; ok {
			scoped = append(scoped, Entry{UserID: userID, Value: v})
		}
	}
	sortEntries(scoped)
	assignRanksWithTies(scoped)

	if n > len(scoped) {
		n = len(scoped)
	}
	return scoped[:n], nil
}

// BuiltAt reports when the metric's snapshot was last published; zero when
// no snapshot exists yet.
func (idx *Index) BuiltAt(metric model.Metric) time.Time {
	ptr, ok := idx.snapshots[metric]
	if !ok {
		return time.Time{}
	}
	if snap := ptr.Load(); snap != nil {
		return snap.builtAt
	}
	return time.Time{}
}

// sortEntries orders rows by value descending, user id ascending. The
// tie-break makes ordering total and identical across rebuilds.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// assignRanksWithTies gives equal values the same rank; the rank sequence
// stays consecutive.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameValueCount := 1
		for j := i + 1; j < len(entries) && entries[j].Value == entries[i].Value; j++ {
			entries[j].Rank = currentRank
			sameValueCount++
		}

		currentRank++
		i += sameValueCount - 1
	}
}

// Package reconcile rebuilds materialized aggregates from the primary store.
// A rebuild is the authority for resolving drift and the only path allowed to
// decrease a non-reversible aggregate such as the deepest-dive maximum.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/adapters/source"
	"github.com/reefconnect/scubadex-engine/internal/domain/model"
	"github.com/reefconnect/scubadex-engine/pkg/logger"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"
)

// Default reconciler configuration constants.
const (
	defaultSweepInterval = time.Hour
	requestBuffer        = 1024
)

// Scope names what a pass recomputes.
type Scope string

// Reconciliation scopes.
const (
	// ScopeFull rebuilds the user's ScubaDex, stats, and badge state.
	ScopeFull Scope = "full"
	// ScopeExtremes recomputes only depth and duration stats, which
	// incremental folding cannot safely decrement.
	ScopeExtremes Scope = "extremes"
)

// DexStore is the ScubaDex replacement surface.
type DexStore interface {
	ReplaceUser(ctx context.Context, userID string, entries map[string]*model.ScubaDexEntry) error
}

// StatsStore is the stats replacement surface.
type StatsStore interface {
	Apply(ctx context.Context, userID string, mutate func(*model.UserStats)) (model.UserStats, error)
	ReplaceUser(ctx context.Context, userID string, stats model.UserStats) error
}

// AwardCounter reports how many badges a user holds.
type AwardCounter interface {
	CountFor(ctx context.Context, userID string) int
}

// BadgeEvaluator re-tests badge thresholds after a rebuild.
type BadgeEvaluator interface {
	Evaluate(ctx context.Context, userID string, stats model.UserStats) (int, error)
}

// Refresher receives leaderboard refresh signals after a committed pass.
type Refresher interface {
	MarkDirty(metric model.Metric)
}

// request is one queued reconciliation demand.
type request struct {
	userID string
	scope  Scope
	seq    uint64
}

// Reconciler performs scoped and full rebuilds, asynchronously via Run or
// synchronously via Rebuild/RecomputeExtremes.
type Reconciler struct {
	source    source.Reader
	dex       DexStore
	stats     StatsStore
	awards    AwardCounter
	badges    BadgeEvaluator
	refresher Refresher

	// Per-user request sequencing. A pass commits only if no newer request
	// for the same user was issued while it ran; wall-clock time is never
	// consulted, so clock skew cannot reorder passes.
	mu      sync.Mutex
	nextSeq uint64
	latest  map[string]uint64
	commits map[string]*sync.Mutex

	requests      chan request
	sweepInterval time.Duration

	logger logger.Logger
}

// New creates a reconciler.
func New(src source.Reader, dex DexStore, stats StatsStore, awards AwardCounter, badges BadgeEvaluator, refresher Refresher, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:        src,
		dex:           dex,
		stats:         stats,
		awards:        awards,
		badges:        badges,
		refresher:     refresher,
		latest:        make(map[string]uint64),
		commits:       make(map[string]*sync.Mutex),
		requests:      make(chan request, requestBuffer),
		sweepInterval: defaultSweepInterval,
		logger:        logger.Get().Named("reconciler"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// issue registers a new request for a user and returns its sequence number.
func (r *Reconciler) issue(userID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq++
	r.latest[userID] = r.nextSeq
	return r.nextSeq
}

// superseded reports whether a newer request for the user exists.
func (r *Reconciler) superseded(userID string, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[userID] > seq
}

// commitLock returns the per-user mutex held across the supersession check
// and the aggregate swap. Without it a pass stalled between the check and
// the swap could land its stale fold after a newer pass already committed.
func (r *Reconciler) commitLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.commits[userID]
	if !ok {
		l = &sync.Mutex{}
		r.commits[userID] = l
	}
	return l
}

// RequestRebuild schedules an asynchronous full rebuild. Never blocks the
// caller; a full request channel drops the signal and relies on the sweep.
func (r *Reconciler) RequestRebuild(userID string) {
	req := request{userID: userID, scope: ScopeFull, seq: r.issue(userID)}
	select {
	case r.requests <- req:
	default:
		metrics.RecordErrorByComponent("reconciler", "request_overflow")
	}
}

// RequestExtremes schedules an asynchronous scoped recompute of depth and
// duration stats.
func (r *Reconciler) RequestExtremes(userID string) {
	req := request{userID: userID, scope: ScopeExtremes, seq: r.issue(userID)}
	select {
	case r.requests <- req:
	default:
		metrics.RecordErrorByComponent("reconciler", "request_overflow")
	}
}

// Run consumes queued requests and runs the periodic sweep until ctx is
// cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.requests:
			r.runPass(ctx, req)
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep rebuilds every known user as a safety net against silently dropped
// events.
func (r *Reconciler) sweep(ctx context.Context) {
	ids, err := r.source.AllUserIDs(ctx)
	if err != nil {
		metrics.RecordReconcileFailure()
		r.logger.Error(ctx, "sweep aborted, cannot list users", logger.Error(err))
		return
	}

	r.logger.Info(ctx, "sweep started", logger.Int("users", len(ids)))
	for _, userID := range ids {
		if ctx.Err() != nil {
			return
		}
		r.runPass(ctx, request{userID: userID, scope: ScopeFull, seq: r.issue(userID)})
	}
}

// runPass executes one request end to end, honoring supersession.
func (r *Reconciler) runPass(ctx context.Context, req request) {
	start := time.Now()
	defer func() {
		metrics.RecordReconcileDuration(float64(time.Since(start).Milliseconds()))
	}()

	var err error
	switch req.scope {
	case ScopeExtremes:
		err = r.recomputeExtremes(ctx, req.userID, req.seq)
	default:
		err = r.rebuild(ctx, req.userID, req.seq)
	}

	switch {
	case err == ErrSuperseded:
		metrics.RecordReconcileSuperseded()
	case err != nil:
		metrics.RecordReconcileFailure()
		r.logger.Error(ctx, "reconciliation pass failed",
			logger.String("user_id", req.userID),
			logger.String("scope", string(req.scope)),
			logger.Error(err),
		)
	default:
		metrics.RecordReconcileRun(string(req.scope))
	}
}

// Rebuild synchronously performs a full rebuild for one user.
func (r *Reconciler) Rebuild(ctx context.Context, userID string) error {
	return r.rebuild(ctx, userID, r.issue(userID))
}

// RecomputeExtremes synchronously recomputes depth and duration stats.
func (r *Reconciler) RecomputeExtremes(ctx context.Context, userID string) error {
	return r.recomputeExtremes(ctx, userID, r.issue(userID))
}

// RebuildAll synchronously rebuilds every known user. Used by the operator
// endpoint; failures on one user do not stop the rest.
func (r *Reconciler) RebuildAll(ctx context.Context) (int, error) {
	ids, err := r.source.AllUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	rebuilt := 0
	for _, userID := range ids {
		if ctx.Err() != nil {
			return rebuilt, ctx.Err()
		}
		if err := r.Rebuild(ctx, userID); err != nil && err != ErrSuperseded {
			metrics.RecordReconcileFailure()
			r.logger.Error(ctx, "rebuild failed during full pass",
				logger.String("user_id", userID),
				logger.Error(err),
			)
			continue
		}
		rebuilt++
	}
	return rebuilt, nil
}

// rebuild recomputes one user's aggregates from a primary-store snapshot and
// atomically replaces them. A failed source read aborts with the aggregates
// untouched.
func (r *Reconciler) rebuild(ctx context.Context, userID string, seq uint64) error {
	snap, err := r.source.UserSnapshot(ctx, userID)
	if err != nil {
		return fmt.Errorf("snapshot read: %w", err)
	}

	entries, stats := fold(snap)

	lock := r.commitLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if r.superseded(userID, seq) {
		return ErrSuperseded
	}

	if err := r.dex.ReplaceUser(ctx, userID, entries); err != nil {
		return fmt.Errorf("replace scubadex: %w", err)
	}

	stats.UserID = userID
	stats.TotalBadges = r.awards.CountFor(ctx, userID)
	if err := r.stats.ReplaceUser(ctx, userID, stats); err != nil {
		return fmt.Errorf("replace stats: %w", err)
	}

	// Awards are immutable, so rebuilds never revoke; thresholds newly met
	// by repaired stats are awarded here.
	if _, err := r.badges.Evaluate(ctx, userID, stats); err != nil {
		return fmt.Errorf("badge evaluation: %w", err)
	}

	for _, metric := range model.Metrics() {
		r.refresher.MarkDirty(metric)
	}

	return nil
}

// recomputeExtremes repairs only the depth and duration stats from surviving
// dive rows, leaving every other field alone.
func (r *Reconciler) recomputeExtremes(ctx context.Context, userID string, seq uint64) error {
	snap, err := r.source.UserSnapshot(ctx, userID)
	if err != nil {
		return fmt.Errorf("snapshot read: %w", err)
	}

	var deepest float64
	var minutes int
	for _, d := range snap.Dives {
		if !d.Surviving() {
			continue
		}
		if d.MaxDepthMeters > deepest {
			deepest = d.MaxDepthMeters
		}
		minutes += d.DurationMinutes
	}

	lock := r.commitLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if r.superseded(userID, seq) {
		return ErrSuperseded
	}

	stats, err := r.stats.Apply(ctx, userID, func(s *model.UserStats) {
		s.DeepestDiveMeters = deepest
		s.TotalDiveMinutes = minutes
	})
	if err != nil {
		return fmt.Errorf("apply extremes: %w", err)
	}

	if _, err := r.badges.Evaluate(ctx, userID, stats); err != nil {
		return fmt.Errorf("badge evaluation: %w", err)
	}

	r.refresher.MarkDirty(model.MetricDeepestDiveMeters)
	r.refresher.MarkDirty(model.MetricTotalDiveMinutes)

	return nil
}

// fold derives the full aggregate state implied by one snapshot. Evidence is
// a surviving tag on a surviving media item.
func fold(snap source.Snapshot) (map[string]*model.ScubaDexEntry, model.UserStats) {
	surviving := make(map[string]struct{}, len(snap.Media))
	for _, m := range snap.Media {
		if m.Surviving() {
			surviving[m.ID] = struct{}{}
		}
	}

	entries := make(map[string]*model.ScubaDexEntry)
	for _, tag := range snap.Tags {
		if !tag.Surviving() {
			continue
		}
		if _, ok := surviving[tag.MediaID]; !ok {
			continue
		}
		entry, ok := entries[tag.SpeciesID]
		if !ok {
			entry = &model.ScubaDexEntry{
				SpeciesID:        tag.SpeciesID,
				FirstSeenAt:      tag.TaggedAt,
				EvidenceMediaIDs: make(map[string]struct{}),
			}
			entries[tag.SpeciesID] = entry
		}
		if tag.TaggedAt.Before(entry.FirstSeenAt) {
			entry.FirstSeenAt = tag.TaggedAt
		}
		entry.EvidenceMediaIDs[tag.MediaID] = struct{}{}
	}

	var stats model.UserStats
	for _, d := range snap.Dives {
		if !d.Surviving() {
			continue
		}
		stats.TotalDives++
		if d.MaxDepthMeters > stats.DeepestDiveMeters {
			stats.DeepestDiveMeters = d.MaxDepthMeters
		}
		stats.TotalDiveMinutes += d.DurationMinutes
	}
	stats.TotalMediaCount = len(surviving)
	stats.TotalSpecies = len(entries)

	return entries, stats
}

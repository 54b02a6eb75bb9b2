// Package service wires the materialization engine together and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/adapters/leaderboard"
	eventqueue "github.com/reefconnect/scubadex-engine/internal/adapters/mq/queue"
	workerpool "github.com/reefconnect/scubadex-engine/internal/adapters/mq/worker"
	"github.com/reefconnect/scubadex-engine/internal/adapters/repository"
	"github.com/reefconnect/scubadex-engine/internal/adapters/source"
	"github.com/reefconnect/scubadex-engine/internal/domain/badge"
	"github.com/reefconnect/scubadex-engine/internal/domain/event"
	"github.com/reefconnect/scubadex-engine/internal/domain/ledger"
	"github.com/reefconnect/scubadex-engine/internal/domain/model"
	"github.com/reefconnect/scubadex-engine/internal/reconcile"
	"github.com/reefconnect/scubadex-engine/pkg/logger"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"
)

// Service implements the engine behind the API: event ingestion, the
// materialized read models, and reconciliation triggers.
type Service struct {
	mu sync.RWMutex

	// Core components
	ledger     ledger.Ledger
	dex        *repository.DexStore
	stats      *repository.StatsStore
	badges     *repository.BadgeStore
	evaluator  *badge.Evaluator
	eventQueue *eventqueue.PartitionedQueue
	workerPool *workerpool.Pool
	index      *leaderboard.Index
	reconciler *reconcile.Reconciler
	reader     source.Reader

	// Configuration
	partitionCount      int
	queueSize           int
	ledgerSize          int
	badgeDefs           []badge.Definition
	leaderboardDebounce time.Duration
	retryBudget         int
	retryBackoff        time.Duration
	sweepInterval       time.Duration
	catalogSize         int
	maxLeaderboardLimit int

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithPartitionCount sets the number of queue partitions and workers.
func WithPartitionCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.partitionCount = count
		}
	}
}

// WithQueueSize sets the buffered capacity of each queue partition.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLedgerSize bounds the idempotency ledger. Must cover at least the
// transport's maximum redelivery window.
func WithLedgerSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.ledgerSize = size
		}
	}
}

// WithBadgeDefinitions sets the badge catalog.
func WithBadgeDefinitions(defs []badge.Definition) Option {
	return func(s *Service) {
		if len(defs) > 0 {
			s.badgeDefs = defs
		}
	}
}

// WithLeaderboardDebounce sets the rebuild coalescing window.
func WithLeaderboardDebounce(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.leaderboardDebounce = d
		}
	}
}

// WithRetryBudget sets how many times a failed fold is retried before the
// event is dead-lettered.
func WithRetryBudget(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.retryBudget = n
		}
	}
}

// WithRetryBackoff sets the base delay between fold retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryBackoff = d
		}
	}
}

// WithSweepInterval sets the reconciliation safety-net sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithSourceReader sets the primary-store reader used by reconciliation.
// When unset, an empty in-memory reader is used.
func WithSourceReader(r source.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.reader = r
		}
	}
}

// WithSpeciesCatalogSize sets the catalog size reported alongside ScubaDex
// reads when no primary store is configured.
func WithSpeciesCatalogSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.catalogSize = n
		}
	}
}

// WithMaxLeaderboardLimit caps the page size of leaderboard reads.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		partitionCount:      runtime.NumCPU() * 2,
		queueSize:           10000,
		ledgerSize:          500000,
		badgeDefs:           nil,
		leaderboardDebounce: 500 * time.Millisecond,
		retryBudget:         5,
		retryBackoff:        50 * time.Millisecond,
		sweepInterval:       time.Hour,
		catalogSize:         1500,
		maxLeaderboardLimit: 100,
		logger:              nil, // resolved in Start
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the engine components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("engine")
	}

	s.logger.Info(ctx, "starting materialization engine...")

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.ledger = ledger.New(ledger.WithMaxSize(s.ledgerSize))
	s.dex = repository.NewDexStore()
	s.stats = repository.NewStatsStore()
	s.badges = repository.NewBadgeStore()
	s.evaluator = badge.NewEvaluator(s.badgeDefs, s.badges, s.stats)
	s.eventQueue = eventqueue.NewPartitionedQueue(
		eventqueue.WithPartitionCount(s.partitionCount),
		eventqueue.WithPartitionBuffer(s.queueSize),
	)
	s.index = leaderboard.NewIndex(s.stats,
		leaderboard.WithDebounce(s.leaderboardDebounce),
	)
	if s.reader == nil {
		s.reader = source.NewMemoryReader(s.catalogSize)
	}
	s.reconciler = reconcile.New(s.reader, s.dex, s.stats, s.badges, s.evaluator, s.index,
		reconcile.WithSweepInterval(s.sweepInterval),
	)
	s.workerPool = workerpool.NewPool(
		s.eventQueue, s.ledger, s.dex, s.stats, s.evaluator, s.index, s.reconciler,
		workerpool.WithRetryBudget(s.retryBudget),
		workerpool.WithRetryBackoff(s.retryBackoff),
	)

	s.workerPool.Start(runCtx)
	go s.index.Run(runCtx)
	go s.reconciler.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "materialization engine started",
		logger.Int("partitions", s.partitionCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("ledgerSize", s.ledgerSize),
		logger.Int("badges", len(s.badgeDefs)),
	)

	return nil
}

// Stop gracefully shuts down the engine.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping materialization engine...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	s.logger.Info(ctx, "materialization engine stopped")
}

// Ingest decodes an inbound envelope and enqueues it for asynchronous
// processing. Returns event.ErrMalformed or event.ErrUnknownType for
// permanently unprocessable envelopes and ErrBackpressure when the partition
// is full.
func (s *Service) Ingest(ctx context.Context, env event.Envelope) error {
	e, err := event.Decode(env)
	if err != nil {
		metrics.RecordEventMalformed()
		s.logger.Warn(ctx, "rejected envelope",
			logger.String("event_id", env.EventID),
			logger.String("event_type", string(env.Type)),
			logger.Error(err),
		)
		return err
	}

	if !s.eventQueue.Enqueue(ctx, e) {
		return fmt.Errorf("%w: partition for user %s", ErrBackpressure, e.SubjectUserID)
	}

	s.logger.Debug(ctx, "event accepted",
		logger.String("event_id", e.EventID),
		logger.String("event_type", string(e.Type)),
		logger.String("user_id", e.SubjectUserID),
	)
	return nil
}

// ScubaDex returns one user's entries plus the species catalog size for
// completion display. A user with no entries gets an empty page, not an
// error.
func (s *Service) ScubaDex(ctx context.Context, userID string) ([]*model.ScubaDexEntry, int, error) {
	catalog, err := s.reader.SpeciesCatalogSize(ctx)
	if err != nil {
		s.logger.Warn(ctx, "species catalog size unavailable", logger.Error(err))
		catalog = s.catalogSize
	}

	return s.dex.Entries(ctx, userID), catalog, nil
}

// Stats returns one user's aggregate statistics. Unknown users get a zero
// document rather than an error; a diver with no events simply has no totals.
func (s *Service) Stats(ctx context.Context, userID string) (model.UserStats, error) {
	stats, err := s.stats.Get(ctx, userID)
	if err == repository.ErrNotFound {
		return model.UserStats{UserID: userID}, nil
	}
	return stats, err
}

// Badges returns one user's awards, ordered by badge id.
func (s *Service) Badges(ctx context.Context, userID string) ([]model.BadgeAward, error) {
	return s.badges.Awards(ctx, userID), nil
}

// Leaderboard reads a page of a metric's board. A non-empty friends set
// scopes the board to those users, ranked relative to each other.
func (s *Service) Leaderboard(ctx context.Context, metric model.Metric, limit int, friends []string) ([]leaderboard.Entry, error) {
	if limit > s.maxLeaderboardLimit {
		limit = s.maxLeaderboardLimit
	}
	if len(friends) > 0 {
		return s.index.TopScoped(ctx, metric, friends, limit)
	}
	return s.index.Top(ctx, metric, limit)
}

// MaxLeaderboardLimit reports the configured page-size cap.
func (s *Service) MaxLeaderboardLimit() int {
	return s.maxLeaderboardLimit
}

// Reconcile synchronously rebuilds one user's aggregates from the primary
// store.
func (s *Service) Reconcile(ctx context.Context, userID string) error {
	return s.reconciler.Rebuild(ctx, userID)
}

// ReconcileAll synchronously rebuilds every known user and reports how many
// users were processed.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	return s.reconciler.RebuildAll(ctx)
}

// GetStats returns engine statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":    s.started,
		"partitions": s.partitionCount,
		"queueSize":  s.queueSize,
		"ledgerSize": s.ledgerSize,
		"badges":     len(s.badgeDefs),
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		trackedUsers := s.stats.UserCount(ctx)

		stats["queueLength"] = queueLen
		stats["trackedUsers"] = trackedUsers
		stats["ledgerClaims"] = s.ledger.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTrackedUsers(trackedUsers)
		metrics.UpdateLedgerSize(s.ledger.Size())
	}

	return stats
}

// Package worker implements the incremental updater: per-partition consumers
// that fold events into the materialized aggregates.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/domain/event"
	"github.com/reefconnect/scubadex-engine/internal/domain/model"
	"github.com/reefconnect/scubadex-engine/pkg/logger"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetryBudget  = 5
	defaultRetryBackoff = 50 * time.Millisecond
	poolShutdownTimeout = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = event.Event

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context, partition int) <-chan Event
	Partitions() int
}

// Ledger grants at-most-once application per event/aggregate pair.
type Ledger interface {
	TryClaim(ctx context.Context, eventID string, kind model.AggregateKind, aggregateID string) bool
	Release(ctx context.Context, eventID string, kind model.AggregateKind, aggregateID string)
}

// DexStore is the ScubaDex aggregate surface the fold rules need.
type DexStore interface {
	AddEvidence(ctx context.Context, userID, speciesID, mediaID string, seenAt time.Time) (bool, error)
	RemoveEvidence(ctx context.Context, userID, speciesID, mediaID string) (bool, error)
	RemoveMediaEverywhere(ctx context.Context, userID, mediaID string) (int, error)
	SpeciesCount(ctx context.Context, userID string) int
}

// StatsStore applies a mutation to one user's stats document.
type StatsStore interface {
	Apply(ctx context.Context, userID string, mutate func(*model.UserStats)) (model.UserStats, error)
}

// BadgeEvaluator runs after every stats change that can cross a threshold.
type BadgeEvaluator interface {
	Evaluate(ctx context.Context, userID string, stats model.UserStats) (int, error)
}

// Refresher receives asynchronous leaderboard refresh signals.
type Refresher interface {
	MarkDirty(metric model.Metric)
}

// Repairer accepts repair requests for damage incremental folding cannot
// undo itself.
type Repairer interface {
	// RequestExtremes schedules a recompute of depth and duration stats.
	RequestExtremes(userID string)
	// RequestRebuild schedules a full rebuild of the user's aggregates.
	RequestRebuild(userID string)
}

// DeadLetterSink receives events that exhausted their retry budget, so an
// operator can inspect or replay them.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, e Event)
}

// Worker processes events for one partition.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker after in-flight work completes.
	Shutdown(ctx context.Context) error
}

// Updater folds one partition's events into the aggregate stores.
type Updater struct {
	queue     Queue
	partition int
	ledger    Ledger
	dex       DexStore
	stats     StatsStore
	badges    BadgeEvaluator
	refresher Refresher
	repairer  Repairer

	retryBudget  int
	retryBackoff time.Duration
	deadLetters  DeadLetterSink

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewUpdater creates a worker for one partition.
func NewUpdater(
	queue Queue,
	partition int,
	ledger Ledger,
	dex DexStore,
	stats StatsStore,
	badges BadgeEvaluator,
	refresher Refresher,
	repairer Repairer,
	opts ...Option,
) *Updater {
	w := &Updater{
		queue:        queue,
		partition:    partition,
		ledger:       ledger,
		dex:          dex,
		stats:        stats,
		badges:       badges,
		refresher:    refresher,
		repairer:     repairer,
		retryBudget:  defaultRetryBudget,
		retryBackoff: defaultRetryBackoff,
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Get().Named("updater-" + strconv.Itoa(partition)),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop.
func (w *Updater) Run(ctx context.Context) {
	defer close(w.done)

	eventChan := w.queue.Dequeue(ctx, w.partition)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-eventChan:
			if !ok {
				return
			}
			w.processWithRetry(ctx, e)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Updater) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processWithRetry drives one event through the fold, retrying store failures
// with backoff. Events that exhaust the budget are dead-lettered: handed to
// the sink, and a full rebuild is scheduled so the lost fold is repaired
// from the primary store without wedging the partition.
func (w *Updater) processWithRetry(ctx context.Context, e Event) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	var err error
	for attempt := 0; attempt <= w.retryBudget; attempt++ {
		if attempt > 0 {
			metrics.RecordWorkerRetry()
			select {
			case <-time.After(w.retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return
			}
		}

		err = w.processEvent(ctx, e)
		if err == nil {
			return
		}
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "event fold failed",
			logger.String("event_id", e.EventID),
			logger.String("event_type", string(e.Type)),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}

	metrics.RecordEventDeadLetter()
	metrics.RecordErrorByComponent("updater", "dead_letter")
	w.logger.Error(ctx, "event dead-lettered after retry budget",
		logger.String("event_id", e.EventID),
		logger.String("user_id", e.SubjectUserID),
		logger.Error(err),
	)

	if w.deadLetters != nil {
		w.deadLetters.DeadLetter(ctx, e)
	}

	// The dropped fold left the aggregates behind the primary store; a
	// rebuild reads the rows the event described, so nothing stays lost
	// until the sweep.
	w.repairer.RequestRebuild(e.SubjectUserID)
}

// processEvent applies one event's fold rules. Each aggregate mutation is
// gated by its own idempotency claim, so redelivery after a crash between
// aggregate updates resumes exactly where it stopped.
func (w *Updater) processEvent(ctx context.Context, e Event) error {
	foldStart := time.Now()
	defer func() {
		metrics.RecordFoldLatency(float64(time.Since(foldStart).Milliseconds()))
	}()

	var err error
	switch p := e.Payload.(type) {
	case event.DiveCreatedPayload:
		err = w.applyDiveCreated(ctx, e, p)
	case event.DiveDeletedPayload:
		err = w.applyDiveDeleted(ctx, e)
	case event.MediaDeletedPayload:
		err = w.applyMediaDeleted(ctx, e, p)
	case event.SpeciesTaggedPayload:
		err = w.applySpeciesTagged(ctx, e, p)
	case event.SpeciesTagRemovedPayload:
		err = w.applySpeciesTagRemoved(ctx, e, p)
	default:
		// Unknown payloads are permanently unprocessable: log and skip.
		metrics.RecordEventMalformed()
		w.logger.Warn(ctx, "skipping event with unknown payload",
			logger.String("event_id", e.EventID),
			logger.String("event_type", string(e.Type)),
		)
		return nil
	}
	if err != nil {
		return err
	}

	metrics.RecordEventApplied()
	return nil
}

func (w *Updater) applyDiveCreated(ctx context.Context, e Event, p event.DiveCreatedPayload) error {
	userID := e.SubjectUserID
	if !w.ledger.TryClaim(ctx, e.EventID, model.KindStats, userID) {
		metrics.RecordEventDuplicate()
		return nil
	}
	metrics.RecordLedgerClaim()

	stats, err := w.stats.Apply(ctx, userID, func(s *model.UserStats) {
		s.TotalDives++
		if p.MaxDepthMeters > s.DeepestDiveMeters {
			s.DeepestDiveMeters = p.MaxDepthMeters
		}
		s.TotalDiveMinutes += p.DurationMinutes
	})
	if err != nil {
		w.ledger.Release(ctx, e.EventID, model.KindStats, userID)
		return fmt.Errorf("apply dive created: %w", err)
	}

	w.afterStatsChange(ctx, userID, stats,
		model.MetricTotalDives, model.MetricDeepestDiveMeters, model.MetricTotalDiveMinutes)
	return nil
}

func (w *Updater) applyDiveDeleted(ctx context.Context, e Event) error {
	userID := e.SubjectUserID
	if !w.ledger.TryClaim(ctx, e.EventID, model.KindStats, userID) {
		metrics.RecordEventDuplicate()
		return nil
	}
	metrics.RecordLedgerClaim()

	stats, err := w.stats.Apply(ctx, userID, func(s *model.UserStats) {
		if s.TotalDives > 0 {
			s.TotalDives--
		}
	})
	if err != nil {
		w.ledger.Release(ctx, e.EventID, model.KindStats, userID)
		return fmt.Errorf("apply dive deleted: %w", err)
	}

	// The deleted dive may have held the depth maximum or part of the
	// minutes sum. Those cannot be decremented in place; a scoped
	// reconciliation recomputes them from the primary store.
	w.repairer.RequestExtremes(userID)

	w.afterStatsChange(ctx, userID, stats, model.MetricTotalDives)
	return nil
}

func (w *Updater) applyMediaDeleted(ctx context.Context, e Event, p event.MediaDeletedPayload) error {
	userID := e.SubjectUserID

	if w.ledger.TryClaim(ctx, e.EventID, model.KindScubaDex, userID) {
		metrics.RecordLedgerClaim()
		if _, err := w.dex.RemoveMediaEverywhere(ctx, userID, p.MediaID); err != nil {
			w.ledger.Release(ctx, e.EventID, model.KindScubaDex, userID)
			return fmt.Errorf("remove media evidence: %w", err)
		}
	} else {
		metrics.RecordEventDuplicate()
	}

	if !w.ledger.TryClaim(ctx, e.EventID, model.KindStats, userID) {
		metrics.RecordEventDuplicate()
		return nil
	}
	metrics.RecordLedgerClaim()

	species := w.dex.SpeciesCount(ctx, userID)
	stats, err := w.stats.Apply(ctx, userID, func(s *model.UserStats) {
		if s.TotalMediaCount > 0 {
			s.TotalMediaCount--
		}
		s.TotalSpecies = species
	})
	if err != nil {
		w.ledger.Release(ctx, e.EventID, model.KindStats, userID)
		return fmt.Errorf("apply media deleted: %w", err)
	}

	w.afterStatsChange(ctx, userID, stats, model.MetricTotalSpecies)
	return nil
}

func (w *Updater) applySpeciesTagged(ctx context.Context, e Event, p event.SpeciesTaggedPayload) error {
	userID := e.SubjectUserID

	if w.ledger.TryClaim(ctx, e.EventID, model.KindScubaDex, userID) {
		metrics.RecordLedgerClaim()
		if _, err := w.dex.AddEvidence(ctx, userID, p.SpeciesID, p.MediaID, e.OccurredAt); err != nil {
			w.ledger.Release(ctx, e.EventID, model.KindScubaDex, userID)
			return fmt.Errorf("add evidence: %w", err)
		}
	} else {
		metrics.RecordEventDuplicate()
	}

	return w.recountSpecies(ctx, e, userID)
}

func (w *Updater) applySpeciesTagRemoved(ctx context.Context, e Event, p event.SpeciesTagRemovedPayload) error {
	userID := e.SubjectUserID

	if w.ledger.TryClaim(ctx, e.EventID, model.KindScubaDex, userID) {
		metrics.RecordLedgerClaim()
		if _, err := w.dex.RemoveEvidence(ctx, userID, p.SpeciesID, p.MediaID); err != nil {
			w.ledger.Release(ctx, e.EventID, model.KindScubaDex, userID)
			return fmt.Errorf("remove evidence: %w", err)
		}
	} else {
		metrics.RecordEventDuplicate()
	}

	return w.recountSpecies(ctx, e, userID)
}

// recountSpecies refreshes totalSpecies from the surviving entry set under
// its own claim. Recounting instead of incrementing keeps the rule
// order-tolerant under redelivery.
func (w *Updater) recountSpecies(ctx context.Context, e Event, userID string) error {
	if !w.ledger.TryClaim(ctx, e.EventID, model.KindStats, userID) {
		metrics.RecordEventDuplicate()
		return nil
	}
	metrics.RecordLedgerClaim()

	species := w.dex.SpeciesCount(ctx, userID)
	stats, err := w.stats.Apply(ctx, userID, func(s *model.UserStats) {
		s.TotalSpecies = species
	})
	if err != nil {
		w.ledger.Release(ctx, e.EventID, model.KindStats, userID)
		return fmt.Errorf("recount species: %w", err)
	}

	w.afterStatsChange(ctx, userID, stats, model.MetricTotalSpecies)
	return nil
}

// afterStatsChange runs the synchronous badge pass and schedules the
// asynchronous leaderboard refresh for the touched metrics. It also verifies
// the species invariant; a mismatch means an event was lost somewhere and a
// full rebuild is the authority for repairing it.
func (w *Updater) afterStatsChange(ctx context.Context, userID string, stats model.UserStats, touched ...model.Metric) {
	if awarded, err := w.badges.Evaluate(ctx, userID, stats); err != nil {
		metrics.RecordErrorByComponent("updater", "badge_evaluation")
		w.logger.Error(ctx, "badge evaluation failed",
			logger.String("user_id", userID),
			logger.Error(err),
		)
	} else if awarded > 0 {
		w.logger.Info(ctx, "badges awarded",
			logger.String("user_id", userID),
			logger.Int("count", awarded),
		)
	}

	for _, metric := range touched {
		w.refresher.MarkDirty(metric)
	}

	if stats.TotalSpecies != w.dex.SpeciesCount(ctx, userID) {
		metrics.RecordDriftDetected()
		w.logger.Warn(ctx, "species count drift detected, scheduling rebuild",
			logger.String("user_id", userID),
		)
		w.repairer.RequestRebuild(userID)
	}
}

// Pool runs one Updater per queue partition.
type Pool struct {
	workers []*Updater
	queue   Queue

	logger logger.Logger
}

// NewPool builds an updater for every partition of the queue.
func NewPool(
	queue Queue,
	ledger Ledger,
	dex DexStore,
	stats StatsStore,
	badges BadgeEvaluator,
	refresher Refresher,
	repairer Repairer,
	opts ...Option,
) *Pool {
	pool := &Pool{
		workers: make([]*Updater, queue.Partitions()),
		queue:   queue,
		logger:  logger.Get().Named("updater-pool"),
	}

	for i := range pool.workers {
		pool.workers[i] = NewUpdater(queue, i, ledger, dex, stats, badges, refresher, repairer, opts...)
	}

	metrics.UpdateWorkerCount(len(pool.workers))

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown drains the queue and stops all workers. The queue is closed
// first so workers finish buffered events before exiting.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("partition", i))
		}
	}

	return nil
}

// Package badge implements the data-driven badge rule engine. Every rule is
// a (category, threshold) row tested against current UserStats; adding a
// badge is a table entry, not code.
package badge

import (
	"context"
	"fmt"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"
)

// Category names the stats dimension a badge requirement is tested against.
type Category string

// Badge categories. There is deliberately no category over badge count:
// awarding must never re-trigger evaluation of its own side effects.
const (
	CategoryDives   Category = "dives"
	CategoryDepth   Category = "depth"
	CategorySpecies Category = "species"
	CategoryMedia   Category = "media"
)

// ParseCategory validates a category name from configuration.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryDives, CategoryDepth, CategorySpecies, CategoryMedia:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Definition is one row of the badge table.
type Definition struct {
	ID          string
	Name        string
	Category    Category
	Requirement float64
}

// statValue extracts the category's value from a stats document.
func statValue(c Category, s model.UserStats) float64 {
	switch c {
	case CategoryDives:
		return float64(s.TotalDives)
	case CategoryDepth:
		return s.DeepestDiveMeters
	case CategorySpecies:
		return float64(s.TotalSpecies)
	case CategoryMedia:
		return float64(s.TotalMediaCount)
	}
	return 0
}

// AwardStore is the uniqueness-enforced insert the evaluator writes through.
type AwardStore interface {
	AwardOnce(ctx context.Context, userID, badgeID string, earnedAt time.Time) (bool, error)
}

// StatsWriter lets the evaluator fold new award counts back into UserStats.
type StatsWriter interface {
	Apply(ctx context.Context, userID string, mutate func(*model.UserStats)) (model.UserStats, error)
}

// Evaluator tests the badge table against a user's stats after a mutation.
type Evaluator struct {
	defs   []Definition
	awards AwardStore
	stats  StatsWriter
	clock  func() time.Time
}

// NewEvaluator creates an evaluator over the given definition table.
func NewEvaluator(defs []Definition, awards AwardStore, stats StatsWriter, opts ...Option) *Evaluator {
	e := &Evaluator{
		defs:   defs,
		awards: awards,
		stats:  stats,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate tests every definition against the user's current stats and
// creates missing awards. Double-awarding is impossible: the insert is a
// no-op when the (user, badge) pair exists, even under concurrent
// invocations. Returns the number of newly created awards.
//
// TotalBadges is folded in afterwards without re-entering evaluation; no
// category is defined over badge count.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, stats model.UserStats) (int, error) {
	newly := 0
	now := e.clock()
	for _, def := range e.defs {
		if statValue(def.Category, stats) < def.Requirement {
			continue
		}
		created, err := e.awards.AwardOnce(ctx, userID, def.ID, now)
		if err != nil {
			return newly, fmt.Errorf("award %s: %w", def.ID, err)
		}
		if created {
			newly++
			metrics.RecordBadgeAwarded()
		}
	}

	if newly > 0 {
		if _, err := e.stats.Apply(ctx, userID, func(st *model.UserStats) {
			st.TotalBadges += newly
		}); err != nil {
			return newly, fmt.Errorf("fold badge count: %w", err)
		}
	}
	return newly, nil
}

// Definitions returns the evaluator's table (for introspection).
func (e *Evaluator) Definitions() []Definition {
	out := make([]Definition, len(e.defs))
	copy(out, e.defs)
	return out
}

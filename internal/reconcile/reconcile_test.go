package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/reefconnect/scubadex-engine/internal/adapters/repository"
	"github.com/reefconnect/scubadex-engine/internal/adapters/source"
	"github.com/reefconnect/scubadex-engine/internal/domain/badge"
	"github.com/reefconnect/scubadex-engine/internal/domain/model"
	"github.com/reefconnect/scubadex-engine/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type noopRefresher struct{}

func (noopRefresher) MarkDirty(_ model.Metric) {}

type harness struct {
	source *source.MemoryReader
	dex    *repository.DexStore
	stats  *repository.StatsStore
	awards *repository.BadgeStore
	rec    *Reconciler
}

func newHarness(defs []badge.Definition) *harness {
	h := &harness{
		source: source.NewMemoryReader(1500),
		dex:    repository.NewDexStore(),
		stats:  repository.NewStatsStore(),
		awards: repository.NewBadgeStore(),
	}
	evaluator := badge.NewEvaluator(defs, h.awards, h.stats)
	h.rec = New(h.source, h.dex, h.stats, h.awards, evaluator, noopRefresher{})
	return h
}

func TestFullRebuild(t *testing.T) {
	Convey("Given primary rows and drifted aggregates", t, func() {
		ctx := context.Background()
		now := time.Now()
		h := newHarness(nil)

		h.source.AddDive("u-1", source.DiveRow{ID: "d-1", UserID: "u-1", MaxDepthMeters: 22, DurationMinutes: 40, CreatedAt: now})
		h.source.AddDive("u-1", source.DiveRow{ID: "d-2", UserID: "u-1", MaxDepthMeters: 35, DurationMinutes: 55, CreatedAt: now})
		h.source.AddMedia("u-1", source.MediaRow{ID: "m-1", UserID: "u-1", Status: source.MediaStatusProcessed, CreatedAt: now})
		h.source.AddMedia("u-1", source.MediaRow{ID: "m-2", UserID: "u-1", Status: source.MediaStatusUploaded, CreatedAt: now})
		h.source.AddTag("u-1", source.SpeciesTagRow{MediaID: "m-1", SpeciesID: "sp-1", TaggedAt: now.Add(-time.Hour)})
		h.source.AddTag("u-1", source.SpeciesTagRow{MediaID: "m-2", SpeciesID: "sp-1", TaggedAt: now})
		h.source.AddTag("u-1", source.SpeciesTagRow{MediaID: "m-2", SpeciesID: "sp-2", TaggedAt: now})

		// The materialized state claims a deeper dive than any surviving row.
		_, err := h.stats.Apply(ctx, "u-1", func(s *model.UserStats) {
			s.TotalDives = 9
			s.DeepestDiveMeters = 80
			s.TotalSpecies = 7
		})
		So(err, ShouldBeNil)

		Convey("When a full rebuild runs", func() {
			So(h.rec.Rebuild(ctx, "u-1"), ShouldBeNil)

			Convey("Then stats match the primary rows, including the decreased maximum", func() {
				s, err := h.stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(s.TotalDives, ShouldEqual, 2)
				So(s.DeepestDiveMeters, ShouldEqual, 35)
				So(s.TotalDiveMinutes, ShouldEqual, 95)
				So(s.TotalMediaCount, ShouldEqual, 2)
				So(s.TotalSpecies, ShouldEqual, 2)
			})

			Convey("Then ScubaDex entries carry the union of surviving evidence", func() {
				entries := h.dex.Entries(ctx, "u-1")
				So(entries, ShouldHaveLength, 2)
				So(entries[0].SpeciesID, ShouldEqual, "sp-1")
				So(entries[0].EncounterCount(), ShouldEqual, 2)
				So(entries[0].FirstSeenAt, ShouldHappenBefore, now)
			})

			Convey("Then a second rebuild is a fixpoint", func() {
				before, err := h.stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(h.rec.Rebuild(ctx, "u-1"), ShouldBeNil)
				after, err := h.stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(after, ShouldResemble, before)
			})
		})

		Convey("When rows are soft-deleted before the rebuild", func() {
			h.source.DeleteMedia("u-1", "m-2", now)
			So(h.rec.Rebuild(ctx, "u-1"), ShouldBeNil)

			Convey("Then evidence on deleted media does not count", func() {
				s, err := h.stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(s.TotalMediaCount, ShouldEqual, 1)
				So(s.TotalSpecies, ShouldEqual, 1)
				So(h.dex.SpeciesCount(ctx, "u-1"), ShouldEqual, 1)
			})
		})

		Convey("When a tagged media item has not finished its upload pipeline", func() {
			h.source.AddMedia("u-1", source.MediaRow{ID: "m-3", UserID: "u-1", Status: "pending", CreatedAt: now})
			h.source.AddTag("u-1", source.SpeciesTagRow{MediaID: "m-3", SpeciesID: "sp-3", TaggedAt: now})
			So(h.rec.Rebuild(ctx, "u-1"), ShouldBeNil)

			Convey("Then it carries no evidence and is not counted", func() {
				s, err := h.stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(s.TotalMediaCount, ShouldEqual, 2)
				So(s.TotalSpecies, ShouldEqual, 2)
				So(h.dex.SpeciesCount(ctx, "u-1"), ShouldEqual, 2)
			})
		})
	})
}

func TestRebuildAwardsBadges(t *testing.T) {
	Convey("Given a badge threshold the primary rows satisfy", t, func() {
		ctx := context.Background()
		now := time.Now()
		h := newHarness([]badge.Definition{
			{ID: "deep-diver", Name: "Deep Diver", Category: badge.CategoryDepth, Requirement: 30},
		})
		h.source.AddDive("u-1", source.DiveRow{ID: "d-1", UserID: "u-1", MaxDepthMeters: 33, DurationMinutes: 40, CreatedAt: now})

		Convey("When rebuilding", func() {
			So(h.rec.Rebuild(ctx, "u-1"), ShouldBeNil)

			Convey("Then the badge is awarded and counted", func() {
				So(h.awards.Has(ctx, "u-1", "deep-diver"), ShouldBeTrue)
				s, err := h.stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(s.TotalBadges, ShouldEqual, 1)
			})
		})
	})
}

func TestExtremesRecompute(t *testing.T) {
	Convey("Given stats inflated by a deleted deepest dive", t, func() {
		ctx := context.Background()
		now := time.Now()
		h := newHarness(nil)

		h.source.AddDive("u-1", source.DiveRow{ID: "d-1", UserID: "u-1", MaxDepthMeters: 50, DurationMinutes: 70, CreatedAt: now})
		h.source.AddDive("u-1", source.DiveRow{ID: "d-2", UserID: "u-1", MaxDepthMeters: 20, DurationMinutes: 30, CreatedAt: now})
		h.source.DeleteDive("u-1", "d-1", now)

		_, err := h.stats.Apply(ctx, "u-1", func(s *model.UserStats) {
			s.TotalDives = 1
			s.DeepestDiveMeters = 50
			s.TotalDiveMinutes = 100
			s.TotalSpecies = 4
		})
		So(err, ShouldBeNil)

		Convey("When the scoped recompute runs", func() {
			So(h.rec.RecomputeExtremes(ctx, "u-1"), ShouldBeNil)

			Convey("Then only depth and duration are repaired", func() {
				s, err := h.stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(s.DeepestDiveMeters, ShouldEqual, 20)
				So(s.TotalDiveMinutes, ShouldEqual, 30)
				So(s.TotalDives, ShouldEqual, 1)
				So(s.TotalSpecies, ShouldEqual, 4)
			})
		})
	})
}

// stallingDex blocks the first aggregate swap until released, letting a test
// race a newer pass against one caught between its fold and its commit.
type stallingDex struct {
	*repository.DexStore
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (d *stallingDex) ReplaceUser(ctx context.Context, userID string, entries map[string]*model.ScubaDexEntry) error {
	blocked := false
	d.once.Do(func() { blocked = true })
	if blocked {
		close(d.entered)
		<-d.gate
	}
	return d.DexStore.ReplaceUser(ctx, userID, entries)
}

func TestStalePassCannotOverwriteNewerCommit(t *testing.T) {
	Convey("Given a pass stalled between its fold and its commit", t, func() {
		ctx := context.Background()
		now := time.Now()

		mem := source.NewMemoryReader(1500)
		mem.AddDive("u-1", source.DiveRow{ID: "d-1", UserID: "u-1", MaxDepthMeters: 30, DurationMinutes: 40, CreatedAt: now})

		dex := &stallingDex{DexStore: repository.NewDexStore(), gate: make(chan struct{}), entered: make(chan struct{})}
		stats := repository.NewStatsStore()
		awards := repository.NewBadgeStore()
		evaluator := badge.NewEvaluator(nil, awards, stats)
		rec := New(mem, dex, stats, awards, evaluator, noopRefresher{})

		Convey("When a newer pass races the stalled one", func() {
			older := make(chan error, 1)
			go func() { older <- rec.Rebuild(ctx, "u-1") }()
			<-dex.entered

			// The primary rows change and a newer pass starts while the
			// older pass still holds a fold of the previous state.
			mem.AddDive("u-1", source.DiveRow{ID: "d-2", UserID: "u-1", MaxDepthMeters: 42, DurationMinutes: 50, CreatedAt: now})
			newer := make(chan error, 1)
			go func() { newer <- rec.Rebuild(ctx, "u-1") }()
			close(dex.gate)

			Convey("Then the newer pass's result is what persists", func() {
				for _, ch := range []chan error{older, newer} {
					select {
					case err := <-ch:
						if err != nil {
							So(err, ShouldEqual, ErrSuperseded)
						}
					case <-time.After(2 * time.Second):
						So("timeout waiting for pass", ShouldBeEmpty)
					}
				}

				s, err := stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(s.TotalDives, ShouldEqual, 2)
				So(s.DeepestDiveMeters, ShouldEqual, 42)
			})
		})
	})
}

// gatedReader blocks the first snapshot read until released, letting a test
// interleave a newer pass with an in-flight one.
type gatedReader struct {
	*source.MemoryReader
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gatedReader) UserSnapshot(ctx context.Context, userID string) (source.Snapshot, error) {
	blocked := false
	g.once.Do(func() { blocked = true })
	if blocked {
		close(g.entered)
		<-g.gate
	}
	return g.MemoryReader.UserSnapshot(ctx, userID)
}

func TestSupersededPassIsDiscarded(t *testing.T) {
	Convey("Given an in-flight pass overtaken by a newer request", t, func() {
		ctx := context.Background()
		now := time.Now()

		mem := source.NewMemoryReader(1500)
		mem.AddDive("u-1", source.DiveRow{ID: "d-1", UserID: "u-1", MaxDepthMeters: 10, DurationMinutes: 20, CreatedAt: now})
		gated := &gatedReader{MemoryReader: mem, gate: make(chan struct{}), entered: make(chan struct{})}

		dex := repository.NewDexStore()
		stats := repository.NewStatsStore()
		awards := repository.NewBadgeStore()
		evaluator := badge.NewEvaluator(nil, awards, stats)
		rec := New(gated, dex, stats, awards, evaluator, noopRefresher{})

		Convey("When the older pass finishes after the newer one", func() {
			result := make(chan error, 1)
			go func() { result <- rec.Rebuild(ctx, "u-1") }()
			<-gated.entered

			So(rec.Rebuild(ctx, "u-1"), ShouldBeNil)
			close(gated.gate)

			Convey("Then the older pass reports supersession", func() {
				select {
				case err := <-result:
					So(err, ShouldEqual, ErrSuperseded)
				case <-time.After(2 * time.Second):
					So("timeout waiting for pass", ShouldBeEmpty)
				}

				s, err := stats.Get(ctx, "u-1")
				So(err, ShouldBeNil)
				So(s.TotalDives, ShouldEqual, 1)
			})
		})
	})
}

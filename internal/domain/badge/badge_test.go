package badge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/adapters/repository"
	"github.com/reefconnect/scubadex-engine/internal/domain/badge"
	"github.com/reefconnect/scubadex-engine/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func testDefs() []badge.Definition {
	return []badge.Definition{
		{ID: "first-dive", Name: "First Splash", Category: badge.CategoryDives, Requirement: 1},
		{ID: "ten-dives", Name: "Regular", Category: badge.CategoryDives, Requirement: 10},
		{ID: "deep-30", Name: "Deep Diver", Category: badge.CategoryDepth, Requirement: 30},
		{ID: "species-25", Name: "Spotter", Category: badge.CategorySpecies, Requirement: 25},
		{ID: "media-10", Name: "Shutterbug", Category: badge.CategoryMedia, Requirement: 10},
	}
}

func TestParseCategory(t *testing.T) {
	Convey("Given category names", t, func() {
		Convey("Then known names should parse", func() {
			for _, s := range []string{"dives", "depth", "species", "media"} {
				c, err := badge.ParseCategory(s)
				So(err, ShouldBeNil)
				So(string(c), ShouldEqual, s)
			}
		})

		Convey("Then unknown names should fail", func() {
			_, err := badge.ParseCategory("selfies")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given an evaluator over the test table", t, func() {
		ctx := context.Background()
		awards := repository.NewBadgeStore()
		stats := repository.NewStatsStore()
		earned := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
		eval := badge.NewEvaluator(testDefs(), awards, stats, badge.WithClock(func() time.Time { return earned }))

		Convey("When stats cross several thresholds at once", func() {
			newly, err := eval.Evaluate(ctx, "user-1", model.UserStats{
				TotalDives:        12,
				DeepestDiveMeters: 31,
			})

			Convey("Then each crossed badge is awarded exactly once", func() {
				So(err, ShouldBeNil)
				So(newly, ShouldEqual, 3) // first-dive, ten-dives, deep-30
				So(awards.Has(ctx, "user-1", "first-dive"), ShouldBeTrue)
				So(awards.Has(ctx, "user-1", "ten-dives"), ShouldBeTrue)
				So(awards.Has(ctx, "user-1", "deep-30"), ShouldBeTrue)
				So(awards.Has(ctx, "user-1", "species-25"), ShouldBeFalse)
			})

			Convey("Then the award count folds into TotalBadges", func() {
				st, err := stats.Get(ctx, "user-1")
				So(err, ShouldBeNil)
				So(st.TotalBadges, ShouldEqual, 3)
			})

			Convey("Then EarnedAt uses the injected clock", func() {
				So(awards.Awards(ctx, "user-1")[0].EarnedAt, ShouldEqual, earned)
			})
		})

		Convey("When the same stats are evaluated again", func() {
			_, _ = eval.Evaluate(ctx, "user-1", model.UserStats{TotalDives: 1})
			newly, err := eval.Evaluate(ctx, "user-1", model.UserStats{TotalDives: 1})

			Convey("Then no award is duplicated and TotalBadges is stable", func() {
				So(err, ShouldBeNil)
				So(newly, ShouldEqual, 0)
				st, _ := stats.Get(ctx, "user-1")
				So(st.TotalBadges, ShouldEqual, 1)
			})
		})

		Convey("When stats sit below every threshold", func() {
			newly, err := eval.Evaluate(ctx, "user-2", model.UserStats{})

			Convey("Then nothing is awarded", func() {
				So(err, ShouldBeNil)
				So(newly, ShouldEqual, 0)
				So(awards.CountFor(ctx, "user-2"), ShouldEqual, 0)
			})
		})

		Convey("When two workers evaluate the same crossing concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = eval.Evaluate(ctx, "user-3", model.UserStats{DeepestDiveMeters: 35})
				}()
			}
			wg.Wait()

			Convey("Then the (user, badge) pair appears once", func() {
				So(awards.CountFor(ctx, "user-3"), ShouldEqual, 1)
			})
		})
	})
}

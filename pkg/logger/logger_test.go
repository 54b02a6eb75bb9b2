package logger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reefconnect/scubadex-engine/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		l := logger.Get()

		Convey("Then it should not be nil", func() {
			So(l, ShouldNotBeNil)
		})

		Convey("When creating a named logger", func() {
			named := l.Named("reconciler")

			Convey("Then it should return a distinct logger", func() {
				So(named, ShouldNotBeNil)
			})
		})

		Convey("When logging at each level", func() {
			ctx := context.Background()

			Convey("Then no call should panic", func() {
				So(func() { l.Debug(ctx, "debug message") }, ShouldNotPanic)
				So(func() { l.Info(ctx, "info message", logger.String("k", "v")) }, ShouldNotPanic)
				So(func() { l.Warn(ctx, "warn message", logger.Int("n", 1)) }, ShouldNotPanic)
				So(func() { l.Error(ctx, "error message", logger.Error(errors.New("boom"))) }, ShouldNotPanic)
			})
		})
	})
}

func TestFieldConstructors(t *testing.T) {
	Convey("Given the field constructors", t, func() {
		Convey("Then each should carry its key and value", func() {
			So(logger.String("a", "b").Key, ShouldEqual, "a")
			So(logger.String("a", "b").Value, ShouldEqual, "b")
			So(logger.Int("n", 3).Value, ShouldEqual, 3)
			So(logger.Int64("n", int64(9)).Value, ShouldEqual, int64(9))
			So(logger.Float64("f", 1.5).Value, ShouldEqual, 1.5)
			So(logger.Duration("d", time.Second).Value, ShouldEqual, time.Second)

			err := errors.New("boom")
			So(logger.Error(err).Key, ShouldEqual, "error")
			So(logger.Error(err).Value, ShouldEqual, err)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When setting valid levels", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", ""} {
				So(logger.SetLevelString(lvl), ShouldBeNil)
			}
			// Restore default for other tests.
			So(logger.SetLevelString("info"), ShouldBeNil)
		})

		Convey("When setting an invalid level", func() {
			err := logger.SetLevelString("loud")

			Convey("Then it should return an error", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

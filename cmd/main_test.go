package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/adapters/http/api"
	app "github.com/reefconnect/scubadex-engine/internal/app"
	"github.com/reefconnect/scubadex-engine/internal/config"
	"github.com/reefconnect/scubadex-engine/internal/domain/badge"
	"github.com/reefconnect/scubadex-engine/pkg/logger"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("REEF_ADDR", ":8080")
			_ = os.Setenv("REEF_QUEUE_SIZE", "1000")
			_ = os.Setenv("REEF_PARTITION_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("REEF_ADDR")
				_ = os.Unsetenv("REEF_QUEUE_SIZE")
				_ = os.Unsetenv("REEF_PARTITION_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.PartitionCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithPartitionCount(8),
					app.WithQueueSize(2000),
					app.WithLedgerSize(1000),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc)
				convey.So(server, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestBadgeDefinitionConversion(t *testing.T) {
	convey.Convey("Given configured badge rows", t, func() {
		ctx := context.Background()

		convey.Convey("When every category is valid", func() {
			defs := badgeDefinitions(ctx, config.DefaultBadges())

			convey.Convey("Then every row converts", func() {
				convey.So(len(defs), convey.ShouldEqual, len(config.DefaultBadges()))
			})
		})

		convey.Convey("When a row carries an unknown category", func() {
			rows := []config.BadgeDefinition{
				{ID: "ok", Name: "OK", Category: "dives", Requirement: 1},
				{ID: "bad", Name: "Bad", Category: "altitude", Requirement: 1},
			}
			defs := badgeDefinitions(ctx, rows)

			convey.Convey("Then the unknown row is skipped", func() {
				convey.So(len(defs), convey.ShouldEqual, 1)
				convey.So(defs[0].ID, convey.ShouldEqual, "ok")
				convey.So(defs[0].Category, convey.ShouldEqual, badge.CategoryDives)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing service metrics updater", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should stop when the context expires", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics update", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateServiceMetrics(svc)
				}, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		convey.Convey("When testing full application setup", func() {
			_ = os.Setenv("REEF_ADDR", ":8080")
			_ = os.Setenv("REEF_QUEUE_SIZE", "1000")
			_ = os.Setenv("REEF_PARTITION_COUNT", "2")
			defer func() {
				_ = os.Unsetenv("REEF_ADDR")
				_ = os.Unsetenv("REEF_QUEUE_SIZE")
				_ = os.Unsetenv("REEF_PARTITION_COUNT")
			}()

			convey.Convey("Then all components should work together", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)

				svc := app.New(
					app.WithPartitionCount(cfg.PartitionCount),
					app.WithQueueSize(cfg.QueueSize),
					app.WithLedgerSize(cfg.LedgerSize),
					app.WithBadgeDefinitions(badgeDefinitions(ctx, cfg.Badges)),
				)
				convey.So(svc, convey.ShouldNotBeNil)

				server := api.NewServer(svc, svc)
				convey.So(server, convey.ShouldNotBeNil)

				mux := http.NewServeMux()
				convey.So(mux, convey.ShouldNotBeNil)

				server.Register(ctx, mux)

				svc.Stop()
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("REEF_ADDR", "")
			defer func() { _ = os.Unsetenv("REEF_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation with invalid options", func() {
			convey.Convey("Then service should handle invalid options gracefully", func() {
				svc := app.New(
					app.WithPartitionCount(0),
					app.WithQueueSize(0),
					app.WithLedgerSize(0),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationConcurrency(t *testing.T) {
	convey.Convey("Given main application concurrency", t, func() {
		convey.Convey("When testing concurrent component creation", func() {
			numGoroutines := 10
			done := make(chan bool, numGoroutines)

			for i := 0; i < numGoroutines; i++ {
				go func(id int) {
					defer func() {
						if r := recover(); r != nil {
							t.Logf("Goroutine %d panicked: %v", id, r)
						}
						done <- true
					}()

					svc := app.New()
					if svc == nil {
						t.Errorf("Goroutine %d: service creation failed", id)
						return
					}

					server := api.NewServer(svc, svc)
					if server == nil {
						t.Errorf("Goroutine %d: HTTP server creation failed", id)
						return
					}

					registry := prometheus.NewRegistry()
					manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
					if manager == nil {
						t.Errorf("Goroutine %d: metrics manager creation failed", id)
						return
					}
				}(i)
			}

			for i := 0; i < numGoroutines; i++ {
				<-done
			}

			convey.Convey("Then all components should be created successfully", func() {
				convey.So(true, convey.ShouldBeTrue)
			})
		})
	})
}

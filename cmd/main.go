package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/adapters/http/api"
	"github.com/reefconnect/scubadex-engine/internal/adapters/source"
	app "github.com/reefconnect/scubadex-engine/internal/app"
	"github.com/reefconnect/scubadex-engine/internal/config"
	"github.com/reefconnect/scubadex-engine/internal/domain/badge"
	"github.com/reefconnect/scubadex-engine/pkg/logger"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics;
	// the engine registers its own collectors on a custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			logger.Error(err)
		}
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts := []app.Option{
		app.WithLogger(loggerInstance),
		app.WithPartitionCount(cfg.PartitionCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithLedgerSize(cfg.LedgerSize),
		app.WithBadgeDefinitions(badgeDefinitions(ctx, cfg.Badges)),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithLeaderboardDebounce(time.Duration(cfg.LeaderboardDebounceMS) * time.Millisecond),
		app.WithRetryBudget(cfg.RetryBudget),
		app.WithRetryBackoff(time.Duration(cfg.RetryBackoffMS) * time.Millisecond),
		app.WithSweepInterval(time.Duration(cfg.SweepIntervalSec) * time.Second),
		app.WithSpeciesCatalogSize(cfg.SpeciesCatalogSize),
	}

	// Reconciliation reads from the primary store when a DSN is configured;
	// otherwise the in-memory source keeps the engine self-contained.
	if cfg.DatabaseDSN != "" {
		reader, err := source.NewPostgresReader(cfg.DatabaseDSN)
		if err != nil {
			os.Stderr.WriteString("failed to connect to primary store: " + err.Error() + "\n")
			return
		}
		opts = append(opts, app.WithSourceReader(reader))
		loggerInstance.Info(ctx, "reconciliation source: postgres")
	} else {
		loggerInstance.Info(ctx, "reconciliation source: in-memory")
	}

	// Create and start the service with configuration options
	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// badgeDefinitions converts configured badge rows into the domain badge
// table, skipping rows with an unknown category.
func badgeDefinitions(ctx context.Context, rows []config.BadgeDefinition) []badge.Definition {
	defs := make([]badge.Definition, 0, len(rows))
	for _, row := range rows {
		category, err := badge.ParseCategory(row.Category)
		if err != nil {
			logger.Get().Warn(ctx, "skipping badge with unknown category",
				logger.String("badge_id", row.ID),
				logger.String("category", row.Category))
			continue
		}
		defs = append(defs, badge.Definition{
			ID:          row.ID,
			Name:        row.Name,
			Category:    category,
			Requirement: row.Requirement,
		})
	}
	return defs
}

// startServiceMetricsUpdater starts a background goroutine that refreshes
// service-level gauges on a fixed interval.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics pulls current engine stats; GetStats refreshes the
// tracked-user and ledger gauges as a side effect.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
}

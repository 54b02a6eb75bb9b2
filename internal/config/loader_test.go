package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/reefconnect/scubadex-engine/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.LedgerSize, convey.ShouldEqual, 500_000)
				convey.So(len(cfg.Badges), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("REEF_ADDR", ":8080")
			_ = os.Setenv("REEF_QUEUE_SIZE", "5000")
			_ = os.Setenv("REEF_PARTITION_COUNT", "4")
			_ = os.Setenv("REEF_RETRY_BUDGET", "3")
			_ = os.Setenv("REEF_LEADERBOARD_DEBOUNCE_MS", "250")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 5000)
				convey.So(cfg.PartitionCount, convey.ShouldEqual, 4)
				convey.So(cfg.RetryBudget, convey.ShouldEqual, 3)
				convey.So(cfg.LeaderboardDebounceMS, convey.ShouldEqual, 250)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
queue_size: 20000
partition_count: 8
sweep_interval_sec: 600
badges:
  - id: "custom-dive"
    name: "Custom Dive Badge"
    category: "dives"
    requirement: 5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("REEF_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 20000)
				convey.So(cfg.PartitionCount, convey.ShouldEqual, 8)
				convey.So(cfg.SweepIntervalSec, convey.ShouldEqual, 600)
				convey.So(len(cfg.Badges), convey.ShouldEqual, 1)
				convey.So(cfg.Badges[0].ID, convey.ShouldEqual, "custom-dive")
			})
		})

		convey.Convey("When the badge table contains an unknown category", func() {
			yamlContent := `
badges:
  - id: "bad"
    name: "Bad Badge"
    category: "selfies"
    requirement: 1
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("REEF_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When partition count is invalid", func() {
			_ = os.Setenv("REEF_PARTITION_COUNT", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"REEF_CONFIG",
		"REEF_ADDR",
		"REEF_QUEUE_SIZE",
		"REEF_PARTITION_COUNT",
		"REEF_LEDGER_SIZE",
		"REEF_RETRY_BUDGET",
		"REEF_RETRY_BACKOFF_MS",
		"REEF_LEADERBOARD_DEBOUNCE_MS",
		"REEF_SWEEP_INTERVAL_SEC",
	} {
		_ = os.Unsetenv(key)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "reef-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	if err := f.Close(); err != nil {
		panic(err)
	}
	return f.Name()
}

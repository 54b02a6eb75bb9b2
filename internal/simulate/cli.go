package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/reefconnect/scubadex-engine/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulation_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the event simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`ScubaDex Event Simulation Tool
==============================

A concurrent tool for exercising the ScubaDex materialization engine with
realistic dive-log event traffic.

Usage:
  go run cmd/simulate-events/main.go [options]

Options:
  -url string
        Base URL of the engine (default "http://localhost:9080")
  -divers int
        Number of simulated divers (default 1000)
  -top int
        Number of top entries to fetch from leaderboard (default 50)
  -metric string
        Leaderboard metric to verify (default "total_dives")
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated events (default: generated_events_TIMESTAMP.json)
  -log string
        Log file for simulation output (default: simulation_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/simulate-events/main.go

  # Simulate with custom parameters
  go run cmd/simulate-events/main.go -divers 5000 -workers 16 -url http://localhost:8080

  # Verify the depth leaderboard instead of dive counts
  go run cmd/simulate-events/main.go -metric deepest_dive_meters

  # Simulate with a custom log file
  go run cmd/simulate-events/main.go -divers 5000 -log my_simulation.log
`)
}

package simulate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// retrieveStats retrieves materialized stats for all divers concurrently.
func retrieveStats(ctx context.Context, config *Config, events []Event, stats *Stats) ([]UserStats, error) {
	// Extract unique diver IDs
	seen := make(map[string]struct{}, config.NumDivers)
	diverIDs := make([]string, 0, config.NumDivers)
	for _, event := range events {
		if _, ok := seen[event.SubjectUserID]; ok {
			continue
		}
		seen[event.SubjectUserID] = struct{}{}
		diverIDs = append(diverIDs, event.SubjectUserID)
	}

	log.Printf("📖 Retrieving stats for %d divers with %d workers...", len(diverIDs), config.Workers)

	client := newHTTPClient(config.Timeout)

	// Results storage
	results := make([]UserStats, len(diverIDs))
	var (
		retrieved int64
		failed    int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	// Create worker pool
	diverChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range diverChan {
				select {
				case <-ctx.Done():
					return
				default:
					diverID := diverIDs[index]
					doc, err := retrieveSingleStats(ctx, client, config.BaseURL, diverID)

					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("⚠️  Failed to get stats for %s: %v", diverID, err)
						}
					} else {
						results[index] = doc
						atomic.AddInt64(&retrieved, 1)
					}

					// Progress reporting
					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&retrieved) + atomic.LoadInt64(&failed)
						ret := atomic.LoadInt64(&retrieved)
						fail := atomic.LoadInt64(&failed)

						log.Printf("📖 Stats: %d/%d retrieved (success: %d, failed: %d)",
							total, len(diverIDs), ret, fail)
					}
				}
			}
		}()
	}

	// Send diver indices to workers
	go func() {
		defer close(diverChan)
		for i := range diverIDs {
			select {
			case <-ctx.Done():
				return
			case diverChan <- i:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Filter out empty entries (failed retrievals)
	validStats := make([]UserStats, 0, len(results))
	for _, doc := range results {
		if doc.UserID != "" { // Empty UserID indicates failed retrieval
			validStats = append(validStats, doc)
		}
	}

	// Update stats
	stats.StatsRetrieved = len(validStats)

	log.Printf(`✅ Stats retrieval completed:
   Retrieved: %d
   Failed: %d
`, len(validStats), int(atomic.LoadInt64(&failed)))

	return validStats, nil
}

// retrieveSingleStats retrieves the stats document for a single diver.
func retrieveSingleStats(ctx context.Context, client *HTTPClient, baseURL, diverID string) (UserStats, error) {
	url := fmt.Sprintf("%s/stats/%s", baseURL, diverID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return UserStats{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return UserStats{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return UserStats{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var doc UserStats
	if err := unmarshalJSON(body, &doc); err != nil {
		return UserStats{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return doc, nil
}

// getLeaderboard retrieves the top N leaderboard entries for the metric.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	log.Printf("🥇 Getting top %d leaderboard entries for %s...", config.TopN, config.Metric)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/leaderboard?metric=%s&limit=%d", config.BaseURL, config.Metric, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var board LeaderboardResponse
	if err := unmarshalJSON(body, &board); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(board.Entries)
	log.Printf("✅ Retrieved %d leaderboard entries", len(board.Entries))

	return board.Entries, nil
}

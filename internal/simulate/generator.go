package simulate

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/reefconnect/scubadex-engine/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	depthProfileCount  = 6
	speciesCatalogSize = 150
)

// Constants for dive depth profiles, in meters.
const (
	shallowMin       = 5.0
	shallowRange     = 7.0
	openWaterMin     = 12.0
	openWaterRange   = 6.0
	advancedMin      = 18.0
	advancedRange    = 12.0
	deepMin          = 30.0
	deepRange        = 10.0
	technicalMin     = 40.0
	technicalRange   = 20.0
	nightShallowMin  = 8.0
	nightShallowSpan = 10.0
)

// Constants for depth profile cases.
const (
	caseShallowReef  = 0
	caseOpenWater    = 1
	caseAdvanced     = 2
	caseDeep         = 3
	caseTechnical    = 4
	caseNightShallow = 5
)

// Constants for per-diver activity.
const (
	maxDivesPerDiver   = 4
	maxMediaPerDive    = 2
	maxTagsPerMedia    = 3
	durationMinMinutes = 20
	durationSpanMin    = 50
	deletionChance     = 10 // percent of divers that delete a dive
	untagChance        = 15 // percent of divers that remove a tag
	duplicateChance    = 20 // percent of divers that resubmit an event
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, max) using crypto/rand.
func getRandomInt(maxExclusive int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(maxExclusive)))
	return int(n.Int64())
}

// generateEvents creates an event script for the configured number of divers.
// Each diver logs a handful of dives, tags species on some media, and a
// fraction of divers delete a dive, remove a tag, or resubmit an event to
// exercise the idempotency and reconciliation paths.
func generateEvents(ctx context.Context, config *Config, stats *Stats) ([]Event, error) {
	logger.Get().Info(ctx, "generating dive event scripts", logger.Int("numDivers", config.NumDivers))

	// Pre-allocate diver IDs to ensure uniqueness
	diverIDs := make([]string, config.NumDivers)
	for i := 0; i < config.NumDivers; i++ {
		diverIDs[i] = uuid.New().String()
	}

	type scriptResult struct {
		index  int
		events []Event
		err    error
	}

	resultChan := make(chan scriptResult, config.NumDivers)

	// Use worker pool for script generation
	workerCount := minInt(config.Workers, config.NumDivers)
	diversPerWorker := config.NumDivers / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * diversPerWorker
		end := start + diversPerWorker
		if worker == workerCount-1 {
			end = config.NumDivers // Last worker gets remaining divers
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- scriptResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- scriptResult{index: i, events: generateDiverScript(diverIDs[i])}
				}
			}
		}(start, end)
	}

	// Collect results, preserving per-diver event order
	scripts := make([][]Event, config.NumDivers)
	for i := 0; i < config.NumDivers; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during event generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate script for diver %d: %w", result.index, result.err)
			}
			scripts[result.index] = result.events
		}
	}

	events := make([]Event, 0, config.NumDivers*maxDivesPerDiver)
	for _, script := range scripts {
		events = append(events, script...)
	}

	stats.DiversSimulated = config.NumDivers
	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated events successfully",
		logger.Int("divers", config.NumDivers),
		logger.Int("events", len(events)))

	return events, nil
}

// generateDiverScript creates the ordered event sequence for one diver.
func generateDiverScript(diverID string) []Event {
	events := make([]Event, 0, 8)

	type taggedPair struct {
		mediaID   string
		speciesID string
	}

	var (
		diveIDs []string
		tagged  []taggedPair
	)

	numDives := 1 + getRandomInt(maxDivesPerDiver)
	for d := 0; d < numDives; d++ {
		diveID := uuid.New().String()
		diveIDs = append(diveIDs, diveID)

		events = append(events, newEvent("DiveCreated", diverID, map[string]interface{}{
			"dive_id":          diveID,
			"max_depth_meters": generateDiveDepth(),
			"duration_minutes": durationMinMinutes + getRandomInt(durationSpanMin),
		}))

		numMedia := getRandomInt(maxMediaPerDive + 1)
		for m := 0; m < numMedia; m++ {
			mediaID := uuid.New().String()
			numTags := 1 + getRandomInt(maxTagsPerMedia)
			for t := 0; t < numTags; t++ {
				speciesID := fmt.Sprintf("sp-%03d", 1+getRandomInt(speciesCatalogSize))
				tagged = append(tagged, taggedPair{mediaID: mediaID, speciesID: speciesID})

				events = append(events, newEvent("SpeciesTagged", diverID, map[string]interface{}{
					"media_id":   mediaID,
					"species_id": speciesID,
					"source":     "ml",
				}))
			}
		}
	}

	// A fraction of divers retract a tag after review.
	if len(tagged) > 0 && getRandomInt(PercentageMultiplier) < untagChance {
		pair := tagged[getRandomInt(len(tagged))]
		events = append(events, newEvent("SpeciesTagRemoved", diverID, map[string]interface{}{
			"media_id":   pair.mediaID,
			"species_id": pair.speciesID,
		}))
	}

	// A fraction of divers delete a logged dive.
	if len(diveIDs) > 1 && getRandomInt(PercentageMultiplier) < deletionChance {
		events = append(events, newEvent("DiveDeleted", diverID, map[string]interface{}{
			"dive_id": diveIDs[getRandomInt(len(diveIDs))],
		}))
	}

	// A fraction of divers resubmit an earlier event verbatim, simulating
	// transport redelivery.
	if len(events) > 0 && getRandomInt(PercentageMultiplier) < duplicateChance {
		events = append(events, events[getRandomInt(len(events))])
	}

	return events
}

// newEvent wraps a payload in a wire envelope with a fresh event ID.
func newEvent(eventType, diverID string, payload map[string]interface{}) Event {
	return Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		SubjectUserID: diverID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		Payload:       payload,
	}
}

// generateDiveDepth creates a max depth with a realistic profile mix.
func generateDiveDepth() float64 {
	switch getRandomInt(depthProfileCount) {
	case caseShallowReef:
		// Shallow reef dives (5 - 12m) - most common
		return shallowMin + getRandomFloat()*shallowRange
	case caseOpenWater:
		// Open water certification range (12 - 18m)
		return openWaterMin + getRandomFloat()*openWaterRange
	case caseAdvanced:
		// Advanced recreational (18 - 30m)
		return advancedMin + getRandomFloat()*advancedRange
	case caseDeep:
		// Deep recreational (30 - 40m)
		return deepMin + getRandomFloat()*deepRange
	case caseTechnical:
		// Technical dives (40 - 60m) - rare
		return technicalMin + getRandomFloat()*technicalRange
	case caseNightShallow:
		// Night dives at shallow sites (8 - 18m)
		return nightShallowMin + getRandomFloat()*nightShallowSpan
	default:
		return shallowMin + getRandomFloat()*shallowRange
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

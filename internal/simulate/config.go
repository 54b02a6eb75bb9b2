package simulate

import "time"

// Config holds configuration for the event simulation.
type Config struct {
	BaseURL    string        // Base URL of the engine
	NumDivers  int           // Number of simulated divers
	TopN       int           // Number of top entries to fetch
	Metric     string        // Leaderboard metric to verify
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for generated events
	LogFile    string        // Log file for simulation output
	Verbose    bool          // Enable verbose logging
}

// Event is one wire envelope ready for submission.
type Event struct {
	EventID       string      `json:"event_id"`
	EventType     string      `json:"event_type"`
	SubjectUserID string      `json:"subject_user_id"`
	OccurredAt    string      `json:"occurred_at"`
	Payload       interface{} `json:"payload"`
}

// UserStats mirrors the engine's stats document response.
type UserStats struct {
	UserID            string  `json:"user_id"`
	TotalDives        int     `json:"total_dives"`
	TotalSpecies      int     `json:"total_species"`
	DeepestDiveMeters float64 `json:"deepest_dive_meters"`
	TotalDiveMinutes  int     `json:"total_dive_minutes"`
	TotalMediaCount   int     `json:"total_media_count"`
	TotalBadges       int     `json:"total_badges"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"user_id"`
	Value  float64 `json:"value"`
}

// LeaderboardResponse represents the leaderboard endpoint body.
type LeaderboardResponse struct {
	Metric  string  `json:"metric"`
	Scope   string  `json:"scope"`
	Entries []Entry `json:"entries"`
}

// AckResponse represents the response from event submission.
type AckResponse struct {
	Status string `json:"status"`
}

// Stats holds simulation statistics.
type Stats struct {
	DiversSimulated    int
	EventsGenerated    int
	EventsSubmitted    int
	EventsAccepted     int
	EventsThrottled    int
	EventsFailed       int
	StatsRetrieved     int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

package types

import "time"

// GapFlag records an unresolved structural gap left after timing repair.
type GapFlag struct {
	Day        int    `json:"day"`
	After      string `json:"after"`  // block the gap follows
	Before     string `json:"before"` // block the gap precedes
	GapMinutes int    `json:"gap_minutes"`
}

// StageTiming is one orchestrator stage's duration plus stage-specific
// counters (days generated, conflicts found, calls saved, ...).
type StageTiming struct {
	Duration time.Duration  `json:"duration"`
	Counters map[string]int `json:"counters,omitempty"`
}

// Metrics is the performance/cost record returned alongside the itinerary.
type Metrics struct {
	TotalDuration time.Duration          `json:"total_duration"`
	Stages        map[string]StageTiming `json:"stages"`

	ExternalCalls int `json:"external_calls"`
	CallsSaved    int `json:"calls_saved"` // avoided via grouping and caching
	CacheHits     int `json:"cache_hits"`

	Landmarks   int            `json:"landmarks"`
	Restaurants int            `json:"restaurants"`
	Meals       map[string]int `json:"meals"`

	FallbackDays        []int     `json:"fallback_days,omitempty"`
	UnresolvedConflicts []string  `json:"unresolved_conflicts,omitempty"`
	UnresolvedGaps      []GapFlag `json:"unresolved_gaps,omitempty"`
	Errors              []string  `json:"errors,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		Stages: make(map[string]StageTiming),
		Meals:  make(map[string]int),
	}
}

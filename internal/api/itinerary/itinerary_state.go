package itinerary

import (
	"log/slog"
	"sync"
	"time"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// AgentState is the pipeline-scoped shared record. It is created at pipeline
// start and owned exclusively by the orchestrator; each stage receives read
// access plus the right to fill its own field. Per-day workers never write
// here directly - they hand results back over channels and the orchestrator
// commits them - so only the cross-day counters and the used-restaurant set
// need a lock.
type AgentState struct {
	Request     types.TripRequest
	Fingerprint string

	GeneratedDays map[int][]types.ItineraryBlock // landmark generation / regeneration
	ThemeParkDays map[int]bool
	Conflicts     types.ConflictReport           // duplicate detection
	EnhancedDays  map[int][]types.ItineraryBlock // restaurant + landmark enhancement, merged
	ValidatedDays map[int]types.DayPlan          // gap validation

	Metrics *types.Metrics

	start  time.Time
	logger *slog.Logger

	mu              sync.Mutex
	usedRestaurants map[string]bool
}

func newAgentState(req types.TripRequest, logger *slog.Logger) *AgentState {
	return &AgentState{
		Request:         req,
		Fingerprint:     requestFingerprint(req),
		GeneratedDays:   make(map[int][]types.ItineraryBlock),
		ThemeParkDays:   make(map[int]bool),
		EnhancedDays:    make(map[int][]types.ItineraryBlock),
		ValidatedDays:   make(map[int]types.DayPlan),
		Metrics:         types.NewMetrics(),
		start:           time.Now(),
		logger:          logger,
		usedRestaurants: make(map[string]bool),
	}
}

// logTiming records one stage's duration and counters in the metrics record.
func (st *AgentState) logTiming(stage string, duration time.Duration, counters map[string]int) {
	st.mu.Lock()
	st.Metrics.Stages[stage] = types.StageTiming{Duration: duration, Counters: counters}
	st.mu.Unlock()
	st.logger.Info("Stage completed",
		slog.String("stage", stage),
		slog.Duration("duration", duration),
		slog.Any("counters", counters))
}

func (st *AgentState) addExternalCalls(n int) {
	st.mu.Lock()
	st.Metrics.ExternalCalls += n
	st.mu.Unlock()
}

func (st *AgentState) addCallsSaved(n int) {
	st.mu.Lock()
	st.Metrics.CallsSaved += n
	st.mu.Unlock()
}

func (st *AgentState) addCacheHit() {
	st.mu.Lock()
	st.Metrics.CacheHits++
	st.mu.Unlock()
}

func (st *AgentState) addError(msg string) {
	st.mu.Lock()
	st.Metrics.Errors = append(st.Metrics.Errors, msg)
	st.mu.Unlock()
}

func (st *AgentState) markFallbackDay(day int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, d := range st.Metrics.FallbackDays {
		if d == day {
			return
		}
	}
	st.Metrics.FallbackDays = append(st.Metrics.FallbackDays, day)
}

// markRestaurantUsed records a place ID as consumed; returns false when it
// was already taken by another day.
func (st *AgentState) markRestaurantUsed(placeID string) bool {
	if placeID == "" {
		return true
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.usedRestaurants[placeID] {
		return false
	}
	st.usedRestaurants[placeID] = true
	return true
}

func (st *AgentState) restaurantUsed(placeID string) bool {
	if placeID == "" {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.usedRestaurants[placeID]
}

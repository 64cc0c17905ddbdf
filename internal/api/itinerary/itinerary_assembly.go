package itinerary

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// assembleItinerary turns the validated days into the final itinerary and
// closes out the metrics record. A missing day here means every earlier layer
// of fallbacks failed for that index, which is the one condition the pipeline
// treats as fatal.
func (l *ServiceImpl) assembleItinerary(ctx context.Context, st *AgentState) (*types.Itinerary, error) {
	_, span := otel.Tracer("ItineraryService").Start(ctx, "assembleItinerary")
	defer span.End()
	stageStart := time.Now()

	itinerary := &types.Itinerary{
		Destination: st.Request.Destination,
		Days:        make([]types.DayPlan, 0, st.Request.TravelDays),
	}

	for day := 1; day <= st.Request.TravelDays; day++ {
		plan, ok := st.ValidatedDays[day]
		if !ok || len(plan.Blocks) == 0 {
			err := fmt.Errorf("no valid plan produced for day %d", day)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		itinerary.Days = append(itinerary.Days, plan)

		for _, b := range plan.Blocks {
			switch b.Type {
			case types.BlockLandmark:
				st.Metrics.Landmarks++
			case types.BlockRestaurant:
				st.Metrics.Restaurants++
				if b.Mealtime != "" {
					st.Metrics.Meals[b.Mealtime]++
				}
			}
		}
	}

	st.logTiming("assembly", time.Since(stageStart), map[string]int{
		"days":        len(itinerary.Days),
		"landmarks":   st.Metrics.Landmarks,
		"restaurants": st.Metrics.Restaurants,
	})
	st.Metrics.TotalDuration = time.Since(st.start)

	l.logPerformanceSummary(ctx, st)

	span.SetAttributes(
		attribute.Int("days", len(itinerary.Days)),
		attribute.Int("landmarks", st.Metrics.Landmarks),
		attribute.Int("restaurants", st.Metrics.Restaurants),
	)
	span.SetStatus(codes.Ok, "itinerary assembled")
	return itinerary, nil
}

// logPerformanceSummary emits one structured line per stage plus the pipeline
// totals, the operational counterpart of the metrics payload returned to the
// caller.
func (l *ServiceImpl) logPerformanceSummary(ctx context.Context, st *AgentState) {
	for stage, timing := range st.Metrics.Stages {
		l.logger.InfoContext(ctx, "Pipeline stage summary",
			"stage", stage,
			"duration", timing.Duration,
			"counters", timing.Counters)
	}
	l.logger.InfoContext(ctx, "Pipeline completed",
		"destination", st.Request.Destination,
		"days", st.Request.TravelDays,
		"total_duration", st.Metrics.TotalDuration,
		"external_calls", st.Metrics.ExternalCalls,
		"calls_saved", st.Metrics.CallsSaved,
		"cache_hits", st.Metrics.CacheHits,
		"fallback_days", st.Metrics.FallbackDays,
		"unresolved_conflicts", len(st.Metrics.UnresolvedConflicts),
		"unresolved_gaps", len(st.Metrics.UnresolvedGaps),
		"errors", len(st.Metrics.Errors),
	)
}

package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

var (
	itinerariesTotal        metric.Int64Counter
	itineraryDurationSecond metric.Float64Histogram
	externalCallsTotal      metric.Int64Counter
	externalCallsSavedTotal metric.Int64Counter
	cacheHitsTotal          metric.Int64Counter
	fallbackDaysTotal       metric.Int64Counter
)

// InitializeMetrics sets up the pipeline's instruments. Call once during
// startup before any request is served.
func InitializeMetrics(meter metric.Meter) error {
	var err error

	itinerariesTotal, err = meter.Int64Counter(
		"itineraries_generated_total",
		metric.WithDescription("Total number of itineraries generated"),
	)
	if err != nil {
		return fmt.Errorf("failed to create itineraries_generated_total counter: %w", err)
	}

	itineraryDurationSecond, err = meter.Float64Histogram(
		"itinerary_generation_duration_seconds",
		metric.WithDescription("End-to-end pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create itinerary_generation_duration_seconds histogram: %w", err)
	}

	externalCallsTotal, err = meter.Int64Counter(
		"external_calls_total",
		metric.WithDescription("Total LLM and places calls issued"),
	)
	if err != nil {
		return fmt.Errorf("failed to create external_calls_total counter: %w", err)
	}

	externalCallsSavedTotal, err = meter.Int64Counter(
		"external_calls_saved_total",
		metric.WithDescription("External calls avoided via grouping and skip rules"),
	)
	if err != nil {
		return fmt.Errorf("failed to create external_calls_saved_total counter: %w", err)
	}

	cacheHitsTotal, err = meter.Int64Counter(
		"cache_hits_total",
		metric.WithDescription("Pipeline stage results served from cache"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cache_hits_total counter: %w", err)
	}

	fallbackDaysTotal, err = meter.Int64Counter(
		"fallback_days_total",
		metric.WithDescription("Days that resolved to deterministic fallback content"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fallback_days_total counter: %w", err)
	}

	return nil
}

// RecordItineraryGenerated folds one pipeline run's metrics payload into the
// exported instruments. A nil metrics payload or uninitialized instruments
// (as in tests) record nothing.
func RecordItineraryGenerated(ctx context.Context, destination string, m *types.Metrics) {
	if m == nil || itinerariesTotal == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("destination", destination))

	itinerariesTotal.Add(ctx, 1, attrs)
	itineraryDurationSecond.Record(ctx, m.TotalDuration.Seconds(), attrs)
	externalCallsTotal.Add(ctx, int64(m.ExternalCalls), attrs)
	externalCallsSavedTotal.Add(ctx, int64(m.CallsSaved), attrs)
	cacheHitsTotal.Add(ctx, int64(m.CacheHits), attrs)
	fallbackDaysTotal.Add(ctx, int64(len(m.FallbackDays)), attrs)
}

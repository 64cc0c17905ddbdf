package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/voyplan/go-itinerary-agents/config"
	generativeAI "github.com/voyplan/go-itinerary-agents/internal/api/generative_ai"
	"github.com/voyplan/go-itinerary-agents/internal/api/places"
	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// ErrInvalidRequest marks client-side input problems; everything else the
// pipeline absorbs into fallbacks or reports through metrics.
var ErrInvalidRequest = errors.New("invalid trip request")

const maxTravelDays = 30

// Service generates a complete multi-day itinerary for a trip request.
type Service interface {
	GenerateItinerary(ctx context.Context, req types.TripRequest) (*types.Itinerary, *types.Metrics, error)
}

// ServiceImpl runs the agent pipeline: unified landmark generation, duplicate
// resolution, parallel per-day enhancement, schedule validation, assembly.
type ServiceImpl struct {
	logger *slog.Logger
	llm    generativeAI.LLMClient
	places places.Client
	cache  *cache.Cache
	cfg    config.PipelineConfig
}

var _ Service = (*ServiceImpl)(nil)

func NewServiceImpl(llm generativeAI.LLMClient, placesClient places.Client, cfg config.PipelineConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		llm:    llm,
		places: placesClient,
		cache:  cache.New(cfg.CacheTTL, 0),
		cfg:    cfg,
	}
}

// cachedItinerary is the value stored for a completed request fingerprint.
type cachedItinerary struct {
	Itinerary types.Itinerary
}

// GenerateItinerary runs the full pipeline under the total time budget.
// Partial external failures degrade to deterministic content; the only fatal
// outcome after validation is a day with no usable plan at all.
func (l *ServiceImpl) GenerateItinerary(ctx context.Context, req types.TripRequest) (*types.Itinerary, *types.Metrics, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GenerateItinerary", trace.WithAttributes(
		attribute.String("destination", req.Destination),
		attribute.Int("travel_days", req.TravelDays),
	))
	defer span.End()

	if err := validateRequest(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return nil, nil, err
	}

	st := newAgentState(req, l.logger)

	if cached, found := l.cache.Get(stageCacheKey(st.Fingerprint, "itinerary")); found {
		if result, ok := cached.(cachedItinerary); ok {
			st.addCacheHit()
			st.Metrics.TotalDuration = time.Since(st.start)
			l.logger.InfoContext(ctx, "Itinerary served from cache",
				"destination", req.Destination, "days", req.TravelDays)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			span.SetStatus(codes.Ok, "served from cache")
			itinerary := result.Itinerary
			return &itinerary, st.Metrics, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.TotalBudget)
	defer cancel()

	l.generateAllLandmarks(ctx, st)
	l.detectDuplicates(ctx, st)
	l.resolveDuplicates(ctx, st)
	l.enhanceAllDays(ctx, st)
	l.validateAllDays(ctx, st)

	itinerary, err := l.assembleItinerary(ctx, st)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assembly failed")
		return nil, st.Metrics, err
	}

	l.cache.Set(stageCacheKey(st.Fingerprint, "itinerary"),
		cachedItinerary{Itinerary: *itinerary}, cache.DefaultExpiration)

	span.SetStatus(codes.Ok, "itinerary generated")
	return itinerary, st.Metrics, nil
}

func validateRequest(req types.TripRequest) error {
	if req.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if req.TravelDays < 1 {
		return fmt.Errorf("%w: travel days must be at least 1", ErrInvalidRequest)
	}
	if req.TravelDays > maxTravelDays {
		return fmt.Errorf("%w: travel days must not exceed %d", ErrInvalidRequest, maxTravelDays)
	}
	return nil
}

// enhanceAllDays fans out per day, running restaurant planning and landmark
// enhancement concurrently inside each day. Every day gets its own time
// budget; a day that blows it falls back to its generated landmarks plus
// deterministic meals rather than stalling the trip.
func (l *ServiceImpl) enhanceAllDays(ctx context.Context, st *AgentState) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "enhanceAllDays")
	defer span.End()
	stageStart := time.Now()

	results := make([][]types.ItineraryBlock, st.Request.TravelDays)

	g, gCtx := errgroup.WithContext(ctx)
	for day := 1; day <= st.Request.TravelDays; day++ {
		g.Go(func() error {
			landmarks := st.GeneratedDays[day]

			dayCtx, cancel := context.WithTimeout(gCtx, l.cfg.DayBudget)
			defer cancel()

			done := make(chan []types.ItineraryBlock, 1)
			go func() {
				var meals, enhanced []types.ItineraryBlock
				inner, innerCtx := errgroup.WithContext(dayCtx)
				inner.Go(func() error {
					meals = l.planDayMeals(innerCtx, st, day, landmarks)
					return nil
				})
				inner.Go(func() error {
					enhanced = l.enhanceDayLandmarks(innerCtx, st, landmarks)
					return nil
				})
				_ = inner.Wait()
				done <- append(enhanced, meals...)
			}()

			select {
			case blocks := <-done:
				results[day-1] = blocks
			case <-dayCtx.Done():
				l.logger.WarnContext(gCtx, "Day enhancement exceeded budget, using fallback",
					"day", day, "budget", l.cfg.DayBudget)
				st.markFallbackDay(day)
				st.addError(fmt.Sprintf("day %d enhancement exceeded its time budget", day))
				results[day-1] = l.fallbackEnhancedDay(st, day, landmarks)
			}
			return nil
		})
	}
	_ = g.Wait()

	for day := 1; day <= st.Request.TravelDays; day++ {
		st.EnhancedDays[day] = results[day-1]
	}

	span.SetAttributes(attribute.Int("days", st.Request.TravelDays))
	span.SetStatus(codes.Ok, "enhancement completed")
	st.logTiming("enhancement", time.Since(stageStart), map[string]int{
		"days": st.Request.TravelDays,
	})
}

// fallbackEnhancedDay keeps the generated landmarks untouched and fills the
// meal slots with deterministic entries.
func (l *ServiceImpl) fallbackEnhancedDay(st *AgentState, day int, landmarks []types.ItineraryBlock) []types.ItineraryBlock {
	mealTimes := regularMealTimes
	if st.ThemeParkDays[day] {
		mealTimes = themeParkMealTimes
	}
	blocks := make([]types.ItineraryBlock, 0, len(landmarks)+len(types.MealSlots))
	blocks = append(blocks, landmarks...)
	for _, meal := range types.MealSlots {
		blocks = append(blocks, l.fallbackMeal(st.Request, day, mealAnchor{Meal: meal, Time: mealTimes[meal]}))
	}
	return blocks
}

// validateAllDays runs schedule validation per day and records the gaps that
// survived repair.
func (l *ServiceImpl) validateAllDays(ctx context.Context, st *AgentState) {
	_, span := otel.Tracer("ItineraryService").Start(ctx, "validateAllDays")
	defer span.End()
	stageStart := time.Now()

	unresolvedGaps := 0
	for day := 1; day <= st.Request.TravelDays; day++ {
		validated, flags := l.validateDaySchedule(day, st.EnhancedDays[day])
		st.ValidatedDays[day] = types.DayPlan{
			Day:       day,
			Blocks:    validated,
			ThemePark: st.ThemeParkDays[day],
		}
		if len(flags) > 0 {
			st.mu.Lock()
			st.Metrics.UnresolvedGaps = append(st.Metrics.UnresolvedGaps, flags...)
			st.mu.Unlock()
			unresolvedGaps += len(flags)
		}
	}

	span.SetAttributes(attribute.Int("unresolved_gaps", unresolvedGaps))
	span.SetStatus(codes.Ok, "validation completed")
	st.logTiming("validation", time.Since(stageStart), map[string]int{
		"days":            st.Request.TravelDays,
		"unresolved_gaps": unresolvedGaps,
	})
}

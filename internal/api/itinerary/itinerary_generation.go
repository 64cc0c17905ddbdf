package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// parsedBlock is the shape the model is asked to emit for one activity.
type parsedBlock struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	StartTime   string          `json:"start_time"`
	Duration    string          `json:"duration"`
	Location    *types.Location `json:"location"`
}

// generateAllLandmarks runs the unified generation stage: one model call for
// every day of the trip, parsed into per-day landmark lists. Failed days fall
// back to deterministic content; the stage itself never fails.
func (l *ServiceImpl) generateAllLandmarks(ctx context.Context, st *AgentState) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "generateAllLandmarks", trace.WithAttributes(
		attribute.String("destination", st.Request.Destination),
		attribute.Int("travel_days", st.Request.TravelDays),
	))
	defer span.End()
	stageStart := time.Now()

	cacheKey := stageCacheKey(st.Fingerprint, "generate")
	if cached, found := l.cache.Get(cacheKey); found {
		if days, ok := cached.(map[int][]types.ItineraryBlock); ok {
			st.GeneratedDays = cloneDayMap(days)
			st.ThemeParkDays = detectThemeParkDays(st.GeneratedDays)
			st.addCacheHit()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			span.SetStatus(codes.Ok, "generation served from cache")
			st.logTiming("generation", time.Since(stageStart), map[string]int{"days": len(st.GeneratedDays), "cache_hits": 1})
			return
		}
	}

	themeParkDays := selectedThemeParkDays(st.Request)
	prompt := getUnifiedLandmarkPrompt(st.Request, themeParkDays)

	policy := newRetryPolicy(l.cfg.MaxLLMAttempts)
	days, usedFallback := retryWithFallback(ctx, policy,
		func() (map[int][]types.ItineraryBlock, error) {
			st.addExternalCalls(1)
			response, err := l.llm.Generate(ctx, prompt)
			if err != nil {
				return nil, fmt.Errorf("unified landmark generation failed: %w", err)
			}
			return parseDayResponse(response, st.Request.TravelDays)
		},
		func() map[int][]types.ItineraryBlock {
			fallback := make(map[int][]types.ItineraryBlock, st.Request.TravelDays)
			for day := 1; day <= st.Request.TravelDays; day++ {
				fallback[day] = l.createFallbackDayLandmarks(st.Request, day)
			}
			return fallback
		})
	if usedFallback {
		span.RecordError(fmt.Errorf("unified generation exhausted %d attempts", policy.maxAttempts))
		st.addError("landmark generation fell back to deterministic content for all days")
		for day := 1; day <= st.Request.TravelDays; day++ {
			st.markFallbackDay(day)
		}
	}

	// Any individual day the model skipped or emptied gets the fallback too.
	for day := 1; day <= st.Request.TravelDays; day++ {
		if len(days[day]) == 0 {
			l.logger.WarnContext(ctx, "Model returned no landmarks for day, using fallback",
				"day", day, "destination", st.Request.Destination)
			days[day] = l.createFallbackDayLandmarks(st.Request, day)
			st.markFallbackDay(day)
		}
		days[day] = shapeDayLandmarks(days[day])
	}

	st.GeneratedDays = days
	st.ThemeParkDays = detectThemeParkDays(days)
	if !usedFallback {
		l.cache.Set(cacheKey, cloneDayMap(days), cache.DefaultExpiration)
	}

	total := 0
	for _, blocks := range days {
		total += len(blocks)
	}
	span.SetAttributes(attribute.Int("landmarks.total", total), attribute.Bool("fallback", usedFallback))
	span.SetStatus(codes.Ok, "generation completed")
	st.logTiming("generation", time.Since(stageStart), map[string]int{
		"days":      len(days),
		"landmarks": total,
	})
}

// regenerateDayLandmarks issues a single-day regeneration call with an
// exclusion list. Parse failures and empty results are errors so the retry
// policy can act; the caller decides what to do when attempts run out.
func (l *ServiceImpl) regenerateDayLandmarks(ctx context.Context, st *AgentState, day int, exclusions []string) ([]types.ItineraryBlock, error) {
	prompt := getRegenerationPrompt(st.Request, day, exclusions)

	policy := newRetryPolicy(l.cfg.MaxLLMAttempts)
	blocks, err := retryOperation(ctx, policy, func() ([]types.ItineraryBlock, error) {
		st.addExternalCalls(1)
		response, err := l.llm.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("day %d regeneration failed: %w", day, err)
		}
		days, err := parseDayResponse(response, day)
		if err != nil {
			return nil, err
		}
		regenerated := days[day]
		if len(regenerated) == 0 {
			return nil, fmt.Errorf("day %d regeneration returned no landmarks", day)
		}
		return regenerated, nil
	})
	if err != nil {
		return nil, err
	}
	return shapeDayLandmarks(blocks), nil
}

// parseDayResponse decodes a {"day_N": [...]} object into per-day blocks.
// Restaurant entries are discarded; the generation prompt forbids them but
// models occasionally slip one in anyway.
func parseDayResponse(response string, maxDay int) (map[int][]types.ItineraryBlock, error) {
	cleaned := cleanJSONResponse(response)

	var raw map[string][]parsedBlock
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse day response: %w", err)
	}

	days := make(map[int][]types.ItineraryBlock)
	for key, entries := range raw {
		var day int
		if _, err := fmt.Sscanf(key, "day_%d", &day); err != nil || day < 1 || day > maxDay {
			continue
		}
		blocks := make([]types.ItineraryBlock, 0, len(entries))
		for _, e := range entries {
			if strings.TrimSpace(e.Name) == "" {
				continue
			}
			if strings.EqualFold(e.Type, types.BlockRestaurant) {
				continue
			}
			b := types.ItineraryBlock{
				ID:          uuid.New(),
				Type:        types.BlockLandmark,
				Name:        strings.TrimSpace(e.Name),
				Description: strings.TrimSpace(e.Description),
				StartTime:   e.StartTime,
				Duration:    e.Duration,
				Location:    e.Location,
			}
			if b.StartTime == "" {
				b.StartTime = "09:00"
			}
			if b.Duration == "" {
				b.Duration = "2h"
			}
			blocks = append(blocks, b)
		}
		days[day] = blocks
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("day response contained no usable days")
	}
	return days, nil
}

// shapeDayLandmarks enforces the per-day structure rules: a theme-park day
// collapses to the park alone at its fixed slot, a regular day keeps at most
// three landmarks sorted by start time.
func shapeDayLandmarks(blocks []types.ItineraryBlock) []types.ItineraryBlock {
	if len(blocks) == 0 {
		return blocks
	}

	for i := range blocks {
		if isThemeParkBlock(blocks[i]) {
			park := blocks[i]
			park.ThemePark = true
			park.StartTime = themeParkStartTime
			park.Duration = themeParkDuration
			return []types.ItineraryBlock{park}
		}
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return parseTimeToMinutes(blocks[i].StartTime) < parseTimeToMinutes(blocks[j].StartTime)
	})
	if len(blocks) > 3 {
		blocks = blocks[:3]
	}
	return blocks
}

// createFallbackDayLandmarks builds the deterministic day used when
// generation cannot produce one: the traveler's selected attractions when
// present, otherwise a generic city-highlights entry. Everything is flagged
// so downstream consumers and metrics can tell it apart from model output.
func (l *ServiceImpl) createFallbackDayLandmarks(req types.TripRequest, day int) []types.ItineraryBlock {
	selected := req.Selected[day]
	if len(selected) > 0 {
		blocks := make([]types.ItineraryBlock, 0, len(selected))
		startMinutes := parseTimeToMinutes("09:30")
		for _, a := range selected {
			b := types.ItineraryBlock{
				ID:          uuid.New(),
				Type:        types.BlockLandmark,
				Name:        a.Name,
				Description: a.Description,
				StartTime:   minutesToTime(startMinutes),
				Duration:    "2h",
				Fallback:    true,
			}
			if a.Location != nil {
				loc := *a.Location
				b.Location = &loc
			}
			if isThemeParkBlock(b) {
				b.ThemePark = true
				b.StartTime = themeParkStartTime
				b.Duration = themeParkDuration
				return []types.ItineraryBlock{b}
			}
			blocks = append(blocks, b)
			startMinutes += 150 // 2h activity plus a 30m buffer
			if len(blocks) == 3 {
				break
			}
		}
		return blocks
	}

	return []types.ItineraryBlock{
		{
			ID:          uuid.New(),
			Type:        types.BlockLandmark,
			Name:        fmt.Sprintf("%s Highlights Walking Tour", req.Destination),
			Description: fmt.Sprintf("Self-guided walk through the most popular sights of %s.", req.Destination),
			StartTime:   "10:00",
			Duration:    "3h",
			Fallback:    true,
		},
		{
			ID:          uuid.New(),
			Type:        types.BlockLandmark,
			Name:        fmt.Sprintf("%s Old Town Exploration", req.Destination),
			Description: fmt.Sprintf("Relaxed afternoon exploring the historic center of %s.", req.Destination),
			StartTime:   "14:30",
			Duration:    "2.5h",
			Fallback:    true,
		},
	}
}

// selectedThemeParkDays scans the pre-selected attractions for theme-park
// names so the generation prompt can enforce single-landmark days up front.
func selectedThemeParkDays(req types.TripRequest) []int {
	var days []int
	for day := 1; day <= req.TravelDays; day++ {
		for _, a := range req.Selected[day] {
			nameLower := strings.ToLower(a.Name)
			for _, keyword := range themeParkKeywords {
				if strings.Contains(nameLower, keyword) {
					days = append(days, day)
					break
				}
			}
			if len(days) > 0 && days[len(days)-1] == day {
				break
			}
		}
	}
	return days
}

func detectThemeParkDays(days map[int][]types.ItineraryBlock) map[int]bool {
	result := make(map[int]bool, len(days))
	for day, blocks := range days {
		result[day] = isThemeParkDay(blocks)
	}
	return result
}

func cloneDayMap(days map[int][]types.ItineraryBlock) map[int][]types.ItineraryBlock {
	cloned := make(map[int][]types.ItineraryBlock, len(days))
	for day, blocks := range days {
		copied := make([]types.ItineraryBlock, len(blocks))
		copy(copied, blocks)
		cloned[day] = copied
	}
	return cloned
}

package itinerary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// Daytime window used for gap checks and schedule placement.
const (
	wakingStartMinutes = 8 * 60  // 08:00
	wakingEndMinutes   = 22 * 60 // 22:00

	themeParkStartTime = "09:00"
	themeParkDuration  = "9h"
)

// Meal windows reserved free of landmarks. Theme-park days take breakfast
// before park entry.
var (
	regularMealTimes   = map[string]string{types.MealBreakfast: "08:30", types.MealLunch: "12:30", types.MealDinner: "19:00"}
	themeParkMealTimes = map[string]string{types.MealBreakfast: "08:00", types.MealLunch: "12:30", types.MealDinner: "19:00"}
	mealDurations      = map[string]string{types.MealBreakfast: "45m", types.MealLunch: "1h", types.MealDinner: "1.5h"}
)

var themeParkKeywords = []string{
	"universal studios", "disney world", "disneyland", "magic kingdom",
	"epcot", "hollywood studios", "animal kingdom", "islands of adventure",
	"volcano bay", "theme park", "amusement park", "six flags", "busch gardens",
	"citywalk", "city walk",
}

// cleanJSONResponse strips markdown fences and surrounding prose so a model
// reply can be fed to json.Unmarshal. Returns the input unchanged when no
// object is found; the caller's parse then fails loudly.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	if strings.HasSuffix(response, "```") {
		response = strings.TrimSuffix(response, "```")
	}
	response = strings.TrimSpace(response)

	firstBrace := strings.Index(response, "{")
	if firstBrace == -1 {
		return response
	}
	lastBrace := strings.LastIndex(response, "}")
	if lastBrace == -1 || lastBrace <= firstBrace {
		return response
	}
	return strings.TrimSpace(response[firstBrace : lastBrace+1])
}

var nameStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "at": true,
	"in": true, "on": true, "for": true, "with": true, "and": true, "&": true,
}

// normalizeName produces the comparison form used for duplicate detection
// and exclusion lists: lowercase, stop-words removed, apostrophes dropped,
// hyphens treated as spaces, whitespace collapsed.
func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "'", "")
	normalized = strings.ReplaceAll(normalized, "’", "")
	normalized = strings.ReplaceAll(normalized, "-", " ")

	words := strings.Fields(normalized)
	kept := words[:0]
	for _, w := range words {
		if !nameStopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// namesSimilar reports whether two normalized names are near-duplicates:
// identical, one contained in the other, or token overlap at or above the
// threshold relative to the smaller name.
func namesSimilar(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	overlap := 0
	for _, t := range tokensB {
		if setA[t] {
			overlap++
		}
	}
	smaller := len(tokensA)
	if len(tokensB) < smaller {
		smaller = len(tokensB)
	}
	if smaller == 0 {
		return false
	}
	return float64(overlap)/float64(smaller) >= threshold
}

// requestFingerprint derives the normalized cache key prefix for a request.
// Stage names are appended by callers so each stage caches independently.
func requestFingerprint(req types.TripRequest) string {
	payload, err := json.Marshal(req)
	if err != nil {
		payload = []byte(fmt.Sprintf("%s:%d", req.Destination, req.TravelDays))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func stageCacheKey(fingerprint, stage string) string {
	return fmt.Sprintf("%s:%s", stage, fingerprint)
}

// parseTimeToMinutes converts "HH:MM" (optionally "h:mm AM/PM") to minutes
// since midnight. Unparsable input maps to 0.
func parseTimeToMinutes(timeStr string) int {
	timeStr = strings.ToUpper(strings.TrimSpace(timeStr))

	isPM := strings.Contains(timeStr, "PM")
	isAM := strings.Contains(timeStr, "AM")
	timeStr = strings.TrimSpace(strings.NewReplacer("AM", "", "PM", "").Replace(timeStr))

	parts := strings.Split(timeStr, ":")
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0
	}
	minute := 0
	if len(parts) > 1 {
		minute, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	if isPM && hour != 12 {
		hour += 12
	} else if isAM && hour == 12 {
		hour = 0
	}
	return hour*60 + minute
}

func minutesToTime(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", (minutes/60)%24, minutes%60)
}

// parseDurationToMinutes handles "2h", "1.5h", "45m", "90min" and bare
// numbers (hours). Unparsable input defaults to one hour.
func parseDurationToMinutes(durationStr string) int {
	durationStr = strings.ToLower(strings.TrimSpace(durationStr))
	switch {
	case strings.Contains(durationStr, "min"):
		v := strings.TrimSpace(strings.NewReplacer("minutes", "", "minute", "", "min", "").Replace(durationStr))
		if minutes, err := strconv.Atoi(v); err == nil {
			return minutes
		}
	case strings.HasSuffix(durationStr, "m"):
		if minutes, err := strconv.Atoi(strings.TrimSuffix(durationStr, "m")); err == nil {
			return minutes
		}
	case strings.Contains(durationStr, "h"):
		v := strings.TrimSpace(strings.NewReplacer("hours", "", "hour", "", "h", "").Replace(durationStr))
		if hours, err := strconv.ParseFloat(v, 64); err == nil {
			return int(hours * 60)
		}
	default:
		if hours, err := strconv.ParseFloat(durationStr, 64); err == nil {
			return int(hours * 60)
		}
	}
	return 60
}

func minutesToDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%.1fh", float64(minutes)/60)
}

func blockEndMinutes(b types.ItineraryBlock) int {
	return parseTimeToMinutes(b.StartTime) + parseDurationToMinutes(b.Duration)
}

// haversineMeters returns the great-circle distance between two points.
func haversineMeters(a, b types.Location) float64 {
	const earthRadiusM = 6371000.0
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// isThemeParkBlock applies the destination heuristics: keyword match on name
// or description, or a duration long enough to dominate the day.
func isThemeParkBlock(b types.ItineraryBlock) bool {
	if b.ThemePark {
		return true
	}
	nameLower := strings.ToLower(b.Name)
	descLower := strings.ToLower(b.Description)
	for _, keyword := range themeParkKeywords {
		if strings.Contains(nameLower, keyword) || strings.Contains(descLower, keyword) {
			return true
		}
	}
	return parseDurationToMinutes(b.Duration) >= 360
}

func isThemeParkDay(blocks []types.ItineraryBlock) bool {
	for _, b := range blocks {
		if b.Type == types.BlockLandmark && isThemeParkBlock(b) {
			return true
		}
	}
	return false
}

// retryPolicy is the bounded-retry policy shared by generation,
// regeneration and enhancement: at most maxAttempts tries, then the
// caller's fallback constructor.
type retryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
}

func newRetryPolicy(maxAttempts int) retryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return retryPolicy{maxAttempts: maxAttempts, initialDelay: 200 * time.Millisecond}
}

func retryOperation[T any](ctx context.Context, p retryPolicy, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initialDelay
	return backoff.Retry(ctx, backoff.Operation[T](op),
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(p.maxAttempts)),
	)
}

// retryWithFallback runs op under the policy and substitutes the fallback
// result when every attempt fails. The boolean reports whether the fallback
// was used.
func retryWithFallback[T any](ctx context.Context, p retryPolicy, op func() (T, error), fallback func() T) (T, bool) {
	result, err := retryOperation(ctx, p, op)
	if err != nil {
		return fallback(), true
	}
	return result, false
}

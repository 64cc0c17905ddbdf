package itinerary

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/voyplan/go-itinerary-agents/internal/api/places"
	"github.com/voyplan/go-itinerary-agents/internal/types"
)

var mealDescriptions = map[string]string{
	types.MealBreakfast: "Start the day with a local breakfast near your morning activities.",
	types.MealLunch:     "Midday meal close to the afternoon's attractions.",
	types.MealDinner:    "Evening dining to wind down near the day's final stop.",
}

// cuisineLabels maps place types to the wording used in restaurant
// descriptions. First match in listed order wins.
var cuisineLabels = []struct {
	placeType string
	label     string
}{
	{"cafe", "Cozy cafe"},
	{"bakery", "Fresh bakery"},
	{"bar", "Casual bar and grill"},
	{"meal_takeaway", "Quick local eatery"},
	{"italian_restaurant", "Italian restaurant"},
	{"japanese_restaurant", "Japanese restaurant"},
	{"french_restaurant", "French restaurant"},
	{"seafood_restaurant", "Seafood restaurant"},
}

// restaurantDescription builds the block description from the place's types,
// falling back to the generic per-meal line. Addresses stay out of
// descriptions; they have their own field.
func restaurantDescription(placeTypes []string, meal string) string {
	for _, entry := range cuisineLabels {
		for _, pt := range placeTypes {
			if pt == entry.placeType {
				return fmt.Sprintf("%s, a good %s choice nearby.", entry.label, meal)
			}
		}
	}
	return mealDescriptions[meal]
}

// mealAnchor pairs a meal slot with the landmark it should be eaten near.
type mealAnchor struct {
	Meal     string
	Time     string
	Location *types.Location
}

// planDayMeals schedules exactly three meals for a day, anchored to the
// landmarks nearest each meal time. Anchors that sit close together share a
// single nearby search, which is where most of the external-call savings of
// the pipeline come from.
func (l *ServiceImpl) planDayMeals(ctx context.Context, st *AgentState, day int, landmarks []types.ItineraryBlock) []types.ItineraryBlock {
	themePark := st.ThemeParkDays[day]
	mealTimes := regularMealTimes
	if themePark {
		mealTimes = themeParkMealTimes
	}

	anchors := make([]mealAnchor, 0, len(types.MealSlots))
	for _, meal := range types.MealSlots {
		anchors = append(anchors, mealAnchor{
			Meal:     meal,
			Time:     mealTimes[meal],
			Location: nearestLandmarkLocation(landmarks, mealTimes[meal]),
		})
	}

	clusters := clusterAnchors(anchors, l.cfg.MealProximityMeters)

	meals := make([]types.ItineraryBlock, 0, len(types.MealSlots))
	for _, cluster := range clusters {
		results := l.searchRestaurantsFor(ctx, st, cluster)
		if len(cluster) > 1 {
			st.addCallsSaved(len(cluster) - 1)
		}
		for _, anchor := range cluster {
			meals = append(meals, l.pickRestaurant(st, day, anchor, results))
		}
	}
	return meals
}

// nearestLandmarkLocation returns the location of the landmark whose start
// time is closest to the meal time. Landmarks without coordinates cannot
// anchor a search.
func nearestLandmarkLocation(landmarks []types.ItineraryBlock, mealTime string) *types.Location {
	mealMinutes := parseTimeToMinutes(mealTime)
	var best *types.Location
	bestDistance := -1
	for _, b := range landmarks {
		if b.Type != types.BlockLandmark || b.Location == nil {
			continue
		}
		distance := parseTimeToMinutes(b.StartTime) - mealMinutes
		if distance < 0 {
			distance = -distance
		}
		if bestDistance == -1 || distance < bestDistance {
			bestDistance = distance
			loc := *b.Location
			best = &loc
		}
	}
	return best
}

// clusterAnchors greedily groups anchors whose landmark positions fall within
// proximityMeters of the cluster's first member. Anchors without a location
// each form their own cluster and resolve to fallback meals.
func clusterAnchors(anchors []mealAnchor, proximityMeters float64) [][]mealAnchor {
	var clusters [][]mealAnchor
	used := make([]bool, len(anchors))
	for i := range anchors {
		if used[i] {
			continue
		}
		used[i] = true
		cluster := []mealAnchor{anchors[i]}
		if anchors[i].Location != nil {
			for j := i + 1; j < len(anchors); j++ {
				if used[j] || anchors[j].Location == nil {
					continue
				}
				if haversineMeters(*anchors[i].Location, *anchors[j].Location) <= proximityMeters {
					used[j] = true
					cluster = append(cluster, anchors[j])
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// searchRestaurantsFor runs one nearby search for a cluster, centered on the
// average of the member anchors, widening the radius once before giving up.
func (l *ServiceImpl) searchRestaurantsFor(ctx context.Context, st *AgentState, cluster []mealAnchor) []places.PlaceSummary {
	centroid := clusterCentroid(cluster)
	if centroid == nil {
		return nil
	}

	for _, radius := range []int{l.cfg.SearchRadiusMeters, l.cfg.WidenedRadiusMeters} {
		st.addExternalCalls(1)
		results, err := l.places.SearchNearby(ctx, *centroid, radius, "restaurant", "")
		if err != nil {
			l.logger.WarnContext(ctx, "Restaurant search failed",
				"radius_m", radius, "error", err)
			continue
		}
		if len(results) > 0 {
			return results
		}
	}
	return nil
}

func clusterCentroid(cluster []mealAnchor) *types.Location {
	var sum types.Location
	count := 0
	for _, anchor := range cluster {
		if anchor.Location == nil {
			continue
		}
		sum.Lat += anchor.Location.Lat
		sum.Lng += anchor.Location.Lng
		count++
	}
	if count == 0 {
		return nil
	}
	return &types.Location{Lat: sum.Lat / float64(count), Lng: sum.Lng / float64(count)}
}

// pickRestaurant takes the first search result not yet used anywhere in the
// trip. When nothing usable remains the meal becomes a deterministic fallback
// entry so the day still carries three meals.
func (l *ServiceImpl) pickRestaurant(st *AgentState, day int, anchor mealAnchor, results []places.PlaceSummary) types.ItineraryBlock {
	for _, candidate := range results {
		if !st.markRestaurantUsed(candidate.PlaceID) {
			continue
		}
		block := types.ItineraryBlock{
			ID:          uuid.New(),
			Type:        types.BlockRestaurant,
			Name:        candidate.Name,
			Description: restaurantDescription(candidate.Types, anchor.Meal),
			StartTime:   anchor.Time,
			Duration:    mealDurations[anchor.Meal],
			Mealtime:    anchor.Meal,
			PlaceID:     candidate.PlaceID,
			Rating:      candidate.Rating,
			Address:     candidate.Address,
		}
		if candidate.Location != (types.Location{}) {
			loc := candidate.Location
			block.Location = &loc
		}
		if candidate.PhotoRef != "" {
			block.PhotoURL = photoProxyURL(candidate.PhotoRef)
		}
		return block
	}
	return l.fallbackMeal(st.Request, day, anchor)
}

// fallbackMeal is the deterministic entry used when no restaurant could be
// found or all results were already taken by other days.
func (l *ServiceImpl) fallbackMeal(req types.TripRequest, day int, anchor mealAnchor) types.ItineraryBlock {
	label := titleWord(anchor.Meal)
	return types.ItineraryBlock{
		ID:          uuid.New(),
		Type:        types.BlockRestaurant,
		Name:        fmt.Sprintf("Popular %s %s Spot", req.Destination, label),
		Description: fmt.Sprintf("Ask locally for a well-rated %s option near day %d's activities.", anchor.Meal, day),
		StartTime:   anchor.Time,
		Duration:    mealDurations[anchor.Meal],
		Mealtime:    anchor.Meal,
		Fallback:    true,
	}
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func photoProxyURL(photoRef string) string {
	return fmt.Sprintf("/photo-proxy/%s?maxwidth=400&maxheight=400", photoRef)
}

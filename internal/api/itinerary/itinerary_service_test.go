package itinerary

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voyplan/go-itinerary-agents/internal/api/places"
	"github.com/voyplan/go-itinerary-agents/internal/types"
)

const unifiedParisResponse = `{
	"day_1": [
		{"name": "Eiffel Tower", "type": "landmark", "description": "Iconic iron tower",
		 "start_time": "10:00", "duration": "2h", "location": {"lat": 48.8584, "lng": 2.2945}},
		{"name": "Trocadero Gardens", "type": "landmark", "description": "Gardens with tower views",
		 "start_time": "14:00", "duration": "2h", "location": {"lat": 48.8638, "lng": 2.2945}}
	],
	"day_2": [
		{"name": "Arc de Triomphe", "type": "landmark", "description": "Triumphal arch",
		 "start_time": "09:30", "duration": "1.5h", "location": {"lat": 48.8738, "lng": 2.2950}},
		{"name": "Musee de l'Armee", "type": "landmark", "description": "Military history museum",
		 "start_time": "14:30", "duration": "2h", "location": {"lat": 48.8570, "lng": 2.3120}}
	]
}`

var parisLandmarkNames = []string{"Eiffel Tower", "Trocadero Gardens", "Arc de Triomphe", "Musee de l'Armee"}

// registerLandmarkLookups wires one nearby-search expectation per landmark so
// enhancement resolves each name to a full place record without a details call.
func registerLandmarkLookups(placesClient *MockPlacesClient, names []string) {
	for i, name := range names {
		placesClient.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, "", name).
			Return([]places.PlaceSummary{{
				PlaceID:  fmt.Sprintf("landmark-%d", i),
				Name:     name,
				Address:  fmt.Sprintf("%d Avenue des Tests, Paris", i+1),
				Rating:   4.5,
				Location: types.Location{Lat: 48.86, Lng: 2.30},
				PhotoRef: fmt.Sprintf("ref-%d", i),
			}}, nil)
	}
}

func TestGenerateItinerary(t *testing.T) {
	ctx := context.Background()

	t.Run("full pipeline produces a complete two-day itinerary", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(unifiedParisResponse, nil).Once()

		placesClient := new(MockPlacesClient)
		placesClient.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, "restaurant", "").
			Return(restaurantFixtures(10), nil)
		registerLandmarkLookups(placesClient, parisLandmarkNames)

		svc := newTestService(llm, placesClient, testConfig())
		req := types.TripRequest{Destination: "Paris", TravelDays: 2}

		itinerary, metrics, err := svc.GenerateItinerary(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, itinerary)
		require.NotNil(t, metrics)

		assert.Equal(t, "Paris", itinerary.Destination)
		require.Len(t, itinerary.Days, 2)

		seenNames := map[string]int{}
		for i, day := range itinerary.Days {
			assert.Equal(t, i+1, day.Day)

			restaurants := day.Restaurants()
			require.Len(t, restaurants, 3, "every day gets exactly three meals")
			assert.Equal(t, types.MealBreakfast, restaurants[0].Mealtime)
			assert.Equal(t, types.MealLunch, restaurants[1].Mealtime)
			assert.Equal(t, types.MealDinner, restaurants[2].Mealtime)

			landmarks := day.Landmarks()
			require.Len(t, landmarks, 2)
			for _, b := range landmarks {
				seenNames[normalizeName(b.Name)]++
				assert.NotEmpty(t, b.PlaceID, "landmark %s enhanced", b.Name)
				assert.NotEmpty(t, b.Address)
				assert.Contains(t, b.PhotoURL, "/photo-proxy/")
			}

			// Chronological order within the day.
			for j := 1; j < len(day.Blocks); j++ {
				assert.LessOrEqual(t,
					parseTimeToMinutes(day.Blocks[j-1].StartTime),
					parseTimeToMinutes(day.Blocks[j].StartTime))
			}
		}
		for name, count := range seenNames {
			assert.Equal(t, 1, count, "landmark %s repeats across days", name)
		}

		assert.Equal(t, 4, metrics.Landmarks)
		assert.Equal(t, 6, metrics.Restaurants)
		assert.Equal(t, map[string]int{"breakfast": 2, "lunch": 2, "dinner": 2}, metrics.Meals)
		assert.Positive(t, metrics.ExternalCalls)
		assert.GreaterOrEqual(t, metrics.CallsSaved, 2, "grouped restaurant searches save calls")
		assert.Empty(t, metrics.FallbackDays)
		assert.Empty(t, metrics.UnresolvedGaps)

		for _, stage := range []string{"generation", "duplicate_detection", "duplicate_resolution", "enhancement", "validation", "assembly"} {
			assert.Contains(t, metrics.Stages, stage)
		}

		llm.AssertExpectations(t)
	})

	t.Run("total model outage still yields a complete itinerary", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model down"))

		svc := newTestService(llm, new(MockPlacesClient), testConfig())
		req := types.TripRequest{Destination: "Lisbon", TravelDays: 3}

		itinerary, metrics, err := svc.GenerateItinerary(ctx, req)
		require.NoError(t, err, "degraded is not failed")
		require.Len(t, itinerary.Days, 3)

		for _, day := range itinerary.Days {
			require.NotEmpty(t, day.Blocks)
			assert.Len(t, day.Restaurants(), 3)
			for _, b := range day.Blocks {
				assert.True(t, b.Fallback, "all content is deterministic fallback")
			}
		}
		assert.ElementsMatch(t, []int{1, 2, 3}, metrics.FallbackDays)
		assert.NotEmpty(t, metrics.Errors)
	})

	t.Run("identical request is served from cache without new calls", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(unifiedParisResponse, nil).Times(1)

		placesClient := new(MockPlacesClient)
		restaurantCalls := 0
		placesClient.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, "restaurant", "").
			Run(func(args mock.Arguments) { restaurantCalls++ }).
			Return(restaurantFixtures(10), nil)
		registerLandmarkLookups(placesClient, parisLandmarkNames)

		svc := newTestService(llm, placesClient, testConfig())
		req := types.TripRequest{Destination: "Paris", TravelDays: 2}

		first, _, err := svc.GenerateItinerary(ctx, req)
		require.NoError(t, err)
		callsAfterFirst := restaurantCalls

		second, metrics, err := svc.GenerateItinerary(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, 1, metrics.CacheHits)
		assert.Zero(t, metrics.ExternalCalls, "cached run issues no external calls")
		assert.Equal(t, callsAfterFirst, restaurantCalls)
		assert.Equal(t, first.Destination, second.Destination)
		assert.Equal(t, len(first.Days), len(second.Days))
		llm.AssertExpectations(t)
	})

	t.Run("day budget expiry keeps the landmarks and falls back on meals", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(`{
			"day_1": [{"name": "Eiffel Tower", "type": "landmark", "start_time": "10:00",
			           "duration": "2h", "location": {"lat": 48.8584, "lng": 2.2945}},
			          {"name": "Trocadero Gardens", "type": "landmark", "start_time": "15:30",
			           "duration": "2h", "location": {"lat": 48.8638, "lng": 2.2945}}]
		}`, nil).Once()

		// Every place lookup stalls well past the per-day budget.
		placesClient := new(MockPlacesClient)
		placesClient.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { time.Sleep(300 * time.Millisecond) }).
			Return(restaurantFixtures(5), nil).Maybe()

		cfg := testConfig()
		cfg.DayBudget = 50 * time.Millisecond
		svc := newTestService(llm, placesClient, cfg)

		itinerary, metrics, err := svc.GenerateItinerary(ctx, types.TripRequest{Destination: "Paris", TravelDays: 1})
		require.NoError(t, err, "a slow day degrades, it does not fail")
		require.Len(t, itinerary.Days, 1)

		day := itinerary.Days[0]
		landmarks := day.Landmarks()
		require.Len(t, landmarks, 2, "generated landmarks survive the timeout")
		assert.Equal(t, "Eiffel Tower", landmarks[0].Name)
		assert.Empty(t, landmarks[0].PlaceID, "enhancement did not finish")

		restaurants := day.Restaurants()
		require.Len(t, restaurants, 3)
		for _, m := range restaurants {
			assert.True(t, m.Fallback)
			assert.Empty(t, m.PlaceID)
		}

		assert.Contains(t, metrics.FallbackDays, 1)
		assert.NotEmpty(t, metrics.Errors)
	})

	t.Run("invalid requests are rejected up front", func(t *testing.T) {
		svc := newTestService(new(MockLLMClient), new(MockPlacesClient), testConfig())

		_, _, err := svc.GenerateItinerary(ctx, types.TripRequest{Destination: "", TravelDays: 2})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, _, err = svc.GenerateItinerary(ctx, types.TripRequest{Destination: "Paris", TravelDays: 0})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, _, err = svc.GenerateItinerary(ctx, types.TripRequest{Destination: "Paris", TravelDays: 99})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("theme park day keeps the park as its only landmark", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(`{
			"day_1": [{"name": "Universal Studios Florida", "type": "landmark",
			           "start_time": "09:00", "duration": "9h",
			           "location": {"lat": 28.4743, "lng": -81.4678}},
			          {"name": "Lake Eola Park", "type": "landmark",
			           "start_time": "19:30", "duration": "1h"}]
		}`, nil).Once()

		placesClient := new(MockPlacesClient)
		placesClient.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, "restaurant", "").
			Return(restaurantFixtures(5), nil)
		registerLandmarkLookups(placesClient, []string{"Universal Studios Florida"})

		svc := newTestService(llm, placesClient, testConfig())
		req := types.TripRequest{Destination: "Orlando", TravelDays: 1}

		itinerary, _, err := svc.GenerateItinerary(ctx, req)
		require.NoError(t, err)
		require.Len(t, itinerary.Days, 1)

		day := itinerary.Days[0]
		assert.True(t, day.ThemePark)
		landmarks := day.Landmarks()
		require.Len(t, landmarks, 1, "theme park absorbs the day")
		assert.True(t, landmarks[0].ThemePark)

		restaurants := day.Restaurants()
		require.Len(t, restaurants, 3)
		assert.Equal(t, "08:00", restaurants[0].StartTime, "breakfast moves before park opening")
	})
}

package itinerary

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

func TestParseDayResponse(t *testing.T) {
	t.Run("parses days and applies defaults", func(t *testing.T) {
		response := "```json\n" + `{
			"day_1": [
				{"name": "Eiffel Tower", "type": "landmark", "description": "Iron lattice tower", "start_time": "09:00", "duration": "2h"},
				{"name": "Louvre Museum", "type": "landmark"}
			],
			"day_2": [
				{"name": "Arc de Triomphe", "type": "landmark", "start_time": "10:00", "duration": "1.5h"}
			]
		}` + "\n```"

		days, err := parseDayResponse(response, 2)
		require.NoError(t, err)
		require.Len(t, days, 2)
		require.Len(t, days[1], 2)

		assert.Equal(t, "Eiffel Tower", days[1][0].Name)
		assert.Equal(t, "09:00", days[1][1].StartTime, "missing start time defaults")
		assert.Equal(t, "2h", days[1][1].Duration, "missing duration defaults")
		assert.NotEqual(t, days[1][0].ID, days[1][1].ID)
	})

	t.Run("discards restaurants and unnamed entries", func(t *testing.T) {
		response := `{"day_1": [
			{"name": "Cafe de Flore", "type": "restaurant"},
			{"name": "", "type": "landmark"},
			{"name": "Pantheon", "type": "landmark"}
		]}`

		days, err := parseDayResponse(response, 1)
		require.NoError(t, err)
		require.Len(t, days[1], 1)
		assert.Equal(t, "Pantheon", days[1][0].Name)
	})

	t.Run("ignores out-of-range day keys", func(t *testing.T) {
		response := `{"day_1": [{"name": "Pantheon", "type": "landmark"}], "day_9": [{"name": "Ghost", "type": "landmark"}], "notes": []}`

		days, err := parseDayResponse(response, 2)
		require.NoError(t, err)
		assert.Len(t, days, 1)
	})

	t.Run("malformed body is an error", func(t *testing.T) {
		_, err := parseDayResponse("I could not produce an itinerary", 2)
		assert.Error(t, err)
	})
}

func TestShapeDayLandmarks(t *testing.T) {
	t.Run("theme park collapses the day", func(t *testing.T) {
		blocks := []types.ItineraryBlock{
			{Type: types.BlockLandmark, Name: "CityWalk Stroll", StartTime: "18:00", Duration: "2h"},
			{Type: types.BlockLandmark, Name: "Universal Studios Florida", StartTime: "10:00", Duration: "4h"},
		}

		shaped := shapeDayLandmarks(blocks)
		require.Len(t, shaped, 1)
		assert.True(t, shaped[0].ThemePark)
		assert.Equal(t, themeParkStartTime, shaped[0].StartTime)
		assert.Equal(t, themeParkDuration, shaped[0].Duration)
	})

	t.Run("regular day sorts and caps at three", func(t *testing.T) {
		blocks := []types.ItineraryBlock{
			{Type: types.BlockLandmark, Name: "D", StartTime: "17:00", Duration: "1h"},
			{Type: types.BlockLandmark, Name: "A", StartTime: "09:00", Duration: "2h"},
			{Type: types.BlockLandmark, Name: "C", StartTime: "15:00", Duration: "1h"},
			{Type: types.BlockLandmark, Name: "B", StartTime: "13:00", Duration: "2h"},
		}

		shaped := shapeDayLandmarks(blocks)
		require.Len(t, shaped, 3)
		assert.Equal(t, []string{"A", "B", "C"}, []string{shaped[0].Name, shaped[1].Name, shaped[2].Name})
	})
}

func TestCreateFallbackDayLandmarks(t *testing.T) {
	svc := newTestService(new(MockLLMClient), new(MockPlacesClient), testConfig())

	t.Run("uses selected attractions when present", func(t *testing.T) {
		req := types.TripRequest{
			Destination: "Paris",
			TravelDays:  2,
			Selected: map[int][]types.Attraction{
				1: {{Name: "Eiffel Tower", Type: "landmark"}, {Name: "Louvre", Type: "landmark"}},
			},
		}
		blocks := svc.createFallbackDayLandmarks(req, 1)
		require.Len(t, blocks, 2)
		for _, b := range blocks {
			assert.True(t, b.Fallback)
			assert.Equal(t, types.BlockLandmark, b.Type)
		}
		assert.Equal(t, "Eiffel Tower", blocks[0].Name)
	})

	t.Run("selected attraction coordinates are copied onto the block", func(t *testing.T) {
		req := types.TripRequest{
			Destination: "Paris",
			TravelDays:  1,
			Selected: map[int][]types.Attraction{
				1: {
					{Name: "Eiffel Tower", Location: &types.Location{Lat: 48.8584, Lng: 2.2945}},
					{Name: "Mystery Stop"},
				},
			},
		}
		blocks := svc.createFallbackDayLandmarks(req, 1)
		require.Len(t, blocks, 2)

		require.NotNil(t, blocks[0].Location)
		assert.Equal(t, 48.8584, blocks[0].Location.Lat)
		assert.NotSame(t, req.Selected[1][0].Location, blocks[0].Location, "block owns its own copy")
		assert.Nil(t, blocks[1].Location)
	})

	t.Run("selected theme park takes the whole day", func(t *testing.T) {
		req := types.TripRequest{
			Destination: "Orlando",
			TravelDays:  1,
			Selected: map[int][]types.Attraction{
				1: {{Name: "Magic Kingdom", Type: "landmark"}, {Name: "Some Museum", Type: "landmark"}},
			},
		}
		blocks := svc.createFallbackDayLandmarks(req, 1)
		require.Len(t, blocks, 1)
		assert.True(t, blocks[0].ThemePark)
		assert.Equal(t, themeParkDuration, blocks[0].Duration)
	})

	t.Run("generic content without selections", func(t *testing.T) {
		req := types.TripRequest{Destination: "Lisbon", TravelDays: 1}
		blocks := svc.createFallbackDayLandmarks(req, 1)
		require.Len(t, blocks, 2)
		assert.Contains(t, blocks[0].Name, "Lisbon")
		assert.True(t, blocks[0].Fallback)
	})
}

func TestGenerateAllLandmarks(t *testing.T) {
	ctx := context.Background()

	t.Run("parses the unified response", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(`{
			"day_1": [{"name": "Eiffel Tower", "type": "landmark", "start_time": "09:00", "duration": "2h"},
			          {"name": "Musee d'Orsay", "type": "landmark", "start_time": "14:00", "duration": "2h"}],
			"day_2": [{"name": "Arc de Triomphe", "type": "landmark", "start_time": "09:30", "duration": "1.5h"},
			          {"name": "Sainte-Chapelle", "type": "landmark", "start_time": "13:00", "duration": "1h"}]
		}`, nil).Once()

		svc := newTestService(llm, new(MockPlacesClient), testConfig())
		st := newTestState(types.TripRequest{Destination: "Paris", TravelDays: 2})

		svc.generateAllLandmarks(ctx, st)

		require.Len(t, st.GeneratedDays, 2)
		assert.Len(t, st.GeneratedDays[1], 2)
		assert.Empty(t, st.Metrics.FallbackDays)
		assert.Equal(t, 1, st.Metrics.ExternalCalls)
		llm.AssertExpectations(t)
	})

	t.Run("model failure degrades to fallback days", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model unavailable"))

		svc := newTestService(llm, new(MockPlacesClient), testConfig())
		st := newTestState(types.TripRequest{Destination: "Paris", TravelDays: 2})

		svc.generateAllLandmarks(ctx, st)

		require.Len(t, st.GeneratedDays, 2)
		for day := 1; day <= 2; day++ {
			require.NotEmpty(t, st.GeneratedDays[day])
			for _, b := range st.GeneratedDays[day] {
				assert.True(t, b.Fallback)
			}
		}
		assert.ElementsMatch(t, []int{1, 2}, st.Metrics.FallbackDays)
		assert.NotEmpty(t, st.Metrics.Errors)
	})

	t.Run("day missing from the response gets fallback content", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(
			`{"day_1": [{"name": "Eiffel Tower", "type": "landmark"}]}`, nil).Once()

		svc := newTestService(llm, new(MockPlacesClient), testConfig())
		st := newTestState(types.TripRequest{Destination: "Paris", TravelDays: 2})

		svc.generateAllLandmarks(ctx, st)

		require.NotEmpty(t, st.GeneratedDays[2])
		assert.True(t, st.GeneratedDays[2][0].Fallback)
		assert.Equal(t, []int{2}, st.Metrics.FallbackDays)
	})

	t.Run("second run with the same fingerprint hits the cache", func(t *testing.T) {
		llm := new(MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(
			`{"day_1": [{"name": "Eiffel Tower", "type": "landmark"}]}`, nil).Once()

		svc := newTestService(llm, new(MockPlacesClient), testConfig())
		req := types.TripRequest{Destination: "Paris", TravelDays: 1}

		first := newTestState(req)
		svc.generateAllLandmarks(ctx, first)

		second := newTestState(req)
		svc.generateAllLandmarks(ctx, second)

		assert.Equal(t, 1, second.Metrics.CacheHits)
		assert.Zero(t, second.Metrics.ExternalCalls)
		assert.Equal(t, first.GeneratedDays[1][0].Name, second.GeneratedDays[1][0].Name)
		llm.AssertExpectations(t)
	})
}

func TestSelectedThemeParkDays(t *testing.T) {
	req := types.TripRequest{
		Destination: "Orlando",
		TravelDays:  3,
		Selected: map[int][]types.Attraction{
			1: {{Name: "Orlando Science Center"}},
			2: {{Name: "Universal Studios Florida"}},
			3: {{Name: "Disney World Magic Kingdom"}},
		},
	}
	assert.Equal(t, []int{2, 3}, selectedThemeParkDays(req))
}

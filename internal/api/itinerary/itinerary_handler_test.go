package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// MockItineraryService is a mock implementation of Service
type MockItineraryService struct {
	mock.Mock
}

func (m *MockItineraryService) GenerateItinerary(ctx context.Context, req types.TripRequest) (*types.Itinerary, *types.Metrics, error) {
	args := m.Called(ctx, req)
	var itinerary *types.Itinerary
	if args.Get(0) != nil {
		itinerary = args.Get(0).(*types.Itinerary)
	}
	var metrics *types.Metrics
	if args.Get(1) != nil {
		metrics = args.Get(1).(*types.Metrics)
	}
	return itinerary, metrics, args.Error(2)
}

func postItinerary(t *testing.T, handler *ItineraryHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/itinerary", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.GenerateItinerary(rr, req)
	return rr
}

func TestGenerateItineraryHandler(t *testing.T) {
	t.Run("returns itinerary and metrics", func(t *testing.T) {
		svc := new(MockItineraryService)
		svc.On("GenerateItinerary", mock.Anything, types.TripRequest{Destination: "Paris", TravelDays: 2}).
			Return(
				&types.Itinerary{Destination: "Paris", Days: []types.DayPlan{{Day: 1}, {Day: 2}}},
				types.NewMetrics(),
				nil,
			).Once()

		handler := NewItineraryHandler(svc, testLogger())
		rr := postItinerary(t, handler, `{"destination": "Paris", "travel_days": 2}`)

		require.Equal(t, http.StatusOK, rr.Code)

		var resp generateResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Paris", resp.Itinerary.Destination)
		assert.Len(t, resp.Itinerary.Days, 2)
		require.NotNil(t, resp.Metrics)
		svc.AssertExpectations(t)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		svc := new(MockItineraryService)
		handler := NewItineraryHandler(svc, testLogger())

		rr := postItinerary(t, handler, `{"destination": `)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "GenerateItinerary", mock.Anything, mock.Anything)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		svc := new(MockItineraryService)
		handler := NewItineraryHandler(svc, testLogger())

		rr := postItinerary(t, handler, `{"destination": "Paris", "travel_days": 2, "budget": 100}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid request errors map to 400", func(t *testing.T) {
		svc := new(MockItineraryService)
		svc.On("GenerateItinerary", mock.Anything, mock.Anything).
			Return(nil, nil, fmt.Errorf("%w: travel days must be at least 1", ErrInvalidRequest)).Once()

		handler := NewItineraryHandler(svc, testLogger())
		rr := postItinerary(t, handler, `{"destination": "Paris", "travel_days": 0}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "travel days")
	})

	t.Run("pipeline failures map to 500", func(t *testing.T) {
		svc := new(MockItineraryService)
		svc.On("GenerateItinerary", mock.Anything, mock.Anything).
			Return(nil, nil, errors.New("no valid plan produced for day 2")).Once()

		handler := NewItineraryHandler(svc, testLogger())
		rr := postItinerary(t, handler, `{"destination": "Paris", "travel_days": 2}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

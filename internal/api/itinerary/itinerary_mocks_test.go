package itinerary

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/voyplan/go-itinerary-agents/config"
	"github.com/voyplan/go-itinerary-agents/internal/api/places"
	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// MockLLMClient is a mock implementation of generativeAI.LLMClient
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockPlacesClient is a mock implementation of places.Client
type MockPlacesClient struct {
	mock.Mock
}

func (m *MockPlacesClient) SearchNearby(ctx context.Context, loc types.Location, radiusMeters int, placeType, keyword string) ([]places.PlaceSummary, error) {
	args := m.Called(ctx, loc, radiusMeters, placeType, keyword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]places.PlaceSummary), args.Error(1)
}

func (m *MockPlacesClient) GetDetails(ctx context.Context, placeID string) (*places.PlaceDetails, error) {
	args := m.Called(ctx, placeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*places.PlaceDetails), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.PipelineConfig {
	cfg := config.DefaultPipelineConfig()
	// Keep retry waits out of the test runtime.
	cfg.MaxLLMAttempts = 1
	return cfg
}

func newTestService(llm *MockLLMClient, placesClient *MockPlacesClient, cfg config.PipelineConfig) *ServiceImpl {
	return NewServiceImpl(llm, placesClient, cfg, testLogger())
}

func newTestState(req types.TripRequest) *AgentState {
	return newAgentState(req, testLogger())
}

package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// PlaceSummary is one result from a nearby search.
type PlaceSummary struct {
	PlaceID  string         `json:"place_id"`
	Name     string         `json:"name"`
	Address  string         `json:"address,omitempty"`
	Rating   float64        `json:"rating,omitempty"`
	Location types.Location `json:"location"`
	Types    []string       `json:"types,omitempty"`
	PhotoRef string         `json:"photo_ref,omitempty"`
}

// PlaceDetails is the lookup result for a known place ID. Any field may be
// empty; partial data is not an error.
type PlaceDetails struct {
	Address  string  `json:"address,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	PhotoRef string  `json:"photo_ref,omitempty"`
}

// Client is the place search/lookup capability consumed by the enhancement
// agents.
type Client interface {
	SearchNearby(ctx context.Context, loc types.Location, radiusMeters int, placeType, keyword string) ([]PlaceSummary, error)
	GetDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// GoogleClient talks to the Google Places Web Service.
type GoogleClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Client = (*GoogleClient)(nil)

func NewGoogleClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*GoogleClient, error) {
	apiKey := os.Getenv("GOOGLE_PLACES_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_PLACES_API_KEY environment variable is not set")
	}
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/place"
	}
	return &GoogleClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type nearbyResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID  string   `json:"place_id"`
		Name     string   `json:"name"`
		Vicinity string   `json:"vicinity"`
		Rating   float64  `json:"rating"`
		Types    []string `json:"types"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"results"`
}

func (c *GoogleClient) SearchNearby(ctx context.Context, loc types.Location, radiusMeters int, placeType, keyword string) ([]PlaceSummary, error) {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", loc.Lat, loc.Lng))
	q.Set("radius", strconv.Itoa(radiusMeters))
	if placeType != "" {
		q.Set("type", placeType)
	}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	q.Set("key", c.apiKey)

	endpoint := fmt.Sprintf("%s/nearbysearch/json?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build nearby search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nearby search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nearby search returned status %d", resp.StatusCode)
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode nearby search response: %w", err)
	}
	if body.Status != "OK" && body.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("nearby search status %s", body.Status)
	}

	summaries := make([]PlaceSummary, 0, len(body.Results))
	for _, r := range body.Results {
		s := PlaceSummary{
			PlaceID: r.PlaceID,
			Name:    r.Name,
			Address: r.Vicinity,
			Rating:  r.Rating,
			Types:   r.Types,
			Location: types.Location{
				Lat: r.Geometry.Location.Lat,
				Lng: r.Geometry.Location.Lng,
			},
		}
		if len(r.Photos) > 0 {
			s.PhotoRef = r.Photos[0].PhotoReference
		}
		summaries = append(summaries, s)
	}
	c.logger.DebugContext(ctx, "Nearby search completed",
		slog.String("keyword", keyword), slog.Int("results", len(summaries)))
	return summaries, nil
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		FormattedAddress string  `json:"formatted_address"`
		Rating           float64 `json:"rating"`
		Photos           []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"result"`
}

func (c *GoogleClient) GetDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "formatted_address,rating,photo")
	q.Set("key", c.apiKey)

	endpoint := fmt.Sprintf("%s/details/json?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build details request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("place details lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("place details returned status %d", resp.StatusCode)
	}

	var body detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode details response: %w", err)
	}
	if body.Status != "OK" {
		return nil, fmt.Errorf("place details status %s", body.Status)
	}

	details := &PlaceDetails{
		Address: body.Result.FormattedAddress,
		Rating:  body.Result.Rating,
	}
	if len(body.Result.Photos) > 0 {
		details.PhotoRef = body.Result.Photos[0].PhotoReference
	}
	return details, nil
}

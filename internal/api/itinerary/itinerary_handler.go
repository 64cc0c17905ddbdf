package itinerary

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/voyplan/go-itinerary-agents/app/tracer"
	"github.com/voyplan/go-itinerary-agents/internal/api"
	"github.com/voyplan/go-itinerary-agents/internal/types"
)

type ItineraryHandler struct {
	itineraryService Service
	logger           *slog.Logger
}

func NewItineraryHandler(itineraryService Service, logger *slog.Logger) *ItineraryHandler {
	return &ItineraryHandler{
		itineraryService: itineraryService,
		logger:           logger,
	}
}

// generateResponse is the wire shape: the itinerary plus its metrics payload.
type generateResponse struct {
	Itinerary *types.Itinerary `json:"itinerary"`
	Metrics   *types.Metrics   `json:"metrics"`
}

// GenerateItinerary handles POST /api/v1/itinerary.
func (h *ItineraryHandler) GenerateItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("GenerateItinerary").Start(r.Context(), "GenerateItinerary", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/itinerary"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GenerateItinerary"))
	l.DebugContext(ctx, "Generate itinerary handler invoked")

	var req types.TripRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.ErrorContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	itinerary, metrics, err := h.itineraryService.GenerateItinerary(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			l.WarnContext(ctx, "Invalid trip request", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l.ErrorContext(ctx, "Itinerary generation failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to generate itinerary")
		return
	}

	tracer.RecordItineraryGenerated(ctx, req.Destination, metrics)

	l.InfoContext(ctx, "Itinerary generated",
		slog.String("destination", req.Destination),
		slog.Int("days", len(itinerary.Days)),
		slog.Duration("total_duration", metrics.TotalDuration))
	api.WriteJSONResponse(w, r, http.StatusOK, generateResponse{Itinerary: itinerary, Metrics: metrics})
}

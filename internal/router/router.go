package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voyplan/go-itinerary-agents/internal/api/itinerary"
)

// Config contains dependencies needed for the router setup.
type Config struct {
	ItineraryHandler *itinerary.ItineraryHandler
	PhotoProxy       http.HandlerFunc
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected to be
// applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Handle("/metrics", promhttp.Handler())

	if cfg.PhotoProxy != nil {
		r.Get("/photo-proxy/{ref}", cfg.PhotoProxy)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/itinerary", cfg.ItineraryHandler.GenerateItinerary)
	})

	return r
}

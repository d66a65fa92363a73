package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	appLogger "github.com/FACorreiaa/culture-voyage/app/logger"
	"github.com/FACorreiaa/culture-voyage/internal/api"
	"github.com/FACorreiaa/culture-voyage/internal/api/itinerary"
)

// Config contains dependencies needed for the router setup
type Config struct {
	ItineraryHandler *itinerary.HandlerImpl
	Logger           *slog.Logger
	AllowedOrigins   []string
	// RequestTimeout bounds a whole request, immediate mode included.
	RequestTimeout time.Duration
	// RateLimit is requests per RateWindow per client IP on /api. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// SetupRouter builds the full HTTP handler: server-wide middleware, /ping and
// the /api routes.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Compress(5, "application/json"))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 && cfg.RateWindow > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, cfg.RateWindow))
		}

		h := cfg.ItineraryHandler
		r.Get("/test", h.Test)
		r.Post("/generate-itinerary", h.GenerateItinerary)
		r.Post("/explain-place", h.ExplainPlace)
		r.Get("/shared-itinerary/{shareToken}", h.GetSharedItinerary)
		r.Get("/cached-itinerary/{cacheKey}", h.GetCachedItinerary)
		r.Get("/recent-itineraries", h.RecentItineraries)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorResponse(w, r, http.StatusNotFound, "Route not found")
	})

	return r
}

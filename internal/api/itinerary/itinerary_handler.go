package itinerary

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/culture-voyage/internal/api"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

// Test reports that the API is reachable.
func (h *HandlerImpl) Test(w http.ResponseWriter, r *http.Request) {
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{
		"message": "Server is running and API is accessible!",
	})
}

// GenerateItinerary handles POST /generate-itinerary.
// Three branches share the route:
//   - saveCompletedItinerary: persist the explained places sent back by the client
//   - fetchExplanations true: explain every place server side and save
//   - otherwise: return unexplained recommendations, nothing is saved
func (h *HandlerImpl) GenerateItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GenerateItinerary", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/generate-itinerary"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GenerateItinerary"))

	var req types.GenerateItineraryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("destination", req.Destination),
		attribute.Bool("save_completed", req.SaveCompletedItinerary),
	)

	if req.SaveCompletedItinerary {
		h.saveCompleted(w, r.WithContext(ctx), req)
		return
	}

	rr := types.RecommendationsRequest{Destination: req.Destination, Interests: req.Interests}

	if req.FetchExplanations != nil && *req.FetchExplanations {
		places, token, err := h.service.GenerateImmediate(ctx, rr)
		if err != nil {
			h.writeServiceError(w, r, span, err, "An error occurred while generating your itinerary")
			return
		}
		resp := types.GenerateItineraryResponse{Status: statusFor(places), Recommendations: places}
		if token != "" {
			resp.ShareToken = &token
		}
		span.SetStatus(codes.Ok, "Itinerary generated")
		api.WriteJSONResponse(w, r, http.StatusOK, resp)
		return
	}

	places, err := h.service.Recommend(ctx, rr)
	if err != nil {
		h.writeServiceError(w, r, span, err, "An error occurred while fetching recommendations")
		return
	}
	l.InfoContext(ctx, "Recommendations ready", slog.Int("count", len(places)))
	span.SetStatus(codes.Ok, "Recommendations ready")
	api.WriteJSONResponse(w, r, http.StatusOK, types.GenerateItineraryResponse{
		Status:          statusFor(places),
		Recommendations: places,
	})
}

func (h *HandlerImpl) saveCompleted(w http.ResponseWriter, r *http.Request, req types.GenerateItineraryRequest) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	data := req.CompletedItineraryData
	if data == nil {
		span.SetStatus(codes.Error, "Missing completed itinerary")
		api.ErrorResponse(w, r, http.StatusBadRequest, "completedItineraryData is required when saveCompletedItinerary is set")
		return
	}

	params := types.SaveItineraryParams{
		Destination: req.Destination,
		Interests:   req.Interests,
		Places:      data.Recommendations,
	}
	if data.Destination != "" {
		params.Destination = data.Destination
	}
	if len(data.Interests) > 0 {
		params.Interests = data.Interests
	}

	token, err := h.service.SaveCompleted(ctx, params)
	if err != nil {
		h.writeServiceError(w, r, span, err, "Failed to save itinerary")
		return
	}

	h.logger.InfoContext(ctx, "Completed itinerary saved", slog.String("shareToken", token))
	span.SetStatus(codes.Ok, "Itinerary saved")
	api.WriteJSONResponse(w, r, http.StatusOK, types.SaveItineraryResponse{ShareToken: token})
}

// ExplainPlace handles POST /explain-place. Error bodies carry placeId when
// the request named a place so the client can match them to a card.
func (h *HandlerImpl) ExplainPlace(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "ExplainPlace", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/explain-place"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "ExplainPlace"))

	var req types.ExplainPlaceRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var placeID string
	if req.Place != nil {
		placeID = req.Place.ID
		span.SetAttributes(attribute.String("place.id", placeID))
	}

	text, err := h.service.ExplainPlace(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, api.ErrValidation) {
			status = http.StatusBadRequest
		} else {
			l.ErrorContext(ctx, "Failed to generate explanation", slog.String("placeID", placeID), slog.Any("error", err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Explanation failed")
		api.WriteJSONResponse(w, r, status, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"placeId": placeID,
		})
		return
	}

	span.SetStatus(codes.Ok, "Explanation generated")
	api.WriteJSONResponse(w, r, http.StatusOK, types.ExplainPlaceResponse{PlaceID: placeID, Explanation: text})
}

// GetSharedItinerary handles GET /shared-itinerary/{shareToken}.
func (h *HandlerImpl) GetSharedItinerary(w http.ResponseWriter, r *http.Request) {
	h.loadItinerary(w, r, "shareToken", "/api/shared-itinerary/{shareToken}")
}

// GetCachedItinerary handles GET /cached-itinerary/{cacheKey}. Cache keys and
// share tokens are the same identifier.
func (h *HandlerImpl) GetCachedItinerary(w http.ResponseWriter, r *http.Request) {
	h.loadItinerary(w, r, "cacheKey", "/api/cached-itinerary/{cacheKey}")
}

func (h *HandlerImpl) loadItinerary(w http.ResponseWriter, r *http.Request, param, route string) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetItinerary", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	defer span.End()

	token := chi.URLParam(r, param)
	span.SetAttributes(attribute.String("share_token", token))

	it, err := h.service.GetItinerary(ctx, token)
	if err != nil {
		h.writeServiceError(w, r, span, err, "Failed to load itinerary")
		return
	}

	span.SetStatus(codes.Ok, "Itinerary loaded")
	api.WriteJSONResponse(w, r, http.StatusOK, types.SharedItineraryResponse{SharedItinerary: it})
}

// RecentItineraries handles GET /recent-itineraries?limit=.
func (h *HandlerImpl) RecentItineraries(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "RecentItineraries", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/recent-itineraries"),
	))
	defer span.End()

	limit := DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			span.SetStatus(codes.Error, "Invalid limit")
			api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	out, err := h.service.RecentItineraries(ctx, limit)
	if err != nil {
		h.writeServiceError(w, r, span, err, "Failed to list recent itineraries")
		return
	}

	span.SetStatus(codes.Ok, "Recent itineraries listed")
	api.WriteJSONResponse(w, r, http.StatusOK, types.RecentItinerariesResponse{RecentItineraries: out})
}

// writeServiceError maps validation to 400, unknown tokens to 404 and anything
// else to 500 with the underlying message attached.
func (h *HandlerImpl) writeServiceError(w http.ResponseWriter, r *http.Request, span trace.Span, err error, prefix string) {
	span.RecordError(err)
	switch {
	case errors.Is(err, api.ErrValidation):
		span.SetStatus(codes.Error, "Validation failed")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrItineraryNotFound):
		span.SetStatus(codes.Error, "Itinerary not found")
		api.ErrorResponse(w, r, http.StatusNotFound, "Itinerary not found")
	default:
		h.logger.ErrorContext(r.Context(), prefix, slog.Any("error", err))
		span.SetStatus(codes.Error, prefix)
		api.ErrorResponse(w, r, http.StatusInternalServerError, prefix+": "+err.Error())
	}
}

func statusFor(places []types.Place) string {
	if len(places) == 0 {
		return types.StatusNoResults
	}
	return types.StatusRecommendationsReady
}

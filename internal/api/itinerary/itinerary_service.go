package itinerary

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/culture-voyage/internal/api"
	"github.com/FACorreiaa/culture-voyage/internal/api/explanation"
	"github.com/FACorreiaa/culture-voyage/internal/api/qloo"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service runs the itinerary flows. Validation failures wrap api.ErrValidation,
// unknown tokens return types.ErrItineraryNotFound.
type Service interface {
	// Recommend is the first half of the staged flow: places only, nothing is saved.
	Recommend(ctx context.Context, req types.RecommendationsRequest) ([]types.Place, error)
	// GenerateImmediate explains every place in turn and saves the result. The
	// token is empty when there was nothing to save.
	GenerateImmediate(ctx context.Context, req types.RecommendationsRequest) ([]types.Place, string, error)
	// SaveCompleted is the second half of the staged flow.
	SaveCompleted(ctx context.Context, params types.SaveItineraryParams) (string, error)
	// ExplainPlace always regenerates. With a share token the result is also
	// patched into the stored itinerary, best effort.
	ExplainPlace(ctx context.Context, req types.ExplainPlaceRequest) (string, error)
	GetItinerary(ctx context.Context, shareToken string) (*types.Itinerary, error)
	RecentItineraries(ctx context.Context, limit int) ([]types.ItinerarySummary, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	fetcher   qloo.Service
	explainer explanation.Service
	repo      Repository
}

func NewServiceImpl(fetcher qloo.Service, explainer explanation.Service, repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		fetcher:   fetcher,
		explainer: explainer,
		repo:      repo,
	}
}

func (s *ServiceImpl) Recommend(ctx context.Context, req types.RecommendationsRequest) ([]types.Place, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Recommend", trace.WithAttributes(
		attribute.String("destination", req.Destination),
		attribute.StringSlice("interests", req.Interests),
	))
	defer span.End()

	if err := api.ValidateStruct(&req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}

	places := s.fetcher.GetRecommendations(ctx, req.Interests, req.Destination)
	span.SetAttributes(attribute.Int("places.count", len(places)))
	span.SetStatus(codes.Ok, "recommendations ready")
	return places, nil
}

func (s *ServiceImpl) GenerateImmediate(ctx context.Context, req types.RecommendationsRequest) ([]types.Place, string, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GenerateImmediate", trace.WithAttributes(
		attribute.String("destination", req.Destination),
		attribute.StringSlice("interests", req.Interests),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GenerateImmediate"), slog.String("destination", req.Destination))

	if err := api.ValidateStruct(&req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, "", err
	}

	places := s.fetcher.GetRecommendations(ctx, req.Interests, req.Destination)
	if len(places) == 0 {
		l.InfoContext(ctx, "No recommendations, nothing to save")
		span.SetStatus(codes.Ok, "no results")
		return places, "", nil
	}

	for i := range places {
		places[i].WhyRecommended = s.explainer.Explain(ctx, places[i], req.Interests)
	}

	token, err := s.repo.Save(ctx, req.Destination, req.Interests, places)
	if err != nil {
		l.ErrorContext(ctx, "Failed to save itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, "", fmt.Errorf("failed to save itinerary: %w", err)
	}

	l.InfoContext(ctx, "Itinerary generated and saved", slog.String("shareToken", token), slog.Int("places", len(places)))
	span.SetStatus(codes.Ok, "itinerary saved")
	return places, token, nil
}

func (s *ServiceImpl) SaveCompleted(ctx context.Context, params types.SaveItineraryParams) (string, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "SaveCompleted", trace.WithAttributes(
		attribute.String("destination", params.Destination),
		attribute.Int("places.count", len(params.Places)),
	))
	defer span.End()

	if err := api.ValidateStruct(&params); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return "", err
	}

	token, err := s.repo.Save(ctx, params.Destination, params.Interests, params.Places)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save completed itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return "", fmt.Errorf("failed to save itinerary: %w", err)
	}

	span.SetStatus(codes.Ok, "itinerary saved")
	return token, nil
}

func (s *ServiceImpl) ExplainPlace(ctx context.Context, req types.ExplainPlaceRequest) (string, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "ExplainPlace")
	defer span.End()

	if err := api.ValidateStruct(&req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return "", err
	}
	span.SetAttributes(attribute.String("place.id", req.Place.ID))

	l := s.logger.With(slog.String("method", "ExplainPlace"), slog.String("placeID", req.Place.ID))

	text := s.explainer.Explain(ctx, *req.Place, req.UserInterests)

	if req.ShareToken != "" {
		updated, err := s.repo.PatchExplanation(ctx, req.ShareToken, req.Place.ID, text)
		switch {
		case err != nil:
			l.WarnContext(ctx, "Could not store explanation", slog.String("shareToken", req.ShareToken), slog.Any("error", err))
		case !updated:
			l.WarnContext(ctx, "Explanation not stored, itinerary or place unknown", slog.String("shareToken", req.ShareToken))
		default:
			l.DebugContext(ctx, "Explanation stored", slog.String("shareToken", req.ShareToken))
		}
	}

	span.SetStatus(codes.Ok, "explanation generated")
	return text, nil
}

func (s *ServiceImpl) GetItinerary(ctx context.Context, shareToken string) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GetItinerary", trace.WithAttributes(
		attribute.String("share_token", shareToken),
	))
	defer span.End()

	if shareToken == "" {
		return nil, fmt.Errorf("%w: share token is required", api.ErrValidation)
	}

	it, err := s.repo.Load(ctx, shareToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "itinerary loaded")
	return it, nil
}

func (s *ServiceImpl) RecentItineraries(ctx context.Context, limit int) ([]types.ItinerarySummary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "RecentItineraries", trace.WithAttributes(
		attribute.Int("limit", limit),
	))
	defer span.End()

	out, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("failed to list recent itineraries: %w", err)
	}
	span.SetStatus(codes.Ok, "recent itineraries listed")
	return out, nil
}

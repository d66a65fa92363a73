package qloo

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/culture-voyage/app/observability/metrics"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

const (
	placeEntityType = "urn:entity:place"
	categoryTagType = "urn:tag:category:place"
	genreTagType    = "urn:tag:genre:place"

	DefaultTake = 15
	maxTake     = 50

	unknownPlaceName = "Unknown Place"
	defaultPlaceType = "Place"
)

var _ Service = (*ServiceImpl)(nil)

// Service returns place recommendations for a set of interests.
type Service interface {
	GetRecommendations(ctx context.Context, interests []string, destination string) []types.Place
}

// InsightsClient is the subset of Client the fetcher needs.
type InsightsClient interface {
	Insights(ctx context.Context, params url.Values) ([]map[string]any, bool, error)
}

type ServiceImpl struct {
	resolver SignalResolver
	client   InsightsClient
	take     int
	logger   *slog.Logger
}

// NewServiceImpl builds the fetcher. take is the result cap and is clamped to [1,50].
func NewServiceImpl(resolver SignalResolver, client InsightsClient, take int, logger *slog.Logger) *ServiceImpl {
	if take <= 0 {
		take = DefaultTake
	}
	if take > maxTake {
		take = maxTake
	}
	return &ServiceImpl{
		resolver: resolver,
		client:   client,
		take:     take,
		logger:   logger,
	}
}

// GetRecommendations resolves interests and runs one insights query filtered to
// places at destination. An empty slice is the answer for every failure mode:
// no signals, upstream errors and unrecognized responses alike.
func (s *ServiceImpl) GetRecommendations(ctx context.Context, interests []string, destination string) []types.Place {
	ctx, span := otel.Tracer("QlooService").Start(ctx, "GetRecommendations", trace.WithAttributes(
		attribute.String("destination", destination),
		attribute.Int("interests.count", len(interests)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GetRecommendations"), slog.String("destination", destination))
	l.InfoContext(ctx, "Fetching recommendations", slog.String("interests", strings.Join(interests, ", ")))

	signals := s.resolver.Resolve(ctx, interests)
	if signals.Empty() {
		l.WarnContext(ctx, "No valid signals found for user interests")
		span.SetStatus(codes.Ok, "no signals")
		return []types.Place{}
	}

	params := BuildInsightsParams(signals, destination, s.take)
	l.DebugContext(ctx, "Insights request params", slog.String("params", params.Encode()))

	items, ok, err := s.client.Insights(ctx, params)
	if err != nil {
		l.ErrorContext(ctx, "Error fetching recommendations", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "insights request failed")
		return []types.Place{}
	}
	if !ok {
		l.WarnContext(ctx, "Unexpected insights response structure for results")
		return []types.Place{}
	}

	places := make([]types.Place, 0, len(items))
	for _, item := range items {
		if len(places) == s.take {
			break
		}
		place, ok := ParsePlace(item)
		if !ok {
			l.WarnContext(ctx, "Skipping insights result without an id", slog.String("name", stringField(item, "name")))
			continue
		}
		places = append(places, place)
	}

	metrics.Get().RecommendationsTotal.Add(ctx, int64(len(places)))
	l.InfoContext(ctx, "Parsed recommendations", slog.Int("count", len(places)))
	span.SetAttributes(attribute.Int("places.count", len(places)))
	span.SetStatus(codes.Ok, "recommendations fetched")
	return places
}

// BuildInsightsParams builds the insights query. Signal parameters are left
// out entirely when their list is empty.
func BuildInsightsParams(signals types.ResolvedSignals, destination string, take int) url.Values {
	params := url.Values{}
	params.Set("filter.type", placeEntityType)
	if len(signals.EntityIDs) > 0 {
		params.Set("signal.interests.entities", strings.Join(signals.EntityIDs, ","))
	}
	if len(signals.TagIDs) > 0 {
		params.Set("signal.interests.tags", strings.Join(signals.TagIDs, ","))
	}
	params.Set("filter.location.query", destination)
	params.Set("take", strconv.Itoa(take))
	return params
}

// ParsePlace derives the display fields of a raw insights entity. The raw
// object itself is kept as metadata. ok is false when the entity has no id.
func ParsePlace(item map[string]any) (types.Place, bool) {
	id := firstString(item, "entity_id", "id")
	if id == "" {
		return types.Place{}, false
	}

	name := stringField(item, "name")
	if name == "" {
		name = unknownPlaceName
	}

	properties, _ := item["properties"].(map[string]any)
	description := stringField(properties, "description")
	if description == "" {
		description = stringField(item, "summary")
	}

	return types.Place{
		ID:            id,
		Name:          name,
		Type:          placeType(item),
		Description:   description,
		AffinityScore: affinityScore(item),
		Metadata:      item,
	}, true
}

// placeType reads the category, then genre, tag label. Only place entities
// carry place tags; results without a subtype are assumed to be places since
// insights are already filtered by type.
func placeType(item map[string]any) string {
	if subtype := stringField(item, "subtype"); subtype != "" && subtype != placeEntityType {
		return defaultPlaceType
	}
	tags, _ := item["tags"].([]any)
	for _, wanted := range []string{categoryTagType, genreTagType} {
		for _, t := range tags {
			tag, ok := t.(map[string]any)
			if !ok {
				continue
			}
			if stringField(tag, "type") == wanted {
				if name := stringField(tag, "name"); name != "" {
					return name
				}
			}
		}
	}
	return defaultPlaceType
}

func affinityScore(item map[string]any) float64 {
	for _, key := range []string{"popularity", "score", "affinity"} {
		if v, ok := item[key].(float64); ok && v != 0 {
			return v
		}
	}
	return 0
}

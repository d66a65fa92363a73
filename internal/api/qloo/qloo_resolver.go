package qloo

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/culture-voyage/app/observability/metrics"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

var _ SignalResolver = (*Resolver)(nil)

type SignalResolver interface {
	Resolve(ctx context.Context, interests []string) types.ResolvedSignals
}

// Resolver maps interests to tag or entity signals. Tags win; entities are
// only searched when no tag matched.
type Resolver struct {
	searcher Searcher
	logger   *slog.Logger
	// memo of positive resolutions keyed by lower-cased interest; nil when disabled
	memo *cache.Cache
}

// NewResolver builds a resolver. A ttl of zero disables memoisation.
func NewResolver(searcher Searcher, ttl time.Duration, logger *slog.Logger) *Resolver {
	r := &Resolver{searcher: searcher, logger: logger}
	if ttl > 0 {
		r.memo = cache.New(ttl, 2*ttl)
	}
	return r
}

// Resolve never fails: a search error counts as a miss for that interest and
// resolution carries on with the next one.
func (r *Resolver) Resolve(ctx context.Context, interests []string) types.ResolvedSignals {
	ctx, span := otel.Tracer("QlooResolver").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.StringSlice("interests", interests),
	))
	defer span.End()

	var out types.ResolvedSignals
	for _, interest := range interests {
		signal, ok := r.resolveOne(ctx, interest)
		if !ok {
			metrics.Get().SignalResolutionMissesTotal.Add(ctx, 1)
			r.logger.WarnContext(ctx, "Could not resolve interest to a tag or entity, skipping",
				slog.String("interest", interest))
			continue
		}
		out.Add(signal)
	}

	span.SetAttributes(
		attribute.Int("signals.tags", len(out.TagIDs)),
		attribute.Int("signals.entities", len(out.EntityIDs)),
	)
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, interest string) (types.Signal, bool) {
	l := r.logger.With(slog.String("interest", interest))
	key := strings.ToLower(strings.TrimSpace(interest))

	if r.memo != nil {
		if cached, found := r.memo.Get(key); found {
			l.DebugContext(ctx, "Interest resolved from memo")
			return cached.(types.Signal), true
		}
	}

	tags, err := r.searcher.SearchTags(ctx, interest)
	if err != nil {
		l.ErrorContext(ctx, "Tag search failed", slog.Any("error", err))
	}
	if len(tags) > 0 {
		s := types.Signal{Interest: interest, Kind: types.SignalTag, ID: tags[0].ID}
		l.InfoContext(ctx, "Resolved interest to tag", slog.String("tag_id", s.ID))
		r.remember(key, s)
		return s, true
	}

	entities, err := r.searcher.SearchEntities(ctx, interest)
	if err != nil {
		l.ErrorContext(ctx, "Entity search failed", slog.Any("error", err))
	}
	if len(entities) > 0 {
		s := types.Signal{Interest: interest, Kind: types.SignalEntity, ID: entities[0].ID}
		l.InfoContext(ctx, "Resolved interest to entity",
			slog.String("entity_id", s.ID),
			slog.String("entity_type", entities[0].Type))
		r.remember(key, s)
		return s, true
	}

	return types.Signal{}, false
}

func (r *Resolver) remember(key string, s types.Signal) {
	if r.memo == nil {
		return
	}
	r.memo.SetDefault(key, s)
}

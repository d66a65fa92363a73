package explanation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/culture-voyage/app/observability/metrics"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

const (
	DefaultMaxTokens   = 180
	DefaultTemperature = 0.7
)

var _ Service = (*ServiceImpl)(nil)

// Service produces a short justification for one recommended place.
type Service interface {
	Explain(ctx context.Context, place types.Place, interests []string) string
}

type ServiceImpl struct {
	completer ChatCompleter
	opts      CompletionOptions
	logger    *slog.Logger
}

// NewServiceImpl builds the generator. completer may be nil, in which case
// every explanation is the unconfigured fallback.
func NewServiceImpl(completer ChatCompleter, opts CompletionOptions, logger *slog.Logger) *ServiceImpl {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	// 0 is a valid, deterministic temperature; only negative values are unset.
	if opts.Temperature < 0 {
		opts.Temperature = DefaultTemperature
	}
	return &ServiceImpl{completer: completer, opts: opts, logger: logger}
}

// Explain always returns a non-empty string. Model failures are logged and
// replaced by a templated sentence naming the place; nothing is retried and
// nothing is cached.
func (s *ServiceImpl) Explain(ctx context.Context, place types.Place, interests []string) string {
	ctx, span := otel.Tracer("ExplanationService").Start(ctx, "Explain", trace.WithAttributes(
		attribute.String("place.id", place.ID),
		attribute.String("place.name", place.Name),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Explain"), slog.String("place", place.Name))
	interestList := joinInterests(interests)

	if s.completer == nil {
		l.WarnContext(ctx, "LLM client not configured, returning fallback explanation")
		metrics.Get().ExplanationFallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unconfigured")))
		return unconfiguredFallback(place, interestList)
	}

	userPrompt := getUserPrompt(place, interestList)
	l.DebugContext(ctx, "LLM prompts", slog.String("system", systemPrompt), slog.String("user", userPrompt))

	start := time.Now()
	text, err := s.completer.Complete(ctx, systemPrompt, userPrompt, s.opts)
	metrics.Get().ExplanationDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		l.ErrorContext(ctx, "Error generating explanation", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "explanation generation failed")
		metrics.Get().ExplanationFallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "error")))
		return errorFallback(place)
	}

	if isNonCommittal(text) {
		l.WarnContext(ctx, "LLM explanation seems non-committal", slog.String("explanation", text))
	}

	l.InfoContext(ctx, "Generated explanation", slog.Duration("latency", time.Since(start)))
	span.SetStatus(codes.Ok, "explanation generated")
	return text
}

package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ItinerariesSavedTotal       metric.Int64Counter
	RecommendationsTotal        metric.Int64Counter
	SignalResolutionMissesTotal metric.Int64Counter
	TasteGraphErrorsTotal       metric.Int64Counter
	ExplanationDurationSeconds  metric.Float64Histogram
	ExplanationFallbacksTotal   metric.Int64Counter
	DbQueryDurationSeconds      metric.Float64Histogram
	DbQueryErrorsTotal          metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the metric instruments once, using the global
// MeterProvider. Until a provider is installed the instruments are no-ops.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("culture-voyage")
		var err error
		m := &AppMetrics{}

		m.ItinerariesSavedTotal, err = meter.Int64Counter(
			"itineraries_saved_total",
			metric.WithDescription("Total number of itineraries committed to the store"),
			metric.WithUnit("{itinerary}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itineraries_saved_total: %v", err)
		}

		m.RecommendationsTotal, err = meter.Int64Counter(
			"recommendations_returned_total",
			metric.WithDescription("Total number of places returned by the insights query"),
			metric.WithUnit("{place}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create recommendations_returned_total: %v", err)
		}

		m.SignalResolutionMissesTotal, err = meter.Int64Counter(
			"signal_resolution_misses_total",
			metric.WithDescription("Interests that resolved to neither a tag nor an entity"),
			metric.WithUnit("{interest}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create signal_resolution_misses_total: %v", err)
		}

		m.TasteGraphErrorsTotal, err = meter.Int64Counter(
			"taste_graph_request_errors_total",
			metric.WithDescription("Failed requests to the taste-graph API"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create taste_graph_request_errors_total: %v", err)
		}

		m.ExplanationDurationSeconds, err = meter.Float64Histogram(
			"explanation_duration_seconds",
			metric.WithDescription("Duration of explanation generation calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create explanation_duration_seconds: %v", err)
		}

		m.ExplanationFallbacksTotal, err = meter.Int64Counter(
			"explanation_fallbacks_total",
			metric.WithDescription("Explanations answered with a templated fallback"),
			metric.WithUnit("{explanation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create explanation_fallbacks_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the initialized AppMetrics, initializing it on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

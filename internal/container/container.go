package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/culture-voyage/app/db"
	"github.com/FACorreiaa/culture-voyage/config"
	"github.com/FACorreiaa/culture-voyage/internal/api/explanation"
	"github.com/FACorreiaa/culture-voyage/internal/api/itinerary"
	"github.com/FACorreiaa/culture-voyage/internal/api/qloo"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	DatabaseURL      string
	ItineraryHandler *itinerary.HandlerImpl
}

// NewContainer builds the pool and every client, service and handler once.
// Nothing downstream reaches for globals.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(ctx, dbConfig, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	// taste graph
	qlooClient := qloo.NewClient(cfg.Qloo.BaseURL, cfg.Qloo.APIKey, cfg.Qloo.Timeout, logger.With(slog.String("component", "qloo_client")))
	resolver := qloo.NewResolver(qlooClient, cfg.Qloo.SignalCacheTTL, logger.With(slog.String("component", "signal_resolver")))
	fetcher := qloo.NewServiceImpl(resolver, qlooClient, cfg.Qloo.Take, logger.With(slog.String("component", "recommendations")))

	// explanations; a nil completer means templated fallbacks only
	completer, err := explanation.NewCompleter(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		logger.Error("Failed to initialize explanation backend", slog.Any("error", err))
		return nil, err
	}
	explainer := explanation.NewServiceImpl(completer, explanation.CompletionOptions{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, logger.With(slog.String("component", "explanation")))

	itineraryRepo := itinerary.NewPostgresRepository(pool, logger.With(slog.String("component", "itinerary_repo")))
	itineraryService := itinerary.NewServiceImpl(fetcher, explainer, itineraryRepo, logger.With(slog.String("component", "itinerary_service")))
	itineraryHandler := itinerary.NewHandlerImpl(itineraryService, logger.With(slog.String("component", "itinerary_handler")))

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		DatabaseURL:      dbConfig.ConnectionURL,
		ItineraryHandler: itineraryHandler,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations() error {
	return database.RunMigrations(c.DatabaseURL, c.Logger)
}

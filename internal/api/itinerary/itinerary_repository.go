package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/culture-voyage/app/observability/metrics"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

const (
	DefaultRecentLimit = 10
	maxRecentLimit     = 50
)

var _ Repository = (*PostgresRepository)(nil)

// DB is the part of a pgx pool the repository uses. *pgxpool.Pool and
// pgxmock pools both satisfy it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	// Save persists an itinerary and its places atomically and returns the new share token.
	Save(ctx context.Context, destination string, interests []string, places []types.Place) (string, error)
	// Load returns types.ErrItineraryNotFound when the token is unknown.
	Load(ctx context.Context, shareToken string) (*types.Itinerary, error)
	// PatchExplanation reports false when the token or the place is unknown.
	PatchExplanation(ctx context.Context, shareToken, placeID, explanation string) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]types.ItinerarySummary, error)
}

type PostgresRepository struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresRepository(db DB, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		db:     db,
	}
}

func observeQuery(ctx context.Context, op string, start time.Time, err error) {
	m := metrics.Get()
	opAttr := metric.WithAttributes(attribute.String("operation", op))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), opAttr)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, opAttr)
	}
}

// Save implements Repository.
func (r *PostgresRepository) Save(ctx context.Context, destination string, interests []string, places []types.Place) (token string, err error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "Save", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries, itinerary_places"),
		attribute.String("destination", destination),
		attribute.Int("places.count", len(places)),
	))
	defer span.End()
	start := time.Now()
	defer func() { observeQuery(ctx, "save", start, err) }()

	l := r.logger.With(slog.String("method", "Save"), slog.String("destination", destination))

	interestsJSON, err := json.Marshal(interests)
	if err != nil {
		return "", fmt.Errorf("failed to encode interests: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB transaction failed")
		return "", fmt.Errorf("database error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	token = uuid.NewString()

	var itineraryID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO itineraries (share_token, destination, user_interests) VALUES ($1, $2, $3) RETURNING id`,
		token, destination, string(interestsJSON),
	).Scan(&itineraryID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return "", fmt.Errorf("database error inserting itinerary: %w", err)
	}

	for _, p := range places {
		placeJSON, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("failed to encode place %s: %w", p.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO itinerary_places (itinerary_id, place_id, place_data, why_recommended) VALUES ($1, $2, $3, $4)`,
			itineraryID, p.ID, placeJSON, nullableText(p.WhyRecommended),
		)
		if err != nil {
			l.ErrorContext(ctx, "Failed to insert itinerary place", slog.String("placeID", p.ID), slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "DB INSERT failed")
			return "", fmt.Errorf("database error inserting place %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB transaction commit failed")
		return "", fmt.Errorf("database error committing transaction: %w", err)
	}

	metrics.Get().ItinerariesSavedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Itinerary saved", slog.String("shareToken", token), slog.Int("places", len(places)))
	span.SetAttributes(attribute.String("share_token", token))
	span.SetStatus(codes.Ok, "Itinerary saved")
	return token, nil
}

// Load implements Repository.
func (r *PostgresRepository) Load(ctx context.Context, shareToken string) (it *types.Itinerary, err error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "Load", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries, itinerary_places"),
		attribute.String("share_token", shareToken),
	))
	defer span.End()
	start := time.Now()
	defer func() {
		if errors.Is(err, types.ErrItineraryNotFound) {
			observeQuery(ctx, "load", start, nil)
			return
		}
		observeQuery(ctx, "load", start, err)
	}()

	l := r.logger.With(slog.String("method", "Load"), slog.String("shareToken", shareToken))

	var (
		itineraryID   int64
		interestsJSON string
	)
	it = &types.Itinerary{ShareToken: shareToken}
	err = r.db.QueryRow(ctx,
		`SELECT id, destination, user_interests, created_at FROM itineraries WHERE share_token = $1`,
		shareToken,
	).Scan(&itineraryID, &it.Destination, &interestsJSON, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			l.WarnContext(ctx, "Itinerary not found")
			span.SetStatus(codes.Error, "Itinerary not found")
			return nil, types.ErrItineraryNotFound
		}
		l.ErrorContext(ctx, "Failed to query itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching itinerary: %w", err)
	}

	if err = json.Unmarshal([]byte(interestsJSON), &it.Interests); err != nil {
		l.ErrorContext(ctx, "Stored interests are not a JSON array", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode stored interests: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT place_data, why_recommended FROM itinerary_places WHERE itinerary_id = $1 ORDER BY id ASC`,
		itineraryID,
	)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query itinerary places", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching itinerary places: %w", err)
	}
	defer rows.Close()

	it.Recommendations = []types.Place{}
	for rows.Next() {
		var (
			placeJSON []byte
			why       pgtype.Text
			place     types.Place
		)
		if err = rows.Scan(&placeJSON, &why); err != nil {
			l.ErrorContext(ctx, "Failed to scan itinerary place row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning itinerary place: %w", err)
		}
		if err = json.Unmarshal(placeJSON, &place); err != nil {
			l.ErrorContext(ctx, "Stored place data is not valid JSON", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("failed to decode stored place: %w", err)
		}
		place.WhyRecommended = types.MissingExplanation
		if why.Valid && why.String != "" {
			place.WhyRecommended = why.String
		}
		it.Recommendations = append(it.Recommendations, place)
	}
	if err = rows.Err(); err != nil {
		l.ErrorContext(ctx, "Error iterating itinerary place rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading itinerary places: %w", err)
	}

	l.DebugContext(ctx, "Itinerary loaded", slog.Int("places", len(it.Recommendations)))
	span.SetStatus(codes.Ok, "Itinerary loaded")
	return it, nil
}

// PatchExplanation implements Repository.
func (r *PostgresRepository) PatchExplanation(ctx context.Context, shareToken, placeID, explanation string) (updated bool, err error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "PatchExplanation", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itinerary_places"),
		attribute.String("share_token", shareToken),
		attribute.String("place_id", placeID),
	))
	defer span.End()
	start := time.Now()
	defer func() { observeQuery(ctx, "patch_explanation", start, err) }()

	l := r.logger.With(slog.String("method", "PatchExplanation"),
		slog.String("shareToken", shareToken), slog.String("placeID", placeID))

	var itineraryID int64
	err = r.db.QueryRow(ctx, `SELECT id FROM itineraries WHERE share_token = $1`, shareToken).Scan(&itineraryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			l.WarnContext(ctx, "No itinerary for share token, explanation not stored")
			return false, nil
		}
		l.ErrorContext(ctx, "Failed to look up itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("database error fetching itinerary: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE itinerary_places SET why_recommended = $1 WHERE itinerary_id = $2 AND place_id = $3`,
		explanation, itineraryID, placeID,
	)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update explanation", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return false, fmt.Errorf("database error updating explanation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		l.WarnContext(ctx, "Place is not part of itinerary, explanation not stored")
		return false, nil
	}

	l.DebugContext(ctx, "Explanation stored")
	span.SetStatus(codes.Ok, "Explanation stored")
	return true, nil
}

// ListRecent implements Repository. limit is clamped to [1,50].
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) (out []types.ItinerarySummary, err error) {
	limit = ClampRecentLimit(limit)
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "ListRecent", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries, itinerary_places"),
		attribute.Int("limit", limit),
	))
	defer span.End()
	start := time.Now()
	defer func() { observeQuery(ctx, "list_recent", start, err) }()

	l := r.logger.With(slog.String("method", "ListRecent"), slog.Int("limit", limit))

	query := `
        SELECT i.share_token, i.destination, i.user_interests, i.created_at,
               (SELECT COUNT(*) FROM itinerary_places p WHERE p.itinerary_id = i.id) AS place_count
        FROM itineraries i
        ORDER BY i.created_at DESC, i.id DESC
        LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query recent itineraries", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching recent itineraries: %w", err)
	}
	defer rows.Close()

	out = []types.ItinerarySummary{}
	for rows.Next() {
		var (
			s             types.ItinerarySummary
			interestsJSON string
			count         int64
		)
		if err = rows.Scan(&s.ShareToken, &s.Destination, &interestsJSON, &s.Timestamp, &count); err != nil {
			l.ErrorContext(ctx, "Failed to scan recent itinerary row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning recent itinerary: %w", err)
		}
		if err = json.Unmarshal([]byte(interestsJSON), &s.Interests); err != nil {
			return nil, fmt.Errorf("failed to decode stored interests: %w", err)
		}
		s.CacheKey = s.ShareToken
		s.PlaceCount = int(count)
		out = append(out, s)
	}
	if err = rows.Err(); err != nil {
		l.ErrorContext(ctx, "Error iterating recent itinerary rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading recent itineraries: %w", err)
	}

	l.DebugContext(ctx, "Fetched recent itineraries", slog.Int("count", len(out)))
	span.SetStatus(codes.Ok, "Recent itineraries fetched")
	return out, nil
}

// ClampRecentLimit clamps limit to [1,50].
func ClampRecentLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

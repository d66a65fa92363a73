package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/culture-voyage/internal/api/explanation"
	"github.com/FACorreiaa/culture-voyage/internal/api/itinerary"
	"github.com/FACorreiaa/culture-voyage/internal/api/qloo"
	"github.com/FACorreiaa/culture-voyage/internal/router"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

type benchFetcher struct{ places []types.Place }

func (f benchFetcher) GetRecommendations(context.Context, []string, string) []types.Place {
	out := make([]types.Place, len(f.places))
	copy(out, f.places)
	return out
}

type benchRepo struct{}

func (r *benchRepo) Save(context.Context, string, []string, []types.Place) (string, error) {
	return "bench-token", nil
}

func (r *benchRepo) Load(_ context.Context, token string) (*types.Itinerary, error) {
	return &types.Itinerary{ShareToken: token, Destination: "Paris", Interests: []string{"Jazz"}}, nil
}

func (r *benchRepo) PatchExplanation(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (r *benchRepo) ListRecent(context.Context, int) ([]types.ItinerarySummary, error) {
	return []types.ItinerarySummary{}, nil
}

func setupBenchmarkRouter(b *testing.B) chi.Router {
	b.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	places := make([]types.Place, 15)
	for i := range places {
		places[i] = types.Place{
			ID:            "P" + strconv.Itoa(i),
			Name:          "Club " + strconv.Itoa(i),
			Type:          "Jazz Club",
			AffinityScore: 0.9,
			Metadata:      map[string]any{"entity_id": "P" + strconv.Itoa(i), "popularity": 0.9},
		}
	}

	svc := itinerary.NewServiceImpl(
		benchFetcher{places: places},
		explanation.NewServiceImpl(nil, explanation.CompletionOptions{}, logger),
		&benchRepo{},
		logger,
	)
	return router.SetupRouter(&router.Config{
		ItineraryHandler: itinerary.NewHandlerImpl(svc, logger),
		Logger:           logger,
		RequestTimeout:   time.Minute,
	})
}

func benchmarkPost(b *testing.B, path string, body any) {
	r := setupBenchmarkRouter(b)
	raw, err := json.Marshal(body)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
		}
	}
}

// BenchmarkStagedRecommendations measures the staged path without upstream latency.
func BenchmarkStagedRecommendations(b *testing.B) {
	benchmarkPost(b, "/api/generate-itinerary", map[string]any{
		"destination": "Paris", "interests": []string{"Jazz", "Wine"},
	})
}

func BenchmarkImmediateItinerary(b *testing.B) {
	benchmarkPost(b, "/api/generate-itinerary", map[string]any{
		"destination": "Paris", "interests": []string{"Jazz"}, "fetchExplanations": true,
	})
}

func BenchmarkParsePlace(b *testing.B) {
	item := map[string]any{
		"entity_id":  "P1",
		"name":       "Le Caveau de la Huchette",
		"popularity": 0.97,
		"tags": []any{
			map[string]any{"type": "urn:tag:genre:place", "name": "Jazz"},
			map[string]any{"type": "urn:tag:category:place", "name": "Jazz Club"},
		},
		"properties": map[string]any{"description": "Cellar club."},
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, ok := qloo.ParsePlace(item); !ok {
			b.Fatal("place should parse")
		}
	}
}

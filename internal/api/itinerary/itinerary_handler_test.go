package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/culture-voyage/internal/api"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Recommend(ctx context.Context, req types.RecommendationsRequest) ([]types.Place, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

func (m *MockService) GenerateImmediate(ctx context.Context, req types.RecommendationsRequest) ([]types.Place, string, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]types.Place), args.String(1), args.Error(2)
}

func (m *MockService) SaveCompleted(ctx context.Context, params types.SaveItineraryParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *MockService) ExplainPlace(ctx context.Context, req types.ExplainPlaceRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockService) GetItinerary(ctx context.Context, shareToken string) (*types.Itinerary, error) {
	args := m.Called(ctx, shareToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Itinerary), args.Error(1)
}

func (m *MockService) RecentItineraries(ctx context.Context, limit int) ([]types.ItinerarySummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ItinerarySummary), args.Error(1)
}

func newTestRouter(svc Service) http.Handler {
	h := NewHandlerImpl(svc, discardLogger())
	r := chi.NewRouter()
	r.Get("/api/test", h.Test)
	r.Post("/api/generate-itinerary", h.GenerateItinerary)
	r.Post("/api/explain-place", h.ExplainPlace)
	r.Get("/api/shared-itinerary/{shareToken}", h.GetSharedItinerary)
	r.Get("/api/cached-itinerary/{cacheKey}", h.GetCachedItinerary)
	r.Get("/api/recent-itineraries", h.RecentItineraries)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", api.ErrValidation, msg)
}

func TestHandler_Test(t *testing.T) {
	rec, body := doRequest(t, newTestRouter(new(MockService)), http.MethodGet, "/api/test", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["message"])
}

func TestHandler_GenerateItinerary(t *testing.T) {
	jazz := types.RecommendationsRequest{Destination: "Paris", Interests: []string{"Jazz"}}

	t.Run("staged mode by default", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Recommend", mock.Anything, jazz).Return(samplePlaces(), nil).Once()

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/generate-itinerary",
			`{"destination":"Paris","interests":["Jazz"]}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, types.StatusRecommendationsReady, body["status"])
		assert.Len(t, body["recommendations"], 2)
		assert.Contains(t, body, "shareToken")
		assert.Nil(t, body["shareToken"])
		svc.AssertNotCalled(t, "GenerateImmediate", mock.Anything, mock.Anything)
	})

	t.Run("no results", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Recommend", mock.Anything, jazz).Return([]types.Place{}, nil)

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/generate-itinerary",
			`{"destination":"Paris","interests":["Jazz"],"fetchExplanations":false}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, types.StatusNoResults, body["status"])
		assert.Empty(t, body["recommendations"])
	})

	t.Run("immediate mode returns share token", func(t *testing.T) {
		svc := new(MockService)
		places := samplePlaces()
		places[0].WhyRecommended = "Reason."
		svc.On("GenerateImmediate", mock.Anything, jazz).Return(places, "tok-1", nil).Once()

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/generate-itinerary",
			`{"destination":"Paris","interests":["Jazz"],"fetchExplanations":true}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tok-1", body["shareToken"])
		svc.AssertNotCalled(t, "Recommend", mock.Anything, mock.Anything)
	})

	t.Run("save completed uses nested destination and interests", func(t *testing.T) {
		svc := new(MockService)
		svc.On("SaveCompleted", mock.Anything, mock.MatchedBy(func(p types.SaveItineraryParams) bool {
			return p.Destination == "Lisbon" && len(p.Interests) == 1 && p.Interests[0] == "Fado" &&
				len(p.Places) == 1 && p.Places[0].WhyRecommended == "Reason."
		})).Return("tok-9", nil).Once()

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/generate-itinerary", `{
			"destination":"Paris","interests":["Jazz"],
			"saveCompletedItinerary":true,
			"completedItineraryData":{"destination":"Lisbon","interests":["Fado"],
				"recommendations":[{"id":"p1","name":"Clube de Fado","whyRecommended":"Reason."}]}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"shareToken": "tok-9"}, body)
		svc.AssertExpectations(t)
	})

	t.Run("save completed without data", func(t *testing.T) {
		svc := new(MockService)
		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/generate-itinerary",
			`{"destination":"Paris","interests":["Jazz"],"saveCompletedItinerary":true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, body["success"])
		svc.AssertNotCalled(t, "SaveCompleted", mock.Anything, mock.Anything)
	})

	t.Run("validation failure is 400", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Recommend", mock.Anything, mock.Anything).Return(nil, validationErr("interests is required"))

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/generate-itinerary", `{"destination":"Paris"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body["error"], "interests is required")
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		rec, _ := doRequest(t, newTestRouter(new(MockService)), http.MethodPost, "/api/generate-itinerary", `{"destination":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure is 500 with message", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GenerateImmediate", mock.Anything, jazz).Return(nil, "", errors.New("failed to save itinerary: tx aborted"))

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/generate-itinerary",
			`{"destination":"Paris","interests":["Jazz"],"fetchExplanations":true}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, body["error"], "tx aborted")
	})
}

func TestHandler_ExplainPlace(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ExplainPlace", mock.Anything, mock.MatchedBy(func(r types.ExplainPlaceRequest) bool {
			return r.Place != nil && r.Place.ID == "p1" && r.ShareToken == "tok-1"
		})).Return("Reason.", nil)

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/explain-place",
			`{"place":{"id":"p1","name":"Le Caveau"},"userInterests":["Jazz"],"shareToken":"tok-1"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"placeId": "p1", "explanation": "Reason."}, body)
	})

	t.Run("missing interests is 400", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ExplainPlace", mock.Anything, mock.Anything).Return("", validationErr("userInterests is required"))

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/explain-place",
			`{"place":{"id":"p1","name":"Le Caveau"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "p1", body["placeId"])
	})

	t.Run("failure keeps placeId", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ExplainPlace", mock.Anything, mock.Anything).Return("", errors.New("boom"))

		rec, body := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/explain-place",
			`{"place":{"id":"p7","name":"X"},"userInterests":["Jazz"]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "p7", body["placeId"])
	})
}

func TestHandler_GetItinerary(t *testing.T) {
	created := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	it := &types.Itinerary{
		ShareToken:      "tok-1",
		Destination:     "Paris",
		Interests:       []string{"Jazz"},
		CreatedAt:       created,
		Recommendations: samplePlaces(),
	}

	for _, path := range []string{"/api/shared-itinerary/tok-1", "/api/cached-itinerary/tok-1"} {
		t.Run(path, func(t *testing.T) {
			svc := new(MockService)
			svc.On("GetItinerary", mock.Anything, "tok-1").Return(it, nil).Once()

			rec, body := doRequest(t, newTestRouter(svc), http.MethodGet, path, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			shared, ok := body["sharedItinerary"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "Paris", shared["destination"])
			assert.Equal(t, []any{"Jazz"}, shared["user_interests"])
			assert.Len(t, shared["recommendations"], 2)
			svc.AssertExpectations(t)
		})
	}

	t.Run("unknown token is 404", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GetItinerary", mock.Anything, "nope").Return(nil, types.ErrItineraryNotFound)

		rec, body := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/shared-itinerary/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, false, body["success"])
	})

	t.Run("store failure is 500", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GetItinerary", mock.Anything, "tok-1").Return(nil, errors.New("connection refused"))

		rec, _ := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/cached-itinerary/tok-1", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandler_RecentItineraries(t *testing.T) {
	summaries := []types.ItinerarySummary{{ShareToken: "tok-b", CacheKey: "tok-b", Destination: "Lisbon", PlaceCount: 3}}

	t.Run("default limit", func(t *testing.T) {
		svc := new(MockService)
		svc.On("RecentItineraries", mock.Anything, DefaultRecentLimit).Return(summaries, nil).Once()

		rec, body := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/recent-itineraries", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		list, ok := body["recentItineraries"].([]any)
		require.True(t, ok)
		require.Len(t, list, 1)
		entry := list[0].(map[string]any)
		assert.Equal(t, "tok-b", entry["cacheKey"])
		assert.Equal(t, float64(3), entry["placeCount"])
		svc.AssertExpectations(t)
	})

	t.Run("explicit limit", func(t *testing.T) {
		svc := new(MockService)
		svc.On("RecentItineraries", mock.Anything, 1).Return(summaries, nil).Once()

		rec, _ := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/recent-itineraries?limit=1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("non-numeric limit", func(t *testing.T) {
		svc := new(MockService)
		rec, _ := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/recent-itineraries?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "RecentItineraries", mock.Anything, mock.Anything)
	})
}

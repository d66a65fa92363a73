package qloo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/culture-voyage/app/observability/metrics"
	"github.com/FACorreiaa/culture-voyage/internal/types"
)

const (
	tagsPath     = "/v2/tags"
	searchPath   = "/search"
	insightsPath = "/v2/insights"

	defaultTimeout = 15 * time.Second
)

var _ Searcher = (*Client)(nil)

// Searcher looks up taste-graph identifiers for free text.
type Searcher interface {
	SearchTags(ctx context.Context, query string) ([]types.SearchResult, error)
	SearchEntities(ctx context.Context, query string) ([]types.SearchResult, error)
}

// Client talks to the taste-graph HTTP API. It is built once at startup and
// shared by the resolver and the fetcher.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client with a fixed per-call timeout. A zero timeout
// falls back to 15s.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// NewClientWithHTTPClient is used by tests to point the client at an httptest server.
func NewClientWithHTTPClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// envelope is the common top-level shape of taste-graph responses. Results
// is kept raw because its shape varies between endpoints and API versions.
type envelope struct {
	Results  json.RawMessage  `json:"results"`
	Warnings []map[string]any `json:"warnings,omitempty"`
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("taste graph returned status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*envelope, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.Get().TasteGraphErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Taste graph response", slog.String("path", path), slog.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.Get().TasteGraphErrorsTotal.Add(ctx, 1)
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return &env, nil
}

// SearchTags resolves free text to tags. An unexpected response shape yields
// no results rather than an error.
func (c *Client) SearchTags(ctx context.Context, query string) ([]types.SearchResult, error) {
	ctx, span := otel.Tracer("QlooClient").Start(ctx, "SearchTags", trace.WithAttributes(
		attribute.String("query", query),
	))
	defer span.End()

	env, err := c.get(ctx, tagsPath, url.Values{"filter.query": {query}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tag search failed")
		return nil, err
	}

	items, ok := extractResults(env.Results, "tags")
	if !ok {
		c.logger.WarnContext(ctx, "No results or unexpected structure in tags response", slog.String("query", query))
		return []types.SearchResult{}, nil
	}

	out := make([]types.SearchResult, 0, len(items))
	for _, item := range items {
		id := firstString(item, "id", "tag_id")
		if id == "" {
			continue
		}
		out = append(out, types.SearchResult{ID: id, Name: stringField(item, "name")})
	}
	span.SetAttributes(attribute.Int("results.count", len(out)))
	return out, nil
}

// SearchEntities resolves free text to entities of any type.
func (c *Client) SearchEntities(ctx context.Context, query string) ([]types.SearchResult, error) {
	ctx, span := otel.Tracer("QlooClient").Start(ctx, "SearchEntities", trace.WithAttributes(
		attribute.String("query", query),
	))
	defer span.End()

	env, err := c.get(ctx, searchPath, url.Values{"query": {query}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "entity search failed")
		return nil, err
	}

	items, ok := extractResults(env.Results, "entities")
	if !ok {
		c.logger.WarnContext(ctx, "No results or unexpected structure in search response", slog.String("query", query))
		return []types.SearchResult{}, nil
	}

	out := make([]types.SearchResult, 0, len(items))
	for _, item := range items {
		id := firstString(item, "id", "entity_id")
		if id == "" {
			continue
		}
		kind := firstString(item, "type", "subtype")
		if kind == "" {
			kind = "Unknown"
		}
		out = append(out, types.SearchResult{ID: id, Name: stringField(item, "name"), Type: kind})
	}
	span.SetAttributes(attribute.Int("results.count", len(out)))
	return out, nil
}

// Insights runs a filtered insights query and returns the raw result objects.
// ok is false when the response carried no recognizable result list.
func (c *Client) Insights(ctx context.Context, params url.Values) (items []map[string]any, ok bool, err error) {
	ctx, span := otel.Tracer("QlooClient").Start(ctx, "Insights")
	defer span.End()

	env, err := c.get(ctx, insightsPath, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insights request failed")
		return nil, false, err
	}

	for _, w := range env.Warnings {
		if stringField(w, "type") == "not_found" {
			c.logger.WarnContext(ctx, "Insights returned not_found warning for signals", slog.Any("warning", w))
			continue
		}
		c.logger.WarnContext(ctx, "Insights returned warning", slog.Any("warning", w))
	}

	items, ok = extractResults(env.Results, "entities")
	span.SetAttributes(attribute.Int("results.count", len(items)))
	return items, ok, nil
}

// extractResults reads a result list that is either the results value itself
// or nested one level down under nestedKey.
func extractResults(raw json.RawMessage, nestedKey string) ([]map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err == nil {
		inner, found := nested[nestedKey]
		if !found {
			return nil, false
		}
		var items []map[string]any
		if err := json.Unmarshal(inner, &items); err != nil {
			return nil, false
		}
		return items, true
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// firstString returns the first non-empty string value among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}

package explanation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/FACorreiaa/culture-voyage/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = "llama3"
)

var (
	errEmptyCompletion = errors.New("empty completion")

	_ ChatCompleter = (*OpenAICompleter)(nil)
	_ ChatCompleter = (*GeminiCompleter)(nil)
)

// CompletionOptions bounds a single model call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
}

// ChatCompleter sends one system + user prompt pair to a text-generation model
// and returns the text of the first completion.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error)
}

// OpenAICompleter speaks the OpenAI chat-completions protocol, so it also
// works against self-hosted compatible nodes through BaseURL.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

func NewOpenAICompleter(apiKey, baseURL, model string, httpClient *http.Client) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAICompleter{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GeminiCompleter uses the Gemini API through google.golang.org/genai.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string, httpClient *http.Client, httpOptions genai.HTTPOptions) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](opts.Temperature),
		MaxOutputTokens:   int32(opts.MaxTokens),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

// NewCompleter builds the completer selected by configuration. It returns nil
// without error when no credentials are configured; the generator then
// answers with templated explanations.
func NewCompleter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ChatCompleter, error) {
	apiKey := strings.TrimSpace(cfg.LLM.APIKey)
	if apiKey == "" {
		logger.Warn("LLM API key not defined. LLM explanations will be disabled.")
		return nil, nil
	}

	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	switch strings.ToLower(cfg.LLM.Provider) {
	case ProviderGemini:
		c, err := NewGeminiCompleter(ctx, apiKey, cfg.LLM.Model, httpClient, genai.HTTPOptions{})
		if err != nil {
			return nil, err
		}
		logger.Info("LLM service initialized", slog.String("provider", ProviderGemini), slog.String("model", c.model))
		return c, nil
	case ProviderOpenAI, "":
		c := NewOpenAICompleter(apiKey, cfg.LLM.BaseURL, cfg.LLM.Model, httpClient)
		logger.Info("LLM service initialized",
			slog.String("provider", ProviderOpenAI),
			slog.String("model", c.model),
			slog.String("base_url", cfg.LLM.BaseURL))
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

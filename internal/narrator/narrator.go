// Package narrator wraps the external generative narration service behind a
// single blocking request/response call. Two implementations are provided,
// selected by configuration: an OpenAI-compatible API and Ollama. Both run
// with streaming disabled and the structured-output (JSON) mode enabled.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Role values of transcript turns, as replayed to the service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role/content turn of the outgoing transcript.
type Message struct {
	Role    string
	Content string
}

// ErrGenerationFailed wraps every transport-level narration failure
// (unreachable service, timeout, empty response).
var ErrGenerationFailed = errors.New("narration generation failed")

// Client performs one blocking narration call.
type Client interface {
	// Generate sends the transcript and returns the raw response text. The
	// response is expected, but not guaranteed, to be a single JSON object.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Config holds narration client settings.
type Config struct {
	ClientType          string // "openai" or "ollama"
	BaseURL             string
	APIKey              string
	Model               string
	Timeout             time.Duration
	MaxCompletionTokens int
}

var (
	narrationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_engine_narration_requests_total",
			Help: "Total number of requests to the narration service.",
		},
		[]string{"model", "status"},
	)
	narrationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_engine_narration_request_duration_seconds",
			Help:    "Histogram of narration request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)

// New creates a narration client for the configured backend.
func New(cfg Config, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.ClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
		openaiConfig.BaseURL = cfg.BaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		client := openaigo.NewClientWithConfig(openaiConfig)
		logger.Info("OpenAI narration client created",
			zap.String("baseURL", cfg.BaseURL),
			zap.String("model", cfg.Model),
			zap.Duration("timeout", cfg.Timeout))
		return &openAIClient{client: client, cfg: cfg, logger: logger.Named("OpenAINarrator")}, nil
	case "ollama":
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown narration client type: %q", cfg.ClientType)
	}
}

// --- OpenAI implementation ---

type openAIClient struct {
	client *openaigo.Client
	cfg    Config
	logger *zap.Logger
}

func (c *openAIClient) Generate(ctx context.Context, messages []Message) (string, error) {
	chatMessages := make([]openaigo.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openaigo.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: chatMessages,
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens: c.cfg.MaxCompletionTokens,
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("narration request failed", zap.Duration("duration", duration), zap.Error(err))
		narrationRequestsTotal.With(prometheus.Labels{"model": c.cfg.Model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		narrationRequestsTotal.With(prometheus.Labels{"model": c.cfg.Model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	narrationRequestsTotal.With(prometheus.Labels{"model": c.cfg.Model, "status": "success"}).Inc()
	narrationRequestDuration.With(prometheus.Labels{"model": c.cfg.Model}).Observe(duration.Seconds())
	c.logger.Debug("narration response received",
		zap.Duration("duration", duration),
		zap.Int("responseLength", len(resp.Choices[0].Message.Content)))
	return resp.Choices[0].Message.Content, nil
}

// --- Ollama implementation ---

type ollamaClient struct {
	client *api.Client
	cfg    Config
	logger *zap.Logger
}

func newOllamaClient(cfg Config, logger *zap.Logger) (Client, error) {
	// api.NewClient expects the base URL without the /v1 suffix.
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama base URL %q: %w", baseURL, err)
	}
	client := api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout})
	logger.Info("Ollama narration client created",
		zap.String("baseURL", baseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout))
	return &ollamaClient{client: client, cfg: cfg, logger: logger.Named("OllamaNarrator")}, nil
}

func (c *ollamaClient) Generate(ctx context.Context, messages []Message) (string, error) {
	chatMessages := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.cfg.Model,
		Messages: chatMessages,
		Stream:   &stream,
		Format:   []byte(`"json"`),
		Options: map[string]interface{}{
			"num_predict": c.cfg.MaxCompletionTokens,
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("narration request failed", zap.Duration("duration", duration), zap.Error(err))
		narrationRequestsTotal.With(prometheus.Labels{"model": c.cfg.Model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		narrationRequestsTotal.With(prometheus.Labels{"model": c.cfg.Model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	narrationRequestsTotal.With(prometheus.Labels{"model": c.cfg.Model, "status": "success"}).Inc()
	narrationRequestDuration.With(prometheus.Labels{"model": c.cfg.Model}).Observe(duration.Seconds())
	return resp.Message.Content, nil
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jobsieve/jobsieve/internal/utils"
)

const (
	defaultModel = "gemini-2.5-flash"

	retryBaseDelay = 2 * time.Second
)

// StageConfig carries the per-stage model settings loaded from configuration.
type StageConfig struct {
	Stage       string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}

// Generator wraps a Google GenAI client configured for a single pipeline
// stage: its own credential, endpoint, model and sampling settings.
type Generator struct {
	client      *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
	maxRetries  int
	logger      *zap.Logger
}

// NewGenerator creates a stage-scoped Generator. A missing API key is a
// configuration error; the caller decides whether that is fatal.
func NewGenerator(ctx context.Context, cfg StageConfig, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("stage %q: api key is required", cfg.Stage)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client for stage %q: %w", cfg.Stage, err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Generator{
		client:      client,
		modelName:   model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
		maxRetries:  maxRetries,
		logger:      logger,
	}, nil
}

// GenerateStructured asks the model for a response conforming to the given
// JSON schema and returns the raw JSON text.
func (g *Generator) GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	cfg := g.baseConfig()
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = schema
	return g.generateContent(ctx, prompt, cfg)
}

// GenerateText issues a plain completion call with an optional system
// instruction and returns the concatenated textual response.
func (g *Generator) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	cfg := g.baseConfig()
	if system = strings.TrimSpace(system); system != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	return g.generateContent(ctx, prompt, cfg)
}

func (g *Generator) baseConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = g.maxTokens
	}
	return cfg
}

func (g *Generator) generateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var resp *genai.GenerateContentResponse
	var err error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err = g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
		if err == nil {
			break
		}
		if attempt == g.maxRetries || !isRetryable(err) {
			return "", fmt.Errorf("generate content: %w", err)
		}

		delay := time.Duration(attempt) * retryBaseDelay
		g.logger.Warn("gemini api call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if waitErr := utils.WaitFor(ctx, delay); waitErr != nil {
			return "", fmt.Errorf("generate content: %w", waitErr)
		}
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// isRetryable reports whether an API error is worth another attempt:
// server-side failures and rate limits, nothing else.
func isRetryable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"job-agent/internal/util"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel     = "gemini-embedding-001"
	defaultDimension = 768
	retryBaseDelay   = 2 * time.Second
)

// Embedder produces embeddings through the Gemini API. It satisfies the
// embedding.Embedder contract: deterministic responses are up to the model,
// but empty text is short-circuited to a zero vector locally so the engine
// never pays a request for it.
type Embedder struct {
	client     *genai.Client
	modelName  string
	dimension  int
	maxRetries int
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder configured for the Gemini API backend.
func NewEmbedder(ctx context.Context, apiKey, model string, dimension, maxRetries int, logger *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if dimension <= 0 {
		dimension = defaultDimension
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     client,
		modelName:  model,
		dimension:  dimension,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	if strings.TrimSpace(text) == "" {
		return make([]float64, e.dimension), nil
	}

	e.logger.Debug("embedding text",
		zap.Int("length", len(text)),
		zap.String("preview", util.TruncateForLog(text, 80)),
	)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying embed content request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := util.WaitFor(ctx, time.Duration(attempt)*retryBaseDelay); err != nil {
				return nil, err
			}
		}

		vector, err := e.embedContent(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

func (e *Embedder) embedContent(ctx context.Context, text string) ([]float64, error) {
	config := &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(e.dimension)),
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.modelName, genai.Text(text), config)
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini api returned empty embedding")
	}

	values := resp.Embeddings[0].Values
	vector := make([]float64, len(values))
	for i, v := range values {
		vector[i] = float64(v)
	}

	return vector, nil
}

func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.modelName
}

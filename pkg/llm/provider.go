package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// Provider is the vendor-agnostic surface the rest of the engine talks to:
// the planner, the vectorization bridge, and the schema analyzer all drive
// an LLM through this interface rather than a vendor SDK directly.
type Provider interface {
	// GenerateResponse produces a chat completion for a single prompt with
	// a system message. thinking toggles chain-of-thought where the
	// underlying model supports it.
	GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error)
	// CreateEmbedding returns the embedding vector for a single input.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
	// CreateEmbeddings returns embedding vectors for multiple inputs in one call.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
	// Model returns the configured chat model name, for logging.
	Model() string
}

// NewProvider dispatches on cfg.Type to construct the right vendor client.
// This is the sole place that maps a models.ProviderType to a concrete
// implementation; callers (the rate limiter, the circuit breaker, the
// planner) only ever see the Provider interface.
func NewProvider(cfg models.ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch NormalizeProviderType(cfg.Type) {
	case models.ProviderOpenAI:
		return newOpenAIProvider(cfg, logger)
	case models.ProviderAnthropic:
		return newAnthropicProvider(cfg, logger)
	case models.ProviderGoogle:
		return newGoogleProvider(cfg, logger)
	case models.ProviderOllama:
		return newOllamaProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported provider type: %q", cfg.Type)
	}
}

// NormalizeProviderType canonicalizes a user-supplied provider type string
// ("OpenAI", "open_ai", "open-ai" etc.) to the lowercase models.ProviderType
// constants the factory switches on.
func NormalizeProviderType(raw models.ProviderType) models.ProviderType {
	switch string(raw) {
	case "openai", "open_ai", "open-ai", "OpenAI":
		return models.ProviderOpenAI
	case "anthropic", "Anthropic", "claude":
		return models.ProviderAnthropic
	case "google", "Google", "gemini", "genai":
		return models.ProviderGoogle
	case "ollama", "Ollama":
		return models.ProviderOllama
	default:
		return raw
	}
}

// openAIProvider adapts the existing OpenAI-compatible Client to Provider.
// This client is also reused as the transport for local/self-hosted
// OpenAI-compatible endpoints (vLLM, llama.cpp server, etc.).
type openAIProvider struct {
	*Client
	embeddingModel string
}

func newOpenAIProvider(cfg models.ProviderConfig, logger *zap.Logger) (Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	client, err := NewClient(&Config{
		Endpoint: baseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return &openAIProvider{Client: client, embeddingModel: cfg.EmbeddingModel}, nil
}

func (p *openAIProvider) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	return p.Client.CreateEmbedding(ctx, input, p.embeddingModel)
}

func (p *openAIProvider) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	return p.Client.CreateEmbeddings(ctx, inputs, p.embeddingModel)
}

func (p *openAIProvider) Model() string {
	return p.Client.GetModel()
}

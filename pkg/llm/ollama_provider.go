package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// ollamaProvider adapts a local/self-hosted Ollama server to Provider.
// Ollama has no billed rate limit, hence the generous
// models.DefaultRateLimitPerHour(ProviderOllama) default.
type ollamaProvider struct {
	client         *api.Client
	model          string
	embeddingModel string
	logger         *zap.Logger
}

func newOllamaProvider(cfg models.ProviderConfig, logger *zap.Logger) (Provider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama provider requires a model")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = cfg.Model
	}

	return &ollamaProvider{
		client:         api.NewClient(parsed, http.DefaultClient),
		model:          cfg.Model,
		embeddingModel: embeddingModel,
		logger:         logger.Named("llm.ollama"),
	}, nil
}

func (p *ollamaProvider) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		System: systemMessage,
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
		},
	}
	if thinking {
		req.Think = &api.ThinkValue{Value: true}
	}

	var content string
	var promptEvalCount, evalCount int
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		content += resp.Response
		if resp.Done {
			promptEvalCount = resp.PromptEvalCount
			evalCount = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}

	return &GenerateResponseResult{
		Content:          content,
		PromptTokens:     promptEvalCount,
		CompletionTokens: evalCount,
		TotalTokens:      promptEvalCount + evalCount,
	}, nil
}

func (p *ollamaProvider) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	embeddings, err := p.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return embeddings[0], nil
}

func (p *ollamaProvider) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := p.client.Embed(ctx, &api.EmbedRequest{
		Model: p.embeddingModel,
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vec := make([]float32, len(e))
		for j, v := range e {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

func (p *ollamaProvider) Model() string {
	return p.model
}

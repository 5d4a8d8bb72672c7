package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// googleProvider adapts the Gemini API (via google.golang.org/genai) to
// Provider. Both chat and embeddings are native to this SDK, unlike
// Anthropic.
type googleProvider struct {
	client         *genai.Client
	model          string
	embeddingModel string
	logger         *zap.Logger
}

func newGoogleProvider(cfg models.ProviderConfig, logger *zap.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google provider requires an API key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("google provider requires a model")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}

	return &googleProvider{
		client:         client,
		model:          cfg.Model,
		embeddingModel: embeddingModel,
		logger:         logger.Named("llm.google"),
	}, nil
}

func (p *googleProvider) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if systemMessage != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemMessage, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, ClassifyError(err)
	}

	content := resp.Text()

	result := &GenerateResponseResult{Content: content}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

func (p *googleProvider) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	embeddings, err := p.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return embeddings[0], nil
}

func (p *googleProvider) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(inputs))
	for i, in := range inputs {
		contents[i] = genai.NewContentFromText(in, genai.RoleUser)
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		embeddings[i] = e.Values
	}
	return embeddings, nil
}

func (p *googleProvider) Model() string {
	return p.model
}

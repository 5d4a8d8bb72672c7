package llm

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// anthropicProvider adapts the Claude Messages API to Provider. Anthropic
// does not expose an embeddings endpoint, so CreateEmbedding(s) falls back
// to an OpenAI-compatible embedding endpoint when one is configured
// (EmbeddingModel + BaseURL override), and errors otherwise.
type anthropicProvider struct {
	client         *anthropic.Client
	model          string
	logger         *zap.Logger
	embeddingProxy Provider
}

func newAnthropicProvider(cfg models.ProviderConfig, logger *zap.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic provider requires an API key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic provider requires a model")
	}

	opts := []anthropic.ClientOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	p := &anthropicProvider{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  cfg.Model,
		logger: logger.Named("llm.anthropic"),
	}

	if cfg.EmbeddingModel != "" {
		embedCfg := cfg
		embedCfg.Type = models.ProviderOpenAI
		embedCfg.Model = cfg.EmbeddingModel
		if embed, err := newOpenAIProvider(embedCfg, logger); err == nil {
			p.embeddingProxy = embed
		}
	}

	return p, nil
}

func (p *anthropicProvider) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error) {
	req := anthropic.MessagesRequest{
		Model: anthropic.Model(p.model),
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
		MaxTokens:   4096,
		Temperature: float32Ptr(float32(temperature)),
	}
	if systemMessage != "" {
		req.System = systemMessage
	}
	if thinking {
		req.Thinking = &anthropic.Thinking{
			Type:         anthropic.ThinkingTypeEnabled,
			BudgetTokens: 2048,
		}
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, ClassifyError(err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			content += *block.Text
		}
	}

	return &GenerateResponseResult{
		Content:          content,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func (p *anthropicProvider) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if p.embeddingProxy == nil {
		return nil, fmt.Errorf("anthropic provider has no embedding endpoint configured")
	}
	return p.embeddingProxy.CreateEmbedding(ctx, input)
}

func (p *anthropicProvider) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if p.embeddingProxy == nil {
		return nil, fmt.Errorf("anthropic provider has no embedding endpoint configured")
	}
	return p.embeddingProxy.CreateEmbeddings(ctx, inputs)
}

func (p *anthropicProvider) Model() string {
	return p.model
}

func float32Ptr(f float32) *float32 {
	return &f
}

package models

// ProviderType identifies an LLM vendor. "ollama" and any raw string alias
// are normalized to this type before dispatch (see llm.NormalizeProviderType).
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGoogle    ProviderType = "google"
	ProviderOllama    ProviderType = "ollama"
)

// ProviderConfig is one registered LLM provider: its transport details and
// its rate-limit cap. The default cap is conservative and provider-specific
// unless overridden.
type ProviderConfig struct {
	ID               string       `json:"id" bson:"_id"`
	Type             ProviderType `json:"type" bson:"type"`
	BaseURL          string       `json:"base_url" bson:"base_url"`
	APIKey           string       `json:"-" bson:"api_key"`
	Model            string       `json:"model" bson:"model"`
	EmbeddingModel   string       `json:"embedding_model,omitempty" bson:"embedding_model,omitempty"`
	RateLimitPerHour int          `json:"rate_limit_per_hour" bson:"rate_limit_per_hour"`
	SupportsNativeMCP bool        `json:"supports_native_mcp" bson:"supports_native_mcp"`
	IsDefault        bool         `json:"is_default" bson:"is_default"`
}

// DefaultRateLimitPerHour returns the conservative per-hour cap for a
// provider type when no override is configured.
func DefaultRateLimitPerHour(t ProviderType) int {
	switch t {
	case ProviderOpenAI:
		return 500
	case ProviderAnthropic:
		return 300
	case ProviderGoogle:
		return 300
	case ProviderOllama:
		return 10000 // self-hosted, not billed per call
	default:
		return 50
	}
}

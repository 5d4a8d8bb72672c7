package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

// Dispatcher is the process-wide registry of configured LLM providers. It
// owns one Provider, one CircuitBreaker, and one rate-limiter slot per
// registered models.ProviderConfig, and is the only component downstream
// services (planner, vectorize, schema analysis) depend on for LLM access.
type Dispatcher struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	breakers    map[string]*CircuitBreaker
	limiter     *RateLimiter
	defaultID   string
	logger      *zap.Logger
}

// NewDispatcher constructs providers for every entry in configs, wiring a
// circuit breaker and a rate-limiter slot for each. The provider whose
// IsDefault is set (or, absent that, the first entry) becomes the default
// used when callers don't name a provider ID explicitly.
func NewDispatcher(configs []models.ProviderConfig, logger *zap.Logger) (*Dispatcher, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	d := &Dispatcher{
		providers: make(map[string]Provider, len(configs)),
		breakers:  make(map[string]*CircuitBreaker, len(configs)),
		limiter:   NewRateLimiter(),
		logger:    logger,
	}

	for _, cfg := range configs {
		provider, err := NewProvider(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create provider %q: %w", cfg.ID, err)
		}

		d.providers[cfg.ID] = provider
		d.breakers[cfg.ID] = NewCircuitBreaker(DefaultCircuitBreakerConfig())

		limit := cfg.RateLimitPerHour
		if limit == 0 {
			limit = models.DefaultRateLimitPerHour(NormalizeProviderType(cfg.Type))
		}
		d.limiter.Register(cfg.ID, limit)

		if cfg.IsDefault || d.defaultID == "" {
			d.defaultID = cfg.ID
		}
	}

	return d, nil
}

// Get returns the raw Provider for providerID, bypassing the circuit
// breaker and rate limiter. Prefer GenerateResponse/CreateEmbedding(s)
// below for normal call paths.
func (d *Dispatcher) Get(providerID string) (Provider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if providerID == "" {
		providerID = d.defaultID
	}
	p, ok := d.providers[providerID]
	if !ok {
		return nil, apperrors.NotFound("provider %q is not registered", providerID)
	}
	return p, nil
}

// GenerateResponse drives a chat completion against providerID (or the
// default provider when empty), gated by that provider's circuit breaker
// and rolling-hour rate limit.
func (d *Dispatcher) GenerateResponse(ctx context.Context, providerID, prompt, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error) {
	id, provider, breaker, err := d.resolve(providerID)
	if err != nil {
		return nil, err
	}

	if allowed, cbErr := breaker.Allow(); !allowed {
		return nil, apperrors.Wrap(apperrors.KindUpstream, fmt.Sprintf("provider %q circuit is open", id), cbErr)
	}
	if !d.limiter.Allow(id) {
		return nil, apperrors.RateLimited(d.limiter.RetryAfter(id), "provider %q hourly rate limit exceeded", id)
	}

	result, err := provider.GenerateResponse(ctx, prompt, systemMessage, temperature, thinking)
	if err != nil {
		breaker.RecordFailure()
		return nil, apperrors.Wrap(apperrors.KindUpstream, fmt.Sprintf("provider %q generate failed", id), err)
	}
	breaker.RecordSuccess()
	return result, nil
}

// CreateEmbedding drives a single embedding call against providerID (or the
// default provider when empty), under the same breaker/limiter gating as
// GenerateResponse.
func (d *Dispatcher) CreateEmbedding(ctx context.Context, providerID, input string) ([]float32, error) {
	id, provider, breaker, err := d.resolve(providerID)
	if err != nil {
		return nil, err
	}

	if allowed, cbErr := breaker.Allow(); !allowed {
		return nil, apperrors.Wrap(apperrors.KindUpstream, fmt.Sprintf("provider %q circuit is open", id), cbErr)
	}
	if !d.limiter.Allow(id) {
		return nil, apperrors.RateLimited(d.limiter.RetryAfter(id), "provider %q hourly rate limit exceeded", id)
	}

	embedding, err := provider.CreateEmbedding(ctx, input)
	if err != nil {
		breaker.RecordFailure()
		return nil, apperrors.Wrap(apperrors.KindUpstream, fmt.Sprintf("provider %q embedding failed", id), err)
	}
	breaker.RecordSuccess()
	return embedding, nil
}

// CreateEmbeddings batches multiple embeddings through one rate-limit slot,
// counted as a single call against the hourly cap.
func (d *Dispatcher) CreateEmbeddings(ctx context.Context, providerID string, inputs []string) ([][]float32, error) {
	id, provider, breaker, err := d.resolve(providerID)
	if err != nil {
		return nil, err
	}

	if allowed, cbErr := breaker.Allow(); !allowed {
		return nil, apperrors.Wrap(apperrors.KindUpstream, fmt.Sprintf("provider %q circuit is open", id), cbErr)
	}
	if !d.limiter.Allow(id) {
		return nil, apperrors.RateLimited(d.limiter.RetryAfter(id), "provider %q hourly rate limit exceeded", id)
	}

	embeddings, err := provider.CreateEmbeddings(ctx, inputs)
	if err != nil {
		breaker.RecordFailure()
		return nil, apperrors.Wrap(apperrors.KindUpstream, fmt.Sprintf("provider %q embeddings failed", id), err)
	}
	breaker.RecordSuccess()
	return embeddings, nil
}

func (d *Dispatcher) resolve(providerID string) (string, Provider, *CircuitBreaker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id := providerID
	if id == "" {
		id = d.defaultID
	}
	provider, ok := d.providers[id]
	if !ok {
		return "", nil, nil, apperrors.NotFound("provider %q is not registered", id)
	}
	return id, provider, d.breakers[id], nil
}

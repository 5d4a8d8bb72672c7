package mcp

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/repositories"
)

// ContextRuntime is the process-wide registry of MCP contexts: the thing
// store_document/find_relevant attach calls to, and the activation
// lifecycle exposed over POST /contexts/{id}/activate|deactivate.
//
// Activation and deactivation are serialized behind a single mutex so
// concurrent callers observe a consistent active flag; listing is a
// lock-free snapshot straight off the repository.
type ContextRuntime struct {
	repo repositories.ContextRepository
	mu   sync.Mutex
	log  *zap.Logger
}

// NewContextRuntime constructs a ContextRuntime over repo.
func NewContextRuntime(repo repositories.ContextRepository, logger *zap.Logger) *ContextRuntime {
	return &ContextRuntime{repo: repo, log: logger.Named("mcp_runtime")}
}

// Activate marks contextID active. Idempotent; fails with NotFound if the
// context does not exist (clients are expected to create an area first,
// which provisions its context).
func (r *ContextRuntime) Activate(ctx context.Context, contextID string) (*models.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.repo.GetByID(ctx, contextID); err != nil {
		return nil, err
	}
	if err := r.repo.SetActive(ctx, contextID, true); err != nil {
		return nil, err
	}
	return r.repo.GetByID(ctx, contextID)
}

// Deactivate marks contextID inactive. Idempotent, including when the
// context has already been deleted out from under an active caller.
func (r *ContextRuntime) Deactivate(ctx context.Context, contextID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.repo.SetActive(ctx, contextID, false)
	if err != nil && apperrors.GetKind(err) == apperrors.KindNotFound {
		return nil
	}
	return err
}

// ActiveContexts returns every currently-active context. Lock-free: a
// caller may race with a concurrent Activate/Deactivate and see either
// side of it, which is acceptable for an observability listing.
func (r *ContextRuntime) ActiveContexts(ctx context.Context) ([]*models.Context, error) {
	return r.ActiveContextsByType(ctx, "")
}

// ActiveContextsByType returns active contexts, additionally filtered to
// those whose metadata["type"] equals metadataType when it is non-empty.
// Both the embedded and the HTTP fallback client expose this same filter
// (get_active_contexts), per the MCP client-parity decision.
func (r *ContextRuntime) ActiveContextsByType(ctx context.Context, metadataType string) ([]*models.Context, error) {
	all, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*models.Context, 0, len(all))
	for _, c := range all {
		if !c.Active {
			continue
		}
		if metadataType != "" && c.Metadata["type"] != metadataType {
			continue
		}
		active = append(active, c)
	}
	return active, nil
}

// FirstActive returns the first active context found, or nil if none are
// active. store_document uses this to stamp the calling context onto a
// newly stored document's metadata.
func (r *ContextRuntime) FirstActive(ctx context.Context) (*models.Context, error) {
	active, err := r.ActiveContexts(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return active[0], nil
}

// Status summarizes the runtime for GET /mcp/status.
type Status struct {
	TotalContexts  int `json:"total_contexts"`
	ActiveContexts int `json:"active_contexts"`
}

// Status reports the total and active context counts.
func (r *ContextRuntime) Status(ctx context.Context) (Status, error) {
	all, err := r.repo.List(ctx)
	if err != nil {
		return Status{}, err
	}
	var active int
	for _, c := range all {
		if c.Active {
			active++
		}
	}
	return Status{TotalContexts: len(all), ActiveContexts: active}, nil
}

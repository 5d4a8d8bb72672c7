package client

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	mcpruntime "github.com/mratomo/graphrag-engine/pkg/mcp"
	"github.com/mratomo/graphrag-engine/pkg/mcp/tools"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/repositories"
)

type fakeEmbedder struct{}

func (fakeEmbedder) CreateEmbedding(_ context.Context, _, input string) ([]float32, error) {
	return []float32{float32(len(input)), 1, 0}, nil
}

type fakeContextRepo struct {
	contexts map[string]*models.Context
}

func newFakeContextRepo() *fakeContextRepo {
	return &fakeContextRepo{contexts: map[string]*models.Context{}}
}

func (f *fakeContextRepo) Create(ctx context.Context, c *models.Context) error {
	f.contexts[c.ContextID] = c
	return nil
}
func (f *fakeContextRepo) GetByID(ctx context.Context, id string) (*models.Context, error) {
	return f.contexts[id], nil
}
func (f *fakeContextRepo) List(ctx context.Context) ([]*models.Context, error) {
	var out []*models.Context
	for _, c := range f.contexts {
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeContextRepo) SetActive(ctx context.Context, id string, active bool) error {
	if c, ok := f.contexts[id]; ok {
		c.Active = active
	}
	return nil
}
func (f *fakeContextRepo) Delete(ctx context.Context, id string) error {
	delete(f.contexts, id)
	return nil
}

var _ repositories.ContextRepository = (*fakeContextRepo)(nil)

func newTestClient(t *testing.T) *Client {
	repo := newFakeContextRepo()
	repo.contexts["ctx-1"] = &models.Context{ContextID: "ctx-1", Active: true, Metadata: map[string]string{"type": "area"}}
	repo.contexts["ctx-2"] = &models.Context{ContextID: "ctx-2", Active: true, Metadata: map[string]string{"type": "personal"}}
	repo.contexts["ctx-3"] = &models.Context{ContextID: "ctx-3", Active: false}

	logger := zaptest.NewLogger(t)
	deps := &tools.Deps{
		Store:    vectorstore.NewMemoryStore(),
		Embedder: fakeEmbedder{},
		Runtime:  mcpruntime.NewContextRuntime(repo, logger),
		Logger:   logger,
	}
	return New(deps)
}

func TestStoreDocument_TagsClientType(t *testing.T) {
	c := newTestClient(t)
	result, err := c.StoreDocument(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("StoreDocument: %v", err)
	}
	if result.ClientType != ClientType {
		t.Errorf("expected client_type %q, got %q", ClientType, result.ClientType)
	}
	if !result.Stored {
		t.Error("expected Stored to be true")
	}
}

func TestFindRelevant_TagsClientType(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	_, _ = c.StoreDocument(ctx, "hello world", nil)

	result, err := c.FindRelevant(ctx, "hello", "", "", "", 5)
	if err != nil {
		t.Fatalf("FindRelevant: %v", err)
	}
	if result.ClientType != ClientType {
		t.Errorf("expected client_type %q, got %q", ClientType, result.ClientType)
	}
	if len(result.Results) != 1 {
		t.Errorf("expected 1 result, got %d", len(result.Results))
	}
}

func TestActiveContexts_FiltersByMetadataType(t *testing.T) {
	c := newTestClient(t)
	result, err := c.ActiveContexts(context.Background(), "personal")
	if err != nil {
		t.Fatalf("ActiveContexts: %v", err)
	}
	if len(result.Contexts) != 1 || result.Contexts[0].ContextID != "ctx-2" {
		t.Errorf("expected only ctx-2, got %+v", result.Contexts)
	}
}

func TestActiveContexts_NoFilterReturnsAllActive(t *testing.T) {
	c := newTestClient(t)
	result, err := c.ActiveContexts(context.Background(), "")
	if err != nil {
		t.Fatalf("ActiveContexts: %v", err)
	}
	if len(result.Contexts) != 2 {
		t.Errorf("expected 2 active contexts, got %d", len(result.Contexts))
	}
}

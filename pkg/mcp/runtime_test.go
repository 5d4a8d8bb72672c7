package mcp

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

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

func (f *fakeContextRepo) GetByID(ctx context.Context, contextID string) (*models.Context, error) {
	c, ok := f.contexts[contextID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContextRepo) List(ctx context.Context) ([]*models.Context, error) {
	var out []*models.Context
	for _, c := range f.contexts {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeContextRepo) SetActive(ctx context.Context, contextID string, active bool) error {
	c, ok := f.contexts[contextID]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Active = active
	if active {
		now := time.Now()
		c.LastActivated = &now
	}
	return nil
}

func (f *fakeContextRepo) Delete(ctx context.Context, contextID string) error {
	if _, ok := f.contexts[contextID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.contexts, contextID)
	return nil
}

func TestActivate_NonExistentContextIsNotFound(t *testing.T) {
	rt := NewContextRuntime(newFakeContextRepo(), zaptest.NewLogger(t))
	_, err := rt.Activate(context.Background(), "missing")
	if apperrors.GetKind(err) != apperrors.KindNotFound {
		t.Errorf("expected KindNotFound, got %v", err)
	}
}

func TestActivate_IsIdempotent(t *testing.T) {
	repo := newFakeContextRepo()
	repo.contexts["area-1"] = &models.Context{ContextID: "area-1", Name: "area one"}
	rt := NewContextRuntime(repo, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := rt.Activate(ctx, "area-1"); err != nil {
		t.Fatalf("first Activate: %v", err)
	}
	c, err := rt.Activate(ctx, "area-1")
	if err != nil {
		t.Fatalf("second Activate: %v", err)
	}
	if !c.Active {
		t.Error("expected context to remain active")
	}
}

func TestDeactivate_MissingContextIsNotAnError(t *testing.T) {
	rt := NewContextRuntime(newFakeContextRepo(), zaptest.NewLogger(t))
	if err := rt.Deactivate(context.Background(), "gone"); err != nil {
		t.Errorf("expected idempotent no-op, got %v", err)
	}
}

func TestActiveContexts_OnlyReturnsActive(t *testing.T) {
	repo := newFakeContextRepo()
	repo.contexts["a"] = &models.Context{ContextID: "a", Active: true}
	repo.contexts["b"] = &models.Context{ContextID: "b", Active: false}
	rt := NewContextRuntime(repo, zaptest.NewLogger(t))

	active, err := rt.ActiveContexts(context.Background())
	if err != nil {
		t.Fatalf("ActiveContexts: %v", err)
	}
	if len(active) != 1 || active[0].ContextID != "a" {
		t.Errorf("expected only context a, got %+v", active)
	}
}

func TestFirstActive_NoneActiveReturnsNil(t *testing.T) {
	rt := NewContextRuntime(newFakeContextRepo(), zaptest.NewLogger(t))
	c, err := rt.FirstActive(context.Background())
	if err != nil {
		t.Fatalf("FirstActive: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil, got %+v", c)
	}
}

func TestStatus_CountsTotalAndActive(t *testing.T) {
	repo := newFakeContextRepo()
	repo.contexts["a"] = &models.Context{ContextID: "a", Active: true}
	repo.contexts["b"] = &models.Context{ContextID: "b", Active: false}
	repo.contexts["c"] = &models.Context{ContextID: "c", Active: true}
	rt := NewContextRuntime(repo, zaptest.NewLogger(t))

	status, err := rt.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.TotalContexts != 3 || status.ActiveContexts != 2 {
		t.Errorf("unexpected status: %+v", status)
	}
}

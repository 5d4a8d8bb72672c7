//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/testhelpers"
)

func TestAreaRepository_CreateResolveDelete(t *testing.T) {
	mongo := testhelpers.GetTestMongo(t)
	defer mongo.DropDatabase(t)
	repo := NewAreaRepository(mongo.DB)
	ctx := context.Background()

	area := &models.Area{
		ID:        "sales",
		Name:      "Sales",
		ContextID: "support-kb",
		Metadata:  map[string]string{"connection_id": "11111111-1111-1111-1111-111111111111"},
	}
	if err := repo.Create(ctx, area); err != nil {
		t.Fatalf("create: %v", err)
	}

	resolved, err := repo.ResolveArea(ctx, "sales")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ConnectionIDFromMetadata() != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("unexpected connection id: %q", resolved.ConnectionIDFromMetadata())
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 area, got %d", len(list))
	}

	if err := repo.Delete(ctx, "sales"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.ResolveArea(ctx, "sales"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

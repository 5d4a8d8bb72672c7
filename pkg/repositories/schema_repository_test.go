//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/testhelpers"
)

func TestSchemaRepository_UpsertIsIdempotentPerConnection(t *testing.T) {
	mongo := testhelpers.GetTestMongo(t)
	defer mongo.DropDatabase(t)
	repo := NewSchemaRepository(mongo.DB)
	ctx := context.Background()

	connID := uuid.New()
	schema := models.PendingSchema(connID, "postgresql")
	if err := repo.Upsert(ctx, schema); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	schema.Status = models.SchemaStatusCompleted
	schema.Tables = []models.Table{{Name: "orders", Schema: "public", Columns: []models.Column{{Name: "id", DataType: "uuid", IsPrimaryKey: true}}}}
	if err := repo.Upsert(ctx, schema); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	fetched, err := repo.GetByConnectionID(ctx, connID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != models.SchemaStatusCompleted {
		t.Errorf("expected completed status, got %q", fetched.Status)
	}
	if len(fetched.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(fetched.Tables))
	}

	if err := repo.Delete(ctx, connID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByConnectionID(ctx, connID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

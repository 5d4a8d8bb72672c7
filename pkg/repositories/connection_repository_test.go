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

func TestConnectionRepository_CreateGetUpdateDelete(t *testing.T) {
	mongo := testhelpers.GetTestMongo(t)
	defer mongo.DropDatabase(t)
	repo := NewConnectionRepository(mongo.DB)
	ctx := context.Background()

	conn := &models.Connection{
		Type:     models.ConnectionTypePostgreSQL,
		Host:     "localhost",
		Port:     5432,
		Database: "orders",
		Username: "reader",
	}
	if err := repo.Create(ctx, conn); err != nil {
		t.Fatalf("create: %v", err)
	}
	if conn.ID == uuid.Nil {
		t.Fatal("expected a generated ID")
	}
	if conn.Status != models.ConnectionStatusUnknown {
		t.Errorf("expected default status unknown, got %q", conn.Status)
	}

	fetched, err := repo.GetByID(ctx, conn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Host != "localhost" {
		t.Errorf("expected host localhost, got %q", fetched.Host)
	}

	if err := repo.UpdateStatus(ctx, conn.ID, models.ConnectionStatusActive, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	fetched, err = repo.GetByID(ctx, conn.ID)
	if err != nil {
		t.Fatalf("get after status update: %v", err)
	}
	if fetched.Status != models.ConnectionStatusActive {
		t.Errorf("expected status active, got %q", fetched.Status)
	}
	if fetched.LastChecked == nil {
		t.Error("expected last_checked to be set")
	}

	fetched.Host = "db.internal"
	if err := repo.Update(ctx, fetched); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(list))
	}

	if err := repo.Delete(ctx, conn.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, conn.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestConnectionRepository_GetByID_NotFound(t *testing.T) {
	mongo := testhelpers.GetTestMongo(t)
	defer mongo.DropDatabase(t)
	repo := NewConnectionRepository(mongo.DB)

	_, err := repo.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

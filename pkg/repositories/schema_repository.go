package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/database"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

const schemasCollection = "schemas"

// SchemaRepository stores the single discovered Schema document per
// connection. There is no ListByConnection: a connection has at most one
// schema, upserted in place on every discovery run.
type SchemaRepository interface {
	Upsert(ctx context.Context, schema *models.Schema) error
	GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*models.Schema, error)
	Delete(ctx context.Context, connectionID uuid.UUID) error
}

type schemaRepository struct {
	collection *mongo.Collection
}

// NewSchemaRepository creates a new schema repository.
func NewSchemaRepository(db *database.DB) SchemaRepository {
	return &schemaRepository{collection: db.Collection(schemasCollection)}
}

func (r *schemaRepository) Upsert(ctx context.Context, schema *models.Schema) error {
	now := time.Now()
	if schema.CreatedAt.IsZero() {
		schema.CreatedAt = now
	}
	schema.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"connection_id": schema.ConnectionID}, schema, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert schema: %w", err)
	}
	return nil
}

func (r *schemaRepository) GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*models.Schema, error) {
	var schema models.Schema
	err := r.collection.FindOne(ctx, bson.M{"connection_id": connectionID}).Decode(&schema)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find schema: %w", err)
	}
	return &schema, nil
}

func (r *schemaRepository) Delete(ctx context.Context, connectionID uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"connection_id": connectionID})
	if err != nil {
		return fmt.Errorf("failed to delete schema: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/database"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

const areasCollection = "areas"

// AreaRepository stores named knowledge domains (models.Area). It also
// implements pkg/services/planner's AreaResolver port directly, since
// ResolveArea is just GetByID under another name.
type AreaRepository interface {
	Create(ctx context.Context, area *models.Area) error
	GetByID(ctx context.Context, id string) (*models.Area, error)
	List(ctx context.Context) ([]*models.Area, error)
	Delete(ctx context.Context, id string) error
	ResolveArea(ctx context.Context, areaID string) (*models.Area, error)
}

type areaRepository struct {
	collection *mongo.Collection
}

// NewAreaRepository creates a new area repository.
func NewAreaRepository(db *database.DB) AreaRepository {
	return &areaRepository{collection: db.Collection(areasCollection)}
}

func (r *areaRepository) Create(ctx context.Context, area *models.Area) error {
	area.CreatedAt = time.Now()

	if _, err := r.collection.InsertOne(ctx, area); err != nil {
		return fmt.Errorf("failed to insert area: %w", err)
	}
	return nil
}

func (r *areaRepository) GetByID(ctx context.Context, id string) (*models.Area, error) {
	var area models.Area
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&area)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find area: %w", err)
	}
	return &area, nil
}

// ResolveArea satisfies pkg/services/planner.AreaResolver.
func (r *areaRepository) ResolveArea(ctx context.Context, areaID string) (*models.Area, error) {
	return r.GetByID(ctx, areaID)
}

func (r *areaRepository) List(ctx context.Context) ([]*models.Area, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list areas: %w", err)
	}
	defer cursor.Close(ctx)

	var areas []*models.Area
	if err := cursor.All(ctx, &areas); err != nil {
		return nil, fmt.Errorf("failed to decode areas: %w", err)
	}
	return areas, nil
}

func (r *areaRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete area: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

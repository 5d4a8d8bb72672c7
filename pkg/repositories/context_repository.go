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

const contextsCollection = "contexts"

// ContextRepository stores MCP retrieval contexts.
type ContextRepository interface {
	Create(ctx context.Context, c *models.Context) error
	GetByID(ctx context.Context, contextID string) (*models.Context, error)
	List(ctx context.Context) ([]*models.Context, error)
	SetActive(ctx context.Context, contextID string, active bool) error
	Delete(ctx context.Context, contextID string) error
}

type contextRepository struct {
	collection *mongo.Collection
}

// NewContextRepository creates a new context repository.
func NewContextRepository(db *database.DB) ContextRepository {
	return &contextRepository{collection: db.Collection(contextsCollection)}
}

func (r *contextRepository) Create(ctx context.Context, c *models.Context) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to insert context: %w", err)
	}
	return nil
}

func (r *contextRepository) GetByID(ctx context.Context, contextID string) (*models.Context, error) {
	var c models.Context
	err := r.collection.FindOne(ctx, bson.M{"_id": contextID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find context: %w", err)
	}
	return &c, nil
}

func (r *contextRepository) List(ctx context.Context) ([]*models.Context, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	defer cursor.Close(ctx)

	var contexts []*models.Context
	if err := cursor.All(ctx, &contexts); err != nil {
		return nil, fmt.Errorf("failed to decode contexts: %w", err)
	}
	return contexts, nil
}

// SetActive flips a context's Active flag and, when activating, stamps
// LastActivated. The MCP Context Runtime serializes its calls to this;
// nothing limits how many contexts are active at once.
func (r *contextRepository) SetActive(ctx context.Context, contextID string, active bool) error {
	set := bson.M{"active": active, "updated_at": time.Now()}
	if active {
		now := time.Now()
		set["last_activated"] = &now
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": contextID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update context activation: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *contextRepository) Delete(ctx context.Context, contextID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": contextID})
	if err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

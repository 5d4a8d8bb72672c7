package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/database"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

const connectionsCollection = "connections"

// ConnectionRepository defines data access for stored connection credentials.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.Connection) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	List(ctx context.Context) ([]*models.Connection, error)
	Update(ctx context.Context, conn *models.Connection) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, lastError string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type connectionRepository struct {
	collection *mongo.Collection
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{collection: db.Collection(connectionsCollection)}
}

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	if conn.Status == "" {
		conn.Status = models.ConnectionStatusUnknown
	}

	if _, err := r.collection.InsertOne(ctx, conn); err != nil {
		return fmt.Errorf("failed to insert connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	var conn models.Connection
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conn)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find connection: %w", err)
	}
	return &conn, nil
}

func (r *connectionRepository) List(ctx context.Context) ([]*models.Connection, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer cursor.Close(ctx)

	var connections []*models.Connection
	if err := cursor.All(ctx, &connections); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}
	return connections, nil
}

func (r *connectionRepository) Update(ctx context.Context, conn *models.Connection) error {
	conn.UpdatedAt = time.Now()
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": conn.ID}, conn)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateStatus records the outcome of a connectivity test (spec §9 Open
// Question (c): Test both raises an error on failure AND persists the
// derived status/last_checked so subsequent reads reflect it).
func (r *connectionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, lastError string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":       status,
			"last_checked": &now,
			"last_error":   lastError,
			"updated_at":   now,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mratomo/graphrag-engine/pkg/database"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

const queryHistoryCollection = "query_history"

// QueryHistoryRepository persists answered queries for GET /query/history.
// It satisfies pkg/services/planner's HistoryRecorder port directly.
type QueryHistoryRepository interface {
	Record(ctx context.Context, record models.QueryRecord) error
	List(ctx context.Context, userID string, limit int64) ([]models.QueryRecord, error)
}

type queryHistoryRepository struct {
	collection *mongo.Collection
}

// NewQueryHistoryRepository creates a new query history repository.
func NewQueryHistoryRepository(db *database.DB) QueryHistoryRepository {
	return &queryHistoryRepository{collection: db.Collection(queryHistoryCollection)}
}

func (r *queryHistoryRepository) Record(ctx context.Context, record models.QueryRecord) error {
	if record.ID == "" {
		record.ID = fmt.Sprintf("%d-%s", record.Timestamp.UnixNano(), record.UserID)
	}
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}
	return nil
}

func (r *queryHistoryRepository) List(ctx context.Context, userID string, limit int64) ([]models.QueryRecord, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list query history: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.QueryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode query history: %w", err)
	}
	return records, nil
}

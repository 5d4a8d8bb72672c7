package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/database"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

const providersCollection = "providers"

// ProviderRepository stores registered LLM providers. pkg/llm.Dispatcher
// loads its routing table from this at startup and on provider changes.
type ProviderRepository interface {
	Create(ctx context.Context, provider *models.ProviderConfig) error
	GetByID(ctx context.Context, id string) (*models.ProviderConfig, error)
	List(ctx context.Context) ([]*models.ProviderConfig, error)
	GetDefault(ctx context.Context) (*models.ProviderConfig, error)
	Update(ctx context.Context, provider *models.ProviderConfig) error
	Delete(ctx context.Context, id string) error
}

type providerRepository struct {
	collection *mongo.Collection
}

// NewProviderRepository creates a new provider repository.
func NewProviderRepository(db *database.DB) ProviderRepository {
	return &providerRepository{collection: db.Collection(providersCollection)}
}

func (r *providerRepository) Create(ctx context.Context, provider *models.ProviderConfig) error {
	if provider.RateLimitPerHour == 0 {
		provider.RateLimitPerHour = models.DefaultRateLimitPerHour(provider.Type)
	}

	if provider.IsDefault {
		if err := r.clearDefault(ctx); err != nil {
			return err
		}
	}

	if _, err := r.collection.InsertOne(ctx, provider); err != nil {
		return fmt.Errorf("failed to insert provider: %w", err)
	}
	return nil
}

func (r *providerRepository) GetByID(ctx context.Context, id string) (*models.ProviderConfig, error) {
	var provider models.ProviderConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&provider)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find provider: %w", err)
	}
	return &provider, nil
}

func (r *providerRepository) List(ctx context.Context) ([]*models.ProviderConfig, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer cursor.Close(ctx)

	var providers []*models.ProviderConfig
	if err := cursor.All(ctx, &providers); err != nil {
		return nil, fmt.Errorf("failed to decode providers: %w", err)
	}
	return providers, nil
}

func (r *providerRepository) GetDefault(ctx context.Context) (*models.ProviderConfig, error) {
	var provider models.ProviderConfig
	err := r.collection.FindOne(ctx, bson.M{"is_default": true}).Decode(&provider)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find default provider: %w", err)
	}
	return &provider, nil
}

func (r *providerRepository) Update(ctx context.Context, provider *models.ProviderConfig) error {
	if provider.IsDefault {
		if err := r.clearDefault(ctx); err != nil {
			return err
		}
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": provider.ID}, provider)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// clearDefault unsets is_default on every other provider so at most one
// provider is ever the default.
func (r *providerRepository) clearDefault(ctx context.Context) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{"is_default": true}, bson.M{"$set": bson.M{"is_default": false}})
	if err != nil {
		return fmt.Errorf("failed to clear existing default provider: %w", err)
	}
	return nil
}

func (r *providerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

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

const agentsCollection = "agents"

// AgentRepository stores named LLM personas and their connection
// assignments.
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	List(ctx context.Context) ([]*models.Agent, error)
	Update(ctx context.Context, agent *models.Agent) error
	AssignConnection(ctx context.Context, agentID uuid.UUID, assignment models.ConnectionAssignment) error
	UnassignConnection(ctx context.Context, agentID, connectionID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type agentRepository struct {
	collection *mongo.Collection
}

// NewAgentRepository creates a new agent repository.
func NewAgentRepository(db *database.DB) AgentRepository {
	return &agentRepository{collection: db.Collection(agentsCollection)}
}

func (r *agentRepository) Create(ctx context.Context, agent *models.Agent) error {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	now := time.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	if agent.Connections == nil {
		agent.Connections = []models.ConnectionAssignment{}
	}

	if _, err := r.collection.InsertOne(ctx, agent); err != nil {
		return fmt.Errorf("failed to insert agent: %w", err)
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&agent)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find agent: %w", err)
	}
	return &agent, nil
}

func (r *agentRepository) List(ctx context.Context) ([]*models.Agent, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer cursor.Close(ctx)

	var agents []*models.Agent
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}
	return agents, nil
}

func (r *agentRepository) Update(ctx context.Context, agent *models.Agent) error {
	agent.UpdatedAt = time.Now()
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": agent.ID}, agent)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AssignConnection appends a connection assignment, replacing any existing
// assignment for the same connection_id (re-assigning updates permissions
// rather than duplicating the entry).
func (r *agentRepository) AssignConnection(ctx context.Context, agentID uuid.UUID, assignment models.ConnectionAssignment) error {
	assignment.AssignedAt = time.Now()

	pullResult, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": agentID},
		bson.M{"$pull": bson.M{"connections": bson.M{"connection_id": assignment.ConnectionID}}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear existing connection assignment: %w", err)
	}
	if pullResult.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": agentID},
		bson.M{
			"$push": bson.M{"connections": assignment},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to assign connection: %w", err)
	}
	return nil
}

func (r *agentRepository) UnassignConnection(ctx context.Context, agentID, connectionID uuid.UUID) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": agentID},
		bson.M{
			"$pull": bson.M{"connections": bson.M{"connection_id": connectionID}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to unassign connection: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *agentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

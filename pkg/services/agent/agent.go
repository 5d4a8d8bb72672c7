// Package agent implements Agent CRUD and the connection-assignment
// permission checks the Connection Registry's execute_query enforces
// before running an agent-issued statement (spec.md §4.2/§9).
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/repositories"
)

// Service manages Agents and their connection assignments.
type Service struct {
	repo     repositories.AgentRepository
	connRepo repositories.ConnectionRepository
}

// New constructs a Service. connRepo is used only to detect orphaned
// assignments (a Connection deleted out from under an Agent) when listing.
func New(repo repositories.AgentRepository, connRepo repositories.ConnectionRepository) *Service {
	return &Service{repo: repo, connRepo: connRepo}
}

func (s *Service) Create(ctx context.Context, create models.AgentCreate) (*models.Agent, error) {
	agent := &models.Agent{
		ID:             uuid.New(),
		Name:           create.Name,
		Model:          create.Model,
		Prompts:        create.Prompts,
		ExampleQueries: create.ExampleQueries,
		Connections:    []models.ConnectionAssignment{},
	}
	if err := s.repo.Create(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*models.Agent, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, update models.AgentCreate) (*models.Agent, error) {
	agent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	agent.Name = update.Name
	agent.Model = update.Model
	agent.Prompts = update.Prompts
	agent.ExampleQueries = update.ExampleQueries
	if err := s.repo.Update(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// AssignConnection grants an Agent permission to query a Connection with
// the given statement classes (see pkg/services/security.StatementClass).
func (s *Service) AssignConnection(ctx context.Context, agentID, connectionID uuid.UUID, permissions []string) error {
	return s.repo.AssignConnection(ctx, agentID, models.ConnectionAssignment{
		ConnectionID: connectionID,
		Permissions:  permissions,
		AssignedAt:   time.Now(),
	})
}

func (s *Service) UnassignConnection(ctx context.Context, agentID, connectionID uuid.UUID) error {
	return s.repo.UnassignConnection(ctx, agentID, connectionID)
}

// ActiveAssignments returns an Agent's connection assignments, silently
// dropping any whose Connection has since been deleted: per spec.md §4's
// ownership rule, a dangling assignment must be treated as missing rather
// than surfaced as an error.
func (s *Service) ActiveAssignments(ctx context.Context, agentID uuid.UUID) ([]models.ConnectionAssignment, error) {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	active := make([]models.ConnectionAssignment, 0, len(agent.Connections))
	for _, assignment := range agent.Connections {
		if _, err := s.connRepo.GetByID(ctx, assignment.ConnectionID); err != nil {
			continue
		}
		active = append(active, assignment)
	}
	return active, nil
}

// PermittedClasses returns the statement classes (read/write/administrative)
// an Agent is allowed to run against connectionID, or apperrors.ErrNotFound
// if the Agent has no (live) assignment for that connection.
func (s *Service) PermittedClasses(ctx context.Context, agentID, connectionID uuid.UUID) ([]string, error) {
	assignments, err := s.ActiveAssignments(ctx, agentID)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if a.ConnectionID == connectionID {
			return a.Permissions, nil
		}
	}
	return nil, apperrors.NotFound("agent %s has no assignment for connection %s", agentID, connectionID)
}

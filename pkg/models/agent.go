package models

import (
	"time"

	"github.com/google/uuid"
)

// PromptSlots holds the four named prompt templates an Agent can customize.
type PromptSlots struct {
	System            string `json:"system" bson:"system"`
	QueryEvaluation   string `json:"query_evaluation" bson:"query_evaluation"`
	QueryGeneration   string `json:"query_generation" bson:"query_generation"`
	ResultFormatting  string `json:"result_formatting" bson:"result_formatting"`
}

// ConnectionAssignment is a weak reference from an Agent to a Connection it
// is permitted to query. Deleting the Connection orphans the assignment;
// callers must treat a dangling assignment as "missing" rather than erroring.
type ConnectionAssignment struct {
	ConnectionID uuid.UUID `json:"connection_id" bson:"connection_id"`
	Permissions  []string  `json:"permissions,omitempty" bson:"permissions,omitempty"`
	AssignedAt   time.Time `json:"assigned_at" bson:"assigned_at"`
}

// Agent is a named LLM persona with a model reference, prompt slots, example
// queries, and a set of permitted connection assignments.
type Agent struct {
	ID              uuid.UUID               `json:"id" bson:"_id"`
	Name            string                  `json:"name" bson:"name"`
	Model           string                  `json:"model" bson:"model"`
	Prompts         PromptSlots             `json:"prompts" bson:"prompts"`
	ExampleQueries  []string                `json:"example_queries,omitempty" bson:"example_queries,omitempty"`
	Connections     []ConnectionAssignment  `json:"connections" bson:"connections"`
	CreatedAt       time.Time               `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at" bson:"updated_at"`
}

// AgentCreate is the request body accepted by POST /agents.
type AgentCreate struct {
	Name           string      `json:"name"`
	Model          string      `json:"model"`
	Prompts        PromptSlots `json:"prompts"`
	ExampleQueries []string    `json:"example_queries,omitempty"`
}

package models

import "time"

// Context is an MCP retrieval context: a named slot documents are stored
// into and retrieved from. Activation state is managed by the MCP Context
// Runtime under a single global lock (see pkg/mcp).
type Context struct {
	ContextID     string            `json:"context_id" bson:"_id"`
	Name          string            `json:"name" bson:"name"`
	Description   string            `json:"description,omitempty" bson:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Active        bool              `json:"active" bson:"active"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" bson:"updated_at"`
	LastActivated *time.Time        `json:"last_activated,omitempty" bson:"last_activated,omitempty"`
}

// Area is a named knowledge domain owning one MCP context and optionally a
// preferred LLM provider. Areas carry metadata.connection_id linking them to
// a target database for graph-aware queries.
type Area struct {
	ID                 string            `json:"id" bson:"_id"`
	Name               string            `json:"name" bson:"name"`
	ContextID          string            `json:"context_id" bson:"context_id"`
	Metadata           map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	PreferredProviderID string           `json:"preferred_provider_id,omitempty" bson:"preferred_provider_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at" bson:"created_at"`
}

// ConnectionIDFromMetadata extracts metadata["connection_id"], or "" if unset.
func (a *Area) ConnectionIDFromMetadata() string {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata["connection_id"]
}

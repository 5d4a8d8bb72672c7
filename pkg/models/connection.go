package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus is the derived reachability state of a Connection.
type ConnectionStatus string

const (
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusError   ConnectionStatus = "error"
	ConnectionStatusUnknown ConnectionStatus = "unknown"
)

// ConnectionType enumerates the supported target-database driver types.
// Unlike the teacher's ontology-scoped registry, this set also includes the
// vector store so it can be inspected through the same registry ports.
type ConnectionType string

const (
	ConnectionTypePostgreSQL ConnectionType = "postgresql"
	ConnectionTypeMySQL      ConnectionType = "mysql"
	ConnectionTypeMSSQL      ConnectionType = "mssql"
	ConnectionTypeMongoDB    ConnectionType = "mongodb"
	ConnectionTypeWeaviate   ConnectionType = "weaviate"
)

// Connection is a stored, encrypted credential set for a target database.
// Password is always ciphertext on disk and is never serialized to JSON on
// read paths (the json:"-" tag on EncryptedPassword leaves it out).
type Connection struct {
	ID               uuid.UUID        `json:"id" bson:"_id"`
	Type             ConnectionType   `json:"type" bson:"type"`
	Host             string           `json:"host" bson:"host"`
	Port             int              `json:"port" bson:"port"`
	Database         string           `json:"database" bson:"database"`
	Username         string           `json:"username" bson:"username"`
	EncryptedPassword string          `json:"-" bson:"encrypted_password"`
	TLS              bool             `json:"tls" bson:"tls"`
	Status           ConnectionStatus `json:"status" bson:"status"`
	LastChecked      *time.Time       `json:"last_checked,omitempty" bson:"last_checked,omitempty"`
	LastError        string           `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CreatedAt        time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" bson:"updated_at"`
}

// ConnectionCreate is the request body accepted by POST /connections.
type ConnectionCreate struct {
	Type     ConnectionType `json:"type"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	Database string         `json:"database"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TLS      bool           `json:"ssl"`
}

// ConnectionTestResult is returned by POST /connections/{id}/test.
type ConnectionTestResult struct {
	Status    ConnectionStatus `json:"status"`
	ElapsedMs int64            `json:"elapsed_ms"`
	Error     string           `json:"error,omitempty"`
}

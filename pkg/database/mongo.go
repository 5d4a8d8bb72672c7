package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mratomo/graphrag-engine/pkg/config"
)

// DB wraps the engine's MongoDB client and the database it was configured
// against, the document-store half of persistence (spec §4.1): connections,
// schemas, contexts/areas, query history, and discovery jobs all live here
// as collections, mirroring the original db-connection-service's Motor
// client settings (min/max pool size, server-selection timeout).
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect dials MongoDB and verifies the connection with a Ping, matching
// the fail-fast behavior of pkg/database's former Postgres pool setup.
func Connect(ctx context.Context, cfg config.MongoConfig) (*DB, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetServerSelectionTimeout(time.Duration(cfg.ServerSelectTimeoutMs) * time.Millisecond)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ServerSelectTimeoutMs)*time.Millisecond)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &DB{Client: client, Database: client.Database(cfg.Database)}, nil
}

// Close disconnects the client.
func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

// Collection is a small convenience wrapper so repository constructors read
// as `db.Collection("connections")` rather than repeating `db.Database.Collection(...)`.
func (db *DB) Collection(name string) *mongo.Collection {
	return db.Database.Collection(name)
}

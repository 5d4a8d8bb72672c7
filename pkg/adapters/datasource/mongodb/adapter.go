package mongodb

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
)

// Adapter provides MongoDB connectivity for a target deployment registered
// as a connection.
type Adapter struct {
	config       *Config
	client       *mongo.Client
	connMgr      *datasource.ConnectionManager
	projectID    uuid.UUID
	userID       string
	datasourceID uuid.UUID
	ownedClient  bool // true if we created the client (for tests or TestConnection case)
}

// buildURI builds a mongodb:// connection URI. Credentials are fully
// expressible in the URI, so the connection manager can build the pool
// directly from it, the same way it does for Postgres and MySQL.
func buildURI(cfg *Config) string {
	if cfg.URI != "" {
		return cfg.URI
	}
	if cfg.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d/%s",
			url.QueryEscape(cfg.Username),
			url.QueryEscape(cfg.Password),
			cfg.Host,
			cfg.Port,
			cfg.Database,
		)
	}
	return fmt.Sprintf("mongodb://%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
}

// NewAdapter creates a MongoDB adapter using the connection manager.
// If connMgr is nil, creates an unmanaged client (for tests or TestConnection).
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	uri := buildURI(cfg)

	if connMgr == nil {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("connection test failed: %w", err)
		}
		return &Adapter{
			config:      cfg,
			client:      client,
			ownedClient: true,
		}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, "mongodb", projectID, userID, datasourceID, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	client, err := datasource.GetMongoClient(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract mongodb client: %w", err)
	}

	return &Adapter{
		config:       cfg,
		client:       client,
		connMgr:      connMgr,
		projectID:    projectID,
		userID:       userID,
		datasourceID: datasourceID,
		ownedClient:  false,
	}, nil
}

// TestConnection verifies the deployment is reachable and the configured
// database is accessible.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	db := a.client.Database(a.config.Database)
	if err := db.RunCommand(ctx, map[string]any{"ping": 1}).Err(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close releases the adapter (but NOT the client if managed).
func (a *Adapter) Close() error {
	if a.ownedClient && a.client != nil {
		return a.client.Disconnect(context.Background())
	}
	return nil
}

// Database returns the target *mongo.Database for use by the schema discoverer.
func (a *Adapter) Database() *mongo.Database {
	return a.client.Database(a.config.Database)
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)

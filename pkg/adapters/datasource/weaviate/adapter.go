package weaviate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
)

// Adapter provides connectivity to a Weaviate deployment registered as a
// connection. Unlike the SQL/Mongo drivers, it never goes through
// ConnectionManager: the Weaviate Go client already holds its own HTTP
// connection pool internally, so there is nothing for the TTL-based pool
// machinery to manage.
type Adapter struct {
	config *Config
	client *weaviate.Client
}

// NewAdapter creates a Weaviate adapter. connMgr is accepted for signature
// parity with the other datasource factories but is unused.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clientCfg := weaviate.Config{
		Host:   cfg.URL,
		Scheme: "http",
	}
	if cfg.APIKey != "" {
		clientCfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return &Adapter{config: cfg, client: client}, nil
}

// TestConnection verifies the deployment is reachable and ready to serve
// schema/query requests.
func (a *Adapter) TestConnection(ctx context.Context) error {
	ready, err := a.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("ready check failed: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate deployment is not ready")
	}
	return nil
}

// Close is a no-op: the Weaviate client has no connection to release.
func (a *Adapter) Close() error {
	return nil
}

// Client returns the underlying *weaviate.Client for use by the schema discoverer.
func (a *Adapter) Client() *weaviate.Client {
	return a.client
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)

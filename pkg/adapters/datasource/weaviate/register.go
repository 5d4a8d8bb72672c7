//go:build weaviate || all_adapters

package weaviate

import (
	"context"

	"github.com/google/uuid"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "weaviate",
			DisplayName: "Weaviate",
			Description: "Inspect a Weaviate vector database's classes and properties",
			Icon:        "weaviate",
		},
		Factory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string) (datasource.ConnectionTester, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, connMgr, projectID, datasourceID, userID)
		},
		SchemaDiscovererFactory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string) (datasource.SchemaDiscoverer, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewSchemaDiscoverer(ctx, cfg, connMgr, projectID, datasourceID, userID)
		},
		// QueryExecutorFactory intentionally left nil: Weaviate has no SQL
		// query surface, only the GraphQL Get/Aggregate API used internally
		// by schema discovery.
	})
}

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/google/uuid"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
	"github.com/mratomo/graphrag-engine/pkg/config"
)

// Adapter provides MySQL connectivity.
type Adapter struct {
	config       *Config
	db           *sql.DB
	connMgr      *datasource.ConnectionManager
	projectID    uuid.UUID
	userID       string
	datasourceID uuid.UUID
	ownedDB      bool // true if we created the DB (for tests or TestConnection case)
}

// buildDSN builds a go-sql-driver/mysql DSN. Credentials are fully expressible
// in the DSN, unlike MSSQL's auth-method split, so the pool can be built
// directly from the connection string by the connection manager.
func buildDSN(cfg *Config) string {
	host := config.ResolveHostForDocker(cfg.Host)

	query := url.Values{}
	query.Set("parseTime", "true")
	query.Set("timeout", fmt.Sprintf("%ds", cfg.ConnectionTimeout))
	if cfg.TLS {
		query.Set("tls", "true")
	}

	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?%s",
		cfg.Username,
		cfg.Password,
		host,
		cfg.Port,
		cfg.Database,
		query.Encode(),
	)
}

// NewAdapter creates a MySQL adapter using the connection manager.
// If connMgr is nil, creates an unmanaged *sql.DB (for tests or TestConnection).
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dsn := buildDSN(cfg)

	if connMgr == nil {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connection test failed: %w", err)
		}
		return &Adapter{
			config:  cfg,
			db:      db,
			ownedDB: true,
		}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, "mysql", projectID, userID, datasourceID, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetMySQLDB(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract mysql db: %w", err)
	}

	return &Adapter{
		config:       cfg,
		db:           db,
		connMgr:      connMgr,
		projectID:    projectID,
		userID:       userID,
		datasourceID: datasourceID,
		ownedDB:      false,
	}, nil
}

// TestConnection verifies the database is reachable with valid credentials
// and that the connection lands on the expected schema.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}

	if currentDB != a.config.Database {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}

	return nil
}

// Close releases the adapter (but NOT the pool if managed).
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for use by schema discoverer and query executor.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)

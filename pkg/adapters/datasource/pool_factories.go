package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver, registered for database/sql
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreatePostgresPool creates a PostgreSQL connection pool
func CreatePostgresPool(ctx context.Context, connString string, config ConnectionManagerConfig) (PoolConnector, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	// Apply connection manager settings
	poolConfig.MaxConns = config.PoolMaxConns
	poolConfig.MinConns = config.PoolMinConns
	poolConfig.MaxConnIdleTime = time.Duration(config.TTLMinutes) * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	return NewPostgresPoolWrapper(pool), nil
}

// GetPostgresPool extracts the underlying *pgxpool.Pool from a PoolConnector.
// Returns an error if the connector is not a PostgreSQL pool.
func GetPostgresPool(connector PoolConnector) (*pgxpool.Pool, error) {
	wrapper, ok := connector.(*PostgresPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a PostgreSQL pool wrapper")
	}
	return wrapper.GetPool(), nil
}

// CreateMSSQLPool always errors: MSSQL connection setup depends on the
// configured auth method (SQL login vs. service principal), which a bare
// connection string can't express. The MSSQL adapter builds its own *sql.DB
// and hands it to ConnectionManager.RegisterConnection instead.
func CreateMSSQLPool(ctx context.Context, connString string, config ConnectionManagerConfig) (PoolConnector, error) {
	return nil, fmt.Errorf("mssql pools are registered via RegisterConnection, not built from a connection string")
}

// GetMSSQLDB extracts the underlying *sql.DB from a PoolConnector.
// Returns an error if the connector is not an MSSQL pool.
func GetMSSQLDB(connector PoolConnector) (*sql.DB, error) {
	wrapper, ok := connector.(*MSSQLPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not an MSSQL pool wrapper")
	}
	return wrapper.GetDB(), nil
}

// CreateMySQLPool creates a MySQL connection pool from a DSN. Unlike MSSQL,
// MySQL credentials are fully expressible in the DSN, so a pool can be
// built directly from a connection string.
func CreateMySQLPool(ctx context.Context, dsn string, config ConnectionManagerConfig) (PoolConnector, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(int(config.PoolMaxConns))
	db.SetMaxIdleConns(int(config.PoolMinConns))
	db.SetConnMaxIdleTime(time.Duration(config.TTLMinutes) * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return NewMySQLPoolWrapper(db), nil
}

// GetMySQLDB extracts the underlying *sql.DB from a PoolConnector.
// Returns an error if the connector is not a MySQL pool.
func GetMySQLDB(connector PoolConnector) (*sql.DB, error) {
	wrapper, ok := connector.(*MySQLPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a MySQL pool wrapper")
	}
	return wrapper.GetDB(), nil
}

// CreateMongoPool creates a MongoDB client from a connection URI. Like
// MySQL (and unlike MSSQL), Mongo credentials are fully expressible in the
// URI, so the connection manager can build the pool directly.
func CreateMongoPool(ctx context.Context, uri string, config ConnectionManagerConfig) (PoolConnector, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(uint64(config.PoolMaxConns)).
		SetMinPoolSize(uint64(config.PoolMinConns)).
		SetConnectTimeout(time.Duration(config.TTLMinutes) * time.Minute)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return NewMongoPoolWrapper(client), nil
}

// GetMongoClient extracts the underlying *mongo.Client from a PoolConnector.
// Returns an error if the connector is not a MongoDB pool.
func GetMongoClient(connector PoolConnector) (*mongo.Client, error) {
	wrapper, ok := connector.(*MongoPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a MongoDB pool wrapper")
	}
	return wrapper.GetClient(), nil
}

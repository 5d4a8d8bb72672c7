package datasource

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// PostgresPoolWrapper wraps *pgxpool.Pool to implement PoolConnector
type PostgresPoolWrapper struct {
	pool *pgxpool.Pool
}

// NewPostgresPoolWrapper creates a new PostgreSQL pool wrapper
func NewPostgresPoolWrapper(pool *pgxpool.Pool) *PostgresPoolWrapper {
	return &PostgresPoolWrapper{pool: pool}
}

// Ping verifies the PostgreSQL connection is alive
func (w *PostgresPoolWrapper) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

// Close closes all connections in the PostgreSQL pool
func (w *PostgresPoolWrapper) Close() error {
	w.pool.Close()
	return nil
}

// GetType returns the database type
func (w *PostgresPoolWrapper) GetType() string {
	return "postgres"
}

// GetPool returns the underlying *pgxpool.Pool
func (w *PostgresPoolWrapper) GetPool() *pgxpool.Pool {
	return w.pool
}

// MSSQLPoolWrapper wraps *sql.DB to implement PoolConnector
type MSSQLPoolWrapper struct {
	db *sql.DB
}

// NewMSSQLPoolWrapper creates a new MSSQL pool wrapper
func NewMSSQLPoolWrapper(db *sql.DB) *MSSQLPoolWrapper {
	return &MSSQLPoolWrapper{db: db}
}

// Ping verifies the MSSQL connection is alive
func (w *MSSQLPoolWrapper) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Close closes all connections in the MSSQL pool
func (w *MSSQLPoolWrapper) Close() error {
	return w.db.Close()
}

// GetType returns the database type
func (w *MSSQLPoolWrapper) GetType() string {
	return "mssql"
}

// GetDB returns the underlying *sql.DB
func (w *MSSQLPoolWrapper) GetDB() *sql.DB {
	return w.db
}

// MySQLPoolWrapper wraps *sql.DB to implement PoolConnector
type MySQLPoolWrapper struct {
	db *sql.DB
}

// NewMySQLPoolWrapper creates a new MySQL pool wrapper
func NewMySQLPoolWrapper(db *sql.DB) *MySQLPoolWrapper {
	return &MySQLPoolWrapper{db: db}
}

// Ping verifies the MySQL connection is alive
func (w *MySQLPoolWrapper) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Close closes all connections in the MySQL pool
func (w *MySQLPoolWrapper) Close() error {
	return w.db.Close()
}

// GetType returns the database type
func (w *MySQLPoolWrapper) GetType() string {
	return "mysql"
}

// GetDB returns the underlying *sql.DB
func (w *MySQLPoolWrapper) GetDB() *sql.DB {
	return w.db
}

// MongoPoolWrapper wraps *mongo.Client to implement PoolConnector, so a
// target MongoDB deployment (registered as a connection, not the engine's
// own internal store) can share the same TTL-pooling machinery as the SQL
// drivers.
type MongoPoolWrapper struct {
	client *mongo.Client
}

// NewMongoPoolWrapper creates a new MongoDB pool wrapper.
func NewMongoPoolWrapper(client *mongo.Client) *MongoPoolWrapper {
	return &MongoPoolWrapper{client: client}
}

// Ping verifies the MongoDB connection is alive.
func (w *MongoPoolWrapper) Ping(ctx context.Context) error {
	return w.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the MongoDB client.
func (w *MongoPoolWrapper) Close() error {
	return w.client.Disconnect(context.Background())
}

// GetType returns the database type.
func (w *MongoPoolWrapper) GetType() string {
	return "mongodb"
}

// GetClient returns the underlying *mongo.Client.
func (w *MongoPoolWrapper) GetClient() *mongo.Client {
	return w.client
}

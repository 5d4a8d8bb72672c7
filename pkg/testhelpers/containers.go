package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mratomo/graphrag-engine/pkg/config"
	"github.com/mratomo/graphrag-engine/pkg/database"
)

// This file spins up the three real backends the engine depends on
// (MongoDB for the document store, Neo4j for graph projection, and
// PostgreSQL as one target-database connection type) for integration
// tests. Each container is started once per test binary run and shared,
// matching the teacher's shared-container pattern for its own Postgres
// engine database.

// --- MongoDB -----------------------------------------------------------

// TestMongo holds a shared MongoDB container and database handle.
type TestMongo struct {
	Container testcontainers.Container
	DB        *database.DB
	URI       string
}

var (
	sharedTestMongo     *TestMongo
	sharedTestMongoOnce sync.Once
	sharedTestMongoErr  error
)

// GetTestMongo returns a shared MongoDB container for integration tests,
// used to exercise pkg/repositories against a real database instead of a
// mock.
func GetTestMongo(t *testing.T) *TestMongo {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestMongoOnce.Do(func() {
		sharedTestMongo, sharedTestMongoErr = setupTestMongo()
	})

	if sharedTestMongoErr != nil {
		t.Fatalf("failed to set up mongo test container: %v", sharedTestMongoErr)
	}

	return sharedTestMongo
}

func setupTestMongo() (*TestMongo, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start mongo container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get mongo host: %w", err)
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		return nil, fmt.Errorf("failed to get mongo port: %w", err)
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())

	db, err := database.Connect(ctx, config.MongoConfig{
		URI:                   uri,
		Database:              "graphrag_engine_test",
		MaxPoolSize:           10,
		MinPoolSize:           1,
		ServerSelectTimeoutMs: 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo test container: %w", err)
	}

	return &TestMongo{Container: container, DB: db, URI: uri}, nil
}

// DropDatabase clears all collections between tests without tearing down
// the shared container.
func (m *TestMongo) DropDatabase(t *testing.T) {
	t.Helper()
	if err := m.DB.Database.Drop(context.Background()); err != nil {
		t.Fatalf("failed to drop test database: %v", err)
	}
}

// --- Neo4j ---------------------------------------------------------------

// TestNeo4j holds a shared Neo4j container and driver.
type TestNeo4j struct {
	Container testcontainers.Container
	Driver    neo4j.DriverWithContext
	URI       string
}

var (
	sharedTestNeo4j     *TestNeo4j
	sharedTestNeo4jOnce sync.Once
	sharedTestNeo4jErr  error
)

// GetTestNeo4j returns a shared Neo4j container for integration tests
// against pkg/services/graph's Neo4jStore.
func GetTestNeo4j(t *testing.T) *TestNeo4j {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestNeo4jOnce.Do(func() {
		sharedTestNeo4j, sharedTestNeo4jErr = setupTestNeo4j()
	})

	if sharedTestNeo4jErr != nil {
		t.Fatalf("failed to set up neo4j test container: %v", sharedTestNeo4jErr)
	}

	return sharedTestNeo4j
}

func setupTestNeo4j() (*TestNeo4j, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "neo4j:5-community",
		ExposedPorts: []string{"7687/tcp"},
		Env: map[string]string{
			"NEO4J_AUTH": "neo4j/test_password",
		},
		WaitingFor: wait.ForLog("Bolt enabled").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start neo4j container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get neo4j host: %w", err)
	}
	port, err := container.MappedPort(ctx, "7687")
	if err != nil {
		return nil, fmt.Errorf("failed to get neo4j port: %w", err)
	}

	uri := fmt.Sprintf("bolt://%s:%s", host, port.Port())

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth("neo4j", "test_password", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &TestNeo4j{Container: container, Driver: driver, URI: uri}, nil
}

// Wipe deletes every node and relationship between tests.
func (n *TestNeo4j) Wipe(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	session := n.Driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
	})
	if err != nil {
		t.Fatalf("failed to wipe neo4j test database: %v", err)
	}
}

// --- PostgreSQL (as a target-database connection type) -------------------

// TestPostgres holds a shared plain PostgreSQL container, used to exercise
// pkg/adapters/datasource/postgres against a real database. A pre-seeded
// image isn't used here: this engine's internal store is MongoDB, so target
// databases carry no baked-in internal schema to seed.
type TestPostgres struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedTestPostgres     *TestPostgres
	sharedTestPostgresOnce sync.Once
	sharedTestPostgresErr  error
)

// GetTestPostgres returns a shared PostgreSQL container for integration
// tests against the postgres datasource adapter.
func GetTestPostgres(t *testing.T) *TestPostgres {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestPostgresOnce.Do(func() {
		sharedTestPostgres, sharedTestPostgresErr = setupTestPostgres()
	})

	if sharedTestPostgresErr != nil {
		t.Fatalf("failed to set up postgres test container: %v", sharedTestPostgresErr)
	}

	return sharedTestPostgres
}

func setupTestPostgres() (*TestPostgres, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "test_data",
			"POSTGRES_USER":     "graphrag",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get postgres port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://graphrag:test_password@%s:%s/test_data?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &TestPostgres{Container: container, Pool: pool, ConnStr: connStr}, nil
}

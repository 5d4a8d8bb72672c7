//go:build mysql || all_adapters

package mysql

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
)

func testConfigFromEnv(t *testing.T) *Config {
	t.Helper()

	host := os.Getenv("MYSQL_HOST")
	user := os.Getenv("MYSQL_USER")
	password := os.Getenv("MYSQL_PASSWORD")
	database := os.Getenv("MYSQL_DATABASE")

	if host == "" || user == "" || database == "" {
		t.Skip("skipping integration test: MYSQL_HOST, MYSQL_USER, or MYSQL_DATABASE not set")
	}

	port := DefaultPort()
	if p := os.Getenv("MYSQL_PORT"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			t.Fatalf("invalid MYSQL_PORT: %v", err)
		}
		port = parsed
	}

	return &Config{
		Host:     host,
		Port:     port,
		Database: database,
		Username: user,
		Password: password,
	}
}

func TestAdapter_TestConnection_FailsWithWrongDatabaseName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfigFromEnv(t)
	cfg.Database = "nonexistent_database_12345"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, cfg, nil, uuid.Nil, uuid.Nil, "")
	if err != nil {
		// MySQL rejects a nonexistent default database at connect time for
		// some driver versions; that also satisfies this test's intent.
		return
	}
	defer adapter.Close()

	err = adapter.TestConnection(ctx)
	require.Error(t, err, "expected connection test to fail with wrong database name")
}

func TestAdapter_TestConnection_SucceedsWithCorrectDatabaseName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfigFromEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, cfg, nil, uuid.Nil, uuid.Nil, "")
	require.NoError(t, err, "failed to create adapter")
	defer adapter.Close()

	err = adapter.TestConnection(ctx)
	assert.NoError(t, err, "connection test should succeed with correct database")
}

func TestAdapter_NewAdapter_WithoutConnectionManager(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfigFromEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, cfg, nil, uuid.Nil, uuid.Nil, "")
	require.NoError(t, err, "failed to create adapter")
	require.NotNil(t, adapter)
	assert.True(t, adapter.ownedDB, "adapter should own the DB when connection manager is nil")
	defer adapter.Close()

	err = adapter.TestConnection(ctx)
	assert.NoError(t, err, "connection test should succeed")
}

func TestAdapter_NewAdapter_WithConnectionManager(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfigFromEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := zaptest.NewLogger(t)
	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:            5,
		MaxConnectionsPerUser: 10,
		PoolMaxConns:          5,
		PoolMinConns:          1,
	}, logger)
	defer connMgr.Close()

	projectID := uuid.New()
	userID := "test-user"
	datasourceID := uuid.New()

	adapter, err := NewAdapter(ctx, cfg, connMgr, projectID, datasourceID, userID)
	require.NoError(t, err, "failed to create adapter with connection manager")
	require.NotNil(t, adapter)
	assert.False(t, adapter.ownedDB, "adapter should not own the DB when using connection manager")
	defer adapter.Close()

	err = adapter.TestConnection(ctx)
	assert.NoError(t, err, "connection test should succeed")

	stats := connMgr.GetStats()
	assert.Equal(t, 1, stats.TotalConnections, "connection should be registered")
}

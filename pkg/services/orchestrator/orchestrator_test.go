package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

// --- fakes ---

type fakeConnRepo struct {
	conn *models.Connection
}

func (f *fakeConnRepo) Create(ctx context.Context, conn *models.Connection) error { return nil }
func (f *fakeConnRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	if f.conn == nil || f.conn.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return f.conn, nil
}
func (f *fakeConnRepo) List(ctx context.Context) ([]*models.Connection, error) { return nil, nil }
func (f *fakeConnRepo) Update(ctx context.Context, conn *models.Connection) error { return nil }
func (f *fakeConnRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, lastError string) error {
	return nil
}
func (f *fakeConnRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeSchemaRepo struct {
	mu       sync.Mutex
	upserted []*models.Schema
	getErr   error
}

func (f *fakeSchemaRepo) Upsert(ctx context.Context, schema *models.Schema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, schema)
	return nil
}
func (f *fakeSchemaRepo) GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*models.Schema, error) {
	return nil, apperrors.ErrNotFound
}
func (f *fakeSchemaRepo) Delete(ctx context.Context, connectionID uuid.UUID) error { return nil }

func (f *fakeSchemaRepo) last() *models.Schema {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.upserted) == 0 {
		return nil
	}
	return f.upserted[len(f.upserted)-1]
}

type fakePasswords struct{}

func (fakePasswords) Decrypt(encrypted string) (string, error) { return encrypted, nil }

// fakeDiscoverer implements datasource.SchemaDiscoverer with scripted data.
type fakeDiscoverer struct {
	tables     []datasource.TableMetadata
	columns    map[string][]datasource.ColumnMetadata
	failTables error
	failErr    error
	calls      int
}

func (d *fakeDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	d.calls++
	if d.failErr != nil {
		return nil, d.failErr
	}
	if d.failTables != nil {
		return nil, d.failTables
	}
	return d.tables, nil
}
func (d *fakeDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	return d.columns[tableName], nil
}
func (d *fakeDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return nil, nil
}
func (d *fakeDiscoverer) SupportsForeignKeys() bool { return false }
func (d *fakeDiscoverer) AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]datasource.ColumnStats, error) {
	return nil, nil
}
func (d *fakeDiscoverer) CheckValueOverlap(ctx context.Context, sourceSchema, sourceTable, sourceColumn, targetSchema, targetTable, targetColumn string, sampleLimit int) (*datasource.ValueOverlapResult, error) {
	return nil, nil
}
func (d *fakeDiscoverer) AnalyzeJoin(ctx context.Context, sourceSchema, sourceTable, sourceColumn, targetSchema, targetTable, targetColumn string) (*datasource.JoinAnalysis, error) {
	return nil, nil
}
func (d *fakeDiscoverer) GetDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error) {
	return nil, nil
}
func (d *fakeDiscoverer) GetEnumValueDistribution(ctx context.Context, schemaName, tableName, columnName, completionTimestampCol string, limit int) (*datasource.EnumDistributionResult, error) {
	return nil, nil
}
func (d *fakeDiscoverer) Close() error { return nil }

var _ datasource.SchemaDiscoverer = (*fakeDiscoverer)(nil)

type fakeFactory struct {
	discoverer *fakeDiscoverer
}

func (f *fakeFactory) NewConnectionTester(ctx context.Context, dsType string, config map[string]any, projectID, datasourceID uuid.UUID, userID string) (datasource.ConnectionTester, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeFactory) NewSchemaDiscoverer(ctx context.Context, dsType string, config map[string]any, projectID, datasourceID uuid.UUID, userID string) (datasource.SchemaDiscoverer, error) {
	return f.discoverer, nil
}
func (f *fakeFactory) NewQueryExecutor(ctx context.Context, dsType string, config map[string]any, projectID, datasourceID uuid.UUID, userID string) (datasource.QueryExecutor, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeFactory) ListTypes() []datasource.DatasourceAdapterInfo { return nil }

// --- tests ---

func newTestOrchestrator(t *testing.T, discoverer *fakeDiscoverer) (*Orchestrator, *fakeSchemaRepo, *models.Connection) {
	t.Helper()
	conn := &models.Connection{ID: uuid.New(), Type: models.ConnectionTypePostgreSQL, Host: "localhost", Port: 5432, Database: "app"}
	schemaRepo := &fakeSchemaRepo{}
	cfg := DefaultConfig()
	cfg.JanitorInterval = 50 * time.Millisecond
	o := New(cfg, &fakeConnRepo{conn: conn}, schemaRepo, &fakeFactory{discoverer: discoverer}, fakePasswords{}, nil, nil, zaptest.NewLogger(t))
	t.Cleanup(o.Close)
	return o, schemaRepo, conn
}

func waitForTerminal(t *testing.T, o *Orchestrator, jobID string) *models.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := o.JobStatus(jobID)
		if err != nil {
			t.Fatalf("job_status: %v", err)
		}
		if job.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestStartDiscovery_CompletesAndPersistsSchema(t *testing.T) {
	discoverer := &fakeDiscoverer{
		tables: []datasource.TableMetadata{{SchemaName: "public", TableName: "orders", RowCount: 10}},
		columns: map[string][]datasource.ColumnMetadata{
			"orders": {{ColumnName: "id", DataType: "integer", IsPrimaryKey: true}},
		},
	}
	o, schemaRepo, conn := newTestOrchestrator(t, discoverer)

	job, err := o.StartDiscovery(context.Background(), conn.ID, models.DiscoveryOptions{})
	if err != nil {
		t.Fatalf("StartDiscovery: %v", err)
	}

	final := waitForTerminal(t, o, job.JobID)
	if final.Status != models.JobCompleted {
		t.Fatalf("expected completed, got %s (error=%s)", final.Status, final.Error)
	}

	schema := schemaRepo.last()
	if schema == nil {
		t.Fatal("expected a schema to be persisted")
	}
	if len(schema.Tables) != 1 || schema.Tables[0].Name != "orders" {
		t.Fatalf("unexpected tables: %+v", schema.Tables)
	}
}

func TestStartDiscovery_RetriesTransientThenFails(t *testing.T) {
	discoverer := &fakeDiscoverer{failErr: errors.New("connection refused by remote host")}
	o, schemaRepo, conn := newTestOrchestrator(t, discoverer)
	o.cfg.MaxRetries = 1

	job, err := o.StartDiscovery(context.Background(), conn.ID, models.DiscoveryOptions{})
	if err != nil {
		t.Fatalf("StartDiscovery: %v", err)
	}

	final := waitForTerminal(t, o, job.JobID)
	if final.Status != models.JobFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.RetryCount == 0 {
		t.Error("expected at least one retry for a transient error")
	}
	if schemaRepo.last() == nil || schemaRepo.last().Status != models.SchemaStatusFailed {
		t.Error("expected a failed schema to be persisted")
	}
}

func TestStartDiscovery_NonTransientFailsImmediately(t *testing.T) {
	discoverer := &fakeDiscoverer{failErr: errors.New("permission denied")}
	o, _, conn := newTestOrchestrator(t, discoverer)

	job, err := o.StartDiscovery(context.Background(), conn.ID, models.DiscoveryOptions{})
	if err != nil {
		t.Fatalf("StartDiscovery: %v", err)
	}

	final := waitForTerminal(t, o, job.JobID)
	if final.Status != models.JobFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.RetryCount != 0 {
		t.Errorf("expected no retries for a non-transient error, got %d", final.RetryCount)
	}
}

func TestJobStatus_UnknownJobIsNotFound(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &fakeDiscoverer{})
	_, err := o.JobStatus("does-not-exist")
	if apperrors.GetKind(err) != apperrors.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGetSchema_PendingPlaceholderWhenNoneDiscovered(t *testing.T) {
	o, _, conn := newTestOrchestrator(t, &fakeDiscoverer{})
	schema, err := o.GetSchema(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("GetSchema: %v", err)
	}
	if schema.Status != models.SchemaStatusPending {
		t.Fatalf("expected pending placeholder, got %s", schema.Status)
	}
}

func TestFilterTables_ExcludesAndScopesToSchemas(t *testing.T) {
	tables := []datasource.TableMetadata{
		{SchemaName: "public", TableName: "orders"},
		{SchemaName: "public", TableName: "secrets"},
		{SchemaName: "audit", TableName: "events"},
	}
	out := filterTables(tables, models.DiscoveryOptions{
		Schemas:        []string{"public"},
		ExcludedTables: []string{"secrets"},
	})
	if len(out) != 1 || out[0].TableName != "orders" {
		t.Fatalf("unexpected filtered tables: %+v", out)
	}
}

func TestApplyForeignKeys_SetsReferences(t *testing.T) {
	columns := []models.Column{{Name: "customer_id"}}
	fks := []datasource.ForeignKeyMetadata{
		{SourceSchema: "public", SourceTable: "orders", SourceColumn: "customer_id", TargetSchema: "public", TargetTable: "customers", TargetColumn: "id"},
	}
	applyForeignKeys(columns, "public", "orders", fks)
	if !columns[0].IsForeignKey || columns[0].References != "public.customers.id" {
		t.Fatalf("unexpected column: %+v", columns[0])
	}
}

func TestRetentionWindow(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	fast := base.Add(10 * time.Second)
	slow := base.Add(400 * time.Second)

	fastJob := &models.Job{StartedAt: base, CompletedAt: &fast}
	if retentionWindow(fastJob) != 3600*time.Second {
		t.Errorf("expected 3600s window for a fast, non-retried job")
	}

	slowJob := &models.Job{StartedAt: base, CompletedAt: &slow}
	if retentionWindow(slowJob) != 600*time.Second {
		t.Errorf("expected 600s window for a slow job")
	}

	retriedJob := &models.Job{StartedAt: base, CompletedAt: &fast, RetryCount: 2}
	if retentionWindow(retriedJob) != 7200*time.Second {
		t.Errorf("expected 7200s window when retries occurred")
	}
}

func TestRegistryType_PostgresMismatch(t *testing.T) {
	if got := registryType(models.ConnectionTypePostgreSQL); got != "postgres" {
		t.Errorf("expected postgres, got %s", got)
	}
	if got := registryType(models.ConnectionTypeMongoDB); got != "mongodb" {
		t.Errorf("expected mongodb, got %s", got)
	}
}

func TestConnectionConfigMap_IncludesAllDriverKeys(t *testing.T) {
	conn := &models.Connection{Host: "db", Port: 5432, Database: "app", Username: "alice", TLS: true}
	cfg := connectionConfigMap(conn, "secret")
	for _, key := range []string{"host", "port", "database", "username", "user", "password", "tls", "ssl_mode", "url"} {
		if _, ok := cfg[key]; !ok {
			t.Errorf("expected key %q in config map", key)
		}
	}
	if cfg["url"] != fmt.Sprintf("%s:%d", conn.Host, conn.Port) {
		t.Errorf("unexpected url: %v", cfg["url"])
	}
}

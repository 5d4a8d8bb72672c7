package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/services/connection"
)

type fakeConnRepo struct {
	conns map[uuid.UUID]*models.Connection
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{conns: map[uuid.UUID]*models.Connection{}}
}

func (f *fakeConnRepo) Create(ctx context.Context, conn *models.Connection) error {
	f.conns[conn.ID] = conn
	return nil
}
func (f *fakeConnRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	c, ok := f.conns[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}
func (f *fakeConnRepo) List(ctx context.Context) ([]*models.Connection, error) {
	out := make([]*models.Connection, 0, len(f.conns))
	for _, c := range f.conns {
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeConnRepo) Update(ctx context.Context, conn *models.Connection) error {
	if _, ok := f.conns[conn.ID]; !ok {
		return apperrors.ErrNotFound
	}
	f.conns[conn.ID] = conn
	return nil
}
func (f *fakeConnRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, lastError string) error {
	if c, ok := f.conns[id]; ok {
		c.Status = status
		c.LastError = lastError
	}
	return nil
}
func (f *fakeConnRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.conns[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.conns, id)
	return nil
}

type identityCrypt struct{}

func (identityCrypt) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }
func (identityCrypt) Decrypt(encrypted string) (string, error) { return encrypted, nil }

type fakeConnTester struct{ err error }

func (t *fakeConnTester) TestConnection(ctx context.Context) error { return t.err }
func (t *fakeConnTester) Close() error                             { return nil }

type fakeQueryExecutor struct {
	result *datasource.QueryExecutionResult
}

func (e *fakeQueryExecutor) ExecuteQuery(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	return e.result, nil
}
func (e *fakeQueryExecutor) ExecuteQueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	return e.result, nil
}
func (e *fakeQueryExecutor) Execute(ctx context.Context, sqlStatement string) (*datasource.ExecuteResult, error) {
	return nil, errors.New("not implemented")
}
func (e *fakeQueryExecutor) ValidateQuery(ctx context.Context, sqlQuery string) error { return nil }
func (e *fakeQueryExecutor) ExplainQuery(ctx context.Context, sqlQuery string) (*datasource.ExplainResult, error) {
	return nil, errors.New("not implemented")
}
func (e *fakeQueryExecutor) QuoteIdentifier(name string) string { return name }
func (e *fakeQueryExecutor) Close() error                       { return nil }

type fakeConnAdapters struct {
	tester   *fakeConnTester
	executor *fakeQueryExecutor
}

func (f *fakeConnAdapters) NewConnectionTester(ctx context.Context, dsType string, config map[string]any, projectID, datasourceID uuid.UUID, userID string) (datasource.ConnectionTester, error) {
	return f.tester, nil
}
func (f *fakeConnAdapters) NewSchemaDiscoverer(ctx context.Context, dsType string, config map[string]any, projectID, datasourceID uuid.UUID, userID string) (datasource.SchemaDiscoverer, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeConnAdapters) NewQueryExecutor(ctx context.Context, dsType string, config map[string]any, projectID, datasourceID uuid.UUID, userID string) (datasource.QueryExecutor, error) {
	if f.executor == nil {
		return nil, errors.New("not implemented")
	}
	return f.executor, nil
}

func newTestConnectionHandler() *ConnectionHandler {
	repo := newFakeConnRepo()
	adapters := &fakeConnAdapters{tester: &fakeConnTester{}, executor: &fakeQueryExecutor{result: &datasource.QueryExecutionResult{RowCount: 1}}}
	registry := connection.New(repo, adapters, identityCrypt{}, 5*time.Second, zaptest.NewLogger(nil))
	return NewConnectionHandler(registry, zaptest.NewLogger(nil))
}

func TestConnectionHandler_CreateThenGetStripsPassword(t *testing.T) {
	h := newTestConnectionHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.ConnectionCreate{
		Type: models.ConnectionTypePostgreSQL, Host: "db.internal", Port: 5432,
		Database: "app", Username: "app_user", Password: "hunter2", TLS: true,
	})
	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("hunter2")) {
		t.Fatalf("response body leaked the plaintext password: %s", rec.Body.String())
	}

	var created models.Connection
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/connections/"+created.ID.String(), nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}
	if bytes.Contains(getRec.Body.Bytes(), []byte("hunter2")) {
		t.Fatalf("GET response leaked the plaintext password: %s", getRec.Body.String())
	}
}

func TestConnectionHandler_GetUnknownIDReturns404(t *testing.T) {
	h := newTestConnectionHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/connections/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestConnectionHandler_GetMalformedIDReturns400(t *testing.T) {
	h := newTestConnectionHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/connections/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConnectionHandler_DeleteThenListIsEmpty(t *testing.T) {
	h := newTestConnectionHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.ConnectionCreate{Type: models.ConnectionTypeMySQL, Host: "h", Port: 3306, Database: "d", Username: "u", Password: "p"})
	createReq := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	mux.ServeHTTP(createRec, createReq)
	var created models.Connection
	_ = json.Unmarshal(createRec.Body.Bytes(), &created)

	delReq := httptest.NewRequest(http.MethodDelete, "/connections/"+created.ID.String(), nil)
	delRec := httptest.NewRecorder()
	mux.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delRec.Code)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/connections", nil)
	listRec := httptest.NewRecorder()
	mux.ServeHTTP(listRec, listReq)
	var list []*models.Connection
	_ = json.Unmarshal(listRec.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(list))
	}
}

func TestConnectionHandler_TestReportsActiveStatus(t *testing.T) {
	h := newTestConnectionHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.ConnectionCreate{Type: models.ConnectionTypePostgreSQL, Host: "h", Port: 5432, Database: "d", Username: "u", Password: "p"})
	createReq := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	mux.ServeHTTP(createRec, createReq)
	var created models.Connection
	_ = json.Unmarshal(createRec.Body.Bytes(), &created)

	testReq := httptest.NewRequest(http.MethodPost, "/connections/"+created.ID.String()+"/test", nil)
	testRec := httptest.NewRecorder()
	mux.ServeHTTP(testRec, testReq)

	if testRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", testRec.Code, testRec.Body.String())
	}
	var result models.ConnectionTestResult
	if err := json.Unmarshal(testRec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode test result: %v", err)
	}
	if result.Status != models.ConnectionStatusActive {
		t.Errorf("expected active status, got %q", result.Status)
	}
}

func TestConnectionHandler_ExecuteQueryDefaultsToReadOnly(t *testing.T) {
	h := newTestConnectionHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.ConnectionCreate{Type: models.ConnectionTypePostgreSQL, Host: "h", Port: 5432, Database: "d", Username: "u", Password: "p"})
	createReq := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	mux.ServeHTTP(createRec, createReq)
	var created models.Connection
	_ = json.Unmarshal(createRec.Body.Bytes(), &created)

	queryBody, _ := json.Marshal(map[string]any{"statement": "SELECT * FROM orders WHERE id = {{id}}", "params": map[string]any{"id": 1}})
	queryReq := httptest.NewRequest(http.MethodPost, "/connections/"+created.ID.String()+"/query", bytes.NewReader(queryBody))
	queryRec := httptest.NewRecorder()
	mux.ServeHTTP(queryRec, queryReq)

	if queryRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", queryRec.Code, queryRec.Body.String())
	}
	var result connection.QueryResult
	if err := json.Unmarshal(queryRec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode query result: %v", err)
	}
	if result.RowCount != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestConnectionHandler_ExecuteQueryRejectsWriteWithoutPermission(t *testing.T) {
	h := newTestConnectionHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.ConnectionCreate{Type: models.ConnectionTypePostgreSQL, Host: "h", Port: 5432, Database: "d", Username: "u", Password: "p"})
	createReq := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	mux.ServeHTTP(createRec, createReq)
	var created models.Connection
	_ = json.Unmarshal(createRec.Body.Bytes(), &created)

	queryBody, _ := json.Marshal(map[string]any{"statement": "DELETE FROM orders"})
	queryReq := httptest.NewRequest(http.MethodPost, "/connections/"+created.ID.String()+"/query", bytes.NewReader(queryBody))
	queryRec := httptest.NewRecorder()
	mux.ServeHTTP(queryRec, queryReq)

	if queryRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a write statement with default read-only permission, got %d: %s", queryRec.Code, queryRec.Body.String())
	}
}

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestRouter_HealthIsReachableWithoutAuth(t *testing.T) {
	logger := zaptest.NewLogger(nil)

	connHandler := newTestConnectionHandler()
	agentHandler := newTestAgentHandler()
	schemaHandler, _ := newTestSchemaHandler()
	queryHandler := newTestQueryHandler()
	mcpHandler, _ := newTestMCPHandler()
	healthHandler := NewHealthHandler(nil, nil, nil, nil)

	router := NewRouter(Routes{
		Health:      healthHandler,
		Connections: connHandler,
		Agents:      agentHandler,
		Schemas:     schemaHandler,
		Queries:     queryHandler,
		MCP:         mcpHandler,
	}, []string{"*"}, "", "", logger)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_ProtectedRouteReachableThroughCORSWrapper(t *testing.T) {
	logger := zaptest.NewLogger(nil)

	connHandler := newTestConnectionHandler()
	agentHandler := newTestAgentHandler()
	schemaHandler, _ := newTestSchemaHandler()
	queryHandler := newTestQueryHandler()
	mcpHandler, _ := newTestMCPHandler()
	healthHandler := NewHealthHandler(nil, nil, nil, nil)

	router := NewRouter(Routes{
		Health:      healthHandler,
		Connections: connHandler,
		Agents:      agentHandler,
		Schemas:     schemaHandler,
		Queries:     queryHandler,
		MCP:         mcpHandler,
	}, []string{"*"}, "", "", logger)

	req := httptest.NewRequest(http.MethodGet, "/connections", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

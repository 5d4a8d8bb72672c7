package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/services/connection"
)

// ConnectionHandler exposes the Connection Registry over HTTP.
type ConnectionHandler struct {
	registry *connection.Registry
	logger   *zap.Logger
}

// NewConnectionHandler constructs a ConnectionHandler over registry.
func NewConnectionHandler(registry *connection.Registry, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{registry: registry, logger: logger.Named("connections_handler")}
}

// RegisterRoutes registers every /connections route.
func (h *ConnectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /connections", h.List)
	mux.HandleFunc("POST /connections", h.Create)
	mux.HandleFunc("GET /connections/{id}", h.Get)
	mux.HandleFunc("PUT /connections/{id}", h.Update)
	mux.HandleFunc("DELETE /connections/{id}", h.Delete)
	mux.HandleFunc("POST /connections/{id}/test", h.Test)
	mux.HandleFunc("POST /connections/{id}/query", h.ExecuteQuery)
}

func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	conns, err := h.registry.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, conns)
}

func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body models.ConnectionCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}

	conn, err := h.registry.Create(r.Context(), body)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, conn)
}

func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	conn, err := h.registry.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var body models.ConnectionCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	conn, err := h.registry.Update(r.Context(), id, body)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.registry.Delete(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.registry.Test(r.Context(), id)
	if err != nil {
		h.logger.Warn("connection test failed", zap.String("id", id.String()), zap.Error(err))
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

// ExecuteQuery runs a caller-supplied statement against the connection,
// gated by the Security component's read/write/administrative
// classification and screened for SQL injection before it ever reaches a
// driver. permitted_classes defaults to read-only when omitted, so a bare
// `{"statement": "..."}` body can never execute a write.
func (h *ConnectionHandler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		Statement        string         `json:"statement"`
		Params           map[string]any `json:"params,omitempty"`
		TimeoutSeconds   int            `json:"timeout_seconds,omitempty"`
		PermittedClasses []string       `json:"permitted_classes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	if body.Statement == "" {
		WriteError(w, apperrors.Validation("statement must not be empty"))
		return
	}
	if len(body.PermittedClasses) == 0 {
		body.PermittedClasses = []string{"read"}
	}

	timeout := time.Duration(body.TimeoutSeconds) * time.Second
	result, err := h.registry.ExecuteQuery(r.Context(), id, body.Statement, body.Params, timeout, body.PermittedClasses, r.RemoteAddr)
	if err != nil {
		h.logger.Warn("query execution rejected or failed", zap.String("id", id.String()), zap.Error(err))
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/services/agent"
)

// AgentHandler exposes the agent service over HTTP.
type AgentHandler struct {
	service *agent.Service
	logger  *zap.Logger
}

// NewAgentHandler constructs an AgentHandler over service.
func NewAgentHandler(service *agent.Service, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{service: service, logger: logger.Named("agents_handler")}
}

// RegisterRoutes registers every /agents route.
func (h *AgentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /agents", h.List)
	mux.HandleFunc("POST /agents", h.Create)
	mux.HandleFunc("GET /agents/{id}", h.Get)
	mux.HandleFunc("PUT /agents/{id}", h.Update)
	mux.HandleFunc("DELETE /agents/{id}", h.Delete)
	mux.HandleFunc("GET /agents/{id}/prompts", h.GetPrompts)
	mux.HandleFunc("PUT /agents/{id}/prompts", h.UpdatePrompts)
	mux.HandleFunc("GET /agents/{id}/connections", h.ListConnections)
	mux.HandleFunc("POST /agents/{id}/connections", h.AssignConnection)
	mux.HandleFunc("DELETE /agents/{id}/connections/{cid}", h.UnassignConnection)
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, agents)
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body models.AgentCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	created, err := h.service.Create(r.Context(), body)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, created)
}

func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, a)
}

func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var body models.AgentCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	updated, err := h.service.Update(r.Context(), id, body)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, updated)
}

func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgentHandler) GetPrompts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, a.Prompts)
}

func (h *AgentHandler) UpdatePrompts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var prompts models.PromptSlots
	if err := json.NewDecoder(r.Body).Decode(&prompts); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}

	existing, err := h.service.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	update := models.AgentCreate{
		Name:           existing.Name,
		Model:          existing.Model,
		Prompts:        prompts,
		ExampleQueries: existing.ExampleQueries,
	}
	updated, err := h.service.Update(r.Context(), id, update)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, updated.Prompts)
}

func (h *AgentHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	assignments, err := h.service.ActiveAssignments(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, assignments)
}

func (h *AgentHandler) AssignConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		ConnectionID string   `json:"connection_id"`
		Permissions  []string `json:"permissions,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	connID, err := parseUUID(body.ConnectionID)
	if err != nil {
		WriteError(w, apperrors.Validation("invalid connection_id: %v", err))
		return
	}
	if err := h.service.AssignConnection(r.Context(), id, connID, body.Permissions); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgentHandler) UnassignConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	cid, ok := parseUUIDParam(w, r, "cid")
	if !ok {
		return
	}
	if err := h.service.UnassignConnection(r.Context(), id, cid); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

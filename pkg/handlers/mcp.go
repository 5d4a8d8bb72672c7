package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/mcp"
	mcpclient "github.com/mratomo/graphrag-engine/pkg/mcp/client"
)

// MCPHandler exposes the Context Runtime's status/activation routes and the
// embedded MCP client's store-document/find-relevant tool routes.
type MCPHandler struct {
	runtime *mcp.ContextRuntime
	client  *mcpclient.Client
	logger  *zap.Logger
}

// NewMCPHandler constructs an MCPHandler.
func NewMCPHandler(runtime *mcp.ContextRuntime, client *mcpclient.Client, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{runtime: runtime, client: client, logger: logger.Named("mcp_handler")}
}

// RegisterRoutes registers every /mcp and /contexts route.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /mcp/status", h.Status)
	mux.HandleFunc("GET /mcp/active-contexts", h.ActiveContexts)
	mux.HandleFunc("POST /contexts/{id}/activate", h.Activate)
	mux.HandleFunc("POST /contexts/{id}/deactivate", h.Deactivate)
	mux.HandleFunc("POST /mcp/tools/store-document", h.StoreDocument)
	mux.HandleFunc("POST /mcp/tools/find-relevant", h.FindRelevant)
}

func (h *MCPHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.runtime.Status(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, status)
}

func (h *MCPHandler) ActiveContexts(w http.ResponseWriter, r *http.Request) {
	contexts, err := h.runtime.ActiveContextsByType(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, contexts)
}

func (h *MCPHandler) Activate(w http.ResponseWriter, r *http.Request) {
	contextID := r.PathValue("id")
	ctxDoc, err := h.runtime.Activate(r.Context(), contextID)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, ctxDoc)
}

func (h *MCPHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	contextID := r.PathValue("id")
	if err := h.runtime.Deactivate(r.Context(), contextID); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MCPHandler) StoreDocument(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Information string            `json:"information"`
		Metadata    map[string]string `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	result, err := h.client.StoreDocument(r.Context(), body.Information, body.Metadata)
	if err != nil {
		h.logger.Warn("store_document failed", zap.Error(err))
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *MCPHandler) FindRelevant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query         string `json:"query"`
		EmbeddingType string `json:"embedding_type,omitempty"`
		OwnerID       string `json:"owner_id,omitempty"`
		AreaID        string `json:"area_id,omitempty"`
		Limit         int    `json:"limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	result, err := h.client.FindRelevant(r.Context(), body.Query, body.EmbeddingType, body.OwnerID, body.AreaID, body.Limit)
	if err != nil {
		h.logger.Warn("find_relevant failed", zap.Error(err))
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

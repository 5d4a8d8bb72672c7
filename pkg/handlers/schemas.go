package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/repositories"
	"github.com/mratomo/graphrag-engine/pkg/services/orchestrator"
	"github.com/mratomo/graphrag-engine/pkg/services/vectorize"
)

// SchemaHandler exposes the Schema Discovery Orchestrator, the analyze_schema
// insight pass, and the vectorization bridge over HTTP.
type SchemaHandler struct {
	orch       *orchestrator.Orchestrator
	schemaRepo repositories.SchemaRepository
	bridge     *vectorize.Bridge
	logger     *zap.Logger
}

// NewSchemaHandler constructs a SchemaHandler.
func NewSchemaHandler(orch *orchestrator.Orchestrator, schemaRepo repositories.SchemaRepository, bridge *vectorize.Bridge, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{orch: orch, schemaRepo: schemaRepo, bridge: bridge, logger: logger.Named("schemas_handler")}
}

// RegisterRoutes registers every /schema route.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /schema/{connection_id}", h.Get)
	mux.HandleFunc("POST /schema/discover", h.Discover)
	mux.HandleFunc("GET /schema/jobs/{job_id}", h.JobStatus)
	mux.HandleFunc("GET /schema/{connection_id}/analyze", h.Analyze)
	mux.HandleFunc("GET /schema/{connection_id}/vectorize", h.Vectorize)
}

func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "connection_id")
	if !ok {
		return
	}
	schema, err := h.orch.GetSchema(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, schema)
}

func (h *SchemaHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConnectionID string `json:"connection_id"`
		models.DiscoveryOptions
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	id, err := parseUUID(body.ConnectionID)
	if err != nil {
		WriteError(w, apperrors.Validation("invalid connection_id: %v", err))
		return
	}

	job, err := h.orch.StartDiscovery(r.Context(), id, body.DiscoveryOptions)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusAccepted, job)
}

func (h *SchemaHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	job, err := h.orch.JobStatus(jobID)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, job)
}

func (h *SchemaHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "connection_id")
	if !ok {
		return
	}
	schema, err := h.orch.GetSchema(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	suggestions := orchestrator.AnalyzeSchema(schema)
	_ = WriteJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h *SchemaHandler) Vectorize(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "connection_id")
	if !ok {
		return
	}
	schema, err := h.schemaRepo.GetByConnectionID(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	vectorID, err := h.bridge.Vectorize(r.Context(), schema)
	if err != nil {
		h.logger.Warn("vectorization failed", zap.String("connection_id", id.String()), zap.Error(err))
		WriteError(w, err)
		return
	}
	schema.VectorID = vectorID
	if err := h.schemaRepo.Upsert(r.Context(), schema); err != nil {
		h.logger.Warn("failed to persist vector_id", zap.String("connection_id", id.String()), zap.Error(err))
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"vector_id": vectorID})
}

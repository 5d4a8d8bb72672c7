package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	"github.com/mratomo/graphrag-engine/pkg/config"
	"github.com/mratomo/graphrag-engine/pkg/database"
	"github.com/mratomo/graphrag-engine/pkg/services/graph"
)

// HealthStatus is the body returned by GET /health.
type HealthStatus struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Checks   map[string]string `json:"checks"`
}

// HealthHandler checks the document store, vector store, and graph store
// for reachability, following the teacher's handlers/health.go pattern of a
// cheap "up" liveness check plus a deeper dependency-backed readiness check.
type HealthHandler struct {
	cfg    *config.Config
	db     *database.DB
	vector vectorstore.Store
	graph  graph.Store
}

// NewHealthHandler constructs a HealthHandler over the engine's backing
// stores.
func NewHealthHandler(cfg *config.Config, db *database.DB, vector vectorstore.Store, graphStore graph.Store) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, vector: vector, graph: graphStore}
}

// RegisterRoutes registers /health, /health/live, and /health/ready.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", h.Live)
	mux.HandleFunc("GET /health/ready", h.Ready)
}

// Live answers liveness probes: the process is up, nothing more.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready and Health both report dependency reachability; Health additionally
// carries the version for operator-facing dashboards.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.check(r.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	_ = WriteJSON(w, code, status)
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.check(r.Context())
	status.Version = h.cfg.Version
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	_ = WriteJSON(w, code, status)
}

func (h *HealthHandler) check(parent context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	ok := true

	if err := h.db.Client.Ping(ctx, readpref.Primary()); err != nil {
		checks["document_store"] = err.Error()
		ok = false
	} else {
		checks["document_store"] = "ok"
	}

	if err := h.vector.EnsureCollection(ctx, vectorstore.CollectionGeneral); err != nil {
		checks["vector_store"] = err.Error()
		ok = false
	} else {
		checks["vector_store"] = "ok"
	}

	if h.cfg.Graph.Enabled() {
		if _, err := h.graph.RawQuery(ctx, uuid.Nil, "RETURN 1", nil); err != nil {
			checks["graph_store"] = err.Error()
			ok = false
		} else {
			checks["graph_store"] = "ok"
		}
	} else {
		checks["graph_store"] = "disabled (in-memory fallback)"
	}

	status := "ok"
	if !ok {
		status = "degraded"
	}
	return HealthStatus{Status: status, Checks: checks}
}

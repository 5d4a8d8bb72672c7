package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/cache"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/repositories"
	"github.com/mratomo/graphrag-engine/pkg/services/planner"
)

// QueryHandler runs every /query* route through the same underlying
// planner.Planner.Run call; the routes differ only in how the request body
// is pre-populated before dispatch.
type QueryHandler struct {
	planner *planner.Planner
	history repositories.QueryHistoryRepository
	cache   *cache.HistoryCache
	logger  *zap.Logger
}

// NewQueryHandler constructs a QueryHandler.
func NewQueryHandler(p *planner.Planner, history repositories.QueryHistoryRepository, historyCache *cache.HistoryCache, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{planner: p, history: history, cache: historyCache, logger: logger.Named("queries_handler")}
}

// RegisterRoutes registers every /query route.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", h.Query)
	mux.HandleFunc("POST /query/area/{area_id}", h.QueryArea)
	mux.HandleFunc("POST /query/personal", h.QueryPersonal)
	mux.HandleFunc("POST /query/graph", h.QueryGraph)
	mux.HandleFunc("POST /query/graph/advanced", h.QueryGraphAdvanced)
	mux.HandleFunc("GET /query/history", h.History)
}

func (h *QueryHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (models.QueryRequest, bool) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apperrors.Validation("invalid request body: %v", err))
		return models.QueryRequest{}, false
	}
	if req.Query == "" {
		WriteError(w, apperrors.Validation("query must not be empty"))
		return models.QueryRequest{}, false
	}
	return req, true
}

func (h *QueryHandler) run(w http.ResponseWriter, r *http.Request, req models.QueryRequest) {
	resp, err := h.planner.Run(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, resp)
}

// Query handles the generic POST /query route: whatever area_ids,
// connection_id, and user_id the caller supplies are passed through as-is.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	h.run(w, r, req)
}

// QueryArea scopes the query to the area named in the path, overriding any
// area_ids in the body.
func (h *QueryHandler) QueryArea(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	req.AreaIDs = []string{r.PathValue("area_id")}
	h.run(w, r, req)
}

// QueryPersonal forces IncludePersonal regardless of what the body sent.
func (h *QueryHandler) QueryPersonal(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	req.IncludePersonal = true
	h.run(w, r, req)
}

// QueryGraph and QueryGraphAdvanced both dispatch to the same planner graph;
// the distinction between a plain and an "advanced" graph query is internal
// to how the planner weighs entity exploration, not a different entrypoint.
func (h *QueryHandler) QueryGraph(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	h.run(w, r, req)
}

func (h *QueryHandler) QueryGraphAdvanced(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	h.run(w, r, req)
}

func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	limit := queryInt(r, "limit", 50)

	if records, ok := h.cache.Get(r.Context(), userID, limit); ok {
		_ = WriteJSON(w, http.StatusOK, records)
		return
	}

	records, err := h.history.List(r.Context(), userID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.cache.Set(r.Context(), userID, limit, records)
	_ = WriteJSON(w, http.StatusOK, records)
}

package handlers

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/middleware"
)

// Routes is every route group the engine exposes, already constructed with
// its own service dependencies.
type Routes struct {
	Health      *HealthHandler
	Connections *ConnectionHandler
	Agents      *AgentHandler
	Schemas     *SchemaHandler
	Queries     *QueryHandler
	MCP         *MCPHandler
}

// NewRouter assembles the stdlib mux, registers every route group, and
// wraps it with CORS and bearer-auth middleware. /health and /metrics are
// intentionally left outside the auth wrapper so liveness/readiness probes
// and scrapers don't need a token.
func NewRouter(routes Routes, corsOrigins []string, sharedSecret, jwksURL string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	routes.Health.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	protected := http.NewServeMux()
	routes.Connections.RegisterRoutes(protected)
	routes.Agents.RegisterRoutes(protected)
	routes.Schemas.RegisterRoutes(protected)
	routes.Queries.RegisterRoutes(protected)
	routes.MCP.RegisterRoutes(protected)

	auth := middleware.BearerAuth(sharedSecret, jwksURL, logger)
	mux.Handle("/", auth(protected))

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return corsHandler(mux)
}

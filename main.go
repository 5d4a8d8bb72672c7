package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
	_ "github.com/mratomo/graphrag-engine/pkg/adapters/datasource/mongodb"  // register mongodb adapter
	_ "github.com/mratomo/graphrag-engine/pkg/adapters/datasource/mssql"    // register mssql adapter
	_ "github.com/mratomo/graphrag-engine/pkg/adapters/datasource/mysql"    // register mysql adapter
	_ "github.com/mratomo/graphrag-engine/pkg/adapters/datasource/postgres" // register postgres adapter
	_ "github.com/mratomo/graphrag-engine/pkg/adapters/datasource/weaviate" // register weaviate adapter
	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	"github.com/mratomo/graphrag-engine/pkg/audit"
	"github.com/mratomo/graphrag-engine/pkg/cache"
	"github.com/mratomo/graphrag-engine/pkg/config"
	"github.com/mratomo/graphrag-engine/pkg/crypto"
	"github.com/mratomo/graphrag-engine/pkg/database"
	"github.com/mratomo/graphrag-engine/pkg/handlers"
	"github.com/mratomo/graphrag-engine/pkg/llm"
	"github.com/mratomo/graphrag-engine/pkg/mcp"
	mcpclient "github.com/mratomo/graphrag-engine/pkg/mcp/client"
	mcptools "github.com/mratomo/graphrag-engine/pkg/mcp/tools"
	"github.com/mratomo/graphrag-engine/pkg/middleware"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/repositories"
	"github.com/mratomo/graphrag-engine/pkg/services/agent"
	"github.com/mratomo/graphrag-engine/pkg/services/connection"
	"github.com/mratomo/graphrag-engine/pkg/services/graph"
	"github.com/mratomo/graphrag-engine/pkg/services/orchestrator"
	"github.com/mratomo/graphrag-engine/pkg/services/planner"
	"github.com/mratomo/graphrag-engine/pkg/services/vectorize"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("graph_enabled", cfg.Graph.Enabled()),
		zap.Bool("cache_enabled", cfg.Redis.Enabled()),
	)

	if cfg.ConnectionCredentialsKey == "" {
		logger.Fatal("connection_credentials_key is required; generate with: openssl rand -base64 32")
	}
	credentialEncryptor, err := crypto.NewCredentialEncryptor(cfg.ConnectionCredentialsKey)
	if err != nil {
		logger.Fatal("failed to initialize credential encryptor", zap.Error(err))
	}

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer func() { _ = db.Close(context.Background()) }()

	vectorStore, err := vectorstore.NewWeaviateStore(cfg.Vector.URL, cfg.Vector.APIKey, logger)
	if err != nil {
		logger.Fatal("failed to connect to weaviate", zap.Error(err))
	}
	for _, collection := range []string{vectorstore.CollectionGeneral, vectorstore.CollectionPersonal, vectorstore.CollectionDatabaseSchemas} {
		if err := vectorStore.EnsureCollection(ctx, collection); err != nil {
			logger.Fatal("failed to ensure vector collection", zap.String("collection", collection), zap.Error(err))
		}
	}

	var graphStore graph.Store
	if cfg.Graph.Enabled() {
		graphStore, err = graph.NewNeo4jStore(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, logger)
		if err != nil {
			logger.Fatal("failed to connect to neo4j", zap.Error(err))
		}
	} else {
		logger.Warn("graph store disabled, falling back to in-memory projection")
		graphStore = graph.NewMemoryStore()
	}

	// Repositories
	connRepo := repositories.NewConnectionRepository(db)
	schemaRepo := repositories.NewSchemaRepository(db)
	agentRepo := repositories.NewAgentRepository(db)
	contextRepo := repositories.NewContextRepository(db)
	areaRepo := repositories.NewAreaRepository(db)
	historyRepo := repositories.NewQueryHistoryRepository(db)
	_ = repositories.NewProviderRepository(db) // provider catalog persisted for inspection; dispatch itself is driven by cfg.Providers

	// Datasource connection pooling
	connManager := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:   cfg.Datasource.ConnectionTTLMinutes,
		PoolMaxConns: cfg.Datasource.PoolMaxConns,
		PoolMinConns: cfg.Datasource.PoolMinConns,
	}, logger)
	defer connManager.Close()
	adapterFactory := datasource.NewDatasourceAdapterFactory(connManager)

	// LLM dispatch
	providerConfigs := buildProviderConfigs(cfg.Providers)
	dispatcher, err := llm.NewDispatcher(providerConfigs, logger)
	if err != nil {
		logger.Fatal("failed to initialize llm dispatcher", zap.Error(err))
	}

	// Core services
	vectorizeBridge := vectorize.New(vectorStore, dispatcher, logger)

	orch := orchestrator.New(orchestrator.Config{
		DiscoveryTimeout: time.Duration(cfg.Discovery.SchemaDiscoveryTimeoutSeconds) * time.Second,
		MaxRetries:       cfg.Discovery.MaxRetries,
		JanitorInterval:  time.Duration(cfg.Discovery.JanitorIntervalSeconds) * time.Second,
		MaxConcurrent:    8,
	}, connRepo, schemaRepo, adapterFactory, credentialEncryptor, vectorizeBridge, graphStore, logger)
	defer orch.Close()

	connRegistry := connection.New(connRepo, adapterFactory, credentialEncryptor, time.Duration(cfg.Datasource.QueryTimeoutSeconds)*time.Second, logger)
	connRegistry.SetAuditor(audit.NewSecurityAuditor(logger))
	agentService := agent.New(agentRepo, connRepo)

	historyCache, err := newHistoryCache(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to initialize history cache", zap.Error(err))
	}

	queryPlanner := planner.New(vectorStore, graphStore, dispatcher, areaRepo, historyRepo, cfg.Graph.Enabled(), logger)

	contextRuntime := mcp.NewContextRuntime(contextRepo, logger)

	mcpToolDeps := &mcptools.Deps{
		Store:    vectorStore,
		Embedder: dispatcher,
		Runtime:  contextRuntime,
		Logger:   logger,
	}
	embeddedMCPClient := mcpclient.New(mcpToolDeps)

	mcpServer := mcp.NewServer("graphrag-engine", cfg.Version, logger)
	mcptools.Register(mcpServer.MCP(), mcpToolDeps)

	// HTTP router
	router := handlers.NewRouter(handlers.Routes{
		Health:      handlers.NewHealthHandler(cfg, db, vectorStore, graphStore),
		Connections: handlers.NewConnectionHandler(connRegistry, logger),
		Agents:      handlers.NewAgentHandler(agentService, logger),
		Schemas:     handlers.NewSchemaHandler(orch, schemaRepo, vectorizeBridge, logger),
		Queries:     handlers.NewQueryHandler(queryPlanner, historyRepo, historyCache, logger),
		MCP:         handlers.NewMCPHandler(contextRuntime, embeddedMCPClient, logger),
	}, cfg.CORSAllowedOrigins, cfg.Auth.SharedSecret, cfg.Auth.JWKSURL, logger)

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/mcp", middleware.MCPRequestLogger(logger, cfg.MCP)(mcpServer.NewStreamableHTTPServer()))

	handler := middleware.RequestLogger(logger)(mux)

	server := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: handler,
	}

	shutdownComplete := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
		close(shutdownComplete)
	}()

	logger.Info("starting http server", zap.String("addr", cfg.BindAddr+":"+cfg.Port), zap.String("version", cfg.Version))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}

	<-shutdownComplete
	logger.Info("server shutdown complete")
}

// buildProviderConfigs turns the statically-configured provider endpoints
// into the list llm.NewDispatcher expects, skipping any vendor the operator
// never filled in (no API key and no base URL). Ollama is exempt from the
// API-key check since self-hosted endpoints typically don't require one.
func buildProviderConfigs(cfg config.ProvidersConfig) []models.ProviderConfig {
	var out []models.ProviderConfig

	add := func(id string, providerType models.ProviderType, ep config.ProviderEndpoint, requireKey bool) {
		if ep.BaseURL == "" && ep.APIKey == "" {
			return
		}
		if requireKey && ep.APIKey == "" {
			return
		}
		out = append(out, models.ProviderConfig{
			ID:               id,
			Type:             providerType,
			BaseURL:          ep.BaseURL,
			APIKey:           ep.APIKey,
			Model:            ep.Model,
			EmbeddingModel:   ep.EmbeddingModel,
			RateLimitPerHour: ep.RateLimitPerHour,
			IsDefault:        id == cfg.Default,
		})
	}

	add("openai", models.ProviderOpenAI, cfg.OpenAI, true)
	add("anthropic", models.ProviderAnthropic, cfg.Anthropic, true)
	add("google", models.ProviderGoogle, cfg.Google, true)
	add("ollama", models.ProviderOllama, cfg.Ollama, false)

	return out
}

// newHistoryCache builds the optional read-through cache for
// GET /query/history. A nil *cache.HistoryCache is a valid no-op receiver,
// so callers never need to branch on whether Redis is configured.
func newHistoryCache(cfg config.RedisConfig, logger *zap.Logger) (*cache.HistoryCache, error) {
	redisClient, err := database.NewRedisClient(&cfg)
	if err != nil {
		return nil, err
	}
	if redisClient == nil {
		return nil, nil
	}
	return cache.New(redisClient, time.Duration(cfg.TTLSeconds)*time.Second, logger), nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                     // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Lightweight bearer-token check on mutating routes. Either a static
	// shared secret or a JWKS URL for signature verification; neither is a
	// full auth scheme, just a transport-level gate.
	Auth AuthConfig `yaml:"auth"`

	// CORS
	CORSAllowedOrigins []string `yaml:"-"`
	CORSAllowedOriginsStr string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`

	// Document store (MongoDB)
	Mongo MongoConfig `yaml:"mongo"`

	// Vector store (Weaviate)
	Vector VectorConfig `yaml:"vector"`

	// Graph store (Neo4j)
	Graph GraphConfig `yaml:"graph"`

	// Target-database connection pooling defaults
	Datasource DatasourceConfig `yaml:"datasource"`

	// Schema discovery
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Document/chunking limits
	MaxDocumentSizeMB int `yaml:"max_document_size_mb" env:"MAX_DOCUMENT_SIZE_MB" env-default:"25"`
	ChunkSize         int `yaml:"chunk_size" env:"CHUNK_SIZE" env-default:"1000"`
	ChunkOverlap      int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP" env-default:"200"`

	// MCP tool routing
	UseMCPTools      bool `yaml:"use_mcp_tools" env:"USE_MCP_TOOLS" env-default:"true"`
	PreferDirectMCP  bool `yaml:"prefer_direct_mcp" env:"PREFER_DIRECT_MCP" env-default:"true"`

	// MCP request/response audit logging
	MCP MCPConfig `yaml:"mcp"`

	// LLM providers
	Providers ProvidersConfig `yaml:"providers"`

	// Optional recent-queries cache
	Redis RedisConfig `yaml:"redis"`

	// Credential encryption key for connection passwords.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	ConnectionCredentialsKey string `yaml:"-" env:"CONNECTION_CREDENTIALS_KEY"` // Secret - not in YAML
}

// AuthConfig holds the lightweight bearer-token gate configuration.
type AuthConfig struct {
	// EnableVerification controls whether the bearer token is checked at
	// all. Set to false for local development.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// SharedSecret, if set, is compared directly against the bearer token
	// (constant-time). Mutually exclusive in practice with JWKSURL, but
	// both may be set; JWKS is tried first when a key ID is present.
	SharedSecret string `yaml:"-" env:"AUTH_SHARED_SECRET"` // Secret - not in YAML

	// JWKSURL, if set, enables signature-verified bearer tokens via
	// MicahParks/keyfunc.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`
}

// MongoConfig holds document-store connection settings.
type MongoConfig struct {
	URI            string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database       string `yaml:"database" env:"MONGO_DATABASE" env-default:"graphrag_engine"`
	MaxPoolSize    uint64 `yaml:"max_pool_size" env:"MONGO_MAX_POOL_SIZE" env-default:"50"`
	MinPoolSize    uint64 `yaml:"min_pool_size" env:"MONGO_MIN_POOL_SIZE" env-default:"10"`
	ServerSelectTimeoutMs int `yaml:"server_select_timeout_ms" env:"MONGO_SERVER_SELECT_TIMEOUT_MS" env-default:"5000"`
}

// VectorConfig holds vector-store (Weaviate) connection settings.
type VectorConfig struct {
	URL    string `yaml:"url" env:"VECTOR_URL" env-default:"http://localhost:8081"`
	APIKey string `yaml:"-" env:"VECTOR_API_KEY"` // Secret - not in YAML
}

// GraphConfig holds graph-store (Neo4j) connection settings. If URI is
// empty, the engine falls back to pkg/services/graph.MemoryStore.
type GraphConfig struct {
	URI      string `yaml:"uri" env:"GRAPH_URI" env-default:""`
	Username string `yaml:"username" env:"GRAPH_USERNAME" env-default:"neo4j"`
	Password string `yaml:"-" env:"GRAPH_PASSWORD"` // Secret - not in YAML
}

// Enabled reports whether a Neo4j backend is configured.
func (c *GraphConfig) Enabled() bool {
	return c.URI != ""
}

// DatasourceConfig holds target-database connection pool defaults.
type DatasourceConfig struct {
	ConnectionTTLMinutes int   `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	PoolMaxConns         int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	PoolMinConns         int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
	// QueryTimeoutSeconds is the default caller timeout for execute_query
	// when the request does not specify one.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"DATASOURCE_QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// DiscoveryConfig holds Schema Discovery Orchestrator settings.
type DiscoveryConfig struct {
	// SchemaDiscoveryTimeoutSeconds bounds one discovery run; jobs
	// exceeding timeout+120s transition to JobTimeout.
	SchemaDiscoveryTimeoutSeconds int `yaml:"schema_discovery_timeout" env:"SCHEMA_DISCOVERY_TIMEOUT" env-default:"300"`
	MaxRetries                    int `yaml:"max_retries" env:"DISCOVERY_MAX_RETRIES" env-default:"3"`
	JanitorIntervalSeconds        int `yaml:"janitor_interval_seconds" env:"DISCOVERY_JANITOR_INTERVAL_SECONDS" env-default:"60"`
}

// ProvidersConfig holds the statically-configured LLM providers. At least
// one provider should be marked default.
type ProvidersConfig struct {
	OpenAI    ProviderEndpoint `yaml:"openai"`
	Anthropic ProviderEndpoint `yaml:"anthropic"`
	Google    ProviderEndpoint `yaml:"google"`
	Ollama    ProviderEndpoint `yaml:"ollama"`
	Default   string           `yaml:"default" env:"DEFAULT_LLM_PROVIDER" env-default:"openai"`
}

// ProviderEndpoint is the transport configuration for one LLM vendor.
type ProviderEndpoint struct {
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"-"`
	Model            string `yaml:"model"`
	EmbeddingModel   string `yaml:"embedding_model"`
	RateLimitPerHour int    `yaml:"rate_limit_per_hour"`
}

// RedisConfig holds the optional recent-queries cache connection settings.
// Resolves the teacher-snapshot gap where pkg/database/redis.go referenced
// a RedisConfig type that did not exist (see DESIGN.md).
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:""`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTLSeconds int  `yaml:"ttl_seconds" env:"REDIS_TTL_SECONDS" env-default:"300"`
}

// Enabled reports whether the recent-queries cache is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MCPConfig controls how much detail the MCP request/response logging
// middleware records. Arguments are sanitized regardless of these toggles.
type MCPConfig struct {
	LogRequests  bool `yaml:"log_requests" env:"MCP_LOG_REQUESTS" env-default:"true"`
	LogResponses bool `yaml:"log_responses" env:"MCP_LOG_RESPONSES" env-default:"false"`
	LogErrors    bool `yaml:"log_errors" env:"MCP_LOG_ERRORS" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.loadProviderSecrets()

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// loadProviderSecrets pulls per-provider API keys from environment
// variables; these are never read from config.yaml.
func (c *Config) loadProviderSecrets() {
	c.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.Providers.Google.APIKey = os.Getenv("GOOGLE_API_KEY")
	c.Providers.Ollama.APIKey = os.Getenv("OLLAMA_API_KEY")

	for _, ep := range []*ProviderEndpoint{&c.Providers.OpenAI, &c.Providers.Anthropic, &c.Providers.Google, &c.Providers.Ollama} {
		if ep.RateLimitPerHour == 0 {
			if v := os.Getenv("LLM_RATE_LIMIT_PER_HOUR"); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					ep.RateLimitPerHour = n
				}
			}
		}
	}
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.CORSAllowedOrigins = parseCSV(c.CORSAllowedOriginsStr)
	return nil
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateTLS ensures TLS configuration is valid if provided.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

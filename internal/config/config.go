// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.asfoor/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, chat/image/embedder model selection
//   - Storage: PostgreSQL connection for the retrieval index (see storage.go)
//   - Ingestion: document directory, file pattern, fan-out limit
//   - Memory: per-user fact store directory and default user id
//   - Tools: SearXNG web search, web fetch timeouts (see tools.go)
//   - Observability: OTLP trace export (see observability.go)
//
// Security: sensitive data (passwords) is never logged; the config directory
// uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidDocPath indicates the document ingestion path is invalid.
	ErrInvalidDocPath = errors.New("invalid document path")

	// ErrInvalidMemoryDir indicates the memory directory is invalid.
	ErrInvalidMemoryDir = errors.New("invalid memory directory")

	// ErrInvalidUserID indicates the default user id is invalid.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidConcurrency indicates the ingestion fan-out limit is out of range.
	ErrInvalidConcurrency = errors.New("invalid ingest concurrency")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality (Matryoshka Representation
	// Learning). Our pgvector schema uses 768 dimensions; see index.VectorDimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultUserID identifies the contextual memory owner when a request
	// carries no explicit user.
	DefaultUserID = "mrady_context_memory"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"`             // "gemini" (default)
	ChatModel     string  `mapstructure:"chat_model" json:"chat_model"`         // conversational + classifier model
	ImageModel    string  `mapstructure:"image_model" json:"image_model"`       // vision model for attachment analysis
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"` // embedding model for the retrieval index
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Ingestion configuration
	DocPath           string `mapstructure:"doc_path" json:"doc_path"`                     // directory walked by IngestAll
	IngestPattern     string `mapstructure:"ingest_pattern" json:"ingest_pattern"`         // file glob, e.g. "*.md"
	IngestConcurrency int    `mapstructure:"ingest_concurrency" json:"ingest_concurrency"` // bounded fan-out limit

	// Contextual memory configuration
	MemoryDir     string `mapstructure:"memory_dir" json:"memory_dir"`
	DefaultUserID string `mapstructure:"default_user_id" json:"default_user_id"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration (serve mode)
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// Tool configuration (see tools.go for type definitions)
	SearXNG  SearXNGConfig  `mapstructure:"searxng" json:"searxng"`
	WebFetch WebFetchConfig `mapstructure:"web_fetch" json:"web_fetch"`

	// Observability configuration (see observability.go for type definition)
	OTLP OTLPConfig `mapstructure:"otlp" json:"otlp"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.asfoor/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".asfoor")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("chat_model", "gemini-2.5-flash")
	viper.SetDefault("image_model", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 4096)

	// Ingestion defaults
	viper.SetDefault("doc_path", "./docs")
	viper.SetDefault("ingest_pattern", "*.md")
	viper.SetDefault("ingest_concurrency", 4)

	// Memory defaults
	viper.SetDefault("memory_dir", filepath.Join(configDir, "memory"))
	viper.SetDefault("default_user_id", DefaultUserID)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "asfoor")
	viper.SetDefault("postgres_password", "asfoor_dev_password")
	viper.SetDefault("postgres_db_name", "asfoor")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP defaults
	viper.SetDefault("http_addr", ":8080")

	// SearXNG defaults (empty = web search disabled, tool degrades gracefully)
	viper.SetDefault("searxng.base_url", "")

	// WebFetch defaults
	viper.SetDefault("web_fetch.timeout_ms", 30000)

	// OTLP defaults
	viper.SetDefault("otlp.enabled", false)
	viper.SetDefault("otlp.endpoint", "localhost:4318")
	viper.SetDefault("otlp.environment", "dev")
	viper.SetDefault("otlp.service_name", "asfoor")
}

// bindEnvVariables binds environment variables explicitly.
//
// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
// Validation checks its presence in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "ASFOOR_PROVIDER")
	mustBind("chat_model", "ASFOOR_CHAT_MODEL")
	mustBind("image_model", "ASFOOR_IMAGE_MODEL")
	mustBind("embedder_model", "ASFOOR_EMBEDDER_MODEL")

	mustBind("doc_path", "ASFOOR_DOC_PATH")
	mustBind("memory_dir", "ASFOOR_MEMORY_DIR")
	mustBind("default_user_id", "ASFOOR_DEFAULT_USER_ID")

	mustBind("http_addr", "ASFOOR_HTTP_ADDR")

	mustBind("searxng.base_url", "SEARXNG_BASE_URL")

	mustBind("otlp.enabled", "ASFOOR_OTLP_ENABLED")
	mustBind("otlp.endpoint", "ASFOOR_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full block U+2588) to avoid substring matching:
// - "****" fails when passwords contain "*"
// - "[REDACTED]" fails when passwords contain "A", "D", "E", etc.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: secrets <=8 chars are fully masked to prevent substring attacks.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// qualify returns the provider-qualified model name for Genkit.
// If name already contains a "/", it is returned as-is.
func (c *Config) qualify(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return ProviderGoogleAI + "/" + name
}

// FullChatModel returns the provider-qualified chat model name.
// Example: "googleai/gemini-2.5-flash".
func (c *Config) FullChatModel() string { return c.qualify(c.ChatModel) }

// FullImageModel returns the provider-qualified image model name.
func (c *Config) FullImageModel() string { return c.qualify(c.ImageModel) }

// FullEmbedderModel returns the provider-qualified embedder model name.
func (c *Config) FullEmbedderModel() string { return c.qualify(c.EmbedderModel) }

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

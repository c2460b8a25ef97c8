// Package config handles configuration for the lexvault service
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete configuration for the service
type Config struct {
	Service      ServiceConfig      `mapstructure:"service"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Processing   ProcessingConfig   `mapstructure:"processing"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	Janitor      JanitorConfig      `mapstructure:"janitor"`
}

// ServiceConfig contains service-level configuration
type ServiceConfig struct {
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxConns     int    `mapstructure:"max_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN builds a lib/pq connection string from the configured settings
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	Database    int           `mapstructure:"database"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	PoolSize    int           `mapstructure:"pool_size"`
}

// AuthConfig contains token issuance settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// GeminiConfig contains settings for the Google Generative Language API
type GeminiConfig struct {
	APIKey         string               `mapstructure:"api_key"`
	BaseURL        string               `mapstructure:"base_url"`
	EmbeddingModel string               `mapstructure:"embedding_model"`
	ChatModel      string               `mapstructure:"chat_model"`
	RequestTimeout time.Duration        `mapstructure:"request_timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig contains circuit breaker settings for provider calls
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxHalfOpen      uint32        `mapstructure:"max_half_open"`
}

// ProcessingConfig contains document processing settings
type ProcessingConfig struct {
	MaxChunkSize   int           `mapstructure:"max_chunk_size"`
	ChunkOverlap   int           `mapstructure:"chunk_overlap"`
	MinChunkLength int           `mapstructure:"min_chunk_length"`
	EmbedBatchSize int           `mapstructure:"embed_batch_size"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// RetrievalConfig contains context assembly settings
type RetrievalConfig struct {
	MatchCount        int `mapstructure:"match_count"`
	ToolMatchCount    int `mapstructure:"tool_match_count"`
	CitationMaxLength int `mapstructure:"citation_max_length"`
	HistoryLimit      int `mapstructure:"history_limit"`
}

// RateLimitingConfig contains per-user rate limiting settings
type RateLimitingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	UploadPerMin int           `mapstructure:"upload_per_min"`
	ChatPerMin   int           `mapstructure:"chat_per_min"`
	ToolPerMin   int           `mapstructure:"tool_per_min"`
	Window       time.Duration `mapstructure:"window"`
}

// JanitorConfig contains settings for the stuck-document janitor
type JanitorConfig struct {
	Schedule           string        `mapstructure:"schedule"`
	ProcessingDeadline time.Duration `mapstructure:"processing_deadline"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	viper.SetConfigName("lexvault")
	viper.SetConfigType("yaml")

	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")

	setDefaults()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults and env vars cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	// Service defaults
	viper.SetDefault("service.port", 8080)
	viper.SetDefault("service.metrics_port", 9090)
	viper.SetDefault("service.shutdown_timeout", "30s")
	viper.SetDefault("service.log_level", "info")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "lexvault")
	viper.SetDefault("database.username", "lexvault")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)

	// Redis defaults
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.pool_size", 10)

	// Auth defaults
	viper.SetDefault("auth.issuer", "lexvault")
	viper.SetDefault("auth.token_ttl", "168h") // 7 days

	// Gemini defaults
	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("gemini.embedding_model", "text-embedding-004")
	viper.SetDefault("gemini.chat_model", "gemini-2.0-flash")
	viper.SetDefault("gemini.request_timeout", "30s")
	viper.SetDefault("gemini.circuit_breaker.failure_threshold", 5)
	viper.SetDefault("gemini.circuit_breaker.timeout", "30s")
	viper.SetDefault("gemini.circuit_breaker.max_half_open", 3)

	// Processing defaults
	viper.SetDefault("processing.max_chunk_size", 1500)
	viper.SetDefault("processing.chunk_overlap", 200)
	viper.SetDefault("processing.min_chunk_length", 20)
	viper.SetDefault("processing.embed_batch_size", 5)
	viper.SetDefault("processing.retry_attempts", 3)
	viper.SetDefault("processing.retry_delay", "1s")
	viper.SetDefault("processing.max_upload_bytes", 20<<20)

	// Retrieval defaults
	viper.SetDefault("retrieval.match_count", 5)
	viper.SetDefault("retrieval.tool_match_count", 10)
	viper.SetDefault("retrieval.citation_max_length", 300)
	viper.SetDefault("retrieval.history_limit", 20)

	// Rate limiting defaults
	viper.SetDefault("rate_limiting.enabled", true)
	viper.SetDefault("rate_limiting.upload_per_min", 5)
	viper.SetDefault("rate_limiting.chat_per_min", 20)
	viper.SetDefault("rate_limiting.tool_per_min", 10)
	viper.SetDefault("rate_limiting.window", "1m")

	// Janitor defaults
	viper.SetDefault("janitor.schedule", "*/5 * * * *")
	viper.SetDefault("janitor.processing_deadline", "15m")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.AutomaticEnv()

	_ = viper.BindEnv("service.port", "LEXVAULT_PORT")
	_ = viper.BindEnv("service.log_level", "LOG_LEVEL")

	_ = viper.BindEnv("database.host", "DATABASE_HOST")
	_ = viper.BindEnv("database.port", "DATABASE_PORT")
	_ = viper.BindEnv("database.database", "DATABASE_NAME")
	_ = viper.BindEnv("database.username", "DATABASE_USER")
	_ = viper.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	_ = viper.BindEnv("redis.address", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")

	_ = viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Service.Port <= 0 || cfg.Service.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", cfg.Service.Port)
	}
	if cfg.Auth.JWTSecret == "" {
		// Refuse to start without a signing key outside of development.
		if os.Getenv("LEXVAULT_ALLOW_INSECURE") == "" {
			return fmt.Errorf("auth.jwt_secret (JWT_SECRET) is required")
		}
		cfg.Auth.JWTSecret = "insecure-development-secret"
	}
	if cfg.Processing.MaxChunkSize <= 0 {
		return fmt.Errorf("processing.max_chunk_size must be positive, got %d", cfg.Processing.MaxChunkSize)
	}
	if cfg.Processing.ChunkOverlap < 0 || cfg.Processing.ChunkOverlap >= cfg.Processing.MaxChunkSize {
		return fmt.Errorf("processing.chunk_overlap must be in [0, max_chunk_size), got %d", cfg.Processing.ChunkOverlap)
	}
	if cfg.Processing.EmbedBatchSize <= 0 {
		return fmt.Errorf("processing.embed_batch_size must be positive, got %d", cfg.Processing.EmbedBatchSize)
	}
	if cfg.RateLimiting.Enabled {
		if cfg.RateLimiting.UploadPerMin <= 0 || cfg.RateLimiting.ChatPerMin <= 0 || cfg.RateLimiting.ToolPerMin <= 0 {
			return fmt.Errorf("rate_limiting limits must be positive when enabled, got upload=%d chat=%d tool=%d",
				cfg.RateLimiting.UploadPerMin, cfg.RateLimiting.ChatPerMin, cfg.RateLimiting.ToolPerMin)
		}
	}
	return nil
}

package domain

import (
	"time"
)

// AssessmentRecord represents a stored assessment audit record
type AssessmentRecord struct {
	ID               string            `json:"id"`
	RequestID        string            `json:"request_id,omitempty"`
	Outcome          Outcome           `json:"outcome"`
	PrimaryCondition string            `json:"primary_condition"`
	RiskLevel        RiskLevel         `json:"risk_level"`
	EvidenceDomain   string            `json:"evidence_domain,omitempty"`
	Result           *AssessmentResult `json:"result"`
	ProcessingTimeMs int               `json:"processing_time_ms"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Config represents the main application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Explanation ExplanationConfig `mapstructure:"explanation"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Feedback    FeedbackConfig    `mapstructure:"feedback"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	MCP         MCPConfig         `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second
	RateBurst      int           `mapstructure:"rate_burst"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig represents database connection configuration.
// An empty Host disables PostgreSQL-backed features.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// Enabled reports whether a PostgreSQL host is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// RetrievalConfig configures the guideline index
type RetrievalConfig struct {
	Backend       string        `mapstructure:"backend"` // "sqlite", "postgres", "none"
	SQLitePath    string        `mapstructure:"sqlite_path"`
	ResultLimit   int           `mapstructure:"result_limit"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ExcerptLength int           `mapstructure:"excerpt_length"`
	ChunkSize     int           `mapstructure:"chunk_size"`
	ChunkOverlap  int           `mapstructure:"chunk_overlap"`
}

// ExplanationConfig configures the narrative generation service
type ExplanationConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL   string        `mapstructure:"redis_url"`
	MemorySize int           `mapstructure:"memory_size"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// FeedbackConfig selects the clinician feedback store
type FeedbackConfig struct {
	Backend    string `mapstructure:"backend"` // "sqlite", "postgres"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName     string        `mapstructure:"server_name"`
	ServerVersion  string        `mapstructure:"server_version"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

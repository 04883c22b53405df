package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// Manager loads domain.Config from defaults, config.yaml and CDSS_*
// environment variables. Environment variables win over the file.
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a configuration manager that searches the standard
// paths for config.yaml.
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile creates a configuration manager reading an explicit
// file. An empty path falls back to the search paths.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(path); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig(path string) error {
	v := m.v
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/clinical-decision-support/")
	}

	v.SetEnvPrefix("CDSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// PostgreSQL is optional; an empty host disables it.
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "clinical_decision_support")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("retrieval.backend", "sqlite")
	v.SetDefault("retrieval.sqlite_path", "data/guidelines.db")
	v.SetDefault("retrieval.result_limit", 3)
	v.SetDefault("retrieval.timeout", "5s")
	v.SetDefault("retrieval.excerpt_length", 800)
	v.SetDefault("retrieval.chunk_size", 400)
	v.SetDefault("retrieval.chunk_overlap", 80)

	v.SetDefault("explanation.enabled", true)
	v.SetDefault("explanation.base_url", "http://localhost:11434")
	v.SetDefault("explanation.model", "llama3:8b")
	v.SetDefault("explanation.timeout", "30s")
	v.SetDefault("explanation.rate_limit", 2)

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.memory_size", 1000)
	v.SetDefault("cache.default_ttl", "1h")

	v.SetDefault("feedback.backend", "sqlite")
	v.SetDefault("feedback.sqlite_path", "data/feedback.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("mcp.server_name", "clinical-decision-support")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.request_timeout", "60s")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload re-reads all configuration sources
func (m *Manager) Reload() error {
	return m.loadConfig(m.v.ConfigFileUsed())
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "fatal": true, "panic": true,
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %v", config.Server.RateLimit)
	}

	switch config.Retrieval.Backend {
	case "sqlite":
		if config.Retrieval.SQLitePath == "" {
			return fmt.Errorf("retrieval sqlite path is required")
		}
	case "postgres":
		if !config.Database.Enabled() {
			return fmt.Errorf("retrieval backend postgres requires database.host")
		}
	case "none":
	default:
		return fmt.Errorf("invalid retrieval backend: %q", config.Retrieval.Backend)
	}
	if config.Retrieval.ResultLimit <= 0 {
		return fmt.Errorf("retrieval result limit must be positive")
	}
	if config.Retrieval.ExcerptLength <= 0 {
		return fmt.Errorf("retrieval excerpt length must be positive")
	}
	if config.Retrieval.ChunkOverlap >= config.Retrieval.ChunkSize {
		return fmt.Errorf("chunk overlap must be smaller than chunk size")
	}

	if config.Explanation.Enabled && config.Explanation.BaseURL == "" {
		return fmt.Errorf("explanation base URL is required when explanation is enabled")
	}

	switch config.Feedback.Backend {
	case "sqlite":
		if config.Feedback.SQLitePath == "" {
			return fmt.Errorf("feedback sqlite path is required")
		}
	case "postgres":
		if !config.Database.Enabled() {
			return fmt.Errorf("feedback backend postgres requires database.host")
		}
	default:
		return fmt.Errorf("invalid feedback backend: %q", config.Feedback.Backend)
	}

	if config.Database.Enabled() {
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

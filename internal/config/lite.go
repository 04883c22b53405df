// Package config provides configuration management for the servers.
// This file contains the env-only configuration for standalone operation.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for SQLite files and exports

	// Cache settings
	CacheMaxItems int
	CacheTTL      time.Duration

	// Explanation service
	OllamaURL          string
	OllamaModel        string
	ExplanationEnabled bool
	ExplanationTimeout time.Duration

	RetrievalTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:            filepath.Join(homeDir, ".clinical-decision-support"),
		CacheMaxItems:      1000,
		CacheTTL:           time.Hour,
		OllamaURL:          "http://localhost:11434",
		OllamaModel:        "llama3:8b",
		ExplanationEnabled: true,
		ExplanationTimeout: 30 * time.Second,
		RetrievalTimeout:   5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// LoadLiteConfig loads configuration from environment variables after
// reading envFile (".env" when empty) if it exists.
func LoadLiteConfig(envFile string) (*LiteConfig, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := DefaultLiteConfig()

	if v := os.Getenv("CDSS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CDSS_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("CDSS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("CDSS_OLLAMA_URL"); v != "" {
		cfg.OllamaURL = v
	}
	if v := os.Getenv("CDSS_OLLAMA_MODEL"); v != "" {
		cfg.OllamaModel = v
	}
	if v := os.Getenv("CDSS_EXPLANATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ExplanationEnabled = b
		}
	}
	if v := os.Getenv("CDSS_EXPLANATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ExplanationTimeout = d
		}
	}
	if v := os.Getenv("CDSS_RETRIEVAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RetrievalTimeout = d
		}
	}

	if v := os.Getenv("CDSS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CDSS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg, nil
}

// FeedbackDBPath returns the path to the feedback SQLite database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}

// GuidelineDBPath returns the path to the guideline index.
func (c *LiteConfig) GuidelineDBPath() string {
	return filepath.Join(c.DataDir, "guidelines.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

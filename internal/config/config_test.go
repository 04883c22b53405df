package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Retrieval.Backend)
	assert.Equal(t, 3, cfg.Retrieval.ResultLimit)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.Timeout)
	assert.Equal(t, 800, cfg.Retrieval.ExcerptLength)
	assert.Equal(t, "llama3:8b", cfg.Explanation.Model)
	assert.Equal(t, 30*time.Second, cfg.Explanation.Timeout)
	assert.False(t, cfg.Database.Enabled())
	assert.NoError(t, m.Validate())
}

func TestNewManagerFromFile_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
retrieval:
  backend: none
  excerpt_length: 500
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CDSS_EXPLANATION_MODEL", "mistral:7b")
	t.Setenv("CDSS_SERVER_PORT", "7070")

	m, err := NewManagerFromFile(path)
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 7070, cfg.Server.Port, "environment wins over file")
	assert.Equal(t, "none", cfg.Retrieval.Backend)
	assert.Equal(t, 500, cfg.Retrieval.ExcerptLength)
	assert.Equal(t, "mistral:7b", cfg.Explanation.Model)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, &cfg.Server, m.GetServerConfig())
	assert.NoError(t, m.Validate())
}

func TestNewManagerFromFile_Missing(t *testing.T) {
	_, err := NewManagerFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Manager)
		wantErr string
	}{
		{"valid defaults", func(m *Manager) {}, ""},
		{"bad port", func(m *Manager) { m.config.Server.Port = 70000 }, "invalid server port"},
		{"unknown retrieval backend", func(m *Manager) { m.config.Retrieval.Backend = "faiss" }, "invalid retrieval backend"},
		{"postgres retrieval without database", func(m *Manager) { m.config.Retrieval.Backend = "postgres" }, "requires database.host"},
		{"postgres feedback without database", func(m *Manager) { m.config.Feedback.Backend = "postgres" }, "requires database.host"},
		{"postgres feedback with database", func(m *Manager) {
			m.config.Feedback.Backend = "postgres"
			m.config.Database.Host = "db"
		}, ""},
		{"overlap too large", func(m *Manager) { m.config.Retrieval.ChunkOverlap = 400 }, "chunk overlap"},
		{"explanation without url", func(m *Manager) { m.config.Explanation.BaseURL = "" }, "explanation base URL"},
		{"explanation disabled without url", func(m *Manager) {
			m.config.Explanation.BaseURL = ""
			m.config.Explanation.Enabled = false
		}, ""},
		{"bad log level", func(m *Manager) { m.config.Logging.Level = "loud" }, "invalid log level"},
		{"bad log format", func(m *Manager) { m.config.Logging.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager()
			require.NoError(t, err)
			tt.mutate(m)

			err = m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug", "json", &buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("domain", "thyroid").Info("Clinical assessment completed")
	assert.Contains(t, buf.String(), `"domain":"thyroid"`)

	fallback := NewLogger("shouting", "text", &buf)
	assert.Equal(t, logrus.InfoLevel, fallback.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, fallback.Formatter)
}

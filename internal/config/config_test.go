package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("NLQ2SQL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "database", cfg.Schema.Source)
	assert.Equal(t, "movie", cfg.Schema.Dialect)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 90, cfg.Refine.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.Refine.MaxIterations)
	assert.Equal(t, 40, cfg.Refine.SyntaxPenalty)
	assert.Equal(t, 1000, cfg.Database.MaxRows)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("NLQ2SQL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("NLQ2SQL_LLM_PROVIDER", "openai")
	t.Setenv("NLQ2SQL_REFINE_THRESHOLD", "80")
	t.Setenv("NLQ2SQL_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 80, cfg.Refine.ConfidenceThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfigFileMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	  "llm": {"provider": "anthropic", "model": "claude-3-sonnet-20240229"},
	  "refine": {"max_iterations": 5}
	}`), 0600))

	t.Setenv("NLQ2SQL_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Refine.MaxIterations)
	// Untouched sections keep their defaults.
	assert.Equal(t, "database", cfg.Schema.Source)
}

func TestEnvironmentBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	  "llm": {"provider": "anthropic", "model": "claude-3-sonnet-20240229"}
	}`), 0600))

	t.Setenv("NLQ2SQL_CONFIG", path)
	t.Setenv("NLQ2SQL_LLM_PROVIDER", "openai")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Environment wins over the file; the file still fills what the
	// environment left alone.
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "claude-3-sonnet-20240229", cfg.LLM.Model)
}

func TestPrefixAppliedOnce(t *testing.T) {
	t.Setenv("NLQ2SQL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("NLQ2SQL_NLQ2SQL_LLM_PROVIDER", "openai")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// A doubled prefix is not a recognized variable name.
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestFlagOverrides(t *testing.T) {
	t.Setenv("NLQ2SQL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := LoadConfigWithOverrides(map[string]interface{}{
		"db-path":     "/tmp/movies.db",
		"schema-file": "/tmp/schema.json",
		"provider":    "openai",
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/movies.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/schema.json", cfg.Schema.DescriptorPath)
	// Selecting a descriptor file switches the schema source.
	assert.Equal(t, "file", cfg.Schema.Source)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestValidation(t *testing.T) {
	t.Setenv("NLQ2SQL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	tests := []struct {
		name  string
		env   map[string]string
		wants string
	}{
		{"bad log level", map[string]string{"NLQ2SQL_LOG_LEVEL": "loud"}, "invalid log level"},
		{"bad schema source", map[string]string{"NLQ2SQL_SCHEMA_SOURCE": "carrier-pigeon"}, "invalid schema source"},
		{"bad timeout", map[string]string{"NLQ2SQL_LLM_TIMEOUT": "soon"}, "invalid llm timeout"},
		{"threshold out of range", map[string]string{"NLQ2SQL_REFINE_THRESHOLD": "150"}, "confidence threshold"},
		{"zero iterations", map[string]string{"NLQ2SQL_REFINE_MAX_ITERATIONS": "0"}, "max iterations"},
		{"file source without path", map[string]string{"NLQ2SQL_SCHEMA_SOURCE": "file"}, "descriptor path"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wants)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "movies.db"), expandPath("~/movies.db"))
	assert.Equal(t, home, expandPath("~"))
	assert.Equal(t, "/abs/path.db", expandPath("/abs/path.db"))
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{QueryTimeout: "10s"},
		LLM:      LLMConfig{Timeout: "2m"},
	}

	assert.Equal(t, 10*time.Second, cfg.QueryTimeoutDuration())
	assert.Equal(t, 2*time.Minute, cfg.LLMTimeoutDuration())

	cfg.Database.QueryTimeout = "garbage"
	assert.Equal(t, 30*time.Second, cfg.QueryTimeoutDuration())
}

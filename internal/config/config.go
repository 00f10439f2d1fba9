package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `json:"database" envPrefix:"NLQ2SQL_"`
	Schema   SchemaConfig   `json:"schema"   envPrefix:"NLQ2SQL_"`
	LLM      LLMConfig      `json:"llm"      envPrefix:"NLQ2SQL_"`
	Refine   RefineConfig   `json:"refine"   envPrefix:"NLQ2SQL_"`
	Logging  LoggingConfig  `json:"logging"  envPrefix:"NLQ2SQL_"`
}

// DatabaseConfig represents DuckDB connection configuration
type DatabaseConfig struct {
	Path            string `json:"path"               env:"DB_PATH"               envDefault:"~/.config/nlq2sql/movies.db"`
	MaxConnections  int    `json:"max_connections"    env:"DB_MAX_CONNECTIONS"    envDefault:"10"`
	MaxIdleConns    int    `json:"max_idle_conns"     env:"DB_MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime string `json:"conn_max_lifetime"  env:"DB_CONN_MAX_LIFETIME"  envDefault:"30m"`
	QueryTimeout    string `json:"query_timeout"      env:"DB_QUERY_TIMEOUT"      envDefault:"30s"`
	MaxRows         int    `json:"max_rows"           env:"DB_MAX_ROWS"           envDefault:"1000"`
}

// SchemaConfig selects the schema source for the registry
type SchemaConfig struct {
	Source         string `json:"source"          env:"SCHEMA_SOURCE"   envDefault:"database"` // file, database, none
	DescriptorPath string `json:"descriptor_path" env:"SCHEMA_FILE"     envDefault:""`
	Dialect        string `json:"dialect"         env:"SCHEMA_DIALECT"  envDefault:"movie"` // movie, generic
}

// LLMConfig represents SQL-generation collaborator configuration
type LLMConfig struct {
	Provider      string `json:"provider"       env:"LLM_PROVIDER"       envDefault:"ollama"` // openai, anthropic, ollama, local
	Model         string `json:"model"          env:"LLM_MODEL"          envDefault:"llama3"`
	APIKey        string `json:"api_key"        env:"LLM_API_KEY"        envDefault:""`
	BaseURL       string `json:"base_url"       env:"LLM_BASE_URL"       envDefault:""`
	Timeout       string `json:"timeout"        env:"LLM_TIMEOUT"        envDefault:"60s"`
	RetryAttempts int    `json:"retry_attempts" env:"LLM_RETRY_ATTEMPTS" envDefault:"2"`
	RetryDelay    string `json:"retry_delay"    env:"LLM_RETRY_DELAY"    envDefault:"2s"`
	Fallback      bool   `json:"fallback"       env:"LLM_FALLBACK"       envDefault:"true"`
}

// RefineConfig tunes the validation/refinement loop. The penalty weights are
// heuristic constants, not contracts; see the validate package.
type RefineConfig struct {
	ConfidenceThreshold int `json:"confidence_threshold" env:"REFINE_THRESHOLD"       envDefault:"90"`
	MaxIterations       int `json:"max_iterations"       env:"REFINE_MAX_ITERATIONS"  envDefault:"3"`
	SyntaxPenalty       int `json:"syntax_penalty"       env:"REFINE_SYNTAX_PENALTY"  envDefault:"40"`
	ColumnPenalty       int `json:"column_penalty"       env:"REFINE_COLUMN_PENALTY"  envDefault:"10"`
	ColumnPenaltyCap    int `json:"column_penalty_cap"   env:"REFINE_COLUMN_CAP"      envDefault:"30"`
	TablePenalty        int `json:"table_penalty"        env:"REFINE_TABLE_PENALTY"   envDefault:"15"`
	TablePenaltyCap     int `json:"table_penalty_cap"    env:"REFINE_TABLE_CAP"       envDefault:"45"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"  env:"LOG_LEVEL"  envDefault:"info"`   // debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"text"`   // text, json
	Output string `json:"output" env:"LOG_OUTPUT" envDefault:"stderr"` // stdout, stderr, file
	File   string `json:"file"   env:"LOG_FILE"   envDefault:"~/.config/nlq2sql/logs/app.log"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag
// overrides. Precedence, lowest to highest: defaults, config file,
// environment variables, flags.
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	config := &Config{}

	// Defaults and environment in one pass; the envPrefix struct tags carry
	// the NLQ2SQL_ prefix.
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// A second pass against an empty environment yields the bare defaults, so
	// file values can be slotted between defaults and environment.
	defaults := &Config{}
	if err := env.ParseWithOptions(defaults, env.Options{
		Environment: map[string]string{},
	}); err != nil {
		return nil, fmt.Errorf("failed to parse default values: %w", err)
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, defaults, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config, defaults *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeFileConfig(config, defaults, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "schema-file":
			if str, ok := value.(string); ok && str != "" {
				config.Schema.DescriptorPath = str
				config.Schema.Source = "file"
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "provider":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Provider = str
			}
		case "model":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Model = str
			}
		}
	}
}

// mergeFileConfig applies file values to the target, but only where the
// environment left the default in place, so environment variables stay above
// the file in precedence.
func mergeFileConfig(target, defaults, file *Config) {
	var mergeValues func(t, d, f reflect.Value)
	mergeValues = func(t, d, f reflect.Value) {
		if t.Kind() == reflect.Struct {
			for i := 0; i < t.NumField(); i++ {
				mergeValues(t.Field(i), d.Field(i), f.Field(i))
			}

			return
		}

		if f.IsZero() {
			return
		}

		// The field differs from its default, meaning an environment
		// variable set it.
		if !reflect.DeepEqual(t.Interface(), d.Interface()) {
			return
		}

		t.Set(f)
	}

	mergeValues(
		reflect.ValueOf(target).Elem(),
		reflect.ValueOf(defaults).Elem(),
		reflect.ValueOf(file).Elem(),
	)
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	validSchemaSources := map[string]bool{
		"file": true, "database": true, "none": true,
	}
	if !validSchemaSources[strings.ToLower(config.Schema.Source)] {
		return fmt.Errorf(
			"invalid schema source: %s (must be file, database, or none)",
			config.Schema.Source,
		)
	}

	if strings.ToLower(config.Schema.Source) == "file" && config.Schema.DescriptorPath == "" {
		return fmt.Errorf("schema descriptor path is required when schema source is 'file'")
	}

	for name, value := range map[string]string{
		"database query timeout": config.Database.QueryTimeout,
		"llm timeout":            config.LLM.Timeout,
		"llm retry delay":        config.LLM.RetryDelay,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %s", name, value)
		}
	}

	if config.Database.MaxConnections <= 0 {
		return fmt.Errorf(
			"database max connections must be positive: %d",
			config.Database.MaxConnections,
		)
	}

	if config.Refine.ConfidenceThreshold < 0 || config.Refine.ConfidenceThreshold > 100 {
		return fmt.Errorf(
			"confidence threshold must be in [0,100]: %d",
			config.Refine.ConfidenceThreshold,
		)
	}

	if config.Refine.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1: %d", config.Refine.MaxIterations)
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv("NLQ2SQL_CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "nlq2sql", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Database.Path = expandPath(c.Database.Path)
	c.Schema.DescriptorPath = expandPath(c.Schema.DescriptorPath)
	c.Logging.File = expandPath(c.Logging.File)
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/nlq2sql"
	}

	return filepath.Join(homeDir, ".config", "nlq2sql")
}

// QueryTimeoutDuration returns the parsed database query timeout
func (c *Config) QueryTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Database.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}

	return d
}

// LLMTimeoutDuration returns the parsed collaborator call timeout
func (c *Config) LLMTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}

	return d
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

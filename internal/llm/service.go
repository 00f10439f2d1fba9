package llm

import "context"

// Service defines the SQL generation contract consumed by the refinement
// loop: a question plus schema context and prior feedback in, a candidate
// SQL string out.
type Service interface {
	GenerateSQL(ctx context.Context, req Request) (string, error)
	Configure(config Config) error
}

// Request carries one generation call. Feedback is empty on the first
// iteration and holds the previous attempt's validation feedback afterward.
type Request struct {
	Question      string `json:"question"`
	SchemaContext string `json:"schema_context"`
	Feedback      string `json:"feedback,omitempty"`
	Iteration     int    `json:"iteration"`
}

// Config represents generation service configuration
type Config struct {
	Provider string            `json:"provider"` // openai, anthropic, ollama, local
	Model    string            `json:"model"`
	APIKey   string            `json:"api_key,omitempty"`
	BaseURL  string            `json:"base_url,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// Provider constants for different generation providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"
	ProviderOllama    = "ollama"
)

// Model constants for common models
const (
	ModelGPT4       = "gpt-4"
	ModelGPT35Turbo = "gpt-3.5-turbo"
	ModelClaude3    = "claude-3-sonnet-20240229"
	ModelLlama3     = "llama3"
	ModelCodeLlama  = "codellama"
)

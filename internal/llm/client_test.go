package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureValidation(t *testing.T) {
	client := NewClient(Config{})

	assert.Error(t, client.Configure(Config{Model: "gpt-4"}))
	assert.Error(t, client.Configure(Config{Provider: ProviderOpenAI}))
	assert.Error(t, client.Configure(Config{Provider: ProviderOpenAI, Model: ModelGPT4}))
	assert.Error(t, client.Configure(Config{Provider: "watson", Model: "x"}))

	require.NoError(t, client.Configure(Config{Provider: ProviderOllama, Model: ModelLlama3}))
	assert.Equal(t, "http://localhost:11434", client.config.BaseURL)

	require.NoError(t, client.Configure(Config{
		Provider: ProviderOpenAI, Model: ModelGPT4, APIKey: "sk-test",
	}))
	assert.Equal(t, "https://api.openai.com/v1", client.config.BaseURL)
}

func TestCleanSQL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "SELECT 1", "SELECT 1"},
		{"trailing semicolon", "SELECT 1;\n", "SELECT 1"},
		{"fenced", "```sql\nSELECT primary_title FROM title_basics;\n```", "SELECT primary_title FROM title_basics"},
		{"fenced no language", "```\nSELECT 1\n```", "SELECT 1"},
		{"label prefix", "SQL: SELECT 1", "SELECT 1"},
		{"surrounding prose", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"empty", "   ", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanSQL(tc.raw))
		})
	}
}

func TestBuildGenerationPrompt(t *testing.T) {
	prompt := buildGenerationPrompt(Request{
		Question:      "top movies",
		SchemaContext: "Table title_basics:",
		Iteration:     0,
	})

	assert.Contains(t, prompt, "Table title_basics:")
	assert.Contains(t, prompt, "Question: top movies")
	assert.NotContains(t, prompt, "previous attempt")

	prompt = buildGenerationPrompt(Request{
		Question:      "top movies",
		SchemaContext: "Table title_basics:",
		Feedback:      "Columns not found in schema: primaryTitle (should be primary_title)",
		Iteration:     1,
	})

	assert.Contains(t, prompt, "previous attempt (iteration 0)")
	assert.Contains(t, prompt, "should be primary_title")
}

func TestGenerateSQLOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ModelLlama3, req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(ollamaResponse{
			Response: "```sql\nSELECT primary_title FROM title_basics LIMIT 10;\n```",
			Done:     true,
		})
	}))
	defer server.Close()

	client := NewClient(Config{})
	require.NoError(t, client.Configure(Config{
		Provider: ProviderOllama, Model: ModelLlama3, BaseURL: server.URL,
	}))

	sql, err := client.GenerateSQL(context.Background(), Request{Question: "list movies"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT primary_title FROM title_basics LIMIT 10", sql)
}

func TestGenerateSQLOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: "SELECT COUNT(*) FROM title_basics"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{})
	require.NoError(t, client.Configure(Config{
		Provider: ProviderOpenAI, Model: ModelGPT4, APIKey: "sk-test", BaseURL: server.URL,
	}))

	sql, err := client.GenerateSQL(context.Background(), Request{Question: "how many movies"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM title_basics", sql)
}

func TestGenerateSQLServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{})
	require.NoError(t, client.Configure(Config{
		Provider: ProviderOllama, Model: ModelLlama3, BaseURL: server.URL,
	}))

	_, err := client.GenerateSQL(context.Background(), Request{Question: "list movies"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGenerateSQLEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Response: "   ", Done: true})
	}))
	defer server.Close()

	client := NewClient(Config{})
	require.NoError(t, client.Configure(Config{
		Provider: ProviderOllama, Model: ModelLlama3, BaseURL: server.URL,
	}))

	_, err := client.GenerateSQL(context.Background(), Request{Question: "list movies"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no SQL")
}

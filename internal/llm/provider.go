package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ppiankov/dealdesk/internal/model"
)

// ErrNotConfigured is returned when no provider or credential is configured
var ErrNotConfigured = errors.New("llm: no provider credential configured")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs one structured-output completion and returns the raw text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single system+user prompt exchange
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string

	// SchemaName and Schema describe the JSON object the model must return.
	// Providers without native schema support receive it in the prompt.
	SchemaName string
	Schema     json.RawMessage

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// CompletionResponse contains the model's output
type CompletionResponse struct {
	// OutputText is the raw model output, expected to contain a JSON object
	OutputText string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens   int
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Timeout:     60,
		MaxTokens:   4000,
		Temperature: 0.1,
	}
}

// ConfigFromModel converts the application config into provider config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		HTTPProxy:   cfg.Search.HTTPProxy,
		HTTPSProxy:  cfg.Search.HTTPSProxy,
		NoProxy:     cfg.Search.NoProxy,
	}
}

// ExtractJSONObject returns the outermost {...} span of text. Models wrap
// JSON in prose or code fences often enough that callers should not parse
// OutputText directly.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// schemaInstruction appends the schema to a prompt for providers that cannot
// enforce it natively
func schemaInstruction(prompt string, schema json.RawMessage) string {
	if len(schema) == 0 {
		return prompt
	}
	return prompt + "\n\nRespond with a single JSON object and nothing else. It must conform to this JSON schema:\n" + string(schema)
}

func resolveModel(reqModel, cfgModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if cfgModel != "" {
		return cfgModel
	}
	return fallback
}

func resolveMaxTokens(reqTokens, cfgTokens int) int {
	if reqTokens > 0 {
		return reqTokens
	}
	if cfgTokens > 0 {
		return cfgTokens
	}
	return 4000
}

package configuration

import (
	"net/http"
	"time"
)

// Supported provider identifiers. These constants must match the keys of
// DefaultConfig's provider table.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
	ProviderGroq       = "groq"
	ProviderOllama     = "ollama"
)

// DefaultHTTPTimeout bounds a single provider call. Judge responses are
// slow to stream, so this is generous; retry policy lives in the worker.
const DefaultHTTPTimeout = 120 * time.Second

// DefaultConfig returns the production provider and routing tables.
// API keys are not resolved here; call LoadKeys after the environment is
// loaded.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeout,
		HTTPClient:  &http.Client{Timeout: DefaultHTTPTimeout},
		Providers: map[string]ProviderConfig{
			ProviderOpenAI: {
				Endpoint:  "https://api.openai.com/v1",
				APIKeyEnv: "OPENAI_API_KEY",
			},
			ProviderAnthropic: {
				Endpoint:  "https://api.anthropic.com/v1",
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
			ProviderGoogle: {
				Endpoint:  "https://generativelanguage.googleapis.com/v1beta",
				APIKeyEnv: "GOOGLE_API_KEY",
			},
			ProviderOpenRouter: {
				Endpoint:  "https://openrouter.ai/api/v1",
				APIKeyEnv: "OPENROUTER_API_KEY",
			},
			ProviderGroq: {
				Endpoint:  "https://api.groq.com/openai/v1",
				APIKeyEnv: "GROQ_API_KEY",
			},
			ProviderOllama: {
				Endpoint: "http://localhost:11434/v1",
			},
		},
		Routes: map[string]string{
			"gpt-4-turbo":                     ProviderOpenAI,
			"gpt-3.5-turbo":                   ProviderOpenAI,
			"claude-3-opus":                   ProviderAnthropic,
			"claude-3-sonnet":                 ProviderAnthropic,
			"claude-3-haiku":                  ProviderAnthropic,
			"gemini-pro":                      ProviderGoogle,
			"mixtral-8x7b-32768":              ProviderGroq,
			"gemma-7b-it":                     ProviderGroq,
			"llama2-70b-4096":                 ProviderGroq,
			"mistralai/mixtral-8x7b-instruct": ProviderOpenRouter,
			"microsoft/wizardlm-2-8x22b":      ProviderOpenRouter,
			"mistral":                         ProviderOllama,
			"mixtral":                         ProviderOllama,
			"codellama":                       ProviderOllama,
			"phi":                             ProviderOllama,
			"gemma":                           ProviderOllama,
			"deepseek-coder:6.7b":             ProviderOllama,
		},
	}
}

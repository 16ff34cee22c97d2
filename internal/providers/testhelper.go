package providers

import (
	"os"
)

// TestConfig holds provider configurations loaded from environment variables.
// Live-provider tests skip themselves when the matching key is absent.
type TestConfig struct {
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	OllamaBaseURL    string
}

// LoadTestConfig loads provider settings from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OllamaBaseURL:    os.Getenv("QUILL_TEST_OLLAMA_URL"),
	}
}

// HasOpenRouter returns true if an OpenRouter API key is configured.
func (c TestConfig) HasOpenRouter() bool {
	return c.OpenRouterAPIKey != ""
}

// HasOllama returns true if a local Ollama endpoint is configured.
func (c TestConfig) HasOllama() bool {
	return c.OllamaBaseURL != ""
}

// ToRegistryConfig converts test config to a RegistryConfig.
// Only providers that are configured are included.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{LLMProviders: make(map[string]LLMProviderConfig)}

	if c.HasOpenRouter() {
		cfg.LLMProviders["openrouter"] = LLMProviderConfig{
			Type:      TypeOpenRouter,
			APIKey:    c.OpenRouterAPIKey,
			RateLimit: 60,
			Enabled:   true,
		}
	}
	if c.OpenAIAPIKey != "" {
		cfg.LLMProviders["openai"] = LLMProviderConfig{
			Type:    TypeOpenAI,
			APIKey:  c.OpenAIAPIKey,
			Enabled: true,
		}
	}
	if c.HasOllama() {
		cfg.LLMProviders["ollama"] = LLMProviderConfig{
			Type:    TypeOllama,
			BaseURL: c.OllamaBaseURL,
			Model:   "mistral",
			Enabled: true,
		}
	}
	return cfg
}

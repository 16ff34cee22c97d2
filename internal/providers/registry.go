package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Provider types accepted in configuration.
const (
	TypeOpenAI     = "openai"
	TypeOllama     = "ollama"
	TypeOpenRouter = "openrouter"
	TypeMock       = "mock"
)

// Registry holds LLM clients by configured name.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients: make(map[string]LLMClient),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	r.logger.Debug("registered LLM client", "name", name, "client", client.Name())
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.llmClients[name]
	return ok
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	// LLMProviders maps provider names to their config
	LLMProviders map[string]LLMProviderConfig
	Logger       *slog.Logger
}

// LLMProviderConfig mirrors config.LLMProviderCfg with a resolved API key.
type LLMProviderConfig struct {
	Type      string // "openai", "ollama", "openrouter", "mock"
	Model     string // Default model name
	APIKey    string // Resolved API key
	BaseURL   string
	RateLimit int // Requests per minute
	Timeout   time.Duration
	Enabled   bool
}

// needsKey reports whether the provider type requires an API key.
func (c LLMProviderConfig) needsKey() bool {
	return c.Type == TypeOpenAI || c.Type == TypeOpenRouter
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Disabled providers and keyed providers without a key are skipped.
func NewRegistryFromConfig(cfg RegistryConfig) (*Registry, error) {
	r := NewRegistry()
	if cfg.Logger != nil {
		r.logger = cfg.Logger
	}

	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.Enabled {
			continue
		}
		if provCfg.needsKey() && provCfg.APIKey == "" {
			r.logger.Debug("skipping provider without API key", "name", name, "type", provCfg.Type)
			continue
		}
		client, err := createLLMClient(name, provCfg, r.logger)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		r.llmClients[name] = client
	}
	return r, nil
}

// createLLMClient creates an LLM client based on provider type.
func createLLMClient(name string, cfg LLMProviderConfig, logger *slog.Logger) (LLMClient, error) {
	switch cfg.Type {
	case TypeOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			Name:         name,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			RateLimit:    cfg.RateLimit,
			Timeout:      cfg.Timeout,
			Logger:       logger,
		}), nil
	case TypeOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = OllamaBaseURL
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = OllamaName // ignored by Ollama, required by the SDK
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:         name,
			APIKey:       apiKey,
			BaseURL:      baseURL,
			DefaultModel: cfg.Model,
			RateLimit:    cfg.RateLimit,
			Timeout:      cfg.Timeout,
			Logger:       logger,
		}), nil
	case TypeOpenRouter:
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			RateLimit:    cfg.RateLimit,
			Timeout:      cfg.Timeout,
			Logger:       logger,
		}), nil
	case TypeMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

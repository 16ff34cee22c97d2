package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Role names.
const (
	RolePlan    = "plan"
	RoleSummary = "summary"
	RoleProse   = "prose"
)

// Roles lists every role a run needs, in pipeline order.
var Roles = []string{RolePlan, RoleSummary, RoleProse}

// DefaultPlot is the premise used when none is configured.
const DefaultPlot = "A dark scifi tale of a grizzled solo astronaut, Bob, encountering a derelict alien ship in deep space. " +
	"Aliens arrive and destroy his ship while he is exploring the derelict. " +
	"He must use cunning to restore the engines on the derelict ship while playing dead all to escape."

// Config holds quill configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Story        StoryCfg                  `mapstructure:"story" yaml:"story"`
	Roles        map[string]RoleCfg        `mapstructure:"roles" yaml:"roles"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Output       OutputCfg                 `mapstructure:"output" yaml:"output"`
	Prompts      PromptsCfg                `mapstructure:"prompts" yaml:"prompts"`
	LogLevel     string                    `mapstructure:"log_level" yaml:"log_level"`
}

// StoryCfg describes the story to generate.
type StoryCfg struct {
	Plot         string `mapstructure:"plot" yaml:"plot"`           // Short premise
	PlotFile     string `mapstructure:"plot_file" yaml:"plot_file"` // Read premise from file (wins over plot)
	Title        string `mapstructure:"title" yaml:"title"`
	Author       string `mapstructure:"author" yaml:"author"`
	Chapters     int    `mapstructure:"chapters" yaml:"chapters"`       // Exact chapter count of the plan
	MaxRetries   int    `mapstructure:"max_retries" yaml:"max_retries"` // Plan generation attempt budget
	SkipSynopsis bool   `mapstructure:"skip_synopsis" yaml:"skip_synopsis"`
}

// RoleCfg binds a pipeline role to a provider and generation parameters.
type RoleCfg struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"` // Name in llm_providers
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`         // "openai", "ollama", "openrouter", "mock"
	Model          string `mapstructure:"model" yaml:"model"`       // Default model name
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`   // API key (supports ${ENV_VAR} syntax)
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"` // Override endpoint (OpenAI-compatible servers)
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// OutputCfg controls run artifacts.
type OutputCfg struct {
	EPUB        bool `mapstructure:"epub" yaml:"epub"`
	RecordCalls bool `mapstructure:"record_calls" yaml:"record_calls"` // Persist calls to llmcalls.db
}

// PromptsCfg controls prompt resolution.
type PromptsCfg struct {
	Dir string `mapstructure:"dir" yaml:"dir"` // Override directory of <key>.tmpl files
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Story: StoryCfg{
			Plot:       DefaultPlot,
			Author:     "quill",
			Chapters:   10,
			MaxRetries: 20,
		},
		Roles: map[string]RoleCfg{
			RolePlan:    {Provider: "ollama", Model: "mistral", Temperature: 0.4, MaxTokens: 4096},
			RoleSummary: {Provider: "ollama", Model: "mistral", Temperature: 0.9, MaxTokens: 1024},
			RoleProse:   {Provider: "ollama", Model: "mistral", Temperature: 0.9, MaxTokens: 4096},
		},
		LLMProviders: map[string]LLMProviderCfg{
			"ollama": {
				Type:    "ollama",
				Model:   "mistral",
				BaseURL: "http://localhost:11434/v1",
				Enabled: true,
			},
			"openai": {
				Type:    "openai",
				Model:   "gpt-4o-mini",
				APIKey:  "${OPENAI_API_KEY}",
				Enabled: true,
			},
			"openrouter": {
				Type:      "openrouter",
				Model:     "mistralai/mistral-7b-instruct",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"mock": {
				Type:    "mock",
				Enabled: true,
			},
		},
		Output: OutputCfg{
			EPUB:        true,
			RecordCalls: true,
		},
		LogLevel: "info",
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// Role returns the binding for a role.
func (c *Config) Role(name string) (RoleCfg, bool) {
	cfg, ok := c.Roles[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Premise returns the story premise, reading PlotFile when set.
func (c *Config) Premise() (string, error) {
	if c.Story.PlotFile != "" {
		data, err := os.ReadFile(c.Story.PlotFile)
		if err != nil {
			return "", fmt.Errorf("failed to read plot file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(c.Story.Plot), nil
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	var problems []string
	if c.Story.Chapters < 1 {
		problems = append(problems, fmt.Sprintf("story.chapters must be at least 1, got %d", c.Story.Chapters))
	}
	if c.Story.MaxRetries < 1 {
		problems = append(problems, fmt.Sprintf("story.max_retries must be at least 1, got %d", c.Story.MaxRetries))
	}
	if c.Story.PlotFile == "" && strings.TrimSpace(c.Story.Plot) == "" {
		problems = append(problems, "story.plot or story.plot_file is required")
	}
	for _, role := range Roles {
		rc, ok := c.Roles[role]
		if !ok {
			problems = append(problems, fmt.Sprintf("roles.%s is not configured", role))
			continue
		}
		pc, ok := c.LLMProviders[rc.Provider]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("roles.%s.provider %q is not in llm_providers", role, rc.Provider))
		case !pc.Enabled:
			problems = append(problems, fmt.Sprintf("roles.%s.provider %q is disabled", role, rc.Provider))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid config:\n  %s", strings.Join(problems, "\n  "))
}

// Redacted returns a copy with API keys masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.LLMProviders = make(map[string]LLMProviderCfg, len(c.LLMProviders))
	for name, p := range c.LLMProviders {
		if p.APIKey != "" && !strings.HasPrefix(p.APIKey, "${") {
			p.APIKey = "****"
		}
		out.LLMProviders[name] = p
	}
	return &out
}

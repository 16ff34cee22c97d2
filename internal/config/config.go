package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/quill/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. QUILL_STORY_CHAPTERS.
const EnvPrefix = "QUILL"

// Manager loads configuration from defaults, a YAML file and the environment.
// The loaded Config is fixed for the life of a run.
type Manager struct {
	v      *viper.Viper
	config *Config
}

// NewManager creates a new config manager and loads config. cfgFile may be
// empty, in which case config.yaml is searched in searchDirs.
func NewManager(cfgFile string, searchDirs ...string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile, searchDirs); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string, searchDirs []string) error {
	v := cm.v
	defaults := DefaultConfig()
	// Scalars are set per key so a partial file section and QUILL_* env
	// overrides merge with the remaining defaults.
	v.SetDefault("story.plot", defaults.Story.Plot)
	v.SetDefault("story.plot_file", defaults.Story.PlotFile)
	v.SetDefault("story.title", defaults.Story.Title)
	v.SetDefault("story.author", defaults.Story.Author)
	v.SetDefault("story.chapters", defaults.Story.Chapters)
	v.SetDefault("story.max_retries", defaults.Story.MaxRetries)
	v.SetDefault("story.skip_synopsis", defaults.Story.SkipSynopsis)
	v.SetDefault("output.epub", defaults.Output.EPUB)
	v.SetDefault("output.record_calls", defaults.Output.RecordCalls)
	v.SetDefault("prompts.dir", defaults.Prompts.Dir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("roles", defaults.Roles)
	v.SetDefault("llm_providers", defaults.LLMProviders)

	// Environment variables with QUILL_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		for _, dir := range searchDirs {
			v.AddConfigPath(dir)
		}
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the loaded configuration.
func (cm *Manager) Get() *Config {
	return cm.config
}

// ConfigFile returns the file the config was read from, or "" if none.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig, len(c.LLMProviders)),
	}
	for name, llm := range c.LLMProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:      llm.Type,
			Model:     llm.Model,
			APIKey:    ResolveEnvVars(llm.APIKey),
			BaseURL:   llm.BaseURL,
			RateLimit: llm.RateLimit,
			Timeout:   time.Duration(llm.TimeoutSeconds) * time.Second,
			Enabled:   llm.Enabled,
		}
	}
	return cfg
}

// WriteDefault writes the default configuration to the specified path.
// An existing file is left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Quill configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell or a .env file: OPENAI_API_KEY=xxx OPENROUTER_API_KEY=xxx
# Roles bind each pipeline stage (plan, summary, prose) to a provider in llm_providers.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

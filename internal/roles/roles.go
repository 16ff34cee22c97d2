// Package roles binds the pipeline's logical roles (plan, summary, prose) to
// configured LLM clients. Components ask for a backend by role and never see
// provider selection.
package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/llmcall"
	"github.com/jackzampolin/quill/internal/prompts"
	"github.com/jackzampolin/quill/internal/providers"
)

// BackendError wraps a failure of the LLM service behind a role. It is never
// retried by the pipeline.
type BackendError struct {
	Role     string
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend (%s) failed: %v", e.Role, e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Backend generates text for one role with fixed model parameters.
type Backend struct {
	Role        string
	Client      providers.LLMClient
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// Optional call recording
	Recorder  *llmcall.Recorder
	SessionID string
}

// Generate sends prompt as a single user message and returns the complete
// response text. promptKey identifies the template the prompt came from.
func (b *Backend) Generate(ctx context.Context, promptKey, prompt string) (string, error) {
	req := providers.UserPrompt(b.Model, prompt)
	req.Temperature = b.Temperature
	req.MaxTokens = b.MaxTokens
	req.Timeout = b.Timeout

	result, err := b.Client.Chat(ctx, req)

	if result == nil && err != nil {
		result = &providers.ChatResult{
			Provider:     b.Client.Name(),
			ModelUsed:    b.Model,
			ErrorMessage: err.Error(),
		}
	}
	if result != nil && err != nil && result.ErrorMessage == "" {
		result.ErrorMessage = err.Error()
	}
	temp := b.Temperature
	b.Recorder.Record(ctx, result, llmcall.RecordOptions{
		SessionID:   b.SessionID,
		Role:        b.Role,
		PromptKey:   promptKey,
		PromptHash:  prompts.HashText(prompt),
		Prompt:      prompt,
		Temperature: &temp,
	})

	if err != nil {
		return "", &BackendError{Role: b.Role, Provider: b.Client.Name(), Err: err}
	}
	if !result.Success {
		return "", &BackendError{Role: b.Role, Provider: b.Client.Name(), Err: errors.New(result.ErrorMessage)}
	}
	return strings.TrimSpace(result.Content), nil
}

// Set maps role names to backends. It is built once and read-only afterwards.
type Set map[string]*Backend

// Get returns the backend for role.
func (s Set) Get(role string) (*Backend, error) {
	b, ok := s[role]
	if !ok {
		return nil, fmt.Errorf("no backend configured for role %q", role)
	}
	return b, nil
}

// SetConfig holds what NewSet needs.
type SetConfig struct {
	Config    *config.Config
	Registry  *providers.Registry
	Recorder  *llmcall.Recorder
	SessionID string
	Logger    *slog.Logger
}

// NewSet resolves every role in config.Roles against the registry.
func NewSet(cfg SetConfig) (Set, error) {
	if cfg.Config == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("config and registry are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	set := make(Set, len(config.Roles))
	for _, role := range config.Roles {
		rc, ok := cfg.Config.Role(role)
		if !ok {
			return nil, fmt.Errorf("role %q is not configured", role)
		}
		client, err := cfg.Registry.GetLLM(rc.Provider)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", role, err)
		}

		model := rc.Model
		var timeout time.Duration
		if pc, ok := cfg.Config.GetLLMProvider(rc.Provider); ok {
			if model == "" {
				model = pc.Model
			}
			timeout = time.Duration(pc.TimeoutSeconds) * time.Second
		}

		set[role] = &Backend{
			Role:        role,
			Client:      client,
			Model:       model,
			Temperature: rc.Temperature,
			MaxTokens:   rc.MaxTokens,
			Timeout:     timeout,
			Recorder:    cfg.Recorder,
			SessionID:   cfg.SessionID,
		}
		logger.Debug("bound role", "role", role, "provider", rc.Provider, "model", model, "temperature", rc.Temperature)
	}
	return set, nil
}

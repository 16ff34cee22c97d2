package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/quill/internal/prompts/outline"
)

// maxEchoedOutput caps how much of a rejected response is echoed back in the
// strict prompt.
const maxEchoedOutput = 12000

// Backend produces a completion for a prompt.
type Backend interface {
	Generate(ctx context.Context, promptKey, prompt string) (string, error)
}

// PromptRenderer renders a registered prompt template.
type PromptRenderer interface {
	Render(key string, data any) (string, error)
}

// State is the lifecycle position of a Generator.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSucceeded
	StateExhausted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RetryAttempt is the outcome of one plan request.
type RetryAttempt struct {
	Number   int
	Response string
	Err      error
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Backend    Backend
	Prompts    PromptRenderer
	Chapters   int
	MaxRetries int
	Logger     *slog.Logger
}

// Generator turns a synopsis into a validated ChapterPlan, re-prompting with
// stricter instructions until the output holds or the attempt budget is spent.
// A Generator is not safe for concurrent use.
type Generator struct {
	backend    Backend
	prompts    PromptRenderer
	validator  *Validator
	maxRetries int
	logger     *slog.Logger

	state    State
	last     *RetryAttempt
	attempts int
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompt renderer is required")
	}
	if cfg.Chapters == 0 {
		cfg.Chapters = DefaultChapters
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be positive, got %d", cfg.MaxRetries)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v, err := NewValidator(cfg.Chapters)
	if err != nil {
		return nil, err
	}

	return &Generator{
		backend:    cfg.Backend,
		prompts:    cfg.Prompts,
		validator:  v,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}, nil
}

// State returns the generator's current lifecycle state.
func (g *Generator) State() State { return g.state }

// Attempts returns how many backend requests the last Generate made.
func (g *Generator) Attempts() int { return g.attempts }

// LastAttempt returns the most recent attempt, or nil before the first one.
func (g *Generator) LastAttempt() *RetryAttempt { return g.last }

// Generate requests a chapter plan for synopsis. It returns
// *PlanGenerationExhaustedError when every attempt fails validation and
// ErrUserCancelled when ctx is cancelled. Backend errors are returned as-is.
func (g *Generator) Generate(ctx context.Context, synopsis string) (*ChapterPlan, error) {
	request, err := g.prompts.Render(outline.RequestKey, outline.RequestData{
		Synopsis: synopsis,
		Chapters: g.validator.Chapters(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render plan request: %w", err)
	}

	g.state = StateAttempting
	g.last = nil
	g.attempts = 0

	var (
		accepted *ChapterPlan
		fatal    error
		attempts int
	)

	_ = retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				fatal = cancelled(err)
				return fatal
			}
			attempts++

			key, prompt := outline.RequestKey, request
			if attempts > 1 {
				key = outline.StrictKey
				prompt, err = g.strictPrompt(request, g.last)
				if err != nil {
					fatal = err
					return fatal
				}
			}

			resp, err := g.backend.Generate(ctx, key, prompt)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					fatal = cancelled(err)
				} else {
					fatal = err
				}
				return fatal
			}

			p, err := g.validator.Validate(resp)
			g.last = &RetryAttempt{Number: attempts, Response: resp, Err: err}
			if err != nil {
				g.logger.Warn("chapter plan rejected",
					"attempt", attempts,
					"max_attempts", g.maxRetries,
					"error", err)
				return err
			}
			accepted = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.maxRetries)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRecoverable),
	)
	g.attempts = attempts

	switch {
	case accepted != nil:
		g.state = StateSucceeded
		g.logger.Info("chapter plan accepted", "attempts", attempts, "chapters", accepted.Len())
		return accepted, nil

	case fatal != nil:
		if errors.Is(fatal, ErrUserCancelled) {
			g.state = StateAborted
		} else {
			g.state = StateFailed
		}
		return nil, fatal

	case ctx.Err() != nil:
		// Cancelled while waiting between attempts.
		g.state = StateAborted
		return nil, cancelled(ctx.Err())

	default:
		g.state = StateExhausted
		exhausted := &PlanGenerationExhaustedError{Attempts: attempts}
		if g.last != nil {
			exhausted.LastResponse = g.last.Response
			exhausted.LastErr = g.last.Err
		}
		g.logger.Error("chapter plan generation exhausted",
			"attempts", attempts,
			"last_response", exhausted.LastResponse,
			"error", exhausted.LastErr)
		return nil, exhausted
	}
}

func (g *Generator) strictPrompt(request string, last *RetryAttempt) (string, error) {
	data := outline.StrictData{
		Request:  request,
		Chapters: g.validator.Chapters(),
		Schema:   g.validator.SchemaJSON(),
	}
	if last != nil {
		data.PreviousOutput = truncate(strings.TrimSpace(last.Response), maxEchoedOutput)
		if last.Err != nil {
			data.Issue = last.Err.Error()
		}
	}
	prompt, err := g.prompts.Render(outline.StrictKey, data)
	if err != nil {
		return "", fmt.Errorf("failed to render strict plan request: %w", err)
	}
	return prompt, nil
}

func cancelled(err error) error {
	if errors.Is(err, ErrUserCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUserCancelled, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n...[truncated]"
}

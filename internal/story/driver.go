package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/quill/internal/plan"
	"github.com/jackzampolin/quill/internal/prompts/chapter"
	"github.com/jackzampolin/quill/internal/prompts/summary"
)

// ChapterSink receives each chapter once it is complete.
type ChapterSink interface {
	AppendChapter(ch GeneratedChapter) error
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	Summary  plan.Backend // lookahead and story-so-far summaries
	Prose    plan.Backend // chapter prose
	Prompts  plan.PromptRenderer
	Synopsis string      // overall plot, repeated in every chapter request
	Sink     ChapterSink // optional
	Logger   *slog.Logger
}

// Driver writes the chapters of an accepted plan in order.
type Driver struct {
	summary  plan.Backend
	prose    plan.Backend
	prompts  plan.PromptRenderer
	synopsis string
	sink     ChapterSink
	logger   *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Summary == nil || cfg.Prose == nil {
		return nil, fmt.Errorf("summary and prose backends are required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompt renderer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		summary:  cfg.Summary,
		prose:    cfg.Prose,
		prompts:  cfg.Prompts,
		synopsis: cfg.Synopsis,
		sink:     cfg.Sink,
		logger:   logger,
	}, nil
}

// Run generates prose for every chapter of p, updating state as it goes.
// The first error stops the run; chapters already handed to the sink stay
// written.
func (d *Driver) Run(ctx context.Context, p *plan.ChapterPlan, state *NarrativeState) error {
	if state == nil {
		return fmt.Errorf("narrative state is required")
	}
	style, err := d.prompts.Render(chapter.StyleKey, nil)
	if err != nil {
		return err
	}

	last := p.Len() - 1
	for i, spec := range p.Chapters {
		if err := ctx.Err(); err != nil {
			return userCancelled(err)
		}
		log := d.logger.With("chapter", spec.Index, "title", spec.Title)

		if spec.Blank() {
			log.Warn("skipping chapter with missing title or prompt")
			continue
		}

		lookahead := FinalLookahead
		if i < last {
			log.Info("summarizing future chapters")
			lookahead, err = d.generate(ctx, d.summary, summary.FutureKey, summary.FutureData{
				Prompts: strings.Join(p.PromptsAfter(i), " "),
			})
			if err != nil {
				return err
			}
		}

		log.Info("writing chapter", "of", p.Len())
		prose, err := d.generate(ctx, d.prose, chapter.WriteKey, chapter.WriteData{
			Style:       style,
			Synopsis:    d.synopsis,
			Lookahead:   lookahead,
			PastSummary: state.PastSummary,
			Title:       spec.Title,
			Blueprint:   spec.Prompt,
		})
		if err != nil {
			return err
		}

		written := GeneratedChapter{Index: spec.Index, Title: spec.Title, Prose: prose}
		state.Chapters = append(state.Chapters, written)
		if d.sink != nil {
			if err := d.sink.AppendChapter(written); err != nil {
				return fmt.Errorf("failed to save chapter %d: %w", spec.Index, err)
			}
		}

		if i == last {
			continue
		}
		log.Info("updating story so far")
		past, err := d.generate(ctx, d.summary, summary.PastKey, summary.PastData{
			PastSummary: state.PastSummary,
			Chapter:     prose,
		})
		if err != nil {
			return err
		}
		state.PastSummary = past
	}
	return nil
}

func (d *Driver) generate(ctx context.Context, b plan.Backend, key string, data any) (string, error) {
	prompt, err := d.prompts.Render(key, data)
	if err != nil {
		return "", err
	}
	out, err := b.Generate(ctx, key, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", userCancelled(err)
		}
		return "", err
	}
	return out, nil
}

// userCancelled tags err as an interrupt so callers can tell it apart from
// a failure.
func userCancelled(err error) error {
	if errors.Is(err, plan.ErrUserCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", plan.ErrUserCancelled, err)
}

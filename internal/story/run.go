package story

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/quill/internal/plan"
)

// Backends holds the backend for each pipeline role.
type Backends struct {
	Plan    plan.Backend
	Summary plan.Backend
	Prose   plan.Backend
}

// Options controls a run.
type Options struct {
	Chapters     int
	MaxRetries   int
	SkipSynopsis bool // use the premise as the synopsis
	PlanOnly     bool // stop after the plan snapshot
	EPUB         bool
	Title        string
	Author       string
}

// Result summarizes a finished run.
type Result struct {
	Synopsis string
	Plan     *plan.ChapterPlan
	Chapters []GeneratedChapter
	Attempts int
	Files    []string
}

// Runner executes the whole pipeline for one session.
type Runner struct {
	Backends Backends
	Prompts  plan.PromptRenderer
	Writer   *Writer
	Options  Options
	Logger   *slog.Logger
}

// Run turns premise into a story. Artifacts written before an error are
// left in place.
func (r *Runner) Run(ctx context.Context, premise string) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	premise = strings.TrimSpace(premise)
	if premise == "" {
		return nil, fmt.Errorf("premise is empty")
	}

	res := &Result{Synopsis: premise}
	if !r.Options.SkipSynopsis {
		logger.Info("expanding premise into synopsis")
		syn, err := Synopsize(ctx, r.Backends.Plan, r.Prompts, premise)
		if err != nil {
			return res, fmt.Errorf("synopsis: %w", err)
		}
		res.Synopsis = syn
	}

	gen, err := plan.NewGenerator(plan.GeneratorConfig{
		Backend:    r.Backends.Plan,
		Prompts:    r.Prompts,
		Chapters:   r.Options.Chapters,
		MaxRetries: r.Options.MaxRetries,
		Logger:     logger,
	})
	if err != nil {
		return res, err
	}
	logger.Info("generating chapter plan", "chapters", r.Options.Chapters, "max_attempts", r.Options.MaxRetries)
	p, err := gen.Generate(ctx, res.Synopsis)
	res.Attempts = gen.Attempts()
	if err != nil {
		return res, fmt.Errorf("chapter plan: %w", err)
	}
	res.Plan = p

	if err := r.Writer.WritePlan(p); err != nil {
		return res, err
	}
	res.Files = append(res.Files, r.Writer.PlanPath())
	if r.Options.PlanOnly {
		return res, nil
	}

	driver, err := NewDriver(DriverConfig{
		Summary:  r.Backends.Summary,
		Prose:    r.Backends.Prose,
		Prompts:  r.Prompts,
		Synopsis: res.Synopsis,
		Sink:     r.Writer,
		Logger:   logger,
	})
	if err != nil {
		return res, err
	}
	state := NewNarrativeState()
	err = driver.Run(ctx, p, state)
	res.Chapters = state.Chapters
	if len(state.Chapters) > 0 {
		res.Files = append(res.Files, r.Writer.StoryPath())
	}
	if err != nil {
		return res, fmt.Errorf("chapters: %w", err)
	}

	if r.Options.EPUB && len(state.Chapters) > 0 {
		title := r.Options.Title
		if title == "" {
			title = state.Chapters[0].Title
		}
		if err := r.Writer.WriteEPUB(title, r.Options.Author, state.Chapters); err != nil {
			return res, err
		}
		res.Files = append(res.Files, r.Writer.EPUBPath())
	}

	logger.Info("story complete", "chapters", len(state.Chapters), "dir", r.Writer.Dir())
	return res, nil
}

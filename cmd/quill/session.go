package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/llmcall"
	"github.com/jackzampolin/quill/internal/plan"
	"github.com/jackzampolin/quill/internal/providers"
	"github.com/jackzampolin/quill/internal/roles"
	"github.com/jackzampolin/quill/internal/story"
)

// storyFlags are shared by write and plan.
type storyFlags struct {
	chapters     int
	maxRetries   int
	plot         string
	plotFile     string
	title        string
	provider     string
	skipSynopsis bool
}

func (f *storyFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.chapters, "chapters", 0, "number of chapters (default from config)")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", 0, "chapter plan attempt budget (default from config)")
	cmd.Flags().StringVar(&f.plot, "plot", "", "story premise")
	cmd.Flags().StringVar(&f.plotFile, "plot-file", "", "read the story premise from a file")
	cmd.Flags().StringVar(&f.title, "title", "", "story title used in the epub")
	cmd.Flags().StringVar(&f.provider, "provider", "", "use this llm_providers entry for every role (e.g. mock)")
	cmd.Flags().BoolVar(&f.skipSynopsis, "skip-synopsis", false, "use the premise as the synopsis")
}

// apply overlays explicitly set flags onto cfg.
func (f *storyFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("chapters") {
		cfg.Story.Chapters = f.chapters
	}
	if flags.Changed("max-retries") {
		cfg.Story.MaxRetries = f.maxRetries
	}
	if flags.Changed("plot") {
		cfg.Story.Plot = f.plot
		cfg.Story.PlotFile = ""
	}
	if flags.Changed("plot-file") {
		cfg.Story.PlotFile = f.plotFile
	}
	if flags.Changed("title") {
		cfg.Story.Title = f.title
	}
	if flags.Changed("skip-synopsis") {
		cfg.Story.SkipSynopsis = f.skipSynopsis
	}
	if f.provider != "" {
		for _, role := range config.Roles {
			rc := cfg.Roles[role]
			rc.Provider = f.provider
			rc.Model = ""
			cfg.Roles[role] = rc
		}
	}
}

// runSummary is printed when a run ends.
type runSummary struct {
	Session   string   `json:"session" yaml:"session"`
	Dir       string   `json:"dir" yaml:"dir"`
	Attempts  int      `json:"plan_attempts" yaml:"plan_attempts"`
	Chapters  int      `json:"chapters_written" yaml:"chapters_written"`
	Titles    []string `json:"titles,omitempty" yaml:"titles,omitempty"`
	Files     []string `json:"files" yaml:"files"`
	Status    string   `json:"status" yaml:"status"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	LastReply string   `json:"last_response,omitempty" yaml:"last_response,omitempty"`
}

// runStory wires config, providers, recording and the story runner for one
// session.
func runStory(cmd *cobra.Command, f *storyFlags, planOnly bool) error {
	ctx := cmd.Context()
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	cfg := e.config
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	premise, err := cfg.Premise()
	if err != nil {
		return err
	}

	regCfg := cfg.ToProviderRegistryConfig()
	regCfg.Logger = e.logger
	registry, err := providers.NewRegistryFromConfig(regCfg)
	if err != nil {
		return fmt.Errorf("failed to create provider registry: %w", err)
	}

	sessionID, err := e.home.NewSession(time.Now())
	if err != nil {
		return err
	}
	writer, err := story.NewWriter(e.home.SessionDir(sessionID))
	if err != nil {
		return err
	}
	logger := e.logger.With("session", sessionID)

	sinks := []llmcall.Sink{llmcall.NewTranscript(writer.TranscriptPath())}
	if cfg.Output.RecordCalls {
		store, err := llmcall.OpenStore(ctx, e.home.CallsDBPath(), logger)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}
	recorder := llmcall.NewRecorder(logger, sinks...)

	set, err := roles.NewSet(roles.SetConfig{
		Config:    cfg,
		Registry:  registry,
		Recorder:  recorder,
		SessionID: sessionID,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	promptsDir := cfg.Prompts.Dir
	if promptsDir == "" {
		promptsDir = e.home.PromptsDir()
	}
	runner := &story.Runner{
		Backends: story.Backends{
			Plan:    set[config.RolePlan],
			Summary: set[config.RoleSummary],
			Prose:   set[config.RoleProse],
		},
		Prompts: story.NewPromptResolver(promptsDir, logger),
		Writer:  writer,
		Options: story.Options{
			Chapters:     cfg.Story.Chapters,
			MaxRetries:   cfg.Story.MaxRetries,
			SkipSynopsis: cfg.Story.SkipSynopsis,
			PlanOnly:     planOnly,
			EPUB:         cfg.Output.EPUB,
			Title:        cfg.Story.Title,
			Author:       cfg.Story.Author,
		},
		Logger: logger,
	}

	logger.Info("starting story run", "dir", writer.Dir(), "chapters", cfg.Story.Chapters)
	res, runErr := runner.Run(ctx, premise)

	summary := summarize(sessionID, writer.Dir(), res, runErr)
	if err := e.printer.Print(summary); err != nil {
		return err
	}
	return runErr
}

func summarize(sessionID, dir string, res *story.Result, err error) runSummary {
	s := runSummary{Session: sessionID, Dir: dir, Status: "completed"}
	if res != nil {
		s.Attempts = res.Attempts
		s.Chapters = len(res.Chapters)
		s.Files = res.Files
		for _, ch := range res.Chapters {
			s.Titles = append(s.Titles, ch.Title)
		}
	}
	if err != nil {
		s.Status = "failed"
		if isCancelled(err) {
			s.Status = "interrupted"
		}
		s.Error = err.Error()
		var exhausted *plan.PlanGenerationExhaustedError
		if errors.As(err, &exhausted) {
			s.LastReply = exhausted.LastResponse
		}
	}
	return s
}

func isCancelled(err error) bool {
	return errors.Is(err, plan.ErrUserCancelled) || errors.Is(err, context.Canceled)
}

package story

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/llmcall"
	"github.com/jackzampolin/quill/internal/plan"
	"github.com/jackzampolin/quill/internal/prompts/outline"
	"github.com/jackzampolin/quill/internal/providers"
	"github.com/jackzampolin/quill/internal/roles"
)

func mockBackends(client providers.LLMClient, rec *llmcall.Recorder) Backends {
	backend := func(role string) *roles.Backend {
		return &roles.Backend{Role: role, Client: client, Model: "mock", Recorder: rec, SessionID: "test"}
	}
	return Backends{
		Plan:    backend(config.RolePlan),
		Summary: backend(config.RoleSummary),
		Prose:   backend(config.RoleProse),
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	client := providers.NewMockClient()
	rec := llmcall.NewRecorder(nil, llmcall.NewTranscript(w.TranscriptPath()))

	r := &Runner{
		Backends: mockBackends(client, rec),
		Prompts:  NewPromptResolver("", nil),
		Writer:   w,
		Options:  Options{Chapters: 3, MaxRetries: 2, EPUB: true, Author: "quill"},
	}
	res, err := r.Run(context.Background(), "A lighthouse keeper finds a door in the sea.")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Plan.Len() != 3 || len(res.Chapters) != 3 {
		t.Fatalf("expected 3 planned and written chapters, got %d and %d", res.Plan.Len(), len(res.Chapters))
	}
	if res.Attempts != 1 {
		t.Errorf("expected plan on first attempt, got %d", res.Attempts)
	}
	if res.Synopsis == "A lighthouse keeper finds a door in the sea." {
		t.Error("synopsis should come from the plan backend")
	}

	// synopsis + plan + 3 prose + 2 future + 2 past
	if got := client.RequestCount(); got != 9 {
		t.Errorf("expected 9 LLM calls, got %d", got)
	}

	for _, name := range []string{"chapters.json", "story.txt", "story.epub", "transcript.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
	if len(res.Files) != 3 {
		t.Errorf("expected plan, story and epub in result files, got %v", res.Files)
	}

	story, _ := os.ReadFile(w.StoryPath())
	if !strings.HasPrefix(string(story), "\n\nChapter 1\n\n") {
		t.Errorf("unexpected story start: %q", story)
	}
	transcript, _ := os.ReadFile(w.TranscriptPath())
	if got := strings.Count(string(transcript), " PROMPT "); got != 9 {
		t.Errorf("expected 9 transcript entries, got %d", got)
	}
}

func TestRunner_PlanOnly(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := providers.NewMockClient()
	r := &Runner{
		Backends: mockBackends(client, nil),
		Prompts:  NewPromptResolver("", nil),
		Writer:   w,
		Options:  Options{Chapters: 4, MaxRetries: 1, SkipSynopsis: true, PlanOnly: true},
	}
	res, err := r.Run(context.Background(), "premise")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Plan.Len() != 4 || len(res.Chapters) != 0 {
		t.Errorf("expected plan only, got %d planned and %d written", res.Plan.Len(), len(res.Chapters))
	}
	if res.Synopsis != "premise" {
		t.Errorf("skipped synopsis should use the premise, got %q", res.Synopsis)
	}
	if client.RequestCount() != 1 {
		t.Errorf("expected only the plan call, got %d", client.RequestCount())
	}
	if _, err := os.Stat(w.StoryPath()); !os.IsNotExist(err) {
		t.Error("plan-only run must not write a story")
	}
}

func TestRunner_PlanExhaustion(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := &providers.MockClient{Respond: func(req *providers.ChatRequest) (string, error) {
		return `{"chapters": []}`, nil
	}}
	r := &Runner{
		Backends: mockBackends(client, nil),
		Prompts:  NewPromptResolver("", nil),
		Writer:   w,
		Options:  Options{Chapters: 2, MaxRetries: 3, SkipSynopsis: true},
	}
	res, err := r.Run(context.Background(), "premise")

	var exhausted *plan.PlanGenerationExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if res.Attempts != 3 || client.RequestCount() != 3 {
		t.Errorf("expected 3 attempts, got %d (%d calls)", res.Attempts, client.RequestCount())
	}
	if _, err := os.Stat(w.PlanPath()); !os.IsNotExist(err) {
		t.Error("no plan snapshot should be written")
	}
}

func TestRunner_StrictRetryRecovers(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	client := &providers.MockClient{Respond: func(req *providers.ChatRequest) (string, error) {
		prompt := req.Messages[0].Content
		if strings.Contains(prompt, "FORMATTING RULES") {
			keys = append(keys, outline.StrictKey)
			return providers.DemoResponder(req)
		}
		keys = append(keys, outline.RequestKey)
		return "Sure! Here you go: {\"chapters\": [ ...", nil
	}}
	r := &Runner{
		Backends: mockBackends(client, nil),
		Prompts:  NewPromptResolver("", nil),
		Writer:   w,
		Options:  Options{Chapters: 2, MaxRetries: 5, SkipSynopsis: true, PlanOnly: true},
	}
	res, err := r.Run(context.Background(), "premise")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Attempts != 2 || strings.Join(keys, ",") != outline.RequestKey+","+outline.StrictKey {
		t.Errorf("expected one strict retry, got %v", keys)
	}
}

func TestRunner_EmptyPremise(t *testing.T) {
	w, _ := NewWriter(t.TempDir())
	r := &Runner{Prompts: NewPromptResolver("", nil), Writer: w}
	if _, err := r.Run(context.Background(), "   "); err == nil {
		t.Error("expected error for empty premise")
	}
}

package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/quill/internal/plan"
	"github.com/jackzampolin/quill/internal/prompts/chapter"
	"github.com/jackzampolin/quill/internal/prompts/summary"
)

type request struct {
	key    string
	prompt string
}

// stubBackend answers deterministically per prompt key and logs every request.
type stubBackend struct {
	counts   map[string]int
	requests []request
	failOn   string
	failErr  error
	onCall   func(key string)
}

func newStub() *stubBackend {
	return &stubBackend{counts: make(map[string]int)}
}

func (b *stubBackend) Generate(_ context.Context, key, prompt string) (string, error) {
	b.requests = append(b.requests, request{key: key, prompt: prompt})
	b.counts[key]++
	if b.onCall != nil {
		b.onCall(key)
	}
	if key == b.failOn {
		return "", b.failErr
	}
	switch key {
	case summary.FutureKey:
		return fmt.Sprintf("FUTURE-%d", b.counts[key]), nil
	case summary.PastKey:
		return fmt.Sprintf("PAST-%d", b.counts[key]), nil
	case chapter.WriteKey:
		return fmt.Sprintf("PROSE-%d", b.counts[key]), nil
	}
	return "OTHER", nil
}

func (b *stubBackend) byKey(key string) []request {
	var out []request
	for _, r := range b.requests {
		if r.key == key {
			out = append(out, r)
		}
	}
	return out
}

type memorySink struct {
	chapters []GeneratedChapter
	err      error
}

func (s *memorySink) AppendChapter(ch GeneratedChapter) error {
	if s.err != nil {
		return s.err
	}
	s.chapters = append(s.chapters, ch)
	return nil
}

func testPlan(n int) *plan.ChapterPlan {
	p := &plan.ChapterPlan{}
	for i := 1; i <= n; i++ {
		p.Chapters = append(p.Chapters, plan.ChapterSpec{
			Index:  i,
			Title:  string(rune('A' + i - 1)),
			Prompt: fmt.Sprintf("p%d", i),
		})
	}
	return p
}

func newTestDriver(t *testing.T, b *stubBackend, sink ChapterSink) *Driver {
	t.Helper()
	d, err := NewDriver(DriverConfig{
		Summary:  b,
		Prose:    b,
		Prompts:  NewPromptResolver("", nil),
		Synopsis: "THE SYNOPSIS",
		Sink:     sink,
	})
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}
	return d
}

func TestDriver_TenChapterScenario(t *testing.T) {
	b := newStub()
	sink := &memorySink{}
	state := NewNarrativeState()

	if err := newTestDriver(t, b, sink).Run(context.Background(), testPlan(10), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	future := b.byKey(summary.FutureKey)
	writes := b.byKey(chapter.WriteKey)
	pasts := b.byKey(summary.PastKey)
	if len(future) != 9 || len(writes) != 10 || len(pasts) != 9 {
		t.Fatalf("expected 9/10/9 future/write/past calls, got %d/%d/%d", len(future), len(writes), len(pasts))
	}

	if !strings.Contains(future[0].prompt, "p2 p3 p4 p5 p6 p7 p8 p9 p10") {
		t.Errorf("chapter 1 lookahead should cover p2..p10: %q", future[0].prompt)
	}
	if strings.Contains(future[0].prompt, "p1 ") {
		t.Error("lookahead must not include the current chapter")
	}
	if !strings.Contains(future[8].prompt, "p10") || strings.Contains(future[8].prompt, "p9") {
		t.Errorf("chapter 9 lookahead should cover only p10: %q", future[8].prompt)
	}

	if !strings.Contains(writes[0].prompt, "FUTURE_CHAPTERS: FUTURE-1") {
		t.Error("chapter 1 should use its lookahead summary")
	}
	if !strings.Contains(writes[9].prompt, "FUTURE_CHAPTERS: "+FinalLookahead) {
		t.Errorf("last chapter should use the final sentinel: %q", writes[9].prompt)
	}
	for i, w := range writes {
		if !strings.Contains(w.prompt, fmt.Sprintf("CHAPTER_TITLE: %c", 'A'+i)) ||
			!strings.Contains(w.prompt, fmt.Sprintf("THIS_CHAPTER_BLUEPRINT: p%d", i+1)) {
			t.Errorf("chapter %d request missing title or blueprint", i+1)
		}
		if !strings.Contains(w.prompt, "THE SYNOPSIS") {
			t.Errorf("chapter %d request missing synopsis", i+1)
		}
		if !strings.Contains(w.prompt, "show don't tell") {
			t.Errorf("chapter %d request missing style directive", i+1)
		}
	}

	if len(state.Chapters) != 10 || len(sink.chapters) != 10 {
		t.Fatalf("expected 10 chapters in state and sink, got %d and %d", len(state.Chapters), len(sink.chapters))
	}
	for i, ch := range state.Chapters {
		if ch.Index != i+1 || ch.Prose != fmt.Sprintf("PROSE-%d", i+1) {
			t.Errorf("chapter %d out of order: %+v", i+1, ch)
		}
	}
	if state.PastSummary != "PAST-9" {
		t.Errorf("final chapter must not update the past summary, got %q", state.PastSummary)
	}
}

func TestDriver_PastSummaryOrdering(t *testing.T) {
	b := newStub()
	state := NewNarrativeState()

	if err := newTestDriver(t, b, nil).Run(context.Background(), testPlan(4), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writes := b.byKey(chapter.WriteKey)
	pasts := b.byKey(summary.PastKey)

	if !strings.Contains(writes[0].prompt, "STORY_SO_FAR: "+InitialPastSummary) {
		t.Error("chapter 1 should start from the initial past summary")
	}
	for i := 1; i < len(writes); i++ {
		want := fmt.Sprintf("STORY_SO_FAR: PAST-%d\n", i)
		if !strings.Contains(writes[i].prompt, want) {
			t.Errorf("chapter %d should see %q", i+1, want)
		}
	}

	for i, p := range pasts {
		if !strings.Contains(p.prompt, fmt.Sprintf("New chapter: PROSE-%d", i+1)) {
			t.Errorf("past summary %d should fold in chapter %d prose", i+1, i+1)
		}
		prev := InitialPastSummary
		if i > 0 {
			prev = fmt.Sprintf("PAST-%d", i)
		}
		if !strings.Contains(p.prompt, "The story so far: "+prev) {
			t.Errorf("past summary %d should build on %q", i+1, prev)
		}
	}

	// Every call for chapter i happens before any call for chapter i+1.
	var order []string
	for _, r := range b.requests {
		order = append(order, r.key)
	}
	want := []string{
		summary.FutureKey, chapter.WriteKey, summary.PastKey,
		summary.FutureKey, chapter.WriteKey, summary.PastKey,
		summary.FutureKey, chapter.WriteKey, summary.PastKey,
		chapter.WriteKey,
	}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected call order:\n got %v\nwant %v", order, want)
	}
}

func TestDriver_SkipsBlankChapters(t *testing.T) {
	p := testPlan(3)
	p.Chapters[1].Title = "  "

	b := newStub()
	sink := &memorySink{}
	state := NewNarrativeState()
	if err := newTestDriver(t, b, sink).Run(context.Background(), p, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(state.Chapters) != 2 || len(sink.chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(state.Chapters))
	}
	if state.Chapters[0].Index != 1 || state.Chapters[1].Index != 3 {
		t.Errorf("unexpected chapters %+v", state.Chapters)
	}
	for _, r := range b.requests {
		if strings.Contains(r.prompt, "THIS_CHAPTER_BLUEPRINT: p2") {
			t.Error("blank chapter must not be written")
		}
	}
	if got := len(b.byKey(summary.PastKey)); got != 1 {
		t.Errorf("expected 1 past summary, got %d", got)
	}
	writes := b.byKey(chapter.WriteKey)
	if !strings.Contains(writes[1].prompt, "STORY_SO_FAR: PAST-1") {
		t.Error("chapter 3 should continue from chapter 1's summary")
	}
}

func TestDriver_SingleChapter(t *testing.T) {
	b := newStub()
	state := NewNarrativeState()
	if err := newTestDriver(t, b, nil).Run(context.Background(), testPlan(1), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.requests) != 1 || b.requests[0].key != chapter.WriteKey {
		t.Errorf("expected a single prose call, got %+v", b.requests)
	}
	if state.PastSummary != InitialPastSummary {
		t.Error("past summary should be untouched")
	}
}

func TestDriver_Errors(t *testing.T) {
	t.Run("backend error propagates unchanged", func(t *testing.T) {
		boom := errors.New("backend down")
		b := newStub()
		b.failOn = chapter.WriteKey
		b.failErr = boom
		state := NewNarrativeState()

		err := newTestDriver(t, b, nil).Run(context.Background(), testPlan(3), state)
		if err != boom {
			t.Fatalf("expected backend error, got %v", err)
		}
		if len(state.Chapters) != 0 {
			t.Error("no chapter should be recorded")
		}
	})

	t.Run("cancellation aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		b := newStub()
		b.onCall = func(key string) {
			if key == summary.PastKey {
				cancel()
			}
		}
		sink := &memorySink{}
		state := NewNarrativeState()

		err := newTestDriver(t, b, sink).Run(ctx, testPlan(3), state)
		if !errors.Is(err, plan.ErrUserCancelled) {
			t.Fatalf("expected ErrUserCancelled, got %v", err)
		}
		if len(sink.chapters) != 1 {
			t.Errorf("only the completed chapter should be saved, got %d", len(sink.chapters))
		}
		if got := len(b.byKey(chapter.WriteKey)); got != 1 {
			t.Errorf("expected no prose after cancellation, got %d calls", got)
		}
	})

	t.Run("sink error stops the run", func(t *testing.T) {
		b := newStub()
		err := newTestDriver(t, b, &memorySink{err: errors.New("disk full")}).
			Run(context.Background(), testPlan(2), NewNarrativeState())
		if err == nil || !strings.Contains(err.Error(), "disk full") {
			t.Fatalf("expected sink error, got %v", err)
		}
	})
}

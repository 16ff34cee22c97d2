package story

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackzampolin/quill/internal/epub"
	"github.com/jackzampolin/quill/internal/home"
	"github.com/jackzampolin/quill/internal/plan"
)

// Writer persists a session's artifacts. Every write leaves the files in a
// consistent state: the plan is replaced atomically and the story grows one
// complete chapter at a time.
type Writer struct {
	dir string
}

// NewWriter creates the session directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the session directory.
func (w *Writer) Dir() string { return w.dir }

// PlanPath returns the chapter plan snapshot path.
func (w *Writer) PlanPath() string { return filepath.Join(w.dir, home.ChaptersFile) }

// StoryPath returns the plain-text story path.
func (w *Writer) StoryPath() string { return filepath.Join(w.dir, home.StoryFile) }

// EPUBPath returns the ePub path.
func (w *Writer) EPUBPath() string { return filepath.Join(w.dir, home.EPUBFile) }

// TranscriptPath returns the session transcript path.
func (w *Writer) TranscriptPath() string { return filepath.Join(w.dir, home.TranscriptFile) }

// WritePlan snapshots the accepted chapter list.
func (w *Writer) WritePlan(p *plan.ChapterPlan) error {
	chapters := p.Chapters
	if chapters == nil {
		chapters = []plan.ChapterSpec{}
	}
	data, err := json.MarshalIndent(chapters, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode chapter plan: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, ".chapters-*.json")
	if err != nil {
		return fmt.Errorf("failed to create plan file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync plan file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close plan file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.PlanPath()); err != nil {
		return fmt.Errorf("failed to save plan file: %w", err)
	}
	return nil
}

// AppendChapter adds one chapter to the story text in a single write. It
// implements ChapterSink.
func (w *Writer) AppendChapter(ch GeneratedChapter) error {
	f, err := os.OpenFile(w.StoryPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open story file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "\n\n%s\n\n%s", ch.Title, ch.Prose); err != nil {
		f.Close()
		return fmt.Errorf("failed to append chapter: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync story file: %w", err)
	}
	return f.Close()
}

// WriteEPUB builds an ePub from the finished chapters.
func (w *Writer) WriteEPUB(title, author string, chapters []GeneratedChapter) error {
	eps := make([]epub.Chapter, 0, len(chapters))
	for i, ch := range chapters {
		eps = append(eps, epub.Chapter{
			ID:     fmt.Sprintf("ch_%03d", i+1),
			Number: i + 1,
			Title:  ch.Title,
			Text:   ch.Prose,
		})
	}
	book := epub.Book{
		Title:     title,
		Author:    author,
		Language:  "en",
		CreatedAt: time.Now(),
	}
	if err := epub.NewBuilder(book, eps).Build(w.EPUBPath()); err != nil {
		return fmt.Errorf("failed to build epub: %w", err)
	}
	return nil
}

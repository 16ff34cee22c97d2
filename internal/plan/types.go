package plan

import "strings"

// DefaultChapters is the chapter count used when none is configured.
const DefaultChapters = 10

// DefaultMaxRetries bounds plan generation attempts when none is configured.
const DefaultMaxRetries = 20

// ChapterSpec is the blueprint for a single chapter.
type ChapterSpec struct {
	// Index is the 1-based position in the plan.
	Index  int    `json:"chapter" yaml:"chapter"`
	Title  string `json:"title" yaml:"title"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// Blank reports whether the chapter lacks a title or a prompt.
func (c ChapterSpec) Blank() bool {
	return strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Prompt) == ""
}

// ChapterPlan is an accepted, ordered list of chapter blueprints.
type ChapterPlan struct {
	Chapters []ChapterSpec `json:"chapters" yaml:"chapters"`
}

// Len returns the number of chapters.
func (p *ChapterPlan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Chapters)
}

// PromptsAfter returns the prompts of every chapter after position i, in order.
func (p *ChapterPlan) PromptsAfter(i int) []string {
	if p == nil || i+1 >= len(p.Chapters) {
		return nil
	}
	out := make([]string, 0, len(p.Chapters)-i-1)
	for _, ch := range p.Chapters[i+1:] {
		out = append(out, ch.Prompt)
	}
	return out
}

package story

import (
	"log/slog"

	"github.com/jackzampolin/quill/internal/prompts"
	"github.com/jackzampolin/quill/internal/prompts/chapter"
	"github.com/jackzampolin/quill/internal/prompts/outline"
	"github.com/jackzampolin/quill/internal/prompts/summary"
	"github.com/jackzampolin/quill/internal/prompts/synopsis"
)

// NewPromptResolver returns a resolver with every stage prompt registered.
// overrideDir may be empty.
func NewPromptResolver(overrideDir string, logger *slog.Logger) *prompts.Resolver {
	r := prompts.NewResolver(overrideDir, logger)
	synopsis.RegisterPrompts(r)
	outline.RegisterPrompts(r)
	chapter.RegisterPrompts(r)
	summary.RegisterPrompts(r)
	return r
}

package summary

import (
	_ "embed"

	"github.com/jackzampolin/quill/internal/prompts"
)

//go:embed future.tmpl
var futurePrompt string

//go:embed past.tmpl
var pastPrompt string

// Prompt keys
const (
	FutureKey = "stages.summary.future"
	PastKey   = "stages.summary.past"
)

// FutureData is the template input for FutureKey. Prompts holds the
// space-joined blueprints of every remaining chapter.
type FutureData struct {
	Prompts string
}

// PastData is the template input for PastKey.
type PastData struct {
	PastSummary string
	Chapter     string
}

// RegisterPrompts registers the summary prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         FutureKey,
		Text:        futurePrompt,
		Description: "Lookahead summary of the chapters still to be written",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         PastKey,
		Text:        pastPrompt,
		Description: "Rolling story-so-far summary updated after each chapter",
	})
}

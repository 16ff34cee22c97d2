package synopsis

import (
	_ "embed"

	"github.com/jackzampolin/quill/internal/prompts"
)

//go:embed expand.tmpl
var expandPrompt string

// ExpandKey is the prompt that grows a premise into a synopsis.
const ExpandKey = "stages.synopsis.expand"

// ExpandData is the template input for ExpandKey.
type ExpandData struct {
	Premise string
}

// RegisterPrompts registers the synopsis prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         ExpandKey,
		Text:        expandPrompt,
		Description: "Expands a short premise into a one-paragraph synopsis",
	})
}

package outline

import (
	_ "embed"

	"github.com/jackzampolin/quill/internal/prompts"
)

//go:embed request.tmpl
var requestPrompt string

//go:embed strict.tmpl
var strictPrompt string

// Prompt keys
const (
	RequestKey = "stages.outline.request"
	StrictKey  = "stages.outline.strict"
)

// RequestData is the template input for RequestKey.
type RequestData struct {
	Synopsis string
	Chapters int
}

// StrictData is the template input for StrictKey. Request is the rendered
// first-attempt prompt.
type StrictData struct {
	Request        string
	Chapters       int
	Schema         string
	Issue          string
	PreviousOutput string
}

// RegisterPrompts registers the chapter plan prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         RequestKey,
		Text:        requestPrompt,
		Description: "Chapter plan request - splits the synopsis into chapter blueprints as JSON",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         StrictKey,
		Text:        strictPrompt,
		Description: "Chapter plan retry - re-embeds the request with explicit JSON formatting rules",
	})
}

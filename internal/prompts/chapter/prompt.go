package chapter

import (
	_ "embed"

	"github.com/jackzampolin/quill/internal/prompts"
)

//go:embed style.tmpl
var stylePrompt string

//go:embed write.tmpl
var writePrompt string

// Prompt keys
const (
	StyleKey = "stages.chapter.style"
	WriteKey = "stages.chapter.write"
)

// WriteData is the template input for WriteKey. Style is the rendered
// StyleKey text.
type WriteData struct {
	Style       string
	Synopsis    string
	Lookahead   string
	PastSummary string
	Title       string
	Blueprint   string
}

// RegisterPrompts registers the chapter prose prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         StyleKey,
		Text:        stylePrompt,
		Description: "Prose style directive prepended to every chapter request",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         WriteKey,
		Text:        writePrompt,
		Description: "Chapter prose request - style, lookahead, story so far and blueprint",
	})
}

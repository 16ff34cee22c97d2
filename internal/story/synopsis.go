package story

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackzampolin/quill/internal/plan"
	"github.com/jackzampolin/quill/internal/prompts/synopsis"
)

// Synopsize expands a short premise into a one-paragraph synopsis.
func Synopsize(ctx context.Context, b plan.Backend, r plan.PromptRenderer, premise string) (string, error) {
	prompt, err := r.Render(synopsis.ExpandKey, synopsis.ExpandData{Premise: premise})
	if err != nil {
		return "", err
	}
	out, err := b.Generate(ctx, synopsis.ExpandKey, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", userCancelled(err)
		}
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("synopsis response was empty")
	}
	return out, nil
}

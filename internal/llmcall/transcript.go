package llmcall

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

var (
	promptBanner   = "\n" + strings.Repeat("=", 20) + " PROMPT " + strings.Repeat("=", 20) + "\n"
	responseBanner = "\n" + strings.Repeat("=", 20) + " RESPONSE " + strings.Repeat("=", 20) + "\n"
)

// Transcript appends every prompt and response of a session to a text file.
type Transcript struct {
	mu   sync.Mutex
	path string
}

// NewTranscript creates a transcript that appends to path.
func NewTranscript(path string) *Transcript {
	return &Transcript{path: path}
}

// Path returns the transcript file path.
func (t *Transcript) Path() string { return t.path }

// Write appends call as a PROMPT/RESPONSE block. Failed calls record the error
// in place of the response.
func (t *Transcript) Write(_ context.Context, call *Call) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString(promptBanner)
	b.WriteString(call.Prompt)
	b.WriteString(responseBanner)
	if call.Success {
		b.WriteString(call.Response)
	} else {
		fmt.Fprintf(&b, "[error] %s", call.Error)
	}
	b.WriteString("\n")

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return nil
}

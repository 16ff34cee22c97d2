package llmcall

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/quill/internal/providers"
)

// Sink persists recorded calls.
type Sink interface {
	Write(ctx context.Context, call *Call) error
}

// Recorder fans each call out to its sinks. Sink failures are logged and
// never interrupt generation.
type Recorder struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRecorder creates a new LLM call recorder. Nil sinks are ignored.
func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{logger: logger}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// Record builds a Call from result and writes it to every sink.
func (r *Recorder) Record(ctx context.Context, result *providers.ChatResult, opts RecordOptions) *Call {
	call := FromChatResult(result, opts)
	r.RecordCall(ctx, call)
	return call
}

// RecordCall writes an already-constructed Call to every sink.
func (r *Recorder) RecordCall(ctx context.Context, call *Call) {
	if r == nil || call == nil {
		return
	}
	// Recording outlives a cancelled run so the transcript shows the last call.
	ctx = context.WithoutCancel(ctx)
	for _, s := range r.sinks {
		if err := s.Write(ctx, call); err != nil {
			r.logger.Warn("failed to record LLM call",
				"call_id", call.ID,
				"prompt_key", call.PromptKey,
				"error", err)
		}
	}
}

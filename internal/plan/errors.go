package plan

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUserCancelled is returned when plan generation is interrupted by the
// caller. It is never retried.
var ErrUserCancelled = errors.New("cancelled by user")

// MalformedStructureError means no parseable JSON object could be recovered
// from the model response.
type MalformedStructureError struct {
	Candidate string
	Err       error
}

func (e *MalformedStructureError) Error() string {
	if e.Candidate == "" {
		return "malformed chapter plan: no JSON object in response"
	}
	return fmt.Sprintf("malformed chapter plan: %v", e.Err)
}

func (e *MalformedStructureError) Unwrap() error { return e.Err }

// SchemaViolationError means the response parsed but does not satisfy the
// chapter plan contract. Chapter is empty for container-level violations
// such as a wrong chapter count.
type SchemaViolationError struct {
	Chapter string
	Field   string
	Reason  string
}

func (e *SchemaViolationError) Error() string {
	var b strings.Builder
	b.WriteString("chapter plan schema violation")
	if e.Chapter != "" {
		fmt.Fprintf(&b, " in chapter %s", e.Chapter)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// PlanGenerationExhaustedError is returned after every allowed attempt
// produced a structurally invalid plan.
type PlanGenerationExhaustedError struct {
	Attempts     int
	LastResponse string
	LastErr      error
}

func (e *PlanGenerationExhaustedError) Error() string {
	return fmt.Sprintf("chapter plan generation failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *PlanGenerationExhaustedError) Unwrap() error { return e.LastErr }

// IsRecoverable reports whether err is a structural failure that warrants
// another attempt with a stricter prompt.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var exhausted *PlanGenerationExhaustedError
	if errors.As(err, &exhausted) {
		return false
	}
	var malformed *MalformedStructureError
	if errors.As(err, &malformed) {
		return true
	}
	var violation *SchemaViolationError
	return errors.As(err, &violation)
}

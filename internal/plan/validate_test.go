package plan

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// planJSON builds a plan document with n chapters titled A, B, C...
func planJSON(n int) string {
	var b strings.Builder
	b.WriteString(`{"chapters":[`)
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"chapter":%d,"title":"%c","prompt":"p%d"}`, i, 'A'+i-1, i)
	}
	b.WriteString(`]}`)
	return b.String()
}

func mustValidator(t *testing.T, n int) *Validator {
	t.Helper()
	v, err := NewValidator(n)
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}
	return v
}

func TestValidator_Accepts(t *testing.T) {
	v := mustValidator(t, 10)

	p, err := v.Validate(planJSON(10))
	if err != nil {
		t.Fatalf("expected valid plan, got %v", err)
	}
	if p.Len() != 10 {
		t.Fatalf("expected 10 chapters, got %d", p.Len())
	}
	for i, ch := range p.Chapters {
		if ch.Index != i+1 {
			t.Errorf("chapter %d: expected index %d, got %d", i, i+1, ch.Index)
		}
		if ch.Title == "" || ch.Prompt == "" {
			t.Errorf("chapter %d has empty fields: %+v", i, ch)
		}
	}
	if p.Chapters[0].Title != "A" || p.Chapters[9].Prompt != "p10" {
		t.Errorf("unexpected chapter content: %+v", p.Chapters)
	}
}

func TestValidator_AcceptsWrappedOutput(t *testing.T) {
	v := mustValidator(t, 2)

	tests := map[string]string{
		"prose wrapper": "Here you go:\n" + planJSON(2) + "\nEnjoy!",
		"code fence":    "```json\n" + planJSON(2) + "\n```",
		"trailing brace in commentary": planJSON(2) + "\n(use {} for empty objects)",
		"unchecked index values": `{"chapters":[{"chapter":"one","title":"A","prompt":"p"},` +
			`{"chapter":7,"title":"B","prompt":"q"}]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := v.Validate(raw)
			if err != nil {
				t.Fatalf("expected valid plan, got %v", err)
			}
			if p.Chapters[1].Index != 2 {
				t.Errorf("expected positional index 2, got %d", p.Chapters[1].Index)
			}
		})
	}
}

func TestValidator_Malformed(t *testing.T) {
	v := mustValidator(t, 2)

	tests := map[string]string{
		"no braces":      "I cannot write that.",
		"trailing comma": `{"chapters":[{"chapter":1,"title":"A","prompt":"p",}]}`,
		"unbalanced":     `{"chapters":[{"chapter":1,"title":"A","prompt":"p"}`,
		"commentary":     `{"chapters": [] // none yet }`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(raw)
			var malformed *MalformedStructureError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedStructureError, got %v", err)
			}
			if !IsRecoverable(err) {
				t.Error("malformed output must be recoverable")
			}
		})
	}
}

func TestValidator_SchemaViolations(t *testing.T) {
	v := mustValidator(t, 10)

	tests := []struct {
		name        string
		raw         string
		wantChapter string
		wantField   string
	}{
		{
			name: "nine chapters wrapped in prose",
			raw:  "Sure! Here's your JSON: " + planJSON(9) + "\nHope that helps!",
		},
		{
			name: "eleven chapters",
			raw:  planJSON(11),
		},
		{
			name:        "non-string prompt",
			raw:         strings.Replace(planJSON(10), `"prompt":"p3"`, `"prompt":123`, 1),
			wantChapter: "3",
			wantField:   "prompt",
		},
		{
			name:        "missing title",
			raw:         strings.Replace(planJSON(10), `"title":"E",`, ``, 1),
			wantChapter: "5",
		},
		{
			name:        "empty title",
			raw:         strings.Replace(planJSON(10), `"title":"B"`, `"title":"  "`, 1),
			wantChapter: "2",
			wantField:   "title",
		},
		{
			name:        "missing chapter key",
			raw:         strings.Replace(planJSON(10), `"chapter":4,`, ``, 1),
			wantChapter: "#4",
		},
		{
			name: "chapters not an array",
			raw:  `{"chapters":"soon"}`,
		},
		{
			name: "missing chapters key",
			raw:  `{"chapter_list":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.raw)
			var violation *SchemaViolationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected SchemaViolationError, got %v", err)
			}
			if !IsRecoverable(err) {
				t.Error("schema violations must be recoverable")
			}
			if tt.wantChapter != "" && violation.Chapter != tt.wantChapter {
				t.Errorf("expected chapter %q, got %q (%v)", tt.wantChapter, violation.Chapter, err)
			}
			if tt.wantField != "" && violation.Field != tt.wantField {
				t.Errorf("expected field %q, got %q (%v)", tt.wantField, violation.Field, err)
			}
		})
	}
}

func TestValidator_CountMustMatchExactly(t *testing.T) {
	for _, n := range []int{1, 3, 10} {
		v := mustValidator(t, n)
		for _, got := range []int{0, n - 1, n + 1} {
			if got < 0 {
				continue
			}
			t.Run(fmt.Sprintf("want %d got %d", n, got), func(t *testing.T) {
				_, err := v.Validate(planJSON(got))
				var violation *SchemaViolationError
				if !errors.As(err, &violation) {
					t.Fatalf("expected SchemaViolationError, got %v", err)
				}
			})
		}
	}
}

func TestNewValidator_RejectsNonPositive(t *testing.T) {
	if _, err := NewValidator(0); err == nil {
		t.Error("expected error for zero chapters")
	}
}

func TestValidator_SchemaJSON(t *testing.T) {
	v := mustValidator(t, 4)
	s := v.SchemaJSON()
	if !strings.Contains(s, `"minItems": 4`) || !strings.Contains(s, `"maxItems": 4`) {
		t.Errorf("schema should pin the chapter count: %s", s)
	}
}

func TestSchemaViolationError_Error(t *testing.T) {
	err := &SchemaViolationError{Chapter: "3", Field: "prompt", Reason: "expected string"}
	want := `chapter plan schema violation in chapter 3 (field "prompt"): expected string`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"malformed", &MalformedStructureError{}, true},
		{"violation", &SchemaViolationError{}, true},
		{"wrapped violation", fmt.Errorf("outer: %w", &SchemaViolationError{}), true},
		{"other", errors.New("boom"), false},
		{"cancelled", ErrUserCancelled, false},
		{"exhausted", &PlanGenerationExhaustedError{LastErr: &SchemaViolationError{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable = %v, want %v", got, tt.want)
			}
		})
	}
}

package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks raw model output against the chapter plan contract.
type Validator struct {
	chapters   int
	schema     *jsonschema.Schema
	schemaJSON []byte
}

// NewValidator compiles the chapter plan schema for exactly n chapters.
func NewValidator(n int) (*Validator, error) {
	if n < 1 {
		return nil, fmt.Errorf("chapter count must be positive, got %d", n)
	}

	raw, err := json.MarshalIndent(Schema(n), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize chapter plan schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("chapter_plan.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load chapter plan schema: %w", err)
	}
	schema, err := compiler.Compile("chapter_plan.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile chapter plan schema: %w", err)
	}

	return &Validator{chapters: n, schema: schema, schemaJSON: raw}, nil
}

// Chapters returns the required chapter count.
func (v *Validator) Chapters() int { return v.chapters }

// SchemaJSON returns the indented schema document, for embedding in prompts.
func (v *Validator) SchemaJSON() string { return string(v.schemaJSON) }

// Validate extracts, parses and checks a chapter plan from raw model output.
// Failures are *MalformedStructureError or *SchemaViolationError.
func (v *Validator) Validate(raw string) (*ChapterPlan, error) {
	cands := candidates(raw)
	if len(cands) == 0 {
		return nil, &MalformedStructureError{Err: errors.New("no JSON object in response")}
	}

	var (
		doc      any
		parseErr error
		parsed   bool
	)
	for _, c := range cands {
		if err := json.Unmarshal([]byte(c), &doc); err != nil {
			if parseErr == nil {
				parseErr = err
			}
			continue
		}
		parsed = true
		break
	}
	if !parsed {
		return nil, &MalformedStructureError{Candidate: cands[0], Err: parseErr}
	}

	if err := v.schema.Validate(doc); err != nil {
		return nil, violationFrom(doc, err)
	}

	return planFrom(doc), nil
}

// planFrom converts a schema-valid document into a ChapterPlan, indexing
// chapters by position.
func planFrom(doc any) *ChapterPlan {
	root := doc.(map[string]any)
	items := root["chapters"].([]any)
	p := &ChapterPlan{Chapters: make([]ChapterSpec, 0, len(items))}
	for i, item := range items {
		m := item.(map[string]any)
		p.Chapters = append(p.Chapters, ChapterSpec{
			Index:  i + 1,
			Title:  m["title"].(string),
			Prompt: m["prompt"].(string),
		})
	}
	return p
}

// violationFrom maps a jsonschema failure onto the deepest offending chapter.
func violationFrom(doc any, err error) *SchemaViolationError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &SchemaViolationError{Reason: err.Error()}
	}

	leaf := deepestCause(ve)
	segments := splitPointer(leaf.InstanceLocation)
	out := &SchemaViolationError{Reason: leaf.Message}

	if len(segments) >= 2 && segments[0] == "chapters" {
		if idx, err := strconv.Atoi(segments[1]); err == nil {
			out.Chapter = chapterID(doc, idx)
		}
	}
	switch {
	case len(segments) >= 3:
		out.Field = segments[2]
	case len(segments) == 1:
		out.Field = segments[0]
	case strings.Contains(leaf.Message, "chapters"):
		out.Field = "chapters"
	}
	return out
}

func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return ve
	}
	var best *jsonschema.ValidationError
	bestDepth := -1
	for _, c := range ve.Causes {
		leaf := deepestCause(c)
		if d := len(splitPointer(leaf.InstanceLocation)); d > bestDepth {
			best, bestDepth = leaf, d
		}
	}
	return best
}

func splitPointer(ptr string) []string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.Trim(ptr, "/")
	if ptr == "" {
		return nil
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return parts
}

// chapterID returns the declared "chapter" value at position idx, or a
// positional identifier when none is usable.
func chapterID(doc any, idx int) string {
	positional := "#" + strconv.Itoa(idx+1)
	root, ok := doc.(map[string]any)
	if !ok {
		return positional
	}
	items, ok := root["chapters"].([]any)
	if !ok || idx < 0 || idx >= len(items) {
		return positional
	}
	m, ok := items[idx].(map[string]any)
	if !ok {
		return positional
	}
	switch id := m["chapter"].(type) {
	case float64:
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case string:
		if strings.TrimSpace(id) != "" {
			return id
		}
	}
	return positional
}

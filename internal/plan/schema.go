package plan

// Schema returns the JSON schema for a chapter plan with exactly n chapters.
// The "chapter" key must be present but may hold any JSON value.
func Schema(n int) map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"chapters": map[string]any{
				"type":     "array",
				"minItems": n,
				"maxItems": n,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"chapter": map[string]any{
							"description": "Chapter number",
						},
						"title": map[string]any{
							"type":        "string",
							"pattern":     `\S`,
							"description": "Chapter title",
						},
						"prompt": map[string]any{
							"type":        "string",
							"pattern":     `\S`,
							"description": "Detailed blueprint for the chapter's prose",
						},
					},
					"required": []string{"chapter", "title", "prompt"},
				},
			},
		},
		"required": []string{"chapters"},
	}
}

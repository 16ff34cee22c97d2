package prompts

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestResolver(t *testing.T, dir string) *Resolver {
	t.Helper()
	r := NewResolver(dir, nil)
	r.Register(EmbeddedPrompt{Key: "stages.test.greet", Text: "Hello {{.Name}}, welcome to {{ .Place }}."})
	r.Register(EmbeddedPrompt{Key: "stages.test.plain", Text: "No variables here."})
	return r
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{{.Title}} then {{ .PastSummary }} and {{.Title}} again")
	want := []string{"PastSummary", "Title"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractVariables = %v, want %v", got, want)
	}
	if vars := ExtractVariables("plain text"); len(vars) != 0 {
		t.Errorf("expected no variables, got %v", vars)
	}
}

func TestRegisterFillsHashAndVariables(t *testing.T) {
	r := newTestResolver(t, "")

	p, ok := r.GetEmbedded("stages.test.greet")
	if !ok {
		t.Fatal("expected embedded prompt")
	}
	if p.Hash != HashText(p.Text) {
		t.Errorf("hash = %q, want %q", p.Hash, HashText(p.Text))
	}
	if !reflect.DeepEqual(p.Variables, []string{"Name", "Place"}) {
		t.Errorf("variables = %v", p.Variables)
	}

	all := r.AllEmbedded()
	if len(all) != 2 || all[0].Key != "stages.test.greet" || all[1].Key != "stages.test.plain" {
		t.Errorf("AllEmbedded not sorted by key: %+v", all)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	r := newTestResolver(t, dir)

	t.Run("embedded default", func(t *testing.T) {
		p, err := r.Resolve("stages.test.greet")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if p.IsOverride || p.Source != "" {
			t.Errorf("expected embedded prompt, got %+v", p)
		}
	})

	t.Run("override wins", func(t *testing.T) {
		path := filepath.Join(dir, "stages.test.plain.tmpl")
		if err := os.WriteFile(path, []byte("Overridden for {{.Name}}."), 0o644); err != nil {
			t.Fatal(err)
		}
		p, err := r.Resolve("stages.test.plain")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if !p.IsOverride || p.Source != path {
			t.Errorf("expected override from %s, got %+v", path, p)
		}
		if !reflect.DeepEqual(p.Variables, []string{"Name"}) {
			t.Errorf("override variables = %v", p.Variables)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if _, err := r.Resolve("stages.test.missing"); err == nil {
			t.Error("expected error for unknown key")
		}
	})
}

func TestRender(t *testing.T) {
	r := newTestResolver(t, "")

	out, err := r.Render("stages.test.greet", map[string]string{"Name": "Ada", "Place": "the lighthouse"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "Hello Ada, welcome to the lighthouse." {
		t.Errorf("Render = %q", out)
	}

	if _, err := r.Render("stages.test.greet", map[string]string{"Name": "Ada"}); err == nil {
		t.Error("expected error for missing template key")
	}
}

func TestExportDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	r := newTestResolver(t, "")

	existing := filepath.Join(dir, "stages.test.plain.tmpl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	written, err := r.ExportDefaults(dir)
	if err != nil {
		t.Fatalf("ExportDefaults failed: %v", err)
	}
	if len(written) != 1 || !strings.HasSuffix(written[0], "stages.test.greet.tmpl") {
		t.Errorf("written = %v", written)
	}

	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "keep me" {
		t.Errorf("existing override was overwritten: %q", data)
	}
}

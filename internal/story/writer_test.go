package story

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriter_WritePlan(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "session"))
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	if err := w.WritePlan(testPlan(2)); err != nil {
		t.Fatalf("failed to write plan: %v", err)
	}
	data, err := os.ReadFile(w.PlanPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "[\n    {\n        \"chapter\": 1,") {
		t.Errorf("expected 4-space indented chapter list, got:\n%s", data)
	}

	var chapters []map[string]any
	if err := json.Unmarshal(data, &chapters); err != nil {
		t.Fatalf("plan is not valid json: %v", err)
	}
	if len(chapters) != 2 || chapters[1]["prompt"] != "p2" {
		t.Errorf("unexpected plan contents: %v", chapters)
	}

	// Overwrite leaves no temp files behind.
	if err := w.WritePlan(testPlan(1)); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(w.Dir())
	if len(entries) != 1 {
		t.Errorf("expected only the plan file, got %d entries", len(entries))
	}
}

func TestWriter_AppendChapter(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range []GeneratedChapter{
		{Index: 1, Title: "One", Prose: "First."},
		{Index: 2, Title: "Two", Prose: "Second."},
	} {
		if err := w.AppendChapter(ch); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	data, err := os.ReadFile(w.StoryPath())
	if err != nil {
		t.Fatal(err)
	}
	want := "\n\nOne\n\nFirst.\n\nTwo\n\nSecond."
	if string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}
}

func TestWriter_WriteEPUB(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	chapters := []GeneratedChapter{{Index: 1, Title: "One", Prose: "First."}}
	if err := w.WriteEPUB("Title", "Author", chapters); err != nil {
		t.Fatalf("epub failed: %v", err)
	}
	zr, err := zip.OpenReader(w.EPUBPath())
	if err != nil {
		t.Fatalf("epub is not a zip: %v", err)
	}
	defer zr.Close()
	found := false
	for _, f := range zr.File {
		if f.Name == "OEBPS/chapters/ch_001.xhtml" {
			found = true
		}
	}
	if !found {
		t.Error("expected chapter document in epub")
	}
}

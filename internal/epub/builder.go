// Package epub writes ePub 3.0 files from generated chapters.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Book contains the metadata needed for epub generation.
type Book struct {
	ID        string // Stable identifier; a random UUID is used when empty
	Title     string
	Author    string
	Language  string // ISO 639-1 code (e.g., "en")
	CreatedAt time.Time
}

// Chapter represents a chapter for epub generation.
type Chapter struct {
	ID     string // Unique identifier (e.g., "ch_001")
	Number int
	Title  string
	Text   string // Markdown prose
}

// Builder creates ePub 3.0 files.
type Builder struct {
	book       Book
	chapters   []Chapter
	identifier string
}

// NewBuilder creates a new epub builder. Chapters without an ID are numbered
// by position.
func NewBuilder(book Book, chapters []Chapter) *Builder {
	chs := make([]Chapter, len(chapters))
	for i, ch := range chapters {
		if ch.ID == "" {
			ch.ID = fmt.Sprintf("ch_%03d", i+1)
		}
		if ch.Number == 0 {
			ch.Number = i + 1
		}
		chs[i] = ch
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}

	id := book.ID
	if id == "" {
		id = uuid.New().String()
	}
	return &Builder{
		book:       book,
		chapters:   chs,
		identifier: "urn:uuid:" + id,
	}
}

// Build generates the epub and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := b.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTo writes the epub to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	// mimetype must be first and uncompressed
	if err := b.writeMimetype(zw); err != nil {
		return err
	}

	files := []struct {
		name    string
		content func() (string, error)
	}{
		{"META-INF/container.xml", func() (string, error) { return containerXML, nil }},
		{"OEBPS/content.opf", func() (string, error) { return b.generatePackage(), nil }},
		{"OEBPS/nav.xhtml", func() (string, error) { return b.generateNavigation(), nil }},
		{"OEBPS/toc.ncx", func() (string, error) { return b.generateNCX(), nil }},
		{"OEBPS/styles/style.css", func() (string, error) { return defaultStylesheet, nil }},
	}
	for _, f := range files {
		content, err := f.content()
		if err != nil {
			return err
		}
		if err := writeEntry(zw, f.name, content); err != nil {
			return err
		}
	}

	for _, ch := range b.chapters {
		content, err := b.generateChapterXHTML(ch)
		if err != nil {
			return fmt.Errorf("failed to render chapter %s: %w", ch.ID, err)
		}
		if err := writeEntry(zw, chapterPath(ch), content); err != nil {
			return err
		}
	}

	return zw.Close()
}

// BuildToBuffer generates the epub and returns it as a byte buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *Builder) writeMimetype(zw *zip.Writer) error {
	header := &zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	_, err = w.Write([]byte("application/epub+zip"))
	return err
}

func writeEntry(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func chapterPath(ch Chapter) string {
	return "OEBPS/" + chapterHref(ch)
}

func chapterHref(ch Chapter) string {
	return "chapters/" + ch.ID + ".xhtml"
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const defaultStylesheet = `/* Quill ePub Stylesheet */

body {
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
  text-align: justify;
}

h1, h2, h3 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
  text-align: left;
}

p {
  margin: 0.5em 0;
  text-indent: 1.5em;
}

h1 + p, h2 + p, h3 + p, hr + p {
  text-indent: 0;
}

blockquote {
  margin: 1em 2em;
  font-style: italic;
}

.chapter-title {
  text-align: center;
  margin-top: 3em;
  margin-bottom: 2em;
}

.chapter-number {
  font-size: 0.9em;
  text-transform: uppercase;
  letter-spacing: 0.1em;
  margin-bottom: 0.5em;
}
`

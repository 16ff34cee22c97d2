package epub

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// prose renders chapter markdown as XHTML. Raw HTML from the model is
// dropped. Typographer stays off: its named entities are not valid XML.
var prose = goldmark.New(
	goldmark.WithRendererOptions(
		html.WithXHTML(),
		html.WithHardWraps(),
	),
)

// generateChapterXHTML wraps a chapter's rendered prose in an XHTML document.
func (b *Builder) generateChapterXHTML(ch Chapter) (string, error) {
	body, err := markdownToXHTML(ch.Text)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(formatTitle(ch)))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
`)
	fmt.Fprintf(&sb, "<div class=\"chapter-title\">\n<p class=\"chapter-number\">Chapter %d</p>\n", ch.Number)
	if title := strings.TrimSpace(ch.Title); title != "" {
		fmt.Fprintf(&sb, "<h1>%s</h1>\n", escapeXML(title))
	}
	sb.WriteString("</div>\n")
	sb.WriteString(body)
	sb.WriteString("</body>\n</html>\n")

	return sb.String(), nil
}

// markdownToXHTML converts markdown prose to an XHTML fragment.
func markdownToXHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := prose.Convert([]byte(strings.TrimSpace(md)), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}

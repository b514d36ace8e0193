package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDocument is returned when a document has no bytes at all.
var ErrEmptyDocument = errors.New("document is empty")

// Document is an uploaded document as supplied at submission time.
type Document struct {
	Name string
	Data []byte
}

// Extractor turns a document into the text of each of its pages, in order.
// A page without text is returned as an empty string, never skipped.
type Extractor interface {
	Extract(ctx context.Context, doc Document) ([]string, error)
}

// ExtractionError reports a document that could not be read.
type ExtractionError struct {
	Document string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Document, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// TextExtractor reads plain text and Markdown documents. Form feeds mark
// page breaks; a document without any is a single page. A leading YAML
// frontmatter block is dropped from the first page.
type TextExtractor struct{}

// Extract implements Extractor.
func (TextExtractor) Extract(_ context.Context, doc Document) ([]string, error) {
	if len(doc.Data) == 0 {
		return nil, &ExtractionError{Document: doc.Name, Err: ErrEmptyDocument}
	}
	if !utf8.Valid(doc.Data) {
		return nil, &ExtractionError{Document: doc.Name, Err: errors.New("not valid UTF-8 text")}
	}

	content, _ := splitFrontmatter(string(doc.Data))
	return splitPages(content), nil
}

// splitPages splits on form feeds. A trailing form feed does not start a
// new page.
func splitPages(content string) []string {
	content = strings.TrimSuffix(content, "\f")
	pages := strings.Split(content, "\f")
	for i, p := range pages {
		pages[i] = strings.ReplaceAll(p, "\r\n", "\n")
	}
	return pages
}

// splitFrontmatter separates a leading "---" YAML block from content.
// Malformed frontmatter is left in place.
func splitFrontmatter(content string) (string, map[string]any) {
	if !strings.HasPrefix(content, "---\n") {
		return content, nil
	}
	endIdx := strings.Index(content[4:], "\n---")
	if endIdx < 0 {
		return content, nil
	}

	meta := make(map[string]any)
	if err := yaml.Unmarshal([]byte(content[4:4+endIdx]), &meta); err != nil {
		return content, nil
	}
	rest := content[4+endIdx+4:]
	return strings.TrimPrefix(rest, "\n"), meta
}

// ExtractorFor picks an extractor from the document's file extension.
// PDFs go through pdf; everything else is treated as text.
func ExtractorFor(name string, pdf Extractor) Extractor {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return pdf
	default:
		return TextExtractor{}
	}
}

// Dispatcher is an Extractor that routes by document name.
type Dispatcher struct {
	PDF Extractor
}

// Extract implements Extractor.
func (d Dispatcher) Extract(ctx context.Context, doc Document) ([]string, error) {
	return ExtractorFor(doc.Name, d.PDF).Extract(ctx, doc)
}

package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads PDF text in process, one string per page. Pages that
// carry no text, or whose content cannot be decoded, come back as "" so
// page numbers stay aligned with the document.
type PDFExtractor struct{}

// Extract implements Extractor.
func (PDFExtractor) Extract(ctx context.Context, doc Document) (pages []string, err error) {
	if len(doc.Data) == 0 {
		return nil, &ExtractionError{Document: doc.Name, Err: ErrEmptyDocument}
	}
	if !bytes.HasPrefix(doc.Data, []byte("%PDF-")) {
		return nil, &ExtractionError{Document: doc.Name, Err: errors.New("missing PDF header")}
	}

	// The reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, &ExtractionError{Document: doc.Name, Err: fmt.Errorf("malformed PDF: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, &ExtractionError{Document: doc.Name, Err: fmt.Errorf("open PDF: %w", err)}
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf page unreadable", "document", doc.Name, "page", i, "error", err)
			text = ""
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	slog.Debug("pdf extracted", "document", doc.Name, "pages", n, "extractor", "builtin")
	return pages, nil
}

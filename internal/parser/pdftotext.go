package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// PDFToTextExtractor extracts PDF pages with poppler's pdftotext, which
// separates pages with form feeds. When the binary is not installed the
// document goes to Fallback instead.
type PDFToTextExtractor struct {
	Binary   string
	Runner   CommandRunner
	Fallback Extractor
}

// NewPDFToTextExtractor creates an extractor using the given binary path
// that falls back to PDFExtractor.
func NewPDFToTextExtractor(binary string) *PDFToTextExtractor {
	if binary == "" {
		binary = "pdftotext"
	}
	return &PDFToTextExtractor{Binary: binary, Runner: ExecRunner{}, Fallback: PDFExtractor{}}
}

// Extract implements Extractor.
func (p *PDFToTextExtractor) Extract(ctx context.Context, doc Document) ([]string, error) {
	if len(doc.Data) == 0 {
		return nil, &ExtractionError{Document: doc.Name, Err: ErrEmptyDocument}
	}
	if !bytes.HasPrefix(doc.Data, []byte("%PDF-")) {
		return nil, &ExtractionError{Document: doc.Name, Err: errors.New("missing PDF header")}
	}

	tmp, err := os.CreateTemp("", "complycheck-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc.Data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	out, err := p.Runner.Run(ctx, p.Binary, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if errors.Is(err, exec.ErrNotFound) {
		if p.Fallback != nil {
			slog.Warn("pdftotext not found, using built-in PDF reader", "binary", p.Binary, "hint", InstallInstructions())
			return p.Fallback.Extract(ctx, doc)
		}
		return nil, &ExtractionError{Document: doc.Name, Err: fmt.Errorf("%w\n%s", err, InstallInstructions())}
	}
	if err != nil {
		return nil, &ExtractionError{Document: doc.Name, Err: err}
	}

	pages := splitPages(string(out))
	slog.Debug("pdf extracted", "document", doc.Name, "pages", len(pages), "bytes", len(out))
	return pages, nil
}

// InstallInstructions explains how to get pdftotext.
func InstallInstructions() string {
	return `PDF extraction requires pdftotext (poppler).
  macOS:  brew install poppler
  Debian: apt install poppler-utils`
}

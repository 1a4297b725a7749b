// Package extract converts raw document bytes into normalized text.
//
// Supported formats are PDF, DOCX and plain text. Structured formats get a
// best-effort parse; when the primary parser fails, a degraded fallback scans
// the byte stream for printable-text runs and succeeds only if it recovers
// enough content to be useful.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for extraction.
var (
	// ErrUnsupportedFormat is returned for unknown file-type tags.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed indicates a parser error or corrupt input that the
	// fallback scanner could not recover from.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// minFallbackChars is the minimum recovered text length for the degraded
// fallback to count as a successful extraction.
const minFallbackChars = 50

// Result is the outcome of a successful extraction.
type Result struct {
	// Text is the extracted text content.
	Text string

	// PageCount is the number of pages, where the format has pages.
	// Zero for plain text and DOCX.
	PageCount int

	// Metadata carries format-specific details (e.g. "format", "encrypted").
	Metadata map[string]string
}

// Extractor converts raw document bytes into text.
type Extractor struct {
	tempDir string
}

// NewExtractor creates an Extractor. tempDir is used for formats whose
// parsers work on files; empty selects the OS temp directory.
func NewExtractor(tempDir string) *Extractor {
	return &Extractor{tempDir: tempDir}
}

// Extract converts raw bytes with the declared fileType tag into text.
//
// Recognized tags: "pdf", "docx", "txt" (plus MIME-style aliases). Unknown
// tags return ErrUnsupportedFormat. Malformed structured content first runs
// the printable-run fallback before surfacing ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileType string) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrExtractionFailed)
	}

	switch normalizeFileType(fileType) {
	case "txt":
		return e.extractPlainText(data)
	case "pdf":
		res, err := e.extractPDF(ctx, data)
		if err != nil {
			return e.fallback(data, "pdf", err)
		}
		return res, nil
	case "docx":
		res, err := e.extractDOCX(data)
		if err != nil {
			return e.fallback(data, "docx", err)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileType)
	}
}

// normalizeFileType maps tags and MIME types to a canonical format name.
func normalizeFileType(fileType string) string {
	switch strings.ToLower(strings.TrimSpace(fileType)) {
	case "pdf", "application/pdf":
		return "pdf"
	case "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "txt", "text", "text/plain", "md", "text/markdown":
		return "txt"
	default:
		return ""
	}
}

// extractPlainText decodes bytes directly, replacing invalid UTF-8.
func (e *Extractor) extractPlainText(data []byte) (*Result, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}
	return &Result{
		Text:     text,
		Metadata: map[string]string{"format": "txt"},
	}, nil
}

// fallback runs the printable-run scanner after a primary parser failure.
// The recovered text must clear minFallbackChars or the original parse
// error surfaces wrapped in ErrExtractionFailed.
func (e *Extractor) fallback(data []byte, format string, parseErr error) (*Result, error) {
	text := scanPrintableRuns(data)
	if len(strings.TrimSpace(text)) < minFallbackChars {
		return nil, fmt.Errorf("%w: %s parse failed and fallback recovered too little text: %v",
			ErrExtractionFailed, format, parseErr)
	}
	return &Result{
		Text: text,
		Metadata: map[string]string{
			"format":    format,
			"degraded":  "true",
			"parse_err": parseErr.Error(),
		},
	}, nil
}

// scanPrintableRuns recovers printable ASCII runs from a corrupt byte stream.
// Runs shorter than four characters are discarded as parser noise.
func scanPrintableRuns(data []byte) string {
	const minRun = 4

	var sb strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= minRun {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.Write(run)
		}
		run = run[:0]
	}

	for _, b := range data {
		if b >= 0x20 && b < 0x7f {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()
	return sb.String()
}

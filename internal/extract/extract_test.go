package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(t.TempDir())

	res, err := e.Extract(context.Background(), []byte("Section 1: Payment is due."), "txt")
	require.NoError(t, err)
	assert.Equal(t, "Section 1: Payment is due.", res.Text)
	assert.Equal(t, "txt", res.Metadata["format"])
}

func TestExtractPlainTextInvalidUTF8(t *testing.T) {
	e := NewExtractor(t.TempDir())

	res, err := e.Extract(context.Background(), []byte{'h', 'i', 0xff, 0xfe, '!'}, "text/plain")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "hi")
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := NewExtractor(t.TempDir())

	_, err := e.Extract(context.Background(), []byte("data"), "xlsx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractEmptyInput(t *testing.T) {
	e := NewExtractor(t.TempDir())

	_, err := e.Extract(context.Background(), nil, "txt")
	require.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractCorruptPDFFallback(t *testing.T) {
	e := NewExtractor(t.TempDir())

	// Not a valid PDF, but carries enough printable text for the degraded
	// fallback to recover.
	data := []byte("%PDF-garbage\x00\x01" +
		"This agreement is made between the parties on the date below. " +
		"Each party agrees to the terms herein.\x00\x02trailer")

	res, err := e.Extract(context.Background(), data, "pdf")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "This agreement is made between the parties")
	assert.Equal(t, "true", res.Metadata["degraded"])
}

func TestExtractCorruptPDFFallbackTooShort(t *testing.T) {
	e := NewExtractor(t.TempDir())

	_, err := e.Extract(context.Background(), []byte("%PDF\x00\x01tiny\x02"), "pdf")
	require.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractDOCX(t *testing.T) {
	e := NewExtractor(t.TempDir())

	docXML := `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>Section 1: Scope of Services.</t></r></p>
    <p><r><t>The contractor shall perform </t></r><r><t>all listed duties.</t></r></p>
  </body>
</document>`

	res, err := e.Extract(context.Background(), makeDOCX(t, docXML), "docx")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Section 1: Scope of Services.")
	assert.Contains(t, res.Text, "The contractor shall perform all listed duties.")
	assert.Equal(t, "docx", res.Metadata["format"])
}

func TestExtractCorruptDOCXFallback(t *testing.T) {
	e := NewExtractor(t.TempDir())

	data := []byte("PK\x03\x04 not actually a zip " + strings.Repeat("recoverable legal prose ", 5))
	res, err := e.Extract(context.Background(), data, "docx")
	require.NoError(t, err)
	assert.Equal(t, "true", res.Metadata["degraded"])
	assert.Contains(t, res.Text, "recoverable legal prose")
}

func TestScanPrintableRunsDiscardsNoise(t *testing.T) {
	text := scanPrintableRuns([]byte("ab\x00real words here\x01xy\x02"))
	assert.Equal(t, "real words here", text)
}

func TestNormalizeFileType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pdf", "pdf"},
		{"application/pdf", "pdf"},
		{"DOCX", "docx"},
		{"text/plain", "txt"},
		{"md", "txt"},
		{"xlsx", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeFileType(tt.in), tt.in)
	}
}

// makeDOCX builds a minimal DOCX archive with the given document.xml body.
func makeDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

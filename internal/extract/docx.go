package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractDOCX extracts text from a DOCX archive.
//
// A DOCX file is a ZIP archive whose main text lives in word/document.xml.
// Paragraphs become newline-separated blocks; runs within a paragraph are
// concatenated.
func (e *Extractor) extractDOCX(data []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening DOCX archive: %w", err)
	}

	var docXML []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("opening document.xml: %w", err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading document.xml: %w", err)
		}
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("missing word/document.xml")
	}

	text, err := parseDocumentXML(docXML)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text content in document.xml")
	}

	return &Result{
		Text:     text,
		Metadata: map[string]string{"format": "docx"},
	}, nil
}

// documentXML mirrors the parts of word/document.xml we read.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []string `xml:"t"`
}

// parseDocumentXML pulls paragraph text out of the WordprocessingML body.
func parseDocumentXML(data []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing document.xml: %w", err)
	}

	var sb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Text {
				line.WriteString(t)
			}
		}
		if line.Len() == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line.String())
	}
	return sb.String(), nil
}

package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF extracts text content from PDF bytes using pdfcpu.
//
// pdfcpu operates on files, so the bytes go through a temp file and page
// content extraction writes per-page files that are read back in order.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (*Result, error) {
	workDir, err := os.MkdirTemp(e.tempDir, "lexrag-pdf-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	tempFile := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing temp PDF: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("reading PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating page dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("extracting PDF content: %w", err)
	}

	// Page content lands in one file per page; collect by page number.
	pageTexts := make(map[int]string, pageCount)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("reading page dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(entry.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(entry.Name(), "page_%d", &pageNum); err != nil {
				continue
			}
		}
		pageTexts[pageNum] = string(content)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text, ok := pageTexts[pageNum]
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	if strings.TrimSpace(sb.String()) == "" {
		return nil, fmt.Errorf("no text content recovered from %d pages", pageCount)
	}

	metadata := map[string]string{"format": "pdf"}
	if pdfCtx.Encrypt != nil {
		metadata["encrypted"] = "true"
	}

	return &Result{
		Text:      sb.String(),
		PageCount: pageCount,
		Metadata:  metadata,
	}, nil
}

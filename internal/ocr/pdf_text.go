package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/pkg/utils"
)

// maxTextPages bounds local extraction; invoices rarely exceed a few pages.
const maxTextPages = 10

// LocalPDFText extracts raw text from PDF documents with mupdf. It is the
// degraded-mode substitute when the remote OCR service is unreachable or not
// configured: no structured fields, just text for the regex hours scan and
// the orchestrator prompt.
type LocalPDFText struct {
	logger *zap.Logger
}

// NewLocalPDFText creates the local PDF text extractor.
func NewLocalPDFText(logger *zap.Logger) *LocalPDFText {
	return &LocalPDFText{logger: logger}
}

// Analyze extracts the document text. Non-PDF documents yield an empty
// result rather than an error; image-only extraction needs the remote
// service.
func (l *LocalPDFText) Analyze(ctx context.Context, content []byte, filename string) (*Result, error) {
	if !utils.IsPDF(filename) {
		l.logger.Debug("Local text extraction skipped for non-PDF document",
			zap.String("filename", filename))
		return &Result{StructuredFields: map[string]any{}}, nil
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	pages := doc.NumPage()
	if pages > maxTextPages {
		pages = maxTextPages
	}
	for page := 0; page < pages; page++ {
		text, err := doc.Text(page)
		if err != nil {
			l.logger.Warn("Failed to extract page text",
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	l.logger.Debug("Local PDF text extracted",
		zap.String("filename", filename),
		zap.Int("pages", pages),
		zap.Int("text_length", sb.Len()))

	return &Result{
		FullText:         sb.String(),
		StructuredFields: map[string]any{},
	}, nil
}

package ingestion

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"
	"github.com/poiesic/ragline/core"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extractor converts document bytes to plain text based on the file extension.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor. A nil logger uses slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract returns the text of data. PDF and DOCX files are parsed; anything
// else is read as UTF-8, with invalid sequences replaced.
func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	switch core.DocumentTypeOf(filename) {
	case "pdf":
		return e.extractPDF(data)
	case "docx":
		return e.extractWord(data)
	default:
		if utf8.Valid(data) {
			return string(data), nil
		}
		e.logger.Warn("replacing invalid UTF-8", "file", filename)
		return strings.ToValidUTF8(string(data), "�"), nil
	}
}

func (e *Extractor) extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", ErrExtraction, err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			e.logger.Warn("skipping null pdf page", "page", i)
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %w", ErrExtraction, i, err)
		}
		text.WriteString(pageText)
	}

	e.logger.Debug("extracted pdf", "pages", reader.NumPage(), "chars", text.Len())
	return text.String(), nil
}

func (e *Extractor) extractWord(data []byte) (string, error) {
	result, err := docconv.Convert(bytes.NewReader(data), docxMimeType, false)
	if err != nil {
		return "", fmt.Errorf("%w: docx: %w", ErrExtraction, err)
	}
	e.logger.Debug("extracted docx", "chars", len(result.Body))
	return result.Body, nil
}

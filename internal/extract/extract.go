package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTooLarge          = errors.New("document is too large")
	ErrEmptyDocument     = errors.New("no text found in document")
)

// Only the first pages of a PDF are read; resumes longer than this are
// not resumes.
const maxPDFPages = 20

// FromDocument extracts plain text from an uploaded resume document.
// Supported: PDF, DOCX and plain text, picked by mime type with a
// filename-extension fallback.
func FromDocument(filename, mimeType string, data []byte, maxBytes int64) (string, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: maximum %dMB", ErrTooLarge, maxBytes/(1024*1024))
	}

	name := strings.ToLower(filename)
	mime := strings.ToLower(mimeType)

	var (
		text string
		err  error
	)
	switch {
	case mime == "text/plain" || strings.HasSuffix(name, ".txt"):
		text = string(data)
	case mime == "application/pdf" || strings.HasSuffix(name, ".pdf"):
		text, err = fromPDF(data)
	case mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		strings.HasSuffix(name, ".docx"):
		text, err = fromDocx(data)
	default:
		return "", ErrUnsupportedFormat
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	var builder strings.Builder
	pages := reader.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func fromDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return doc.Editable().GetContent(), nil
}

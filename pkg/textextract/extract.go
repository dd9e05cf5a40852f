// Package textextract turns uploaded file bytes into plain text.
// PDF parsing is delegated to github.com/ledongthuc/pdf; DOCX and TXT
// are handled inline.
package textextract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtractionFailed wraps any parser failure so callers can classify
// it without knowing which format was involved.
var ErrExtractionFailed = errors.New("textextract: extraction failed")

// ErrUnsupportedType is returned for file types with no extractor.
var ErrUnsupportedType = errors.New("textextract: unsupported file type")

type ExtractedText struct {
	Content string
	Pages   int
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt"}
}

// FromFilename extracts text from raw file bytes, picking the extractor
// from the filename extension.
func FromFilename(filename string, data []byte) (*ExtractedText, error) {
	return Extract(data, strings.ToLower(filepath.Ext(filename)))
}

func Extract(data []byte, fileType string) (*ExtractedText, error) {
	switch strings.ToLower(fileType) {
	case ".pdf", "pdf", "application/pdf":
		return extractPDF(data)
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return extractDOCX(data)
	case ".txt", "txt", "text/plain":
		return &ExtractedText{Content: string(bytes.TrimSpace(data)), Pages: 1}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
}

func extractPDF(data []byte) (*ExtractedText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrExtractionFailed, err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages that fail to decode are skipped rather than failing
			// the whole document.
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &ExtractedText{Content: buf.String(), Pages: numPages}, nil
}

func extractDOCX(data []byte) (*ExtractedText, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open docx: %v", ErrExtractionFailed, err)
	}

	var buf strings.Builder
	for _, f := range reader.File {
		if filepath.Base(f.Name) != "document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open document.xml: %v", ErrExtractionFailed, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read document.xml: %v", ErrExtractionFailed, err)
		}
		buf.WriteString(stripXMLTags(string(content)))
		break
	}

	return &ExtractedText{Content: buf.String(), Pages: 1}, nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}

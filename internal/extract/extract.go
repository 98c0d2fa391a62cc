// Package extract turns local lecture files into plain text for ingestion.
// Plain-text formats are read directly; PDFs go through ledongthuc/pdf.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FromFile reads the file at path and returns its plain-text content.
// Supported extensions: .txt, .md, .text (read verbatim) and .pdf.
func FromFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("extract: read %s: %w", path, err)
		}
		return string(data), nil

	case ".pdf":
		return fromPDF(path)

	default:
		return "", fmt.Errorf("extract: unsupported file type %q (want .txt, .md, or .pdf)", filepath.Ext(path))
	}
}

// fromPDF extracts the plain text of every page in the PDF at path.
func fromPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: open pdf %s: %w", path, err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract: read pdf text %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("extract: buffer pdf text %s: %w", path, err)
	}

	text := buf.String()
	if text == "" {
		return "", fmt.Errorf("extract: no text extracted from %s", path)
	}
	return text, nil
}

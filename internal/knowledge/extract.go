// Package knowledge turns uploaded documents into knowledge base entries.
package knowledge

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/dslipak/pdf"
)

// MaxUploadSize is the hard limit for imported files
const MaxUploadSize = 10 * 1024 * 1024

var (
	ErrUnsupportedType = errors.New("unsupported file type, use .pdf, .txt or .md")
	ErrTooLarge        = errors.New("file exceeds the 10MB limit")
	ErrNoText          = errors.New("no text could be extracted from the file")
	ErrUnreadable      = errors.New("file could not be read")
)

// Extract returns the plain text of a document and the knowledge source it maps to
func Extract(filename string, data []byte) (string, string, error) {
	if len(data) > MaxUploadSize {
		return "", "", ErrTooLarge
	}

	var (
		text   string
		source string
		err    error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractPDF(data)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		source = model.KnowledgePDF
	case ".txt", ".md", ".markdown":
		if !utf8.Valid(data) {
			return "", "", fmt.Errorf("%w: %s is not valid UTF-8 text", ErrUnreadable, filename)
		}
		text = string(data)
		source = model.KnowledgeText
	default:
		return "", "", ErrUnsupportedType
	}
	if err != nil {
		return "", "", err
	}

	text = normalize(text)
	if text == "" {
		return "", "", ErrNoText
	}
	return text, source, nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return buf.String(), nil
}

// normalize trims lines and collapses runs of blank lines
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

package processor

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Allowed upload extensions, normalized to lower case without the dot
var allowedExtensions = map[string]bool{
	"pdf":      true,
	"txt":      true,
	"md":       true,
	"markdown": true,
}

var (
	mdCodeFenceRe = regexp.MustCompile("(?s)```.*?```")
	mdInlineRe    = regexp.MustCompile("[`*_~#>]+")
	mdLinkRe      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdImageRe     = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	wsRe          = regexp.MustCompile(`[ \t]+`)
)

// SupportedFileType reports whether the filename has an extension the
// extractor can handle. The check runs before any document record is created.
func SupportedFileType(filename string) bool {
	return allowedExtensions[FileExtension(filename)]
}

// ExtractText extracts plain text from an uploaded file. The returned text is
// what the chunker operates on. An empty result is not an error here; the
// ingestion pipeline treats it as a failed document.
func ExtractText(data []byte, filename string) (string, error) {
	switch FileExtension(filename) {
	case "pdf":
		return extractPDF(data)
	case "md", "markdown":
		return stripMarkdown(string(data)), nil
	case "txt":
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
}

// FileExtension returns the lowercased extension without the leading dot
func FileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// extractPDF pulls the text layer out of a PDF. Pages that fail to decode are
// skipped rather than failing the whole document.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	out := b.String()
	if strings.TrimSpace(out) == "" {
		// Fall back to the whole-document extractor, which handles some
		// encodings the per-page path does not.
		whole, err := wholePDFText(data)
		if err != nil {
			return "", err
		}
		return whole, nil
	}
	return out, nil
}

func wholePDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}
	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return string(text), nil
}

// stripMarkdown reduces markdown to plain text: code fences, images, link
// targets and formatting markers are removed, paragraph breaks are kept so
// the chunker still sees paragraph boundaries.
func stripMarkdown(md string) string {
	text := mdCodeFenceRe.ReplaceAllString(md, " ")
	text = mdImageRe.ReplaceAllString(text, " ")
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = mdInlineRe.ReplaceAllString(text, "")
	text = wsRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

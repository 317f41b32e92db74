// Package document extracts plain text from source files and splits it into
// overlapping chunks sized for embedding.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrUnsupportedType indicates a file extension no extractor handles.
var ErrUnsupportedType = errors.New("unsupported file type")

// textExtensions are extensions read verbatim as plain text.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".java": true,
	".c":    true,
	".cpp":  true,
	".h":    true,
	".rs":   true,
	".rb":   true,
	".sh":   true,
	".yaml": true,
	".yml":  true,
	".json": true,
	".xml":  true,
	".css":  true,
	".sql":  true,
	".csv":  true,
}

// Supported reports whether Extract can handle the given path.
func Supported(path string) bool {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf", ".docx", ".html", ".htm":
		return true
	default:
		return textExtensions[ext]
	}
}

// Extract reads a file and returns its plain text content. The extractor is
// chosen by file extension; unknown extensions return ErrUnsupportedType.
func Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return extractPDF(path)
	case ext == ".docx":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return ExtractDOCX(data)
	case ext == ".html" || ext == ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return StripHTML(string(data)), nil
	case textExtensions[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

// extractPDF extracts text from a PDF, one page after another.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", fmt.Errorf("reading PDF text from %s: %w", path, err)
	}
	return buf.String(), nil
}

// documentXML mirrors the subset of word/document.xml we care about.
type documentXML struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

// ExtractDOCX extracts paragraph text from a DOCX file (a ZIP archive whose
// main content lives in word/document.xml).
func ExtractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening DOCX archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading document.xml: %w", err)
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("parsing document.xml: %w", err)
		}

		var b strings.Builder
		for i, para := range doc.Body.Paragraphs {
			if i > 0 {
				b.WriteString("\n")
			}
			for _, run := range para.Runs {
				for _, text := range run.Text {
					b.WriteString(text.Content)
				}
			}
		}
		return strings.TrimSpace(b.String()), nil
	}
	return "", errors.New("DOCX has no word/document.xml")
}

// blockElements end the current output line, so chunking can split on
// element boundaries.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "tr": true, "table": true,
	"blockquote": true, "pre": true, "section": true, "article": true,
	"body": true,
}

// skipElements contribute no readable text.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"head": true, "title": true, "iframe": true, "svg": true,
}

// StripHTML removes markup and returns readable text, one block element per
// line with blank lines collapsed. Entities are decoded; comments, scripts,
// styles, and head content are dropped.
func StripHTML(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))

	var lines []string
	var words []string
	flush := func() {
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
			words = words[:0]
		}
	}

	skip := 0
	for {
		switch tt := z.Next(); tt {
		case html.ErrorToken:
			// io.EOF or malformed input; either way, emit what we have.
			flush()
			return strings.Join(lines, "\n")

		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			if skipElements[tag] {
				switch tt {
				case html.StartTagToken:
					skip++
				case html.EndTagToken:
					if skip > 0 {
						skip--
					}
				}
				continue
			}
			if blockElements[tag] {
				flush()
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			words = append(words, strings.Fields(string(z.Text()))...)
		}
	}
}

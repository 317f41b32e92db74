package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# Title\n\nSome content."), 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	got, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if got != "# Title\n\nSome content." {
		t.Errorf("Extract() = %q", got)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	if err := os.WriteFile(path, []byte{0x89, 0x50}, 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	_, err := Extract(path)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Extract() error = %v, want ErrUnsupportedType", err)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "doc.pdf", want: true},
		{path: "doc.DOCX", want: true},
		{path: "page.html", want: true},
		{path: "readme.md", want: true},
		{path: "main.go", want: true},
		{path: "image.png", want: false},
		{path: "archive.tar.gz", want: false},
		{path: "noext", want: false},
	}

	for _, tt := range tests {
		if got := Supported(tt.path); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// buildDOCX constructs a minimal DOCX archive in memory.
func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("writing zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t> there</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	got, err := ExtractDOCX(data)
	if err != nil {
		t.Fatalf("ExtractDOCX() failed: %v", err)
	}
	want := "Hello there\nSecond paragraph"
	if got != want {
		t.Errorf("ExtractDOCX() = %q, want %q", got, want)
	}
}

func TestExtractDOCXNotAnArchive(t *testing.T) {
	if _, err := ExtractDOCX([]byte("not a zip")); err == nil {
		t.Error("expected error for non-ZIP input, got nil")
	}
}

func TestExtractDOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if _, err := w.Create("word/other.xml"); err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}

	if _, err := ExtractDOCX(buf.Bytes()); err == nil {
		t.Error("expected error for archive without document.xml, got nil")
	}
}

func TestStripHTML(t *testing.T) {
	input := `<!DOCTYPE html>
<html>
<head><title>Ignored</title><style>body { color: red; }</style></head>
<body>
  <script>alert("nope");</script>
  <h1>Heading</h1>
  <p>First &amp; second.</p>
  <!-- a comment -->
  <div>Block <b>bold</b> text</div>
</body>
</html>`

	got := StripHTML(input)

	if strings.Contains(got, "alert") || strings.Contains(got, "color: red") {
		t.Errorf("StripHTML() kept script/style content: %q", got)
	}
	if strings.Contains(got, "Ignored") {
		t.Errorf("StripHTML() kept head content: %q", got)
	}
	if strings.Contains(got, "comment") {
		t.Errorf("StripHTML() kept comment: %q", got)
	}
	for _, want := range []string{"Heading", "First & second.", "Block bold text"} {
		if !strings.Contains(got, want) {
			t.Errorf("StripHTML() missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "<") {
		t.Errorf("StripHTML() left tags behind: %q", got)
	}
}

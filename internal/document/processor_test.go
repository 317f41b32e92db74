package document

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestProcessTextMetadata(t *testing.T) {
	p := NewProcessor(1000, 200)

	chunks := p.ProcessText("Some document content.", "/docs/guide.md")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if c.Content != "Some document content." {
		t.Errorf("Content = %q", c.Content)
	}
	if c.Metadata["source"] != "/docs/guide.md" {
		t.Errorf("source = %q, want /docs/guide.md", c.Metadata["source"])
	}
	if c.Metadata["filename"] != "guide.md" {
		t.Errorf("filename = %q, want guide.md", c.Metadata["filename"])
	}
	if c.Metadata["file_type"] != ".md" {
		t.Errorf("file_type = %q, want .md", c.Metadata["file_type"])
	}
	if want := strconv.Itoa(len("Some document content.")); c.Metadata["file_size"] != want {
		t.Errorf("file_size = %q, want %s", c.Metadata["file_size"], want)
	}
	if c.Metadata["chunk_index"] != "0" || c.Metadata["total_chunks"] != "1" {
		t.Errorf("chunk_index/total_chunks = %q/%q, want 0/1",
			c.Metadata["chunk_index"], c.Metadata["total_chunks"])
	}
}

func TestProcessTextEmpty(t *testing.T) {
	p := NewProcessor(1000, 200)

	if chunks := p.ProcessText("   ", "/docs/empty.txt"); chunks != nil {
		t.Errorf("expected nil chunks for blank text, got %v", chunks)
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	if ChunkID("/docs/a.md", 0) != ChunkID("/docs/a.md", 0) {
		t.Error("same source and index should produce the same ID")
	}
	if ChunkID("/docs/a.md", 0) == ChunkID("/docs/a.md", 1) {
		t.Error("different indexes should produce different IDs")
	}
	if ChunkID("/docs/a.md", 0) == ChunkID("/docs/b.md", 0) {
		t.Error("different sources should produce different IDs")
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.txt")

	para := strings.Repeat("All work and no play makes Jack a dull boy. ", 10)
	text := para + "\n\n" + para + "\n\n" + para
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	p := NewProcessor(500, 100)
	chunks, err := p.Process(path)
	if err != nil {
		t.Fatalf("Process() failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d chars, got %d", len(text), len(chunks))
	}

	// Every chunk carries the on-disk byte size of the whole file.
	if want := strconv.Itoa(len(text)); chunks[0].Metadata["file_size"] != want {
		t.Errorf("file_size = %q, want %s", chunks[0].Metadata["file_size"], want)
	}
	if chunks[0].Metadata["filename"] != "long.txt" {
		t.Errorf("filename = %q, want long.txt", chunks[0].Metadata["filename"])
	}

	seen := make(map[string]bool)
	for i, c := range chunks {
		if len(c.Content) > 500 {
			t.Errorf("chunk %d exceeds size: %d chars", i, len(c.Content))
		}
		if seen[c.ID] {
			t.Errorf("duplicate chunk ID %q", c.ID)
		}
		seen[c.ID] = true
		if c.Metadata["chunk_index"] == "" {
			t.Errorf("chunk %d missing chunk_index metadata", i)
		}
	}

	// Re-processing the same file yields identical IDs.
	again, err := p.Process(path)
	if err != nil {
		t.Fatalf("Process() second run failed: %v", err)
	}
	if len(again) != len(chunks) {
		t.Fatalf("second run produced %d chunks, first %d", len(again), len(chunks))
	}
	for i := range chunks {
		if chunks[i].ID != again[i].ID {
			t.Errorf("chunk %d ID changed between runs: %q vs %q", i, chunks[i].ID, again[i].ID)
		}
	}
}

package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Chunk is one embeddable piece of a source document.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Processor turns source files into chunks ready for embedding.
type Processor struct {
	splitter *Splitter
}

// NewProcessor creates a Processor with the given chunking parameters.
func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	return &Processor{splitter: NewSplitter(chunkSize, chunkOverlap)}
}

// Process extracts text from the file at path and splits it into chunks.
// Chunk IDs are deterministic per source and index, so re-processing the same
// file yields the same IDs.
func (p *Processor) Process(path string) ([]Chunk, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %s: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	text, err := Extract(absPath)
	if err != nil {
		return nil, err
	}

	return p.chunk(text, absPath, info.Size()), nil
}

// ProcessText splits already-extracted text into chunks attributed to source.
// source is any stable identifier: an absolute file path or a URL. The
// recorded size is the byte length of the extracted text.
func (p *Processor) ProcessText(text, source string) []Chunk {
	return p.chunk(text, source, int64(len(text)))
}

func (p *Processor) chunk(text, source string, size int64) []Chunk {
	pieces := p.splitter.Split(text)
	if len(pieces) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	fileType := strings.ToLower(filepath.Ext(source))

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{
			ID:      ChunkID(source, i),
			Content: piece,
			Metadata: map[string]string{
				"source":       source,
				"filename":     filepath.Base(source),
				"file_type":    fileType,
				"file_size":    strconv.FormatInt(size, 10),
				"chunk_index":  fmt.Sprintf("%d", i),
				"total_chunks": fmt.Sprintf("%d", len(pieces)),
				"ingested_at":  now,
			},
		}
	}
	return chunks
}

// ChunkID returns the deterministic ID for chunk index i of source.
func ChunkID(source string, i int) string {
	hash := sha256.Sum256([]byte(source))
	return fmt.Sprintf("%s_%d", hex.EncodeToString(hash[:16]), i)
}

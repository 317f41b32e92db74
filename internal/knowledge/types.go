package knowledge

import "time"

// Document is one embeddable chunk of knowledge.
type Document struct {
	ID        string            // Deterministic per source and chunk index
	Content   string            // Chunk text
	Metadata  map[string]string // source, filename, chunk_index, ...
	CreatedAt time.Time
}

// Source returns the document's origin (file path or URL), "" if unknown.
func (d Document) Source() string {
	return d.Metadata["source"]
}

// Result is a single search hit with its cosine similarity score.
type Result struct {
	Document   Document
	Similarity float32 // 1.0 = identical direction, 0 = orthogonal
}

// SourceStat summarizes one ingested source.
type SourceStat struct {
	Source string
	Chunks int64
}

// SearchOption configures Search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int32
	source  string
	timeout time.Duration
}

// WithTopK sets the maximum number of results. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = int32(k)
		}
	}
}

// WithSource restricts results to chunks from a single source.
func WithSource(source string) SearchOption {
	return func(c *searchConfig) {
		c.source = source
	}
}

// WithTimeout overrides the default 10-second search deadline.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

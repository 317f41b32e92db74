package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// Embedder is a deterministic ai.Embedder: the same text always yields the
// same unit-length vector, and different texts almost surely differ. No
// network, no model.
type Embedder struct {
	Dims int // vector width, defaults to 1536
	Err  error
}

// NewEmbedder returns a deterministic embedder with the given width.
func NewEmbedder(dims int) *Embedder {
	return &Embedder{Dims: dims}
}

func (e *Embedder) Name() string { return "testutil/deterministic" }

func (e *Embedder) Register(api.Registry) {}

func (e *Embedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if e.Err != nil {
		return nil, e.Err
	}

	dims := e.Dims
	if dims <= 0 {
		dims = 1536
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: deterministicVector(text, dims),
		})
	}
	return resp, nil
}

// deterministicVector expands the sha256 of text into a normalized vector.
func deterministicVector(text string, dims int) []float32 {
	seed := sha256.Sum256([]byte(text))

	vec := make([]float32, dims)
	var norm float64
	for i := range vec {
		// Re-hash the seed with the index to stretch 32 bytes over dims.
		var buf [40]byte
		copy(buf[:32], seed[:])
		binary.LittleEndian.PutUint64(buf[32:], uint64(i))
		h := sha256.Sum256(buf[:])
		v := float64(int32(binary.LittleEndian.Uint32(h[:4]))) / math.MaxInt32
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

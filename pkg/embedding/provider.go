package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

type TaskType string

const (
	// TaskQuery embeds a user message used to search stored notes.
	TaskQuery TaskType = "search_query"
	// TaskDocument embeds note content before it is stored.
	TaskDocument TaskType = "search_document"
)

// Dimensions is the width of the note_embeddings.embedding_value column.
const Dimensions = 768

var ErrDimensions = errors.New("embedding has unexpected dimensions")

// EmbeddingProvider defines the interface for generating text embeddings.
// Returned vectors are unit length.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, task TaskType) ([]float32, error)
}

// DefaultModel names the model used for kind when none is configured.
func DefaultModel(kind string) string {
	switch kind {
	case "gemini":
		return geminiEmbeddingModel
	default:
		return ollamaEmbeddingModel
	}
}

// NewProvider builds the embedding backend named by kind ("ollama" or
// "gemini"). Vectors it returns are checked against Dimensions.
func NewProvider(kind, baseURL, model, apiKey string) (EmbeddingProvider, error) {
	if model == "" {
		model = DefaultModel(kind)
	}
	switch kind {
	case "", "ollama":
		p := NewOllamaProvider(baseURL, model)
		p.Dimensions = Dimensions
		return p, nil
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("gemini embeddings require an API key")
		}
		p := NewGeminiProvider(apiKey, model)
		p.Dimensions = Dimensions
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", kind)
	}
}

// finish checks the width of a raw vector and scales it to unit length,
// which pgvector cosine distance assumes. want <= 0 accepts any width.
func finish(values []float64, want int) ([]float32, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrDimensions)
	}
	if want > 0 && len(values) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensions, len(values), want)
	}

	var magnitude float64
	for _, v := range values {
		magnitude += v * v
	}
	magnitude = math.Sqrt(magnitude)

	out := make([]float32, len(values))
	for i, v := range values {
		if magnitude == 0 {
			out[i] = float32(v)
			continue
		}
		out[i] = float32(v / magnitude)
	}
	return out, nil
}

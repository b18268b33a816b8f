package services

import (
	"context"
	"fmt"

	defaultef "github.com/amikos-tech/chroma-go/pkg/embeddings/default_ef"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultEmbeddingDimension is the output size of all-MiniLM-L6-v2.
const DefaultEmbeddingDimension = 384

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Provider    string // "onnx" or "ollama"
	OllamaURL   string
	OllamaModel string
	Dimension   int
}

// NewEmbedder loads the configured embedding model. Any error wraps ErrModelLoad.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultEmbeddingDimension
	}
	switch cfg.Provider {
	case "", "onnx":
		return NewONNXEmbedder(cfg.Dimension)
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", ErrModelLoad, cfg.Provider)
	}
}

// ONNXEmbedder runs all-MiniLM-L6-v2 in-process through chroma-go's default
// embedding function. The model and runtime are downloaded on first use.
type ONNXEmbedder struct {
	ef        *defaultef.DefaultEmbeddingFunction
	closeFn   func() error
	dimension int
}

func NewONNXEmbedder(dimension int) (*ONNXEmbedder, error) {
	ef, closeFn, err := defaultef.NewDefaultEmbeddingFunction()
	if err != nil {
		return nil, fmt.Errorf("%w: all-MiniLM-L6-v2: %w", ErrModelLoad, err)
	}
	log.Info().Str("component", "embedder").Str("model", "all-MiniLM-L6-v2").Msg("Embeddings initialized")
	return &ONNXEmbedder{ef: ef, closeFn: closeFn, dimension: dimension}, nil
}

func (e *ONNXEmbedder) Dimension() int { return e.dimension }

func (e *ONNXEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	emb, err := e.ef.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	vec := emb.ContentAsFloat32()
	if err := checkDimension(vec, e.dimension); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *ONNXEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	embs, err := e.ef.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d documents: %w", len(texts), err)
	}
	vectors := make([][]float32, len(embs))
	for i, emb := range embs {
		vectors[i] = emb.ContentAsFloat32()
		if err := checkDimension(vectors[i], e.dimension); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// Close releases the ONNX runtime.
func (e *ONNXEmbedder) Close() error {
	if e.closeFn == nil {
		return nil
	}
	return e.closeFn()
}

// OllamaEmbedder calls a local Ollama server through langchaingo. The default
// model, all-minilm, is the same MiniLM checkpoint as the ONNX backend.
type OllamaEmbedder struct {
	embedder  *embeddings.EmbedderImpl
	dimension int
}

func NewOllamaEmbedder(serverURL, model string, dimension int) (*OllamaEmbedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama %s: %w", ErrModelLoad, model, err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama %s: %w", ErrModelLoad, model, err)
	}
	log.Info().Str("component", "embedder").Str("model", model).Str("server", serverURL).Msg("Embeddings initialized")
	return &OllamaEmbedder{embedder: embedder, dimension: dimension}, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama embedding api: %w", err)
	}
	if err := checkDimension(vec, e.dimension); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama embedding api: %w", err)
	}
	for _, vec := range vectors {
		if err := checkDimension(vec, e.dimension); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

func checkDimension(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"unicode"
)

// hashEmbedder is a bag-of-words embedder: each word lands in an fnv bucket,
// so texts sharing words end up close under cosine similarity.
type hashEmbedder struct {
	dim int
}

func newHashEmbedder() *hashEmbedder {
	return &hashEmbedder{dim: DefaultEmbeddingDimension}
}

func (e *hashEmbedder) Dimension() int { return e.dim }

func (e *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return bagOfWords(text, e.dim), nil
}

func (e *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t, e.dim)
	}
	return out, nil
}

func bagOfWords(text string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}
	// keep the vector non-zero so normalization is defined
	vec[dim-1] += 0.01

	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// countingEmbedder records how many texts were embedded.
type countingEmbedder struct {
	*hashEmbedder
	texts atomic.Int64
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{hashEmbedder: newHashEmbedder()}
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.texts.Add(int64(len(texts)))
	return e.hashEmbedder.EmbedDocuments(ctx, texts)
}

// textExtractor treats every file as a single page of plain text. Files whose
// name contains "broken" fail, like an unreadable PDF would.
type textExtractor struct{}

func (textExtractor) ExtractPages(path string) ([]Page, error) {
	if strings.Contains(path, "broken") {
		return nil, errors.New("malformed PDF: missing xref table")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []Page{{Number: 1, Text: string(data)}}, nil
}

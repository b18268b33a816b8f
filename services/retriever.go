package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/itish2003/therapybot/models"
)

// DefaultRetrievalK is the number of chunks handed to the model per message.
const DefaultRetrievalK = 3

// Retriever returns the chunks most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.Chunk, error)
}

// VectorRetriever embeds the query and runs a plain top-k similarity search:
// no score threshold, no re-ranking.
type VectorRetriever struct {
	embedder Embedder
	store    VectorStore
	k        int
}

func NewVectorRetriever(embedder Embedder, store VectorStore, k int) *VectorRetriever {
	if k <= 0 {
		k = DefaultRetrievalK
	}
	return &VectorRetriever{embedder: embedder, store: store, k: k}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}

	chunks, err := r.store.Query(ctx, vector, r.k)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}
	log.Debug().Str("component", "retriever").Int("count", len(chunks)).Msg("retrieved chunks")
	return chunks, nil
}

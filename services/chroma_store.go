package services

import (
	"context"
	"encoding/json"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/rs/zerolog/log"

	"github.com/itish2003/therapybot/models"
)

// ChromaStore keeps the index in a Chroma server collection named after the index.
type ChromaStore struct {
	client     chromago.Client
	name       string
	dimension  int
	region     string
	collection chromago.Collection
}

// NewChromaStore creates a client for the Chroma server at cfg.ChromaURL. The
// collection is attached later by EnsureIndex or Open.
func NewChromaStore(cfg VectorStoreConfig) (*ChromaStore, error) {
	opts := []chromago.ClientOption{chromago.WithBaseURL(cfg.ChromaURL)}
	if cfg.APIKey != "" {
		opts = append(opts, chromago.WithAuth(
			chromago.NewTokenAuthCredentialsProvider(cfg.APIKey, chromago.XChromaTokenHeader),
		))
	}
	if cfg.ChromaTenant != "" && cfg.ChromaDatabase != "" {
		opts = append(opts, chromago.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant))
	}

	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create chroma client: %w", ErrIndexUnavailable, err)
	}
	return &ChromaStore{
		client:    client,
		name:      cfg.IndexName,
		dimension: cfg.Dimension,
		region:    cfg.Region,
	}, nil
}

func (s *ChromaStore) EnsureIndex(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: failed to list collections: %w", ErrIndexUnavailable, err)
	}
	for _, c := range collections {
		if c.Name() == s.name {
			s.collection = c
			log.Info().Str("component", "chroma").Str("index", s.name).Msg("index already exists")
			return false, nil
		}
	}

	collection, err := s.client.CreateCollection(
		ctx,
		s.name,
		chromago.WithHNSWSpaceCreate(embeddings.COSINE),
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewIntAttribute("dimension", int64(s.dimension)),
				chromago.NewStringAttribute("region", s.region),
				chromago.NewStringAttribute("created_by", "storeindex"),
			),
		),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create collection %q: %w", s.name, err)
	}
	s.collection = collection
	log.Info().Str("component", "chroma").Str("index", s.name).Int("dimension", s.dimension).Msg("created index")
	return true, nil
}

func (s *ChromaStore) Open(ctx context.Context) error {
	collection, err := s.client.GetCollection(ctx, s.name)
	if err != nil {
		return fmt.Errorf("%w: collection %q: %w", ErrIndexUnavailable, s.name, err)
	}
	s.collection = collection
	return nil
}

func (s *ChromaStore) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := validateEntries(entries, s.dimension); err != nil {
		return err
	}
	if s.collection == nil {
		return fmt.Errorf("%w: index %q is not open", ErrIndexUnavailable, s.name)
	}

	ids := make([]chromago.DocumentID, len(entries))
	texts := make([]string, len(entries))
	embs := make([]embeddings.Embedding, len(entries))
	metas := make([]chromago.DocumentMetadata, len(entries))
	for i, e := range entries {
		ids[i] = chromago.DocumentID(e.Chunk.ID)
		texts[i] = e.Chunk.Text
		embs[i] = embeddings.NewEmbeddingFromFloat32(e.Vector)
		metas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(metaChunkID, e.Chunk.ID),
			chromago.NewStringAttribute(metaSource, e.Chunk.Source),
			chromago.NewStringAttribute(metaFileHash, e.Chunk.FileHash),
			chromago.NewIntAttribute(metaPage, int64(e.Chunk.Page)),
			chromago.NewIntAttribute(metaIndex, int64(e.Chunk.Index)),
		)
	}

	err := s.collection.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %d records to chromadb: %w", len(entries), err)
	}
	return nil
}

func (s *ChromaStore) Query(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	if s.collection == nil {
		return nil, fmt.Errorf("%w: index %q is not open", ErrIndexUnavailable, s.name)
	}

	results, err := s.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	var chunks []models.Chunk
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return chunks, nil
	}
	for i, doc := range documentGroups[0] {
		if doc.ContentString() == "" {
			continue
		}
		var meta map[string]interface{}
		if len(metadataGroups) > 0 && len(metadataGroups[0]) > i {
			meta = metadataToMap(metadataGroups[0][i])
		}
		chunks = append(chunks, chunkFromMetadata(doc.ContentString(), meta))
	}
	return chunks, nil
}

func (s *ChromaStore) DeleteBySource(ctx context.Context, source string) error {
	if s.collection == nil {
		return fmt.Errorf("%w: index %q is not open", ErrIndexUnavailable, s.name)
	}
	where := chromago.EqString(metaSource, source)
	return s.collection.Delete(ctx, chromago.WithWhereDelete(where))
}

// SourceHashes reads the metadata of every record in the collection.
func (s *ChromaStore) SourceHashes(ctx context.Context) (map[string]string, error) {
	if s.collection == nil {
		return nil, fmt.Errorf("%w: index %q is not open", ErrIndexUnavailable, s.name)
	}
	results, err := s.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index state: %w", err)
	}
	metadatas := results.GetMetadatas()
	metas := make([]map[string]interface{}, 0, len(metadatas))
	for _, meta := range metadatas {
		metas = append(metas, metadataToMap(meta))
	}
	return collectSourceHashes(metas), nil
}

func (s *ChromaStore) Count(ctx context.Context) (int, error) {
	if s.collection == nil {
		return 0, fmt.Errorf("%w: index %q is not open", ErrIndexUnavailable, s.name)
	}
	count, err := s.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (s *ChromaStore) Close() error {
	return s.client.Close()
}

// metadataToMap flattens chroma document metadata. DocumentMetadata exposes no
// generic accessor, so it goes through its JSON form.
func metadataToMap(metadata chromago.DocumentMetadata) map[string]interface{} {
	metadataMap := make(map[string]interface{})
	if metadata == nil {
		return metadataMap
	}
	jsonBytes, err := json.Marshal(metadata)
	if err != nil {
		log.Warn().Err(err).Msg("could not marshal chroma metadata")
		return metadataMap
	}
	if err := json.Unmarshal(jsonBytes, &metadataMap); err != nil {
		log.Warn().Err(err).Msg("could not unmarshal chroma metadata")
	}
	return metadataMap
}

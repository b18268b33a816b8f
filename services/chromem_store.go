package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"github.com/itish2003/therapybot/models"
)

// ChromemStore is an embedded index backed by chromem-go. With a path it
// persists to disk, so the index builder and the chat server can share it.
type ChromemStore struct {
	db        *chromem.DB
	name      string
	dimension int

	mu         sync.RWMutex
	collection *chromem.Collection
}

// callerEmbeddings is installed as the collection's embedding function; every
// vector is computed by the Embedder before it reaches the store.
func callerEmbeddings(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("chromem: embeddings must be supplied by the caller")
}

// NewChromemStore opens the chromem database at path, or an in-memory one when
// path is empty. The collection is attached later by EnsureIndex or Open.
func NewChromemStore(path, name string, dimension int) (*ChromemStore, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open chromem database at %s: %w", ErrIndexUnavailable, path, err)
		}
	}
	if dimension <= 0 {
		dimension = DefaultEmbeddingDimension
	}
	return &ChromemStore{db: db, name: name, dimension: dimension}, nil
}

func (s *ChromemStore) EnsureIndex(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.db.GetCollection(s.name, callerEmbeddings); c != nil {
		s.collection = c
		return false, nil
	}

	metadata := map[string]string{
		"dimension":  strconv.Itoa(s.dimension),
		"metric":     "cosine",
		"created_by": "storeindex",
	}
	c, err := s.db.CreateCollection(s.name, metadata, callerEmbeddings)
	if err != nil {
		return false, fmt.Errorf("failed to create collection %q: %w", s.name, err)
	}
	s.collection = c
	log.Info().Str("component", "chromem").Str("index", s.name).Int("dimension", s.dimension).Msg("created index")
	return true, nil
}

func (s *ChromemStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.db.GetCollection(s.name, callerEmbeddings)
	if c == nil {
		return fmt.Errorf("%w: collection %q does not exist", ErrIndexUnavailable, s.name)
	}
	s.collection = c
	return nil
}

func (s *ChromemStore) open() (*chromem.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return nil, fmt.Errorf("%w: index %q is not open", ErrIndexUnavailable, s.name)
	}
	return s.collection, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := validateEntries(entries, s.dimension); err != nil {
		return err
	}
	c, err := s.open()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:      e.Chunk.ID,
			Content: e.Chunk.Text,
			Metadata: map[string]string{
				metaChunkID:  e.Chunk.ID,
				metaSource:   e.Chunk.Source,
				metaPage:     strconv.Itoa(e.Chunk.Page),
				metaIndex:    strconv.Itoa(e.Chunk.Index),
				metaFileHash: e.Chunk.FileHash,
			},
			Embedding: e.Vector,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add %d documents: %w", len(docs), err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	c, err := s.open()
	if err != nil {
		return nil, err
	}

	// chromem refuses nResults larger than the collection.
	n := min(k, c.Count())
	if n <= 0 {
		return []models.Chunk{}, nil
	}
	results, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(results))
	for _, r := range results {
		meta := make(map[string]interface{}, len(r.Metadata))
		for key, v := range r.Metadata {
			meta[key] = v
		}
		chunk := chunkFromMetadata(r.Content, meta)
		if chunk.ID == "" {
			chunk.ID = r.ID
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (s *ChromemStore) DeleteBySource(ctx context.Context, source string) error {
	c, err := s.open()
	if err != nil {
		return err
	}
	if c.Count() == 0 {
		return nil
	}
	return c.Delete(ctx, map[string]string{metaSource: source}, nil)
}

// SourceHashes reads the metadata of every document. chromem has no listing
// call, so this runs a query sized to the whole collection.
func (s *ChromemStore) SourceHashes(ctx context.Context) (map[string]string, error) {
	c, err := s.open()
	if err != nil {
		return nil, err
	}
	n := c.Count()
	if n == 0 {
		return map[string]string{}, nil
	}
	axis := make([]float32, s.dimension)
	axis[0] = 1
	results, err := c.QueryEmbedding(ctx, axis, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read index state: %w", err)
	}
	metas := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		meta := make(map[string]interface{}, len(r.Metadata))
		for key, v := range r.Metadata {
			meta[key] = v
		}
		metas = append(metas, meta)
	}
	return collectSourceHashes(metas), nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	c, err := s.open()
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

func (s *ChromemStore) Close() error {
	return nil
}

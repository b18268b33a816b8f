package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/itish2003/therapybot/models"
)

// VectorStore is a named similarity-search index of chunks.
//
// EnsureIndex is only called by the offline index builder; the chat server
// calls Open, which must fail rather than create a missing index.
type VectorStore interface {
	// EnsureIndex creates the named index if it does not exist yet.
	EnsureIndex(ctx context.Context) (created bool, err error)
	// Open attaches to an existing index. Errors wrap ErrIndexUnavailable.
	Open(ctx context.Context) error
	Upsert(ctx context.Context, entries []models.IndexEntry) error
	Query(ctx context.Context, vector []float32, k int) ([]models.Chunk, error)
	DeleteBySource(ctx context.Context, source string) error
	// SourceHashes maps every indexed source to the file hash it was indexed with.
	SourceHashes(ctx context.Context) (map[string]string, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Backend   string // "chroma" or "chromem"
	IndexName string
	Dimension int
	Region    string

	ChromaURL      string
	APIKey         string
	ChromaTenant   string
	ChromaDatabase string

	// ChromemPath is the directory of the embedded store; empty means in-memory.
	ChromemPath string
}

// NewVectorStore returns the backend named by cfg.Backend, chroma by default.
func NewVectorStore(cfg VectorStoreConfig) (VectorStore, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultEmbeddingDimension
	}
	switch cfg.Backend {
	case "", "chroma":
		return NewChromaStore(cfg)
	case "chromem":
		return NewChromemStore(cfg.ChromemPath, cfg.IndexName, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

// Metadata keys stored alongside every chunk.
const (
	metaChunkID  = "chunk_id"
	metaSource   = "source"
	metaPage     = "page"
	metaIndex    = "chunk_num"
	metaFileHash = "file_hash"
)

// validateEntries rejects entries whose vectors do not match the index.
func validateEntries(entries []models.IndexEntry, dimension int) error {
	for i, e := range entries {
		if e.Chunk.ID == "" {
			return fmt.Errorf("entry %d has no chunk id", i)
		}
		if err := checkDimension(e.Vector, dimension); err != nil {
			return fmt.Errorf("entry %s: %w", e.Chunk.ID, err)
		}
	}
	return nil
}

// chunkFromMetadata rebuilds a chunk from flattened metadata values.
func chunkFromMetadata(text string, meta map[string]interface{}) models.Chunk {
	chunk := models.Chunk{Text: text}
	if v, ok := meta[metaChunkID].(string); ok {
		chunk.ID = v
	}
	if v, ok := meta[metaSource].(string); ok {
		chunk.Source = v
	}
	if v, ok := meta[metaFileHash].(string); ok {
		chunk.FileHash = v
	}
	chunk.Page = metaInt(meta[metaPage])
	chunk.Index = metaInt(meta[metaIndex])
	return chunk
}

// collectSourceHashes folds chunk metadata into source -> file hash.
func collectSourceHashes(metas []map[string]interface{}) map[string]string {
	state := make(map[string]string)
	for _, meta := range metas {
		source, ok := meta[metaSource].(string)
		if !ok || source == "" {
			continue
		}
		hash, _ := meta[metaFileHash].(string)
		if _, exists := state[source]; !exists {
			state[source] = hash
		}
	}
	return state
}

func metaInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

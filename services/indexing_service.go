package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"github.com/itish2003/therapybot/logging"
	"github.com/itish2003/therapybot/models"
)

const (
	DefaultIngestWorkers = 4
	embedBatchSize       = 64
)

// IndexStats summarizes one directory pass.
type IndexStats struct {
	IndexCreated bool
	Files        int // files (re-)indexed
	Unchanged    int // files whose hash matched the index
	Skipped      int // files that failed to load or embed
	Removed      int // sources pruned because the file is gone
	Chunks       int
}

// FileIndexingService loads, embeds and upserts documents into the vector
// index. Every chunk carries the hash of its file, so the index itself records
// which version of each file it holds.
type FileIndexingService struct {
	loader   *DocumentLoader
	embedder Embedder
	store    VectorStore
	workers  int

	mu     sync.Mutex
	hashes map[string]string
}

// NewFileIndexingService is a constructor function that wires the loader,
// embedder and store used for indexing. workers bounds concurrent files.
func NewFileIndexingService(loader *DocumentLoader, embedder Embedder, store VectorStore, workers int) *FileIndexingService {
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}
	return &FileIndexingService{
		loader:   loader,
		embedder: embedder,
		store:    store,
		workers:  workers,
		hashes:   make(map[string]string),
	}
}

// loadIndexState reads source hashes from the index into the local cache.
func (s *FileIndexingService) loadIndexState(ctx context.Context) (map[string]string, error) {
	indexed, err := s.store.SourceHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get current index state: %w", err)
	}
	s.mu.Lock()
	for source, hash := range indexed {
		s.hashes[source] = hash
	}
	s.mu.Unlock()
	return indexed, nil
}

// IndexDirectory syncs the index with the PDFs in dir. The index is created
// if missing; new and changed files are indexed on a worker pool, unchanged
// ones are left alone and sources whose file is gone are pruned. Files that
// fail are logged and counted as skipped.
func (s *FileIndexingService) IndexDirectory(ctx context.Context, dir string) (IndexStats, error) {
	var stats IndexStats

	created, err := s.store.EnsureIndex(ctx)
	if err != nil {
		return stats, err
	}
	stats.IndexCreated = created

	indexed, err := s.loadIndexState(ctx)
	if err != nil {
		return stats, err
	}

	paths, err := ListPDFs(dir)
	if err != nil {
		return stats, err
	}
	log.Info().Str("component", "indexer").Str("dir", dir).
		Int("files", len(paths)).
		Int("indexed_sources", len(indexed)).
		Msg("starting directory scan")

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return stats, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	local := make(map[string]bool, len(paths))
	for _, path := range paths {
		local[path] = true
	}

	var mu sync.Mutex
	err = submitAll(pool, paths, func(path string) {
		changed, n, err := s.reindexIfChanged(ctx, path)

		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			log.Error().Err(err).Str("component", "indexer").Str("file", path).Msg("failed to index file")
			stats.Skipped++
		case !changed:
			stats.Unchanged++
		default:
			stats.Files++
			stats.Chunks += n
		}
	})
	if err != nil {
		return stats, err
	}

	root := filepath.Clean(dir)
	for source := range indexed {
		if local[source] || filepath.Dir(source) != root {
			continue
		}
		if err := s.RemoveFile(ctx, source); err != nil {
			log.Error().Err(err).Str("component", "indexer").Str("file", source).Msg("failed to prune deleted file")
			continue
		}
		log.Info().Str("component", "indexer").Str("file", source).Msg("file deleted, removed from index")
		stats.Removed++
	}

	log.Info().Str("component", "indexer").
		Int("files", stats.Files).
		Int("unchanged", stats.Unchanged).
		Int("skipped", stats.Skipped).
		Int("removed", stats.Removed).
		Int("chunks", stats.Chunks).
		Msg("directory scan finished")
	return stats, nil
}

// submitAll runs task for every path on pool. It returns only once every
// submitted task has finished, including when a later Submit fails.
func submitAll(pool *ants.Pool, paths []string, task func(path string)) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for _, path := range paths {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			task(path)
		})
		if err != nil {
			wg.Done()
			return fmt.Errorf("failed to schedule %s: %w", path, err)
		}
	}
	return nil
}

// IndexFile embeds one PDF and upserts its chunks. It returns the chunk count.
func (s *FileIndexingService) IndexFile(ctx context.Context, path string) (int, error) {
	hash, err := calculateFileHash(path)
	if err != nil {
		return 0, err
	}

	chunks, err := s.loader.LoadFile(path)
	if err != nil {
		return 0, err
	}
	for i := range chunks {
		chunks[i].FileHash = hash
	}
	log.Info().Str("component", "indexer").Str("file", path).Int("chunks", len(chunks)).Msg("split file")

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		if err := s.embedAndUpsert(ctx, chunks[start:end]); err != nil {
			return 0, fmt.Errorf("could not index chunks %d-%d of %s: %w", start, end, path, err)
		}
	}

	s.mu.Lock()
	s.hashes[path] = hash
	s.mu.Unlock()
	return len(chunks), nil
}

func (s *FileIndexingService) embedAndUpsert(ctx context.Context, chunks []models.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	entries := make([]models.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = models.IndexEntry{Chunk: chunks[i], Vector: vectors[i]}
	}
	return s.store.Upsert(ctx, entries)
}

// RemoveFile drops every chunk of path from the index.
func (s *FileIndexingService) RemoveFile(ctx context.Context, path string) error {
	if err := s.store.DeleteBySource(ctx, path); err != nil {
		return fmt.Errorf("failed to delete records for %s: %w", path, err)
	}
	s.mu.Lock()
	delete(s.hashes, path)
	s.mu.Unlock()
	return nil
}

// reindexIfChanged re-indexes path when its content hash differs from the
// version in the index. It reports whether anything was written and how many
// chunks.
func (s *FileIndexingService) reindexIfChanged(ctx context.Context, path string) (bool, int, error) {
	hash, err := calculateFileHash(path)
	if err != nil {
		return false, 0, err
	}
	s.mu.Lock()
	known, seen := s.hashes[path]
	s.mu.Unlock()
	if seen && known == hash {
		return false, 0, nil
	}

	// Old chunks go first; a shorter new version would otherwise leave stale tails.
	if seen {
		if err := s.RemoveFile(ctx, path); err != nil {
			return false, 0, err
		}
	}
	n, err := s.IndexFile(ctx, path)
	if err != nil {
		return false, 0, err
	}
	return true, n, nil
}

// WatchDirectory keeps the index in sync with dir until ctx is cancelled.
func (s *FileIndexingService) WatchDirectory(ctx context.Context, dirPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if _, err := s.loadIndexState(ctx); err != nil {
		log.Warn().Err(err).Str("component", "watcher").Msg("starting without index state; first change of each file re-indexes it")
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isSupportedFile(event.Name) {
					continue
				}
				s.handleEvent(ctx, event)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Str("component", "watcher").Msg("watcher error")
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := watcher.Add(dirPath); err != nil {
		return fmt.Errorf("failed to add path to watcher: %w", err)
	}
	log.Info().Str("component", "watcher").Str("dir", dirPath).Msg("watching directory")

	<-ctx.Done()
	log.Info().Str("component", "watcher").Msg("context cancelled, shutting down watcher")
	return nil
}

func (s *FileIndexingService) handleEvent(ctx context.Context, event fsnotify.Event) {
	logger := logging.Component("watcher").With().Str("file", event.Name).Logger()

	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		changed, _, err := s.reindexIfChanged(ctx, event.Name)
		if err != nil {
			logger.Error().Err(err).Msg("failed to re-index file")
			return
		}
		if changed {
			logger.Info().Msg("file re-indexed")
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if err := s.RemoveFile(ctx, event.Name); err != nil {
			logger.Error().Err(err).Msg("failed to remove file from index")
			return
		}
		logger.Info().Msg("file removed from index")
	}
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

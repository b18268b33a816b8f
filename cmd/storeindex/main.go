package main

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/itish2003/therapybot/config"
	"github.com/itish2003/therapybot/logging"
	"github.com/itish2003/therapybot/services"
)

func main() {
	app := &cli.App{
		Name:  "storeindex",
		Usage: "Build the therapybot vector index from a directory of PDF documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory containing the *.pdf source documents",
				EnvVars: []string{"DATA_DIR", "THERAPYBOT_DATA_DIR"},
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running and re-index PDFs as they change",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Only extract and split the PDFs, report chunk counts and exit",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of files embedded concurrently (default: INGEST_WORKERS)",
			},
		},
		Action: storeIndex,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("storeindex failed")
	}
}

func storeIndex(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.Debug)

	dataDir := c.String("data-dir")
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		return errors.New("document directory not set: pass --data-dir or set DATA_DIR")
	}
	workers := c.Int("workers")
	if workers <= 0 {
		workers = cfg.IngestWorkers
	}

	extractor, err := services.NewPDFExtractor(cfg.UnidocLicenseKey)
	if err != nil {
		return err
	}
	loader := services.NewDocumentLoader(extractor, cfg.ChunkSize, cfg.ChunkOverlap)

	if c.Bool("dry-run") {
		return reportChunks(loader, dataDir)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := services.NewEmbedder(services.EmbedderConfig{
		Provider:    cfg.EmbeddingProvider,
		OllamaURL:   cfg.OllamaURL,
		OllamaModel: cfg.OllamaEmbeddingModel,
		Dimension:   cfg.EmbeddingDimension,
	})
	if err != nil {
		return err
	}
	if closer, ok := embedder.(io.Closer); ok {
		defer closer.Close()
	}

	store, err := services.NewVectorStore(services.VectorStoreConfig{
		Backend:        cfg.VectorBackend,
		IndexName:      cfg.IndexName,
		Dimension:      cfg.EmbeddingDimension,
		Region:         cfg.IndexRegion,
		ChromaURL:      cfg.ChromaURL,
		APIKey:         cfg.VectorAPIKey,
		ChromaTenant:   cfg.ChromaTenant,
		ChromaDatabase: cfg.ChromaDatabase,
		ChromemPath:    cfg.ChromemPath,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	indexer := services.NewFileIndexingService(loader, embedder, store, workers)

	stats, err := indexer.IndexDirectory(ctx, dataDir)
	if err != nil {
		return err
	}
	log.Info().
		Str("index", cfg.IndexName).
		Bool("index_created", stats.IndexCreated).
		Int("files", stats.Files).
		Int("unchanged", stats.Unchanged).
		Int("skipped", stats.Skipped).
		Int("removed", stats.Removed).
		Int("chunks", stats.Chunks).
		Msg("index populated")

	if c.Bool("watch") {
		return indexer.WatchDirectory(ctx, dataDir)
	}
	return nil
}

// reportChunks splits every PDF in dir without embedding anything.
func reportChunks(loader *services.DocumentLoader, dir string) error {
	chunks, err := loader.LoadDirectory(dir)
	if err != nil {
		return err
	}
	perSource := make(map[string]int)
	for _, c := range chunks {
		perSource[c.Source]++
	}
	for source, n := range perSource {
		log.Info().Str("file", source).Int("chunks", n).Msg("split file")
	}
	log.Info().Int("files", len(perSource)).Int("chunks", len(chunks)).Msg("dry run finished")
	return nil
}

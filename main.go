package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/itish2003/therapybot/config"
	"github.com/itish2003/therapybot/controller"
	"github.com/itish2003/therapybot/logging"
	"github.com/itish2003/therapybot/server"
	"github.com/itish2003/therapybot/services"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.LogLevel, cfg.Debug)
	cfg.WarnMissing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Embedding model and index are required; without them no request can succeed.
	embedder, err := services.NewEmbedder(services.EmbedderConfig{
		Provider:    cfg.EmbeddingProvider,
		OllamaURL:   cfg.OllamaURL,
		OllamaModel: cfg.OllamaEmbeddingModel,
		Dimension:   cfg.EmbeddingDimension,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: failed to load embedding model")
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
		log.Fatal().Err(err).Msg("FATAL: failed to create vector store client")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close vector store client")
		}
	}()

	if err := store.Open(ctx); err != nil {
		log.Fatal().Err(err).Str("index", cfg.IndexName).Msg("FATAL: could not connect to vector index; run storeindex first")
	}
	log.Info().Str("index", cfg.IndexName).Str("backend", cfg.VectorBackend).Msg("Connected to vector index")

	retriever := services.NewVectorRetriever(embedder, store, cfg.RetrievalK)

	// A missing generator leaves the server up but not ready.
	var generator services.Generator
	if cfg.HasGoogle() {
		gemini, err := services.NewGeminiGenerator(ctx, cfg.GoogleAPIKey, services.GenerationConfig{
			Model:           cfg.GenerationModel,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			log.Error().Err(err).Msg("Gemini client unavailable; /chat will report server not ready")
		} else {
			generator = gemini
			log.Info().Str("model", cfg.GenerationModel).Msg("LLM and RAG pipeline initialized")
		}
	}

	ragService := services.NewRAGService(retriever, generator, services.NewHistoryStore(cfg.HistoryLimit))
	ragController := controller.NewRAGController(ragService)

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.RouterConfig{
		Controller:    ragController,
		SecretKey:     cfg.SecretKey,
		SecureCookies: cfg.SecureCookies,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Bool("debug", cfg.Debug).Msg("chat server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("FATAL: failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down chat server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

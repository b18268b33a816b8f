package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// DefaultSecretKey is only meant for local development. Any deployment that
// keeps it can have its session cookies forged.
const DefaultSecretKey = "dev-secret-change-me"

// Config holds every setting the chat server and the index builder read from
// the environment. Each key can be given with or without the THERAPYBOT_ prefix.
type Config struct {
	Host      string `envconfig:"HOST" default:"0.0.0.0"`
	Port      string `envconfig:"PORT" default:"8080"`
	Debug     bool   `envconfig:"DEBUG" default:"true"`
	SecretKey string `envconfig:"SECRET_KEY" default:"dev-secret-change-me"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	// SecureCookies marks the session cookie Secure. Only enable it behind TLS;
	// browsers drop Secure cookies sent over plain http.
	SecureCookies bool `envconfig:"SECURE_COOKIES" default:"false"`

	// Generation
	GoogleAPIKey    string  `envconfig:"GOOGLE_API_KEY"`
	GenerationModel string  `envconfig:"GENERATION_MODEL" default:"gemini-2.0-flash"`
	Temperature     float32 `envconfig:"TEMPERATURE" default:"0.4"`
	MaxOutputTokens int32   `envconfig:"MAX_OUTPUT_TOKENS" default:"200"`
	RetrievalK      int     `envconfig:"RETRIEVAL_K" default:"3"`
	HistoryLimit    int     `envconfig:"HISTORY_LIMIT" default:"200"`

	// Vector index
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"chroma"`
	VectorAPIKey   string `envconfig:"VECTOR_API_KEY"`
	ChromaURL      string `envconfig:"CHROMA_URL" default:"http://localhost:8000"`
	ChromaTenant   string `envconfig:"CHROMA_TENANT"`
	ChromaDatabase string `envconfig:"CHROMA_DATABASE"`
	ChromemPath    string `envconfig:"CHROMEM_PATH" default:"./vectordb"`
	IndexName      string `envconfig:"INDEX_NAME" default:"therapybot"`
	IndexRegion    string `envconfig:"INDEX_REGION" default:"us-east-1"`

	// Embeddings
	EmbeddingProvider    string `envconfig:"EMBEDDING_PROVIDER" default:"onnx"`
	OllamaURL            string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaEmbeddingModel string `envconfig:"OLLAMA_EMBEDDING_MODEL" default:"all-minilm"`
	EmbeddingDimension   int    `envconfig:"EMBEDDING_DIMENSION" default:"384"`

	// Ingestion
	DataDir          string `envconfig:"DATA_DIR"`
	ChunkSize        int    `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap     int    `envconfig:"CHUNK_OVERLAP" default:"20"`
	IngestWorkers    int    `envconfig:"INGEST_WORKERS" default:"4"`
	UnidocLicenseKey string `envconfig:"UNIDOC_LICENSE_KEY"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("THERAPYBOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	return cfg
}

func (c *Config) validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Addr is the listen address of the chat server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func (c *Config) HasGoogle() bool {
	return c.GoogleAPIKey != ""
}

func (c *Config) UsesDefaultSecret() bool {
	return c.SecretKey == DefaultSecretKey
}

// WarnMissing logs the settings whose absence degrades the service without
// stopping it.
func (c *Config) WarnMissing() {
	if !c.HasGoogle() {
		log.Warn().Msg("GOOGLE_API_KEY not found in environment; chat replies are disabled")
	}
	if c.VectorAPIKey == "" && c.VectorBackend == "chroma" {
		log.Warn().Msg("VECTOR_API_KEY not found in environment; connecting to chroma without credentials")
	}
	if c.UsesDefaultSecret() {
		log.Warn().Msg("SECRET_KEY is the development default; set it before deploying")
	}
}

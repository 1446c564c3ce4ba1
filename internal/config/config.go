package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string

	Port        string
	GinMode     string
	CORSOrigins []string

	// Auth
	AccessSecret  string
	RefreshSecret string
	BcryptCost    int

	// Redis (sessions, rate limiting, task queue broker)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Gemini (generation, and embeddings when EmbeddingsProvider=google)
	GeminiAPIKey          string
	GeminiModel           string
	GoogleEmbeddingsModel string
	GeminiTier            string

	// Embeddings provider: "google" or "ollama". Chosen here at startup,
	// never probed at call time.
	EmbeddingsProvider string
	OllamaURL          string
	OllamaModel        string
	EmbedBatchSize     int
	VectorDimensions   int

	// Vector backend: "qdrant" or "chromem".
	VectorBackend string
	QdrantURL     string
	QdrantAPIKey  string
	ChromemDir    string

	// Chunking
	MaxChunkSize int
	ChunkOverlap int

	// Retrieval
	RetrievalK int
	MCQK       int

	// Uploads
	MaxFileSize         int64
	SyncProcessingLimit int64

	// Blob storage (MinIO / S3 compatible)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:              getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:                getEnv("DB_NAME", "pdfbot"),
		Port:                  getEnv("PORT", "8080"),
		GinMode:               getEnv("GIN_MODE", "debug"),
		CORSOrigins:           splitEnv("CORS_ORIGINS", "http://localhost:3000"),
		AccessSecret:          os.Getenv("ACCESS_SECRET"),
		RefreshSecret:         os.Getenv("REFRESH_SECRET"),
		BcryptCost:            getEnvInt("BCRYPT_COST", 12),
		RedisURL:              getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		OllamaURL:             getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:           getEnv("OLLAMA_MODEL", "nomic-embed-text"),
		EmbedBatchSize:        getEnvInt("EMBED_BATCH_SIZE", 50),
		VectorDimensions:      getEnvInt("VECTOR_DIMENSIONS", 768),
		VectorBackend:         getEnv("VECTOR_BACKEND", "qdrant"),
		QdrantURL:             os.Getenv("QDRANT_URL"),
		QdrantAPIKey:          os.Getenv("QDRANT_API_KEY"),
		ChromemDir:            getEnv("CHROMEM_DIR", "./data/chromem"),
		MaxChunkSize:          getEnvInt("MAX_CHUNK_SIZE", 800),
		ChunkOverlap:          getEnvInt("CHUNK_OVERLAP", 250),
		RetrievalK:            getEnvInt("RETRIEVAL_K", 4),
		MCQK:                  getEnvInt("MCQ_K", 8),
		MaxFileSize:           getEnvInt64("MAX_FILE_SIZE", 50<<20),
		SyncProcessingLimit:   getEnvInt64("SYNC_PROCESSING_LIMIT", 5<<20),
		MinioEndpoint:         getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:        os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:        os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:           getEnv("MINIO_BUCKET", "pdf-uploads"),
		MinioUseSSL:           getEnvBool("MINIO_USE_SSL", false),
		RateLimitReqs:         getEnvInt("RATE_LIMIT_REQS", 60),
		RateLimitWindow:       getEnvInt("RATE_LIMIT_WINDOW", 60),
		OTLPEndpoint:          getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled:        getEnvBool("TRACING_ENABLED", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces the startup contract: a missing API key or URL refuses
// to start and names the missing setting.
func (c *Config) validate() error {
	if len(c.AccessSecret) < 32 || len(c.RefreshSecret) < 32 {
		return fmt.Errorf("ACCESS_SECRET and REFRESH_SECRET must be set and at least 32 characters")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	switch c.EmbeddingsProvider {
	case "google":
		// GeminiAPIKey already checked
	case "ollama":
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required when EMBEDDINGS_PROVIDER=ollama")
		}
	default:
		return fmt.Errorf("unknown EMBEDDINGS_PROVIDER %q (want google or ollama)", c.EmbeddingsProvider)
	}

	switch c.VectorBackend {
	case "qdrant":
		if c.QdrantURL == "" {
			return fmt.Errorf("QDRANT_URL is required when VECTOR_BACKEND=qdrant")
		}
	case "chromem":
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q (want qdrant or chromem)", c.VectorBackend)
	}

	if c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", c.ChunkOverlap, c.MaxChunkSize)
	}
	if c.VectorDimensions <= 0 {
		return fmt.Errorf("VECTOR_DIMENSIONS must be positive")
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// DataDir is the root of the per-company knowledge base layout:
	// <DataDir>/<company_id>/<file_id><ext> plus one metadata.json each.
	DataDir string

	// StorageBackend selects where raw files live: "local" or "s3".
	StorageBackend string
	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string

	// VectorBackend selects the index provider: "chromem" or "pgvector".
	VectorBackend string
	VectorDir     string // chromem persistence directory
	DatabaseURL   string // pgvector DSN

	// GeminiAPIKeys is an ordered pool; the rotation manager round-robins
	// through it when a provider call fails.
	GeminiAPIKeys []string
	EmbedModel    string
	GenModel      string
	EmbedDim      int

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	SessionBackend string // "memory" or "redis"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	JWTSecret string
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DataDir:        getEnv("DATA_DIR", "knowledge_base"),
		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", "ragserve-docs"),
		VectorBackend:  getEnv("VECTOR_BACKEND", "chromem"),
		VectorDir:      getEnv("VECTOR_DIR", "vector_db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		GeminiAPIKeys:  getEnvList("GEMINI_API_KEYS", "GEMINI_API_KEY"),
		EmbedModel:     getEnv("EMBED_MODEL", "text-embedding-004"),
		GenModel:       getEnv("GEN_MODEL", "gemini-1.5-flash"),
		EmbedDim:       getEnvInt("EMBED_DIM", 768),
		ChunkSize:      getEnvInt("CHUNK_SIZE", 2000),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),
		TopK:           getEnvInt("TOP_K", 5),
		SessionBackend: getEnv("SESSION_BACKEND", "memory"),
		RedisAddr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		JWTSecret:      getEnv("JWT_SECRET", ""),
	}

	if len(cfg.GeminiAPIKeys) == 0 {
		log.Fatal("no Gemini API keys set (GEMINI_API_KEYS or GEMINI_API_KEY)")
	}
	if cfg.VectorBackend == "pgvector" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set for pgvector backend")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

// getEnvList reads a comma-separated list, falling back to a single-value
// variable so one key still works without the pool syntax.
func getEnvList(key, singleKey string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		if single := getEnv(singleKey, ""); single != "" {
			out = append(out, single)
		}
	}
	return out
}

package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey      string
	DatabaseURL       string
	HTTPPort          string
	LogLevel          string
	DocsDir           string
	StaticDir         string
	ChatModel         string
	EmbeddingModel    string
	EmbeddingProvider string // "gemini" or "local"

	ChunkSize     int
	ChunkOverlap  int
	MaxResults    int
	MaxHistory    int
	MaxToolRounds int

	// Applied to every embedding and model call.
	ExternalCallTimeout time.Duration

	// Zero keeps the nearest-course-always-wins behavior.
	CourseMatchMaxDistance float64
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:       getEnv("DATABASE_URL", "course_rag.db"),
		HTTPPort:          getEnv("HTTP_PORT", "8000"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		DocsDir:           getEnv("DOCS_DIR", "docs"),
		StaticDir:         getEnv("STATIC_DIR", ""),
		ChatModel:         getEnv("CHAT_MODEL", "gemini-1.5-flash-latest"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),

		ChunkSize:     getEnvAsInt("CHUNK_SIZE", 800),
		ChunkOverlap:  getEnvAsInt("CHUNK_OVERLAP", 100),
		MaxResults:    getEnvAsInt("MAX_RESULTS", 5),
		MaxHistory:    getEnvAsInt("MAX_HISTORY", 2),
		MaxToolRounds: getEnvAsInt("MAX_TOOL_ROUNDS", 1),

		ExternalCallTimeout:    getEnvAsDuration("EXTERNAL_CALL_TIMEOUT", 30*time.Second),
		CourseMatchMaxDistance: getEnvAsFloat("COURSE_MATCH_MAX_DISTANCE", 0),
	}

	if AppConfig.ChunkOverlap >= AppConfig.ChunkSize {
		log.Fatalf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", AppConfig.ChunkOverlap, AppConfig.ChunkSize)
	}
}

// RequireGemini aborts startup when a Gemini-backed component is needed without a key.
func RequireGemini() {
	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}
}

func (c Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

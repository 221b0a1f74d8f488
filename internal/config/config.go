package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// DefaultModel is the chat model used when MODEL is not set.
const DefaultModel = "gemini-3-pro-preview"

// FallbackModel is the lighter model offered when the active model signals
// overload.
const FallbackModel = "gemini-3-flash-preview"

// DefaultEmbeddingModel is used for embedding requests when EMBEDDING_MODEL
// is not set.
const DefaultEmbeddingModel = "text-embedding-004"

// FallbackHandler decides whether a switch from current to fallback is
// approved. Returning false keeps the current model active.
type FallbackHandler func(current, fallback string) bool

type Config struct {
	// Environment
	Env string

	// Gemini AI
	GeminiAPIKey string

	// Checkpoints (empty disables the redis checkpoint store)
	RedisURL string

	// Semantic memory
	MemoryPath string

	// Conversation loop
	MaxTurns int

	// FlashFallbackHandler is consulted before switching to FallbackModel on
	// provider overload. Nil means never switch.
	FlashFallbackHandler FallbackHandler

	mu             sync.RWMutex
	model          string
	embeddingModel string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Env:            getEnvOrDefault("ENV", "development"),
		GeminiAPIKey:   mustGetEnv("GEMINI_API_KEY"),
		RedisURL:       getEnvOrDefault("REDIS_URL", ""),
		MemoryPath:     getEnvOrDefault("MEMORY_PATH", "./memory"),
		MaxTurns:       getEnvAsIntOrDefault("MAX_TURNS", 100),
		model:          getEnvOrDefault("MODEL", DefaultModel),
		embeddingModel: getEnvOrDefault("EMBEDDING_MODEL", DefaultEmbeddingModel),
	}

	return cfg
}

// New returns a Config with defaults, for callers that do not read the
// environment.
func New(apiKey string) *Config {
	return &Config{
		Env:            "development",
		GeminiAPIKey:   apiKey,
		MemoryPath:     "./memory",
		MaxTurns:       100,
		model:          DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
	}
}

// GetModel returns the active chat model. It is live: every call observes the
// current value, so a fallback switch takes effect on the very next request.
// Callers must not memoize the result across requests.
func (c *Config) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel changes the active chat model for all subsequent requests.
func (c *Config) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// GetEmbeddingModel returns the active embedding model. Live-queried like
// GetModel.
func (c *Config) GetEmbeddingModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingModel
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Guide     GuideConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LLMLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
	LogSQL          bool
}

type AIConfig struct {
	LLMProvider       string // "ollama" or "openai"
	GuideModel        string
	SummaryModel      string
	Temperature       float64
	OllamaBaseURL     string
	OpenAIKey         string
	OpenAIBaseURL     string
	EmbeddingProvider string // "ollama", "gemini" or "none"
	EmbeddingModel    string // empty picks the provider default
	GeminiKey         string
}

type GuideConfig struct {
	ConversationWindow   int
	PayloadMaxChars      int
	PreviewMaxRunes      int
	FetchLimit           int
	DefaultRange         string
	SemanticThreshold    float64
	LifeContextCacheTTL  time.Duration
	BreakerFailureRatio  float64
	BreakerMinRequests   uint32
	BreakerOpenTimeout   time.Duration
	DefaultEnabledAction []string
}

type TelemetryConfig struct {
	OtelEnabled  bool
	OtelEndpoint string
	ServiceName  string
	SessionTopic string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			SlowThreshold:   getEnvAsDuration("DB_SLOW_THRESHOLD", 500*time.Millisecond),
			LogSQL:          getEnvAsBool("DB_LOG_SQL", false),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			GuideModel:        getEnv("LLM_MODEL", "llama3.1"),
			SummaryModel:      getEnv("LLM_SUMMARY_MODEL", "llama3.2:1b"),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.4),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", getEnv("OLLAMA_EMBEDDING_MODEL", "")),
			GeminiKey:         getEnv("GEMINI_API_KEY", ""),
		},
		Guide: GuideConfig{
			ConversationWindow:   getEnvAsInt("GUIDE_CONVERSATION_WINDOW", 12),
			PayloadMaxChars:      getEnvAsInt("GUIDE_PAYLOAD_MAX_CHARS", 6000),
			PreviewMaxRunes:      getEnvAsInt("GUIDE_PREVIEW_MAX_RUNES", 240),
			FetchLimit:           getEnvAsInt("GUIDE_FETCH_LIMIT", 8),
			DefaultRange:         getEnv("GUIDE_DEFAULT_RANGE", "last_month"),
			SemanticThreshold:    getEnvAsFloat("GUIDE_SEMANTIC_THRESHOLD", 0.35),
			LifeContextCacheTTL:  getEnvAsDuration("GUIDE_LIFE_CONTEXT_TTL", 10*time.Minute),
			BreakerFailureRatio:  getEnvAsFloat("LLM_BREAKER_FAILURE_RATIO", 0.6),
			BreakerMinRequests:   uint32(getEnvAsInt("LLM_BREAKER_MIN_REQUESTS", 5)),
			BreakerOpenTimeout:   getEnvAsDuration("LLM_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			DefaultEnabledAction: getEnvAsList("GUIDE_ENABLED_ACTIONS"),
		},
		Telemetry: TelemetryConfig{
			OtelEnabled:  getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "devotion-guide-be"),
			SessionTopic: getEnv("GUIDE_SESSION_TOPIC", "guide.session.completed"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

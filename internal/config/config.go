package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	AdminToken  string

	// 日志
	LogLevel  string
	LogFormat string

	// Elasticsearch
	ElasticsearchURL string
	MovieIndex       string

	// 相似度缓存
	CacheDriver    string // memory | lru | redis
	CacheSize      int
	RedisURL       string
	SimilarityTTL  time.Duration
	SimilarityTopK int

	// 向量模型
	EmbeddingProvider string // ollama | gemini
	OllamaHost        string
	OllamaModel       string
	GeminiAPIKey      string
	GeminiModel       string
	EmbedStrict       bool
	SkipEmbeddings    bool

	// 向量模型熔断：连续失败多少次后熔断，0 关闭
	EmbedBreakerFailures int
	EmbedBreakerCooldown time.Duration

	// 数据导入
	DatasetPath         string
	SkipImport          bool
	ImportMaxRetries    int
	ImportRetryInterval time.Duration

	// TMDB 数据采集
	TMDBToken     string
	TMDBRateLimit int // 每秒请求数
}

// Load 加载配置
func Load() *Config {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "cinematch")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := getEnv("DATABASE_URL", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL))

	return &Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "5005"),
		DatabaseURL: dbURL,
		AdminToken:  getEnv("ADMIN_TOKEN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ElasticsearchURL: getEnv("ELASTICSEARCH_NODE", "http://localhost:9200"),
		MovieIndex:       getEnv("ELASTICSEARCH_INDEX", "movies"),

		CacheDriver:    strings.ToLower(getEnv("CACHE_DRIVER", "memory")),
		CacheSize:      getEnvInt("CACHE_SIZE", 1000),
		RedisURL:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		SimilarityTTL:  getEnvDuration("SIMILARITY_CACHE_TTL", time.Hour),
		SimilarityTopK: getEnvInt("SIMILARITY_DEFAULT_LIMIT", 10),

		EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "ollama")),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "nomic-embed-text"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbedStrict:       getEnvBool("EMBED_STRICT", true),
		SkipEmbeddings:    getEnvBool("SKIP_EMBEDDINGS", false),

		EmbedBreakerFailures: getEnvInt("EMBED_BREAKER_FAILURES", 5),
		EmbedBreakerCooldown: getEnvDuration("EMBED_BREAKER_COOLDOWN", 30*time.Second),

		DatasetPath:         getEnv("DATASET_PATH", "sample-data/movies.json"),
		SkipImport:          getEnvBool("SKIP_IMPORT", false),
		ImportMaxRetries:    getEnvInt("IMPORT_MAX_RETRIES", 5),
		ImportRetryInterval: getEnvDuration("IMPORT_RETRY_INTERVAL", 5*time.Second),

		TMDBToken:     getEnv("TMDB_API_TOKEN", ""),
		TMDBRateLimit: getEnvInt("TMDB_RATE_LIMIT", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration 支持 "5s" 这种写法，也兼容纯数字（按秒）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

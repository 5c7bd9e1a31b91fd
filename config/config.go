package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	DEFAULT_BATCH_SIZE          = 100
	DEFAULT_MAX_RETRIES         = 3
	DEFAULT_INITIAL_BACKOFF     = 1 * time.Second
	DEFAULT_MAX_BACKOFF         = 32 * time.Second
	DEFAULT_DUPLICATE_THRESHOLD = 0.95
	DEFAULT_OPENAI_MODEL        = "gpt-4o-mini"
	DEFAULT_OPENAI_TIMEOUT      = 60 * time.Second
	DEFAULT_HOSTED_TIMEOUT      = 30 * time.Second
)

type Config struct {
	Env      string
	LogLevel string

	// analysis backend: openai, hosted or lexicon
	Analyzer              string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	OpenAITimeout         time.Duration
	OpenAITemperature     float32
	HostedAnalyzerURL     string
	HostedAnalyzerTimeout time.Duration
	// comma separated: sentiment, themes, emotions
	Facets                string

	BatchSize         int
	MaxRetries        int
	Concurrency       int
	RequestsPerMinute int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BreakerThreshold  int
	BreakerTimeout    time.Duration

	DuplicateThreshold float64
	MinCommentLength   int
	TopThemes          int

	ValkeyAddress  string
	ValkeyPassword string
	ValkeyTLS      bool
	CacheTTL       time.Duration

	DynamoDBTable string
	AWSEndpoint   string
	AWSRegion     string

	KafkaBroker       string
	KafkaResultsTopic string

	MetricsAddr string
}

// Load reads the configuration from the environment. Call LoadEnv first to
// pick up the .env file for the current APP_ENV.
func Load() Config {
	return Config{
		Env:      getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Analyzer:              getEnv("ANALYZER", "openai"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:           getEnv("OPENAI_MODEL", DEFAULT_OPENAI_MODEL),
		OpenAITimeout:         getEnvDuration("OPENAI_TIMEOUT", DEFAULT_OPENAI_TIMEOUT),
		OpenAITemperature:     float32(getEnvFloat("OPENAI_TEMPERATURE", 0.2)),
		HostedAnalyzerURL:     os.Getenv("HOSTED_ANALYZER_URL"),
		HostedAnalyzerTimeout: getEnvDuration("HOSTED_ANALYZER_TIMEOUT", DEFAULT_HOSTED_TIMEOUT),
		Facets:                getEnv("FACETS", "sentiment,themes,emotions"),

		BatchSize:         getEnvInt("BATCH_SIZE", DEFAULT_BATCH_SIZE),
		MaxRetries:        getEnvInt("MAX_RETRIES", DEFAULT_MAX_RETRIES),
		Concurrency:       getEnvInt("CONCURRENCY", 1),
		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 0),
		InitialBackoff:    getEnvDuration("INITIAL_BACKOFF", DEFAULT_INITIAL_BACKOFF),
		MaxBackoff:        getEnvDuration("MAX_BACKOFF", DEFAULT_MAX_BACKOFF),
		BreakerThreshold:  getEnvInt("BREAKER_THRESHOLD", 5),
		BreakerTimeout:    getEnvDuration("BREAKER_TIMEOUT", 30*time.Second),

		DuplicateThreshold: getEnvFloat("DUPLICATE_THRESHOLD", DEFAULT_DUPLICATE_THRESHOLD),
		MinCommentLength:   getEnvInt("MIN_COMMENT_LENGTH", 3),
		TopThemes:          getEnvInt("TOP_THEMES", 10),

		ValkeyAddress:  os.Getenv("VALKEY_INIT_ADDRESS"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
		ValkeyTLS:      getEnvBool("VALKEY_TLS", false),
		CacheTTL:       getEnvDuration("CACHE_TTL", 24*time.Hour),

		DynamoDBTable: os.Getenv("DYNAMODB_RESULTS_TABLE"),
		AWSEndpoint:   os.Getenv("AWS_ENDPOINT"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),

		KafkaBroker:       os.Getenv("KAFKA_BROKER"),
		KafkaResultsTopic: getEnv("KAFKA_RESULTS_TOPIC", "feedback-analysis-results"),

		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("[Config] Invalid integer, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Int("default", defaultValue))
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("[Config] Invalid float, using default",
			slog.String("key", key),
			slog.String("value", raw))
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("[Config] Invalid boolean, using default",
			slog.String("key", key),
			slog.String("value", raw))
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("[Config] Invalid duration, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Duration("default", defaultValue))
		return defaultValue
	}
	return v
}

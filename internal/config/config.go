package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr string
	ClaimsIndex       string
	LogsIndex         string
}

// API describes the fetch-cycle service: HTTP layer, upstream source
// credentials, AI scoring, and the optional claim-published topic.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int

	CronSecret   string
	NewsAPIKey   string
	XBearerToken string
	Subreddits   []string

	GeminiAPIKey string
	GeminiModel  string

	KafkaBrokers []string
	ClaimsTopic  string

	DedupeCapacity int
	DedupeTTL      time.Duration
}

// Retention configures the fetch-log cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// LoadAPI builds the API config from environment variables. Missing
// upstream credentials are not startup errors: each component degrades
// on its own (empty yield, sentinel scores) instead of crashing.
func LoadAPI() (*API, error) {
	c := &API{
		Common:      loadCommon(),
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 20),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),

		CronSecret:   os.Getenv("CRON_SECRET"),
		NewsAPIKey:   os.Getenv("NEWS_API_KEY"),
		XBearerToken: os.Getenv("X_BEARER_TOKEN"),
		Subreddits:   splitAndTrim(getEnv("REDDIT_SUBREDDITS", "teslamotors,elonmusk")),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		ClaimsTopic:  getEnv("KAFKA_CLAIMS_TOPIC", ""),

		DedupeCapacity: getInt("DEDUPE_CAPACITY", 10000),
		DedupeTTL:      getDuration("DEDUPE_TTL", "24h"),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if len(c.Subreddits) == 0 {
		return nil, fmt.Errorf("REDDIT_SUBREDDITS must contain at least one subreddit")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("DEDUPE_CAPACITY must be positive")
	}
	if c.ClaimsTopic != "" && len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must be set when KAFKA_CLAIMS_TOPIC is set")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr: getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ClaimsIndex:       getEnv("ELASTICSEARCH_CLAIMS_INDEX", "claims"),
		LogsIndex:         getEnv("ELASTICSEARCH_LOGS_INDEX", "fetch_logs"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

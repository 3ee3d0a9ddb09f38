package config_test

import (
	"testing"
	"time"

	"github.com/TKamote/tbsnews/internal/config"
	"github.com/stretchr/testify/require"
)

func clearAPIEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ELASTICSEARCH_ADDR", "ELASTICSEARCH_CLAIMS_INDEX", "ELASTICSEARCH_LOGS_INDEX",
		"API_BIND_ADDR", "API_PAGE_SIZE", "API_MAX_PAGE_SIZE",
		"CRON_SECRET", "NEWS_API_KEY", "X_BEARER_TOKEN", "REDDIT_SUBREDDITS",
		"GEMINI_API_KEY", "GEMINI_MODEL",
		"KAFKA_BROKERS", "KAFKA_CLAIMS_TOPIC",
		"DEDUPE_CAPACITY", "DEDUPE_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAPIDefaults(t *testing.T) {
	clearAPIEnv(t)

	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "claims", cfg.ClaimsIndex)
	require.Equal(t, "fetch_logs", cfg.LogsIndex)
	require.Equal(t, "0.0.0.0:8080", cfg.BindAddr)
	require.Equal(t, 20, cfg.DefaultPage)
	require.Equal(t, 100, cfg.MaxPage)
	require.Equal(t, []string{"teslamotors", "elonmusk"}, cfg.Subreddits)
	require.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	require.Empty(t, cfg.GeminiAPIKey)
	require.Empty(t, cfg.ClaimsTopic)
	require.Equal(t, 10000, cfg.DedupeCapacity)
	require.Equal(t, 24*time.Hour, cfg.DedupeTTL)
}

func TestLoadAPIOverrides(t *testing.T) {
	clearAPIEnv(t)
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_CLAIMS_INDEX", "claims_v2")
	t.Setenv("ELASTICSEARCH_LOGS_INDEX", "logs_v2")
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("NEWS_API_KEY", "news-key")
	t.Setenv("X_BEARER_TOKEN", "x-token")
	t.Setenv("REDDIT_SUBREDDITS", "teslamotors, spacex")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("KAFKA_CLAIMS_TOPIC", "claims_published")
	t.Setenv("DEDUPE_CAPACITY", "50")
	t.Setenv("DEDUPE_TTL", "48h")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "claims_v2", cfg.ClaimsIndex)
	require.Equal(t, "logs_v2", cfg.LogsIndex)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, "s3cret", cfg.CronSecret)
	require.Equal(t, "news-key", cfg.NewsAPIKey)
	require.Equal(t, "x-token", cfg.XBearerToken)
	require.Equal(t, []string{"teslamotors", "spacex"}, cfg.Subreddits)
	require.Equal(t, "gm-key", cfg.GeminiAPIKey)
	require.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "claims_published", cfg.ClaimsTopic)
	require.Equal(t, 50, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
}

func TestLoadAPIRejectsPageSizeAboveMax(t *testing.T) {
	clearAPIEnv(t)
	t.Setenv("API_PAGE_SIZE", "300")
	t.Setenv("API_MAX_PAGE_SIZE", "100")

	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadAPIRejectsTopicWithoutBrokers(t *testing.T) {
	clearAPIEnv(t)
	t.Setenv("KAFKA_CLAIMS_TOPIC", "claims_published")

	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_LOGS_INDEX", "ret-logs")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-logs", cfg.LogsIndex)
}

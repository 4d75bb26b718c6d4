package cfg

import (
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
)

// clearOptional сбрасывает переменные, включающие необязательные интеграции.
func clearOptional(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BUCKET_NAME", "REDIS_ADDR", "POSTGRES_DB", "KAFKA_BROKERS",
		"INDEX_PROVIDER", "VECTORIZER_PROVIDER", "VECTOR_SIZE",
		"RECOMMEND_DEFAULT_K", "RECOMMEND_MAX_K", "EXTRACTION_MAX_CONCURRENT",
		"EXTRACTION_INGEST_TIMEOUT", "FETCH_ALLOWED_HOSTS", "FETCH_MAX_RETRIES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearOptional(t)

	c, err := Load(logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Index.Provider != IndexProviderQdrant {
		t.Errorf("index provider = %q", c.Index.Provider)
	}
	if c.Vectorizer.Provider != VectorizerProviderML || c.Vectorizer.Dimension != 384 {
		t.Errorf("unexpected vectorizer cfg %+v", c.Vectorizer)
	}
	if c.Qdrant.VectorSize != 384 {
		t.Errorf("qdrant vector size = %d, want 384", c.Qdrant.VectorSize)
	}
	if c.Recommend.DefaultK != 5 || c.Recommend.MaxK != 50 {
		t.Errorf("unexpected recommend cfg %+v", c.Recommend)
	}
	if c.Extraction.MaxConcurrent != 4 || c.Extraction.UnitTimeout != 90*time.Second {
		t.Errorf("unexpected extraction cfg %+v", c.Extraction)
	}
	if c.Extraction.IngestTimeout != 2*time.Minute {
		t.Errorf("ingest timeout = %s", c.Extraction.IngestTimeout)
	}
	if c.Fetch.MaxRetries != 3 || c.Fetch.Timeout != 30*time.Second || len(c.Fetch.AllowedHosts) != 0 {
		t.Errorf("unexpected fetch cfg %+v", c.Fetch)
	}
	if c.Minio != nil || c.Redis != nil || c.Db != nil || c.Kafka != nil {
		t.Errorf("optional integrations must be disabled by default")
	}
}

func TestLoadFetchAllowedHosts(t *testing.T) {
	clearOptional(t)
	t.Setenv("FETCH_ALLOWED_HOSTS", " CDN.example.com, ,images.example.org")
	t.Setenv("FETCH_MAX_RETRIES", "0")

	c, err := Load(logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	hosts := c.Fetch.AllowedHosts
	if len(hosts) != 2 || hosts[0] != "cdn.example.com" || hosts[1] != "images.example.org" {
		t.Errorf("allowed hosts = %v", hosts)
	}
	if c.Fetch.MaxRetries != 1 {
		t.Errorf("retries must be at least 1, got %d", c.Fetch.MaxRetries)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearOptional(t)
	t.Setenv("INDEX_PROVIDER", "memory")
	t.Setenv("VECTORIZER_PROVIDER", "hashing")
	t.Setenv("VECTOR_SIZE", "128")
	t.Setenv("RECOMMEND_DEFAULT_K", "3")
	t.Setenv("RECOMMEND_MAX_K", "10")
	t.Setenv("EXTRACTION_MAX_CONCURRENT", "2")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	c, err := Load(logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Index.Provider != IndexProviderMemory {
		t.Errorf("index provider = %q", c.Index.Provider)
	}
	if c.Vectorizer.Dimension != 128 || c.Qdrant.VectorSize != 128 {
		t.Errorf("dimension not propagated: %d / %d", c.Vectorizer.Dimension, c.Qdrant.VectorSize)
	}
	if c.Recommend.DefaultK != 3 || c.Recommend.MaxK != 10 {
		t.Errorf("unexpected recommend cfg %+v", c.Recommend)
	}
	if c.Extraction.MaxConcurrent != 2 {
		t.Errorf("extraction concurrency = %d", c.Extraction.MaxConcurrent)
	}
	if c.Redis == nil || c.Redis.ConfirmationTTL != 2*time.Minute {
		t.Errorf("unexpected redis cfg %+v", c.Redis)
	}
	if c.Kafka == nil || len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected kafka cfg %+v", c.Kafka)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown index provider", "INDEX_PROVIDER", "elastic"},
		{"unknown vectorizer", "VECTORIZER_PROVIDER", "bert"},
		{"non numeric vector size", "VECTOR_SIZE", "big"},
		{"default k above max", "RECOMMEND_DEFAULT_K", "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOptional(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(logger.NewNopLogger()); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("SOME_INT", "x")
	if _, err := parseIntEnv("SOME_INT", 1); !errors.Is(err, e.ErrIncorrectEnvVariable) {
		t.Errorf("expected ErrIncorrectEnvVariable, got %v", err)
	}

	t.Setenv("SOME_INT", "")
	if v, err := parseIntEnv("SOME_INT", 7); err != nil || v != 7 {
		t.Errorf("parseIntEnv default = %d, %v", v, err)
	}
}

func TestPostgresRequiresCredentials(t *testing.T) {
	clearOptional(t)
	t.Setenv("POSTGRES_DB", "journal")
	t.Setenv("POSTGRES_USER", "")

	if _, err := Load(logger.NewNopLogger()); err == nil {
		t.Fatalf("expected error when POSTGRES_USER is missing")
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geovista/osm-completeness/pkg/client"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"STATS_ENDPOINT", "MAX_RETRIES", "CONCURRENCY", "BACKOFF_SECONDS", "REDIS_URL"} {
		os.Unsetenv(key)
	}

	cfg := loadConfig()

	if cfg.endpoint != client.DefaultEndpoint {
		t.Errorf("endpoint = %q, want default", cfg.endpoint)
	}
	if cfg.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", cfg.maxRetries)
	}
	if cfg.concurrency != 10 {
		t.Errorf("concurrency = %d, want 10", cfg.concurrency)
	}
	if cfg.backoff != 60*time.Second {
		t.Errorf("backoff = %v, want 60s", cfg.backoff)
	}
	if cfg.redisURL != "" {
		t.Errorf("redisURL = %q, want empty", cfg.redisURL)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("BACKOFF_SECONDS", "2")
	t.Setenv("CONCURRENCY", "not-a-number")

	cfg := loadConfig()

	if cfg.maxRetries != 5 {
		t.Errorf("maxRetries = %d, want 5", cfg.maxRetries)
	}
	if cfg.backoff != 2*time.Second {
		t.Errorf("backoff = %v, want 2s", cfg.backoff)
	}
	if cfg.concurrency != 10 {
		t.Errorf("concurrency = %d, want default when unparseable", cfg.concurrency)
	}
}

func TestReadInput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.geojson")
	if err := os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := readInput(path)
	if err != nil {
		t.Fatalf("readInput() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("readInput() returned empty data")
	}
}

func TestWriteOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.geojson")

	if err := writeOutput(path, []byte(`{}`)); err != nil {
		t.Fatalf("writeOutput() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{}` {
		t.Errorf("output = %q, want {}", data)
	}
}

func TestConnectRedis_EmptyURL(t *testing.T) {
	if rdb := connectRedis(""); rdb != nil {
		t.Error("connectRedis(\"\") should disable caching")
	}
}

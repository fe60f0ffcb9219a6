// Command osm-stats enriches a GeoJSON FeatureCollection with OSM
// data-completeness statistics and writes the enriched document back out.
//
// Usage:
//
//	osm-stats [-o enriched.geojson] input.geojson
//	cat input.geojson | osm-stats
//
// Configuration comes from the environment; see loadConfig.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/geovista/osm-completeness/pkg/client"
	"github.com/geovista/osm-completeness/pkg/enrich"
	"github.com/geovista/osm-completeness/pkg/geojson"
	"github.com/geovista/osm-completeness/pkg/logging"
	"github.com/geovista/osm-completeness/pkg/progress"
)

// config is the CLI configuration assembled from the environment.
type config struct {
	endpoint    string
	maxRetries  int
	concurrency int
	backoff     time.Duration
	redisURL    string
	cacheTTL    time.Duration
	logLevel    string
	logPretty   bool
}

// loadConfig reads configuration from the environment, falling back to the
// library defaults.
func loadConfig() config {
	return config{
		endpoint:    getEnv("STATS_ENDPOINT", client.DefaultEndpoint),
		maxRetries:  getEnvInt("MAX_RETRIES", 3),
		concurrency: getEnvInt("CONCURRENCY", 10),
		backoff:     time.Duration(getEnvInt("BACKOFF_SECONDS", 60)) * time.Second,
		redisURL:    getEnv("REDIS_URL", ""),
		cacheTTL:    time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		logLevel:    getEnv("LOG_LEVEL", "info"),
		logPretty:   getEnv("LOG_PRETTY", "") != "",
	}
}

func main() {
	output := flag.String("o", "", "output path (default: stdout)")
	flag.Parse()

	cfg := loadConfig()
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.logLevel),
		Pretty: cfg.logPretty,
		Output: os.Stderr,
	})

	input, err := readInput(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read input")
	}

	// Validation happens before any fetch; a malformed document never
	// triggers partial processing.
	fc, err := geojson.Decode(input)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid GeoJSON")
	}

	clientCfg := client.DefaultConfig()
	clientCfg.Endpoint = cfg.endpoint
	clientCfg.MaxRetries = cfg.maxRetries
	clientCfg.Backoff = cfg.backoff
	clientCfg.CacheTTL = cfg.cacheTTL
	clientCfg.Redis = connectRedis(cfg.redisURL)

	statsClient, err := client.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	enricher := enrich.NewEnricher(statsClient, enrich.Config{
		Concurrency: cfg.concurrency,
	})

	reporter := progress.NewChannelReporter(16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range reporter.Updates() {
			switch update.Kind {
			case progress.KindWarning:
				log.Warn().Msg(update.Message)
			default:
				log.Info().Int("percent", update.Percent).Msg("Enrichment progress")
			}
		}
	}()

	enricher.Enrich(context.Background(), fc, reporter)
	reporter.Close()
	<-drained

	data, err := geojson.Encode(fc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}

	if err := writeOutput(*output, data); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

// readInput reads the document from the given path, or from stdin when the
// path is empty or "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeOutput writes the enriched document to the given path, or stdout when
// the path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// connectRedis opens the optional cache backend. A missing or unreachable
// Redis only disables caching, it never fails the run.
func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: url})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Str("redis", url).Msg("Redis unreachable, caching disabled")
		rdb.Close()
		return nil
	}

	log.Info().Str("redis", url).Msg("Response caching enabled")
	return rdb
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: %v\n", key, value, err)
		return defaultValue
	}
	return n
}

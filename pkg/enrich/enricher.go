// Package enrich orchestrates the fan-out of per-feature stats requests
// across a bounded worker pool and merges flattened results back onto the
// originating features.
package enrich

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/geovista/osm-completeness/pkg/flatten"
	"github.com/geovista/osm-completeness/pkg/geojson"
	"github.com/geovista/osm-completeness/pkg/progress"
)

// Prometheus metrics for enrichment runs.
var (
	enrichFeaturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrich_features_total",
		Help: "Features processed by outcome (enriched, unavailable)",
	}, []string{"outcome"})

	enrichDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrich_duration_seconds",
		Help:    "Duration of whole enrichment runs in seconds",
		Buckets: []float64{1, 5, 15, 60, 300, 900},
	})
)

// Config holds orchestrator configuration.
type Config struct {
	// Concurrency is the maximum number of in-flight stats requests.
	Concurrency int
}

// DefaultConfig returns safe defaults for the public stats service.
func DefaultConfig() Config {
	return Config{
		Concurrency: 10,
	}
}

// StatsFetcher is the single-geometry fetch the orchestrator parallelizes.
// *client.Client implements it.
type StatsFetcher interface {
	FetchStats(ctx context.Context, geometry json.RawMessage, rep progress.Reporter) (map[string]any, error)
}

// Enricher fans one stats request per feature out over a worker pool.
type Enricher struct {
	fetcher StatsFetcher
	config  Config
}

// NewEnricher creates an enricher.
func NewEnricher(fetcher StatsFetcher, config Config) *Enricher {
	if config.Concurrency <= 0 {
		config.Concurrency = 10
	}
	return &Enricher{
		fetcher: fetcher,
		config:  config,
	}
}

// event is one message from a worker to the draining loop. Warning events
// carry retry messages from fetch attempts; completion events carry the
// outcome for one feature. Routing both through a single channel serializes
// every Reporter call onto the draining goroutine.
type event struct {
	completed bool
	index     int
	stats     map[string]any
	err       error
	warning   string
}

// warningForwarder turns reporter calls made inside a worker into events.
type warningForwarder struct {
	events chan<- event
}

func (f warningForwarder) Progress(int) {}

func (f warningForwarder) Warning(message string) {
	f.events <- event{warning: message}
}

// Enrich fetches statistics for every feature in the collection, flattens
// each successful response, and merges it into that feature's properties.
// The collection is mutated in place and returned.
//
// Results are handled in completion order. Progress is reported after every
// completed fetch regardless of outcome, is non-decreasing, and always ends
// at exactly 100. A feature whose fetch fails keeps its original properties;
// no failure aborts the batch.
func (e *Enricher) Enrich(ctx context.Context, fc *geojson.FeatureCollection, rep progress.Reporter) *geojson.FeatureCollection {
	if rep == nil {
		rep = progress.NopReporter{}
	}

	start := time.Now()
	defer func() {
		enrichDuration.Observe(time.Since(start).Seconds())
	}()

	total := len(fc.Features)
	if total == 0 {
		rep.Progress(100)
		return fc
	}

	log.Info().
		Int("features", total).
		Int("concurrency", e.config.Concurrency).
		Msg("Starting enrichment")

	jobs := make(chan int, total)
	events := make(chan event, e.config.Concurrency)

	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	workers := e.config.Concurrency
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go e.worker(ctx, jobs, events, fc, &wg)
	}

	// Close the event stream once every task has finished, on every path.
	go func() {
		wg.Wait()
		close(events)
	}()

	completed := 0
	enriched := 0
	lastPercent := -1
	for ev := range events {
		if !ev.completed {
			rep.Warning(ev.warning)
			continue
		}

		if ev.err == nil {
			mergeProperties(fc.Features[ev.index], ev.stats)
			enriched++
			enrichFeaturesTotal.WithLabelValues("enriched").Inc()
		} else {
			// Silent degradation: the feature keeps its original properties.
			enrichFeaturesTotal.WithLabelValues("unavailable").Inc()
			log.Debug().
				Err(ev.err).
				Int("feature", ev.index).
				Msg("No statistics for feature")
		}

		completed++
		percent := completionPercent(completed, total)
		if percent != lastPercent {
			rep.Progress(percent)
			lastPercent = percent
		}
	}

	if lastPercent != 100 {
		rep.Progress(100)
	}

	log.Info().
		Int("features", total).
		Int("enriched", enriched).
		Int("unavailable", total-enriched).
		Dur("duration", time.Since(start)).
		Msg("Enrichment complete")

	return fc
}

// worker drains feature indices from jobs and posts one completion event per
// feature. It never writes to the collection; merging happens on the
// draining goroutine so no two goroutines touch the same feature.
func (e *Enricher) worker(ctx context.Context, jobs <-chan int, events chan<- event, fc *geojson.FeatureCollection, wg *sync.WaitGroup) {
	defer wg.Done()

	forwarder := warningForwarder{events: events}
	for idx := range jobs {
		stats, err := e.fetcher.FetchStats(ctx, fc.Features[idx].Geometry, forwarder)
		events <- event{
			completed: true,
			index:     idx,
			stats:     stats,
			err:       err,
		}
	}
}

// mergeProperties flattens stats and merges every key into the feature's
// properties. Fetched keys win on collision with existing properties.
func mergeProperties(feature *geojson.Feature, stats map[string]any) {
	flat := flatten.Flatten(stats)
	if len(flat) == 0 {
		return
	}
	if feature.Properties == nil {
		feature.Properties = make(map[string]any, len(flat))
	}
	for key, value := range flat {
		feature.Properties[key] = value
	}
}

// completionPercent converts a completion count into a clamped percentage.
func completionPercent(completed, total int) int {
	percent := int(math.Round(float64(completed) / float64(total) * 100))
	if percent > 100 {
		percent = 100
	}
	return percent
}

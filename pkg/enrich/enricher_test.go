package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geovista/osm-completeness/pkg/geojson"
	"github.com/geovista/osm-completeness/pkg/progress"
)

// fetcherFunc adapts a function to the StatsFetcher interface.
type fetcherFunc func(ctx context.Context, geometry json.RawMessage, rep progress.Reporter) (map[string]any, error)

func (f fetcherFunc) FetchStats(ctx context.Context, geometry json.RawMessage, rep progress.Reporter) (map[string]any, error) {
	return f(ctx, geometry, rep)
}

// recordingReporter collects all updates; safe because the orchestrator
// serializes reporter calls onto one goroutine.
type recordingReporter struct {
	percents []int
	warnings []string
}

func (r *recordingReporter) Progress(percent int) {
	r.percents = append(r.percents, percent)
}

func (r *recordingReporter) Warning(message string) {
	r.warnings = append(r.warnings, message)
}

// makeCollection builds a collection of n point features, each carrying an
// "id" property and a distinct geometry.
func makeCollection(n int) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Type: "FeatureCollection"}
	for i := 0; i < n; i++ {
		fc.Features = append(fc.Features, &geojson.Feature{
			Type:       "Feature",
			Properties: map[string]any{"id": i},
			Geometry:   json.RawMessage(fmt.Sprintf(`{"type":"Point","coordinates":[%d,0]}`, i)),
		})
	}
	return fc
}

func TestEnrich_MergesFlattenedStats(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, _ json.RawMessage, _ progress.Reporter) (map[string]any, error) {
		return map[string]any{
			"summary": map[string]any{"buildings": 42.0},
			"metrics": []any{1.0, 2.0},
		}, nil
	})

	fc := makeCollection(3)
	e := NewEnricher(fetcher, DefaultConfig())
	got := e.Enrich(context.Background(), fc, nil)

	if got != fc {
		t.Error("Enrich() must return the same collection it was given")
	}

	for i, f := range fc.Features {
		if f.Properties["id"] != i {
			t.Errorf("feature %d lost its original properties: %v", i, f.Properties)
		}
		if f.Properties["summary_buildings"] != 42.0 {
			t.Errorf("feature %d: summary_buildings = %v, want 42", i, f.Properties["summary_buildings"])
		}
		if f.Properties["metrics_0"] != 1.0 || f.Properties["metrics_1"] != 2.0 {
			t.Errorf("feature %d: array stats not flattened: %v", i, f.Properties)
		}
	}
}

func TestEnrich_PreservesOrderAndGeometry(t *testing.T) {
	// Random per-feature delays force out-of-order completion.
	fetcher := fetcherFunc(func(_ context.Context, _ json.RawMessage, _ progress.Reporter) (map[string]any, error) {
		time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
		return map[string]any{"ok": true}, nil
	})

	const n = 25
	fc := makeCollection(n)
	wantGeometries := make([]string, n)
	for i, f := range fc.Features {
		wantGeometries[i] = string(f.Geometry)
	}

	NewEnricher(fetcher, Config{Concurrency: 8}).Enrich(context.Background(), fc, nil)

	if len(fc.Features) != n {
		t.Fatalf("Features = %d, want %d", len(fc.Features), n)
	}
	for i, f := range fc.Features {
		if f.Properties["id"] != i {
			t.Errorf("feature %d out of order: id = %v", i, f.Properties["id"])
		}
		if string(f.Geometry) != wantGeometries[i] {
			t.Errorf("feature %d geometry changed", i)
		}
	}
}

func TestEnrich_ProgressMonotonicEndsAt100(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, _ json.RawMessage, _ progress.Reporter) (map[string]any, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return map[string]any{"ok": true}, nil
	})

	for _, n := range []int{1, 3, 7, 50} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			rep := &recordingReporter{}
			NewEnricher(fetcher, DefaultConfig()).Enrich(context.Background(), makeCollection(n), rep)

			if len(rep.percents) == 0 {
				t.Fatal("no progress reported")
			}
			prev := -1
			for _, p := range rep.percents {
				if p < prev {
					t.Errorf("progress decreased: %v", rep.percents)
					break
				}
				if p > 100 {
					t.Errorf("progress exceeded 100: %v", rep.percents)
					break
				}
				prev = p
			}
			if final := rep.percents[len(rep.percents)-1]; final != 100 {
				t.Errorf("final progress = %d, want 100", final)
			}
		})
	}
}

func TestEnrich_EmptyCollection(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, _ json.RawMessage, _ progress.Reporter) (map[string]any, error) {
		t.Error("no fetch should happen for an empty collection")
		return nil, nil
	})

	rep := &recordingReporter{}
	NewEnricher(fetcher, DefaultConfig()).Enrich(context.Background(), makeCollection(0), rep)

	if len(rep.percents) != 1 || rep.percents[0] != 100 {
		t.Errorf("progress = %v, want single 100", rep.percents)
	}
}

func TestEnrich_TotalRemoteFailure(t *testing.T) {
	notAvailable := errors.New("stats not available")
	fetcher := fetcherFunc(func(_ context.Context, _ json.RawMessage, _ progress.Reporter) (map[string]any, error) {
		return nil, notAvailable
	})

	fc := makeCollection(5)
	rep := &recordingReporter{}
	NewEnricher(fetcher, DefaultConfig()).Enrich(context.Background(), fc, rep)

	for i, f := range fc.Features {
		if len(f.Properties) != 1 || f.Properties["id"] != i {
			t.Errorf("feature %d properties changed: %v", i, f.Properties)
		}
	}
	if final := rep.percents[len(rep.percents)-1]; final != 100 {
		t.Errorf("final progress = %d, want 100 despite failures", final)
	}
}

func TestEnrich_FetchedKeyWinsCollision(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, _ json.RawMessage, _ progress.Reporter) (map[string]any, error) {
		return map[string]any{"summary": map[string]any{"buildings": 9.0}}, nil
	})

	fc := makeCollection(1)
	fc.Features[0].Properties["summary_buildings"] = "stale"

	NewEnricher(fetcher, DefaultConfig()).Enrich(context.Background(), fc, nil)

	if got := fc.Features[0].Properties["summary_buildings"]; got != 9.0 {
		t.Errorf("summary_buildings = %v, want fetched value 9", got)
	}
}

func TestEnrich_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int64
	fetcher := fetcherFunc(func(_ context.Context, _ json.RawMessage, _ progress.Reporter) (map[string]any, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return map[string]any{"ok": true}, nil
	})

	NewEnricher(fetcher, Config{Concurrency: 3}).Enrich(context.Background(), makeCollection(20), nil)

	if got := peak.Load(); got > 3 {
		t.Errorf("peak in-flight = %d, want <= 3", got)
	}
}

func TestEnrich_ForwardsFetchWarnings(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, _ json.RawMessage, rep progress.Reporter) (map[string]any, error) {
		rep.Warning("rate limited, retrying")
		return map[string]any{"ok": true}, nil
	})

	rep := &recordingReporter{}
	NewEnricher(fetcher, DefaultConfig()).Enrich(context.Background(), makeCollection(4), rep)

	if len(rep.warnings) != 4 {
		t.Errorf("warnings = %d, want one per feature", len(rep.warnings))
	}
}

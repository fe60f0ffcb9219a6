// Package geojson provides the minimal GeoJSON model needed for enrichment:
// a feature collection whose geometries are kept as raw JSON so that any
// geometry type round-trips byte-for-byte.
package geojson

import (
	"encoding/json"
	"fmt"
)

// FeatureCollection is a decoded GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// Feature is a single GeoJSON feature. Geometry is preserved verbatim;
// Properties is the mutable attribute mapping that enrichment augments.
type Feature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// Decode parses and validates a GeoJSON document. It rejects invalid JSON,
// documents that are not a FeatureCollection, and features without a
// geometry. Validation happens before any enrichment work starts, so a
// malformed document never triggers partial processing.
func Decode(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("invalid GeoJSON: type %q is not a FeatureCollection", fc.Type)
	}

	for i, f := range fc.Features {
		if f == nil {
			return nil, fmt.Errorf("invalid GeoJSON: feature %d is null", i)
		}
		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			return nil, fmt.Errorf("invalid GeoJSON: feature %d has no geometry", i)
		}
	}

	return &fc, nil
}

// Encode serializes the collection back to GeoJSON bytes.
func Encode(fc *FeatureCollection) ([]byte, error) {
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode GeoJSON: %w", err)
	}
	return data, nil
}

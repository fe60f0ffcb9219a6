// Package flatten converts nested JSON-like values into a single-level
// mapping from path strings to scalar values.
package flatten

import (
	"strconv"
	"strings"
)

// Separator joins path segments in flattened keys.
const Separator = "_"

// Flatten walks an arbitrarily nested value (as produced by json.Unmarshal
// into any) and records every leaf scalar under its root-to-leaf path,
// segments joined with Separator. Objects contribute their keys as segments,
// arrays contribute element indices.
//
//	Flatten(map[string]any{"a": map[string]any{"b": 1}, "c": []any{10, 20}})
//	// => {"a_b": 1, "c_0": 10, "c_1": 20}
//
// The input must be acyclic, which always holds for JSON-decoded data. If two
// distinct paths collapse to the same key (only possible with empty object
// keys), the later-visited value overwrites the earlier one.
func Flatten(value any) map[string]any {
	out := make(map[string]any)
	walk(value, "", out)
	return out
}

func walk(value any, prefix string, out map[string]any) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			walk(child, prefix+key+Separator, out)
		}
	case []any:
		for i, child := range v {
			walk(child, prefix+strconv.Itoa(i)+Separator, out)
		}
	default:
		out[strings.TrimSuffix(prefix, Separator)] = value
	}
}

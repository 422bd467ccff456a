// Package params defines the JSON-like value domain used for agent source
// parameters, along with the deep structural equality the job matcher is built on.
//
// Values are restricted to what survives a JSON round trip: nil, bool, float64,
// string, []any, and map[string]any. Equality is structural, not reference-based,
// and does not depend on map insertion order.
package params

import (
	"encoding/json"
	"fmt"
)

// Map is a string-keyed parameter map configuring a source agent.
type Map map[string]any

// Equal reports whether two parameter maps are structurally equal.
// It compares over the union of keys from both sides: a key present on one side
// and absent on the other makes the maps unequal, even when the present value is
// a zero value. A key present with JSON null is distinct from an absent key.
func Equal(a, b Map) bool {
	for name, av := range a {
		bv, ok := b[name]
		if !ok {
			return false
		}
		if !ValueEqual(av, bv) {
			return false
		}
	}
	for name := range b {
		if _, ok := a[name]; !ok {
			return false
		}
	}
	return true
}

// ValueEqual reports deep structural equality of two JSON-like values.
// Numbers compare as float64 regardless of the Go type they were built with;
// values are normalized before comparison so a literal int in Go code compares
// equal to the float64 produced by decoding JSONB.
func ValueEqual(a, b any) bool {
	return valueEqual(Normalize(a), Normalize(b))
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, exists := bv[k]
			if !exists || !valueEqual(v, bvv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Normalize canonicalizes a value into the JSON-like domain by round-tripping it
// through encoding/json. Values already in the domain pass through without an
// allocation-heavy re-encode. Unencodable values normalize to nil.
func Normalize(v any) any {
	switch tv := v.(type) {
	case nil, bool, float64, string:
		return tv
	case int:
		return float64(tv)
	case int32:
		return float64(tv)
	case int64:
		return float64(tv)
	case float32:
		return float64(tv)
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return tv.String()
		}
		return f
	case []any:
		out := make([]any, len(tv))
		for i := range tv {
			out[i] = Normalize(tv[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = Normalize(val)
		}
		return out
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var decoded any
		if err := json.Unmarshal(b, &decoded); err != nil {
			return nil
		}
		return decoded
	}
}

// NormalizeMap returns a normalized copy of m. A nil map normalizes to an empty
// map so downstream comparisons never distinguish nil from empty.
func NormalizeMap(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

// Clone deep-copies a parameter map. Jobs copy rule parameters by value at
// creation time; later mutation of the rule's map must not leak into the job.
func Clone(m Map) Map {
	if m == nil {
		return Map{}
	}
	return NormalizeMap(m)
}

// FromJSON decodes a JSON object into a Map.
func FromJSON(raw json.RawMessage) (Map, error) {
	if len(raw) == 0 {
		return Map{}, nil
	}
	var m Map
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}

// ToJSON encodes a Map as a JSON object. A nil map encodes as {}.
func ToJSON(m Map) (json.RawMessage, error) {
	if m == nil {
		m = Map{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return json.RawMessage(b), nil
}

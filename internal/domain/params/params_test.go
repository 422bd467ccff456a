package params

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	t.Run("identical maps", func(t *testing.T) {
		a := Map{"url": "http://x", "limit": float64(10)}
		b := Map{"url": "http://x", "limit": float64(10)}
		assert.True(t, Equal(a, b))
	})

	t.Run("insertion order does not matter", func(t *testing.T) {
		a := Map{}
		a["url"] = "http://x"
		a["mode"] = "full"
		b := Map{}
		b["mode"] = "full"
		b["url"] = "http://x"
		assert.True(t, Equal(a, b))
		assert.True(t, Equal(b, a))
	})

	t.Run("missing key on either side", func(t *testing.T) {
		a := Map{"url": "http://x", "timeout": float64(0)}
		b := Map{"url": "http://x"}
		assert.False(t, Equal(a, b))
		assert.False(t, Equal(b, a))
	})

	t.Run("zero value is not the same as absent", func(t *testing.T) {
		a := Map{"retries": float64(0)}
		b := Map{}
		assert.False(t, Equal(a, b))
	})

	t.Run("null is not the same as absent", func(t *testing.T) {
		a := Map{"proxy": nil}
		b := Map{}
		assert.False(t, Equal(a, b))
		assert.False(t, Equal(b, a))
	})

	t.Run("null equals null", func(t *testing.T) {
		assert.True(t, Equal(Map{"proxy": nil}, Map{"proxy": nil}))
	})

	t.Run("differing values", func(t *testing.T) {
		a := Map{"url": "http://x"}
		b := Map{"url": "http://y"}
		assert.False(t, Equal(a, b))
	})

	t.Run("nested structures", func(t *testing.T) {
		a := Map{
			"headers": map[string]any{"accept": "application/json", "x-tag": []any{"a", "b"}},
			"follow":  true,
		}
		b := Map{
			"follow":  true,
			"headers": map[string]any{"x-tag": []any{"a", "b"}, "accept": "application/json"},
		}
		assert.True(t, Equal(a, b))

		b["headers"].(map[string]any)["x-tag"] = []any{"b", "a"}
		assert.False(t, Equal(a, b), "list order is significant")
	})

	t.Run("go ints compare equal to decoded floats", func(t *testing.T) {
		var decoded Map
		require.NoError(t, json.Unmarshal([]byte(`{"limit": 10}`), &decoded))
		assert.True(t, Equal(Map{"limit": 10}, decoded))
	})

	t.Run("empty maps are equal", func(t *testing.T) {
		assert.True(t, Equal(Map{}, Map{}))
		assert.True(t, Equal(nil, Map{}))
	})
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"strings", "x", "x", true},
		{"string vs number", "1", float64(1), false},
		{"bools", true, true, true},
		{"bool vs nil", false, nil, false},
		{"numbers across go types", int64(3), float64(3), true},
		{"nested list", []any{float64(1), "a"}, []any{float64(1), "a"}, true},
		{"list length mismatch", []any{"a"}, []any{"a", "b"}, false},
		{"nil vs empty map", nil, map[string]any{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValueEqual(tt.a, tt.b))
		})
	}
}

func TestClone(t *testing.T) {
	orig := Map{
		"url":     "http://x",
		"headers": map[string]any{"accept": "text/html"},
	}
	cp := Clone(orig)
	require.True(t, Equal(orig, cp))

	// Mutating the original must not affect the clone.
	orig["headers"].(map[string]any)["accept"] = "application/json"
	orig["url"] = "http://y"
	assert.Equal(t, "http://x", cp["url"])
	assert.Equal(t, "text/html", cp["headers"].(map[string]any)["accept"])
}

func TestCloneNil(t *testing.T) {
	cp := Clone(nil)
	require.NotNil(t, cp)
	assert.Empty(t, cp)
}

func TestJSONRoundTrip(t *testing.T) {
	m, err := FromJSON(json.RawMessage(`{"url":"http://x","depth":2}`))
	require.NoError(t, err)
	assert.Equal(t, "http://x", m["url"])
	assert.InDelta(t, 2.0, m["depth"], 0)

	raw, err := ToJSON(m)
	require.NoError(t, err)
	back, err := FromJSON(raw)
	require.NoError(t, err)
	assert.True(t, Equal(m, back))
}

func TestFromJSONEmpty(t *testing.T) {
	m, err := FromJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = FromJSON(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestFromJSONInvalid(t *testing.T) {
	_, err := FromJSON(json.RawMessage(`[1,2]`))
	require.Error(t, err)
}

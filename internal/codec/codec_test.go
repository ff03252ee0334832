package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string         `json:"name"`
	When  time.Time      `json:"when"`
	Data  map[string]any `json:"data,omitempty"`
	Value any            `json:"value"`
}

func TestCBORRoundTrip(t *testing.T) {
	c := New()
	when := time.Date(2024, 5, 1, 10, 30, 0, 123, time.UTC)
	in := sample{
		Name:  "rent",
		When:  when,
		Data:  map[string]any{"nested": map[string]any{"amount": 12.5}},
		Value: []any{"a", "b"},
	}

	raw, err := c.Marshal(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, c.Unmarshal(raw, &out))
	assert.Equal(t, "rent", out.Name)
	assert.True(t, when.Equal(out.When))
	assert.Equal(t, map[string]any{"amount": 12.5}, out.Data["nested"])
	assert.Equal(t, []any{"a", "b"}, out.Value)
}

func TestCBORGenericMaps(t *testing.T) {
	c := New()
	raw, err := c.Marshal(map[string]any{"a": map[string]any{"b": true}})
	require.NoError(t, err)

	var out any
	require.NoError(t, c.Unmarshal(raw, &out))
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.IsType(t, map[string]any{}, m["a"])
}

func TestCBORStreams(t *testing.T) {
	c := New()
	buf := &bytes.Buffer{}
	require.NoError(t, c.NewEncoder(buf).Encode("one"))
	require.NoError(t, c.NewEncoder(buf).Encode("two"))

	dec := c.NewDecoder(buf)
	var a, b string
	require.NoError(t, dec.Decode(&a))
	require.NoError(t, dec.Decode(&b))
	assert.Equal(t, []string{"one", "two"}, []string{a, b})
}

package sqlstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/pkg/docstore"
)

func TestJSONMapValue(t *testing.T) {
	v, err := JSONMap{"amount": 12.5}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":12.5}`, string(v.([]byte)))

	v, err = JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(v.([]byte)))
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"a":{"b":1}}`)))
	assert.Equal(t, map[string]any{"b": float64(1)}, m["a"])

	require.NoError(t, m.Scan(`{"c":"d"}`))
	assert.Equal(t, JSONMap{"c": "d"}, m)

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))
	assert.Error(t, m.Scan([]byte("not json")))
}

func TestRowDocument(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	d := docstore.Document{
		ID:         "e1",
		Path:       docstore.MustPath("users/u1/expenses/e1"),
		Data:       map[string]any{"amount": 3.0},
		CreateTime: created,
		UpdateTime: updated,
	}

	r := rowOf(d)
	assert.Equal(t, "users/u1/expenses", r.Collection)
	assert.Equal(t, "e1", r.ID)
	assert.Equal(t, "documents", r.TableName())

	assert.Equal(t, d, r.document())
}

package live_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/live"
)

func TestMemo(t *testing.T) {
	memo := live.NewMemo()
	q := docstore.Collection(expenses).Where("amount", docstore.OpGreater, 10)

	h := memo.Handle(q)
	assert.True(t, h.Memoized())
	assert.Same(t, h, memo.Handle(docstore.Collection(expenses).Where("amount", docstore.OpGreater, 10)))
	assert.NotSame(t, h, memo.Handle(docstore.Collection(expenses)))
	assert.Equal(t, expenses, h.Path())
	assert.Equal(t, q.String(), h.String())

	memo.Forget(expenses)
	assert.Equal(t, 0, memo.Len())
	assert.NotSame(t, h, memo.Handle(q))

	assert.False(t, live.NewHandle(q).Memoized())
}

func TestMemoStructValues(t *testing.T) {
	memo := live.NewMemo()
	query := func() *docstore.Query {
		return docstore.Collection(expenses).
			Where("amount", docstore.OpGreater, decimal.RequireFromString("49.99")).
			Where("date", docstore.OpGreaterEqual, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	}

	h := memo.Handle(query())
	for i := 0; i < 10; i++ {
		assert.Same(t, h, memo.Handle(query()))
	}
	assert.Equal(t, 1, memo.Len())
	assert.Equal(t, query().String(), h.String())

	other := memo.Handle(docstore.Collection(expenses).
		Where("amount", docstore.OpGreater, decimal.RequireFromString("50")).
		Where("date", docstore.OpGreaterEqual, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.NotSame(t, h, other)
	assert.Equal(t, 2, memo.Len())
}

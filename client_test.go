package fintrack_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack"
	"github.com/fintrack/fintrack/pkg/auth"
	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/errbus"
	"github.com/fintrack/fintrack/pkg/finance"
	"github.com/fintrack/fintrack/pkg/live"
	"github.com/fintrack/fintrack/pkg/logger"
)

type toasts struct {
	mu  sync.Mutex
	got []errbus.Toast
}

func (r *toasts) sink(t errbus.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, t)
}

func (r *toasts) all() []errbus.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]errbus.Toast(nil), r.got...)
}

func newClient(t *testing.T) (*fintrack.Client, *toasts) {
	t.Helper()
	rec := &toasts{}
	c, err := fintrack.New(context.Background(), nil,
		fintrack.WithLogger(logger.Nop()),
		fintrack.WithToastSink(rec.sink),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, c.Close())
	})
	return c, rec
}

func signIn(t *testing.T, c *fintrack.Client) *auth.User {
	t.Helper()
	u, err := c.Auth.(*auth.Local).SignInAnonymously(context.Background())
	require.NoError(t, err)
	return u
}

func TestAddAndWatch(t *testing.T) {
	c, rec := newClient(t)
	ctx := context.Background()

	expenses := fintrack.WatchUser[finance.Expense](c, finance.Expenses, func(q *docstore.Query) *docstore.Query {
		return q.OrderBy("date", docstore.Asc)
	})
	defer expenses.Close()
	assert.False(t, expenses.State().Loading)

	u := signIn(t, c)
	assert.Equal(t, docstore.UserCollection(u.UID, finance.Expenses), expenses.Path())

	task, err := c.Add(ctx, finance.Expenses, finance.Expense{
		Description: "coffee",
		Amount:      finance.NewMoney(decimal.RequireFromString("3.20")),
		Category:    "food",
		Date:        time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, task.Wait(ctx))

	require.Eventually(t, func() bool {
		return len(expenses.State().Data) == 1
	}, time.Second, 5*time.Millisecond)
	got := expenses.State().Data[0]
	assert.Equal(t, task.Path().ID(), got.ID)
	assert.Equal(t, "coffee", got.Doc.Description)
	assert.True(t, got.Doc.Amount.Equal(decimal.RequireFromString("3.2")))

	del, err := c.Delete(ctx, finance.Expenses, got.ID)
	require.NoError(t, err)
	require.NoError(t, del.Wait(ctx))
	require.Eventually(t, func() bool {
		return len(expenses.State().Data) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestExpensesByAmount(t *testing.T) {
	c, rec := newClient(t)
	ctx := context.Background()
	signIn(t, c)

	for desc, amount := range map[string]string{"rent": "100", "groceries": "20", "coffee": "3", "books": "9.99"} {
		task, err := c.Add(ctx, finance.Expenses, finance.Expense{
			Description: desc,
			Amount:      finance.NewMoney(decimal.RequireFromString(amount)),
			Category:    "misc",
			Date:        time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		require.NoError(t, task.Wait(ctx))
	}

	descriptions := func(col *live.UserCollection[finance.Expense]) []string {
		var out []string
		for _, e := range col.State().Data {
			out = append(out, e.Doc.Description)
		}
		return out
	}

	ordered := fintrack.WatchUser[finance.Expense](c, finance.Expenses, func(q *docstore.Query) *docstore.Query {
		return q.OrderBy("amount", docstore.Desc)
	})
	defer ordered.Close()
	require.Eventually(t, func() bool {
		return len(ordered.State().Data) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"rent", "groceries", "books", "coffee"}, descriptions(ordered))

	large := fintrack.WatchUser[finance.Expense](c, finance.Expenses, func(q *docstore.Query) *docstore.Query {
		return q.Where("amount", docstore.OpGreater, finance.NewMoney(decimal.NewFromInt(50))).OrderBy("amount", docstore.Asc)
	})
	defer large.Close()
	require.Eventually(t, func() bool {
		return len(large.State().Data) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"rent"}, descriptions(large))

	cheap := fintrack.WatchUser[finance.Expense](c, finance.Expenses, func(q *docstore.Query) *docstore.Query {
		return q.Where("amount", docstore.OpLess, 10).OrderBy("amount", docstore.Asc)
	})
	defer cheap.Close()
	require.Eventually(t, func() bool {
		return len(cheap.State().Data) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"coffee", "books"}, descriptions(cheap))
	assert.Empty(t, rec.all())
}

func TestWritesNeedSignIn(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, finance.Incomes, finance.Income{Source: "salary"})
	assert.ErrorIs(t, err, constants.ErrNotSignedIn)
	_, err = c.Update(ctx, finance.Incomes, "i1", map[string]any{"amount": 1})
	assert.ErrorIs(t, err, constants.ErrNotSignedIn)
	_, err = c.UserPath(finance.Incomes)
	assert.ErrorIs(t, err, constants.ErrNotSignedIn)
}

func TestUpdateWithTransform(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	signIn(t, c)

	set, err := c.Set(ctx, finance.SavingsGoals, "trip", map[string]any{"name": "trip", "target": 500, "saved": 100})
	require.NoError(t, err)
	require.NoError(t, set.Wait(ctx))

	upd, err := c.Update(ctx, finance.SavingsGoals, "trip", map[string]any{"saved": docstore.Increment(50)})
	require.NoError(t, err)
	require.NoError(t, upd.Wait(ctx))

	p, err := c.UserPath(finance.SavingsGoals)
	require.NoError(t, err)
	doc, err := c.Store.Get(c.Context(ctx), p.Child("trip"))
	require.NoError(t, err)
	assert.EqualValues(t, 150, doc.Data["saved"])
}

func TestDeniedWriteBecomesToast(t *testing.T) {
	c, rec := newClient(t)
	ctx := context.Background()
	signIn(t, c)

	other := docstore.UserCollection("someone-else", finance.Expenses)
	task := c.Mutator.AddDocumentNonBlocking(c.Context(ctx), other, map[string]any{"amount": 1})
	assert.ErrorIs(t, task.Wait(ctx), docstore.ErrPermissionDenied)

	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, errbus.Toast{
		Title:       "Permission denied",
		Description: "Could not create users/someone-else/expenses.",
		Destructive: true,
	}, rec.all()[0])
}

func TestDeniedWatchReportsListError(t *testing.T) {
	c, rec := newClient(t)
	signIn(t, c)

	other := docstore.UserCollection("someone-else", finance.Debts)
	debts := fintrack.Watch[finance.Debt](c, docstore.Collection(other))
	defer debts.Close()

	require.Eventually(t, func() bool {
		return debts.State().Err != nil
	}, time.Second, 5*time.Millisecond)

	var perr *errbus.PermissionError
	require.ErrorAs(t, debts.State().Err, &perr)
	assert.Equal(t, docstore.OpList, perr.Operation)
	assert.Equal(t, other.String(), perr.Path)
	assert.Nil(t, debts.State().Data)

	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Permission denied", rec.all()[0].Title)
}

func TestUnsupportedStore(t *testing.T) {
	cfg := fintrack.NewConfig()
	cfg.StoreURL = "ftp://example.com"
	_, err := fintrack.New(context.Background(), cfg, fintrack.WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, constants.ErrUnsupportedScheme)
}

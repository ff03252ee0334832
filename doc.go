// Package fintrack is the data layer of the fintrack personal finance app.
//
// A [Client] wires a document store, an auth provider and the global error
// bus together. Screens read through live collections and write through
// fire-and-forget mutations:
//
//	c, err := fintrack.New(ctx, fintrack.NewConfig())
//	...
//	expenses := fintrack.WatchUser[finance.Expense](c, finance.Expenses, nil)
//	defer expenses.Close()
//	task, err := c.Add(ctx, finance.Expenses, finance.Expense{...})
//
// # Stores
//
// The store is chosen by the scheme of [Config.StoreURL]. memory:// keeps
// documents in process, ws:// and wss:// talk to a fintrackd server through
// [github.com/fintrack/fintrack/pkg/connection], and postgres:// opens a
// database through [github.com/fintrack/fintrack/pkg/docstore/sqlstore].
//
// # Errors
//
// Failed subscriptions and failed writes are reported as
// [errbus.PermissionError] on the client's bus. The client installs a single
// notifier on that bus, which renders every error as a toast.
package fintrack

package errbus_test

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/errbus"
	"github.com/fintrack/fintrack/pkg/logger"
)

func TestPermissionError(t *testing.T) {
	cause := fmt.Errorf("%w: list at users/u1/expenses", docstore.ErrPermissionDenied)
	err := errbus.NewPermissionError(docstore.OpList, "users/u1/expenses", cause)

	assert.Equal(t, docstore.OpList, err.Operation)
	assert.Equal(t, "users/u1/expenses", err.Path)
	assert.True(t, err.Denied())
	assert.ErrorIs(t, err, docstore.ErrPermissionDenied)
	assert.Contains(t, err.Error(), "list at users/u1/expenses")

	var target *errbus.PermissionError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &target))
	assert.Same(t, err, target)

	assert.False(t, errbus.NewPermissionError(docstore.OpDelete, "a/b", errors.New("offline")).Denied())
}

func TestBusDeliversSameError(t *testing.T) {
	bus := errbus.New(nil)
	var got []*errbus.PermissionError
	unsubscribe := bus.Subscribe(func(err *errbus.PermissionError) {
		got = append(got, err)
	})

	err := errbus.NewPermissionError(docstore.OpCreate, "users/u1/goals", nil)
	bus.Emit(err)
	bus.Emit(nil)
	require.Len(t, got, 1)
	assert.Same(t, err, got[0])

	unsubscribe()
	bus.Emit(err)
	assert.Len(t, got, 1)
	assert.Equal(t, 0, bus.Listeners())
}

func TestBusListenerPanicIsContained(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := logger.New().FromBuffer(buf).Make()
	require.NoError(t, err)

	bus := errbus.New(l)
	bus.Subscribe(func(*errbus.PermissionError) { panic("toast broke") })
	called := false
	bus.Subscribe(func(*errbus.PermissionError) { called = true })

	bus.Emit(errbus.NewPermissionError(docstore.OpUpdate, "a/b", nil))
	assert.True(t, called)
	assert.Contains(t, buf.String(), "error bus listener panicked")
}

func TestBusWithoutListenerLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := logger.New().FromBuffer(buf).Make()
	require.NoError(t, err)

	errbus.New(l).Emit(errbus.NewPermissionError(docstore.OpDelete, "users/u1/debts/d1", nil))
	assert.Contains(t, buf.String(), "users/u1/debts/d1")
}

func TestBusClose(t *testing.T) {
	bus := errbus.New(nil)
	called := false
	bus.Subscribe(func(*errbus.PermissionError) { called = true })
	bus.Close()
	bus.Emit(errbus.NewPermissionError(docstore.OpGet, "a/b", nil))
	assert.False(t, called)

	bus.Subscribe(func(*errbus.PermissionError) { called = true })()
	assert.Equal(t, 0, bus.Listeners())
}

func TestBusConcurrentEmit(t *testing.T) {
	bus := errbus.New(nil)
	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(*errbus.PermissionError) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(errbus.NewPermissionError(docstore.OpWrite, "a/b", nil))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}

func TestNotifier(t *testing.T) {
	bus := errbus.New(nil)
	var toasts []errbus.Toast
	n := errbus.NewNotifier(bus, nil, func(toast errbus.Toast) {
		toasts = append(toasts, toast)
	})

	bus.Emit(errbus.NewPermissionError(docstore.OpList, "users/u1/expenses", docstore.ErrPermissionDenied))
	bus.Emit(errbus.NewPermissionError(docstore.OpDelete, "users/u1/debts/d1", errors.New("offline")))
	require.Len(t, toasts, 2)
	assert.Equal(t, errbus.Toast{Title: "Permission denied", Description: "Could not list users/u1/expenses.", Destructive: true}, toasts[0])
	assert.Equal(t, "Something went wrong", toasts[1].Title)

	n.Close()
	bus.Emit(errbus.NewPermissionError(docstore.OpList, "x", nil))
	assert.Len(t, toasts, 2)
}

func TestNotifierLogSink(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := logger.New().FromBuffer(buf).Make()
	require.NoError(t, err)

	bus := errbus.New(l)
	errbus.NewNotifier(bus, l, nil)
	bus.Emit(errbus.NewPermissionError(docstore.OpUpdate, "users/u1/goals/g1", docstore.ErrPermissionDenied))
	assert.Contains(t, buf.String(), "Could not update users/u1/goals/g1.")
}

package idempotency_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goa-design/kernel/clock"
	"github.com/goa-design/kernel/idempotency"
	"github.com/goa-design/kernel/kernelerrors"
	"github.com/goa-design/kernel/store/memory"
)

func newOutbox() (*idempotency.Outbox, *clock.Fake) {
	c := clock.NewFake(time.Unix(0, 0))
	return idempotency.New(memory.NewStateStore(), c), c
}

func TestExecuteCommitsOnSuccess(t *testing.T) {
	ob, _ := newOutbox()
	ctx := context.Background()

	calls := 0
	fn := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{"ok":true}`), nil
	}

	result, err := ob.Execute(ctx, idempotency.Request{Key: "k1", MaxAttempts: 3}, fn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
	assert.Equal(t, 1, calls)

	entry, err := ob.Peek(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, idempotency.StateCommitted, entry.State)
}

func TestExecuteReplaysCommittedResult(t *testing.T) {
	ob, _ := newOutbox()
	ctx := context.Background()

	calls := 0
	fn := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{"seq":1}`), nil
	}

	_, err := ob.Execute(ctx, idempotency.Request{Key: "k2", MaxAttempts: 3}, fn)
	require.NoError(t, err)

	result, err := ob.Execute(ctx, idempotency.Request{Key: "k2", MaxAttempts: 3}, fn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"seq":1}`, string(result))
	assert.Equal(t, 1, calls, "the second call must replay, not re-invoke the executor")
}

func TestExecuteRetriesAfterFailureThenCommits(t *testing.T) {
	ob, _ := newOutbox()
	ctx := context.Background()

	attempt := 0
	fn := func(ctx context.Context) ([]byte, error) {
		attempt++
		if attempt < 2 {
			return nil, errors.New("transient boom")
		}
		return []byte(`{"ok":true}`), nil
	}

	_, err := ob.Execute(ctx, idempotency.Request{Key: "k3", MaxAttempts: 3}, fn)
	require.Error(t, err)

	result, err := ob.Execute(ctx, idempotency.Request{Key: "k3", MaxAttempts: 3}, fn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
	assert.Equal(t, 2, attempt)
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	ob, _ := newOutbox()
	ctx := context.Background()

	fn := func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("permanent boom")
	}

	_, err := ob.Execute(ctx, idempotency.Request{Key: "k4", MaxAttempts: 1}, fn)
	require.Error(t, err)

	_, err = ob.Execute(ctx, idempotency.Request{Key: "k4", MaxAttempts: 1}, fn)
	code, ok := kernelerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, kernelerrors.CodeRetryExhausted, code)
}

func TestExecuteRejectsConcurrentInFlight(t *testing.T) {
	ob, _ := newOutbox()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-release
		return []byte(`{}`), nil
	}

	errc := make(chan error, 1)
	go func() {
		_, err := ob.Execute(ctx, idempotency.Request{Key: "k5", MaxAttempts: 1}, fn)
		errc <- err
	}()
	<-started

	_, err := ob.Execute(ctx, idempotency.Request{Key: "k5", MaxAttempts: 1}, func(ctx context.Context) ([]byte, error) {
		t.Fatal("second executor must not run while the first is in flight")
		return nil, nil
	})
	code, ok := kernelerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, kernelerrors.CodeOutboxBusy, code)

	close(release)
	require.NoError(t, <-errc)
}

func TestDeriveKeyDeterministicAcrossFieldOrder(t *testing.T) {
	a := idempotency.DeriveKey("task-1", "step-1", "tool-x", map[string]any{"a": 1, "b": 2})
	b := idempotency.DeriveKey("task-1", "step-1", "tool-x", map[string]any{"b": 2, "a": 1})
	assert.Equal(t, a, b)

	c := idempotency.DeriveKey("task-1", "step-2", "tool-x", map[string]any{"a": 1, "b": 2})
	assert.NotEqual(t, a, c)
}

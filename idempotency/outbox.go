package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/goa-design/kernel/clock"
	"github.com/goa-design/kernel/kernelerrors"
	"github.com/goa-design/kernel/store"
)

// EntryState is one of the four states an outbox entry may occupy. State
// transitions form a DAG: PENDING -> IN_FLIGHT -> {COMMITTED, FAILED}
// (spec.md §3, invariant I2).
type EntryState string

const (
	StatePending   EntryState = "PENDING"
	StateInFlight  EntryState = "IN_FLIGHT"
	StateCommitted EntryState = "COMMITTED"
	StateFailed    EntryState = "FAILED"
)

// Entry is the durable record tracked per idempotency key (spec.md §3).
type Entry struct {
	Key       string          `json:"key"`
	State     EntryState      `json:"state"`
	Attempts  int             `json:"attempts"`
	Result    json.RawMessage `json:"result,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ExecutorFunc performs the side-effecting work for one attempt. It must
// respect ctx's deadline/cancellation.
type ExecutorFunc func(ctx context.Context) ([]byte, error)

// Request describes one call to Outbox.Execute.
type Request struct {
	// Key is the idempotency key (see DeriveKey).
	Key string
	// MaxAttempts bounds how many times the executor may be invoked for
	// this key before the entry is marked FAILED terminally.
	MaxAttempts int
}

// Outbox wraps durable, at-most-once observable execution on top of a
// store.StateStore (spec.md §4.1). Entries are namespaced under
// "outbox/<key>" per the abstract layout in spec.md §6.
type Outbox struct {
	store store.StateStore
	clock clock.Clock
}

// New constructs an Outbox over the given durable StateStore.
func New(s store.StateStore, c clock.Clock) *Outbox {
	if c == nil {
		c = clock.NewReal()
	}
	return &Outbox{store: s, clock: c}
}

func storeKey(key string) string { return "outbox/" + key }

// getEntry reads the current entry for key, returning (nil, nil) if absent.
func (o *Outbox) getEntry(ctx context.Context, key string) (*Entry, error) {
	raw, err := o.store.Get(ctx, storeKey(key))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func marshalEntry(e *Entry) []byte {
	if e == nil {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		panic("idempotency: marshal outbox entry: " + err.Error())
	}
	return b
}

// Execute runs fn for req.Key until one run commits, at most req.MaxAttempts
// times across calls with that key, and replays the stored result on any
// subsequent call with the same key once it has reached COMMITTED
// (spec.md §4.1 algorithm, invariant P1).
func (o *Outbox) Execute(ctx context.Context, req Request, fn ExecutorFunc) ([]byte, error) {
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 1
	}

	current, err := o.getEntry(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if current != nil {
		switch current.State {
		case StateCommitted:
			return current.Result, nil
		case StateFailed:
			if current.Attempts >= req.MaxAttempts {
				return nil, kernelerrors.New(kernelerrors.CodeRetryExhausted, current.LastError)
			}
		case StateInFlight:
			return nil, kernelerrors.New(kernelerrors.CodeOutboxBusy, "concurrent execution in flight for key "+req.Key)
		}
	}

	now := o.clock.Now()
	attempts := 1
	var createdAt time.Time
	if current != nil {
		attempts = current.Attempts + 1
		createdAt = current.CreatedAt
	} else {
		createdAt = now
	}
	inFlight := &Entry{
		Key:       req.Key,
		State:     StateInFlight,
		Attempts:  attempts,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if err := o.store.CAS(ctx, storeKey(req.Key), marshalEntry(current), marshalEntry(inFlight)); err != nil {
		if errors.Is(err, store.ErrCASConflict) {
			return nil, kernelerrors.New(kernelerrors.CodeOutboxBusy, "concurrent execution in flight for key "+req.Key)
		}
		return nil, err
	}

	result, execErr := fn(ctx)

	finalNow := o.clock.Now()
	if execErr == nil {
		committed := &Entry{
			Key:       req.Key,
			State:     StateCommitted,
			Attempts:  attempts,
			Result:    json.RawMessage(result),
			CreatedAt: createdAt,
			UpdatedAt: finalNow,
		}
		if err := o.store.CAS(ctx, storeKey(req.Key), marshalEntry(inFlight), marshalEntry(committed)); err != nil {
			return nil, kernelerrors.Wrap(kernelerrors.CodeFatal, "outbox commit race for key "+req.Key, err)
		}
		return result, nil
	}

	next := &Entry{
		Key:       req.Key,
		Attempts:  attempts,
		LastError: execErr.Error(),
		CreatedAt: createdAt,
		UpdatedAt: finalNow,
	}
	if attempts < req.MaxAttempts {
		next.State = StatePending
	} else {
		next.State = StateFailed
	}
	if err := o.store.CAS(ctx, storeKey(req.Key), marshalEntry(inFlight), marshalEntry(next)); err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.CodeFatal, "outbox finalize race for key "+req.Key, err)
	}
	return nil, execErr
}

// Peek returns the current entry for a key without mutating it, primarily
// for tests and operator inspection.
func (o *Outbox) Peek(ctx context.Context, key string) (*Entry, error) {
	return o.getEntry(ctx, key)
}

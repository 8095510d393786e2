// Package memory provides in-memory implementations of store.StateStore and
// store.EventLog, suitable for development, testing, and single-process
// embedding. Grounded on the teacher's registry/store/memory package: a
// single RWMutex guarding a map, safe for concurrent use.
package memory

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/goa-design/kernel/store"
)

// StateStore is an in-memory store.StateStore.
type StateStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{values: make(map[string][]byte)}
}

var _ store.StateStore = (*StateStore)(nil)

// Get returns the value stored at key, or store.ErrNotFound.
func (s *StateStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put unconditionally stores value at key.
func (s *StateStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

// CAS atomically replaces the value at key with newValue iff the current
// value equals expected.
func (s *StateStore) CAS(ctx context.Context, key string, expected, newValue []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.values[key]
	if expected == nil {
		if exists {
			return store.ErrCASConflict
		}
	} else if !exists || !bytes.Equal(current, expected) {
		return store.ErrCASConflict
	}
	s.values[key] = append([]byte(nil), newValue...)
	return nil
}

// List returns all keys with the given prefix.
func (s *StateStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// EventLog is an in-memory store.EventLog.
type EventLog struct {
	mu      sync.RWMutex
	entries []store.LogEntry
}

// NewEventLog creates a new in-memory event log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

var _ store.EventLog = (*EventLog)(nil)

// Append writes payload to the log and returns its assigned sequence
// number (1-indexed).
func (l *EventLog) Append(ctx context.Context, payload []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := int64(len(l.entries)) + 1
	l.entries = append(l.entries, store.LogEntry{SeqNo: seq, Payload: append([]byte(nil), payload...)})
	return seq, nil
}

// Read returns all entries with SeqNo >= fromSeq, in order.
func (l *EventLog) Read(ctx context.Context, fromSeq int64) ([]store.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []store.LogEntry
	for _, e := range l.entries {
		if e.SeqNo >= fromSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

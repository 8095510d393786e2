// Package redis provides a Redis-backed store.StateStore, suitable as the
// durable outbox backend for C1's linearizable compare-and-set requirement
// (spec.md §4.1 "Concurrency"). Grounded on the pack's use of
// github.com/redis/go-redis/v9 (teacher go.mod) for a production-durable
// key-value layer; compare-and-set is implemented with a Lua script so the
// read-compare-write sequence is atomic server-side.
package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/goa-design/kernel/store"
)

// casScript compares the current value at KEYS[1] against ARGV[1] (empty
// string means "must not exist") and, on match, sets it to ARGV[2].
// Returns 1 on success, 0 on conflict.
var casScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
local expected = ARGV[1]
if expected == "" then
  if cur then
    return 0
  end
else
  if not cur or cur ~= expected then
    return 0
  end
end
redis.call("SET", KEYS[1], ARGV[2])
return 1
`)

// StateStore is a store.StateStore backed by a Redis client.
type StateStore struct {
	client *redis.Client
	prefix string
}

// New creates a Redis-backed state store. prefix namespaces all keys (e.g.
// "outbox/") so multiple stores can share one Redis database.
func New(client *redis.Client, prefix string) *StateStore {
	return &StateStore{client: client, prefix: prefix}
}

var _ store.StateStore = (*StateStore)(nil)

func (s *StateStore) key(k string) string { return s.prefix + k }

// Get returns the value stored at key, or store.ErrNotFound.
func (s *StateStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Put unconditionally stores value at key.
func (s *StateStore) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

// CAS atomically replaces the value at key with newValue iff the current
// value equals expected, via a server-side Lua script.
func (s *StateStore) CAS(ctx context.Context, key string, expected, newValue []byte) error {
	expectedArg := ""
	if expected != nil {
		expectedArg = string(expected)
	}
	res, err := casScript.Run(ctx, s.client, []string{s.key(key)}, expectedArg, string(newValue)).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return store.ErrCASConflict
	}
	return nil
}

// List returns all keys with the given prefix, scanning with Redis SCAN to
// avoid blocking the server (unlike KEYS) on large keyspaces.
func (s *StateStore) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := s.client.Scan(ctx, 0, s.key(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(s.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

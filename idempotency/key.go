// Package idempotency derives deterministic idempotency keys and wraps tool
// executors with a durable outbox that guarantees at-most-once observable
// effect across retries (spec.md §3, §4.1, invariant P1).
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goa-design/kernel/idempotency/canon"
)

// DeriveKey computes the SHA-256 idempotency key for a side-effecting
// invocation: the canonical concatenation of task_id | step_id | tool_id |
// canonical(params). Two requests with the same observable effect produce
// the same key; two requests differing in any of these fields produce
// different keys with overwhelming probability.
func DeriveKey(taskID, stepID, toolID string, params any) string {
	h := sha256.New()
	h.Write([]byte(taskID))
	h.Write([]byte{'|'})
	h.Write([]byte(stepID))
	h.Write([]byte{'|'})
	h.Write([]byte(toolID))
	h.Write([]byte{'|'})
	h.Write(canon.Marshal(params))
	return hex.EncodeToString(h.Sum(nil))
}

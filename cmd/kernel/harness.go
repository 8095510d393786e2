package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goa-design/kernel/clock"
	"github.com/goa-design/kernel/config"
	"github.com/goa-design/kernel/crv"
	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/effort"
	"github.com/goa-design/kernel/idempotency"
	"github.com/goa-design/kernel/policy"
	"github.com/goa-design/kernel/store/memory"
	"github.com/goa-design/kernel/telemetry"
	"github.com/goa-design/kernel/toolregistry"
	"github.com/goa-design/kernel/toolwrapper"
)

// harness bundles a freshly wired, in-memory kernel instance for one
// scenario run. Each scenario command builds its own harness so runs don't
// share state.
type harness struct {
	clock      *clock.Fake
	audit      *memory.EventLog
	stateStore *memory.StateStore
	outbox     *idempotency.Outbox
	registry   *toolregistry.Registry
	policy     *policy.Gate
	wrapper    *toolwrapper.Wrapper
	collector  telemetry.Collector
	logger     telemetry.Logger
}

func newHarness() *harness {
	cfg := loadConfig()
	start, err := time.Parse(time.RFC3339, "2026-01-01T00:00:00Z")
	if err != nil {
		start = time.Unix(0, 0).UTC()
	}
	c := clock.NewFake(start)
	audit := memory.NewEventLog()
	ss := memory.NewStateStore()
	return &harness{
		clock:      c,
		audit:      audit,
		stateStore: ss,
		outbox:     idempotency.New(ss, c),
		registry:   toolregistry.New(),
		policy:     policy.New(audit, policy.WithClock(c), policy.WithTokenTTL(cfg.Approval.TokenTTL)),
		wrapper:    toolwrapper.New(),
		collector:  telemetry.NewNoopCollector(),
		logger:     telemetry.NewZapLogger(newLogger()),
	}
}

func alicePrincipal(permissions ...domain.Permission) *domain.Principal {
	return &domain.Principal{ID: "alice", Kind: domain.PrincipalAgent, Permissions: permissions}
}

func readPermission() domain.Permission {
	return domain.Permission{Verb: "read", Resource: "data", Intent: "read", Zone: domain.ZoneInternal}
}

func writePermission() domain.Permission {
	return domain.Permission{Verb: "write", Resource: "data", Intent: "write", Zone: domain.ZoneInternal}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// basicCRVGate builds a Gate that always blocks on failure, the shape every
// scenario's pre/post gate shares.
func basicCRVGate(validators ...crv.NamedValidator) *crv.Gate {
	return crv.New(crv.Config{
		Validators:       validators,
		BlockOnFailure:   true,
		RecoveryStrategy: crv.RecoveryRetry,
	})
}

func alwaysValid(name string) crv.NamedValidator {
	return crv.NamedValidator{
		Name: name,
		Fn: func(_ context.Context, _ domain.Commit) crv.ValidationResult {
			return crv.ValidationResult{Name: name, Valid: true, Confidence: 1.0}
		},
	}
}

func nonNegativeAmountValidator(name string) crv.NamedValidator {
	return crv.NamedValidator{
		Name: name,
		Fn: func(_ context.Context, commit domain.Commit) crv.ValidationResult {
			raw, ok := commit.Payload.(json.RawMessage)
			if !ok {
				return crv.ValidationResult{Name: name, Valid: true, Confidence: 1.0}
			}
			var body struct {
				Amount float64 `json:"amount"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return crv.ValidationResult{Name: name, Valid: true, Confidence: 1.0}
			}
			if body.Amount < 0 {
				return crv.ValidationResult{Name: name, Valid: false, Code: crv.FailureConflict, Reason: "amount must be non-negative", Confidence: 1.0}
			}
			return crv.ValidationResult{Name: name, Valid: true, Confidence: 1.0}
		},
	}
}

func demoEffort() *effort.Evaluator {
	return effort.New(effort.DefaultWeights, effort.DefaultThresholds)
}

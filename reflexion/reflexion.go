// Package reflexion implements the self-healing engine (C8): on a failure
// event, it classifies the failure, proposes a bounded fix, validates that
// fix in a sandbox against this package's own ChaosScenario checks, and
// either promotes, rejects, or escalates it (spec.md §4.8). New to this
// domain; its OBSERVE->ANALYZE->PROPOSE->SANDBOX state machine follows the
// teacher's convention of a small enum-driven FSM with an append-only log
// (mirrored from policy.Gate's audit trail approach).
package reflexion

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goa-design/kernel/clock"
	"github.com/goa-design/kernel/crv"
	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/policy"
	"github.com/goa-design/kernel/store"
)

// Taxonomy is the closed set of failure categories (spec.md §4.8).
type Taxonomy string

const (
	TaxonomyToolError       Taxonomy = "TOOL_ERROR"
	TaxonomyMissingData     Taxonomy = "MISSING_DATA"
	TaxonomyPolicyViolation Taxonomy = "POLICY_VIOLATION"
	TaxonomyLowConfidence   Taxonomy = "LOW_CONFIDENCE"
	TaxonomyConflict        Taxonomy = "CONFLICT"
	TaxonomyNonDeterminism  Taxonomy = "NON_DETERMINISM"
	TaxonomyOutOfScope      Taxonomy = "OUT_OF_SCOPE"
)

// FixKind is the closed set of automated fix strategies.
type FixKind string

const (
	FixAlternateTool      FixKind = "ALTERNATE_TOOL"
	FixModifyCRVThreshold FixKind = "MODIFY_CRV_THRESHOLD"
	FixReorderWorkflow    FixKind = "REORDER_WORKFLOW"
	FixEscalate           FixKind = "ESCALATE"
)

// State is one state of the per-failure reflexion FSM (spec.md §4.8).
type State string

const (
	StateObserve State = "OBSERVE"
	StateAnalyze State = "ANALYZE"
	StatePropose State = "PROPOSE"
	StateSandbox State = "SANDBOX"
	StatePromote State = "PROMOTE"
	StateReject  State = "REJECT"
	StateEscalate State = "ESCALATE"
)

var missingDataPattern = regexp.MustCompile(`(?i)\b(undefined|null|required)\b`)

// FailureEvent is the input to Classify: the observed failure context.
type FailureEvent struct {
	TaskID         string
	StepID         string
	Message        string
	IsToolFailure  bool
	Confidence     *float64 // nil means "no confidence signal"
	RaceSignalSeen bool
	FailedTool     string
	AllowedTools   []string
}

// Classify maps a failure event to a taxonomy using the deterministic
// heuristic in spec.md §4.8.
func Classify(ev FailureEvent) Taxonomy {
	if ev.IsToolFailure {
		return TaxonomyToolError
	}
	if missingDataPattern.MatchString(ev.Message) {
		return TaxonomyMissingData
	}
	if containsPolicyKeywords(ev.Message) {
		return TaxonomyPolicyViolation
	}
	if ev.Confidence != nil && *ev.Confidence < 0.5 {
		return TaxonomyLowConfidence
	}
	if ev.RaceSignalSeen {
		return TaxonomyNonDeterminism
	}
	return TaxonomyOutOfScope
}

func containsPolicyKeywords(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range []string{"permission", "unauthorized", "forbidden", "authorization"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Fix is a proposed remediation.
type Fix struct {
	Kind              FixKind
	AlternateTool     string
	NewThresholdDelta float64
	NewOrder          []string
	WithinPolicyBounds bool
	Reason            string
}

// ThresholdBounds bounds the CRV-threshold nudge multiplier (spec.md §4.8
// defaults 0.8 / 1.2).
type ThresholdBounds struct {
	MinMultiplier float64
	MaxMultiplier float64
}

// DefaultThresholdBounds matches spec.md §4.8's stated defaults.
var DefaultThresholdBounds = ThresholdBounds{MinMultiplier: 0.8, MaxMultiplier: 1.2}

// Propose derives a Fix for taxonomy tax given the failure event and
// current threshold (spec.md §4.8 "Fix proposal by taxonomy").
func Propose(tax Taxonomy, ev FailureEvent, currentThreshold float64, bounds ThresholdBounds) Fix {
	switch tax {
	case TaxonomyToolError:
		for _, t := range ev.AllowedTools {
			if t != ev.FailedTool {
				return Fix{Kind: FixAlternateTool, AlternateTool: t, Reason: "next distinct allowed tool"}
			}
		}
		return Fix{Kind: FixEscalate, Reason: "no alternate tool available"}

	case TaxonomyLowConfidence, TaxonomyConflict:
		multiplier := bounds.MaxMultiplier
		newThreshold := currentThreshold * multiplier
		withinBounds := newThreshold <= 1.0 && newThreshold >= 0.0
		return Fix{
			Kind:               FixModifyCRVThreshold,
			NewThresholdDelta:  newThreshold - currentThreshold,
			WithinPolicyBounds: withinBounds,
			Reason:             "nudge confidence threshold within bounded multiplier",
		}

	case TaxonomyNonDeterminism:
		return Fix{Kind: FixReorderWorkflow, Reason: "reorder preserving declared dependencies"}

	case TaxonomyPolicyViolation:
		return Fix{Kind: FixEscalate, Reason: "policy violations are not auto-fixable"}

	default:
		return Fix{Kind: FixEscalate, Reason: "out of scope for automated fix"}
	}
}

// ChaosScenario is one sandbox check run against a proposed fix (spec.md
// §4.8 "Sandbox validation").
type ChaosScenario struct {
	Name string
	Run  func(ctx context.Context, fix Fix) (passed bool, reason string)
}

// IdempotencyScenario checks that applying the fix twice has an identical
// effect, via a caller-supplied equality check.
func IdempotencyScenario(apply func() (string, error)) ChaosScenario {
	return ChaosScenario{
		Name: "idempotency",
		Run: func(ctx context.Context, fix Fix) (bool, string) {
			first, err1 := apply()
			second, err2 := apply()
			if err1 != nil || err2 != nil {
				return false, "apply failed during idempotency check"
			}
			if first != second {
				return false, "repeated application produced different effects"
			}
			return true, ""
		},
	}
}

// RollbackSafetyScenario checks that a compensation action is declared and
// marked reversible.
func RollbackSafetyScenario(hasCompensation, reversible bool) ChaosScenario {
	return ChaosScenario{
		Name: "rollback_safety",
		Run: func(ctx context.Context, fix Fix) (bool, string) {
			if !hasCompensation {
				return false, "no compensation action declared"
			}
			if !reversible {
				return false, "compensation action is not reversible"
			}
			return true, ""
		},
	}
}

// BoundaryConditionsScenario checks the fix's numeric adjustments stay
// within configured policy bounds.
func BoundaryConditionsScenario() ChaosScenario {
	return ChaosScenario{
		Name: "boundary_conditions",
		Run: func(ctx context.Context, fix Fix) (bool, string) {
			if fix.Kind == FixModifyCRVThreshold && !fix.WithinPolicyBounds {
				return false, "threshold adjustment leaves policy bounds"
			}
			return true, ""
		},
	}
}

// SandboxResult is the outcome of sandbox-validating one proposed fix.
type SandboxResult struct {
	PolicyApproved bool
	CRVPassed      bool
	ScenarioResults map[string]bool
	Promoted       bool
}

// Engine is the C8 Reflexion Engine.
type Engine struct {
	mu              sync.Mutex
	attempts        map[string]int // keyed by task id
	maxFixAttempts  int
	minConfidence   float64
	thresholdBounds ThresholdBounds
	policyGate      *policy.Gate
	crvGate         *crv.Gate
	log             store.EventLog
	clock           clock.Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxFixAttempts overrides the default of 3.
func WithMaxFixAttempts(n int) Option { return func(e *Engine) { e.maxFixAttempts = n } }

// WithMinConfidence overrides the default of 0.6.
func WithMinConfidence(c float64) Option { return func(e *Engine) { e.minConfidence = c } }

// WithThresholdBounds overrides DefaultThresholdBounds.
func WithThresholdBounds(b ThresholdBounds) Option { return func(e *Engine) { e.thresholdBounds = b } }

// WithClock overrides the engine's time source.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// New constructs an Engine. gate and crvGate are the same binding gates
// used on the primary path (spec.md §4.8: "validate it through the same
// gates"). log receives an append-only reflexion record per transition.
func New(gate *policy.Gate, crvGate *crv.Gate, log store.EventLog, opts ...Option) *Engine {
	e := &Engine{
		attempts:        make(map[string]int),
		maxFixAttempts:  3,
		minConfidence:   0.6,
		thresholdBounds: DefaultThresholdBounds,
		policyGate:      gate,
		crvGate:         crvGate,
		log:             log,
		clock:           clock.NewReal(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// record is one append-only reflexion log entry (spec.md §4.8 "all
// transitions append to a reflexion log").
type record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"task_id"`
	State     State     `json:"state"`
	Detail    string    `json:"detail,omitempty"`
}

func (e *Engine) appendLog(ctx context.Context, taskID string, state State, detail string) {
	if e.log == nil {
		return
	}
	payload, err := json.Marshal(record{ID: uuid.NewString(), Timestamp: e.clock.Now(), TaskID: taskID, State: state, Detail: detail})
	if err != nil {
		return
	}
	_, _ = e.log.Append(ctx, payload)
}

// HandleFailure runs the full OBSERVE->ANALYZE->PROPOSE->SANDBOX state
// machine for one failure event (spec.md §4.8).
func (e *Engine) HandleFailure(ctx context.Context, ev FailureEvent, principal *domain.Principal, action *domain.Action, currentThreshold float64, scenarios []ChaosScenario) (Fix, SandboxResult, State) {
	e.appendLog(ctx, ev.TaskID, StateObserve, ev.Message)

	e.mu.Lock()
	attempts := e.attempts[ev.TaskID]
	e.mu.Unlock()
	if attempts >= e.maxFixAttempts {
		e.appendLog(ctx, ev.TaskID, StateEscalate, "max fix attempts exhausted")
		return Fix{Kind: FixEscalate, Reason: "max fix attempts exhausted"}, SandboxResult{}, StateEscalate
	}

	tax := Classify(ev)
	e.appendLog(ctx, ev.TaskID, StateAnalyze, string(tax))

	if ev.Confidence != nil && *ev.Confidence < e.minConfidence {
		e.appendLog(ctx, ev.TaskID, StateReject, "below minimum confidence floor")
		return Fix{Kind: FixEscalate, Reason: "confidence below floor"}, SandboxResult{}, StateReject
	}

	fix := Propose(tax, ev, currentThreshold, e.thresholdBounds)
	e.appendLog(ctx, ev.TaskID, StatePropose, string(fix.Kind))

	if fix.Kind == FixEscalate {
		e.appendLog(ctx, ev.TaskID, StateEscalate, fix.Reason)
		return fix, SandboxResult{}, StateEscalate
	}

	e.mu.Lock()
	e.attempts[ev.TaskID] = attempts + 1
	e.mu.Unlock()

	result := e.sandbox(ctx, fix, principal, action, scenarios)
	e.appendLog(ctx, ev.TaskID, StateSandbox, "")

	final := StateReject
	if result.Promoted {
		final = StatePromote
	}
	e.appendLog(ctx, ev.TaskID, final, "")
	return fix, result, final
}

func (e *Engine) sandbox(ctx context.Context, fix Fix, principal *domain.Principal, action *domain.Action, scenarios []ChaosScenario) SandboxResult {
	result := SandboxResult{ScenarioResults: make(map[string]bool, len(scenarios))}

	if e.policyGate != nil && principal != nil && action != nil {
		decision := e.policyGate.Evaluate(ctx, principal, action, "")
		result.PolicyApproved = decision.Allowed
	} else {
		result.PolicyApproved = true
	}

	if e.crvGate != nil {
		commit := domain.Commit{ID: "reflexion-fix", Payload: fix}
		outcome := e.crvGate.Validate(ctx, commit)
		result.CRVPassed = outcome.Passed
	} else {
		result.CRVPassed = true
	}

	allScenariosPassed := true
	for _, sc := range scenarios {
		passed, _ := sc.Run(ctx, fix)
		result.ScenarioResults[sc.Name] = passed
		if !passed {
			allScenariosPassed = false
		}
	}

	result.Promoted = result.PolicyApproved && result.CRVPassed && allScenariosPassed
	return result
}

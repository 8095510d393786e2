// Package policy implements the Goal-Guard FSM policy gate (spec.md §4.4):
// permission and risk-tier evaluation, MCP external-action rules, and the
// human-approval token lifecycle. The audit trail shape is grounded on the
// pack's ToolApprover/AuditEntry pattern (other_examples
// pkg/coordination/security/tool_approval.go); the evaluation state machine
// and approval-token bookkeeping are new to this domain.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goa-design/kernel/clock"
	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/kernelerrors"
	"github.com/goa-design/kernel/rng"
	"github.com/goa-design/kernel/store"
	"github.com/goa-design/kernel/telemetry"
)

// State is one state of the Goal-Guard FSM (spec.md §4.4 "States").
type State string

const (
	StateIdle          State = "IDLE"
	StateEvaluating    State = "EVALUATING"
	StateApproved      State = "APPROVED"
	StateRejected      State = "REJECTED"
	StatePendingHuman  State = "PENDING_HUMAN"
)

const defaultTokenTTL = time.Hour

// Decision is the outcome of one Evaluate call.
type Decision struct {
	State                State
	Allowed              bool
	RequiresHumanApproval bool
	ApprovalToken         string
	MonitoringFlag        bool
	Code                  kernelerrors.Code
	Reason                string
}

// pendingApproval tracks one outstanding HIGH/CRITICAL approval request.
type pendingApproval struct {
	ActionID  string
	Token     string
	Used      bool
	ExpiresAt time.Time
}

// Gate is the C4 Policy Gate. One Gate instance serializes FSM transitions
// across evaluations with a single mutex, per spec.md §4.7's "within one FSM
// there is no concurrent evaluation" guarantee.
type Gate struct {
	mu       sync.Mutex
	state    State
	pending  map[string]*pendingApproval // keyed by action id
	audit    store.EventLog
	clock    clock.Clock
	tokenTTL time.Duration
	collector telemetry.Collector
}

// Option configures a Gate at construction time.
type Option func(*Gate)

// WithClock overrides the gate's time source (default: real clock).
func WithClock(c clock.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithTokenTTL overrides the default one-hour approval token expiry.
func WithTokenTTL(d time.Duration) Option {
	return func(g *Gate) { g.tokenTTL = d }
}

// WithCollector attaches a telemetry collector for policy-check events.
func WithCollector(c telemetry.Collector) Option {
	return func(g *Gate) { g.collector = c }
}

// New constructs a Gate. audit, if non-nil, receives an append-only record
// of every decision and approval (spec.md §4.4 step 7).
func New(audit store.EventLog, opts ...Option) *Gate {
	g := &Gate{
		state:    StateIdle,
		pending:  make(map[string]*pendingApproval),
		audit:    audit,
		clock:    clock.NewReal(),
		tokenTTL: defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs the Goal-Guard algorithm for one (principal, action) pair
// (spec.md §4.4 "Evaluate operation").
func (g *Gate) Evaluate(ctx context.Context, principal *domain.Principal, action *domain.Action, toolName string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateEvaluating

	if principal == nil || action == nil {
		return g.reject(ctx, principal, action, kernelerrors.CodeInvalidRequest, "missing principal or action")
	}

	if len(action.AllowedTools) > 0 && toolName != "" {
		allowed := false
		for _, t := range action.AllowedTools {
			if t == toolName {
				allowed = true
				break
			}
		}
		if !allowed {
			return g.reject(ctx, principal, action, kernelerrors.CodeToolNotAllowed, fmt.Sprintf("tool %q not in allowed_tools", toolName))
		}
	}

	for _, required := range action.RequiredPermissions {
		if !principalHasPermission(principal, required) {
			return g.reject(ctx, principal, action, kernelerrors.CodeInsufficientPermissions,
				fmt.Sprintf("no permission covers verb=%s resource=%s", required.Verb, required.Resource))
		}
	}

	if action.IsMCPExternal {
		if d, handled := g.evaluateMCP(ctx, principal, action); handled {
			return d
		}
	}

	return g.evaluateByRiskTier(ctx, principal, action)
}

func principalHasPermission(p *domain.Principal, required domain.Permission) bool {
	for _, held := range p.Permissions {
		if held.Covers(required) {
			return true
		}
	}
	return false
}

// evaluateMCP applies the MCP external-action rules (spec.md §4.4 step 4).
// The second return value is false when the action falls through to the
// ordinary risk-tier evaluation.
func (g *Gate) evaluateMCP(ctx context.Context, principal *domain.Principal, action *domain.Action) (Decision, bool) {
	switch action.RiskTier {
	case domain.RiskCritical:
		if !action.MCPHasCRVValidation {
			return g.reject(ctx, principal, action, kernelerrors.CodePolicyDenied,
				"CRITICAL MCP action lacks CRV validation"), true
		}
		return g.requireHumanApproval(ctx, principal, action), true
	case domain.RiskHigh:
		return g.requireHumanApproval(ctx, principal, action), true
	case domain.RiskMedium:
		if action.MCPRequiresCRV {
			d := g.approve(ctx, principal, action, false)
			d.Code = ""
			d.Reason = "MCP action proceeds with CRV required"
			return d, true
		}
		return g.approve(ctx, principal, action, false), true
	case domain.RiskLow:
		return g.approve(ctx, principal, action, false), true
	}
	return Decision{}, false
}

// evaluateByRiskTier maps risk tier to a decision per spec.md §4.4 step 5.
func (g *Gate) evaluateByRiskTier(ctx context.Context, principal *domain.Principal, action *domain.Action) Decision {
	switch action.RiskTier {
	case domain.RiskLow:
		return g.approve(ctx, principal, action, false)
	case domain.RiskMedium:
		return g.approve(ctx, principal, action, true)
	case domain.RiskHigh, domain.RiskCritical:
		return g.requireHumanApproval(ctx, principal, action)
	default:
		// Unknown risk tier: safe default is to require human approval
		// (spec.md §4.4 "Failure semantics").
		return g.requireHumanApproval(ctx, principal, action)
	}
}

func (g *Gate) approve(ctx context.Context, principal *domain.Principal, action *domain.Action, monitoring bool) Decision {
	g.state = StateApproved
	d := Decision{State: StateApproved, Allowed: true, MonitoringFlag: monitoring}
	g.emitCheck(ctx, principal, action, d)
	g.appendAudit(ctx, principal, action, "APPROVED", "")
	g.state = StateIdle
	return d
}

func (g *Gate) reject(ctx context.Context, principal *domain.Principal, action *domain.Action, code kernelerrors.Code, reason string) Decision {
	g.state = StateRejected
	d := Decision{State: StateRejected, Allowed: false, Code: code, Reason: reason}
	g.emitCheck(ctx, principal, action, d)
	g.appendAudit(ctx, principal, action, "REJECTED", reason)
	g.state = StateIdle
	return d
}

func (g *Gate) requireHumanApproval(ctx context.Context, principal *domain.Principal, action *domain.Action) Decision {
	token, err := rng.SecureToken(16)
	if err != nil {
		return g.reject(ctx, principal, action, kernelerrors.CodeFatal, "failed to generate approval token: "+err.Error())
	}
	now := g.clock.Now()
	g.pending[action.ID] = &pendingApproval{
		ActionID:  action.ID,
		Token:     token,
		ExpiresAt: now.Add(g.tokenTTL),
	}
	g.state = StatePendingHuman
	d := Decision{
		State:                 StatePendingHuman,
		Allowed:               false,
		RequiresHumanApproval: true,
		ApprovalToken:         token,
		Code:                  kernelerrors.CodeApprovalRequired,
	}
	g.emitCheck(ctx, principal, action, d)
	g.appendAudit(ctx, principal, action, "PENDING_HUMAN", "")
	return d
}

// Approve redeems an approval token issued by requireHumanApproval,
// transitioning PENDING_HUMAN -> APPROVED (spec.md §4.4 "Approval flow").
func (g *Gate) Approve(ctx context.Context, actionID, token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pending[actionID]
	if !ok || p.Used || p.Token != token {
		return false
	}
	if !g.clock.Now().Before(p.ExpiresAt) {
		return false
	}
	p.Used = true
	g.state = StateApproved
	g.appendAudit(ctx, nil, &domain.Action{ID: actionID}, "APPROVED_BY_TOKEN", "")
	g.state = StateIdle
	return true
}

func (g *Gate) emitCheck(ctx context.Context, principal *domain.Principal, action *domain.Action, d Decision) {
	if g.collector == nil {
		return
	}
	fields := map[string]any{
		"decision": string(d.State),
		"allowed":  d.Allowed,
	}
	if principal != nil {
		fields["principal_id"] = principal.ID
	}
	if action != nil {
		fields["action_id"] = action.ID
	}
	g.collector.RecordEvent(ctx, telemetry.Event{
		Type:      telemetry.EventPolicyCheck,
		Timestamp: g.clock.Now(),
		Fields:    fields,
	})
}

func (g *Gate) appendAudit(ctx context.Context, principal *domain.Principal, action *domain.Action, decision, reason string) {
	if g.audit == nil {
		return
	}
	entry := auditEntry{
		ID:        uuid.NewString(),
		Timestamp: g.clock.Now(),
		Decision:  decision,
		Reason:    reason,
		State:     string(g.state),
	}
	if principal != nil {
		entry.PrincipalID = principal.ID
	}
	if action != nil {
		entry.ActionID = action.ID
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = g.audit.Append(ctx, payload)
}

type auditEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	PrincipalID string    `json:"principal_id,omitempty"`
	ActionID    string    `json:"action_id,omitempty"`
	Decision    string    `json:"decision"`
	Reason      string    `json:"reason,omitempty"`
	State       string    `json:"state"`
}

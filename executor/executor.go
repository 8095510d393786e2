// Package executor implements the Integrated Executor (C7): the interlock
// that threads one tool invocation through Effort, Policy, CRV (pre and
// post), and the Tool Wrapper under a single correlation id (spec.md §4.7).
// Grounded on the teacher's runtime/toolregistry/executor.Executor shape:
// a struct of narrow collaborator interfaces configured via functional
// Options. The Executor opens no spans of its own; the telemetry of a call
// is what the Tool Wrapper emits to the collector the Executor hands it.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goa-design/kernel/crv"
	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/effort"
	"github.com/goa-design/kernel/idempotency"
	"github.com/goa-design/kernel/policy"
	"github.com/goa-design/kernel/reflexion"
	"github.com/goa-design/kernel/reliability"
	"github.com/goa-design/kernel/telemetry"
	"github.com/goa-design/kernel/toolregistry"
	"github.com/goa-design/kernel/toolwrapper"
)

// Executor is the C7 Integrated Executor.
type Executor struct {
	policy    *policy.Gate
	crvPre    *crv.Gate
	crvPost   *crv.Gate
	effort    *effort.Evaluator
	wrapper   *toolwrapper.Wrapper
	collector telemetry.Collector
	tracer    telemetry.Tracer

	// retrier and retryConfig drive C6 around the tool-wrapper-call stage;
	// nil retrier means the call is attempted exactly once, as before.
	retrier     *reliability.Retrier
	retryConfig reliability.RetryConfig

	// reflexion, reflexionThreshold, and chaosScenarios drive C8 once the
	// retry budget above is exhausted or the failure is non-retryable.
	reflexion          *reflexion.Engine
	reflexionThreshold float64
	chaosScenarios     []reflexion.ChaosScenario
}

// Option configures an Executor at construction.
type Option func(*Executor)

// WithCRVPre attaches the gate validating inputs before tool execution.
func WithCRVPre(g *crv.Gate) Option { return func(e *Executor) { e.crvPre = g } }

// WithCRVPost attaches the gate validating the tool's output commit.
func WithCRVPost(g *crv.Gate) Option { return func(e *Executor) { e.crvPost = g } }

// WithEffort attaches the advisory effort evaluator.
func WithEffort(ev *effort.Evaluator) Option { return func(e *Executor) { e.effort = ev } }

// WithCollector attaches a telemetry collector.
func WithCollector(c telemetry.Collector) Option { return func(e *Executor) { e.collector = c } }

// WithTracer stores a span tracer on the Executor; Execute does not open
// spans with it.
func WithTracer(t telemetry.Tracer) Option { return func(e *Executor) { e.tracer = t } }

// WithRetry attaches C6 around the tool-wrapper-call stage: a failed call is
// retried per cfg before the interlock reports failure (spec.md §2: "On
// failure, C6 drives retries"). cfg.MaxAttempts is also threaded into the
// toolwrapper.Request so an outbox-routed tool's attempt budget matches C6's.
func WithRetry(r *reliability.Retrier, cfg reliability.RetryConfig) Option {
	return func(e *Executor) { e.retrier = r; e.retryConfig = cfg }
}

// WithReflexion attaches C8, invoked once a tool-call failure is non-retryable
// or the retry budget from WithRetry is exhausted (spec.md §2: "if retries
// are exhausted or the error is classified non-retryable, C8 is invoked").
// threshold is the CRV confidence threshold currently in force, passed
// through so C8 can propose a bounded nudge to it.
func WithReflexion(eng *reflexion.Engine, threshold float64, scenarios ...reflexion.ChaosScenario) Option {
	return func(e *Executor) {
		e.reflexion = eng
		e.reflexionThreshold = threshold
		e.chaosScenarios = scenarios
	}
}

// New constructs an Executor. gate and wrapper are required; the rest are
// optional stages that degrade to pass-through when absent.
func New(gate *policy.Gate, wrapper *toolwrapper.Wrapper, opts ...Option) *Executor {
	e := &Executor{policy: gate, wrapper: wrapper}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request bundles one call through the interlock.
type Request struct {
	CallCtx      domain.CallContext
	Principal    *domain.Principal
	Action       *domain.Action
	Spec         *toolregistry.ToolSpec
	Params       json.RawMessage
	Invoke       toolwrapper.Invoker
	Outbox       *idempotency.Outbox
	Cache        toolwrapper.ResultCache
	EffortInputs effort.Inputs
}

// Result is the interlock's final, attributed outcome.
type Result struct {
	Success      bool
	Data         json.RawMessage
	Error        string
	EffortScore  *effort.Score
	PolicyResult policy.Decision
	CRVPre       *crv.Outcome
	CRVPost      *crv.Outcome
	// Attempts is how many times the tool-wrapper-call stage ran: 0 when an
	// earlier stage stopped the call, otherwise 1 unless WithRetry is
	// configured and the first attempt failed.
	Attempts int
	// ReflexionFix, SandboxResult, and ReflexionState are populated only when
	// WithReflexion is configured and the tool-call stage ultimately fails.
	ReflexionFix   *reflexion.Fix
	SandboxResult  *reflexion.SandboxResult
	ReflexionState reflexion.State
}

// Execute runs the interlock (spec.md §4.7, §2):
//  1. Effort evaluation (advisory; may short-circuit on reject).
//  2. Policy Gate evaluation (binding).
//  3. CRV pre-validation of the proposed params commit.
//  4. Tool execution via the Tool Wrapper, retried per C6 when WithRetry is
//     configured; a surviving failure is handed to C8 when WithReflexion
//     is configured.
//  5. CRV post-validation of the resulting commit.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	var result Result

	if e.effort != nil {
		score := e.effort.Evaluate(req.Action.RiskTier, req.EffortInputs)
		result.EffortScore = &score
		if score.Recommendation == effort.RecommendReject {
			result.Success = false
			result.Error = "effort evaluator recommends reject"
			return result
		}
	}

	decision := e.policy.Evaluate(ctx, req.Principal, req.Action, req.CallCtx.ToolName)
	result.PolicyResult = decision
	if !decision.Allowed {
		result.Success = false
		if decision.RequiresHumanApproval {
			result.Error = fmt.Sprintf("requires human approval (token issued), code=%s", decision.Code)
		} else {
			result.Error = fmt.Sprintf("policy denied: %s (%s)", decision.Reason, decision.Code)
		}
		return result
	}

	if e.crvPre != nil {
		preCommit := domain.Commit{
			ID:      req.CallCtx.TaskID + "|" + req.CallCtx.StepID + "|params",
			Payload: json.RawMessage(req.Params),
		}
		outcome := e.crvPre.Validate(ctx, preCommit)
		result.CRVPre = &outcome
		if outcome.BlockedCommit {
			result.Success = false
			result.Error = fmt.Sprintf("crv pre-validation blocked: %s", outcome.FailureCode)
			return result
		}
	}

	maxAttempts := 1
	if e.retrier != nil && e.retryConfig.MaxAttempts > 0 {
		maxAttempts = e.retryConfig.MaxAttempts
	}
	// invokeErr keeps the tool's own error from the latest attempt so the
	// retrier classifies the typed error, not just its message text.
	var invokeErr error
	invoke := req.Invoke
	if invoke != nil {
		invoke = func(ctx context.Context, params []byte) ([]byte, error) {
			data, err := req.Invoke(ctx, params)
			invokeErr = err
			return data, err
		}
	}
	wrapReq := toolwrapper.Request{
		Spec:        req.Spec,
		Params:      req.Params,
		CallCtx:     req.CallCtx,
		Invoke:      invoke,
		Outbox:      req.Outbox,
		Cache:       req.Cache,
		Collector:   e.collector,
		MaxAttempts: maxAttempts,
	}

	var wrapResult toolwrapper.Result
	callTool := func(ctx context.Context) error {
		result.Attempts++
		invokeErr = nil
		wrapResult = e.wrapper.Call(ctx, wrapReq)
		if !wrapResult.Success {
			if invokeErr != nil {
				return invokeErr
			}
			return errors.New(wrapResult.Error)
		}
		return nil
	}

	var callErr error
	if e.retrier != nil {
		callErr = e.retrier.Do(ctx, e.retryConfig, callTool)
	} else {
		callErr = callTool(ctx)
	}

	if callErr != nil {
		result.Success = false
		result.Error = wrapResult.Error
		if result.Error == "" {
			result.Error = callErr.Error()
		}

		if e.reflexion != nil {
			var allowedTools []string
			if req.Action != nil {
				allowedTools = req.Action.AllowedTools
			}
			ev := reflexion.FailureEvent{
				TaskID:        req.CallCtx.TaskID,
				StepID:        req.CallCtx.StepID,
				Message:       result.Error,
				IsToolFailure: true,
				FailedTool:    req.CallCtx.ToolName,
				AllowedTools:  allowedTools,
			}
			fix, sandbox, state := e.reflexion.HandleFailure(ctx, ev, req.Principal, req.Action, e.reflexionThreshold, e.chaosScenarios)
			result.ReflexionFix = &fix
			result.SandboxResult = &sandbox
			result.ReflexionState = state
		}
		return result
	}

	if e.crvPost != nil {
		postCommit := domain.Commit{
			ID:            req.CallCtx.TaskID + "|" + req.CallCtx.StepID + "|output",
			Payload:       wrapResult.Data,
			PreviousState: json.RawMessage(req.Params),
		}
		outcome := e.crvPost.Validate(ctx, postCommit)
		result.CRVPost = &outcome
		if outcome.BlockedCommit {
			result.Success = false
			result.Data = wrapResult.Data
			result.Error = fmt.Sprintf("crv post-validation blocked: %s", outcome.FailureCode)
			return result
		}
	}

	result.Success = true
	result.Data = wrapResult.Data
	return result
}

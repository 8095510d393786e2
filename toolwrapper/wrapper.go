// Package toolwrapper implements the tool-call boundary (spec.md §4.2):
// telemetry, parameter sanitization, schema validation, and routing to the
// durable outbox or a result cache depending on the tool's side-effect and
// idempotency classification. Grounded on the teacher's
// runtime/toolregistry/executor/executor.go call-and-observe pattern.
package toolwrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/idempotency"
	"github.com/goa-design/kernel/kernelerrors"
	"github.com/goa-design/kernel/telemetry"
	"github.com/goa-design/kernel/toolregistry"
)

// redactedKeys is matched case-insensitively against each object key,
// substring not exact match, per spec.md §4.2 step 1.
var redactedKeys = []string{
	"password", "passwd", "pwd", "secret", "token", "api_key",
	"access_token", "private_key", "credentials", "auth", "authorization",
}

const redactedPlaceholder = "[REDACTED]"

// Invoker performs a single tool call. Implementations live wherever the
// actual tool logic does; the wrapper only orchestrates validation,
// telemetry, and routing around the call.
type Invoker func(ctx context.Context, paramsJSON []byte) ([]byte, error)

// ResultCache is the non-durable alternative routing target for
// side-effecting tools that don't need an outbox (spec.md §4.2 step 4).
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Result is the outcome of one wrapped tool invocation.
type Result struct {
	Success  bool
	Data     json.RawMessage
	Error    string
	Replayed bool
	Metadata map[string]any
}

// Request bundles the inputs to Wrapper.Call.
type Request struct {
	Spec      *toolregistry.ToolSpec
	Params    json.RawMessage
	CallCtx   domain.CallContext
	Invoke    Invoker
	Outbox    *idempotency.Outbox // optional
	Cache     ResultCache         // optional
	Timeout   time.Duration
	Collector telemetry.Collector // optional
	// MaxAttempts bounds how many times an outbox-routed call may be
	// attempted across repeated Call invocations for the same key before
	// the outbox entry is marked FAILED terminally (spec.md §4.1 step 5:
	// "return the error to the reliability layer for backoff + retry").
	// Zero defaults to 1, preserving single-shot behavior for callers that
	// don't configure retry (e.g. C6 wraps this call and should set this
	// to its own RetryConfig.MaxAttempts).
	MaxAttempts int
}

// Wrapper is the C2 Tool Wrapper component.
type Wrapper struct{}

// New constructs a Wrapper. It holds no state; all per-call dependencies
// arrive via Request.
func New() *Wrapper { return &Wrapper{} }

// Call executes req per spec.md §4.2's five-step behavior.
func (w *Wrapper) Call(ctx context.Context, req Request) Result {
	sanitized := sanitizeParams(req.Params)
	if req.Collector != nil {
		req.Collector.RecordEvent(ctx, telemetry.Event{
			Type:          telemetry.EventToolCall,
			WorkflowID:    req.CallCtx.WorkflowID,
			TaskID:        req.CallCtx.TaskID,
			StepID:        req.CallCtx.StepID,
			CorrelationID: req.CallCtx.CorrelationID,
			Fields:        map[string]any{"tool": req.CallCtx.ToolName, "params": sanitized},
		})
	}

	if req.Spec == nil {
		return Result{Success: false, Error: "toolwrapper: no tool spec provided"}
	}

	if len(req.Spec.ParamSchema) > 0 {
		if err := req.Spec.Validate(req.Params); err != nil {
			return Result{Success: false, Error: fmt.Sprintf("schema validation failed: %v", err)}
		}
	}
	if err := checkRequired(req.Spec.ParamSchema, req.Params); err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if specTimeout := time.Duration(req.Spec.Timeout); specTimeout > 0 && specTimeout < timeout {
		timeout = specTimeout
	}

	execute := func(ctx context.Context) ([]byte, error) {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		data, err := req.Invoke(cctx, req.Params)
		if err != nil {
			return nil, err
		}
		if len(req.Spec.ResultSchema) > 0 {
			if verr := toolregistry.ValidateJSON(req.Spec.ResultSchema, data); verr != nil {
				return nil, kernelerrors.Wrap(kernelerrors.CodeSchemaInvalid, "tool result failed output schema", verr)
			}
		}
		return data, nil
	}

	switch {
	case req.Spec.HasSideEffects && req.Outbox != nil:
		key := idempotency.DeriveKey(req.CallCtx.TaskID, req.CallCtx.StepID, req.Spec.ID, json.RawMessage(req.Params))
		alreadyCommitted := false
		if existing, err := req.Outbox.Peek(ctx, key); err == nil && existing != nil && existing.State == idempotency.StateCommitted {
			alreadyCommitted = true
		}
		maxAttempts := req.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 1
		}
		data, err := req.Outbox.Execute(ctx, idempotency.Request{Key: key, MaxAttempts: maxAttempts}, execute)
		if err != nil {
			return errorResult(err)
		}
		return Result{Success: true, Data: data, Replayed: alreadyCommitted}

	case req.Spec.HasSideEffects && req.Cache != nil:
		key := idempotency.DeriveKey(req.CallCtx.TaskID, req.CallCtx.StepID, req.Spec.ID, json.RawMessage(req.Params))
		if cached, ok, err := req.Cache.Get(ctx, key); err == nil && ok {
			return Result{Success: true, Data: cached, Replayed: true}
		}
		data, err := execute(ctx)
		if err != nil {
			return errorResult(err)
		}
		if err := req.Cache.Put(ctx, key, data); err != nil {
			return Result{Success: true, Data: data, Metadata: map[string]any{"cache_put_error": err.Error()}}
		}
		return Result{Success: true, Data: data}

	default:
		data, err := execute(ctx)
		if err != nil {
			return errorResult(err)
		}
		return Result{Success: true, Data: data}
	}
}

func errorResult(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

func sanitizeParams(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return redactedPlaceholder
	}
	return sanitizeValue(v)
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = redactedPlaceholder
			} else {
				out[k] = sanitizeValue(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitizeValue(val)
		}
		return out
	default:
		return t
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range redactedKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// checkRequired verifies every schema-declared required field is present in
// paramsJSON (spec.md §4.2 step 3), independent of full schema validation so
// a missing-required error is reported distinctly.
func checkRequired(schemaJSON, paramsJSON []byte) error {
	if len(schemaJSON) == 0 {
		return nil
	}
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil // malformed schema is reported by full validation, not here
	}
	if len(schema.Required) == 0 {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(paramsJSON, &params); err != nil {
		return kernelerrors.New(kernelerrors.CodeSchemaInvalid, "params must be a JSON object when schema declares required fields")
	}
	var missing []string
	for _, field := range schema.Required {
		if _, ok := params[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return kernelerrors.New(kernelerrors.CodeSchemaInvalid, "missing required parameters: "+strings.Join(missing, ", "))
	}
	return nil
}


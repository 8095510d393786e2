// Package toolregistry holds the catalog of tools an executor may invoke:
// their schemas, side-effect and idempotency classification, and optional
// compensation action (spec.md §3 "ToolSpec", §6 "Get(tool_id) ->
// tool_spec?"). Grounded on the teacher's registry/service.go tool-schema
// handling and runtime/agent/tools/spec.go ToolSpec shape, trimmed to the
// fields the execution plane actually needs.
package toolregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/goa-design/kernel/domain"
)

// ErrNotFound is returned by Registry.Get for an unknown tool id.
var ErrNotFound = errors.New("toolregistry: tool not found")

// ToolSpec is the metadata the kernel needs about one invocable tool.
type ToolSpec struct {
	ID           string
	Name         string
	Description  string
	RiskTier     domain.RiskTier
	ParamSchema  []byte // JSON schema for the input parameters
	ResultSchema []byte // JSON schema for the result, optional
	HasSideEffects bool
	Idempotency  domain.IdempotencyStrategy
	// Compensation, if set, is the action id to invoke to undo this tool's
	// effect during reflexion-driven rollback (spec.md §4.8's "sandbox
	// validation" and §9's rollback discussion).
	Compensation string
	// Timeout bounds a single execution attempt. Zero means "no override";
	// the caller's default applies.
	Timeout int64 // nanoseconds, kept as int64 to avoid importing time in the registered spec

	compiled *jsonschema.Schema
}

// Registry is an in-memory, concurrency-safe catalog of ToolSpecs. Grounded
// on the teacher's registry/store/memory RWMutex-guarded-map convention.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*ToolSpec
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]*ToolSpec)}
}

// Register adds or replaces a tool spec, pre-compiling its parameter schema
// if one is present so Validate calls don't pay compilation cost per call.
func (r *Registry) Register(spec ToolSpec) error {
	if spec.ID == "" {
		return errors.New("toolregistry: spec.ID must not be empty")
	}
	if len(spec.ParamSchema) > 0 {
		compiled, err := compileSchema(spec.ParamSchema)
		if err != nil {
			return fmt.Errorf("toolregistry: compile schema for %q: %w", spec.ID, err)
		}
		spec.compiled = compiled
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.ID] = &spec
	return nil
}

// Get returns the spec registered under id, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*ToolSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.tools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return spec, nil
}

// List returns every registered tool id.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	return ids
}

// Validate checks paramsJSON against the tool's compiled parameter schema.
// A tool with no schema accepts any well-formed JSON.
func (s *ToolSpec) Validate(paramsJSON []byte) error {
	if s.compiled == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(paramsJSON, &doc); err != nil {
		return fmt.Errorf("toolregistry: unmarshal params for %q: %w", s.ID, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return err
	}
	return nil
}

// ValidateJSON compiles schemaJSON and validates dataJSON against it in one
// shot, for callers (such as tool result validation) that don't want to
// register a full ToolSpec just to check a schema.
func ValidateJSON(schemaJSON, dataJSON []byte) error {
	if len(schemaJSON) == 0 {
		return nil
	}
	compiled, err := compileSchema(schemaJSON)
	if err != nil {
		return fmt.Errorf("toolregistry: compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(dataJSON, &doc); err != nil {
		return fmt.Errorf("toolregistry: unmarshal data: %w", err)
	}
	return compiled.Validate(doc)
}

func compileSchema(schemaJSON []byte) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile("schema.json")
}

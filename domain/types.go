// Package domain defines the shared data model used across the kernel's
// components: principals, permissions, actions, commits, and the call
// context threaded through a single tool invocation. These types are
// described by the invariants they maintain rather than by field-level
// schemas (spec.md §3); this file is the concrete Go rendition of that
// model.
package domain

import "time"

// RiskTier classifies the blast radius of a proposed action.
type RiskTier int

const (
	RiskLow RiskTier = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// String renders the risk tier for logs and audit entries.
func (r RiskTier) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether r is one of the four known risk tiers.
func (r RiskTier) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// DataZone orders data sensitivity zones. The ordering is total:
// public < internal < confidential < restricted (spec.md §3).
type DataZone int

const (
	ZoneUnspecified DataZone = iota
	ZonePublic
	ZoneInternal
	ZoneConfidential
	ZoneRestricted
)

// String renders the data zone for logs and audit entries.
func (z DataZone) String() string {
	switch z {
	case ZonePublic:
		return "public"
	case ZoneInternal:
		return "internal"
	case ZoneConfidential:
		return "confidential"
	case ZoneRestricted:
		return "restricted"
	default:
		return "unspecified"
	}
}

// Covers reports whether a permission carrying zone z grants access to a
// resource tagged with zone want. Zero (unspecified) zones are treated as
// "no zone restriction": an unspecified want is always covered, and an
// unspecified z covers only an unspecified want.
func (z DataZone) Covers(want DataZone) bool {
	if want == ZoneUnspecified {
		return true
	}
	if z == ZoneUnspecified {
		return false
	}
	return z >= want
}

// PrincipalKind enumerates who or what is acting.
type PrincipalKind string

const (
	PrincipalAgent   PrincipalKind = "agent"
	PrincipalHuman   PrincipalKind = "human"
	PrincipalService PrincipalKind = "service"
)

// Principal identifies who is requesting an action. Immutable for the
// duration of an evaluation.
type Principal struct {
	ID          string
	Kind        PrincipalKind
	Permissions []Permission
}

// Permission is a tuple granting access to an (action_verb, resource) pair,
// optionally scoped to an intent and/or a data zone ceiling.
type Permission struct {
	Verb     string
	Resource string
	Intent   string // empty means "any intent"
	Zone     DataZone
}

// Covers reports whether permission p satisfies a required permission req:
// same verb and resource, intent matches when req specifies one, and p's
// zone dominates req's zone when req specifies one (spec.md §4.4 step 3).
func (p Permission) Covers(req Permission) bool {
	if p.Verb != req.Verb || p.Resource != req.Resource {
		return false
	}
	if req.Intent != "" && p.Intent != req.Intent {
		return false
	}
	return p.Zone.Covers(req.Zone)
}

// Action is a proposed operation submitted to the Policy Gate. Built per
// invocation and discarded after audit.
type Action struct {
	ID                  string
	Name                string
	RiskTier             RiskTier
	RequiredPermissions []Permission
	Intent              string
	Zone                DataZone
	AllowedTools        []string
	Metadata            map[string]any

	// IsMCPExternal marks the action as routed through an external MCP tool,
	// triggering the MCP-specific gating rules in spec.md §4.4 step 4.
	IsMCPExternal bool
	// MCPRequiresCRV records whether the action's MEDIUM-risk MCP path has
	// been flagged as requiring CRV validation before proceeding.
	MCPRequiresCRV bool
	// MCPHasCRVValidation records whether a CRV validation has already been
	// attached to a CRITICAL MCP action. Its absence on a CRITICAL MCP
	// action is a policy violation, not merely a gating event.
	MCPHasCRVValidation bool
}

// Commit is a unit submitted to the CRV gate: a proposed state change or a
// tool input/output. Commits are logically ordered but not globally
// serialized (spec.md §3).
type Commit struct {
	ID            string
	Payload       any
	PreviousState any
	Metadata      map[string]any
}

// IdempotencyStrategy enumerates how a tool's observable effect is
// deduplicated across retries.
type IdempotencyStrategy string

const (
	// IdempotencyCacheReplay replays the cached result for an identical key.
	IdempotencyCacheReplay IdempotencyStrategy = "CACHE_REPLAY"
	// IdempotencyNatural means the tool's own semantics are idempotent and
	// no wrapper bookkeeping is required.
	IdempotencyNatural IdempotencyStrategy = "NATURAL"
	// IdempotencyRequestID means the tool accepts a caller-supplied request
	// id and de-duplicates server-side.
	IdempotencyRequestID IdempotencyStrategy = "REQUEST_ID"
	// IdempotencyNone means the tool call carries no idempotency guarantee.
	IdempotencyNone IdempotencyStrategy = "NONE"
)

// CallContext threads the identifiers that correlate every stage of one
// tool invocation end to end (spec.md §4.7 "Ordering guarantee").
type CallContext struct {
	WorkflowID       string
	TaskID           string
	StepID           string
	CorrelationID    string
	Principal        Principal
	RequestedAt      time.Time
	ToolName         string
}

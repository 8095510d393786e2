// Package crv implements the Circuit Reasoning Validation gate (spec.md
// §4.3): an ordered pipeline of pure validators run against a commit before
// its effects are considered trustworthy. Grounded on the teacher's
// runtime/a2a/policy evaluation-pipeline shape (ordered checks, first
// failure wins the reported code) adapted to commit validation instead of
// permission checks.
package crv

import (
	"context"

	"github.com/goa-design/kernel/domain"
)

// FailureCode is the closed taxonomy of CRV failure reasons (spec.md §4.3).
type FailureCode string

const (
	FailureToolError      FailureCode = "TOOL_ERROR"
	FailureLowConfidence  FailureCode = "LOW_CONFIDENCE"
	FailureConflict       FailureCode = "CONFLICT"
	FailureNonDeterminism FailureCode = "NON_DETERMINISM"
	FailurePolicyViolation FailureCode = "POLICY_VIOLATION"
	FailureMissingData    FailureCode = "MISSING_DATA"
	FailureOutOfScope     FailureCode = "OUT_OF_SCOPE"
)

// RecoveryStrategy names how the caller should react to a blocked commit.
type RecoveryStrategy string

const (
	RecoveryRetry    RecoveryStrategy = "RETRY"
	RecoveryAskUser  RecoveryStrategy = "ASK_USER"
	RecoveryEscalate RecoveryStrategy = "ESCALATE"
	RecoveryIgnore   RecoveryStrategy = "IGNORE"
)

// ValidationResult is one validator's verdict on a commit.
type ValidationResult struct {
	Name       string
	Valid      bool
	Reason     string
	Code       FailureCode
	Confidence float64
}

// Validator is a pure function of a commit to a verdict. Validators must be
// deterministic: identical commit and configuration always yields an
// identical result (spec.md §4.3 "Ordering").
type Validator func(ctx context.Context, commit domain.Commit) ValidationResult

// NamedValidator pairs a Validator with the name recorded in its results,
// so gate configuration can be introspected without invoking it.
type NamedValidator struct {
	Name string
	Fn   Validator
}

// Outcome is the result of Gate.Validate.
type Outcome struct {
	Passed           bool
	ValidationResults []ValidationResult
	BlockedCommit    bool
	CRVStatus        string
	FailureCode      FailureCode
	Remediation      RecoveryStrategy
}

// Config configures one CRV Gate instance (spec.md §4.3 "Configuration").
type Config struct {
	Validators         []NamedValidator
	BlockOnFailure     bool
	RequiredConfidence float64 // 0 means "no threshold"
	RecoveryStrategy   RecoveryStrategy
	ShortCircuit       bool
}

// Gate is the C3 CRV Gate component.
type Gate struct {
	cfg Config
}

// New constructs a Gate from cfg.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Validate runs the configured validators against commit in declaration
// order and derives the overall outcome (spec.md §4.3 "Evaluation").
func (g *Gate) Validate(ctx context.Context, commit domain.Commit) Outcome {
	results := make([]ValidationResult, 0, len(g.cfg.Validators))
	allValid := true
	var firstFailureCode FailureCode

	for _, v := range g.cfg.Validators {
		res := v.Fn(ctx, commit)
		if res.Name == "" {
			res.Name = v.Name
		}
		results = append(results, res)

		meetsConfidence := g.cfg.RequiredConfidence <= 0 || res.Confidence >= g.cfg.RequiredConfidence
		if !res.Valid || !meetsConfidence {
			if allValid {
				firstFailureCode = res.Code
			}
			allValid = false
			if g.cfg.ShortCircuit {
				break
			}
		}
	}

	passed := allValid
	blocked := !passed && g.cfg.BlockOnFailure

	out := Outcome{
		Passed:            passed,
		ValidationResults: results,
		BlockedCommit:     blocked,
	}
	if passed {
		out.CRVStatus = "PASSED"
		return out
	}
	out.CRVStatus = "FAILED"
	if blocked {
		out.FailureCode = firstFailureCode
		out.Remediation = g.cfg.RecoveryStrategy
	}
	return out
}

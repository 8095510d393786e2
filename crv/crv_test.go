package crv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goa-design/kernel/crv"
	"github.com/goa-design/kernel/domain"
)

func passValidator(name string, confidence float64) crv.NamedValidator {
	return crv.NamedValidator{
		Name: name,
		Fn: func(ctx context.Context, commit domain.Commit) crv.ValidationResult {
			return crv.ValidationResult{Valid: true, Confidence: confidence}
		},
	}
}

func failValidator(name string, code crv.FailureCode) crv.NamedValidator {
	return crv.NamedValidator{
		Name: name,
		Fn: func(ctx context.Context, commit domain.Commit) crv.ValidationResult {
			return crv.ValidationResult{Valid: false, Code: code, Reason: "boom"}
		},
	}
}

func TestValidateAllPass(t *testing.T) {
	g := crv.New(crv.Config{
		Validators: []crv.NamedValidator{passValidator("schema", 1.0), passValidator("policy", 0.9)},
	})

	out := g.Validate(context.Background(), domain.Commit{ID: "c1"})
	assert.True(t, out.Passed)
	assert.Equal(t, "PASSED", out.CRVStatus)
	assert.False(t, out.BlockedCommit)
	assert.Len(t, out.ValidationResults, 2)
}

func TestValidateFirstFailureCodeWins(t *testing.T) {
	g := crv.New(crv.Config{
		Validators: []crv.NamedValidator{
			failValidator("schema", crv.FailureMissingData),
			failValidator("policy", crv.FailurePolicyViolation),
		},
		BlockOnFailure:   true,
		RecoveryStrategy: crv.RecoveryEscalate,
	})

	out := g.Validate(context.Background(), domain.Commit{ID: "c2"})
	assert.False(t, out.Passed)
	assert.True(t, out.BlockedCommit)
	assert.Equal(t, crv.FailureMissingData, out.FailureCode)
	assert.Equal(t, crv.RecoveryEscalate, out.Remediation)
	assert.Len(t, out.ValidationResults, 2, "non-short-circuit gate must still run every validator")
}

func TestValidateShortCircuitStopsAtFirstFailure(t *testing.T) {
	second := false
	g := crv.New(crv.Config{
		Validators: []crv.NamedValidator{
			failValidator("schema", crv.FailureMissingData),
			{Name: "policy", Fn: func(ctx context.Context, commit domain.Commit) crv.ValidationResult {
				second = true
				return crv.ValidationResult{Valid: true}
			}},
		},
		ShortCircuit: true,
	})

	out := g.Validate(context.Background(), domain.Commit{ID: "c3"})
	assert.False(t, out.Passed)
	assert.Len(t, out.ValidationResults, 1)
	assert.False(t, second, "short-circuit must not invoke validators after the first failure")
}

func TestValidateConfidenceThresholdFailsLowConfidence(t *testing.T) {
	g := crv.New(crv.Config{
		Validators:         []crv.NamedValidator{passValidator("crv", 0.5)},
		RequiredConfidence: 0.7,
		BlockOnFailure:     true,
	})

	out := g.Validate(context.Background(), domain.Commit{ID: "c4"})
	assert.False(t, out.Passed)
	assert.True(t, out.BlockedCommit)
}

func TestValidateNotBlockedWhenBlockOnFailureFalse(t *testing.T) {
	g := crv.New(crv.Config{
		Validators: []crv.NamedValidator{failValidator("schema", crv.FailureConflict)},
	})

	out := g.Validate(context.Background(), domain.Commit{ID: "c5"})
	assert.False(t, out.Passed)
	assert.False(t, out.BlockedCommit)
	assert.Empty(t, out.FailureCode, "failure code is only reported when the commit is actually blocked")
}

func TestValidateResultNameDefaultsToValidatorName(t *testing.T) {
	g := crv.New(crv.Config{
		Validators: []crv.NamedValidator{
			{Name: "schema", Fn: func(ctx context.Context, commit domain.Commit) crv.ValidationResult {
				return crv.ValidationResult{Valid: true}
			}},
		},
	})

	out := g.Validate(context.Background(), domain.Commit{ID: "c6"})
	assert.Equal(t, "schema", out.ValidationResults[0].Name)
}

package reflexion_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goa-design/kernel/reflexion"
	"github.com/goa-design/kernel/store/memory"
)

func TestClassifyToolFailureWinsFirst(t *testing.T) {
	tax := reflexion.Classify(reflexion.FailureEvent{IsToolFailure: true, Message: "permission denied"})
	assert.Equal(t, reflexion.TaxonomyToolError, tax)
}

func TestClassifyMissingData(t *testing.T) {
	tax := reflexion.Classify(reflexion.FailureEvent{Message: "field amount is required"})
	assert.Equal(t, reflexion.TaxonomyMissingData, tax)
}

func TestClassifyPolicyViolation(t *testing.T) {
	tax := reflexion.Classify(reflexion.FailureEvent{Message: "unauthorized access attempt"})
	assert.Equal(t, reflexion.TaxonomyPolicyViolation, tax)
}

func TestClassifyLowConfidence(t *testing.T) {
	c := 0.2
	tax := reflexion.Classify(reflexion.FailureEvent{Message: "ambiguous result", Confidence: &c})
	assert.Equal(t, reflexion.TaxonomyLowConfidence, tax)
}

func TestClassifyNonDeterminism(t *testing.T) {
	tax := reflexion.Classify(reflexion.FailureEvent{Message: "flaky", RaceSignalSeen: true})
	assert.Equal(t, reflexion.TaxonomyNonDeterminism, tax)
}

func TestClassifyDefaultsToOutOfScope(t *testing.T) {
	tax := reflexion.Classify(reflexion.FailureEvent{Message: "mystery"})
	assert.Equal(t, reflexion.TaxonomyOutOfScope, tax)
}

func TestProposeToolErrorPicksDistinctAlternateTool(t *testing.T) {
	fix := reflexion.Propose(reflexion.TaxonomyToolError, reflexion.FailureEvent{
		FailedTool:   "fetch",
		AllowedTools: []string{"fetch", "fetch_v2"},
	}, 0.7, reflexion.DefaultThresholdBounds)
	assert.Equal(t, reflexion.FixAlternateTool, fix.Kind)
	assert.Equal(t, "fetch_v2", fix.AlternateTool)
}

func TestProposeToolErrorEscalatesWithNoAlternate(t *testing.T) {
	fix := reflexion.Propose(reflexion.TaxonomyToolError, reflexion.FailureEvent{
		FailedTool:   "fetch",
		AllowedTools: []string{"fetch"},
	}, 0.7, reflexion.DefaultThresholdBounds)
	assert.Equal(t, reflexion.FixEscalate, fix.Kind)
}

func TestProposeLowConfidenceNudgesThresholdWithinBounds(t *testing.T) {
	fix := reflexion.Propose(reflexion.TaxonomyLowConfidence, reflexion.FailureEvent{}, 0.5, reflexion.DefaultThresholdBounds)
	assert.Equal(t, reflexion.FixModifyCRVThreshold, fix.Kind)
	assert.True(t, fix.WithinPolicyBounds)
	assert.InDelta(t, 0.1, fix.NewThresholdDelta, 1e-9)
}

func TestProposePolicyViolationAlwaysEscalates(t *testing.T) {
	fix := reflexion.Propose(reflexion.TaxonomyPolicyViolation, reflexion.FailureEvent{}, 0.7, reflexion.DefaultThresholdBounds)
	assert.Equal(t, reflexion.FixEscalate, fix.Kind)
}

func TestIdempotencyScenarioDetectsDivergence(t *testing.T) {
	n := 0
	sc := reflexion.IdempotencyScenario(func() (string, error) {
		n++
		if n == 1 {
			return "a", nil
		}
		return "b", nil
	})
	passed, reason := sc.Run(context.Background(), reflexion.Fix{})
	assert.False(t, passed)
	assert.Contains(t, reason, "different effects")
}

func TestRollbackSafetyScenario(t *testing.T) {
	passed, _ := reflexion.RollbackSafetyScenario(true, true).Run(context.Background(), reflexion.Fix{})
	assert.True(t, passed)

	passed, reason := reflexion.RollbackSafetyScenario(false, true).Run(context.Background(), reflexion.Fix{})
	assert.False(t, passed)
	assert.Contains(t, reason, "no compensation")
}

func TestBoundaryConditionsScenarioFailsOutOfBoundsThreshold(t *testing.T) {
	fix := reflexion.Fix{Kind: reflexion.FixModifyCRVThreshold, WithinPolicyBounds: false}
	passed, _ := reflexion.BoundaryConditionsScenario().Run(context.Background(), fix)
	assert.False(t, passed)
}

func TestHandleFailurePromotesWhenAllScenariosPass(t *testing.T) {
	log := memory.NewEventLog()
	engine := reflexion.New(nil, nil, log)

	ev := reflexion.FailureEvent{
		TaskID:       "task-1",
		Message:      "tool call failed",
		IsToolFailure: true,
		FailedTool:   "fetch",
		AllowedTools: []string{"fetch", "fetch_v2"},
	}
	_, result, final := engine.HandleFailure(context.Background(), ev, nil, nil, 0.7, nil)
	assert.Equal(t, reflexion.StatePromote, final)
	assert.True(t, result.Promoted)

	entries, err := log.Read(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	var first struct{ ID string `json:"id"` }
	require.NoError(t, json.Unmarshal(entries[0].Payload, &first))
	assert.NotEmpty(t, first.ID)
}

func TestHandleFailureRejectsBelowConfidenceFloor(t *testing.T) {
	engine := reflexion.New(nil, nil, nil, reflexion.WithMinConfidence(0.6))
	c := 0.1
	ev := reflexion.FailureEvent{TaskID: "task-2", Message: "ambiguous", Confidence: &c}

	_, _, final := engine.HandleFailure(context.Background(), ev, nil, nil, 0.7, nil)
	assert.Equal(t, reflexion.StateReject, final)
}

func TestHandleFailureEscalatesAfterMaxAttempts(t *testing.T) {
	engine := reflexion.New(nil, nil, nil, reflexion.WithMaxFixAttempts(1))
	ev := reflexion.FailureEvent{
		TaskID:       "task-3",
		IsToolFailure: true,
		FailedTool:   "fetch",
		AllowedTools: []string{"fetch", "fetch_v2"},
	}

	_, _, final1 := engine.HandleFailure(context.Background(), ev, nil, nil, 0.7, nil)
	assert.Equal(t, reflexion.StatePromote, final1)

	_, _, final2 := engine.HandleFailure(context.Background(), ev, nil, nil, 0.7, nil)
	assert.Equal(t, reflexion.StateEscalate, final2)
}

func TestHandleFailureSandboxFailureRejects(t *testing.T) {
	engine := reflexion.New(nil, nil, nil)
	ev := reflexion.FailureEvent{
		TaskID:       "task-4",
		IsToolFailure: true,
		FailedTool:   "fetch",
		AllowedTools: []string{"fetch", "fetch_v2"},
	}
	failing := reflexion.ChaosScenario{
		Name: "always-fail",
		Run:  func(ctx context.Context, fix reflexion.Fix) (bool, string) { return false, "nope" },
	}

	_, result, final := engine.HandleFailure(context.Background(), ev, nil, nil, 0.7, []reflexion.ChaosScenario{failing})
	assert.Equal(t, reflexion.StateReject, final)
	assert.False(t, result.Promoted)
}

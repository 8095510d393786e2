package effort_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/effort"
)

func TestEvaluateHighScoreApproves(t *testing.T) {
	e := effort.New(effort.Weights{}, effort.Thresholds{})
	score := e.Evaluate(domain.RiskLow, effort.Inputs{CostScore: 1, ValueScore: 1, TimeScore: 1})
	assert.Equal(t, effort.RecommendApprove, score.Recommendation)
	assert.InDelta(t, 0.97, score.Decision, 1e-9)
}

func TestEvaluateLowScoreRejects(t *testing.T) {
	e := effort.New(effort.Weights{}, effort.Thresholds{})
	score := e.Evaluate(domain.RiskCritical, effort.Inputs{CostScore: 0, ValueScore: 0, TimeScore: 0})
	assert.Equal(t, effort.RecommendReject, score.Recommendation)
}

func TestEvaluateMiddleScoreReviews(t *testing.T) {
	e := effort.New(effort.Weights{Cost: 1}, effort.Thresholds{Approve: 0.9, Reject: 0.1})
	score := e.Evaluate(domain.RiskLow, effort.Inputs{CostScore: 0.5})
	assert.Equal(t, effort.RecommendReview, score.Recommendation)
}

func TestEvaluateRiskOverrideReplacesTierBase(t *testing.T) {
	e := effort.New(effort.Weights{Risk: 1}, effort.Thresholds{})
	override := 0.95
	score := e.Evaluate(domain.RiskCritical, effort.Inputs{RiskOverride: &override})
	assert.InDelta(t, 0.95, score.Decision, 1e-9)
}

func TestEvaluateHumanEscalationRateLowersRiskTerm(t *testing.T) {
	e := effort.New(effort.Weights{Risk: 1}, effort.Thresholds{})
	base := e.Evaluate(domain.RiskLow, effort.Inputs{})
	escalated := e.Evaluate(domain.RiskLow, effort.Inputs{HumanEscalationRate: 1})
	assert.Less(t, escalated.RiskTerm, base.RiskTerm)
}

func TestEvaluateClampsOutOfRangeInputs(t *testing.T) {
	e := effort.New(effort.Weights{Cost: 1}, effort.Thresholds{})
	score := e.Evaluate(domain.RiskLow, effort.Inputs{CostScore: 5})
	assert.InDelta(t, 1.0, score.CostTerm, 1e-9)

	negative := e.Evaluate(domain.RiskLow, effort.Inputs{CostScore: -5})
	assert.InDelta(t, 0.0, negative.CostTerm, 1e-9)
}

func TestNewFallsBackToDefaultsOnZeroValue(t *testing.T) {
	e := effort.New(effort.Weights{}, effort.Thresholds{})
	score := e.Evaluate(domain.RiskLow, effort.Inputs{CostScore: 1, ValueScore: 1, TimeScore: 1})
	assert.Greater(t, score.Decision, 0.0)
}

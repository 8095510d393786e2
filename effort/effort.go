// Package effort implements the advisory cost/risk/value/time scorer
// (spec.md §4.5). It is deliberately standard-library only: the scoring
// formula is a closed-form weighted sum over caller-supplied inputs, with
// no I/O, parsing, or protocol surface that would justify a third-party
// dependency (see DESIGN.md).
package effort

import "github.com/goa-design/kernel/domain"

// Recommendation is the advisory verdict returned by Evaluate.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReview   Recommendation = "review"
	RecommendReject   Recommendation = "reject"
)

// baseRiskByTier is the base risk score indexed by domain.RiskTier
// (spec.md §4.5).
var baseRiskByTier = map[domain.RiskTier]float64{
	domain.RiskLow:      0.9,
	domain.RiskMedium:   0.6,
	domain.RiskHigh:     0.3,
	domain.RiskCritical: 0.1,
}

// Weights assigns relative importance to each scoring term. Callers
// typically hold one Weights value per deployment profile.
type Weights struct {
	Cost  float64
	Risk  float64
	Value float64
	Time  float64
}

// DefaultWeights gives cost and risk the largest share, matching the
// "safety first" posture implied by spec.md §4.5's threshold defaults.
var DefaultWeights = Weights{Cost: 0.3, Risk: 0.3, Value: 0.25, Time: 0.15}

// Thresholds configures the approve/reject cutoffs (spec.md §4.5 defaults).
type Thresholds struct {
	Approve float64
	Reject  float64
}

// DefaultThresholds matches spec.md §4.5's stated defaults.
var DefaultThresholds = Thresholds{Approve: 0.6, Reject: 0.3}

// Inputs bundles the observability-derived and soft-constraint scores that
// feed the cost/value/time terms. Each field is expected in [0,1]; callers
// are responsible for normalizing raw metrics against their own baselines
// before calling Evaluate (spec.md §4.5 "Observability metrics").
type Inputs struct {
	// CostScore is 1 - normalized(cost_per_success).
	CostScore float64
	// ValueScore aggregates world-model soft-constraint category scores.
	ValueScore float64
	// TimeScore is 1 - normalized(MTTR).
	TimeScore float64
	// RiskOverride, if non-nil, replaces the tier-derived base risk (for
	// callers that have a more specific risk estimate than the tier table).
	RiskOverride *float64
	// HumanEscalationRate, in [0,1], nudges the risk term down when high.
	HumanEscalationRate float64
}

// Score is the computed advisory result.
type Score struct {
	Decision       float64
	Recommendation Recommendation
	CostTerm       float64
	RiskTerm       float64
	ValueTerm      float64
	TimeTerm       float64
}

// Evaluator is the C5 Effort Evaluator component.
type Evaluator struct {
	weights    Weights
	thresholds Thresholds
}

// New constructs an Evaluator with the given weights and thresholds.
// Zero-value Weights/Thresholds fall back to the package defaults.
func New(w Weights, t Thresholds) *Evaluator {
	if w == (Weights{}) {
		w = DefaultWeights
	}
	if t == (Thresholds{}) {
		t = DefaultThresholds
	}
	return &Evaluator{weights: w, thresholds: t}
}

// Evaluate computes the advisory decision score for an action given
// in.  The result never binds the Policy Gate's decision (spec.md §4.5:
// "The recommendation is advisory").
func (e *Evaluator) Evaluate(tier domain.RiskTier, in Inputs) Score {
	risk := baseRiskByTier[tier]
	if in.RiskOverride != nil {
		risk = *in.RiskOverride
	}
	risk = clamp01(risk - in.HumanEscalationRate*0.2)

	cost := clamp01(in.CostScore)
	value := clamp01(in.ValueScore)
	timeScore := clamp01(in.TimeScore)

	decision := e.weights.Cost*cost + e.weights.Risk*risk + e.weights.Value*value + e.weights.Time*timeScore

	var rec Recommendation
	switch {
	case decision >= e.thresholds.Approve:
		rec = RecommendApprove
	case decision < e.thresholds.Reject:
		rec = RecommendReject
	default:
		rec = RecommendReview
	}

	return Score{
		Decision:       decision,
		Recommendation: rec,
		CostTerm:       e.weights.Cost * cost,
		RiskTerm:       e.weights.Risk * risk,
		ValueTerm:      e.weights.Value * value,
		TimeTerm:       e.weights.Time * timeScore,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

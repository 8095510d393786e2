package reliability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goa-design/kernel/reliability"
)

func TestClassifyContextDeadlineExceeded(t *testing.T) {
	c := reliability.Classify(context.DeadlineExceeded)
	assert.Equal(t, reliability.CategoryTransient, c.Category)
	assert.Equal(t, reliability.StrategyRetry, c.Strategy)
}

func TestClassifyContextCancelled(t *testing.T) {
	c := reliability.Classify(context.Canceled)
	assert.Equal(t, reliability.CategoryPermanent, c.Category)
	assert.Equal(t, reliability.StrategyFailFast, c.Strategy)
}

func TestClassifyHTTPStatuses(t *testing.T) {
	cases := []struct {
		status   int
		category reliability.Category
		strategy reliability.Strategy
	}{
		{429, reliability.CategoryTransient, reliability.StrategyRetry},
		{401, reliability.CategoryPermanent, reliability.StrategyEscalate},
		{403, reliability.CategoryPermanent, reliability.StrategyEscalate},
		{400, reliability.CategoryPermanent, reliability.StrategyFailFast},
		{404, reliability.CategoryPermanent, reliability.StrategyFailFast},
		{503, reliability.CategoryRecoverable, reliability.StrategyDegrade},
		{500, reliability.CategoryTransient, reliability.StrategyRetry},
	}
	for _, tc := range cases {
		err := &reliability.HTTPStatusError{StatusCode: tc.status, Message: "x"}
		got := reliability.Classify(err)
		assert.Equal(t, tc.category, got.Category, "status %d", tc.status)
		assert.Equal(t, tc.strategy, got.Strategy, "status %d", tc.status)
	}
}

func TestClassifyMessageBasedRules(t *testing.T) {
	assert.Equal(t, reliability.StrategyDegrade, reliability.Classify(errors.New("circuit breaker is open")).Strategy)
	assert.Equal(t, reliability.CategoryFatal, reliability.Classify(errors.New("cannot allocate memory")).Category)
	assert.Equal(t, reliability.CategoryRecoverable, reliability.Classify(errors.New("deadlock detected")).Category)
}

func TestClassifyUnmatchedDefaultsToPermanentFailFast(t *testing.T) {
	c := reliability.Classify(errors.New("something truly novel"))
	assert.Equal(t, reliability.CategoryPermanent, c.Category)
	assert.Equal(t, reliability.StrategyFailFast, c.Strategy)
}

func TestClassifyNilErrorReturnsZeroValue(t *testing.T) {
	assert.Equal(t, reliability.Classification{}, reliability.Classify(nil))
}

func TestClassifierRulesEvaluatedInOrder(t *testing.T) {
	c := reliability.NewClassifier([]reliability.Rule{
		{Name: "first", Matches: func(err error) bool { return true }, Result: reliability.Classification{Category: reliability.CategoryFatal}},
		{Name: "second", Matches: func(err error) bool { return true }, Result: reliability.Classification{Category: reliability.CategoryPermanent}},
	})
	got := c.Classify(errors.New("x"))
	assert.Equal(t, reliability.CategoryFatal, got.Category, "first matching rule must win")
}

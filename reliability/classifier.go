package reliability

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
)

// Category is the closed set of error categories a Classifier produces
// (spec.md §4.6 "Error classifier").
type Category string

const (
	CategoryTransient   Category = "TRANSIENT"
	CategoryPermanent   Category = "PERMANENT"
	CategoryRecoverable Category = "RECOVERABLE"
	CategoryFatal       Category = "FATAL"
)

// Strategy is the recovery action a rule recommends.
type Strategy string

const (
	StrategyRetry    Strategy = "RETRY"
	StrategyFallback Strategy = "FALLBACK"
	StrategyDegrade  Strategy = "DEGRADE"
	StrategyFailFast Strategy = "FAIL_FAST"
	StrategyEscalate Strategy = "ESCALATE"
)

// Severity is an operator-facing escalation level.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Classification is the verdict a Rule or Classify produces for one error.
type Classification struct {
	Category Category
	Severity Severity
	Strategy Strategy
	Metadata map[string]any
}

// HTTPStatusError lets callers carry an HTTP status code through the error
// chain for rule matching, mirroring the teacher's retry.HTTPStatusError.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return "http " + strconv.Itoa(e.StatusCode) + ": " + e.Message
}

// Rule is a predicate-to-classification mapping. Rules are evaluated in
// declaration order; the first match wins (spec.md §4.6).
type Rule struct {
	Name    string
	Matches func(err error) bool
	Result  Classification
}

// DefaultRules returns the minimum rule set named in spec.md §4.6: network
// timeouts, connection resets, 429, 5xx, 401, 403, 400, 404, rate-limit,
// circuit-open, 503, OOM, and database deadlock.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "context_cancelled",
			Matches: func(err error) bool { return errors.Is(err, context.Canceled) },
			Result:  Classification{Category: CategoryPermanent, Severity: SeverityLow, Strategy: StrategyFailFast},
		},
		{
			Name:    "context_deadline_exceeded",
			Matches: func(err error) bool { return errors.Is(err, context.DeadlineExceeded) },
			Result:  Classification{Category: CategoryTransient, Severity: SeverityMedium, Strategy: StrategyRetry},
		},
		{
			Name: "network_timeout",
			Matches: func(err error) bool {
				var netErr net.Error
				return errors.As(err, &netErr) && netErr.Timeout()
			},
			Result: Classification{Category: CategoryTransient, Severity: SeverityMedium, Strategy: StrategyRetry},
		},
		{
			Name: "connection_reset",
			Matches: func(err error) bool {
				return containsAny(err, "connection reset", "econnreset", "broken pipe")
			},
			Result: Classification{Category: CategoryTransient, Severity: SeverityMedium, Strategy: StrategyRetry},
		},
		{
			Name: "rate_limited_429",
			Matches: func(err error) bool { return hasStatus(err, 429) || containsAny(err, "rate limit", "too many requests") },
			Result:  Classification{Category: CategoryTransient, Severity: SeverityLow, Strategy: StrategyRetry},
		},
		{
			Name:    "unauthorized_401",
			Matches: func(err error) bool { return hasStatus(err, 401) || containsAny(err, "unauthorized") },
			Result:  Classification{Category: CategoryPermanent, Severity: SeverityHigh, Strategy: StrategyEscalate},
		},
		{
			Name:    "forbidden_403",
			Matches: func(err error) bool { return hasStatus(err, 403) || containsAny(err, "forbidden") },
			Result:  Classification{Category: CategoryPermanent, Severity: SeverityHigh, Strategy: StrategyEscalate},
		},
		{
			Name:    "bad_request_400",
			Matches: func(err error) bool { return hasStatus(err, 400) || containsAny(err, "bad request", "invalid argument") },
			Result:  Classification{Category: CategoryPermanent, Severity: SeverityMedium, Strategy: StrategyFailFast},
		},
		{
			Name:    "not_found_404",
			Matches: func(err error) bool { return hasStatus(err, 404) || containsAny(err, "not found") },
			Result:  Classification{Category: CategoryPermanent, Severity: SeverityLow, Strategy: StrategyFailFast},
		},
		{
			Name:    "circuit_open",
			Matches: func(err error) bool { return containsAny(err, "circuit breaker is open", "circuit open") },
			Result:  Classification{Category: CategoryRecoverable, Severity: SeverityHigh, Strategy: StrategyDegrade},
		},
		{
			Name:    "service_unavailable_503",
			Matches: func(err error) bool { return hasStatus(err, 503) || containsAny(err, "service unavailable") },
			Result:  Classification{Category: CategoryRecoverable, Severity: SeverityHigh, Strategy: StrategyDegrade},
		},
		{
			Name:    "server_error_5xx",
			Matches: func(err error) bool { return hasStatusRange(err, 500, 599) },
			Result:  Classification{Category: CategoryTransient, Severity: SeverityMedium, Strategy: StrategyRetry},
		},
		{
			Name:    "out_of_memory",
			Matches: func(err error) bool { return containsAny(err, "out of memory", "oom", "cannot allocate memory") },
			Result:  Classification{Category: CategoryFatal, Severity: SeverityCritical, Strategy: StrategyEscalate},
		},
		{
			Name:    "database_deadlock",
			Matches: func(err error) bool { return containsAny(err, "deadlock") },
			Result:  Classification{Category: CategoryRecoverable, Severity: SeverityMedium, Strategy: StrategyRetry},
		},
	}
}

// Classifier applies an ordered rule set to classify errors.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a Classifier from rules, evaluated in order.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// defaultClassifier backs the package-level Classify convenience function.
var defaultClassifier = NewClassifier(DefaultRules())

// Classify is a package-level convenience wrapping defaultClassifier.
func Classify(err error) Classification {
	return defaultClassifier.Classify(err)
}

// Classify evaluates c's rules against err in order and returns the first
// match; unmatched errors default to PERMANENT/FAIL_FAST/MEDIUM (spec.md
// §4.6).
func (c *Classifier) Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}
	for _, rule := range c.rules {
		if rule.Matches(err) {
			return rule.Result
		}
	}
	return Classification{Category: CategoryPermanent, Severity: SeverityMedium, Strategy: StrategyFailFast}
}

func hasStatus(err error, code int) bool {
	var httpErr *HTTPStatusError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

func hasStatusRange(err error, low, high int) bool {
	var httpErr *HTTPStatusError
	return errors.As(err, &httpErr) && httpErr.StatusCode >= low && httpErr.StatusCode <= high
}

func containsAny(err error, substrs ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range substrs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

package reliability

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerManager owns one gobreaker.CircuitBreaker per named dependency, so
// a failure in one downstream service can't trip the breaker for another.
// Grounded on the pack's per-channel circuitbreaker.Manager pattern
// (jordigilh-kubernaut's notification delivery orchestrator).
type BreakerManager struct {
	mu       sync.Mutex
	settings func(name string) gobreaker.Settings
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewBreakerManager constructs a manager that lazily builds a breaker per
// name using settingsFor.
func NewBreakerManager(settingsFor func(name string) gobreaker.Settings) *BreakerManager {
	return &BreakerManager{
		settings: settingsFor,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// DefaultSettings returns the trip policy used when the caller doesn't
// supply its own: trip after 3 consecutive failures, half-open probe after
// 30 seconds.
func DefaultSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

func (m *BreakerManager) breaker(name string) *gobreaker.CircuitBreaker[any] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[name]; ok {
		return b
	}
	settingsFn := m.settings
	if settingsFn == nil {
		settingsFn = DefaultSettings
	}
	b := gobreaker.NewCircuitBreaker[any](settingsFn(name))
	m.breakers[name] = b
	return b
}

// Execute runs fn through the named breaker, failing fast with the
// breaker's own error when open.
func (m *BreakerManager) Execute(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	b := m.breaker(name)
	return b.Execute(func() (any, error) {
		return fn(ctx)
	})
}

// State reports the current state of the named breaker, creating it with
// default settings if it doesn't exist yet.
func (m *BreakerManager) State(name string) gobreaker.State {
	return m.breaker(name).State()
}

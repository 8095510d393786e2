// Package chaos implements a fault-injection registry of named injection
// points (spec.md §4.6 "Fault injection"). No other package of the module
// imports it: the retry engine does not consult it, and C8's sandbox uses
// reflexion.ChaosScenario instead. Injection is disabled by default and
// mutating it is a deliberate, registry-protected action.
package chaos

import (
	"fmt"
	"sync"

	"github.com/goa-design/kernel/rng"
)

// Kind is one of the closed set of injectable fault kinds (spec.md §4.6).
type Kind string

const (
	KindLatency     Kind = "LATENCY"
	KindError       Kind = "ERROR"
	KindTimeout     Kind = "TIMEOUT"
	KindCrash       Kind = "CRASH"
	KindThrottle    Kind = "THROTTLE"
	KindPartial     Kind = "PARTIAL"
	KindUnavailable Kind = "UNAVAILABLE"
)

// Point is one named injection point: a location in the execution path
// where a fault may be injected with a given probability.
type Point struct {
	Name        string
	Kind        Kind
	Probability float64 // in [0,1]
	Enabled     bool
}

// Registry holds named injection points; each Registry has its own. Mutating it
// (Enable/Disable/Register) is a deliberate administrative action, never
// an implicit side effect of normal execution.
type Registry struct {
	mu     sync.RWMutex
	points map[string]*Point
	jitter *rng.Jitter
}

// NewRegistry constructs an empty, disabled-by-default registry.
func NewRegistry() *Registry {
	return &Registry{
		points: make(map[string]*Point),
		jitter: rng.NewJitter(),
	}
}

// Register adds or replaces an injection point, disabled by default
// regardless of the caller-supplied Enabled field, so enabling a fault is
// always an explicit follow-up call.
func (r *Registry) Register(p Point) {
	p.Enabled = false
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points[p.Name] = &p
}

// Enable turns on fault injection for a named point.
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.points[name]
	if !ok {
		return fmt.Errorf("chaos: unknown injection point %q", name)
	}
	p.Enabled = true
	return nil
}

// Disable turns off fault injection for a named point.
func (r *Registry) Disable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.points[name]
	if !ok {
		return fmt.Errorf("chaos: unknown injection point %q", name)
	}
	p.Enabled = false
	return nil
}

// Should reports whether the named injection point should fire this call,
// sampling its configured probability. An unknown or disabled point never
// fires.
func (r *Registry) Should(name string) (Kind, bool) {
	r.mu.RLock()
	p, ok := r.points[name]
	r.mu.RUnlock()
	if !ok || !p.Enabled {
		return "", false
	}
	return p.Kind, r.jitter.Float64() < p.Probability
}

// Package breaker provides per-component circuit breakers.
//
// Each monitored component name gets its own circuit: closed (normal),
// open (too many consecutive failures, calls rejected without invoking the
// component), half-open (cooldown elapsed, one trial call allowed through).
// The registry is shared and mutated across concurrent requests.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/internal/config"
)

// State is the current circuit state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// OpenError is returned when a circuit is open and the call is shed.
type OpenError struct {
	Component  string
	OpenedAt   time.Time
	RetryAfter time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %s (retry after %s)", e.Component, e.RetryAfter.Format(time.RFC3339))
}

// circuit tracks one component.
type circuit struct {
	state           State
	failureCount    int
	lastFailureTime time.Time
	openedAt        time.Time
	trialInFlight   bool
}

// Registry manages circuit breakers for all monitored components.
// All methods are safe for concurrent use.
type Registry struct {
	cfg      config.BreakerConfig
	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewRegistry creates a breaker registry with the given thresholds.
func NewRegistry(cfg config.BreakerConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		circuits: make(map[string]*circuit),
	}
}

// Allow checks whether a call to the component may proceed.
// Returns nil to proceed, or an *OpenError when the call is shed. When the
// open cooldown has elapsed, the circuit moves to half-open and this call
// becomes the single trial allowed through.
func (r *Registry) Allow(component string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(component)
	switch c.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(c.lastFailureTime) >= r.cfg.OpenTimeout {
			c.state = StateHalfOpen
			c.trialInFlight = true
			return nil
		}
		return &OpenError{
			Component:  component,
			OpenedAt:   c.openedAt,
			RetryAfter: c.lastFailureTime.Add(r.cfg.OpenTimeout),
		}

	case StateHalfOpen:
		if c.trialInFlight {
			return &OpenError{
				Component:  component,
				OpenedAt:   c.openedAt,
				RetryAfter: c.lastFailureTime.Add(r.cfg.OpenTimeout),
			}
		}
		c.trialInFlight = true
		return nil

	default:
		return nil
	}
}

// RecordSuccess records a successful call: resets the failure count, and
// closes a half-open circuit whose trial succeeded.
func (r *Registry) RecordSuccess(component string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(component)
	c.state = StateClosed
	c.failureCount = 0
	c.trialInFlight = false
}

// RecordFailure records a failed call. Opens the circuit after the
// configured number of consecutive failures, and reopens a half-open
// circuit whose trial failed.
func (r *Registry) RecordFailure(component string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(component)
	switch c.state {
	case StateClosed:
		c.failureCount++
		c.lastFailureTime = time.Now()
		if c.failureCount >= r.cfg.FailureThreshold {
			c.state = StateOpen
			c.openedAt = time.Now()
		}
	case StateHalfOpen:
		c.state = StateOpen
		c.openedAt = time.Now()
		c.lastFailureTime = time.Now()
		c.failureCount = r.cfg.FailureThreshold
		c.trialInFlight = false
	case StateOpen:
		// a late failure from a call already in flight must not restart
		// the cooldown clock, or steady traffic keeps the circuit open
		// forever
	}
}

// IsOpen reports whether calls to the component are currently shed.
func (r *Registry) IsOpen(component string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[component]
	if !ok {
		return false
	}
	if c.state == StateOpen && time.Since(c.lastFailureTime) >= r.cfg.OpenTimeout {
		return false // next Allow transitions to half-open
	}
	return c.state == StateOpen
}

// StateOf returns the current state for the component. Unknown components
// are closed (healthy).
func (r *Registry) StateOf(component string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[component]
	if !ok {
		return StateClosed
	}
	if c.state == StateOpen && time.Since(c.lastFailureTime) >= r.cfg.OpenTimeout {
		return StateHalfOpen
	}
	return c.state
}

// Reset returns the component's circuit to closed. Used for explicit
// lifecycle resets; normal recovery goes through the half-open trial.
func (r *Registry) Reset(component string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.circuits[component]; ok {
		c.state = StateClosed
		c.failureCount = 0
		c.trialInFlight = false
	}
}

// ComponentStats is a monitoring snapshot for one circuit.
type ComponentStats struct {
	State       State     `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// Stats returns a snapshot of every tracked circuit for the status endpoint.
func (r *Registry) Stats() map[string]ComponentStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ComponentStats, len(r.circuits))
	for name, c := range r.circuits {
		state := c.state
		if state == StateOpen && time.Since(c.lastFailureTime) >= r.cfg.OpenTimeout {
			state = StateHalfOpen
		}
		out[name] = ComponentStats{
			State:       state,
			Failures:    c.failureCount,
			LastFailure: c.lastFailureTime,
		}
	}
	return out
}

// get returns the circuit for the component, creating it closed.
// Caller must hold mu.
func (r *Registry) get(component string) *circuit {
	c, ok := r.circuits[component]
	if !ok {
		c = &circuit{state: StateClosed}
		r.circuits[component] = c
	}
	return c
}

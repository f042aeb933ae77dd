// Package recovery implements the global error handler: severity
// classification, structured diagnostics, and an ordered recovery-strategy
// dispatch backed by the circuit breaker registry.
package recovery

import (
	"context"
	"strings"
	"sync"

	"github.com/HonestImpact/tryit-orchestrator/internal/breaker"
	"github.com/rs/zerolog/log"
)

// Severity buckets an error for logging and alerting.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ErrorContext carries where an error happened. Diagnostics are logged with
// this context but never echoed verbatim to the caller.
type ErrorContext struct {
	Component string
	Operation string
	SessionID string
}

// Strategy is one recovery path: a predicate over (error, context), an
// action to attempt, and an optional fallback when the action itself fails.
type Strategy struct {
	Name     string
	Matches  func(err error, ec ErrorContext) bool
	Action   func(ctx context.Context, ec ErrorContext) error
	Fallback func(ctx context.Context, ec ErrorContext) error
}

// Handler is the process-wide error handler. It is constructed once at
// startup and passed into the orchestrator explicitly.
type Handler struct {
	breakers   *breaker.Registry
	strategies []Strategy

	mu       sync.RWMutex
	critical map[string]bool
}

// NewHandler creates a handler over the given breaker registry. Strategies
// are consulted in the order given; first match wins.
func NewHandler(breakers *breaker.Registry, strategies ...Strategy) *Handler {
	return &Handler{
		breakers:   breakers,
		strategies: strategies,
		critical: map[string]bool{
			"llm-provider": true,
			"workflow":     true,
		},
	}
}

// MarkCritical adds a component whose errors always classify as high
// severity. Safe to call while the handler is serving.
func (h *Handler) MarkCritical(component string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.critical[component] = true
}

// Handle classifies and logs the error, then dispatches the first matching
// recovery strategy. Returns nil when a strategy (or its fallback)
// recovered; otherwise records a breaker failure for the component and
// returns the original error.
func (h *Handler) Handle(ctx context.Context, err error, ec ErrorContext) error {
	if err == nil {
		return nil
	}

	sev := h.Classify(err, ec)
	evt := log.Error()
	if sev != SeverityHigh {
		evt = log.Warn()
	}
	evt.
		Str("component", ec.Component).
		Str("operation", ec.Operation).
		Str("session_id", ec.SessionID).
		Str("severity", string(sev)).
		Err(err).
		Msg("💥 Component error")

	for _, s := range h.strategies {
		if !s.Matches(err, ec) {
			continue
		}
		if actionErr := s.Action(ctx, ec); actionErr != nil {
			log.Warn().
				Str("strategy", s.Name).
				Err(actionErr).
				Msg("Recovery action failed")
			if s.Fallback == nil {
				break
			}
			if fbErr := s.Fallback(ctx, ec); fbErr != nil {
				log.Warn().
					Str("strategy", s.Name).
					Err(fbErr).
					Msg("Recovery fallback failed")
				break
			}
		}
		log.Info().
			Str("strategy", s.Name).
			Str("component", ec.Component).
			Msg("✅ Recovered from component error")
		return nil
	}

	h.breakers.RecordFailure(ec.Component)
	return err
}

// Classify buckets the error: critical components are high, transient
// upstream conditions are medium, everything else low.
func (h *Handler) Classify(err error, ec ErrorContext) Severity {
	h.mu.RLock()
	isCritical := h.critical[ec.Component]
	h.mu.RUnlock()
	if isCritical {
		return SeverityHigh
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "rate limit") {
		return SeverityMedium
	}
	return SeverityLow
}

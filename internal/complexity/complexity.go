// Package complexity decides whether a request takes the single-agent or
// the multi-agent path. The decision is a pure function over the last user
// message and the conversation history — no I/O, no side effects.
package complexity

import (
	"strings"

	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// complexKeywords route to the multi-agent path when present anywhere in
// the message. Product policy, not algorithm — tune with care.
var complexKeywords = []string{
	"build",
	"create",
	"implement",
	"design",
	"develop",
	"component",
	"complex",
	"comprehensive",
	"detailed",
	"multi-step",
	"step by step",
}

// Router classifies requests as simple or complex.
type Router struct {
	cfg config.RoutingConfig
}

// NewRouter creates a complexity router with the given thresholds.
func NewRouter(cfg config.RoutingConfig) *Router {
	return &Router{cfg: cfg}
}

// IsComplex returns true when the request should take the multi-agent path.
// The decision is the OR of four signals: keyword hit, message length,
// question density, and conversation depth.
func (r *Router) IsComplex(message string, history []models.ChatMessage) bool {
	lower := strings.ToLower(message)
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if len(message) > r.cfg.MaxSimpleLength {
		return true
	}
	if strings.Count(message, "?") >= r.cfg.MinQuestionMarks {
		return true
	}
	if len(history) > r.cfg.MaxHistoryLength {
		return true
	}
	return false
}

// Package contracts defines the collaborator interfaces for the TryIt
// orchestrator.
//
// The orchestration layer sequences, times, and degrades calls to opaque
// capability providers; it does not implement any model inference itself.
// These interfaces are the boundary: the web application supplies or swaps
// implementations in the wiring code, and tests substitute fakes without
// touching the orchestrator.
package contracts

import (
	"context"

	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// ── Agent ────────────────────────────────────────────────────

// Agent is an opaque capability provider invoked by the orchestrator.
type Agent interface {
	// Name identifies the agent ("researcher", "analyst", "builder", "noah").
	Name() string

	// Process handles one request. Implementations should honor ctx
	// cancellation; the orchestrator abandons calls that do not.
	Process(ctx context.Context, req *models.AgentRequest) (*models.AgentResponse, error)
}

// ── LLM Provider ─────────────────────────────────────────────

// LLMProvider is the uniform call interface over a model backend.
type LLMProvider interface {
	// GenerateText performs one completion call. The request must carry a
	// non-empty model id and message list, else the call fails fast with a
	// ValidationError and is never retried.
	GenerateText(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)

	// StreamText performs one streaming completion call. The returned
	// channel is closed after the final chunk (Done=true or Err set).
	StreamText(ctx context.Context, req *models.GenerateRequest) (<-chan models.TextChunk, error)

	// Status returns a snapshot of the provider's health.
	Status() models.ProviderStatus

	// Costs returns cumulative spend for the process lifetime.
	Costs() models.CostSummary

	// Shutdown stops the provider; subsequent calls fail immediately.
	Shutdown()
}

// ── Shared Resources ─────────────────────────────────────────

// KnowledgeService answers free-text queries against the knowledge base.
// Search internals live behind this interface and are out of scope here.
type KnowledgeService interface {
	Search(ctx context.Context, query string, topK int) ([]models.KnowledgeResult, error)
}

// RAGIntegration augments a prompt with retrieved context before a
// provider call.
type RAGIntegration interface {
	Augment(ctx context.Context, query string) (string, error)
}

// SolutionGenerator produces a structured solution draft for a request.
type SolutionGenerator interface {
	Generate(ctx context.Context, req *models.AgentRequest) (string, error)
}

// ── Session Logger ───────────────────────────────────────────

// SessionLogger receives the finished transcript and metrics after a
// response is built. Calls are fire-and-forget: implementations must never
// block or fail the request path.
type SessionLogger interface {
	Log(sessionID string, messages []models.ChatMessage, metrics *models.SessionMetrics)
}

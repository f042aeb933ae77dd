package models

import (
	"time"
)

// ── Chat Request ─────────────────────────────────────────────

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// AgentRequest is the immutable inbound unit of work. It is created once
// per call and owned by the orchestrator for the request's lifetime.
type AgentRequest struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	History   []ChatMessage `json:"history,omitempty"`
}

// ── Agent Response ───────────────────────────────────────────

// Metadata is the sealed per-agent-kind variant attached to an
// AgentResponse. Consumers type-switch on the concrete type instead of
// digging through an untyped map.
type Metadata interface {
	isMetadata()
}

// ResearchMetadata is produced by research agents.
type ResearchMetadata struct {
	SourcesFound int `json:"sources_found"`
}

func (ResearchMetadata) isMetadata() {}

// BuildMetadata is produced by build agents.
type BuildMetadata struct {
	ComponentsUsed []string `json:"components_used"`
}

func (BuildMetadata) isMetadata() {}

// AgentResponse is produced by an Agent and consumed once by the
// orchestrator.
type AgentResponse struct {
	Content    string   `json:"content"`
	Confidence float64  `json:"confidence"`
	Metadata   Metadata `json:"metadata,omitempty"`
}

// ── Workflow State ───────────────────────────────────────────

// Phase identifies one stage of the staged workflow.
type Phase string

const (
	PhaseResearch Phase = "research"
	PhaseAnalysis Phase = "analysis"
	PhaseBuild    Phase = "build"
	PhaseComplete Phase = "complete"

	PhaseFailedResearch Phase = "failed_at_research"
	PhaseFailedAnalysis Phase = "failed_at_analysis"
	PhaseFailedBuild    Phase = "failed_at_build"
)

// FailedAt returns the terminal failure phase for the given running phase.
func FailedAt(p Phase) Phase {
	switch p {
	case PhaseResearch:
		return PhaseFailedResearch
	case PhaseAnalysis:
		return PhaseFailedAnalysis
	case PhaseBuild:
		return PhaseFailedBuild
	default:
		return p
	}
}

// WorkflowState tracks a single request's progress through the staged
// workflow. A later phase's result is never populated unless every earlier
// phase succeeded.
type WorkflowState struct {
	Phase    Phase          `json:"phase"`
	Research *AgentResponse `json:"research,omitempty"`
	Analysis *AgentResponse `json:"analysis,omitempty"`
	Build    *AgentResponse `json:"build,omitempty"`

	// Elapsed wall time per completed phase.
	ResearchMs int64 `json:"research_ms"`
	AnalysisMs int64 `json:"analysis_ms"`
	BuildMs    int64 `json:"build_ms"`

	StartedAt time.Time `json:"started_at"`
}

// ── Workflow Response ────────────────────────────────────────

// ResponseStatus is the outcome of an orchestrated request.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusPartial ResponseStatus = "partial"
	StatusError   ResponseStatus = "error"
)

// Complexity buckets a completed workflow by how heavy the build was.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// PhaseTimes carries per-phase elapsed milliseconds.
type PhaseTimes struct {
	ResearchMs int64 `json:"research"`
	AnalysisMs int64 `json:"analysis"`
	BuildMs    int64 `json:"build"`
}

// WorkflowResponse is the user-facing result of one orchestrated request.
// Content is never empty: every failure mode resolves to an in-persona
// explanatory message.
type WorkflowResponse struct {
	Content       string         `json:"content"`
	Status        ResponseStatus `json:"status"`
	Agent         string         `json:"agent"`
	WorkflowPhase Phase          `json:"workflow_phase,omitempty"`

	ResearchResults *AgentResponse `json:"research_results,omitempty"`
	AnalysisResults *AgentResponse `json:"analysis_results,omitempty"`
	BuildResults    *AgentResponse `json:"build_results,omitempty"`

	TotalTimeMs int64       `json:"total_time_ms,omitempty"`
	PhaseTimes  *PhaseTimes `json:"phase_times,omitempty"`
	Complexity  Complexity  `json:"complexity,omitempty"`
	NextSteps   []string    `json:"next_steps,omitempty"`

	Artifact *Artifact `json:"artifact,omitempty"`
}

// ── Provider ─────────────────────────────────────────────────

// GenerateRequest is the uniform input to an LLM provider call.
type GenerateRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// GenerateResponse is the uniform output of an LLM provider call.
type GenerateResponse struct {
	Content      string     `json:"content"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// TextChunk is one element of a streamed response.
type TextChunk struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done"`
	Err     error  `json:"-"`
}

type TokenUsage struct {
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	TotalTokens   int64   `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost_usd"`
}

// ProviderStatus is a snapshot of a provider's health, mutated only by the
// provider itself after each call.
type ProviderStatus struct {
	IsAvailable        bool      `json:"is_available"`
	ResponseTimeMs     int64     `json:"response_time_ms"` // exponential moving average
	ErrorRate          float64   `json:"error_rate"`
	RateLimitRemaining int       `json:"rate_limit_remaining"`
	LastChecked        time.Time `json:"last_checked"`
}

// CostSummary tracks cumulative provider spend for the process lifetime.
type CostSummary struct {
	TotalCostUSD float64            `json:"total_cost_usd"`
	TotalTokens  int64              `json:"total_tokens"`
	ByModel      map[string]float64 `json:"by_model"`
}

// ── Artifact ─────────────────────────────────────────────────

// Artifact is a structured, reusable deliverable (tool/template/checklist)
// extracted from an agent's free-text response. Derived deterministically
// from one text input; never persisted by this layer.
type Artifact struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	Reasoning    string `json:"reasoning,omitempty"`
	HasArtifact  bool   `json:"has_artifact"`
	CleanContent string `json:"clean_content"`
}

// ── Knowledge ────────────────────────────────────────────────

// KnowledgeDoc is a document held by the knowledge service.
type KnowledgeDoc struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// KnowledgeResult is one scored search hit.
type KnowledgeResult struct {
	Doc   KnowledgeDoc `json:"doc"`
	Score float64      `json:"score"`
}

// ── Trace ────────────────────────────────────────────────────

// Trace records one agent or provider call for the status endpoints.
type Trace struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id,omitempty"`
	Component  string    `json:"component"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	Tokens     int64     `json:"tokens,omitempty"`
	CostUSD    float64   `json:"cost_usd,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ── Session ──────────────────────────────────────────────────

// SessionMetrics is the fire-and-forget payload handed to the session
// logger after a response is built.
type SessionMetrics struct {
	Status      ResponseStatus `json:"status"`
	Phase       Phase          `json:"phase,omitempty"`
	TotalTimeMs int64          `json:"total_time_ms"`
	Complexity  Complexity     `json:"complexity,omitempty"`
	HasArtifact bool           `json:"has_artifact"`

	// Variant and Conversions feed the external A/B collaborator: a
	// conversion increments a counter on the assigned variant, nothing more.
	Variant     string `json:"variant,omitempty"`
	Conversions int    `json:"conversions,omitempty"`
}

// Session is the recorded transcript plus metrics for one session.
type Session struct {
	ID        string          `json:"id"`
	Messages  []ChatMessage   `json:"messages"`
	Metrics   *SessionMetrics `json:"metrics,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

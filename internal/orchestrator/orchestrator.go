// Package orchestrator runs the staged multi-agent workflow: phase calls
// raced against deadlines, partial-result assembly, and the degraded
// fallback cascade. The request always terminates with a non-empty,
// user-facing response.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/internal/agents"
	"github.com/HonestImpact/tryit-orchestrator/internal/artifact"
	"github.com/HonestImpact/tryit-orchestrator/internal/breaker"
	"github.com/HonestImpact/tryit-orchestrator/internal/complexity"
	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/internal/recovery"
	"github.com/HonestImpact/tryit-orchestrator/internal/resources"
	"github.com/HonestImpact/tryit-orchestrator/internal/store"
	"github.com/HonestImpact/tryit-orchestrator/pkg/contracts"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// componentProvider names the provider circuit shared by all phases.
const componentProvider = "llm-provider"

// Deps are the collaborators wired in at process start. Nothing here is a
// package-level singleton; tests construct a Deps with fakes.
type Deps struct {
	Config     config.WorkflowConfig
	Model      string
	Router     *complexity.Router
	Resources  *resources.Manager
	Provider   contracts.LLMProvider
	Breakers   *breaker.Registry
	Recovery   *recovery.Handler
	Classifier *artifact.Classifier
	Sessions   contracts.SessionLogger
	Store      store.Store
}

// Engine orchestrates one request end to end.
type Engine struct {
	deps   Deps
	tracer trace.Tracer
}

// NewEngine creates the orchestration engine.
func NewEngine(deps Deps) *Engine {
	return &Engine{
		deps:   deps,
		tracer: otel.Tracer("tryit-orchestrator/workflow"),
	}
}

// HandleRequest routes the request down the simple or multi-agent path and
// always returns a response with non-empty content.
func (e *Engine) HandleRequest(ctx context.Context, req *models.AgentRequest) *models.WorkflowResponse {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx, span := e.tracer.Start(ctx, "orchestrate",
		trace.WithAttributes(
			attribute.String("request.id", req.ID),
			attribute.String("session.id", req.SessionID),
		))
	defer span.End()

	var resp *models.WorkflowResponse
	if e.deps.Router.IsComplex(req.Content, req.History) {
		span.SetAttributes(attribute.String("path", "multi-agent"))
		resp = e.runWorkflow(ctx, req, start)
	} else {
		span.SetAttributes(attribute.String("path", "single-agent"))
		resp = e.runSimple(ctx, req, start)
	}

	span.SetAttributes(attribute.String("status", string(resp.Status)))
	e.logSession(req, resp)
	return resp
}

// ── Single-agent path ───────────────────────────────────────

func (e *Engine) runSimple(ctx context.Context, req *models.AgentRequest, start time.Time) *models.WorkflowResponse {
	noah := agents.NewNoah(e.deps.Provider, e.deps.Model)
	resp, err := e.callAgent(ctx, noah, req, e.deps.Config.FallbackTimeout, "chat")
	if err != nil {
		var oe *breaker.OpenError
		if errors.As(err, &oe) {
			// shed, not a failure: the circuit recovers on its own clock
			return e.apology(err, start)
		}
		ec := recovery.ErrorContext{Component: noah.Name(), Operation: "chat", SessionID: req.SessionID}
		if recErr := e.deps.Recovery.Handle(ctx, err, ec); recErr == nil {
			if resp, err = e.callAgent(ctx, noah, req, e.deps.Config.FallbackTimeout, "chat"); err == nil {
				return e.finishSingle(resp, start)
			}
		}
		return e.apology(err, start)
	}
	return e.finishSingle(resp, start)
}

// ── Multi-agent workflow ────────────────────────────────────

func (e *Engine) runWorkflow(ctx context.Context, req *models.AgentRequest, start time.Time) *models.WorkflowResponse {
	bundle, err := e.initResources(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Resource construction failed, degrading to single agent")
		return e.fallback(ctx, req, start, err)
	}

	if err := e.deps.Breakers.Allow(componentProvider); err != nil {
		log.Warn().Err(err).Msg("Provider circuit open, degrading to single agent")
		return e.fallback(ctx, req, start, &contracts.ProviderError{Provider: componentProvider, Err: err})
	}

	state := &models.WorkflowState{Phase: models.PhaseResearch, StartedAt: start}

	phases := []struct {
		phase   models.Phase
		timeout time.Duration
		agent   contracts.Agent
		input   func() string
	}{
		{
			phase:   models.PhaseResearch,
			timeout: e.deps.Config.ResearchTimeout,
			agent:   agents.NewResearcher(e.deps.Provider, bundle.Knowledge, e.deps.Model),
			input:   func() string { return req.Content },
		},
		{
			phase:   models.PhaseAnalysis,
			timeout: e.deps.Config.AnalysisTimeout,
			agent:   agents.NewAnalyst(e.deps.Provider, e.deps.Model),
			input: func() string {
				return req.Content + "\n\nResearch findings:\n" + state.Research.Content
			},
		},
		{
			phase:   models.PhaseBuild,
			timeout: e.deps.Config.BuildTimeout,
			agent:   agents.NewBuilder(e.deps.Provider, e.deps.Model),
			input: func() string {
				return req.Content + "\n\nResearch findings:\n" + state.Research.Content +
					"\n\nPlan:\n" + state.Analysis.Content
			},
		},
	}

	for _, p := range phases {
		state.Phase = p.phase
		phaseReq := *req
		phaseReq.Content = p.input()

		phaseStart := time.Now()
		resp, err := e.runPhase(ctx, p.phase, p.agent, &phaseReq, p.timeout)
		elapsed := time.Since(phaseStart).Milliseconds()

		switch p.phase {
		case models.PhaseResearch:
			state.ResearchMs = elapsed
		case models.PhaseAnalysis:
			state.AnalysisMs = elapsed
		case models.PhaseBuild:
			state.BuildMs = elapsed
		}

		if err != nil {
			state.Phase = models.FailedAt(p.phase)
			if p.phase == models.PhaseResearch {
				// nothing succeeded yet: top-level fallback cascade
				return e.fallback(ctx, req, start, err)
			}
			return e.partial(state, p.phase, start)
		}

		switch p.phase {
		case models.PhaseResearch:
			state.Research = resp
		case models.PhaseAnalysis:
			state.Analysis = resp
		case models.PhaseBuild:
			state.Build = resp
		}
	}

	state.Phase = models.PhaseComplete
	return e.complete(state, start)
}

// initResources races the single-flight bundle build against the
// construction deadline.
func (e *Engine) initResources(ctx context.Context) (*resources.Bundle, error) {
	cctx, cancel := context.WithTimeout(ctx, e.deps.Config.ConstructTimeout)
	defer cancel()

	type result struct {
		bundle *resources.Bundle
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := e.deps.Resources.Initialize(cctx)
		ch <- result{b, err}
	}()

	select {
	case r := <-ch:
		return r.bundle, r.err
	case <-cctx.Done():
		return nil, &contracts.TimeoutError{Operation: "resource construction", Deadline: e.deps.Config.ConstructTimeout}
	}
}

// runPhase wraps one phase call with its breaker, deadline race, recovery
// dispatch, and trace record.
func (e *Engine) runPhase(ctx context.Context, phase models.Phase, agent contracts.Agent, req *models.AgentRequest, timeout time.Duration) (*models.AgentResponse, error) {
	ctx, span := e.tracer.Start(ctx, "phase."+string(phase),
		trace.WithAttributes(attribute.String("agent", agent.Name())))
	defer span.End()

	resp, err := e.callAgent(ctx, agent, req, timeout, string(phase))
	if err != nil {
		span.RecordError(err)

		// a shed call never counts as a component failure, and recording
		// it would push the half-open trial out indefinitely
		var oe *breaker.OpenError
		if errors.As(err, &oe) {
			return nil, err
		}

		ec := recovery.ErrorContext{
			Component: agent.Name(),
			Operation: string(phase),
			SessionID: req.SessionID,
		}
		if recErr := e.deps.Recovery.Handle(ctx, err, ec); recErr == nil {
			// a strategy restored the component: one retry
			resp, err = e.callAgent(ctx, agent, req, timeout, string(phase))
			if err != nil {
				e.deps.Breakers.RecordFailure(agent.Name())
				return nil, err
			}
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}

// callAgent is the deadline-race primitive: first of {agent settles, timer
// fires} wins. The context is cancelled on timeout so cooperative agents
// stop; uncooperative work is abandoned.
func (e *Engine) callAgent(ctx context.Context, agent contracts.Agent, req *models.AgentRequest, timeout time.Duration, operation string) (*models.AgentResponse, error) {
	if err := e.deps.Breakers.Allow(agent.Name()); err != nil {
		return nil, &contracts.ProviderError{Provider: agent.Name(), Err: err}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp *models.AgentResponse
		err  error
	}
	ch := make(chan result, 1)
	start := time.Now()
	go func() {
		resp, err := agent.Process(cctx, req)
		ch <- result{resp, err}
	}()

	var resp *models.AgentResponse
	var err error
	select {
	case r := <-ch:
		resp, err = r.resp, r.err
	case <-cctx.Done():
		err = &contracts.TimeoutError{Operation: operation, Deadline: timeout}
	}

	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		var pe *contracts.ProviderError
		if errors.As(err, &pe) {
			e.deps.Breakers.RecordFailure(componentProvider)
		}
		e.recordTrace(req.SessionID, agent.Name(), operation, "failed", elapsed, err)
		return nil, err
	}

	e.deps.Breakers.RecordSuccess(agent.Name())
	e.deps.Breakers.RecordSuccess(componentProvider)
	e.recordTrace(req.SessionID, agent.Name(), operation, "completed", elapsed, nil)
	return resp, nil
}

// ── Fallback cascade ────────────────────────────────────────

// fallback attempts exactly one degraded single-agent call, unless too much
// of the request's soft time budget is already spent.
func (e *Engine) fallback(ctx context.Context, req *models.AgentRequest, start time.Time, cause error) *models.WorkflowResponse {
	spent := time.Since(start)
	budget := time.Duration(float64(e.deps.Config.SoftBudget) * e.deps.Config.SkipFallbackRatio)
	if spent > budget {
		log.Warn().
			Dur("spent", spent).
			Dur("budget", budget).
			Msg("Skipping fallback, soft budget nearly exhausted")
		return e.apology(cause, start)
	}

	noah := agents.NewNoah(e.deps.Provider, e.deps.Model)
	resp, err := e.callAgent(ctx, noah, req, e.deps.Config.FallbackTimeout, "fallback")
	if err != nil {
		return e.apology(cause, start)
	}

	log.Info().Msg("✅ Degraded single-agent fallback succeeded")
	return e.finishSingle(resp, start)
}

// apology is the terminal failure response: static, in-persona, non-empty.
func (e *Engine) apology(cause error, start time.Time) *models.WorkflowResponse {
	return &models.WorkflowResponse{
		Content:     recovery.Explain(cause),
		Status:      models.StatusError,
		Agent:       "noah",
		TotalTimeMs: time.Since(start).Milliseconds(),
	}
}

// ── Response assembly ───────────────────────────────────────

func (e *Engine) finishSingle(resp *models.AgentResponse, start time.Time) *models.WorkflowResponse {
	art := e.deps.Classifier.Process(resp.Content)
	out := &models.WorkflowResponse{
		Content:     resp.Content,
		Status:      models.StatusSuccess,
		Agent:       "noah",
		TotalTimeMs: time.Since(start).Milliseconds(),
	}
	if art.HasArtifact {
		out.Content = art.CleanContent
		out.Artifact = &art
	}
	return out
}

func (e *Engine) partial(state *models.WorkflowState, failed models.Phase, start time.Time) *models.WorkflowResponse {
	out := &models.WorkflowResponse{
		Status:        models.StatusPartial,
		WorkflowPhase: failed,
		TotalTimeMs:   time.Since(start).Milliseconds(),
		PhaseTimes: &models.PhaseTimes{
			ResearchMs: state.ResearchMs,
			AnalysisMs: state.AnalysisMs,
			BuildMs:    state.BuildMs,
		},
		ResearchResults: state.Research,
		AnalysisResults: state.Analysis,
		BuildResults:    state.Build,
	}

	// carry the furthest successful output so the reply stays useful
	switch {
	case state.Analysis != nil:
		out.Agent = "analyst"
		out.Content = "I couldn't finish building, but here's what I worked out so far:\n\n" + state.Analysis.Content
	case state.Research != nil:
		out.Agent = "researcher"
		out.Content = "I couldn't take this all the way, but here's what I found:\n\n" + state.Research.Content
	default:
		out.Agent = "noah"
		out.Content = recovery.Explain(nil)
	}
	return out
}

func (e *Engine) complete(state *models.WorkflowState, start time.Time) *models.WorkflowResponse {
	build := state.Build
	art := e.deps.Classifier.Process(build.Content)

	out := &models.WorkflowResponse{
		Content:       build.Content,
		Status:        models.StatusSuccess,
		Agent:         "builder",
		WorkflowPhase: models.PhaseComplete,
		TotalTimeMs:   time.Since(start).Milliseconds(),
		PhaseTimes: &models.PhaseTimes{
			ResearchMs: state.ResearchMs,
			AnalysisMs: state.AnalysisMs,
			BuildMs:    state.BuildMs,
		},
		ResearchResults: state.Research,
		AnalysisResults: state.Analysis,
		BuildResults:    build,
		Complexity:      deriveComplexity(time.Since(start), build.Content),
		NextSteps:       deriveNextSteps(build.Content),
	}
	if art.HasArtifact {
		out.Content = art.CleanContent
		out.Artifact = &art
	}
	return out
}

// ── Bookkeeping ─────────────────────────────────────────────

func (e *Engine) recordTrace(sessionID, component, operation, status string, durationMs int64, err error) {
	if e.deps.Store == nil {
		return
	}
	t := &models.Trace{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Component:  component,
		Operation:  operation,
		Status:     status,
		DurationMs: durationMs,
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		t.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if storeErr := e.deps.Store.CreateTrace(ctx, t); storeErr != nil {
		log.Warn().Err(storeErr).Msg("Failed to record trace")
	}
}

func (e *Engine) logSession(req *models.AgentRequest, resp *models.WorkflowResponse) {
	if e.deps.Sessions == nil || req.SessionID == "" {
		return
	}
	messages := append([]models.ChatMessage(nil), req.History...)
	messages = append(messages,
		models.ChatMessage{Role: "user", Content: req.Content},
		models.ChatMessage{Role: "assistant", Content: resp.Content},
	)
	e.deps.Sessions.Log(req.SessionID, messages, &models.SessionMetrics{
		Status:      resp.Status,
		Phase:       resp.WorkflowPhase,
		TotalTimeMs: resp.TotalTimeMs,
		Complexity:  resp.Complexity,
		HasArtifact: resp.Artifact != nil,
	})
}

// countCodeBlocks counts fenced blocks (pairs of ``` markers).
func countCodeBlocks(content string) int {
	return strings.Count(content, "```") / 2
}

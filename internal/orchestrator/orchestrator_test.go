package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/internal/artifact"
	"github.com/HonestImpact/tryit-orchestrator/internal/breaker"
	"github.com/HonestImpact/tryit-orchestrator/internal/complexity"
	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/internal/knowledge"
	"github.com/HonestImpact/tryit-orchestrator/internal/orchestrator"
	"github.com/HonestImpact/tryit-orchestrator/internal/recovery"
	"github.com/HonestImpact/tryit-orchestrator/internal/resources"
	"github.com/HonestImpact/tryit-orchestrator/internal/store"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns canned outcomes in call order.
type scriptedProvider struct {
	mu     sync.Mutex
	calls  int
	script []providerCall
}

type providerCall struct {
	content string
	err     error
	delay   time.Duration
}

func (p *scriptedProvider) GenerateText(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	p.mu.Unlock()

	if i >= len(p.script) {
		return nil, errors.New("unscripted call")
	}
	call := p.script[i]
	if call.delay > 0 {
		select {
		case <-time.After(call.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if call.err != nil {
		return nil, call.err
	}
	return &models.GenerateResponse{Content: call.content}, nil
}

func (p *scriptedProvider) StreamText(ctx context.Context, req *models.GenerateRequest) (<-chan models.TextChunk, error) {
	ch := make(chan models.TextChunk)
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Status() models.ProviderStatus { return models.ProviderStatus{IsAvailable: true} }
func (p *scriptedProvider) Costs() models.CostSummary     { return models.CostSummary{} }
func (p *scriptedProvider) Shutdown()                     {}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		ConstructTimeout:  time.Second,
		ResearchTimeout:   200 * time.Millisecond,
		AnalysisTimeout:   200 * time.Millisecond,
		BuildTimeout:      200 * time.Millisecond,
		FallbackTimeout:   200 * time.Millisecond,
		SoftBudget:        5 * time.Second,
		SkipFallbackRatio: 0.8,
	}
}

func newTestEngine(t *testing.T, p *scriptedProvider, cfg config.WorkflowConfig) *orchestrator.Engine {
	t.Helper()
	breakers := breaker.NewRegistry(config.BreakerConfig{FailureThreshold: 5, OpenTimeout: time.Minute})
	return newTestEngineWithBreakers(t, p, cfg, breakers)
}

func newTestEngineWithBreakers(t *testing.T, p *scriptedProvider, cfg config.WorkflowConfig, breakers *breaker.Registry) *orchestrator.Engine {
	t.Helper()
	return orchestrator.NewEngine(orchestrator.Deps{
		Config: cfg,
		Model:  "test-model",
		Router: complexity.NewRouter(config.RoutingConfig{
			MaxSimpleLength:  150,
			MinQuestionMarks: 2,
			MaxHistoryLength: 4,
		}),
		Resources: resources.NewManagerWith(func(ctx context.Context) (*resources.Bundle, error) {
			return &resources.Bundle{Knowledge: knowledge.NewService()}, nil
		}),
		Provider:   p,
		Breakers:   breakers,
		Recovery:   recovery.NewHandler(breakers),
		Classifier: artifact.NewClassifier(config.ArtifactConfig{MinLength: 100, ScoreThreshold: 4}),
		Store:      store.NewMemoryStore(),
	})
}

const buildOutput = "Here's your calculator component:\n```html\n<div class=\"calc\"></div>\n```\nStyle it with the CSS below and wire the API endpoint."

func TestEndToEndSuccess(t *testing.T) {
	p := &scriptedProvider{script: []providerCall{
		{content: "research: calculators need digit and operator buttons"},
		{content: "plan: layout grid, wire events, display result"},
		{content: buildOutput},
	}}
	e := newTestEngine(t, p, testWorkflowConfig())

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{
		SessionID: "s1",
		Content:   "I need a calculator component",
	})

	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, models.PhaseComplete, resp.WorkflowPhase)
	assert.NotEmpty(t, resp.Content)
	require.NotNil(t, resp.ResearchResults)
	require.NotNil(t, resp.AnalysisResults)
	require.NotNil(t, resp.BuildResults)
	require.NotNil(t, resp.PhaseTimes)

	phaseSum := resp.PhaseTimes.ResearchMs + resp.PhaseTimes.AnalysisMs + resp.PhaseTimes.BuildMs
	assert.LessOrEqual(t, phaseSum, resp.TotalTimeMs)

	require.NotEmpty(t, resp.NextSteps)
	assert.Contains(t, resp.NextSteps, "Review the included code before using it")
	assert.Contains(t, resp.NextSteps[len(resp.NextSteps)-1], "deploy")
	assert.Equal(t, 3, p.callCount())
}

func TestAnalysisFailureYieldsPartial(t *testing.T) {
	p := &scriptedProvider{script: []providerCall{
		{content: "research findings about habit trackers"},
		{err: errors.New("analysis backend exploded")},
	}}
	e := newTestEngine(t, p, testWorkflowConfig())

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{
		SessionID: "s1",
		Content:   "build me a detailed habit tracker",
	})

	assert.Equal(t, models.StatusPartial, resp.Status)
	assert.Equal(t, models.PhaseAnalysis, resp.WorkflowPhase)
	assert.NotNil(t, resp.ResearchResults)
	assert.Nil(t, resp.AnalysisResults)
	assert.Nil(t, resp.BuildResults)
	assert.NotEmpty(t, resp.Content)
	assert.Contains(t, resp.Content, "research findings about habit trackers")
}

func TestBuildFailureKeepsEarlierPhases(t *testing.T) {
	p := &scriptedProvider{script: []providerCall{
		{content: "research findings"},
		{content: "the plan"},
		{err: errors.New("build backend exploded")},
	}}
	e := newTestEngine(t, p, testWorkflowConfig())

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "create a comprehensive tracker"})

	assert.Equal(t, models.StatusPartial, resp.Status)
	assert.Equal(t, models.PhaseBuild, resp.WorkflowPhase)
	assert.NotNil(t, resp.ResearchResults)
	assert.NotNil(t, resp.AnalysisResults)
	assert.Nil(t, resp.BuildResults)
	assert.Contains(t, resp.Content, "the plan")
}

func TestResearchFailureFallsBackToSingleAgent(t *testing.T) {
	p := &scriptedProvider{script: []providerCall{
		{err: errors.New("research backend exploded")},
		{content: "a direct single-agent answer"},
	}}
	e := newTestEngine(t, p, testWorkflowConfig())

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "build me something detailed"})

	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, "noah", resp.Agent)
	assert.Contains(t, resp.Content, "a direct single-agent answer")
	assert.Equal(t, 2, p.callCount())
}

func TestFallbackFailureYieldsApology(t *testing.T) {
	p := &scriptedProvider{script: []providerCall{
		{err: errors.New("rate limit exceeded")},
		{err: errors.New("rate limit exceeded")},
	}}
	e := newTestEngine(t, p, testWorkflowConfig())

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "build me something detailed"})

	assert.Equal(t, models.StatusError, resp.Status)
	assert.NotEmpty(t, resp.Content)
	assert.Contains(t, resp.Content, "a lot of requests")
}

func TestPhaseTimeoutTriggersFallback(t *testing.T) {
	cfg := testWorkflowConfig()
	cfg.ResearchTimeout = 30 * time.Millisecond

	p := &scriptedProvider{script: []providerCall{
		{content: "too late", delay: 500 * time.Millisecond},
		{content: "quick fallback answer"},
	}}
	e := newTestEngine(t, p, cfg)

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "design something comprehensive"})

	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Contains(t, resp.Content, "quick fallback answer")
}

func TestFallbackSkippedWhenBudgetSpent(t *testing.T) {
	cfg := testWorkflowConfig()
	cfg.ResearchTimeout = 50 * time.Millisecond
	cfg.SoftBudget = 40 * time.Millisecond
	cfg.SkipFallbackRatio = 0.8

	p := &scriptedProvider{script: []providerCall{
		{content: "too late", delay: 500 * time.Millisecond},
		{content: "should never be called"},
	}}
	e := newTestEngine(t, p, cfg)

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "design something comprehensive"})

	assert.Equal(t, models.StatusError, resp.Status)
	assert.NotEmpty(t, resp.Content)
	assert.Equal(t, 1, p.callCount(), "fallback skipped")
}

func TestSimplePathUsesSingleAgent(t *testing.T) {
	p := &scriptedProvider{script: []providerCall{
		{content: "hello there"},
	}}
	e := newTestEngine(t, p, testWorkflowConfig())

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "hi"})

	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, "noah", resp.Agent)
	assert.Equal(t, "hello there", resp.Content)
	assert.Empty(t, resp.WorkflowPhase)
	assert.Equal(t, 1, p.callCount())
}

func TestOpenCircuitHalfOpensUnderSteadyTraffic(t *testing.T) {
	breakers := breaker.NewRegistry(config.BreakerConfig{
		FailureThreshold: 2,
		OpenTimeout:      150 * time.Millisecond,
	})
	p := &scriptedProvider{script: []providerCall{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{content: "back on my feet"},
	}}
	e := newTestEngineWithBreakers(t, p, testWorkflowConfig(), breakers)

	// two real failures open the circuit
	for i := 0; i < 2; i++ {
		resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "hi"})
		assert.Equal(t, models.StatusError, resp.Status)
	}
	require.True(t, breakers.IsOpen("noah"))

	// steady shed traffic inside the cooldown window
	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "hi"})
		assert.NotEmpty(t, resp.Content)
	}
	assert.Equal(t, 2, p.callCount(), "shed calls must not reach the provider")

	// cooldown elapsed despite the shed traffic: next request is the trial
	time.Sleep(80 * time.Millisecond)
	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "hi"})
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, "back on my feet", resp.Content)
	assert.Equal(t, 3, p.callCount())
	assert.False(t, breakers.IsOpen("noah"))
}

func TestCompleteResponseCarriesArtifact(t *testing.T) {
	toolText := "Try this routine:\n\n**Morning Routine**\n\n1. Step one\n2. Step two\n\nThis helps because it builds structure."
	p := &scriptedProvider{script: []providerCall{
		{content: "research on routines"},
		{content: "plan the routine"},
		{content: toolText},
	}}
	e := newTestEngine(t, p, testWorkflowConfig())

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "build me a morning routine"})

	require.Equal(t, models.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Artifact)
	assert.Equal(t, "Morning Routine", resp.Artifact.Title)
	assert.Equal(t, "Try this routine:", resp.Content)
}

func TestResponseNeverEmpty(t *testing.T) {
	p := &scriptedProvider{script: []providerCall{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}
	e := newTestEngine(t, p, testWorkflowConfig())

	resp := e.HandleRequest(context.Background(), &models.AgentRequest{Content: "build me something"})
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Content)
}

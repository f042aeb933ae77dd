// Package provider implements the uniform LLM call interface: one driver
// per backend kind behind a tracking wrapper that owns retry, health
// accounting, and cost accounting.
package provider

import (
	"context"
	"sync"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/pkg/contracts"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Known cost per 1K tokens (USD) — sensible defaults
var defaultCosts = map[string]map[string]float64{
	"gpt-4o":                    {"input": 0.0025, "output": 0.01},
	"gpt-4o-mini":               {"input": 0.00015, "output": 0.0006},
	"gpt-4-turbo":               {"input": 0.01, "output": 0.03},
	"claude-sonnet-4-20250514":  {"input": 0.003, "output": 0.015},
	"claude-3-5-haiku-20241022": {"input": 0.001, "output": 0.005},
	"claude-opus-4-20250514":    {"input": 0.015, "output": 0.075},
}

// TrackedProvider wraps one driver with retry, health tracking, and cost
// accounting. It implements contracts.LLMProvider and is safe for
// concurrent use.
type TrackedProvider struct {
	cfg config.ProviderConfig
	drv driver

	mu           sync.Mutex
	requestCount int64
	errorCount   int64
	avgMs        int64 // exponential moving average
	lastChecked  time.Time
	shutdown     bool

	totalCostUSD float64
	totalTokens  int64
	costByModel  map[string]float64
}

// New creates a tracked provider for the configured backend.
func New(cfg config.ProviderConfig) (*TrackedProvider, error) {
	drv, err := newDriver(cfg, newHTTPClient())
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("kind", cfg.Kind).
		Str("model", cfg.Model).
		Msg("✅ LLM provider initialized")
	return &TrackedProvider{
		cfg:         cfg,
		drv:         drv,
		costByModel: make(map[string]float64),
	}, nil
}

// newTracked wires an explicit driver; used by tests to substitute fakes.
func newTracked(cfg config.ProviderConfig, drv driver) *TrackedProvider {
	return &TrackedProvider{
		cfg:         cfg,
		drv:         drv,
		costByModel: make(map[string]float64),
	}
}

// GenerateText performs one completion call. The logical call counts once
// against requestCount no matter how many attempts it takes; each transient
// failure counts once against errorCount. Validation failures are never
// retried and never touch the counters.
func (p *TrackedProvider) GenerateText(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	if err := p.precheck(req); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.requestCount++
	p.mu.Unlock()

	start := time.Now()
	resp, err := backoff.RetryWithData(func() (*models.GenerateResponse, error) {
		resp, callErr := p.drv.generate(ctx, req)
		if callErr != nil {
			p.recordError()
			if !contracts.IsRetryable(callErr) {
				return nil, backoff.Permanent(callErr)
			}
			log.Warn().
				Str("provider", p.drv.name()).
				Err(callErr).
				Msg("Provider call failed, backing off")
			return nil, callErr
		}
		return resp, nil
	}, p.newBackOff(ctx))
	if err != nil {
		return nil, &contracts.ProviderError{Provider: p.drv.name(), Err: err}
	}

	p.recordSuccess(req.Model, time.Since(start), &resp.Usage)
	return resp, nil
}

// StreamText performs one streaming call. Streams are not retried: a
// transport failure after the first chunk cannot be replayed, so the error
// surfaces on the channel instead.
func (p *TrackedProvider) StreamText(ctx context.Context, req *models.GenerateRequest) (<-chan models.TextChunk, error) {
	if err := p.precheck(req); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.requestCount++
	p.mu.Unlock()

	ch, err := p.drv.stream(ctx, req)
	if err != nil {
		p.recordError()
		return nil, &contracts.ProviderError{Provider: p.drv.name(), Err: err}
	}
	return ch, nil
}

// Status returns a health snapshot. The provider is available while it is
// not shut down and its error rate stays under the configured ceiling.
func (p *TrackedProvider) Status() models.ProviderStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	rate := p.errorRateLocked()
	return models.ProviderStatus{
		IsAvailable:        !p.shutdown && rate < p.cfg.MaxErrorRate,
		ResponseTimeMs:     p.avgMs,
		ErrorRate:          rate,
		RateLimitRemaining: -1, // not reported by all backends
		LastChecked:        p.lastChecked,
	}
}

// Costs returns cumulative spend since process start.
func (p *TrackedProvider) Costs() models.CostSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	byModel := make(map[string]float64, len(p.costByModel))
	for m, c := range p.costByModel {
		byModel[m] = c
	}
	return models.CostSummary{
		TotalCostUSD: p.totalCostUSD,
		TotalTokens:  p.totalTokens,
		ByModel:      byModel,
	}
}

// Shutdown stops the provider. Subsequent calls fail immediately.
func (p *TrackedProvider) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return
	}
	p.shutdown = true
	log.Info().Str("provider", p.drv.name()).Msg("⏸️ LLM provider shut down")
}

// precheck fails fast on shutdown and malformed requests. Neither outcome
// counts against the health counters.
func (p *TrackedProvider) precheck(req *models.GenerateRequest) error {
	p.mu.Lock()
	down := p.shutdown
	p.mu.Unlock()
	if down {
		return &contracts.ProviderError{Provider: p.drv.name(), Err: errShutdown}
	}

	if req.Model == "" {
		return &contracts.ValidationError{Field: "model", Reason: "must not be empty"}
	}
	if len(req.Messages) == 0 {
		return &contracts.ValidationError{Field: "messages", Reason: "must not be empty"}
	}
	return nil
}

// newBackOff builds the retry schedule: baseDelay doubling per attempt,
// no jitter, bounded by the configured retry count.
func (p *TrackedProvider) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.cfg.MaxRetries)), ctx)
}

func (p *TrackedProvider) recordError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorCount++
	p.lastChecked = time.Now()
}

func (p *TrackedProvider) recordSuccess(model string, elapsed time.Duration, usage *models.TokenUsage) {
	cost := float64(usage.InputTokens)/1000*costFor(model, "input") +
		float64(usage.OutputTokens)/1000*costFor(model, "output")
	usage.EstimatedCost = cost

	ms := elapsed.Milliseconds()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.avgMs == 0 {
		p.avgMs = ms
	} else {
		// Exponential moving average
		p.avgMs = (p.avgMs*7 + ms*3) / 10
	}
	p.lastChecked = time.Now()

	p.totalCostUSD += cost
	p.totalTokens += usage.TotalTokens
	p.costByModel[model] += cost
}

// errorRateLocked computes errorCount/requestCount. Caller must hold mu.
func (p *TrackedProvider) errorRateLocked() float64 {
	if p.requestCount == 0 {
		return 0
	}
	return float64(p.errorCount) / float64(p.requestCount)
}

func costFor(model, direction string) float64 {
	if costs, ok := defaultCosts[model]; ok {
		return costs[direction]
	}
	return 0.001 // generic fallback
}

type shutdownError struct{}

func (shutdownError) Error() string { return "provider is shut down" }

var errShutdown = shutdownError{}

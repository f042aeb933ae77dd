package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/internal/api"
	"github.com/HonestImpact/tryit-orchestrator/internal/api/handlers"
	"github.com/HonestImpact/tryit-orchestrator/internal/artifact"
	"github.com/HonestImpact/tryit-orchestrator/internal/breaker"
	"github.com/HonestImpact/tryit-orchestrator/internal/complexity"
	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/internal/knowledge"
	"github.com/HonestImpact/tryit-orchestrator/internal/orchestrator"
	"github.com/HonestImpact/tryit-orchestrator/internal/recovery"
	"github.com/HonestImpact/tryit-orchestrator/internal/resources"
	"github.com/HonestImpact/tryit-orchestrator/internal/sessions"
	"github.com/HonestImpact/tryit-orchestrator/internal/store"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider answers every call with the same outcome.
type stubProvider struct {
	mu      sync.Mutex
	content string
	err     error
}

func (p *stubProvider) GenerateText(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &models.GenerateResponse{Content: p.content}, nil
}

func (p *stubProvider) StreamText(ctx context.Context, req *models.GenerateRequest) (<-chan models.TextChunk, error) {
	ch := make(chan models.TextChunk)
	close(ch)
	return ch, nil
}

func (p *stubProvider) Status() models.ProviderStatus { return models.ProviderStatus{IsAvailable: true} }
func (p *stubProvider) Costs() models.CostSummary     { return models.CostSummary{} }
func (p *stubProvider) Shutdown()                     {}

func newTestServer(t *testing.T, p *stubProvider) http.Handler {
	t.Helper()

	dataStore := store.NewMemoryStore()
	breakers := breaker.NewRegistry(config.BreakerConfig{FailureThreshold: 5, OpenTimeout: time.Minute})
	resourceMgr := resources.NewManagerWith(func(ctx context.Context) (*resources.Bundle, error) {
		return &resources.Bundle{Knowledge: knowledge.NewService()}, nil
	})
	sessionLog := sessions.NewLogger(dataStore)

	engine := orchestrator.NewEngine(orchestrator.Deps{
		Config: config.WorkflowConfig{
			ConstructTimeout:  time.Second,
			ResearchTimeout:   time.Second,
			AnalysisTimeout:   time.Second,
			BuildTimeout:      time.Second,
			FallbackTimeout:   time.Second,
			SoftBudget:        10 * time.Second,
			SkipFallbackRatio: 0.8,
		},
		Model:      "test-model",
		Router:     complexity.NewRouter(config.RoutingConfig{MaxSimpleLength: 150, MinQuestionMarks: 2, MaxHistoryLength: 4}),
		Resources:  resourceMgr,
		Provider:   p,
		Breakers:   breakers,
		Recovery:   recovery.NewHandler(breakers),
		Classifier: artifact.NewClassifier(config.ArtifactConfig{MinLength: 100, ScoreThreshold: 4}),
		Sessions:   sessionLog,
		Store:      dataStore,
	})

	return api.NewRouter(&handlers.Handlers{
		Engine:    engine,
		Provider:  p,
		Breakers:  breakers,
		Resources: resourceMgr,
		Sessions:  sessionLog,
		Store:     dataStore,
		Version:   "test",
	})
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	h := newTestServer(t, &stubProvider{content: "hello from the assistant"})

	rec := postChat(t, h, `{"session_id":"s1","message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SessionID string                   `json:"session_id"`
		Response  *models.WorkflowResponse `json:"response"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "s1", body.SessionID)
	assert.Equal(t, models.StatusSuccess, body.Response.Status)
	assert.Equal(t, "hello from the assistant", body.Response.Content)
}

func TestChatAssignsSessionID(t *testing.T) {
	h := newTestServer(t, &stubProvider{content: "ok"})

	rec := postChat(t, h, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotEmpty(t, body.SessionID)
}

func TestChatBadRequests(t *testing.T) {
	h := newTestServer(t, &stubProvider{content: "ok"})

	assert.Equal(t, http.StatusBadRequest, postChat(t, h, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postChat(t, h, `{"message":"  "}`).Code)
}

func TestChatHardFailureMapsTo502(t *testing.T) {
	h := newTestServer(t, &stubProvider{err: errors.New("connection refused")})

	rec := postChat(t, h, `{"session_id":"s1","message":"hi"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Response *models.WorkflowResponse `json:"response"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, models.StatusError, body.Response.Status)
	assert.NotEmpty(t, body.Response.Content)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &stubProvider{content: "ok"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestServer(t, &stubProvider{content: "ok"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	for _, key := range []string{"provider", "costs", "breakers", "resources"} {
		assert.Contains(t, body, key)
	}
}

func TestTracesEndpoint(t *testing.T) {
	h := newTestServer(t, &stubProvider{content: "ok"})

	// run one chat to generate traces
	require.Equal(t, http.StatusOK, postChat(t, h, `{"session_id":"s1","message":"hi"}`).Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/traces?session_id=s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var traces []*models.Trace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&traces))
	require.NotEmpty(t, traces)
	assert.Equal(t, "s1", traces[0].SessionID)
}

func TestSessionEndpoint(t *testing.T) {
	h := newTestServer(t, &stubProvider{content: "remembered"})

	require.Equal(t, http.StatusOK, postChat(t, h, `{"session_id":"s9","message":"hi"}`).Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "remembered"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

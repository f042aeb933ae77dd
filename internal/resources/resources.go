// Package resources manages the process-scoped bundle of expensive
// subsystem handles. The bundle is built at most once per process: N
// concurrent initializers collapse into one underlying construction and
// all resolve against the same instance.
package resources

import (
	"context"
	"sync"

	"github.com/HonestImpact/tryit-orchestrator/internal/knowledge"
	"github.com/HonestImpact/tryit-orchestrator/pkg/contracts"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Bundle is the memoized set of shared collaborators. Lifetime is the
// process lifetime unless explicitly reset.
type Bundle struct {
	Knowledge contracts.KnowledgeService
	RAG       contracts.RAGIntegration
	Solutions contracts.SolutionGenerator
}

// BuildFunc constructs a bundle. It runs at most once per initialization
// cycle, regardless of caller concurrency.
type BuildFunc func(ctx context.Context) (*Bundle, error)

// Status is a non-forcing health snapshot: querying it never triggers
// construction.
type Status struct {
	HasKnowledgeService bool `json:"has_knowledge_service"`
	HasRAGIntegration   bool `json:"has_rag_integration"`
	IsInitialized       bool `json:"is_initialized"`
}

// Manager memoizes one Bundle behind a single-flight build.
type Manager struct {
	build BuildFunc

	sf     singleflight.Group
	mu     sync.RWMutex
	bundle *Bundle
}

// NewManager creates a manager whose bundle is built from the supplied
// provider on first use.
func NewManager(provider contracts.LLMProvider, model string) *Manager {
	return &Manager{build: defaultBuild(provider, model)}
}

// NewManagerWith creates a manager with an explicit build function.
func NewManagerWith(build BuildFunc) *Manager {
	return &Manager{build: build}
}

// Initialize returns the shared bundle, constructing it on first call.
// Concurrent callers share one construction. A failed build is not
// memoized; the next initialization cycle retries.
func (m *Manager) Initialize(ctx context.Context) (*Bundle, error) {
	m.mu.RLock()
	b := m.bundle
	m.mu.RUnlock()
	if b != nil {
		return b, nil
	}

	v, err, _ := m.sf.Do("bundle", func() (interface{}, error) {
		// re-check: a previous flight may have completed between the
		// fast path and joining this one
		m.mu.RLock()
		cached := m.bundle
		m.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		built, buildErr := m.build(ctx)
		if buildErr != nil {
			return nil, &contracts.ResourceInitError{Resource: "shared bundle", Err: buildErr}
		}

		m.mu.Lock()
		m.bundle = built
		m.mu.Unlock()

		log.Info().Msg("✅ Shared resource bundle initialized")
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil
}

// Status reports what is currently constructed without constructing
// anything.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.bundle == nil {
		return Status{}
	}
	return Status{
		HasKnowledgeService: m.bundle.Knowledge != nil,
		HasRAGIntegration:   m.bundle.RAG != nil,
		IsInitialized:       true,
	}
}

// Reset drops the memoized bundle. The next Initialize rebuilds it.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundle = nil
}

// defaultBuild seeds the knowledge corpus and wires RAG and the solution
// drafter over it.
func defaultBuild(provider contracts.LLMProvider, model string) BuildFunc {
	return func(ctx context.Context) (*Bundle, error) {
		ks := knowledge.NewService()
		ks.Add(baselineCorpus()...)

		rag := knowledge.NewRAG(ks)
		return &Bundle{
			Knowledge: ks,
			RAG:       rag,
			Solutions: knowledge.NewSolutionDrafter(provider, rag, model),
		}, nil
	}
}

// baselineCorpus is the starter knowledge base for tool-building requests.
func baselineCorpus() []models.KnowledgeDoc {
	return []models.KnowledgeDoc{
		{ID: "routine-design", Content: "Effective routines use a small number of repeatable steps anchored to an existing habit"},
		{ID: "tracker-design", Content: "A habit tracker works best as a simple daily grid with a single clear success criterion"},
		{ID: "checklist-design", Content: "Checklists reduce cognitive load by externalizing steps in execution order"},
		{ID: "template-design", Content: "Templates with fill-in slots lower the cost of starting a recurring task such as email"},
		{ID: "breathing-design", Content: "Breathing exercises pace inhale, hold, and exhale with fixed counts to downshift arousal"},
	}
}

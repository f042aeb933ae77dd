// Package server provides the public entry point for initializing the
// TryIt orchestrator server.
//
// All collaborators are constructed here, once, and passed into the
// orchestrator explicitly. There are no package-level singletons: tests
// and embedders build their own wiring with fakes where needed.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/HonestImpact/tryit-orchestrator/internal/api"
	"github.com/HonestImpact/tryit-orchestrator/internal/api/handlers"
	"github.com/HonestImpact/tryit-orchestrator/internal/artifact"
	"github.com/HonestImpact/tryit-orchestrator/internal/breaker"
	"github.com/HonestImpact/tryit-orchestrator/internal/complexity"
	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/internal/orchestrator"
	"github.com/HonestImpact/tryit-orchestrator/internal/provider"
	"github.com/HonestImpact/tryit-orchestrator/internal/recovery"
	"github.com/HonestImpact/tryit-orchestrator/internal/resources"
	"github.com/HonestImpact/tryit-orchestrator/internal/sessions"
	"github.com/HonestImpact/tryit-orchestrator/internal/store"
	"github.com/HonestImpact/tryit-orchestrator/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized orchestrator service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Provider is exposed so main can shut it down cleanly.
	Provider interface{ Shutdown() }

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration and
// returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the orchestrator with an explicit configuration.
func NewWithConfig(_ context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore := store.NewMemoryStore()
	log.Info().Msg("✅ In-memory store initialized")

	llm, err := provider.New(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}

	breakers := breaker.NewRegistry(cfg.Breaker)
	errorHandler := recovery.NewHandler(breakers)
	resourceMgr := resources.NewManager(llm, cfg.Provider.Model)
	sessionLog := sessions.NewLogger(dataStore)

	engine := orchestrator.NewEngine(orchestrator.Deps{
		Config:     cfg.Workflow,
		Model:      cfg.Provider.Model,
		Router:     complexity.NewRouter(cfg.Routing),
		Resources:  resourceMgr,
		Provider:   llm,
		Breakers:   breakers,
		Recovery:   errorHandler,
		Classifier: artifact.NewClassifier(cfg.Artifact),
		Sessions:   sessionLog,
		Store:      dataStore,
	})
	log.Info().Msg("✅ Orchestration engine initialized")

	h := &handlers.Handlers{
		Engine:    engine,
		Provider:  llm,
		Breakers:  breakers,
		Resources: resourceMgr,
		Sessions:  sessionLog,
		Store:     dataStore,
		Version:   cfg.Version,
	}

	return &Server{
		Handler:      api.NewRouter(h),
		Provider:     llm,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

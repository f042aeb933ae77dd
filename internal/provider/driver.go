package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// driver is one model backend behind the tracked provider. Drivers do a
// single HTTP call and report raw token usage; retry, health tracking, and
// cost accounting live in TrackedProvider.
type driver interface {
	name() string
	generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)
	stream(ctx context.Context, req *models.GenerateRequest) (<-chan models.TextChunk, error)
}

// newDriver builds the driver for the configured provider kind. Unknown
// kinds get the OpenAI-compatible driver pointed at the configured endpoint.
func newDriver(cfg config.ProviderConfig, client *http.Client) (driver, error) {
	switch cfg.Kind {
	case "anthropic":
		return newAnthropicDriver(cfg, client), nil
	case "openai", "azure-openai":
		return newOpenAIDriver(cfg, client), nil
	case "ollama":
		return newOllamaDriver(cfg, client), nil
	case "":
		return nil, fmt.Errorf("provider kind not configured")
	default:
		return newOpenAIDriver(cfg, client), nil
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
	}
}

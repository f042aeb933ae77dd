package provider

import (
	"net/http"

	"github.com/HonestImpact/tryit-orchestrator/internal/config"
)

// ── Ollama ──────────────────────────────────────────────────

// Ollama serves an OpenAI-compatible API, so the driver is the OpenAI one
// with a local endpoint and no auth. Local models bill at zero.
type ollamaDriver struct {
	*openAIDriver
}

func newOllamaDriver(cfg config.ProviderConfig, client *http.Client) *ollamaDriver {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &ollamaDriver{
		openAIDriver: &openAIDriver{
			kind:     "ollama",
			endpoint: endpoint + "/v1",
			apiKey:   "ollama", // placeholder, endpoint ignores it
			client:   client,
		},
	}
}

func (d *ollamaDriver) name() string { return "ollama" }

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// ── Anthropic ───────────────────────────────────────────────

const anthropicVersion = "2023-06-01"

type anthropicDriver struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func newAnthropicDriver(cfg config.ProviderConfig, client *http.Client) *anthropicDriver {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	return &anthropicDriver{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}
}

func (d *anthropicDriver) name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature *float64             `json:"temperature,omitempty"`
	Stream      bool                 `json:"stream,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func (d *anthropicDriver) generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	httpResp, err := d.post(ctx, d.marshal(req, false))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("anthropic: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var anthResp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&anthResp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	content := ""
	for _, c := range anthResp.Content {
		if c.Type == "text" {
			content += c.Text
		}
	}

	return &models.GenerateResponse{
		Content:      content,
		FinishReason: anthResp.StopReason,
		Usage: models.TokenUsage{
			InputTokens:  anthResp.Usage.InputTokens,
			OutputTokens: anthResp.Usage.OutputTokens,
			TotalTokens:  anthResp.Usage.InputTokens + anthResp.Usage.OutputTokens,
		},
	}, nil
}

func (d *anthropicDriver) stream(ctx context.Context, req *models.GenerateRequest) (<-chan models.TextChunk, error) {
	httpResp, err := d.post(ctx, d.marshal(req, true))
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, fmt.Errorf("anthropic: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	out := make(chan models.TextChunk)
	go func() {
		defer close(out)
		defer httpResp.Body.Close()
		streamSSE(ctx, httpResp.Body, out, parseAnthropicChunk)
	}()
	return out, nil
}

func (d *anthropicDriver) marshal(req *models.GenerateRequest, stream bool) []byte {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096 // Anthropic requires an explicit cap
	}
	body, _ := json.Marshal(anthropicRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	})
	return body
}

func (d *anthropicDriver) post(ctx context.Context, body []byte) (*http.Response, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key not configured")
	}

	url := d.endpoint + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", d.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	return httpResp, nil
}

// parseAnthropicChunk extracts the delta text from one SSE data payload.
func parseAnthropicChunk(data string) (string, bool) {
	var event struct {
		Type  string `json:"type"`
		Delta struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"delta"`
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return "", false
	}
	switch event.Type {
	case "content_block_delta":
		if event.Delta.Type == "text_delta" {
			return event.Delta.Text, false
		}
		return "", false
	case "message_stop":
		return "", true
	default:
		return "", false
	}
}

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// ── OpenAI / Azure OpenAI ───────────────────────────────────

type openAIDriver struct {
	kind     string
	endpoint string
	apiKey   string
	client   *http.Client
}

func newOpenAIDriver(cfg config.ProviderConfig, client *http.Client) *openAIDriver {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	return &openAIDriver{
		kind:     cfg.Kind,
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}
}

func (d *openAIDriver) name() string { return "openai" }

type openAIRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature *float64             `json:"temperature,omitempty"`
	Stream      bool                 `json:"stream,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (d *openAIDriver) generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("openai: api key not configured")
	}

	body, _ := json.Marshal(openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})

	httpResp, err := d.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("openai: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}

	content := ""
	finish := ""
	if len(oaiResp.Choices) > 0 {
		content = oaiResp.Choices[0].Message.Content
		finish = oaiResp.Choices[0].FinishReason
	}

	return &models.GenerateResponse{
		Content:      content,
		FinishReason: finish,
		Usage: models.TokenUsage{
			InputTokens:  oaiResp.Usage.PromptTokens,
			OutputTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:  oaiResp.Usage.TotalTokens,
		},
	}, nil
}

func (d *openAIDriver) stream(ctx context.Context, req *models.GenerateRequest) (<-chan models.TextChunk, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("openai: api key not configured")
	}

	body, _ := json.Marshal(openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	})

	httpResp, err := d.post(ctx, body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, fmt.Errorf("openai: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	out := make(chan models.TextChunk)
	go func() {
		defer close(out)
		defer httpResp.Body.Close()
		streamSSE(ctx, httpResp.Body, out, parseOpenAIChunk)
	}()
	return out, nil
}

func (d *openAIDriver) post(ctx context.Context, body []byte) (*http.Response, error) {
	url := d.endpoint + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Azure OpenAI uses a different auth header
	if d.kind == "azure-openai" {
		httpReq.Header.Set("api-key", d.apiKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	return httpResp, nil
}

// parseOpenAIChunk extracts the delta text from one SSE data payload.
func parseOpenAIChunk(data string) (string, bool) {
	if data == "[DONE]" {
		return "", true
	}
	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	if chunk.Choices[0].FinishReason != nil && *chunk.Choices[0].FinishReason != "" {
		return chunk.Choices[0].Delta.Content, true
	}
	return chunk.Choices[0].Delta.Content, false
}

// streamSSE reads "data: ..." lines from an SSE body and forwards parsed
// text chunks until the stream ends or ctx is cancelled.
func streamSSE(ctx context.Context, body io.Reader, out chan<- models.TextChunk, parse func(string) (string, bool)) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		text, done := parse(strings.TrimPrefix(line, "data: "))

		if text != "" {
			select {
			case out <- models.TextChunk{Content: text}:
			case <-ctx.Done():
				return
			}
		}
		if done {
			select {
			case out <- models.TextChunk{Done: true}:
			case <-ctx.Done():
			}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case out <- models.TextChunk{Err: fmt.Errorf("stream read: %w", err), Done: true}:
		case <-ctx.Done():
		}
		return
	}
	// body ended without a terminal marker
	select {
	case out <- models.TextChunk{Done: true}:
	case <-ctx.Done():
	}
}

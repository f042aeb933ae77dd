package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/HonestImpact/tryit-orchestrator/pkg/contracts"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// ragTopK bounds how many retrieved documents augment a prompt.
const ragTopK = 3

// RAG augments prompts with retrieved knowledge-base context.
type RAG struct {
	knowledge contracts.KnowledgeService
}

// NewRAG creates a RAG integration over the given knowledge service.
func NewRAG(ks contracts.KnowledgeService) *RAG {
	return &RAG{knowledge: ks}
}

// Augment prepends relevant context to the query. A query with no relevant
// documents passes through unchanged.
func (r *RAG) Augment(ctx context.Context, query string) (string, error) {
	results, err := r.knowledge.Search(ctx, query, ragTopK)
	if err != nil {
		return "", fmt.Errorf("knowledge search: %w", err)
	}
	if len(results) == 0 {
		return query, nil
	}

	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for _, res := range results {
		b.WriteString("- ")
		b.WriteString(res.Doc.Content)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(query)
	return b.String(), nil
}

// ── Solution Generator ──────────────────────────────────────

// SolutionDrafter produces a structured first-draft solution for a request
// by combining retrieved context with a provider call.
type SolutionDrafter struct {
	provider contracts.LLMProvider
	rag      contracts.RAGIntegration
	model    string
}

// NewSolutionDrafter creates a solution generator.
func NewSolutionDrafter(p contracts.LLMProvider, rag contracts.RAGIntegration, model string) *SolutionDrafter {
	return &SolutionDrafter{provider: p, rag: rag, model: model}
}

// Generate drafts a solution outline for the request.
func (g *SolutionDrafter) Generate(ctx context.Context, req *models.AgentRequest) (string, error) {
	prompt, err := g.rag.Augment(ctx, req.Content)
	if err != nil {
		// degraded but serviceable: draft without retrieval
		prompt = req.Content
	}

	resp, err := g.provider.GenerateText(ctx, &models.GenerateRequest{
		Model: g.model,
		Messages: []models.ChatMessage{
			{Role: "user", Content: "Draft a concise, structured solution outline for this request:\n\n" + prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("draft solution: %w", err)
	}
	return resp.Content, nil
}

// Package agents implements the capability providers invoked by the
// orchestrator: three specialists for the staged workflow plus the
// baseline conversational agent used on the simple path and as fallback.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/HonestImpact/tryit-orchestrator/pkg/contracts"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

const (
	researcherPrompt = "You are a researcher. Gather the practical facts and prior art relevant to the request. Be concrete and cite what you relied on."
	analystPrompt    = "You are an analyst. Turn the research into a clear plan: what to build, in what order, and what to leave out."
	builderPrompt    = "You are a builder. Produce the finished deliverable for the request: a concrete, ready-to-use tool, template, or checklist. Use markdown structure."
	noahPrompt       = "You are Noah, a thoughtful assistant. Answer directly and practically, and when a small tool or routine would help, offer one."
)

// prompt runs one persona-framed provider call and fails on empty output.
func prompt(ctx context.Context, p contracts.LLMProvider, model, persona string, req *models.AgentRequest) (string, error) {
	messages := make([]models.ChatMessage, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, models.ChatMessage{
		Role:    "user",
		Content: persona + "\n\n" + req.Content,
	})

	resp, err := p.GenerateText(ctx, &models.GenerateRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("agent returned empty content")
	}
	return resp.Content, nil
}

// ── Researcher ──────────────────────────────────────────────

// Researcher grounds the request in the knowledge base before the
// provider call and reports how many sources it found.
type Researcher struct {
	provider  contracts.LLMProvider
	knowledge contracts.KnowledgeService
	model     string
}

func NewResearcher(p contracts.LLMProvider, ks contracts.KnowledgeService, model string) *Researcher {
	return &Researcher{provider: p, knowledge: ks, model: model}
}

func (a *Researcher) Name() string { return "researcher" }

func (a *Researcher) Process(ctx context.Context, req *models.AgentRequest) (*models.AgentResponse, error) {
	sources := 0
	enriched := *req
	if a.knowledge != nil {
		results, err := a.knowledge.Search(ctx, req.Content, 3)
		if err == nil && len(results) > 0 {
			sources = len(results)
			var b strings.Builder
			b.WriteString(req.Content)
			b.WriteString("\n\nKnown background:\n")
			for _, r := range results {
				b.WriteString("- ")
				b.WriteString(r.Doc.Content)
				b.WriteString("\n")
			}
			enriched.Content = b.String()
		}
	}

	content, err := prompt(ctx, a.provider, a.model, researcherPrompt, &enriched)
	if err != nil {
		return nil, err
	}
	return &models.AgentResponse{
		Content:    content,
		Confidence: 0.85,
		Metadata:   models.ResearchMetadata{SourcesFound: sources},
	}, nil
}

// ── Analyst ─────────────────────────────────────────────────

type Analyst struct {
	provider contracts.LLMProvider
	model    string
}

func NewAnalyst(p contracts.LLMProvider, model string) *Analyst {
	return &Analyst{provider: p, model: model}
}

func (a *Analyst) Name() string { return "analyst" }

func (a *Analyst) Process(ctx context.Context, req *models.AgentRequest) (*models.AgentResponse, error) {
	content, err := prompt(ctx, a.provider, a.model, analystPrompt, req)
	if err != nil {
		return nil, err
	}
	return &models.AgentResponse{Content: content, Confidence: 0.8}, nil
}

// ── Builder ─────────────────────────────────────────────────

type Builder struct {
	provider contracts.LLMProvider
	model    string
}

func NewBuilder(p contracts.LLMProvider, model string) *Builder {
	return &Builder{provider: p, model: model}
}

func (a *Builder) Name() string { return "builder" }

func (a *Builder) Process(ctx context.Context, req *models.AgentRequest) (*models.AgentResponse, error) {
	content, err := prompt(ctx, a.provider, a.model, builderPrompt, req)
	if err != nil {
		return nil, err
	}
	return &models.AgentResponse{
		Content:    content,
		Confidence: 0.8,
		Metadata:   models.BuildMetadata{ComponentsUsed: componentsUsed(content)},
	}, nil
}

// componentsUsed lists the code-fence languages present in the build
// output, deduplicated in first-seen order.
func componentsUsed(content string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			continue
		}
		lang := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// ── Noah ────────────────────────────────────────────────────

// Noah is the baseline conversational agent: the simple path and the
// degraded fallback both run through it.
type Noah struct {
	provider contracts.LLMProvider
	model    string
}

func NewNoah(p contracts.LLMProvider, model string) *Noah {
	return &Noah{provider: p, model: model}
}

func (a *Noah) Name() string { return "noah" }

func (a *Noah) Process(ctx context.Context, req *models.AgentRequest) (*models.AgentResponse, error) {
	content, err := prompt(ctx, a.provider, a.model, noahPrompt, req)
	if err != nil {
		return nil, err
	}
	return &models.AgentResponse{Content: content, Confidence: 0.9}, nil
}

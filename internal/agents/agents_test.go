package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/HonestImpact/tryit-orchestrator/internal/knowledge"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns canned content and records the last request.
type fakeProvider struct {
	content string
	err     error
	lastReq *models.GenerateRequest
}

func (f *fakeProvider) GenerateText(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.GenerateResponse{Content: f.content}, nil
}

func (f *fakeProvider) StreamText(ctx context.Context, req *models.GenerateRequest) (<-chan models.TextChunk, error) {
	ch := make(chan models.TextChunk)
	close(ch)
	return ch, nil
}

func (f *fakeProvider) Status() models.ProviderStatus { return models.ProviderStatus{IsAvailable: true} }
func (f *fakeProvider) Costs() models.CostSummary     { return models.CostSummary{} }
func (f *fakeProvider) Shutdown()                     {}

func TestResearcherAttachesSourceCount(t *testing.T) {
	ks := knowledge.NewService()
	ks.Add(
		models.KnowledgeDoc{ID: "a", Content: "morning routines build structure"},
		models.KnowledgeDoc{ID: "b", Content: "habit trackers record progress"},
	)
	fp := &fakeProvider{content: "findings"}
	a := NewResearcher(fp, ks, "m")

	resp, err := a.Process(context.Background(), &models.AgentRequest{Content: "morning routine ideas"})
	require.NoError(t, err)
	assert.Equal(t, "findings", resp.Content)

	meta, ok := resp.Metadata.(models.ResearchMetadata)
	require.True(t, ok)
	assert.Greater(t, meta.SourcesFound, 0)
	assert.Contains(t, fp.lastReq.Messages[len(fp.lastReq.Messages)-1].Content, "Known background:")
}

func TestResearcherWithoutHits(t *testing.T) {
	fp := &fakeProvider{content: "findings"}
	a := NewResearcher(fp, knowledge.NewService(), "m")

	resp, err := a.Process(context.Background(), &models.AgentRequest{Content: "zzzz"})
	require.NoError(t, err)

	meta, ok := resp.Metadata.(models.ResearchMetadata)
	require.True(t, ok)
	assert.Zero(t, meta.SourcesFound)
}

func TestBuilderReportsComponents(t *testing.T) {
	fp := &fakeProvider{content: "Here you go:\n```html\n<div/>\n```\nand\n```css\nbody{}\n```\n```html\nagain\n```"}
	a := NewBuilder(fp, "m")

	resp, err := a.Process(context.Background(), &models.AgentRequest{Content: "build a widget"})
	require.NoError(t, err)

	meta, ok := resp.Metadata.(models.BuildMetadata)
	require.True(t, ok)
	assert.Equal(t, []string{"html", "css"}, meta.ComponentsUsed)
}

func TestAgentsForwardHistory(t *testing.T) {
	fp := &fakeProvider{content: "ok"}
	a := NewNoah(fp, "m")

	history := []models.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	_, err := a.Process(context.Background(), &models.AgentRequest{Content: "next", History: history})
	require.NoError(t, err)
	require.Len(t, fp.lastReq.Messages, 3)
	assert.Equal(t, "hi", fp.lastReq.Messages[0].Content)
}

func TestEmptyContentIsAnError(t *testing.T) {
	fp := &fakeProvider{content: "   "}
	a := NewAnalyst(fp, "m")

	_, err := a.Process(context.Background(), &models.AgentRequest{Content: "plan"})
	assert.Error(t, err)
}

func TestProviderErrorPropagates(t *testing.T) {
	fp := &fakeProvider{err: errors.New("rate limit exceeded")}
	a := NewNoah(fp, "m")

	_, err := a.Process(context.Background(), &models.AgentRequest{Content: "hi"})
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	fp := &fakeProvider{content: "x"}
	assert.Equal(t, "researcher", NewResearcher(fp, nil, "m").Name())
	assert.Equal(t, "analyst", NewAnalyst(fp, "m").Name())
	assert.Equal(t, "builder", NewBuilder(fp, "m").Name())
	assert.Equal(t, "noah", NewNoah(fp, "m").Name())
}

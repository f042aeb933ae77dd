package artifact_test

import (
	"strings"
	"testing"

	"github.com/HonestImpact/tryit-orchestrator/internal/artifact"
	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier() *artifact.Classifier {
	return artifact.NewClassifier(config.ArtifactConfig{MinLength: 100, ScoreThreshold: 4})
}

const morningRoutine = "Try this routine:\n\n**Morning Routine**\n\n1. Step one\n2. Step two\n\nThis helps because it builds structure."

func TestDetectShortTextNeverArtifact(t *testing.T) {
	c := newClassifier()

	short := []string{
		"",
		"hi",
		"**Bold** with 1. list and a tool template",
		strings.Repeat("x", 99),
	}
	for _, text := range short {
		assert.False(t, c.Detect(text), "short text: %q", text)
	}
}

func TestDetectLegacyMarkers(t *testing.T) {
	c := newClassifier()
	pad := strings.Repeat("filler words here ", 6)

	assert.True(t, c.Detect(pad+"Here's a tool for you to consider:\nsomething"))
	assert.True(t, c.Detect(pad+"TITLE: Widget\nTOOL: body"))
}

func TestDetectScoredText(t *testing.T) {
	c := newClassifier()

	assert.True(t, c.Detect(morningRoutine))

	prose := "The weather has been unusually mild lately and the garden is doing " +
		"well, though the tomatoes could use a bit more sun than they have been getting."
	assert.False(t, c.Detect(prose))
}

func TestProcessMorningRoutine(t *testing.T) {
	c := newClassifier()

	art := c.Process(morningRoutine)
	require.True(t, art.HasArtifact)
	assert.Equal(t, "Morning Routine", art.Title)
	assert.Equal(t, "Try this routine:", art.CleanContent)
	assert.True(t, strings.HasPrefix(art.Content, "**Morning Routine**"))
}

func TestProcessNegativeKeepsFullText(t *testing.T) {
	c := newClassifier()

	art := c.Process("just a short reply")
	assert.False(t, art.HasArtifact)
	assert.Equal(t, "just a short reply", art.CleanContent)
	assert.Empty(t, art.Title)
}

func TestProcessTaggedFormat(t *testing.T) {
	c := newClassifier()

	text := "Here is what I came up with.\nTITLE: Focus Timer \nTOOL:\nWork 25 minutes, rest 5.\nRepeat four times.\nREASONING: Fixed intervals limit drift."
	art := c.Process(text)
	require.True(t, art.HasArtifact)
	assert.Equal(t, "Focus Timer", art.Title)
	assert.Equal(t, "Here is what I came up with.", art.CleanContent)
	assert.Contains(t, art.Content, "Work 25 minutes")
	assert.NotContains(t, art.Content, "REASONING:")
	assert.Equal(t, "Fixed intervals limit drift.", art.Reasoning)
}

func TestProcessTaggedTitleStopsAtNewline(t *testing.T) {
	c := newClassifier()

	text := "Intro text long enough to pass the gate, with extra words for padding.\nTITLE: Daily Planner\nTOOL: plan body"
	art := c.Process(text)
	require.True(t, art.HasArtifact)
	assert.Equal(t, "Daily Planner", art.Title)
}

func TestProcessSignalPhrase(t *testing.T) {
	c := newClassifier()

	text := "I thought about your situation. Here's a tool for you to consider:\n\n**Budget Grid**\n\n- income\n- expenses"
	art := c.Process(text)
	require.True(t, art.HasArtifact)
	assert.Equal(t, "Budget Grid", art.Title)
	assert.Equal(t, "I thought about your situation.", art.CleanContent)
	assert.Contains(t, art.Content, "- income")
}

func TestProcessSignalPhraseWithoutBoldTitle(t *testing.T) {
	c := newClassifier()

	text := "Some context first. Here's a tool for you to consider:\nplain text tool body with steps to follow and use daily"
	art := c.Process(text)
	require.True(t, art.HasArtifact)
	assert.Equal(t, "Custom Tool", art.Title)
}

func TestNaturalTitleFallbacks(t *testing.T) {
	c := newClassifier()
	pad := "\n\n1. First step to follow\n2. Second step to use\n3. Third step to practice this method"

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "header title", text: "## Evening Checklist" + pad, want: "Evening Checklist"},
		{name: "sleep routine template", text: "A wind-down sleep routine helps." + pad, want: "Sleep Routine"},
		{name: "email template", text: "For the email you mentioned, here is a template." + pad, want: "Email Template"},
		{name: "breathing template", text: "A short breathing exercise for stressful moments." + pad, want: "Breathing Exercise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := c.Process(tt.text)
			require.True(t, art.HasArtifact, "text should classify: %q", tt.text)
			assert.Equal(t, tt.want, art.Title)
		})
	}
}

func TestDeterminism(t *testing.T) {
	c := newClassifier()

	first := c.Process(morningRoutine)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, c.Process(morningRoutine))
	}
}

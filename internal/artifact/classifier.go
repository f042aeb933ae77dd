// Package artifact scores free-text agent output for embedded structured
// deliverables (tools, templates, checklists) and extracts them into a
// title, tool content, and chat-visible lead-in.
//
// The whole pipeline is deterministic: identical input text always yields
// identical classification and extraction. No I/O, no randomness.
package artifact

import (
	"regexp"
	"strings"

	"github.com/HonestImpact/tryit-orchestrator/internal/config"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// Legacy markers short-circuit classification: responses produced by older
// prompt versions carry them verbatim.
const (
	signalPhrase = "Here's a tool for you to consider:"
	titleMarker  = "TITLE:"
	toolMarker   = "TOOL:"
	reasonMarker = "REASONING:"
)

// Scoring weights per signal group.
const (
	structuralPoints = 2
	actionablePoints = 3
	vocabularyPoints = 4
)

var (
	boldPattern     = regexp.MustCompile(`\*\*[^*\n]+\*\*`)
	numberedPattern = regexp.MustCompile(`(?m)^\s*\d+\.\s`)
	bulletPattern   = regexp.MustCompile(`(?m)^\s*[-*•]\s`)
	fencePattern    = regexp.MustCompile("```")
	tablePattern    = regexp.MustCompile(`(?m)^\|.+\|\s*$`)
	headerPattern   = regexp.MustCompile(`(?m)^#{1,6}\s`)

	actionablePattern = regexp.MustCompile(`\b(try|use|create|setup|follow|practice|step|steps|routine|checklist|template)\b`)
	vocabularyPattern = regexp.MustCompile(`\b(tool|solution|template|exercise|timer)\b`)
	directPattern     = regexp.MustCompile(`\b(this method|the following)\b`)
)

// Classifier decides whether a text carries an extractable artifact.
type Classifier struct {
	cfg config.ArtifactConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.ArtifactConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Detect reports whether the text carries an artifact. Text under the
// minimum length is never an artifact; legacy markers force a positive;
// otherwise the weighted score decides.
func (c *Classifier) Detect(text string) bool {
	if len(text) < c.cfg.MinLength {
		return false
	}
	if strings.Contains(text, signalPhrase) || strings.Contains(text, titleMarker) {
		return true
	}
	return c.score(text) >= c.cfg.ScoreThreshold
}

// Process classifies the text and, on a positive, runs extraction.
// Negatives return the full text as chat-visible content.
func (c *Classifier) Process(text string) models.Artifact {
	if !c.Detect(text) {
		return models.Artifact{HasArtifact: false, CleanContent: text}
	}
	art := extract(text)
	art.HasArtifact = true
	return art
}

// score sums the weighted signal groups: structural markdown shape,
// actionable language density, and tool-like vocabulary.
func (c *Classifier) score(text string) int {
	lower := strings.ToLower(text)
	score := 0

	kinds := 0
	for _, p := range []*regexp.Regexp{boldPattern, numberedPattern, bulletPattern, fencePattern, tablePattern, headerPattern} {
		if p.MatchString(text) {
			kinds++
		}
	}
	if kinds >= 2 {
		score += structuralPoints
	}

	if len(actionablePattern.FindAllString(lower, -1)) >= 2 {
		score += actionablePoints
	}

	if len(vocabularyPattern.FindAllString(lower, -1)) >= 2 || directPattern.MatchString(lower) {
		score += vocabularyPoints
	}

	return score
}

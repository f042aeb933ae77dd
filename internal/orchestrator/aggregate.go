package orchestrator

import (
	"strings"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// Complexity thresholds over the finished workflow.
const (
	elapsedModerate = 20 * time.Second
	elapsedComplex  = 40 * time.Second
	blocksModerate  = 1
	blocksComplex   = 3
	linesModerate   = 30
	linesComplex    = 80
)

// deriveComplexity buckets the workflow from elapsed time, code-block
// count, and line count of the build output. Deterministic for a given
// input pair.
func deriveComplexity(elapsed time.Duration, buildOutput string) models.Complexity {
	blocks := countCodeBlocks(buildOutput)
	lines := strings.Count(buildOutput, "\n") + 1

	score := 0
	if elapsed > elapsedModerate {
		score++
	}
	if elapsed > elapsedComplex {
		score++
	}
	if blocks >= blocksModerate {
		score++
	}
	if blocks >= blocksComplex {
		score++
	}
	if lines > linesModerate {
		score++
	}
	if lines > linesComplex {
		score++
	}

	switch {
	case score >= 4:
		return models.ComplexityComplex
	case score >= 2:
		return models.ComplexityModerate
	default:
		return models.ComplexitySimple
	}
}

// nextStepRule appends a suggestion when its substring appears in the
// build output.
type nextStepRule struct {
	needles    []string
	suggestion string
}

var nextStepRules = []nextStepRule{
	{needles: []string{"```"}, suggestion: "Review the included code before using it"},
	{needles: []string{"install", "npm"}, suggestion: "Run the listed install commands"},
	{needles: []string{"component"}, suggestion: "Drop the component into your project"},
	{needles: []string{"style", "css"}, suggestion: "Adjust the styles to match your design"},
	{needles: []string{"api", "endpoint"}, suggestion: "Wire the API calls to your backend"},
}

// finalStep always closes the list.
const finalStep = "Review the result and deploy it when it looks right"

// deriveNextSteps scans the build output for fixed substrings and appends
// one suggestion per matching rule, always ending with the generic
// review/deploy step.
func deriveNextSteps(buildOutput string) []string {
	lower := strings.ToLower(buildOutput)

	var steps []string
	for _, rule := range nextStepRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				steps = append(steps, rule.suggestion)
				break
			}
		}
	}
	return append(steps, finalStep)
}

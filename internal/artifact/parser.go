package artifact

import (
	"regexp"
	"strings"

	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// Fallback titles when no format yields one.
const (
	fallbackSignalTitle  = "Custom Tool"
	fallbackGenericTitle = "Quick Helper Tool"
)

var (
	boldTitlePattern  = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	headerTitlePattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	actionPhrasePattern = regexp.MustCompile(`(?i)\b(try|use|create|build|follow|practice|start)\b[ \t]+([^.\n!?]*)`)

	// Separators between chat-visible lead-in and tool content, tried in
	// order: a blank line immediately before a bold header, numbered list,
	// bullet, or code fence.
	leadSeparators = []*regexp.Regexp{
		regexp.MustCompile(`\n[ \t]*\n(\*\*[^*\n]+\*\*)`),
		regexp.MustCompile(`\n[ \t]*\n(\d+\.[ \t])`),
		regexp.MustCompile(`\n[ \t]*\n([-*•][ \t])`),
		regexp.MustCompile("\n[ \t]*\n(```)"),
	}
)

// extract runs the format detectors in fixed priority order: signal-phrase
// first, tagged second, natural-language heuristics last.
func extract(text string) models.Artifact {
	switch {
	case strings.Contains(text, signalPhrase):
		return extractSignal(text)
	case strings.Contains(text, titleMarker):
		return extractTagged(text)
	default:
		return extractNatural(text)
	}
}

// extractSignal splits on the legacy signal phrase. Everything before it is
// chat-visible, everything after is the tool.
func extractSignal(text string) models.Artifact {
	parts := strings.SplitN(text, signalPhrase, 2)
	lead := strings.TrimSpace(parts[0])
	tool := strings.TrimSpace(parts[1])

	title := fallbackSignalTitle
	if m := boldTitlePattern.FindStringSubmatch(tool); m != nil {
		title = strings.TrimSpace(m[1])
	}

	return models.Artifact{
		Title:        title,
		Content:      tool,
		CleanContent: lead,
	}
}

// extractTagged splits on the TITLE:/TOOL:/REASONING: markers. The title is
// the trimmed text between TITLE: and the next newline.
func extractTagged(text string) models.Artifact {
	idx := strings.Index(text, titleMarker)
	lead := strings.TrimSpace(text[:idx])
	rest := text[idx+len(titleMarker):]

	title := rest
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		title = rest[:nl]
		rest = rest[nl+1:]
	} else {
		rest = ""
	}
	title = strings.TrimSpace(title)

	tool := rest
	reasoning := ""
	if ti := strings.Index(rest, toolMarker); ti >= 0 {
		tool = rest[ti+len(toolMarker):]
	}
	if ri := strings.Index(tool, reasonMarker); ri >= 0 {
		reasoning = strings.TrimSpace(tool[ri+len(reasonMarker):])
		tool = tool[:ri]
	}

	return models.Artifact{
		Title:        title,
		Content:      strings.TrimSpace(tool),
		Reasoning:    reasoning,
		CleanContent: lead,
	}
}

// extractNatural titles and splits unmarked text: first bold or header wins
// the title, then phrase templates, then the first action-verb phrase. The
// lead-in is whatever precedes the first structural separator; text with no
// separator is used whole for both sides.
func extractNatural(text string) models.Artifact {
	clean, tool := splitLead(text)
	return models.Artifact{
		Title:        naturalTitle(text),
		Content:      tool,
		CleanContent: clean,
	}
}

func naturalTitle(text string) string {
	if m := boldTitlePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := headerTitlePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "sleep") && strings.Contains(lower, "routine"):
		return "Sleep Routine"
	case strings.Contains(lower, "routine"):
		return "Personal Routine"
	case strings.Contains(lower, "checklist"):
		return "Custom Checklist"
	case strings.Contains(lower, "email"):
		return "Email Template"
	case strings.Contains(lower, "breathing"), strings.Contains(lower, "meditation"):
		return "Breathing Exercise"
	case strings.Contains(lower, "tracker"), strings.Contains(lower, "organizer"):
		return "Personal Tracker"
	}

	if m := actionPhrasePattern.FindStringSubmatch(text); m != nil {
		return actionTitle(m[1], m[2])
	}
	return fallbackGenericTitle
}

// actionTitle builds a title from the first action-verb phrase, capped at
// five words.
func actionTitle(verb, rest string) string {
	words := strings.Fields(verb + " " + rest)
	if len(words) > 5 {
		words = words[:5]
	}
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// splitLead separates chat-visible lead-in prose from tool content at the
// first matching structural separator.
func splitLead(text string) (clean, tool string) {
	for _, sep := range leadSeparators {
		loc := sep.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		clean = strings.TrimSpace(text[:loc[0]])
		tool = strings.TrimSpace(text[loc[2]:])
		if clean != "" && tool != "" {
			return clean, tool
		}
	}
	full := strings.TrimSpace(text)
	return full, full
}

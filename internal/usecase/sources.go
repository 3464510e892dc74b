package usecase

import (
	"regexp"
	"strings"

	"curiosity/internal/domain"
)

const generalKnowledgeSource = "Connaissances générales"

// sourcePatterns are applied in order; each yields its matches left to right
// before the next pattern runs.
var sourcePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\(Source:\s*([^)]+)\)`),
	regexp.MustCompile(`(?i)\(Selon\s*([^)]+)\)`),
	regexp.MustCompile(`(?i)\(D['’]après\s*([^)]+)\)`),
	regexp.MustCompile(`(?i)\(Météo\s*([^)]+)\)`),
}

// extractSources collects parenthetical citations from answer. Duplicates are
// kept. When nothing matches the general knowledge label is returned.
func extractSources(answer string) []string {
	var sources []string
	for _, pattern := range sourcePatterns {
		for _, match := range pattern.FindAllStringSubmatch(answer, -1) {
			sources = append(sources, strings.TrimSpace(match[1]))
		}
	}
	if len(sources) == 0 {
		return []string{generalKnowledgeSource}
	}
	return sources
}

// extractAnswer returns the text of the first choice, or "" when the
// completion carries no usable message.
func extractAnswer(c domain.Completion) string {
	if len(c.Choices) == 0 || c.Choices[0].Message == nil {
		return ""
	}
	return c.Choices[0].Message.Content.Text()
}

package usecase

import (
	"fmt"
	"strings"

	"curiosity/internal/domain"
)

const (
	historyWindow     = 6
	shortAnswerTokens = 150
	longAnswerTokens  = 400
)

var webSearchTool = domain.Tool{Type: "web_search_20250305", Name: "web_search"}

// buildPromptMessages returns the system prompt, the trailing history window
// and the question, in that order.
func buildPromptMessages(maxSentences int, history []domain.ChatMessage, question string) []domain.ChatMessage {
	window := history
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}

	messages := make([]domain.ChatMessage, 0, len(window)+2)
	messages = append(messages, domain.ChatMessage{Role: "system", Content: buildSystemPrompt(maxSentences)})
	messages = append(messages, window...)
	messages = append(messages, domain.ChatMessage{
		Role:    "user",
		Content: question,
	})
	return messages
}

func buildSystemPrompt(maxSentences int) string {
	return strings.Join([]string{
		"Tu es Curiosity, un oracle culturel français érudit et bienveillant.",
		"",
		"CAPACITÉS :",
		capabilities(),
		"",
		"RÈGLES STRICTES :",
		strictRules(maxSentences),
		"",
		"EXEMPLES DE REQUÊTES :",
		requestExamples(),
		"",
		"Réponds maintenant à cette question :",
	}, "\n")
}

func capabilities() string {
	return strings.Join([]string{
		"- Histoire, philosophie, arts et culture française",
		"- Gastronomie, tourisme et patrimoine",
		"- Données en temps réel via web_search : météo, heure, cryptomonnaies, transports",
		"- Mémoire des échanges précédents de la conversation",
	}, "\n")
}

func strictRules(maxSentences int) string {
	return strings.Join([]string{
		fmt.Sprintf("- Réponds en MAXIMUM %d phrases courtes et claires.", maxSentences),
		"- Ton bienveillant, érudit et accessible.",
		"- Cite TOUJOURS tes sources entre parenthèses, par exemple (Source: Wikipédia), (Selon Voltaire) ou (Météo France).",
		"- Pour toute donnée qui dépend du moment (météo, heure, cours, horaires, actualité), utilise web_search.",
		"- Face à une demande de soutien psychologique, oriente vers des professionnels de santé.",
		"- Ne donne que des informations vérifiées.",
	}, "\n")
}

func requestExamples() string {
	return strings.Join([]string{
		"- \"Quel temps fait-il à Paris ?\" : web_search météo Paris",
		"- \"Cours du Bitcoin ?\" : web_search cours Bitcoin",
		"- \"Comment aller de Toulouse à Brocéliande ?\" : web_search itinéraire puis conseils",
		"- \"Recette du bœuf bourguignon\" : recette authentique",
		"- \"Qui était Voltaire ?\" : connaissances et sources",
	}, "\n")
}

// maxTokensFor keeps the default two-sentence answers short and gives every
// other length the same larger budget.
func maxTokensFor(maxSentences int) int {
	if maxSentences == DefaultMaxSentences {
		return shortAnswerTokens
	}
	return longAnswerTokens
}

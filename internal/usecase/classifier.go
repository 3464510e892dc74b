package usecase

import "strings"

// realTimeKeywords mark questions whose answer depends on live data.
var realTimeKeywords = []string{
	// weather
	"météo", "temps qu'il fait", "température", "pluie", "soleil", "weather",
	// time and date
	"quelle heure", "quel jour", "date", "aujourd'hui",
	// finance
	"bitcoin", "crypto", "cours", "bourse", "action", "euro", "dollar",
	// transport
	"vol", "avion", "train", "horaire", "retard", "itinéraire",
	// news
	"actualité", "news", "récent",
	// navigation
	"comment aller", "trajet", "distance", "route",
}

// needsRealTimeData reports whether the lower-cased question contains any
// real-time keyword. Plain substring matching: "volcan" matches "vol".
func needsRealTimeData(question string) bool {
	q := strings.ToLower(question)
	for _, keyword := range realTimeKeywords {
		if strings.Contains(q, keyword) {
			return true
		}
	}
	return false
}

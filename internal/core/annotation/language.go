package annotation

import "strings"

const (
	LanguageEnglish = "en"
	LanguagePolish  = "pl"

	FallbackLanguage = LanguageEnglish
)

var englishStopWords = map[string]struct{}{
	"the": {}, "and": {}, "is": {}, "in": {}, "on": {}, "of": {}, "to": {},
	"for": {}, "with": {}, "a": {}, "an": {}, "this": {}, "that": {}, "are": {},
}

var polishStopWords = map[string]struct{}{
	"i": {}, "oraz": {}, "w": {}, "dla": {}, "na": {}, "z": {}, "do": {},
	"się": {}, "jest": {}, "nie": {}, "że": {}, "to": {}, "od": {}, "po": {},
}

// DetectLanguage counts stop-word hits per language; ties and no hits return FallbackLanguage.
func DetectLanguage(text string) string {
	var english, polish int
	for _, token := range strings.Fields(strings.ToLower(text)) {
		if _, ok := englishStopWords[token]; ok {
			english++
		}
		if _, ok := polishStopWords[token]; ok {
			polish++
		}
	}
	switch {
	case polish > english:
		return LanguagePolish
	case english > polish:
		return LanguageEnglish
	default:
		return FallbackLanguage
	}
}

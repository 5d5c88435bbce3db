// Package langdetect guesses the language of short text from stopword
// frequency. It exists so "auto" source-language requests can be resolved
// before dispatch without calling a paid detection API.
package langdetect

import (
	"strings"
	"unicode"
)

// Detection order doubles as the tie-break: earlier languages win equal counts.
var detectionOrder = []string{"en", "es", "fr", "de", "it"}

var stopwords = map[string]map[string]bool{
	"en": wordSet("the", "and", "is", "are", "hello", "thank", "you"),
	"es": wordSet("el", "la", "y", "es", "son", "hola", "gracias"),
	"fr": wordSet("le", "la", "et", "est", "sont", "bonjour", "merci"),
	"de": wordSet("der", "die", "das", "und", "ist", "sind", "hallo", "danke"),
	"it": wordSet("il", "la", "e", "è", "sono", "ciao", "grazie"),
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Detect returns the best-guess language code and a confidence in [0, 1]
// (share of tokens that matched the winning language's stopwords). Text with
// no signal defaults to "en" with confidence 0.
func Detect(text string) (string, float64) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return "en", 0
	}

	counts := make(map[string]int, len(detectionOrder))
	for _, tok := range tokens {
		for lang, words := range stopwords {
			if words[tok] {
				counts[lang]++
			}
		}
	}

	best := ""
	bestCount := 0
	for _, lang := range detectionOrder {
		if counts[lang] > bestCount {
			best = lang
			bestCount = counts[lang]
		}
	}
	if best == "" {
		return "en", 0
	}
	return best, float64(bestCount) / float64(len(tokens))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// Language describes one entry of the supported-language table.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

// Supported returns the languages the platform offers for translation. The
// table is static; providers that cannot serve a pair reject it themselves.
func Supported() []Language {
	return []Language{
		{"en", "English", "English"},
		{"es", "Spanish", "Español"},
		{"fr", "French", "Français"},
		{"de", "German", "Deutsch"},
		{"it", "Italian", "Italiano"},
		{"pt", "Portuguese", "Português"},
		{"ru", "Russian", "Русский"},
		{"ja", "Japanese", "日本語"},
		{"ko", "Korean", "한국어"},
		{"zh", "Chinese", "中文"},
		{"ar", "Arabic", "العربية"},
		{"hi", "Hindi", "हिन्दी"},
		{"tr", "Turkish", "Türkçe"},
		{"nl", "Dutch", "Nederlands"},
		{"pl", "Polish", "Polski"},
	}
}

// Package language guesses a speaker's language from the script of a
// transcript when the recognizer does not report one.
package language

import (
	"strings"
	"unicode"
)

// Default is the baseline language assumed until something else is detected.
const Default = "en"

var scripts = []struct {
	code  string
	table *unicode.RangeTable
}{
	{"hi", unicode.Devanagari},
	{"bn", unicode.Bengali},
	{"ta", unicode.Tamil},
	{"te", unicode.Telugu},
	{"kn", unicode.Kannada},
	{"ml", unicode.Malayalam},
	{"gu", unicode.Gujarati},
	{"pa", unicode.Gurmukhi},
	{"ar", unicode.Arabic},
	{"ja", unicode.Hiragana},
	{"ja", unicode.Katakana},
	{"zh", unicode.Han},
	{"ko", unicode.Hangul},
	{"ru", unicode.Cyrillic},
}

// Detect returns the language whose script dominates text, or Default
// when the text is Latin, empty or unrecognised.
func Detect(text string) string {
	if code, ok := DetectScript(text); ok {
		return code
	}
	return Default
}

// DetectScript returns the language whose script dominates text and
// reports false when no known non-Latin script appears. Any kana makes
// the text Japanese even when Han characters outnumber it.
func DetectScript(text string) (string, bool) {
	counts := make(map[string]int)
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[s.code]++
				break
			}
		}
	}
	if counts["ja"] > 0 {
		return "ja", true
	}

	best, bestCount := "", 0
	for _, s := range scripts {
		if n := counts[s.code]; n > bestCount {
			best, bestCount = s.code, n
		}
	}
	return best, bestCount > 0
}

// Normalize reduces a locale such as "hi-IN" or "en_US" to its base code.
func Normalize(code string) string {
	code = strings.TrimSpace(strings.ToLower(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return code
}

var indic = map[string]bool{
	"hi": true, "bn": true, "ta": true, "te": true, "kn": true,
	"ml": true, "gu": true, "pa": true, "mr": true, "od": true, "or": true,
}

// IsIndic reports whether code is an Indian language.
func IsIndic(code string) bool {
	return indic[Normalize(code)]
}

var names = map[string]string{
	"en": "English", "hi": "Hindi", "bn": "Bengali", "ta": "Tamil",
	"te": "Telugu", "kn": "Kannada", "ml": "Malayalam", "gu": "Gujarati",
	"pa": "Punjabi", "mr": "Marathi", "ar": "Arabic", "zh": "Chinese",
	"ja": "Japanese", "ko": "Korean", "ru": "Russian", "es": "Spanish",
	"fr": "French", "de": "German",
}

// Name returns the English name of a language, or the code itself.
func Name(code string) string {
	if n, ok := names[Normalize(code)]; ok {
		return n
	}
	return code
}

package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lowerCaser = cases.Lower(language.Und)

// Tokenize splits text into normalized word unigrams and adjacent-word
// bigrams with their occurrence counts.
func Tokenize(text string) map[string]int {
	normalized := lowerCaser.String(norm.NFKC.String(text))
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	terms := make(map[string]int, len(words)*2)
	for i, word := range words {
		terms[word]++
		if i > 0 {
			terms[words[i-1]+" "+word]++
		}
	}
	return terms
}

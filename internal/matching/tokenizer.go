package matching

import "strings"

// stopwords are dropped before weighting. Quantifiers, prepositions and
// pronouns carry no signal for matching short report texts.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {}, "for": {},
	"in": {}, "on": {}, "at": {}, "of": {}, "with": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "it": {}, "this": {}, "that": {}, "my": {},
	"your": {}, "our": {}, "their": {}, "i": {}, "you": {}, "we": {},
	"they": {}, "as": {}, "by": {}, "be": {}, "from": {}, "near": {},
	"around": {}, "about": {}, "into": {},
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Tokenize splits text into lowercase alphanumeric tokens, treating every
// other character as a separator, and drops stopwords and single-character
// tokens. Empty input yields an empty slice.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlnum(r)
	})
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) <= 1 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}
